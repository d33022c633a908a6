// Package options collects the warden engine's flag groups.
package options

import (
	cliflag "k8s.io/component-base/cli/flag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/fleetwarden/fleetwarden/internal/engine"
	"github.com/fleetwarden/fleetwarden/pkg/log"
	genericoptions "github.com/fleetwarden/fleetwarden/pkg/options"
)

// Options runs the warden engine.
type Options struct {
	HTTP      *genericoptions.HttpOptions
	MQTT      *genericoptions.MqttOptions
	S3        *genericoptions.S3Options
	Sqlite    *genericoptions.SqliteOptions
	Scheduler *genericoptions.SchedulerOptions
	Log       *log.Options
}

// NewOptions builds the engine's default options.
func NewOptions() *Options {
	return &Options{
		HTTP:      genericoptions.NewHttpOptions(),
		MQTT:      genericoptions.NewMqttOptions(),
		S3:        genericoptions.NewS3Options(),
		Sqlite:    genericoptions.NewSqliteOptions(),
		Scheduler: genericoptions.NewSchedulerOptions(),
		Log:       log.NewOptions(),
	}
}

// Flags returns the grouped flag sets.
func (o *Options) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTP.AddFlags(fss.FlagSet("http"))
	o.MQTT.AddFlags(fss.FlagSet("mqtt"))
	o.S3.AddFlags(fss.FlagSet("s3"))
	o.Sqlite.AddFlags(fss.FlagSet("sqlite"))
	o.Scheduler.AddFlags(fss.FlagSet("scheduler"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

// Complete fills in derived defaults.
func (o *Options) Complete() error {
	if o.MQTT.ClientID == "" {
		o.MQTT.ClientID = "warden-engine"
	}
	return nil
}

// Validate checks every flag group.
func (o *Options) Validate() error {
	var errs []error
	errs = append(errs, o.HTTP.Validate()...)
	errs = append(errs, o.MQTT.Validate()...)
	errs = append(errs, o.S3.Validate()...)
	errs = append(errs, o.Sqlite.Validate()...)
	errs = append(errs, o.Scheduler.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

// EngineConfig converts the options into the engine's runtime config.
func (o *Options) EngineConfig() *engine.Config {
	return &engine.Config{
		HTTP:      o.HTTP,
		MQTT:      o.MQTT,
		S3:        o.S3,
		Sqlite:    o.Sqlite,
		Scheduler: o.Scheduler,
	}
}
