// Package engine assembles the warden engine: storage, order channel,
// MQTT ingress, REST API and the rollout scheduler.
package engine

import (
	"github.com/fleetwarden/fleetwarden/pkg/options"
)

// Config collects everything the engine needs to run.
type Config struct {
	HTTP      *options.HttpOptions
	MQTT      *options.MqttOptions
	S3        *options.S3Options
	Sqlite    *options.SqliteOptions
	Scheduler *options.SchedulerOptions
}
