package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SchedulerOptions)(nil)

// SchedulerOptions configures the rollout control loop.
type SchedulerOptions struct {
	// TickInterval is the period between scheduling passes.
	TickInterval time.Duration `json:"tick-interval" mapstructure:"tick-interval"`

	// OrderTTL is how long a dispatched order stays valid before an
	// unresolved outcome is treated as failed.
	OrderTTL time.Duration `json:"order-ttl" mapstructure:"order-ttl"`

	// MaxDispatchAttempts bounds re-dispatch of an appliance order before the
	// record is marked terminally failed.
	MaxDispatchAttempts int `json:"max-dispatch-attempts" mapstructure:"max-dispatch-attempts"`
}

func NewSchedulerOptions() *SchedulerOptions {
	return &SchedulerOptions{
		TickInterval:        time.Minute,
		OrderTTL:            2 * time.Hour,
		MaxDispatchAttempts: 3,
	}
}

func (o *SchedulerOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.TickInterval <= 0 {
		errors = append(errors, fmt.Errorf("scheduler tick interval must be positive, got %s", o.TickInterval))
	}
	if o.OrderTTL <= 0 {
		errors = append(errors, fmt.Errorf("order ttl must be positive, got %s", o.OrderTTL))
	}
	if o.MaxDispatchAttempts < 1 {
		errors = append(errors, fmt.Errorf("max dispatch attempts must be at least 1, got %d", o.MaxDispatchAttempts))
	}

	return errors
}

func (o *SchedulerOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.TickInterval, "scheduler.tick-interval", o.TickInterval, "Period between rollout scheduling passes.")
	fs.DurationVar(&o.OrderTTL, "scheduler.order-ttl", o.OrderTTL, "Validity window of a dispatched update order.")
	fs.IntVar(&o.MaxDispatchAttempts, "scheduler.max-dispatch-attempts", o.MaxDispatchAttempts, "Dispatch attempts per appliance before the record is marked failed.")
}
