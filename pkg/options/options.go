package options

import (
	"fmt"
	"net"

	"github.com/spf13/pflag"
)

// IOptions is implemented by every option group so composite option structs
// can validate and register flags uniformly.
type IOptions interface {
	// Validate checks the option values supplied on the command line or in
	// the config file.
	Validate() []error

	// AddFlags registers the group's flags on the given flag set.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// ValidateAddress checks that addr is a host:port that a listener can bind.
func ValidateAddress(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	return nil
}
