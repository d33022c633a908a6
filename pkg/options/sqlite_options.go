package options

import (
	"github.com/spf13/pflag"
)

var _ IOptions = (*SqliteOptions)(nil)

// SqliteOptions configures the engine's embedded database.
type SqliteOptions struct {
	// Path is the database file path. ":memory:" runs fully in memory.
	Path string `json:"path" mapstructure:"path"`
}

func NewSqliteOptions() *SqliteOptions {
	return &SqliteOptions{
		Path: "/var/lib/fleetwarden/warden.db",
	}
}

func (o *SqliteOptions) Validate() []error {
	errors := []error{}

	return errors
}

func (o *SqliteOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Path, "sqlite.path", o.Path, "Path to the SQLite database file (':memory:' for in-memory).")
}
