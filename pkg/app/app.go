package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/fleetwarden/fleetwarden/pkg/log"
)

// RunFunc is the application's run callback, invoked after flags and the
// optional config file have been merged, completed, and validated.
type RunFunc func() error

// NamedFlagSetOptions is implemented by an application's top-level option
// struct: grouped flags plus completion and validation hooks.
type NamedFlagSetOptions interface {
	Flags() cliflag.NamedFlagSets
	Complete() error
	Validate() error
}

// App wraps a cobra command with grouped flags, viper config-file merging,
// and logger initialization.
type App struct {
	name        string
	short       string
	description string
	opts        NamedFlagSetOptions
	run         RunFunc
	silence     bool

	cmd *cobra.Command
}

// Option configures an App during construction.
type Option func(*App)

// WithDescription sets the long description shown in help output.
func WithDescription(desc string) Option {
	return func(a *App) {
		a.description = desc
	}
}

// WithOptions attaches the application's option struct.
func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) {
		a.opts = opts
	}
}

// WithRunFunc sets the application's run callback.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) {
		a.run = run
	}
}

// WithSilence suppresses cobra's usage and error printing; errors are only
// reported through the process exit code and the logger.
func WithSilence() Option {
	return func(a *App) {
		a.silence = true
	}
}

// NewApp builds an application with the given command name and short
// description.
func NewApp(name, short string, opts ...Option) *App {
	a := &App{
		name:  name,
		short: short,
	}
	for _, o := range opts {
		o(a)
	}
	a.buildCommand()
	return a
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.short,
		Long:          a.description,
		SilenceUsage:  a.silence,
		SilenceErrors: a.silence,
		Args:          cobra.NoArgs,
		RunE:          a.runCommand,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	var fss cliflag.NamedFlagSets
	if a.opts != nil {
		fss = a.opts.Flags()
	}
	configFlags := fss.FlagSet("global")
	configFlags.StringP("config", "c", "", "Path to the configuration file.")
	for _, fs := range fss.FlagSets {
		cmd.Flags().AddFlagSet(fs)
	}
	cliflag.SetUsageAndHelpFunc(cmd, fss, 120)

	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, args []string) error {
	if err := a.mergeConfigFile(cmd); err != nil {
		return err
	}

	if a.opts != nil {
		if err := a.opts.Complete(); err != nil {
			return err
		}
		if err := a.opts.Validate(); err != nil {
			return err
		}
	}

	if a.run != nil {
		return a.run()
	}
	return nil
}

// mergeConfigFile overlays values from the --config file (if given) onto the
// flag defaults. Explicit command-line flags win over file values.
func (a *App) mergeConfigFile(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil || path == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(strings.ReplaceAll(strings.ToUpper(a.name), "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	// Apply file values only to flags the user did not set explicitly.
	var applyErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		if err := f.Value.Set(v.GetString(f.Name)); err != nil && applyErr == nil {
			applyErr = fmt.Errorf("invalid value for %q in config file: %w", f.Name, err)
		}
	})
	if applyErr != nil {
		return applyErr
	}

	log.Debug("Merged configuration file", "path", path)
	return nil
}

// Command exposes the underlying cobra command, mainly for tests.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run executes the application and exits the process on error.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
