package commands

import (
	"errors"
	"fmt"
	"iter"
	"os"

	"github.com/spf13/cobra"

	"github.com/five82/xnatrack/cmd/xnatrack/internal/clierr"
	"github.com/five82/xnatrack/internal/app"
	"github.com/five82/xnatrack/internal/credentials"
	"github.com/five82/xnatrack/internal/logging"
	"github.com/five82/xnatrack/internal/ui"
	"github.com/five82/xnatrack/internal/xnat"
)

type globalOptions struct {
	logLevel        string
	logFormat       string
	verbose         bool
	format          string
	theme           string
	credentialsFile string
	envFile         string
}

// NewRootCmd constructs the xnatrack root Cobra command.
func NewRootCmd() *cobra.Command {
	version := os.Getenv("XNATRACK_VERSION")
	if version == "" {
		version = "0.1.0-dev"
	}
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "xnatrack",
		Short:         "Track the files of an XNAT project in a dataset",
		Long:          "xnatrack queries an XNAT server, builds per-subject file URL tables and registers them with the dataset.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&opts.format, "format", "text", "result format (text, json, yaml)")
	flags.StringVar(&opts.theme, "theme", "Nightfox", "color theme for text output")
	flags.StringVar(&opts.credentialsFile, "credentials-file", "", "credentials file (default ~/.config/xnatrack/credentials.toml)")
	flags.StringVar(&opts.envFile, "env-file", "", "dotenv file with XNATRACK_CREDENTIAL_* variables")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of xnatrack",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "xnatrack version %s\n", version)
		},
	})
	cmd.AddCommand(newInitCmd(opts, version))
	cmd.AddCommand(newUpdateCmd(opts, version))
	cmd.AddCommand(newQueryCmd(opts, version))
	cmd.AddCommand(newQueryFilesCmd(opts, version))
	cmd.AddCommand(newCredentialCmd(opts, version))

	return cmd
}

// setup builds the application services and result renderer from the
// global flags.
func (o *globalOptions) setup(cmd *cobra.Command, version string) (*app.App, *ui.Renderer, error) {
	level := o.logLevel
	if o.verbose {
		level = "debug"
	}
	logger, err := logging.New(cmd.ErrOrStderr(), level, o.logFormat)
	if err != nil {
		return nil, nil, clierr.Wrap(clierr.ExitUsage, "invalid logging flags", err)
	}
	format, err := ui.ParseFormat(o.format)
	if err != nil {
		return nil, nil, clierr.Wrap(clierr.ExitUsage, "invalid --format", err)
	}
	store, err := credentials.Open(o.credentialsFile, o.envFile)
	if err != nil {
		return nil, nil, clierr.Wrap(clierr.ExitUsage, "open credentials", err)
	}

	a := app.New(store, logger)
	a.UserAgent = "xnatrack/" + version
	return a, ui.NewRenderer(cmd.OutOrStdout(), ui.Options{Format: format, Theme: o.theme}), nil
}

// render writes every result and converts the first failed one into an
// exit error.
func render(r *ui.Renderer, results iter.Seq[app.Result]) error {
	var failed *app.Result
	for res := range results {
		if err := r.Render(res); err != nil {
			return err
		}
		if failed == nil && res.Status.Failed() {
			failed = &res
		}
	}
	if err := r.Close(); err != nil {
		return err
	}
	if failed != nil {
		return exitError(*failed)
	}
	return nil
}

func exitError(res app.Result) error {
	msg := fmt.Sprintf("%s %s", res.Action, res.Status)
	if res.Err == nil && res.Message != "" {
		msg += ": " + res.Message
	}
	if res.Status == app.StatusImpossible {
		return clierr.Wrap(clierr.ExitImpossible, msg, res.Err)
	}

	var (
		cfgErr  *xnat.ConfigError
		connErr *xnat.ConnectionError
		reqErr  *xnat.RequestError
		ambErr  *xnat.AmbiguousResultError
	)
	switch err := res.Err; {
	case err == nil:
		return clierr.New(clierr.ExitFailure, msg)
	case errors.As(err, &cfgErr):
		return clierr.Wrap(clierr.ExitUsage, msg, err)
	case errors.As(err, &connErr), errors.As(err, &reqErr), errors.As(err, &ambErr):
		return clierr.Wrap(clierr.ExitRemote, msg, err)
	default:
		return clierr.Wrap(clierr.ExitFailure, msg, err)
	}
}
