// Package cli implements the cobra command tree for xrd2template.
package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/xrd2template/internal/config"
	"github.com/hupe1980/xrd2template/internal/logging"
	"github.com/hupe1980/xrd2template/internal/version"
)

// Process exit codes.
const (
	ExitGeneric    = 1
	ExitUsage      = 2
	ExitLoad       = 3
	ExitWrite      = 6
	ExitValidation = 7
	ExitChanges    = 8
)

// ExitError wraps an error with a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute builds the command tree, runs it, and returns the exit code.
func Execute() int {
	cmd := NewRootCommand()

	if err := cmd.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Error:", exitErr.Err)
			}

			return exitErr.Code
		}

		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)

		return ExitGeneric
	}

	return 0
}

// NewRootCommand constructs the top-level cobra.Command with all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "xrd2template",
		Short: "Generate Backstage scaffolder templates from Crossplane XRDs",
		Long: `xrd2template turns Crossplane CompositeResourceDefinitions into
Backstage scaffolder Templates.

Each served version of an XRD becomes one template whose form is derived
from the version's OpenAPI schema and whose steps render the resource
manifest and, when configured, publish it to Git and register it in the
catalog. XRDs are read from files, directories, standard input or one or
more live clusters.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd, cfgFile)
			if err != nil {
				return &ExitError{Code: ExitUsage, Err: err}
			}

			if err := version.GetInfo().Check(cfg.RequiredVersion); err != nil {
				return &ExitError{Code: ExitUsage, Err: err}
			}

			logger := logging.Setup(cfg)

			ctx := cmd.Context()
			ctx = config.NewContext(ctx, cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			logger.Debug("configuration loaded",
				slog.String("logLevel", cfg.LogLevel),
				slog.String("logFormat", cfg.LogFormat),
				slog.String("configFile", cfg.ConfigFile),
			)

			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: .xrd2template.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json")
	pf.Bool("no-color", false, "disable colored output")
	pf.BoolP("quiet", "q", false, "suppress non-essential output")
	pf.String("required-version", "", "semver constraint the binary must satisfy")

	// Flag parsing errors return exit code 2.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: ExitUsage, Err: err}
	})

	cmd.AddCommand(
		newGenerateCommand(),
		newLintCommand(),
		newDiffCommand(),
		newWatchCommand(),
		newEntraCommand(),
		newVersionCommand(),
		newCompletionCommand(),
	)

	return cmd
}
