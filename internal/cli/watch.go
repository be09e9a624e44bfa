package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/xrd2template/internal/config"
	"github.com/hupe1980/xrd2template/internal/loader"
	"github.com/hupe1980/xrd2template/internal/logging"
	"github.com/hupe1980/xrd2template/internal/output"
	"github.com/hupe1980/xrd2template/internal/watch"
)

type watchOptions struct {
	outputDir string
	format    string
	debounce  time.Duration
}

func newWatchCommand() *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Regenerate templates when XRD files change",
		Long: `Watch monitors a directory of XRD files and regenerates the templates
into --output-dir whenever a YAML or JSON file changes. The config file is
watched as well.

File events are debounced. Each run reports the number of definitions and
templates, skipped versions, and which templates were added, removed or
changed since the previous run with a summary of their parameter and step
changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.outputDir, "output-dir", "o", "", "directory to write templates to (required)")
	f.StringVar(&opts.format, "format", output.FormatYAML, "template format: yaml, json")
	f.DurationVar(&opts.debounce, "debounce", watch.DefaultOptions().Debounce, "quiet period before regenerating")
	registerTemplateFlags(cmd)

	return cmd
}

func runWatch(cmd *cobra.Command, dir string, opts *watchOptions) error {
	if opts.outputDir == "" {
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("--output-dir (-o) is required for watch mode")}
	}

	ctx := cmd.Context()
	logger := logging.FromContext(ctx)
	cfg := config.FromContext(ctx)

	format, err := resolveFormat(opts.format)
	if err != nil {
		return err
	}

	dirLoader := loader.NewDirectoryLoader(0)
	w := output.NewDirWriter(opts.outputDir, format.Extension, output.WithLogger(logger))
	tracker := watch.NewTracker()

	runFn := func(runCtx context.Context) (*watch.RunResult, error) {
		// Pick up edits of the config file since the previous run.
		current, err := config.Load(cmd, cfg.ConfigFile)
		if err != nil {
			return nil, err
		}

		gen, err := generate(config.NewContext(runCtx, current), dirLoader, dir, format)
		if err != nil {
			return nil, err
		}

		if err := writeTemplates(w, gen.Templates); err != nil {
			return nil, err
		}

		return &watch.RunResult{
			Definitions: gen.Definitions,
			Templates:   len(gen.Templates),
			Failures:    gen.failures(),
			Changes:     tracker.Update(gen.docs()),
		}, nil
	}

	wopts := watch.DefaultOptions()
	wopts.Dir = dir
	wopts.Debounce = opts.debounce
	wopts.Logger = logger
	wopts.Out = cmd.ErrOrStderr()

	if cfg.ConfigFile != "" {
		wopts.ExtraFiles = []string{cfg.ConfigFile}
	}

	if err := watch.Run(ctx, wopts, runFn); err != nil {
		return &ExitError{Code: ExitLoad, Err: err}
	}

	return nil
}
