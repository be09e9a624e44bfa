package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/xrd2template/internal/config"
	"github.com/hupe1980/xrd2template/internal/logging"
	"github.com/hupe1980/xrd2template/internal/output"
	"github.com/hupe1980/xrd2template/internal/plan"
)

type diffOptions struct {
	sourceOptions

	existing       string
	outputFormat   string
	exitCode       bool
	showDiff       bool
	includeRemoved bool
}

func newDiffCommand() *cobra.Command {
	opts := &diffOptions{}

	cmd := &cobra.Command{
		Use:   "diff <source>",
		Short: "Compare generated templates with existing ones",
		Long: `Diff regenerates templates from the source and compares them with the
template files in --existing, matched by template name.

For every template it reports whether it would be added, changed or left
unchanged, classifies parameter and step changes as breaking or not, and
prints a unified diff. Templates present only in --existing are ignored
unless --include-removed is set.

With --exit-code the command exits with code 8 when there are changes.`,
		Example: `  xrd2template diff ./apis --existing ./templates
  xrd2template diff cluster --existing ./templates --format json --exit-code`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, args[0], opts)
		},
	}

	registerSourceFlags(cmd, &opts.sourceOptions)
	registerTemplateFlags(cmd)

	f := cmd.Flags()
	f.StringVar(&opts.existing, "existing", "", "directory holding the current templates (required)")
	f.StringVar(&opts.outputFormat, "format", "text", "report format: text, json")
	f.StringVar(&opts.format, "template-format", output.FormatYAML, "format of the existing templates: yaml, json")
	f.BoolVar(&opts.exitCode, "exit-code", false, "exit with code 8 when templates changed")
	f.BoolVar(&opts.showDiff, "show-diff", true, "include unified diffs in text output")
	f.BoolVar(&opts.includeRemoved, "include-removed", false, "report templates that would no longer be generated")

	_ = cmd.MarkFlagRequired("existing")

	return cmd
}

func runDiff(cmd *cobra.Command, ref string, opts *diffOptions) error {
	ctx := cmd.Context()
	logger := logging.FromContext(ctx)

	switch opts.outputFormat {
	case "text", "json":
	default:
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("invalid format %q: must be one of text, json", opts.outputFormat)}
	}

	format, err := resolveFormat(opts.format)
	if err != nil {
		return err
	}

	existing, err := readExisting(opts.existing, format)
	if err != nil {
		return &ExitError{Code: ExitLoad, Err: err}
	}

	gen, err := generate(ctx, newLoader(cmd.InOrStdin(), &opts.sourceOptions, logger), ref, format)
	if err != nil {
		return err
	}

	diffOpts := plan.DefaultDiffOptions()

	p, err := plan.Build(existing, gen.byName(), diffOpts)
	if err != nil {
		return &ExitError{Code: ExitGeneric, Err: fmt.Errorf("building plan: %w", err)}
	}

	if !opts.includeRemoved {
		p = withoutRemoved(p)
	}

	w := cmd.OutOrStdout()

	if opts.outputFormat == "json" {
		if err := p.WriteJSON(w); err != nil {
			return &ExitError{Code: ExitGeneric, Err: fmt.Errorf("formatting JSON: %w", err)}
		}
	} else {
		p.WriteText(w, opts.showDiff, colorEnabled(config.FromContext(ctx), w))
	}

	for _, e := range gen.Errors {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s\n", e)
	}

	if opts.exitCode && p.HasChanges() {
		return &ExitError{
			Code: ExitChanges,
			Err: fmt.Errorf("%d template(s) differ, %d with breaking changes",
				len(p.Templates)-p.Count(plan.StatusUnchanged), countBreaking(p)),
		}
	}

	return nil
}

// readExisting reads every template file with the format's extension in
// dir, keyed by file name without extension.
func readExisting(dir string, format output.Format) (map[string][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading existing templates: %w", err)
	}

	out := make(map[string][]byte)

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), format.Extension) {
			continue
		}

		path := filepath.Join(dir, e.Name())

		data, err := os.ReadFile(path) //nolint:gosec // path is inside the user-provided directory
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		out[strings.TrimSuffix(e.Name(), format.Extension)] = data
	}

	return out, nil
}

func withoutRemoved(p *plan.Plan) *plan.Plan {
	out := &plan.Plan{Templates: make([]plan.TemplatePlan, 0, len(p.Templates))}

	for _, t := range p.Templates {
		if t.Status != plan.StatusRemoved {
			out.Templates = append(out.Templates, t)
		}
	}

	return out
}

func countBreaking(p *plan.Plan) int {
	n := 0

	for _, t := range p.Templates {
		if t.Evolution != nil && t.Evolution.BreakingCount() > 0 {
			n++
		}
	}

	return n
}
