package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/xrd2template/internal/logging"
	"github.com/hupe1980/xrd2template/internal/output"
	"github.com/hupe1980/xrd2template/internal/transform"
	"github.com/hupe1980/xrd2template/internal/xrd"
)

type generateOptions struct {
	sourceOptions

	outputDir    string
	preview      bool
	validateOnly bool
	strict       bool
}

func newGenerateCommand() *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate <path|cluster|->",
		Short: "Generate scaffolder templates from XRDs",
		Long: `Generate reads CompositeResourceDefinitions and writes one Backstage
scaffolder Template per served version.

The source is a file, a directory (scanned recursively), "-" for standard
input, or "cluster" to list XRDs through the kubeconfig. Repeat --context
to query several clusters; XRDs found in more than one are merged and
their templates gain a cluster picker.

Templates are streamed to stdout unless --output-dir is set. Versions that
cannot be transformed are reported and skipped; --strict turns any such
failure into exit code 7.`,
		Example: `  xrd2template generate ./apis -o ./templates
  xrd2template generate cluster --context prod --context dev -o ./templates
  cat xrd.yaml | xrd2template generate - --preview`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args[0], opts)
		},
	}

	registerSourceFlags(cmd, &opts.sourceOptions)
	registerTemplateFlags(cmd)

	f := cmd.Flags()
	f.StringVar(&opts.format, "format", output.FormatYAML, "template format: yaml, json")
	f.StringVarP(&opts.outputDir, "output-dir", "o", "", "directory to write templates to (default: stdout)")
	f.BoolVar(&opts.preview, "preview", false, "summarize what would be generated without generating")
	f.BoolVar(&opts.validateOnly, "validate-only", false, "check that every XRD can be transformed")
	f.BoolVar(&opts.strict, "strict", false, "fail when any version cannot be transformed")

	cmd.MarkFlagsMutuallyExclusive("preview", "validate-only")

	return cmd
}

func runGenerate(cmd *cobra.Command, ref string, opts *generateOptions) error {
	ctx := cmd.Context()
	logger := logging.FromContext(ctx)

	format, err := resolveFormat(opts.format)
	if err != nil {
		return err
	}

	l := newLoader(cmd.InOrStdin(), &opts.sourceOptions, logger)

	if opts.preview || opts.validateOnly {
		tr := newTransformer(ctx)

		set, err := loadDefinitions(ctx, l, ref)
		if err != nil {
			return err
		}

		if opts.preview {
			return writePreviews(cmd.OutOrStdout(), tr, set.Definitions(), format.Name == output.FormatJSON)
		}

		return writeValidation(cmd.OutOrStdout(), tr, set.Definitions())
	}

	gen, err := generate(ctx, l, ref, format)
	if err != nil {
		return err
	}

	var w output.Writer = output.NewStreamWriter(cmd.OutOrStdout(), format.Separator)
	if opts.outputDir != "" {
		w = output.NewDirWriter(opts.outputDir, format.Extension, output.WithLogger(logger))
	}

	if err := writeTemplates(w, gen.Templates); err != nil {
		return err
	}

	for _, e := range gen.Errors {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s\n", e)
	}

	logger.Info("generation complete",
		slog.Int("definitions", gen.Definitions),
		slog.Int("templates", len(gen.Templates)),
		slog.Int("failures", len(gen.Errors)),
		slog.Int("skippedDocuments", gen.Skipped),
	)

	if opts.strict && len(gen.Errors) > 0 {
		return &ExitError{
			Code: ExitValidation,
			Err:  fmt.Errorf("%d version(s) could not be transformed", len(gen.Errors)),
		}
	}

	return nil
}

func writePreviews(w io.Writer, tr *transform.Transformer, defs []*xrd.ResourceDefinition, asJSON bool) error {
	previews := make([]*transform.Preview, 0, len(defs))

	var errs []error

	for _, def := range defs {
		p, err := tr.Preview(def)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", def.Metadata.Name, err))
			continue
		}

		previews = append(previews, p)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(previews); err != nil {
			return &ExitError{Code: ExitGeneric, Err: fmt.Errorf("encoding preview: %w", err)}
		}
	} else {
		for _, p := range previews {
			writePreview(w, p)
		}
	}

	if len(errs) > 0 {
		return &ExitError{Code: ExitValidation, Err: errors.Join(errs...)}
	}

	return nil
}

func writePreview(w io.Writer, p *transform.Preview) {
	claims := ""
	if p.Detection.UsesClaims {
		claims = ", claims"
	}

	_, _ = fmt.Fprintf(w, "%s (%s, %s%s)\n", p.Name, p.Detection.APIVersion, p.Detection.Scope, claims)
	_, _ = fmt.Fprintf(w, "  kind:          %s\n", p.ResourceKind)
	_, _ = fmt.Fprintf(w, "  namespace:     %s\n", yesNo(p.RequiresNamespace, "required", "not required"))

	if p.MultiCluster {
		_, _ = fmt.Fprintf(w, "  clusters:      %v\n", p.Clusters)
	}

	_, _ = fmt.Fprintf(w, "  templates:     %d\n", p.TemplateCount)

	for _, v := range p.Versions {
		var flags []string
		if !v.Served {
			flags = append(flags, "not served")
		}

		if v.Deprecated {
			flags = append(flags, "deprecated")
		}

		if !v.HasSchema {
			flags = append(flags, "no schema")
		}

		line := "  - " + v.Name
		if v.TemplateName != "" {
			line += " -> " + v.TemplateName
		}

		if len(flags) > 0 {
			line += fmt.Sprintf(" %v", flags)
		}

		_, _ = fmt.Fprintln(w, line)
	}
}

func writeValidation(w io.Writer, tr *transform.Transformer, defs []*xrd.ResourceDefinition) error {
	invalid := 0

	for _, def := range defs {
		v := tr.CanTransform(def)
		if v.Valid {
			_, _ = fmt.Fprintf(w, "ok      %s\n", def.Metadata.Name)
			continue
		}

		invalid++

		_, _ = fmt.Fprintf(w, "invalid %s\n", displayName(def.Metadata.Name))

		for _, r := range v.Reasons {
			_, _ = fmt.Fprintf(w, "        - %s\n", r)
		}
	}

	if invalid > 0 {
		return &ExitError{
			Code: ExitValidation,
			Err:  fmt.Errorf("%d of %d XRD(s) cannot be transformed", invalid, len(defs)),
		}
	}

	return nil
}

func yesNo(b bool, yes, no string) string {
	if b {
		return yes
	}

	return no
}
