package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/xrd2template/internal/cluster"
	"github.com/hupe1980/xrd2template/internal/config"
	"github.com/hupe1980/xrd2template/internal/loader"
	"github.com/hupe1980/xrd2template/internal/logging"
	"github.com/hupe1980/xrd2template/internal/output"
	"github.com/hupe1980/xrd2template/internal/template"
	"github.com/hupe1980/xrd2template/internal/transform"
	"github.com/hupe1980/xrd2template/internal/version"
	"github.com/hupe1980/xrd2template/internal/xrd"
)

// sourceOptions select where definitions are loaded from.
type sourceOptions struct {
	kubeconfig string
	contexts   []string
	format     string
}

func registerSourceFlags(cmd *cobra.Command, opts *sourceOptions) {
	f := cmd.Flags()
	f.StringVar(&opts.kubeconfig, "kubeconfig", "", "kubeconfig path for the cluster source")
	f.StringArrayVar(&opts.contexts, "context", nil, "kubeconfig context to read XRDs from (repeatable)")
}

// rendered is one encoded template.
type rendered struct {
	Name string
	Doc  map[string]interface{}
	Data []byte
}

// generation is the outcome of loading and transforming one source.
type generation struct {
	Definitions int
	Skipped     int
	Templates   []rendered
	Errors      []*transform.VersionError
	Format      output.Format
}

func (g *generation) byName() map[string][]byte {
	out := make(map[string][]byte, len(g.Templates))
	for _, t := range g.Templates {
		out[t.Name] = t.Data
	}

	return out
}

func (g *generation) docs() map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{}, len(g.Templates))
	for _, t := range g.Templates {
		out[t.Name] = t.Doc
	}

	return out
}

func (g *generation) failures() []string {
	out := make([]string, len(g.Errors))
	for i, e := range g.Errors {
		out[i] = e.Error()
	}

	return out
}

// newLoader returns a loader for files, directories, stdin and clusters.
func newLoader(stdin io.Reader, opts *sourceOptions, logger *slog.Logger) *loader.MultiLoader {
	fetcher := cluster.NewFetcher(cluster.Options{
		Kubeconfig: opts.kubeconfig,
		Contexts:   opts.contexts,
		Logger:     logger,
	})

	return loader.NewMultiLoader(stdin, fetcher)
}

// loadDefinitions loads ref. Load failures map to exit code 3.
func loadDefinitions(ctx context.Context, l loader.Loader, ref string) (*loader.Set, error) {
	set, err := l.Load(ctx, ref)
	if err != nil {
		return nil, &ExitError{Code: ExitLoad, Err: fmt.Errorf("loading XRDs from %s: %w", ref, err)}
	}

	logging.FromContext(ctx).Debug("definitions loaded",
		slog.String("source", ref),
		slog.Int("count", len(set.Documents)),
		slog.Int("skipped", set.Skipped),
	)

	return set, nil
}

// newTransformer builds a transformer from the template sections of the
// resolved config. Advisory step problems are logged as warnings.
func newTransformer(ctx context.Context) *transform.Transformer {
	logger := logging.FromContext(ctx)

	tc := config.FromContext(ctx).Template
	if tc == nil {
		tc = &config.TemplateConfig{}
	}

	tr := transform.New(transform.Options{
		Owner:        tc.Owner,
		TemplateType: tc.TemplateType,
		Tags:         tc.Tags,
		Steps:        tc.StepsConfig(),
		Logger:       logger,
	})

	for _, issue := range tr.ConfigIssues() {
		logger.Warn("template configuration", slog.String("issue", issue))
	}

	return tr
}

// registerTemplateFlags adds flags overriding the owner, type and tags of
// the config file. They are resolved by config.Load.
func registerTemplateFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("owner", "", "catalog owner of generated templates (overrides config)")
	f.String("template-type", "", "spec.type of generated templates (overrides config)")
	f.StringSlice("tag", nil, "tag added to every template (repeatable, overrides config)")
}

// resolveFormat looks up name in the default registry.
func resolveFormat(name string) (output.Format, error) {
	header := fmt.Sprintf("Generated by xrd2template %s. Do not edit.", version.GetInfo().Version)

	f, err := output.DefaultRegistry(header).Format(name)
	if err != nil {
		return output.Format{}, &ExitError{Code: ExitUsage, Err: err}
	}

	return f, nil
}

// generate loads ref and transforms every definition into encoded
// templates.
func generate(ctx context.Context, l loader.Loader, ref string, format output.Format) (*generation, error) {
	tr := newTransformer(ctx)

	set, err := loadDefinitions(ctx, l, ref)
	if err != nil {
		return nil, err
	}

	return transformAll(tr, set.Definitions(), set.Skipped, format)
}

func transformAll(tr *transform.Transformer, defs []*xrd.ResourceDefinition, skipped int, format output.Format) (*generation, error) {
	g := &generation{Definitions: len(defs), Skipped: skipped, Format: format}

	for _, def := range defs {
		res := tr.TransformValid(def)
		g.Errors = append(g.Errors, res.Errors...)

		for _, tpl := range res.Templates {
			r, err := encodeTemplate(tpl, format)
			if err != nil {
				return nil, err
			}

			g.Templates = append(g.Templates, r)
		}
	}

	return g, nil
}

func encodeTemplate(tpl *template.Template, format output.Format) (rendered, error) {
	doc := tpl.ToMap()

	data, err := format.Encode(doc)
	if err != nil {
		return rendered{}, &ExitError{Code: ExitGeneric, Err: fmt.Errorf("encoding template %s: %w", tpl.Metadata.Name, err)}
	}

	return rendered{Name: tpl.Metadata.Name, Doc: doc, Data: data}, nil
}

// writeTemplates writes every template through w. Failures map to exit
// code 6.
func writeTemplates(w output.Writer, templates []rendered) error {
	for _, t := range templates {
		if err := w.Write(t.Name, t.Data); err != nil {
			return &ExitError{Code: ExitWrite, Err: fmt.Errorf("writing template %s: %w", t.Name, err)}
		}
	}

	return nil
}
