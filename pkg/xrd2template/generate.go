// Package xrd2template provides a public Go API for generating Backstage
// scaffolder Templates from Crossplane CompositeResourceDefinitions.
//
// Basic usage:
//
//	result, err := xrd2template.Generate(ctx, "path/to/xrds")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, t := range result.Templates {
//	    fmt.Println(t.Name)
//	}
//
// With options:
//
//	result, err := xrd2template.GenerateFromBytes(ctx, data,
//	    xrd2template.WithOwner("group:default/platform-team"),
//	    xrd2template.WithFormat("json"),
//	)
package xrd2template

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hupe1980/xrd2template/internal/cluster"
	"github.com/hupe1980/xrd2template/internal/config"
	"github.com/hupe1980/xrd2template/internal/loader"
	"github.com/hupe1980/xrd2template/internal/logging"
	"github.com/hupe1980/xrd2template/internal/output"
	"github.com/hupe1980/xrd2template/internal/transform"
)

// Option configures template generation.
// Use the With* functions to create Options.
type Option func(*options)

type options struct {
	owner        string
	templateType string
	tags         []string

	kubeconfig string
	contexts   []string

	configData []byte
	format     string
	logger     *slog.Logger
}

// WithOwner sets the catalog owner of generated templates.
func WithOwner(owner string) Option { return func(o *options) { o.owner = owner } }

// WithTemplateType sets spec.type of generated templates.
func WithTemplateType(t string) Option { return func(o *options) { o.templateType = t } }

// WithTags adds tags to every generated template.
func WithTags(tags ...string) Option { return func(o *options) { o.tags = append(o.tags, tags...) } }

// WithKubeconfig sets the kubeconfig used for the "cluster" source.
func WithKubeconfig(path string) Option { return func(o *options) { o.kubeconfig = path } }

// WithContexts sets the kubeconfig contexts queried for the "cluster"
// source.
func WithContexts(contexts ...string) Option {
	return func(o *options) { o.contexts = append(o.contexts, contexts...) }
}

// WithTemplateConfigData sets the raw YAML of a .xrd2template.yaml file.
// Its owner, tags, fetch, publish and register sections apply; WithOwner,
// WithTemplateType and WithTags take precedence.
func WithTemplateConfigData(data []byte) Option {
	return func(o *options) { o.configData = data }
}

// WithFormat selects the encoding of Template.Data: "yaml" (default) or
// "json".
func WithFormat(name string) Option { return func(o *options) { o.format = name } }

// WithLogger sets the logger. Logging is discarded by default.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// Template is one generated scaffolder Template.
type Template struct {
	// Name is metadata.name of the template.
	Name string

	// Data is the encoded template.
	Data []byte

	// Doc is the structured template, suitable for further manipulation.
	Doc map[string]interface{}
}

// Result holds the output of a generation run.
type Result struct {
	Templates []Template

	// Definitions is the number of XRDs read.
	Definitions int

	// Skipped is the number of documents that were not XRDs.
	Skipped int

	// Failures lists the definitions and versions that produced no
	// template.
	Failures []string
}

// Generate reads XRDs from ref and generates their templates. ref is a
// file, a directory, "-" for standard input, or "cluster".
func Generate(ctx context.Context, ref string, opts ...Option) (*Result, error) {
	if ref == "" {
		return nil, errors.New("source reference must not be empty")
	}

	o := newOptions(opts)

	fetcher := cluster.NewFetcher(cluster.Options{
		Kubeconfig: o.kubeconfig,
		Contexts:   o.contexts,
		Logger:     o.logger,
	})

	return run(ctx, loader.NewMultiLoader(os.Stdin, fetcher), ref, o)
}

// GenerateFromBytes generates templates for the XRDs in data, a YAML or
// JSON stream.
func GenerateFromBytes(ctx context.Context, data []byte, opts ...Option) (*Result, error) {
	o := newOptions(opts)

	return run(ctx, loader.NewReaderLoader(bytes.NewReader(data)), "<bytes>", o)
}

func newOptions(opts []Option) *options {
	o := &options{format: output.FormatYAML}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = logging.Discard()
	}

	return o
}

func run(ctx context.Context, l loader.Loader, ref string, o *options) (*Result, error) {
	format, err := output.DefaultRegistry("").Format(o.format)
	if err != nil {
		return nil, err
	}

	tr, err := newTransformer(o)
	if err != nil {
		return nil, err
	}

	set, err := l.Load(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("loading XRDs: %w", err)
	}

	res := &Result{Definitions: len(set.Documents), Skipped: set.Skipped}

	for _, def := range set.Definitions() {
		tres := tr.TransformValid(def)

		for _, e := range tres.Errors {
			res.Failures = append(res.Failures, e.Error())
		}

		for _, tpl := range tres.Templates {
			doc := tpl.ToMap()

			data, err := format.Encode(doc)
			if err != nil {
				return nil, fmt.Errorf("encoding template %s: %w", tpl.Metadata.Name, err)
			}

			res.Templates = append(res.Templates, Template{Name: tpl.Metadata.Name, Data: data, Doc: doc})
		}
	}

	return res, nil
}

func newTransformer(o *options) (*transform.Transformer, error) {
	tc := &config.TemplateConfig{}

	if len(o.configData) > 0 {
		parsed, err := config.ParseTemplateConfig(o.configData)
		if err != nil {
			return nil, err
		}

		tc = parsed
	}

	topts := transform.Options{
		Owner:        tc.Owner,
		TemplateType: tc.TemplateType,
		Tags:         append(append([]string(nil), tc.Tags...), o.tags...),
		Steps:        tc.StepsConfig(),
		Logger:       o.logger,
	}

	if o.owner != "" {
		topts.Owner = o.owner
	}

	if o.templateType != "" {
		topts.TemplateType = o.templateType
	}

	return transform.New(topts), nil
}
