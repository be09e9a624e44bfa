// Package transform converts Crossplane CompositeResourceDefinitions into
// Backstage scaffolder templates, one template per served version.
package transform

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hupe1980/xrd2template/internal/steps"
	"github.com/hupe1980/xrd2template/internal/template"
	"github.com/hupe1980/xrd2template/internal/xrd"
)

// Annotations written on every generated template.
const (
	AnnotationSourceXRD         = "backstage.io/source-xrd"
	AnnotationCrossplaneVersion = "backstage.io/crossplane-version"
	AnnotationCrossplaneScope   = "backstage.io/crossplane-scope"
	AnnotationUsesClaims        = "backstage.io/uses-claims"
	AnnotationXRDVersion        = "backstage.io/xrd-version"
	AnnotationDeprecated        = "backstage.io/deprecated"
)

// Template defaults.
const (
	DefaultOwner        = "group:default/platform-team"
	DefaultTemplateType = "crossplane-resource"
	TagCrossplane       = "crossplane"
	TagDeprecated       = "deprecated"
	templateSuffix      = "-template"
)

// Options configure a Transformer.
type Options struct {
	// Owner is the catalog owner of generated templates.
	Owner string
	// TemplateType is spec.type of generated templates.
	TemplateType string
	// Tags are added to every generated template.
	Tags []string
	// Steps controls the optional fetch, publish and register steps.
	Steps steps.Config
	// Logger receives per-version failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// Transformer converts definitions into templates. It holds no mutable
// state and is safe for concurrent use.
type Transformer struct {
	opts Options
}

// New returns a Transformer with opts, filling in defaults.
func New(opts Options) *Transformer {
	if opts.Owner == "" {
		opts.Owner = DefaultOwner
	}

	if opts.TemplateType == "" {
		opts.TemplateType = DefaultTemplateType
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Transformer{opts: opts}
}

// ConfigIssues returns the advisory step configuration problems. Callers
// surface them before transforming; Transform does not re-check them.
func (t *Transformer) ConfigIssues() []string {
	return t.opts.Steps.Validate()
}

// VersionError records why a definition, or one of its versions, produced
// no template. Version is empty for definition-level failures.
type VersionError struct {
	Definition string
	Version    string
	Err        error
}

func (e *VersionError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("%s: %v", e.Definition, e.Err)
	}

	return fmt.Sprintf("%s@%s: %v", e.Definition, e.Version, e.Err)
}

func (e *VersionError) Unwrap() error { return e.Err }

// Result holds the templates produced for a definition and the errors of
// the versions that were skipped.
type Result struct {
	Templates []*template.Template
	Errors    []*VersionError
}

// OK reports whether no errors were recorded.
func (r *Result) OK() bool { return len(r.Errors) == 0 }

// Transform produces one template per served version of def. A failing
// version is recorded in Result.Errors and the remaining versions are still
// transformed.
func (t *Transformer) Transform(def *xrd.ResourceDefinition) *Result {
	res := &Result{}
	log := t.opts.Logger.With(slog.String("xrd", def.Metadata.Name))

	det, err := xrd.Detect(def)
	if err != nil {
		log.Warn("skipping definition", slog.Any("error", err))
		res.Errors = append(res.Errors, &VersionError{Definition: def.Metadata.Name, Err: err})

		return res
	}

	gen := steps.ForDefinition(def, t.opts.Steps)
	served := def.ServedVersions()

	for _, v := range served {
		tpl, err := t.transformVersion(def, det, gen, v, len(served) > 1)
		if err != nil {
			log.Warn("skipping version", slog.String("version", v.Name), slog.Any("error", err))
			res.Errors = append(res.Errors, &VersionError{Definition: def.Metadata.Name, Version: v.Name, Err: err})

			continue
		}

		log.Debug("generated template", slog.String("version", v.Name), slog.String("template", tpl.Metadata.Name))
		res.Templates = append(res.Templates, tpl)
	}

	return res
}

func (t *Transformer) transformVersion(
	def *xrd.ResourceDefinition,
	det xrd.Detection,
	gen *steps.Generator,
	v xrd.Version,
	multiVersion bool,
) (*template.Template, error) {
	sections, err := BuildParameterSections(def, det, v, t.opts.Steps)
	if err != nil {
		return nil, err
	}

	name := TemplateName(def, v.Name, multiVersion)
	kind := xrd.ResourceKind(def, det)

	tpl := &template.Template{
		APIVersion: template.APIVersion,
		Kind:       template.Kind,
		Metadata: template.Metadata{
			Name:        name,
			Title:       templateTitle(kind, v.Name, multiVersion),
			Description: templateDescription(def, kind, v),
			Tags:        t.tags(kind, v),
			Annotations: templateAnnotations(def, det, v),
		},
		Spec: template.Spec{
			Owner:      t.opts.Owner,
			Type:       t.opts.TemplateType,
			Parameters: sections,
		},
	}

	tpl.Spec.Steps = gen.Generate(steps.Input{
		Definition:   def,
		Detection:    det,
		Version:      v,
		Sections:     sections,
		TemplateName: name,
	})
	tpl.Spec.Output = gen.Output()

	return tpl, nil
}

// TemplateName returns <plural>-template, suffixed with -<version> when the
// definition serves more than one version.
func TemplateName(def *xrd.ResourceDefinition, version string, multiVersion bool) string {
	name := def.BaseName() + templateSuffix
	if multiVersion {
		name += "-" + version
	}

	return name
}

func templateTitle(kind, version string, multiVersion bool) string {
	if multiVersion {
		return fmt.Sprintf("%s (%s)", kind, version)
	}

	return kind
}

func templateDescription(def *xrd.ResourceDefinition, kind string, v xrd.Version) string {
	desc := fmt.Sprintf("Create a %s (%s)", kind, def.GroupVersion(v.Name))

	if v.Deprecated {
		warning := "this version is deprecated"
		if v.DeprecationWarning != nil && *v.DeprecationWarning != "" {
			warning = *v.DeprecationWarning
		}

		desc += ". Deprecated: " + warning
	}

	return desc
}

func (t *Transformer) tags(kind string, v xrd.Version) []string {
	tags := []string{TagCrossplane, strings.ToLower(kind)}

	for _, tag := range t.opts.Tags {
		if !containsString(tags, tag) {
			tags = append(tags, tag)
		}
	}

	if v.Deprecated && !containsString(tags, TagDeprecated) {
		tags = append(tags, TagDeprecated)
	}

	return tags
}

func templateAnnotations(def *xrd.ResourceDefinition, det xrd.Detection, v xrd.Version) map[string]string {
	annotations := map[string]string{
		AnnotationSourceXRD:         def.Metadata.Name,
		AnnotationCrossplaneVersion: string(det.APIVersion),
		AnnotationCrossplaneScope:   string(det.Scope),
		AnnotationUsesClaims:        strconv.FormatBool(det.UsesClaims),
		AnnotationXRDVersion:        v.Name,
	}

	if v.Deprecated {
		annotations[AnnotationDeprecated] = "true"
	}

	return annotations
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}

	return false
}
