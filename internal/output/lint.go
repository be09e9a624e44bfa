package output

import (
	"fmt"
	"regexp"

	"k8s.io/apimachinery/pkg/util/validation"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/hupe1980/xrd2template/internal/maputil"
	"github.com/hupe1980/xrd2template/internal/template"
	"github.com/hupe1980/xrd2template/internal/yamlutil"
)

// Severity indicates the severity of a lint finding.
type Severity int

const (
	// SeverityError means the template is invalid.
	SeverityError Severity = iota
	// SeverityWarning means the template may be problematic.
	SeverityWarning
)

// String returns the severity name.
func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}

	return "warning"
}

// Finding is a single lint issue.
type Finding struct {
	Severity Severity
	Field    string
	Message  string
}

// Error implements the error interface.
func (f *Finding) Error() string {
	return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Field, f.Message)
}

// LintResult holds all findings for one document.
type LintResult struct {
	// Name is metadata.name of the document, if any.
	Name string
	// Line is the stream line the document starts on.
	Line     int
	Findings []Finding
}

// Errors returns only error-severity findings.
func (r *LintResult) Errors() []Finding {
	return r.filter(SeverityError)
}

// Warnings returns only warning-severity findings.
func (r *LintResult) Warnings() []Finding {
	return r.filter(SeverityWarning)
}

// HasErrors returns true if any error-severity findings exist.
func (r *LintResult) HasErrors() bool {
	return len(r.Errors()) > 0
}

func (r *LintResult) filter(s Severity) []Finding {
	var out []Finding

	for _, f := range r.Findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}

	return out
}

var tagPattern = regexp.MustCompile(`^[a-z0-9:+#]+(-[a-z0-9:+#]+)*$`)

// LintStream splits a YAML or JSON stream and lints every document.
func LintStream(data []byte) ([]*LintResult, error) {
	docs := yamlutil.SplitDocuments(data)
	results := make([]*LintResult, 0, len(docs))

	for i, d := range docs {
		var doc map[string]interface{}
		if err := sigsyaml.Unmarshal(d.Data, &doc); err != nil {
			return nil, fmt.Errorf("document %d (line %d): %w", i+1, d.Line, err)
		}

		res := Lint(doc)
		res.Line = d.Line
		results = append(results, res)
	}

	return results, nil
}

// Lint checks a scaffolder Template document: required fields, unique step
// ids, and that every parameter and step referenced by an expression
// exists.
func Lint(doc map[string]interface{}) *LintResult {
	l := &linter{doc: doc}
	l.lint()

	return &l.result
}

type linter struct {
	doc    map[string]interface{}
	result LintResult
	params map[string]bool
}

func (l *linter) addError(field, format string, args ...interface{}) {
	l.result.Findings = append(l.result.Findings, Finding{
		Severity: SeverityError,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (l *linter) addWarning(field, format string, args ...interface{}) {
	l.result.Findings = append(l.result.Findings, Finding{
		Severity: SeverityWarning,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (l *linter) lint() {
	if v, _ := l.doc["apiVersion"].(string); v != template.APIVersion {
		l.addError("apiVersion", "must be %s, got %q", template.APIVersion, v)
	}

	if v, _ := l.doc["kind"].(string); v != template.Kind {
		l.addError("kind", "must be %s, got %q", template.Kind, v)
	}

	l.lintMetadata()

	spec, ok := l.doc["spec"].(map[string]interface{})
	if !ok {
		l.addError("spec", "is required")
		return
	}

	if s, _ := spec["owner"].(string); s == "" {
		l.addWarning("spec.owner", "is not set")
	}

	if s, _ := spec["type"].(string); s == "" {
		l.addError("spec.type", "is required")
	}

	l.lintParameters(spec)
	l.lintSteps(spec)
}

func (l *linter) lintMetadata() {
	name, _ := maputil.GetPath(l.doc, "metadata", "name")

	s, _ := name.(string)
	if s == "" {
		l.addError("metadata.name", "is required")
		return
	}

	l.result.Name = s

	if len(s) > validation.DNS1123LabelMaxLength {
		l.addError("metadata.name", "must be no more than %d characters", validation.DNS1123LabelMaxLength)
	}

	for _, msg := range validation.IsDNS1123Subdomain(s) {
		l.addError("metadata.name", "%s", msg)
	}

	tags, _ := maputil.GetPath(l.doc, "metadata", "tags")
	list, _ := tags.([]interface{})

	for i, t := range list {
		if s, ok := t.(string); !ok || !tagPattern.MatchString(s) {
			l.addWarning(fmt.Sprintf("metadata.tags[%d]", i), "%v is not a valid tag", t)
		}
	}
}

func (l *linter) lintParameters(spec map[string]interface{}) {
	l.params = make(map[string]bool)

	raw, ok := spec["parameters"]
	if !ok {
		l.addWarning("spec.parameters", "template takes no input")
		return
	}

	sections, ok := raw.([]interface{})
	if !ok {
		l.addError("spec.parameters", "must be a list of sections")
		return
	}

	for i, s := range sections {
		field := fmt.Sprintf("spec.parameters[%d]", i)

		sec, ok := s.(map[string]interface{})
		if !ok {
			l.addError(field, "must be an object")
			continue
		}

		props, _ := sec["properties"].(map[string]interface{})

		for _, name := range maputil.SortedKeys(props) {
			if l.params[name] {
				l.addWarning(field+".properties."+name, "declared in more than one section")
			}

			l.params[name] = true

			prop, _ := props[name].(map[string]interface{})
			if _, ok := prop["type"]; !ok {
				l.addWarning(field+".properties."+name, "has no type")
			}
		}

		required, _ := sec["required"].([]interface{})
		for _, r := range required {
			name, _ := r.(string)
			if _, ok := props[name]; !ok {
				l.addError(field+".required", "%q is not declared in properties", name)
			}
		}
	}
}

func (l *linter) lintSteps(spec map[string]interface{}) {
	raw, _ := spec["steps"].([]interface{})
	if len(raw) == 0 {
		l.addError("spec.steps", "at least one step is required")
		return
	}

	seen := make(map[string]bool, len(raw))

	for i, s := range raw {
		field := fmt.Sprintf("spec.steps[%d]", i)

		step, ok := s.(map[string]interface{})
		if !ok {
			l.addError(field, "must be an object")
			continue
		}

		l.checkRefs(field, step, seen)

		id, _ := step["id"].(string)

		switch {
		case id == "":
			l.addError(field+".id", "is required")
		case seen[id]:
			l.addError(field+".id", "duplicate step id %q", id)
		default:
			seen[id] = true
		}

		if a, _ := step["action"].(string); a == "" {
			l.addError(field+".action", "is required")
		}

		if n, _ := step["name"].(string); n == "" {
			l.addWarning(field+".name", "is not set")
		}
	}

	if out, ok := spec["output"]; ok {
		l.checkRefs("spec.output", out, seen)
	}
}

// checkRefs reports parameters that are not declared and steps that have
// not run before v is evaluated.
func (l *linter) checkRefs(field string, v interface{}, ran map[string]bool) {
	for _, p := range template.ReferencedParameters(v) {
		if !l.params[p] {
			l.addError(field, "references undeclared parameter %q", p)
		}
	}

	for _, id := range template.ReferencedSteps(v) {
		if !ran[id] {
			l.addError(field, "references output of step %q before it runs", id)
		}
	}
}
