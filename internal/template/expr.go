package template

import (
	"regexp"
	"sort"
)

// ParameterRef returns the template expression referencing parameter name.
func ParameterRef(name string) string {
	return "${{ parameters." + name + " }}"
}

// Expr wraps a raw expression body in template delimiters.
func Expr(body string) string {
	return "${{ " + body + " }}"
}

// StepOutput returns the expression reading output field of step id.
func StepOutput(id, field string) string {
	return Expr("steps['" + id + "'].output." + field)
}

var (
	parameterRefRegex = regexp.MustCompile(`\$\{\{[^}]*?\bparameters\.([A-Za-z0-9_]+)`)
	stepRefRegex      = regexp.MustCompile(`steps\[['"]([^'"]+)['"]\]`)
)

// ReferencedParameters returns the sorted, de-duplicated parameter names
// referenced by expressions anywhere inside v.
func ReferencedParameters(v interface{}) []string {
	return referenced(v, parameterRefRegex)
}

// ReferencedSteps returns the sorted, de-duplicated step ids whose output is
// read by expressions anywhere inside v.
func ReferencedSteps(v interface{}) []string {
	return referenced(v, stepRefRegex)
}

func referenced(v interface{}, re *regexp.Regexp) []string {
	seen := make(map[string]bool)
	collectRefs(v, re, seen)

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}

	sort.Strings(out)

	return out
}

func collectRefs(v interface{}, re *regexp.Regexp, seen map[string]bool) {
	switch val := v.(type) {
	case string:
		for _, m := range re.FindAllStringSubmatch(val, -1) {
			seen[m[1]] = true
		}
	case map[string]interface{}:
		for _, child := range val {
			collectRefs(child, re, seen)
		}
	case []interface{}:
		for _, child := range val {
			collectRefs(child, re, seen)
		}
	case map[string]string:
		for _, child := range val {
			collectRefs(child, re, seen)
		}
	}
}
