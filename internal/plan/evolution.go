package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Evolution holds the semantic changes between two renderings of one
// template.
type Evolution struct {
	ParameterChanges []ParameterChange `json:"parameterChanges"`
	StepChanges      []StepChange      `json:"stepChanges"`
}

// Analyze compares two template documents.
func Analyze(oldDoc, newDoc map[string]interface{}) *Evolution {
	return &Evolution{
		ParameterChanges: CompareParameters(oldDoc, newDoc),
		StepChanges:      CompareSteps(oldDoc, newDoc),
	}
}

// HasChanges returns true if there are any changes.
func (e *Evolution) HasChanges() bool {
	return len(e.ParameterChanges) > 0 || len(e.StepChanges) > 0
}

// BreakingCount returns the number of breaking changes.
func (e *Evolution) BreakingCount() int {
	n := 0

	for _, c := range e.ParameterChanges {
		if c.Breaking {
			n++
		}
	}

	for _, c := range e.StepChanges {
		if c.Breaking {
			n++
		}
	}

	return n
}

// NonBreakingCount returns the number of non-breaking changes.
func (e *Evolution) NonBreakingCount() int {
	return len(e.ParameterChanges) + len(e.StepChanges) - e.BreakingCount()
}

// FormatTable writes the evolution as a human-readable list.
func FormatTable(w io.Writer, e *Evolution) {
	if !e.HasChanges() {
		_, _ = fmt.Fprintln(w, "No changes detected.")
		return
	}

	if len(e.ParameterChanges) > 0 {
		_, _ = fmt.Fprintln(w, "Parameter Changes:")
		_, _ = fmt.Fprintln(w, strings.Repeat("-", 60))

		for _, c := range e.ParameterChanges {
			_, _ = fmt.Fprintf(w, "  %s%-30s %s\n", changeIcon(c.Type, c.Breaking), c.Parameter, c.Details)

			if c.Impact != "" {
				_, _ = fmt.Fprintf(w, "    Impact: %s\n", c.Impact)
			}
		}

		_, _ = fmt.Fprintln(w)
	}

	if len(e.StepChanges) > 0 {
		_, _ = fmt.Fprintln(w, "Step Changes:")
		_, _ = fmt.Fprintln(w, strings.Repeat("-", 60))

		for _, c := range e.StepChanges {
			ref := c.ID
			if c.Action != "" {
				ref = fmt.Sprintf("%s (%s)", c.ID, c.Action)
			}

			_, _ = fmt.Fprintf(w, "  %s%-30s %s\n", changeIcon(c.Type, c.Breaking), ref, c.Details)
		}

		_, _ = fmt.Fprintln(w)
	}

	breaking := e.BreakingCount()
	_, _ = fmt.Fprintf(w, "Breaking changes: %d, Non-breaking changes: %d\n", breaking, e.NonBreakingCount())

	if breaking > 0 {
		_, _ = fmt.Fprintln(w, "\nWARNING: Breaking changes detected! Scheduled runs and API callers may need updating.")
	}
}

// FormatJSON writes the evolution as JSON with a summary block.
func FormatJSON(w io.Writer, e *Evolution) error {
	out := struct {
		ParameterChanges []ParameterChange `json:"parameterChanges"`
		StepChanges      []StepChange      `json:"stepChanges"`
		Summary          struct {
			Breaking    int `json:"breaking"`
			NonBreaking int `json:"nonBreaking"`
		} `json:"summary"`
	}{
		ParameterChanges: e.ParameterChanges,
		StepChanges:      e.StepChanges,
	}
	out.Summary.Breaking = e.BreakingCount()
	out.Summary.NonBreaking = e.NonBreakingCount()

	if out.ParameterChanges == nil {
		out.ParameterChanges = []ParameterChange{}
	}

	if out.StepChanges == nil {
		out.StepChanges = []StepChange{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

// Summary returns a single-line summary, e.g.
// "+2 parameter(s) added, -1 parameter(s) removed, 1 step(s) changed".
func Summary(e *Evolution) string {
	if !e.HasChanges() {
		return "no changes"
	}

	var added, removed, modified int

	for _, c := range e.ParameterChanges {
		switch c.Type {
		case ChangeAdded:
			added++
		case ChangeRemoved:
			removed++
		case ChangeModified:
			modified++
		}
	}

	var parts []string

	if added > 0 {
		parts = append(parts, fmt.Sprintf("+%d parameter(s) added", added))
	}

	if removed > 0 {
		parts = append(parts, fmt.Sprintf("-%d parameter(s) removed", removed))
	}

	if modified > 0 {
		parts = append(parts, fmt.Sprintf("~%d parameter change(s)", modified))
	}

	if n := len(e.StepChanges); n > 0 {
		parts = append(parts, fmt.Sprintf("%d step(s) changed", n))
	}

	if b := e.BreakingCount(); b > 0 {
		parts = append(parts, fmt.Sprintf("%d breaking", b))
	}

	return strings.Join(parts, ", ")
}

func changeIcon(ct ChangeType, breaking bool) string {
	if breaking {
		return "! "
	}

	switch ct {
	case ChangeAdded:
		return "+ "
	case ChangeRemoved:
		return "- "
	case ChangeModified:
		return "~ "
	default:
		return "  "
	}
}
