// Package plan compares generated templates with the ones already on disk:
// textual diffs plus parameter and step changes classified as breaking or
// not.
package plan

import (
	"encoding/json"
	"fmt"
	"io"

	sigsyaml "sigs.k8s.io/yaml"

	"github.com/hupe1980/xrd2template/internal/maputil"
)

// Status is the outcome for one template.
type Status string

const (
	StatusAdded     Status = "added"
	StatusRemoved   Status = "removed"
	StatusChanged   Status = "changed"
	StatusUnchanged Status = "unchanged"
)

// TemplatePlan is the comparison result for one template name.
type TemplatePlan struct {
	Name      string      `json:"name"`
	Status    Status      `json:"status"`
	Diff      *DiffResult `json:"-"`
	Evolution *Evolution  `json:"evolution,omitempty"`
}

// Plan is the comparison of a generated template set with an existing one.
type Plan struct {
	Templates []TemplatePlan `json:"templates"`
}

// Build compares existing and generated renderings keyed by template name.
// Names only in existing are reported as removed, which callers may ignore
// when the existing directory holds unrelated templates.
func Build(existing, generated map[string][]byte, opts DiffOptions) (*Plan, error) {
	names := make(map[string]struct{}, len(existing)+len(generated))
	for n := range existing {
		names[n] = struct{}{}
	}

	for n := range generated {
		names[n] = struct{}{}
	}

	p := &Plan{}

	for _, name := range maputil.SortedKeys(names) {
		oldData, hadOld := existing[name]
		newData, hasNew := generated[name]

		tp := TemplatePlan{Name: name}

		switch {
		case !hadOld:
			tp.Status = StatusAdded
		case !hasNew:
			tp.Status = StatusRemoved
		}

		dopts := opts
		dopts.OldLabel = labelFor(opts.OldLabel, name)
		dopts.NewLabel = labelFor(opts.NewLabel, name)

		diff, err := ComputeDiff(string(oldData), string(newData), dopts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		tp.Diff = diff

		if hadOld && hasNew {
			if !diff.HasDifferences {
				tp.Status = StatusUnchanged
				p.Templates = append(p.Templates, tp)

				continue
			}

			tp.Status = StatusChanged

			evo, err := analyzeBytes(oldData, newData)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}

			tp.Evolution = evo
		}

		p.Templates = append(p.Templates, tp)
	}

	return p, nil
}

func labelFor(prefix, name string) string {
	if prefix == "" {
		return name
	}

	return prefix + "/" + name
}

func analyzeBytes(oldData, newData []byte) (*Evolution, error) {
	var oldDoc, newDoc map[string]interface{}

	if err := sigsyaml.Unmarshal(oldData, &oldDoc); err != nil {
		return nil, fmt.Errorf("parsing existing template: %w", err)
	}

	if err := sigsyaml.Unmarshal(newData, &newDoc); err != nil {
		return nil, fmt.Errorf("parsing generated template: %w", err)
	}

	return Analyze(oldDoc, newDoc), nil
}

// Count returns the number of templates with status s.
func (p *Plan) Count(s Status) int {
	n := 0

	for _, t := range p.Templates {
		if t.Status == s {
			n++
		}
	}

	return n
}

// HasChanges reports whether any template would be added, changed, or
// removed.
func (p *Plan) HasChanges() bool {
	return len(p.Templates) != p.Count(StatusUnchanged)
}

// HasBreakingChanges reports whether any changed template has a breaking
// parameter or step change.
func (p *Plan) HasBreakingChanges() bool {
	for _, t := range p.Templates {
		if t.Evolution != nil && t.Evolution.BreakingCount() > 0 {
			return true
		}
	}

	return false
}

// WriteText renders the plan: one status line per template, followed by
// the change summary and, when showDiff is set, the unified diff.
func (p *Plan) WriteText(w io.Writer, showDiff, color bool) {
	for _, t := range p.Templates {
		_, _ = fmt.Fprintf(w, "%s %s (%s)\n", statusIcon(t.Status), t.Name, t.Status)

		if t.Evolution != nil && t.Evolution.HasChanges() {
			_, _ = fmt.Fprintf(w, "    %s\n", Summary(t.Evolution))
		}

		if showDiff && t.Status != StatusUnchanged && t.Diff != nil {
			WriteDiff(w, t.Diff, color)
		}
	}

	_, _ = fmt.Fprintf(w, "\nPlan: %d to add, %d to change, %d to remove, %d unchanged.\n",
		p.Count(StatusAdded), p.Count(StatusChanged), p.Count(StatusRemoved), p.Count(StatusUnchanged))
}

// WriteJSON renders the plan as indented JSON.
func (p *Plan) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(p)
}

func statusIcon(s Status) string {
	switch s {
	case StatusAdded:
		return "+"
	case StatusRemoved:
		return "-"
	case StatusChanged:
		return "~"
	default:
		return "="
	}
}
