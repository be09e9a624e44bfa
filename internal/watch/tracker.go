package watch

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/xrd2template/internal/maputil"
	"github.com/hupe1980/xrd2template/internal/plan"
)

// Change describes what happened to one template between two runs.
type Change struct {
	Template string
	Status   plan.Status
	// Summary is the parameter and step change summary of a changed
	// template.
	Summary string
}

// String renders the change as a status line.
func (c Change) String() string {
	if c.Summary == "" {
		return fmt.Sprintf("%s %s", c.Status, c.Template)
	}

	return fmt.Sprintf("%s %s: %s", c.Status, c.Template, c.Summary)
}

// Tracker remembers the templates of the previous run.
type Tracker struct {
	mu   sync.Mutex
	prev map[string]map[string]interface{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Update records docs, keyed by template name, as the latest run and
// returns the changes against the previous one. The first call returns no
// changes.
func (t *Tracker) Update(docs map[string]map[string]interface{}) []Change {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.prev
	t.prev = docs

	if prev == nil {
		return nil
	}

	var changes []Change

	for _, name := range maputil.SortedKeys(prev) {
		if _, ok := docs[name]; !ok {
			changes = append(changes, Change{Template: name, Status: plan.StatusRemoved})
		}
	}

	for _, name := range maputil.SortedKeys(docs) {
		old, ok := prev[name]
		if !ok {
			changes = append(changes, Change{Template: name, Status: plan.StatusAdded})
			continue
		}

		evo := plan.Analyze(old, docs[name])
		if evo.HasChanges() {
			changes = append(changes, Change{Template: name, Status: plan.StatusChanged, Summary: plan.Summary(evo)})
		}
	}

	return changes
}

// Summarize returns a one-line count of changes.
func Summarize(changes []Change) string {
	if len(changes) == 0 {
		return "no template changes"
	}

	counts := make(map[plan.Status]int)
	for _, c := range changes {
		counts[c.Status]++
	}

	var parts []string

	for _, s := range []plan.Status{plan.StatusAdded, plan.StatusChanged, plan.StatusRemoved} {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}

	return strings.Join(parts, ", ")
}
