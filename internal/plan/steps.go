package plan

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/hupe1980/xrd2template/internal/maputil"
)

// StepChange is a change to one workflow step between two renderings of a
// template.
type StepChange struct {
	Type     ChangeType `json:"type"`
	ID       string     `json:"id"`
	Action   string     `json:"action,omitempty"`
	Details  string     `json:"details"`
	Breaking bool       `json:"breaking"`
}

// CompareSteps compares the spec.steps of two template documents by step
// id. Removing a step or swapping its action is breaking, since downstream
// expressions may read its output.
func CompareSteps(oldDoc, newDoc map[string]interface{}) []StepChange {
	oldIdx, oldOrder := indexSteps(oldDoc)
	newIdx, newOrder := indexSteps(newDoc)

	var changes []StepChange

	for _, id := range maputil.SortedKeys(oldIdx) {
		if _, ok := newIdx[id]; !ok {
			changes = append(changes, StepChange{
				Type:     ChangeRemoved,
				ID:       id,
				Action:   action(oldIdx[id]),
				Details:  "step removed",
				Breaking: true,
			})
		}
	}

	for _, id := range maputil.SortedKeys(newIdx) {
		ns := newIdx[id]

		prev, ok := oldIdx[id]
		if !ok {
			changes = append(changes, StepChange{
				Type:    ChangeAdded,
				ID:      id,
				Action:  action(ns),
				Details: "step added",
			})

			continue
		}

		switch {
		case action(prev) != action(ns):
			changes = append(changes, StepChange{
				Type:     ChangeModified,
				ID:       id,
				Action:   action(ns),
				Details:  fmt.Sprintf("action changed: %s -> %s", action(prev), action(ns)),
				Breaking: true,
			})
		case !reflect.DeepEqual(prev, ns):
			changes = append(changes, StepChange{
				Type:    ChangeModified,
				ID:      id,
				Action:  action(ns),
				Details: "step input modified",
			})
		case oldOrder[id] != newOrder[id]:
			changes = append(changes, StepChange{
				Type:    ChangeModified,
				ID:      id,
				Action:  action(ns),
				Details: fmt.Sprintf("moved from position %d to %d", oldOrder[id]+1, newOrder[id]+1),
			})
		}
	}

	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].Breaking != changes[j].Breaking {
			return changes[i].Breaking
		}

		return changes[i].ID < changes[j].ID
	})

	return changes
}

func indexSteps(doc map[string]interface{}) (map[string]map[string]interface{}, map[string]int) {
	idx := make(map[string]map[string]interface{})
	order := make(map[string]int)

	raw, _ := maputil.GetPath(doc, "spec", "steps")
	list, _ := raw.([]interface{})

	for i, s := range list {
		sm, ok := s.(map[string]interface{})
		if !ok {
			continue
		}

		id, ok := sm["id"].(string)
		if !ok {
			continue
		}

		idx[id] = sm
		order[id] = i
	}

	return idx, order
}

func action(step map[string]interface{}) string {
	a, _ := step["action"].(string)
	return a
}
