package plan

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/hupe1980/xrd2template/internal/maputil"
)

// ChangeType represents the type of change detected.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// ParameterChange is a change to one form parameter between two renderings
// of a template.
type ParameterChange struct {
	Type      ChangeType `json:"type"`
	Parameter string     `json:"parameter"`
	Details   string     `json:"details"`
	Impact    string     `json:"impact,omitempty"`
	Breaking  bool       `json:"breaking"`
}

// param is the comparable view of a parameter property.
type param struct {
	Type     string
	Required bool
	Default  interface{}
	Enum     []interface{}
}

// CompareParameters compares the spec.parameters of two template documents.
// A change is breaking when a caller that filled the old form would be
// rejected by the new one. Breaking changes sort first.
func CompareParameters(oldDoc, newDoc map[string]interface{}) []ParameterChange {
	oldParams := extractParams(oldDoc)
	newParams := extractParams(newDoc)

	var changes []ParameterChange

	for _, name := range maputil.SortedKeys(oldParams) {
		if _, ok := newParams[name]; !ok {
			changes = append(changes, ParameterChange{
				Type:      ChangeRemoved,
				Parameter: name,
				Details:   fmt.Sprintf("parameter removed (was %s)", oldParams[name].Type),
				Impact:    "Requests still sending this value will be rejected",
				Breaking:  true,
			})
		}
	}

	for _, name := range maputil.SortedKeys(newParams) {
		np := newParams[name]

		op, ok := oldParams[name]
		if !ok {
			changes = append(changes, classifyAdded(name, np))
			continue
		}

		changes = append(changes, compareParam(name, op, np)...)
	}

	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].Breaking != changes[j].Breaking {
			return changes[i].Breaking
		}

		return changes[i].Parameter < changes[j].Parameter
	})

	return changes
}

func classifyAdded(name string, p param) ParameterChange {
	if p.Required && p.Default == nil {
		return ParameterChange{
			Type:      ChangeAdded,
			Parameter: name,
			Details:   fmt.Sprintf("required %s parameter added (no default)", p.Type),
			Impact:    "Existing requests must now supply this value",
			Breaking:  true,
		}
	}

	return ParameterChange{
		Type:      ChangeAdded,
		Parameter: name,
		Details:   fmt.Sprintf("%s parameter added", p.Type),
	}
}

func compareParam(name string, op, np param) []ParameterChange {
	var changes []ParameterChange

	if op.Type != np.Type {
		changes = append(changes, ParameterChange{
			Type:      ChangeModified,
			Parameter: name,
			Details:   fmt.Sprintf("type changed: %s -> %s", op.Type, np.Type),
			Impact:    "Existing values may fail validation with the new type",
			Breaking:  true,
		})
	}

	switch {
	case !op.Required && np.Required:
		changes = append(changes, ParameterChange{
			Type:      ChangeModified,
			Parameter: name,
			Details:   "now required",
			Impact:    "Existing requests must now supply this value",
			Breaking:  np.Default == nil,
		})
	case op.Required && !np.Required:
		changes = append(changes, ParameterChange{
			Type:      ChangeModified,
			Parameter: name,
			Details:   "no longer required",
		})
	}

	switch removed := missingValues(op.Enum, np.Enum); {
	case len(np.Enum) > 0 && len(removed) > 0:
		changes = append(changes, ParameterChange{
			Type:      ChangeModified,
			Parameter: name,
			Details:   fmt.Sprintf("allowed values removed: %v", removed),
			Impact:    "Existing requests using these values will be rejected",
			Breaking:  true,
		})
	case len(op.Enum)+len(np.Enum) > 0 && !reflect.DeepEqual(op.Enum, np.Enum):
		changes = append(changes, ParameterChange{
			Type:      ChangeModified,
			Parameter: name,
			Details:   "allowed values changed",
		})
	}

	if !reflect.DeepEqual(op.Default, np.Default) {
		changes = append(changes, ParameterChange{
			Type:      ChangeModified,
			Parameter: name,
			Details:   fmt.Sprintf("default changed: %v -> %v", display(op.Default), display(np.Default)),
		})
	}

	return changes
}

// extractParams flattens all parameter sections of a template document.
func extractParams(doc map[string]interface{}) map[string]param {
	out := make(map[string]param)

	raw, _ := maputil.GetPath(doc, "spec", "parameters")
	sections, _ := raw.([]interface{})

	for _, s := range sections {
		sec, ok := s.(map[string]interface{})
		if !ok {
			continue
		}

		required := make(map[string]bool)

		if list, ok := sec["required"].([]interface{}); ok {
			for _, r := range list {
				if name, ok := r.(string); ok {
					required[name] = true
				}
			}
		}

		props, _ := sec["properties"].(map[string]interface{})
		for name, p := range props {
			pm, _ := p.(map[string]interface{})
			typ, _ := pm["type"].(string)
			enum, _ := pm["enum"].([]interface{})

			out[name] = param{
				Type:     typ,
				Required: required[name],
				Default:  pm["default"],
				Enum:     enum,
			}
		}
	}

	return out
}

// missingValues returns the elements of old not present in new.
func missingValues(old, new []interface{}) []interface{} {
	var out []interface{}

	for _, o := range old {
		found := false

		for _, n := range new {
			if reflect.DeepEqual(o, n) {
				found = true
				break
			}
		}

		if !found {
			out = append(out, o)
		}
	}

	return out
}

func display(v interface{}) string {
	if v == nil {
		return "<none>"
	}

	return fmt.Sprintf("%v", v)
}
