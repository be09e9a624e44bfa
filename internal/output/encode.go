package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// keyRank orders well-known template keys. Unranked keys follow in
// alphabetical order.
var keyRank = func() map[string]int {
	order := []string{
		"apiVersion", "kind", "metadata", "spec",
		"id", "name", "title", "description",
		"owner", "type", "action", "if", "input",
		"tags", "labels", "annotations",
		"required", "properties", "parameters", "steps", "output",
	}

	m := make(map[string]int, len(order))
	for i, k := range order {
		m[k] = i
	}

	return m
}()

// EncodeOptions configures YAML encoding.
type EncodeOptions struct {
	// Header is emitted as a comment above the document.
	Header string
	// Indent is the number of spaces per level (default 2).
	Indent int
}

// EncodeYAML renders doc as YAML with apiVersion, kind, metadata and spec
// first and a stable order everywhere else.
func EncodeYAML(doc map[string]interface{}, opts EncodeOptions) ([]byte, error) {
	if opts.Indent == 0 {
		opts.Indent = 2
	}

	node, err := toNode(doc)
	if err != nil {
		return nil, err
	}

	node.HeadComment = opts.Header

	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(opts.Indent)

	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("serializing YAML: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("serializing YAML: %w", err)
	}

	return buf.Bytes(), nil
}

// EncodeJSON renders doc as indented JSON with a trailing newline.
func EncodeJSON(doc map[string]interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing JSON: %w", err)
	}

	return append(data, '\n'), nil
}

func toNode(v interface{}) (*yaml.Node, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

		for _, k := range orderedKeys(val) {
			child, err := toNode(val[k])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}

			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				child,
			)
		}

		return n, nil
	case []interface{}:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}

		for i, item := range val {
			child, err := toNode(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}

			n.Content = append(n.Content, child)
		}

		return n, nil
	default:
		var n yaml.Node
		if err := n.Encode(val); err != nil {
			return nil, err
		}

		return &n, nil
	}
}

func orderedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		ri, iok := keyRank[keys[i]]
		rj, jok := keyRank[keys[j]]

		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return keys[i] < keys[j]
		}
	})

	return keys
}
