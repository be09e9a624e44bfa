// Package schema converts OpenAPI v3 schemas into a closed set of typed
// nodes (object, array, scalar) and walks them.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
)

// Scalar types.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
)

// Node is a schema node. It is implemented by *Object, *Array and *Scalar only.
type Node interface {
	// Type returns the JSON Schema type of the node.
	Type() string
	// Info returns the shared annotations of the node.
	Info() *Meta

	node()
}

// Meta holds annotations shared by every node kind.
type Meta struct {
	Title       string
	Description string
	Default     interface{}
	Enum        []interface{}
	Pattern     string
	Format      string
	MinLength   *int64
	MaxLength   *int64
	Minimum     *float64
	Maximum     *float64
}

// Property is a named child of an object.
type Property struct {
	Name     string
	Required bool
	Node     Node
}

// Object is an object node. Properties are sorted by name.
type Object struct {
	Meta
	Properties []Property
}

// Array is an array node. Items is nil when the schema does not describe
// its elements.
type Array struct {
	Meta
	Items Node
}

// Scalar is a string, integer, number or boolean node. Int-or-string fields
// are reported as strings.
type Scalar struct {
	Meta
	Kind string
}

func (o *Object) Type() string { return TypeObject }
func (o *Object) Info() *Meta  { return &o.Meta }
func (*Object) node()          {}

func (a *Array) Type() string { return TypeArray }
func (a *Array) Info() *Meta  { return &a.Meta }
func (*Array) node()          {}

func (s *Scalar) Type() string { return s.Kind }
func (s *Scalar) Info() *Meta  { return &s.Meta }
func (*Scalar) node()          {}

// Property returns the named property of o, or nil.
func (o *Object) Property(name string) *Property {
	for i := range o.Properties {
		if o.Properties[i].Name == name {
			return &o.Properties[i]
		}
	}

	return nil
}

// FromProps converts a Kubernetes JSONSchemaProps tree into a Node.
// An untyped node with properties is treated as an object; an untyped node
// without properties as a free-form object.
func FromProps(p *apiextensionsv1.JSONSchemaProps) (Node, error) {
	if p == nil {
		return nil, fmt.Errorf("schema is null")
	}

	return fromProps(p, "")
}

func fromProps(p *apiextensionsv1.JSONSchemaProps, path string) (Node, error) {
	meta, err := metaFrom(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", displayPath(path), err)
	}

	typ := p.Type
	if typ == "" {
		switch {
		case p.XIntOrString:
			typ = TypeString
		case p.Items != nil:
			typ = TypeArray
		default:
			typ = TypeObject
		}
	}

	switch typ {
	case TypeObject:
		obj := &Object{Meta: meta}

		required := make(map[string]bool, len(p.Required))
		for _, r := range p.Required {
			required[r] = true
		}

		names := make([]string, 0, len(p.Properties))
		for name := range p.Properties {
			names = append(names, name)
		}

		sort.Strings(names)

		for _, name := range names {
			child := p.Properties[name]

			n, err := fromProps(&child, joinPath(path, name))
			if err != nil {
				return nil, err
			}

			obj.Properties = append(obj.Properties, Property{Name: name, Required: required[name], Node: n})
		}

		return obj, nil
	case TypeArray:
		arr := &Array{Meta: meta}

		if p.Items != nil && p.Items.Schema != nil {
			items, err := fromProps(p.Items.Schema, joinPath(path, "[]"))
			if err != nil {
				return nil, err
			}

			arr.Items = items
		}

		return arr, nil
	case TypeString, TypeInteger, TypeNumber, TypeBoolean:
		return &Scalar{Meta: meta, Kind: typ}, nil
	default:
		return nil, fmt.Errorf("%s: unsupported type %q", displayPath(path), typ)
	}
}

func metaFrom(p *apiextensionsv1.JSONSchemaProps) (Meta, error) {
	m := Meta{
		Title:       p.Title,
		Description: p.Description,
		Pattern:     p.Pattern,
		Format:      p.Format,
		MinLength:   p.MinLength,
		MaxLength:   p.MaxLength,
		Minimum:     p.Minimum,
		Maximum:     p.Maximum,
	}

	if p.Default != nil && len(p.Default.Raw) > 0 {
		if err := json.Unmarshal(p.Default.Raw, &m.Default); err != nil {
			return Meta{}, fmt.Errorf("decoding default: %w", err)
		}
	}

	for _, e := range p.Enum {
		var v interface{}
		if err := json.Unmarshal(e.Raw, &v); err != nil {
			return Meta{}, fmt.Errorf("decoding enum value: %w", err)
		}

		m.Enum = append(m.Enum, v)
	}

	return m, nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}

	return prefix + "." + name
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}

	return path
}
