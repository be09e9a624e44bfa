package schema

// Leaf is a node reached by Walk that is not descended into further: a
// scalar, an array, or an object without declared properties.
type Leaf struct {
	// Path holds the property names from the walk root to the leaf.
	Path []string
	// Required is true when the leaf and every ancestor below the root are
	// required.
	Required bool
	Node     Node
}

// Visitor receives the leaves of a schema tree in property-name order.
type Visitor interface {
	VisitLeaf(leaf Leaf)
}

// VisitorFunc adapts a function to the Visitor interface.
type VisitorFunc func(leaf Leaf)

// VisitLeaf calls f.
func (f VisitorFunc) VisitLeaf(leaf Leaf) { f(leaf) }

// Walk visits the leaves under the properties of root. Objects with
// properties are descended into; everything else is a leaf.
func Walk(root *Object, v Visitor) {
	walkObject(root, nil, true, v)
}

func walkObject(o *Object, path []string, required bool, v Visitor) {
	for _, p := range o.Properties {
		childPath := make([]string, len(path)+1)
		copy(childPath, path)
		childPath[len(path)] = p.Name

		childRequired := required && p.Required

		if obj, ok := p.Node.(*Object); ok && len(obj.Properties) > 0 {
			walkObject(obj, childPath, childRequired, v)
			continue
		}

		v.VisitLeaf(Leaf{Path: childPath, Required: childRequired, Node: p.Node})
	}
}

// Leaves collects the leaves under root.
func Leaves(root *Object) []Leaf {
	var out []Leaf

	Walk(root, VisitorFunc(func(l Leaf) {
		out = append(out, l)
	}))

	return out
}
