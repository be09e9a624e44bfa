package output

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Format names.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Format is a named document encoding.
type Format struct {
	Name string
	// Extension is the file extension including the dot.
	Extension string
	// Separator precedes every document when several are streamed.
	Separator string
	Encode    func(doc map[string]interface{}) ([]byte, error)
}

// FileName returns the file name used for a document called name.
func (f Format) FileName(name string) string {
	return name + f.Extension
}

// Registry maps format names to Formats.
type Registry struct {
	mu      sync.RWMutex
	formats map[string]Format
}

// NewRegistry creates an empty format registry.
func NewRegistry() *Registry {
	return &Registry{
		formats: make(map[string]Format),
	}
}

// Register adds f under f.Name. Existing entries for the same name are
// overwritten.
func (r *Registry) Register(f Format) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.formats[f.Name] = f
}

// Format returns the format registered under name.
func (r *Registry) Format(name string) (Format, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.formats[name]
	if !ok {
		return Format{}, fmt.Errorf("unknown output format %q (available: %s)", name, r.available())
	}

	return f, nil
}

// Formats returns the sorted list of registered format names.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.names()
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.formats))
	for name := range r.formats {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (r *Registry) available() string {
	names := r.names()
	if len(names) == 0 {
		return "none"
	}

	return strings.Join(names, ", ")
}

// DefaultRegistry returns a registry with the yaml and json formats. YAML
// documents carry header as a leading comment.
func DefaultRegistry(header string) *Registry {
	r := NewRegistry()

	r.Register(Format{
		Name:      FormatYAML,
		Extension: ".yaml",
		Separator: "---\n",
		Encode: func(doc map[string]interface{}) ([]byte, error) {
			return EncodeYAML(doc, EncodeOptions{Header: header})
		},
	})

	r.Register(Format{
		Name:      FormatJSON,
		Extension: ".json",
		Encode:    EncodeJSON,
	})

	return r
}
