// Package template models Backstage scaffolder Template documents and
// converts them to plain maps for serialization.
package template

const (
	// APIVersion is the scaffolder template API version.
	APIVersion = "scaffolder.backstage.io/v1beta3"
	// Kind is the scaffolder template kind.
	Kind = "Template"
)

// Parameter section titles.
const (
	SectionMetadata      = "Resource Metadata"
	SectionConfiguration = "Resource Configuration"
	SectionPublishing    = "Publishing Configuration"
)

// Well-known parameter names.
const (
	ParamName              = "xrName"
	ParamNamespace         = "namespace"
	ParamCluster           = "cluster"
	ParamRepoURL           = "repoUrl"
	ParamBranch            = "branch"
	ParamCreatePullRequest = "createPullRequest"
)

// Template is a scaffolder Template.
type Template struct {
	APIVersion string   `json:"apiVersion"`
	Kind       string   `json:"kind"`
	Metadata   Metadata `json:"metadata"`
	Spec       Spec     `json:"spec"`
}

// Metadata holds template metadata.
type Metadata struct {
	Name        string            `json:"name"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Spec holds the template spec.
type Spec struct {
	Owner      string             `json:"owner,omitempty"`
	Type       string             `json:"type,omitempty"`
	Parameters []ParameterSection `json:"parameters"`
	Steps      []Step             `json:"steps"`
	Output     *Output            `json:"output,omitempty"`
}

// ParameterSection is one page of the generated form.
type ParameterSection struct {
	Title      string
	Required   []string
	Properties []Property
}

// Property is a single form field.
type Property struct {
	Name string
	// SourcePath is the path of the schema field under spec this property
	// was derived from. It is empty for synthetic properties.
	SourcePath  []string
	Title       string
	Description string
	Type        string
	Default     interface{}
	Enum        []interface{}
	Pattern     string
	MinLength   *int64
	MaxLength   *int64
	Minimum     *float64
	Maximum     *float64
	// ItemsType is the element type of scalar arrays.
	ItemsType string
	UIField   string
	UIOptions map[string]interface{}
}

// Step is a scaffolder action invocation.
type Step struct {
	ID     string
	Name   string
	Action string
	Input  map[string]interface{}
	If     string
}

// Output lists links shown when the template run finishes.
type Output struct {
	Links []Link
}

// Link is a single output link.
type Link struct {
	Title     string
	URL       string
	EntityRef string
	Icon      string
	If        string
}

// Section returns the parameter section with the given title, or nil.
func (s *Spec) Section(title string) *ParameterSection {
	for i := range s.Parameters {
		if s.Parameters[i].Title == title {
			return &s.Parameters[i]
		}
	}

	return nil
}

// Step returns the step with the given id, or nil.
func (s *Spec) Step(id string) *Step {
	for i := range s.Steps {
		if s.Steps[i].ID == id {
			return &s.Steps[i]
		}
	}

	return nil
}

// Property returns the named property of the section, or nil.
func (p *ParameterSection) Property(name string) *Property {
	for i := range p.Properties {
		if p.Properties[i].Name == name {
			return &p.Properties[i]
		}
	}

	return nil
}

// IsRequired reports whether name is in the section's required list.
func (p *ParameterSection) IsRequired(name string) bool {
	for _, r := range p.Required {
		if r == name {
			return true
		}
	}

	return false
}

// ParameterNames returns the names of all properties across all sections.
func (s *Spec) ParameterNames() map[string]bool {
	names := make(map[string]bool)

	for _, sec := range s.Parameters {
		for _, p := range sec.Properties {
			names[p.Name] = true
		}
	}

	return names
}
