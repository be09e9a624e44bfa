package transform

import (
	"errors"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/hupe1980/xrd2template/internal/schema"
	"github.com/hupe1980/xrd2template/internal/steps"
	"github.com/hupe1980/xrd2template/internal/template"
	"github.com/hupe1980/xrd2template/internal/xrd"
)

// NamePattern restricts resource names to RFC 1123 labels.
const NamePattern = "^[a-z0-9]([-a-z0-9]*[a-z0-9])?$"

const (
	uiNamespacePicker = "KubernetesNamespacePicker"
	uiRepoURLPicker   = "RepoUrlPicker"
	defaultBranch     = "main"
)

// ErrMalformedSchema is returned when a version declares a schema block
// without a usable openAPIV3Schema.
var ErrMalformedSchema = errors.New("malformed schema")

// BuildParameterSections returns the form sections for one version of def:
// resource metadata, the flattened spec fields when there are any, and the
// publishing fields when git publishing is configured.
func BuildParameterSections(
	def *xrd.ResourceDefinition,
	det xrd.Detection,
	version xrd.Version,
	cfg steps.Config,
) ([]template.ParameterSection, error) {
	spec, err := specSchema(version)
	if err != nil {
		return nil, err
	}

	sections := []template.ParameterSection{metadataSection(def, det)}

	if spec != nil {
		sec, err := configurationSection(spec)
		if err != nil {
			return nil, err
		}

		if len(sec.Properties) > 0 {
			sections = append(sections, sec)
		}
	}

	if cfg.GitEnabled() {
		sections = append(sections, publishingSection(cfg.Publish.Phase.Git))
	}

	return sections, nil
}

// specSchema returns the spec object of version's schema, or nil when the
// version declares no schema or no spec properties.
func specSchema(version xrd.Version) (*schema.Object, error) {
	if version.Schema == nil {
		return nil, nil
	}

	root, err := schema.FromProps(version.Schema.OpenAPIV3Schema)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSchema, err)
	}

	obj, ok := root.(*schema.Object)
	if !ok {
		return nil, fmt.Errorf("%w: root must be an object, got %s", ErrMalformedSchema, root.Type())
	}

	p := obj.Property("spec")
	if p == nil {
		return nil, nil
	}

	spec, ok := p.Node.(*schema.Object)
	if !ok {
		return nil, fmt.Errorf("%w: spec must be an object, got %s", ErrMalformedSchema, p.Node.Type())
	}

	return spec, nil
}

func metadataSection(def *xrd.ResourceDefinition, det xrd.Detection) template.ParameterSection {
	kind := xrd.ResourceKind(def, det)
	maxLen := int64(validation.DNS1123LabelMaxLength)

	sec := template.ParameterSection{
		Title:    template.SectionMetadata,
		Required: []string{template.ParamName},
		Properties: []template.Property{{
			Name:        template.ParamName,
			Title:       "Name",
			Description: fmt.Sprintf("Name of the %s", kind),
			Type:        schema.TypeString,
			Pattern:     NamePattern,
			MaxLength:   &maxLen,
		}},
	}

	if xrd.RequiresNamespace(det) {
		sec.Required = append(sec.Required, template.ParamNamespace)
		sec.Properties = append(sec.Properties, template.Property{
			Name:        template.ParamNamespace,
			Title:       "Namespace",
			Description: fmt.Sprintf("Namespace to create the %s in", kind),
			Type:        schema.TypeString,
			UIField:     uiNamespacePicker,
		})
	}

	if def.MultiCluster() {
		enum := make([]interface{}, len(def.Clusters))
		for i, c := range def.Clusters {
			enum[i] = c
		}

		sec.Required = append(sec.Required, template.ParamCluster)
		sec.Properties = append(sec.Properties, template.Property{
			Name:        template.ParamCluster,
			Title:       "Cluster",
			Description: "Cluster to create the resource in",
			Type:        schema.TypeString,
			Enum:        enum,
		})
	}

	return sec
}

// configurationSection flattens the leaves of spec into properties named
// parent_leaf. Each property remembers its source path so the manifest can
// be rebuilt in the original shape. Two leaves flattening to the same name,
// such as db_size and db.size, are a malformed schema.
func configurationSection(spec *schema.Object) (template.ParameterSection, error) {
	sec := template.ParameterSection{Title: template.SectionConfiguration}
	seen := make(map[string][]string)

	var conflict error

	schema.Walk(spec, schema.VisitorFunc(func(leaf schema.Leaf) {
		prop := propertyFromLeaf(leaf)

		if prev, ok := seen[prop.Name]; ok {
			if conflict == nil {
				conflict = fmt.Errorf("%w: spec.%s and spec.%s both map to parameter %q",
					ErrMalformedSchema, strings.Join(prev, "."), strings.Join(leaf.Path, "."), prop.Name)
			}

			return
		}

		seen[prop.Name] = leaf.Path
		sec.Properties = append(sec.Properties, prop)

		if leaf.Required {
			sec.Required = append(sec.Required, prop.Name)
		}
	}))

	if conflict != nil {
		return template.ParameterSection{}, conflict
	}

	return sec, nil
}

func propertyFromLeaf(leaf schema.Leaf) template.Property {
	meta := leaf.Node.Info()
	name := strings.Join(leaf.Path, "_")

	title := meta.Title
	if title == "" {
		title = leaf.Path[len(leaf.Path)-1]
	}

	prop := template.Property{
		Name:        name,
		SourcePath:  append([]string(nil), leaf.Path...),
		Title:       title,
		Description: meta.Description,
		Type:        leaf.Node.Type(),
		Default:     meta.Default,
		Enum:        meta.Enum,
		Pattern:     meta.Pattern,
		MinLength:   meta.MinLength,
		MaxLength:   meta.MaxLength,
		Minimum:     meta.Minimum,
		Maximum:     meta.Maximum,
	}

	if arr, ok := leaf.Node.(*schema.Array); ok {
		if items, ok := arr.Items.(*schema.Scalar); ok {
			prop.ItemsType = items.Kind
		}
	}

	return prop
}

func publishingSection(git *steps.GitConfig) template.ParameterSection {
	provider := git.ProviderName()

	branch := git.Branch
	if branch == "" {
		branch = defaultBranch
	}

	repo := template.Property{
		Name:        template.ParamRepoURL,
		Title:       "Repository",
		Description: "Repository the manifest is published to",
		Type:        schema.TypeString,
		UIField:     uiRepoURLPicker,
		UIOptions: map[string]interface{}{
			"allowedHosts": []interface{}{provider + ".com"},
		},
	}

	if git.RepoURL != "" {
		repo.Default = git.RepoURL
	}

	section := template.ParameterSection{
		Title:    template.SectionPublishing,
		Required: []string{template.ParamRepoURL},
		Properties: []template.Property{
			repo,
			{
				Name:        template.ParamBranch,
				Title:       "Branch",
				Description: "Target branch",
				Type:        schema.TypeString,
				Default:     branch,
			},
		},
	}

	if git.PullRequest {
		section.Properties = append(section.Properties, template.Property{
			Name:        template.ParamCreatePullRequest,
			Title:       "Create pull request",
			Description: "Open a pull request instead of pushing directly",
			Type:        schema.TypeBoolean,
			Default:     true,
		})
	}

	return section
}
