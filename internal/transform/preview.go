package transform

import (
	"github.com/hupe1980/xrd2template/internal/xrd"
)

// Preview summarizes what Transform would produce for a definition.
type Preview struct {
	Name              string           `json:"name"`
	Detection         xrd.Detection    `json:"detection"`
	ResourceKind      string           `json:"resourceKind"`
	RequiresNamespace bool             `json:"requiresNamespace"`
	MultiCluster      bool             `json:"multiCluster"`
	Clusters          []string         `json:"clusters,omitempty"`
	Versions          []VersionPreview `json:"versions"`
	TemplateCount     int              `json:"templateCount"`
}

// VersionPreview describes one declared version.
type VersionPreview struct {
	Name          string `json:"name"`
	Served        bool   `json:"served"`
	Referenceable bool   `json:"referenceable"`
	Deprecated    bool   `json:"deprecated"`
	HasSchema     bool   `json:"hasSchema"`
	TemplateName  string `json:"templateName,omitempty"`
}

// Preview returns a summary of def. It does not modify def.
func (t *Transformer) Preview(def *xrd.ResourceDefinition) (*Preview, error) {
	det, err := xrd.Detect(def)
	if err != nil {
		return nil, err
	}

	served := def.ServedVersions()

	p := &Preview{
		Name:              def.Metadata.Name,
		Detection:         det,
		ResourceKind:      xrd.ResourceKind(def, det),
		RequiresNamespace: xrd.RequiresNamespace(det),
		MultiCluster:      def.MultiCluster(),
		Clusters:          append([]string(nil), def.Clusters...),
		TemplateCount:     len(served),
	}

	for _, v := range def.Spec.Versions {
		vp := VersionPreview{
			Name:          v.Name,
			Served:        v.Served,
			Referenceable: v.Referenceable,
			Deprecated:    v.Deprecated,
			HasSchema:     v.Schema != nil && v.Schema.OpenAPIV3Schema != nil,
		}

		if v.Served {
			vp.TemplateName = TemplateName(def, v.Name, len(served) > 1)
		}

		p.Versions = append(p.Versions, vp)
	}

	return p, nil
}
