// Package xrd models Crossplane CompositeResourceDefinitions (XRDs) as plain
// data and classifies them by API generation and scope.
package xrd

import (
	"sort"
	"strings"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const (
	// Group is the API group XRDs are served from.
	Group = "apiextensions.crossplane.io"
	// Kind is the XRD kind.
	Kind = "CompositeResourceDefinition"
	// Resource is the plural resource name used for cluster queries.
	Resource = "compositeresourcedefinitions"

	// ClustersAnnotation lists the clusters a definition is available in
	// (comma-separated) when it is read from a file rather than a cluster.
	ClustersAnnotation = "xrd2template.io/clusters"
)

// Scope is the XR scope declared by a v2 XRD.
type Scope string

// Supported scopes.
const (
	ScopeCluster       Scope = "Cluster"
	ScopeNamespaced    Scope = "Namespaced"
	ScopeLegacyCluster Scope = "LegacyCluster"
)

// Valid reports whether s is a recognized scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeCluster, ScopeNamespaced, ScopeLegacyCluster:
		return true
	}

	return false
}

// ResourceDefinition is a parsed CompositeResourceDefinition.
type ResourceDefinition struct {
	APIVersion string   `json:"apiVersion"`
	Kind       string   `json:"kind"`
	Metadata   Metadata `json:"metadata"`
	Spec       Spec     `json:"spec"`

	// Clusters holds the names of the clusters the definition was found in.
	// It is filled by the loaders, not decoded from the document.
	Clusters []string `json:"-"`
}

// Metadata is the subset of object metadata the transformer needs.
type Metadata struct {
	Name        string            `json:"name"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Spec is the XRD spec.
type Spec struct {
	Group                 string          `json:"group"`
	Names                 Names           `json:"names"`
	ClaimNames            *Names          `json:"claimNames,omitempty"`
	Scope                 Scope           `json:"scope,omitempty"`
	DefaultCompositionRef *CompositionRef `json:"defaultCompositionRef,omitempty"`
	Versions              []Version       `json:"versions"`
}

// Names identifies a kind and its resource names.
type Names struct {
	Kind     string `json:"kind"`
	ListKind string `json:"listKind,omitempty"`
	Plural   string `json:"plural,omitempty"`
	Singular string `json:"singular,omitempty"`
}

// CompositionRef references a Composition by name.
type CompositionRef struct {
	Name string `json:"name"`
}

// Version is one served or unserved version of an XRD.
type Version struct {
	Name               string         `json:"name"`
	Served             bool           `json:"served"`
	Referenceable      bool           `json:"referenceable"`
	Deprecated         bool           `json:"deprecated,omitempty"`
	DeprecationWarning *string        `json:"deprecationWarning,omitempty"`
	Schema             *VersionSchema `json:"schema,omitempty"`
}

// VersionSchema wraps the OpenAPI v3 schema of a version.
type VersionSchema struct {
	OpenAPIV3Schema *apiextensionsv1.JSONSchemaProps `json:"openAPIV3Schema,omitempty"`
}

// ServedVersions returns the versions marked served, in declaration order.
func (d *ResourceDefinition) ServedVersions() []Version {
	var out []Version

	for _, v := range d.Spec.Versions {
		if v.Served {
			out = append(out, v)
		}
	}

	return out
}

// BaseName returns the plural resource name, falling back to metadata.name.
func (d *ResourceDefinition) BaseName() string {
	if d.Spec.Names.Plural != "" {
		return d.Spec.Names.Plural
	}

	return d.Metadata.Name
}

// GroupVersion returns the GroupVersion instances of version v belong to.
func (d *ResourceDefinition) GroupVersion(v string) schema.GroupVersion {
	return schema.GroupVersion{Group: d.Spec.Group, Version: v}
}

// MultiCluster reports whether the definition is associated with more than
// one cluster.
func (d *ResourceDefinition) MultiCluster() bool {
	return len(d.Clusters) > 1
}

// AddCluster records that the definition is available in cluster name.
// Duplicates are ignored and the list is kept sorted.
func (d *ResourceDefinition) AddCluster(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}

	for _, c := range d.Clusters {
		if c == name {
			return
		}
	}

	d.Clusters = append(d.Clusters, name)
	sort.Strings(d.Clusters)
}
