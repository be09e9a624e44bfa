package xrd

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/runtime/schema"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/hupe1980/xrd2template/internal/yamlutil"
)

// Parse decodes a single YAML or JSON document into a ResourceDefinition.
// It does not check the document kind; see ParseAll for filtering.
func Parse(data []byte) (*ResourceDefinition, error) {
	var def ResourceDefinition
	if err := sigsyaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decoding XRD: %w", err)
	}

	if v, ok := def.Metadata.Annotations[ClustersAnnotation]; ok {
		for _, c := range strings.Split(v, ",") {
			def.AddCluster(c)
		}
	}

	return &def, nil
}

// ParseAll splits a multi-document stream and returns every document that is
// a CompositeResourceDefinition. Other documents are skipped; skipped counts
// the documents that were not XRDs.
func ParseAll(data []byte) (defs []*ResourceDefinition, skipped int, err error) {
	for i, doc := range yamlutil.SplitDocuments(data) {
		var head struct {
			APIVersion string `json:"apiVersion"`
			Kind       string `json:"kind"`
		}

		if err := sigsyaml.Unmarshal(doc.Data, &head); err != nil {
			return nil, 0, fmt.Errorf("document %d (line %d): %w", i+1, doc.Line, err)
		}

		if !IsDefinition(head.APIVersion, head.Kind) {
			skipped++
			continue
		}

		def, err := Parse(doc.Data)
		if err != nil {
			return nil, 0, fmt.Errorf("document %d (line %d): %w", i+1, doc.Line, err)
		}

		defs = append(defs, def)
	}

	return defs, skipped, nil
}

// IsDefinition reports whether apiVersion and kind identify an XRD.
func IsDefinition(apiVersion, kind string) bool {
	if kind != Kind {
		return false
	}

	gv, err := schema.ParseGroupVersion(apiVersion)
	if err != nil {
		return false
	}

	return gv.Group == Group
}
