package xrd

import (
	"errors"
	"fmt"
	"strings"
)

// APIGeneration is the Crossplane XRD API generation.
type APIGeneration string

// Supported generations.
const (
	V1 APIGeneration = "v1"
	V2 APIGeneration = "v2"
)

var (
	// ErrUnsupportedAPIVersion is returned for apiVersions other than */v1 and */v2.
	ErrUnsupportedAPIVersion = errors.New("unsupported XRD apiVersion")
	// ErrUnknownScope is returned for v2 documents without a recognized scope.
	ErrUnknownScope = errors.New("v2 XRD has no recognized scope")
)

// Detection is the classification of a definition.
type Detection struct {
	APIVersion APIGeneration `json:"apiVersion"`
	Scope      Scope         `json:"scope"`
	UsesClaims bool          `json:"usesClaims"`
}

// Detect classifies def by API generation, scope and claim usage.
//
// v1 definitions have no scope field: they are reported as LegacyCluster
// when they offer a claim and as Cluster otherwise. v2 definitions must
// declare a recognized scope.
func Detect(def *ResourceDefinition) (Detection, error) {
	switch {
	case strings.HasSuffix(def.APIVersion, "/v1"):
		det := Detection{APIVersion: V1, Scope: ScopeCluster}
		if def.Spec.ClaimNames != nil {
			det.UsesClaims = true
			det.Scope = ScopeLegacyCluster
		}

		return det, nil
	case strings.HasSuffix(def.APIVersion, "/v2"):
		if !def.Spec.Scope.Valid() {
			return Detection{}, fmt.Errorf("%w: %q", ErrUnknownScope, def.Spec.Scope)
		}

		return Detection{
			APIVersion: V2,
			Scope:      def.Spec.Scope,
			UsesClaims: def.Spec.Scope == ScopeLegacyCluster,
		}, nil
	default:
		return Detection{}, fmt.Errorf("%w: %q", ErrUnsupportedAPIVersion, def.APIVersion)
	}
}

// RequiresNamespace reports whether instances created from det live in a
// namespace: Namespaced XRs and claims both do.
func RequiresNamespace(det Detection) bool {
	return det.Scope == ScopeNamespaced || det.UsesClaims
}

// ResourceKind returns the kind users create: the claim kind when claims are
// used and declared, the XR kind otherwise.
func ResourceKind(def *ResourceDefinition, det Detection) string {
	if det.UsesClaims && def.Spec.ClaimNames != nil && def.Spec.ClaimNames.Kind != "" {
		return def.Spec.ClaimNames.Kind
	}

	return def.Spec.Names.Kind
}
