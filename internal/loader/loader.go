// Package loader reads CompositeResourceDefinitions from files, directories,
// standard input or a live cluster, with automatic source-type detection.
package loader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hupe1980/xrd2template/internal/xrd"
)

// SourceType identifies where definitions are read from.
type SourceType int

const (
	// SourceUnknown indicates the source type could not be determined.
	SourceUnknown SourceType = iota
	// SourceFile is a single YAML or JSON file, possibly multi-document.
	SourceFile
	// SourceDirectory is a directory scanned for YAML and JSON files.
	SourceDirectory
	// SourceStdin is standard input, selected with "-".
	SourceStdin
	// SourceCluster is the live cluster, selected with "cluster".
	SourceCluster
)

// Reserved source references.
const (
	RefStdin   = "-"
	RefCluster = "cluster"
)

// String returns a human-readable name for the source type.
func (s SourceType) String() string {
	switch s {
	case SourceUnknown:
		return "unknown"
	case SourceFile:
		return "file"
	case SourceDirectory:
		return "directory"
	case SourceStdin:
		return "stdin"
	case SourceCluster:
		return "cluster"
	default:
		return "unknown"
	}
}

// Document is a definition together with where it was read from.
type Document struct {
	Source     string
	Definition *xrd.ResourceDefinition
}

// Set is the outcome of a load.
type Set struct {
	Documents []Document
	// Skipped counts documents that were read but are not XRDs.
	Skipped int
}

// Definitions returns the definitions of the set in load order.
func (s *Set) Definitions() []*xrd.ResourceDefinition {
	out := make([]*xrd.ResourceDefinition, len(s.Documents))
	for i, d := range s.Documents {
		out[i] = d.Definition
	}

	return out
}

// Loader loads definitions from a reference.
type Loader interface {
	Load(ctx context.Context, ref string) (*Set, error)
}

// Detect classifies ref. A local path must exist.
func Detect(ref string) (SourceType, error) {
	switch ref {
	case "":
		return SourceUnknown, fmt.Errorf("empty source reference")
	case RefStdin:
		return SourceStdin, nil
	case RefCluster:
		return SourceCluster, nil
	}

	info, err := os.Stat(ref)
	if err != nil {
		return SourceUnknown, fmt.Errorf("source %q: %w", ref, err)
	}

	if info.IsDir() {
		return SourceDirectory, nil
	}

	return SourceFile, nil
}

// IsManifestFile reports whether name has a YAML or JSON extension.
func IsManifestFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".json")
}
