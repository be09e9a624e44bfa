package loader

import (
	"context"
	"fmt"
	"io"
)

// MultiLoader implements Loader by detecting the source type and delegating
// to the matching loader. Cluster references need a cluster loader; without
// one they are rejected.
type MultiLoader struct {
	file      *FileLoader
	directory *DirectoryLoader
	stdin     *ReaderLoader
	cluster   Loader
}

// NewMultiLoader creates a MultiLoader. stdin backs "-"; cluster backs
// "cluster" and may be nil.
func NewMultiLoader(stdin io.Reader, cluster Loader) *MultiLoader {
	return &MultiLoader{
		file:      NewFileLoader(),
		directory: NewDirectoryLoader(0),
		stdin:     NewReaderLoader(stdin),
		cluster:   cluster,
	}
}

// Load detects the source type of ref and delegates.
func (m *MultiLoader) Load(ctx context.Context, ref string) (*Set, error) {
	st, err := Detect(ref)
	if err != nil {
		return nil, err
	}

	switch st {
	case SourceFile:
		return m.file.Load(ctx, ref)
	case SourceDirectory:
		return m.directory.Load(ctx, ref)
	case SourceStdin:
		return m.stdin.Load(ctx, "<stdin>")
	case SourceCluster:
		if m.cluster == nil {
			return nil, fmt.Errorf("cluster source not configured")
		}

		return m.cluster.Load(ctx, ref)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", st)
	}
}
