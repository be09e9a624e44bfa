package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// DirectoryLoader loads definitions from every YAML and JSON file below a
// directory. Files are parsed concurrently; the result is ordered by path.
type DirectoryLoader struct {
	workers int
}

// NewDirectoryLoader creates a DirectoryLoader. workers <= 0 uses GOMAXPROCS.
func NewDirectoryLoader(workers int) *DirectoryLoader {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &DirectoryLoader{workers: workers}
}

// Load walks ref recursively. Hidden directories are skipped.
func (l *DirectoryLoader) Load(ctx context.Context, ref string) (*Set, error) {
	info, err := os.Stat(ref)
	if err != nil {
		return nil, fmt.Errorf("directory %q: %w", ref, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("source %q is not a directory", ref)
	}

	files, err := manifestFiles(ref)
	if err != nil {
		return nil, err
	}

	sets := make([]*Set, len(files))
	fl := NewFileLoader()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			set, err := fl.Load(gctx, path)
			if err != nil {
				return err
			}

			sets[i] = set

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Set{}
	for _, s := range sets {
		out.Documents = append(out.Documents, s.Documents...)
		out.Skipped += s.Skipped
	}

	return out, nil
}

func manifestFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && len(d.Name()) > 1 && d.Name()[0] == '.' {
				return filepath.SkipDir
			}

			return nil
		}

		if IsManifestFile(d.Name()) {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	sort.Strings(files)

	return files, nil
}
