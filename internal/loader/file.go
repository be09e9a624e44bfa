package loader

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/xrd2template/internal/xrd"
)

// FileLoader loads definitions from a single file.
type FileLoader struct{}

// NewFileLoader creates a FileLoader.
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Load reads every definition in the file at ref.
func (l *FileLoader) Load(_ context.Context, ref string) (*Set, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ref, err)
	}

	return parse(ref, data)
}

// ReaderLoader loads definitions from a stream such as standard input.
type ReaderLoader struct {
	r io.Reader
}

// NewReaderLoader creates a ReaderLoader reading from r.
func NewReaderLoader(r io.Reader) *ReaderLoader {
	return &ReaderLoader{r: r}
}

// Load reads the whole stream. ref is used as the document source name.
func (l *ReaderLoader) Load(_ context.Context, ref string) (*Set, error) {
	data, err := io.ReadAll(l.r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ref, err)
	}

	return parse(ref, data)
}

func parse(source string, data []byte) (*Set, error) {
	defs, skipped, err := xrd.ParseAll(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	set := &Set{Skipped: skipped}
	for _, d := range defs {
		set.Documents = append(set.Documents, Document{Source: source, Definition: d})
	}

	return set, nil
}
