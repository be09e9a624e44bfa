package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Writer is the destination for encoded templates.
type Writer interface {
	// Write stores one encoded document under name.
	Write(name string, data []byte) error
}

// StreamWriter writes documents back to back to an io.Writer, each preceded
// by a separator.
type StreamWriter struct {
	out       io.Writer
	separator string
}

// NewStreamWriter creates a writer streaming to w. If w is nil, os.Stdout is
// used.
func NewStreamWriter(w io.Writer, separator string) *StreamWriter {
	if w == nil {
		w = os.Stdout
	}

	return &StreamWriter{out: w, separator: separator}
}

// Write streams data, ignoring name.
func (sw *StreamWriter) Write(_ string, data []byte) error {
	if _, err := io.WriteString(sw.out, sw.separator); err != nil {
		return fmt.Errorf("writing to stream: %w", err)
	}

	if _, err := sw.out.Write(data); err != nil {
		return fmt.Errorf("writing to stream: %w", err)
	}

	return nil
}

// DirWriter writes every document to <dir>/<name><ext>, creating the
// directory as needed.
type DirWriter struct {
	dir    string
	ext    string
	perm   os.FileMode
	logger *slog.Logger
}

// DirWriterOption configures a DirWriter.
type DirWriterOption func(*DirWriter)

// WithPermissions overrides the default file permissions (0644).
func WithPermissions(perm os.FileMode) DirWriterOption {
	return func(dw *DirWriter) {
		dw.perm = perm
	}
}

// WithLogger sets a logger for the DirWriter.
func WithLogger(logger *slog.Logger) DirWriterOption {
	return func(dw *DirWriter) {
		dw.logger = logger
	}
}

// NewDirWriter creates a writer placing files with extension ext into dir.
func NewDirWriter(dir, ext string, opts ...DirWriterOption) *DirWriter {
	dw := &DirWriter{
		dir:    dir,
		ext:    ext,
		perm:   0o644,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(dw)
	}

	return dw
}

// Write creates the directory and writes data to the document's file.
func (dw *DirWriter) Write(name string, data []byte) error {
	if err := os.MkdirAll(dw.dir, 0o750); err != nil {
		return fmt.Errorf("creating directory %s: %w", dw.dir, err)
	}

	path := dw.Path(name)

	if _, err := os.Stat(path); err == nil {
		dw.logger.Warn("overwriting existing file", slog.String("path", path))
	}

	if err := os.WriteFile(path, data, dw.perm); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}

	dw.logger.Debug("wrote template", slog.String("path", path))

	return nil
}

// Path returns the file path used for name.
func (dw *DirWriter) Path(name string) string {
	return filepath.Join(dw.dir, name+dw.ext)
}
