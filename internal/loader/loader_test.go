package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface conformance checks.
var (
	_ Loader = (*FileLoader)(nil)
	_ Loader = (*DirectoryLoader)(nil)
	_ Loader = (*ReaderLoader)(nil)
	_ Loader = (*MultiLoader)(nil)
)

const bucketXRD = `apiVersion: apiextensions.crossplane.io/v2
kind: CompositeResourceDefinition
metadata:
  name: buckets.storage.example.org
spec:
  group: storage.example.org
  scope: Namespaced
  names:
    kind: Bucket
    plural: buckets
  versions:
    - name: v1alpha1
      served: true
      referenceable: true
`

const configMap = `apiVersion: v1
kind: ConfigMap
metadata:
  name: unrelated
`

func xrdNamed(name string) string {
	return strings.Replace(bucketXRD, "buckets.storage.example.org", name, 1)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestSourceType_String(t *testing.T) {
	tests := []struct {
		st   SourceType
		want string
	}{
		{SourceFile, "file"},
		{SourceDirectory, "directory"},
		{SourceStdin, "stdin"},
		{SourceCluster, "cluster"},
		{SourceUnknown, "unknown"},
		{SourceType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.st.String())
		})
	}
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "xrd.yaml", bucketXRD)

	tests := []struct {
		ref     string
		want    SourceType
		wantErr bool
	}{
		{ref: "-", want: SourceStdin},
		{ref: "cluster", want: SourceCluster},
		{ref: dir, want: SourceDirectory},
		{ref: file, want: SourceFile},
		{ref: filepath.Join(dir, "missing.yaml"), wantErr: true},
		{ref: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := Detect(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileLoader_MultiDocument(t *testing.T) {
	path := writeFile(t, t.TempDir(), "all.yaml", bucketXRD+"---\n"+configMap+"---\n"+xrdNamed("queues.example.org"))

	set, err := NewFileLoader().Load(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, set.Documents, 2)
	assert.Equal(t, 1, set.Skipped)
	assert.Equal(t, path, set.Documents[0].Source)
	assert.Equal(t, "queues.example.org", set.Definitions()[1].Metadata.Name)
}

func TestFileLoader_Missing(t *testing.T) {
	_, err := NewFileLoader().Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDirectoryLoader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", xrdNamed("b.example.org"))
	writeFile(t, dir, "a.yml", xrdNamed("a.example.org"))
	writeFile(t, dir, "nested/c.yaml", xrdNamed("c.example.org"))
	writeFile(t, dir, "other.yaml", configMap)
	writeFile(t, dir, "README.md", "# not yaml")
	writeFile(t, dir, ".git/config.yaml", xrdNamed("hidden.example.org"))

	set, err := NewDirectoryLoader(2).Load(context.Background(), dir)
	require.NoError(t, err)

	var names []string
	for _, d := range set.Definitions() {
		names = append(names, d.Metadata.Name)
	}

	assert.Equal(t, []string{"a.example.org", "b.example.org", "c.example.org"}, names)
	assert.Equal(t, 1, set.Skipped)
}

func TestDirectoryLoader_InvalidFileFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.yaml", bucketXRD)
	writeFile(t, dir, "bad.yaml", "apiVersion: [unterminated")

	_, err := NewDirectoryLoader(0).Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestDirectoryLoader_NotADirectory(t *testing.T) {
	path := writeFile(t, t.TempDir(), "xrd.yaml", bucketXRD)

	_, err := NewDirectoryLoader(0).Load(context.Background(), path)
	assert.Error(t, err)
}

type stubLoader struct{ set *Set }

func (s stubLoader) Load(context.Context, string) (*Set, error) { return s.set, nil }

func TestMultiLoader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "xrd.yaml", bucketXRD)

	m := NewMultiLoader(strings.NewReader(bucketXRD), nil)

	set, err := m.Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, set.Documents, 1)

	set, err = m.Load(context.Background(), "-")
	require.NoError(t, err)
	require.Len(t, set.Documents, 1)
	assert.Equal(t, "<stdin>", set.Documents[0].Source)

	_, err = m.Load(context.Background(), "cluster")
	assert.Error(t, err)

	want := &Set{Skipped: 7}
	set, err = NewMultiLoader(nil, stubLoader{set: want}).Load(context.Background(), "cluster")
	require.NoError(t, err)
	assert.Same(t, want, set)
}
