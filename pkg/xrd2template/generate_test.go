package xrd2template_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/xrd2template/pkg/xrd2template"
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
    - name: v1
      served: true
      referenceable: true
---
apiVersion: v1
kind: ConfigMap
metadata:
  name: unrelated
`

func TestGenerate_EmptyRef(t *testing.T) {
	_, err := xrd2template.Generate(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source reference must not be empty")
}

func TestGenerate_MissingPath(t *testing.T) {
	_, err := xrd2template.Generate(context.Background(), "/nonexistent/xrds")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading XRDs")
}

func TestGenerate_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bucket.yaml"), []byte(bucketXRD), 0o600))

	res, err := xrd2template.Generate(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Definitions)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Templates, 2)
	assert.Equal(t, "buckets-template-v1alpha1", res.Templates[0].Name)
	assert.Equal(t, "buckets-template-v1", res.Templates[1].Name)
	assert.Contains(t, string(res.Templates[0].Data), "kind: Template")
}

func TestGenerateFromBytes_Options(t *testing.T) {
	res, err := xrd2template.GenerateFromBytes(context.Background(), []byte(bucketXRD),
		xrd2template.WithTemplateConfigData([]byte("owner: group:default/from-config\ntags: [storage]\n")),
		xrd2template.WithOwner("group:default/storage-team"),
		xrd2template.WithTags("team-a"),
		xrd2template.WithFormat("json"),
	)
	require.NoError(t, err)
	require.NotEmpty(t, res.Templates)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Templates[0].Data, &doc))

	spec := doc["spec"].(map[string]interface{})
	assert.Equal(t, "group:default/storage-team", spec["owner"])

	tags := doc["metadata"].(map[string]interface{})["tags"].([]interface{})
	assert.Contains(t, tags, "storage")
	assert.Contains(t, tags, "team-a")
}

func TestGenerateFromBytes_Errors(t *testing.T) {
	_, err := xrd2template.GenerateFromBytes(context.Background(), []byte(bucketXRD), xrd2template.WithFormat("toml"))
	assert.ErrorContains(t, err, "unknown output format")

	_, err = xrd2template.GenerateFromBytes(context.Background(), []byte(bucketXRD),
		xrd2template.WithTemplateConfigData([]byte("tags: [Bad Tag]\n")))
	assert.ErrorContains(t, err, "tags[0]")
}

func TestGenerateFromBytes_Failures(t *testing.T) {
	data := []byte(`apiVersion: apiextensions.crossplane.io/v2
kind: CompositeResourceDefinition
metadata:
  name: queues.example.org
spec:
  group: example.org
  names:
    kind: Queue
    plural: queues
  versions:
    - name: v1
      served: true
      referenceable: true
`)

	res, err := xrd2template.GenerateFromBytes(context.Background(), data)
	require.NoError(t, err)
	assert.Empty(t, res.Templates)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "queues.example.org")
}

func TestGenerateFromBytes_InvalidDefinition(t *testing.T) {
	data := []byte(`apiVersion: apiextensions.crossplane.io/v2
kind: CompositeResourceDefinition
metadata:
  name: widgets
spec:
  scope: Namespaced
  names:
    kind: Widget
    plural: widgets
  versions:
    - name: v1alpha1
      served: true
      referenceable: true
`)

	res, err := xrd2template.GenerateFromBytes(context.Background(), data)
	require.NoError(t, err)
	assert.Empty(t, res.Templates)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "XRD must have a spec.group")
}
