package transform_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/xrd2template/internal/steps"
	"github.com/hupe1980/xrd2template/internal/template"
	"github.com/hupe1980/xrd2template/internal/transform"
	"github.com/hupe1980/xrd2template/internal/xrd"
)

const minimalV2 = `apiVersion: apiextensions.crossplane.io/v2
kind: CompositeResourceDefinition
metadata:
  name: tests.example.org
spec:
  group: example.org
  scope: Namespaced
  names:
    kind: Test
    plural: tests
  versions:
    - name: v1alpha1
      served: true
      referenceable: true
`

const networkV2 = `apiVersion: apiextensions.crossplane.io/v2
kind: CompositeResourceDefinition
metadata:
  name: networks.net.example.org
spec:
  group: net.example.org
  scope: Cluster
  names:
    kind: Network
    plural: networks
  versions:
    - name: v1beta1
      served: true
      referenceable: false
      deprecated: true
      deprecationWarning: use v1
      schema:
        openAPIV3Schema:
          type: object
          properties:
            spec:
              type: object
              required: [region, subnet]
              properties:
                region:
                  type: string
                  enum: [eu-west-1, us-east-1]
                  default: eu-west-1
                subnet:
                  type: object
                  required: [cidr]
                  properties:
                    cidr:
                      type: string
                      pattern: "^[0-9./]+$"
                    public:
                      type: boolean
                zones:
                  type: array
                  items:
                    type: string
                size:
                  type: integer
                  minimum: 1
                  maximum: 10
    - name: v1
      served: true
      referenceable: true
      schema:
        openAPIV3Schema:
          type: object
          properties:
            spec:
              type: object
              properties:
                region:
                  type: string
    - name: v0
      served: false
      referenceable: false
`

const claimV1 = `apiVersion: apiextensions.crossplane.io/v1
kind: CompositeResourceDefinition
metadata:
  name: xdatabases.db.example.org
spec:
  group: db.example.org
  names:
    kind: XDatabase
    plural: xdatabases
  claimNames:
    kind: Database
    plural: databases
  defaultCompositionRef:
    name: postgres
  versions:
    - name: v1
      served: true
      referenceable: true
      schema:
        openAPIV3Schema:
          type: object
          properties:
            spec:
              type: object
              properties:
                storageGB:
                  type: integer
`

const brokenSchemaV2 = `apiVersion: apiextensions.crossplane.io/v2
kind: CompositeResourceDefinition
metadata:
  name: caches.example.org
spec:
  group: example.org
  scope: Cluster
  names:
    kind: Cache
    plural: caches
  versions:
    - name: v1alpha1
      served: true
      referenceable: false
      schema:
        openAPIV3Schema: null
    - name: v1
      served: true
      referenceable: true
`

func parse(t *testing.T, doc string) *xrd.ResourceDefinition {
	t.Helper()

	def, err := xrd.Parse([]byte(doc))
	require.NoError(t, err)

	return def
}

func newTransformer(opts transform.Options) *transform.Transformer {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	}

	return transform.New(opts)
}

func TestTransform_MinimalNamespaced(t *testing.T) {
	res := newTransformer(transform.Options{}).Transform(parse(t, minimalV2))
	require.True(t, res.OK())
	require.Len(t, res.Templates, 1)

	tpl := res.Templates[0]
	assert.Equal(t, template.APIVersion, tpl.APIVersion)
	assert.Equal(t, template.Kind, tpl.Kind)
	assert.Equal(t, "tests-template", tpl.Metadata.Name)
	assert.Equal(t, "Test", tpl.Metadata.Title)
	assert.Equal(t, transform.DefaultOwner, tpl.Spec.Owner)
	assert.Equal(t, transform.DefaultTemplateType, tpl.Spec.Type)

	require.Len(t, tpl.Spec.Parameters, 1)
	meta := tpl.Spec.Section(template.SectionMetadata)
	require.NotNil(t, meta)
	assert.Equal(t, []string{template.ParamName, template.ParamNamespace}, meta.Required)
	assert.Equal(t, transform.NamePattern, meta.Property(template.ParamName).Pattern)
	assert.Equal(t, "KubernetesNamespacePicker", meta.Property(template.ParamNamespace).UIField)

	require.Len(t, tpl.Spec.Steps, 1)
	step := tpl.Spec.Steps[0]
	assert.Equal(t, steps.IDCreateXR, step.ID)

	manifest := step.Input["manifest"].(map[string]interface{})
	metadata := manifest["metadata"].(map[string]interface{})
	assert.Equal(t, "${{ parameters.namespace }}", metadata["namespace"])

	assert.Equal(t, map[string]string{
		transform.AnnotationSourceXRD:         "tests.example.org",
		transform.AnnotationCrossplaneVersion: "v2",
		transform.AnnotationCrossplaneScope:   "Namespaced",
		transform.AnnotationUsesClaims:        "false",
		transform.AnnotationXRDVersion:        "v1alpha1",
	}, tpl.Metadata.Annotations)
}

func TestTransform_ClusterScopeHasNoNamespace(t *testing.T) {
	res := newTransformer(transform.Options{}).Transform(parse(t, networkV2))
	require.True(t, res.OK())

	for _, tpl := range res.Templates {
		meta := tpl.Spec.Section(template.SectionMetadata)
		require.NotNil(t, meta)
		assert.Nil(t, meta.Property(template.ParamNamespace), tpl.Metadata.Name)
		assert.False(t, meta.IsRequired(template.ParamNamespace))
	}
}

func TestTransform_MultipleVersions(t *testing.T) {
	res := newTransformer(transform.Options{}).Transform(parse(t, networkV2))
	require.True(t, res.OK())
	require.Len(t, res.Templates, 2)

	assert.Equal(t, "networks-template-v1beta1", res.Templates[0].Metadata.Name)
	assert.Equal(t, "networks-template-v1", res.Templates[1].Metadata.Name)
	assert.Equal(t, "Network (v1)", res.Templates[1].Metadata.Title)
}

func TestTransform_Deprecated(t *testing.T) {
	res := newTransformer(transform.Options{Tags: []string{"network"}}).Transform(parse(t, networkV2))
	require.Len(t, res.Templates, 2)

	deprecated := res.Templates[0]
	assert.Equal(t, []string{"crossplane", "network", "deprecated"}, deprecated.Metadata.Tags)
	assert.Equal(t, "true", deprecated.Metadata.Annotations[transform.AnnotationDeprecated])
	assert.Contains(t, deprecated.Metadata.Description, "use v1")

	current := res.Templates[1]
	assert.NotContains(t, current.Metadata.Tags, transform.TagDeprecated)
	assert.NotContains(t, current.Metadata.Annotations, transform.AnnotationDeprecated)
}

func TestTransform_ConfigurationSection(t *testing.T) {
	res := newTransformer(transform.Options{}).Transform(parse(t, networkV2))
	require.NotEmpty(t, res.Templates)

	cfg := res.Templates[0].Spec.Section(template.SectionConfiguration)
	require.NotNil(t, cfg)

	var names []string
	for _, p := range cfg.Properties {
		names = append(names, p.Name)
	}

	assert.Equal(t, []string{"region", "size", "subnet_cidr", "subnet_public", "zones"}, names)
	assert.Equal(t, []string{"region", "subnet_cidr"}, cfg.Required)

	region := cfg.Property("region")
	assert.Equal(t, "string", region.Type)
	assert.Equal(t, "eu-west-1", region.Default)
	assert.Equal(t, []interface{}{"eu-west-1", "us-east-1"}, region.Enum)

	size := cfg.Property("size")
	require.NotNil(t, size.Minimum)
	assert.InDelta(t, 1.0, *size.Minimum, 0)
	assert.InDelta(t, 10.0, *size.Maximum, 0)

	assert.Equal(t, "^[0-9./]+$", cfg.Property("subnet_cidr").Pattern)
	assert.Equal(t, []string{"subnet", "cidr"}, cfg.Property("subnet_cidr").SourcePath)

	zones := cfg.Property("zones")
	assert.Equal(t, "array", zones.Type)
	assert.Equal(t, "string", zones.ItemsType)
}

func TestTransform_EverySpecPropertyIsMapped(t *testing.T) {
	for _, doc := range []string{networkV2, claimV1} {
		res := newTransformer(transform.Options{}).Transform(parse(t, doc))
		require.True(t, res.OK())

		for _, tpl := range res.Templates {
			cfg := tpl.Spec.Section(template.SectionConfiguration)
			require.NotNil(t, cfg)

			manifest := tpl.Spec.Steps[0].Input["manifest"].(map[string]interface{})
			refs := template.ReferencedParameters(manifest["spec"])

			for _, p := range cfg.Properties {
				assert.Contains(t, refs, p.Name, "%s: %s not mapped", tpl.Metadata.Name, p.Name)
			}
		}
	}
}

func TestTransform_NestedSpecShape(t *testing.T) {
	res := newTransformer(transform.Options{}).Transform(parse(t, networkV2))
	manifest := res.Templates[0].Spec.Steps[0].Input["manifest"].(map[string]interface{})
	spec := manifest["spec"].(map[string]interface{})

	assert.Equal(t, map[string]interface{}{
		"cidr":   "${{ parameters.subnet_cidr }}",
		"public": "${{ parameters.subnet_public }}",
	}, spec["subnet"])
}

func TestTransform_Claims(t *testing.T) {
	res := newTransformer(transform.Options{}).Transform(parse(t, claimV1))
	require.True(t, res.OK())
	require.Len(t, res.Templates, 1)

	tpl := res.Templates[0]
	assert.Equal(t, "xdatabases-template", tpl.Metadata.Name)
	assert.Contains(t, tpl.Metadata.Title, "Database")
	assert.NotContains(t, tpl.Metadata.Title, "XDatabase")
	assert.Equal(t, "true", tpl.Metadata.Annotations[transform.AnnotationUsesClaims])
	assert.Equal(t, "v1", tpl.Metadata.Annotations[transform.AnnotationCrossplaneVersion])
	assert.Equal(t, "LegacyCluster", tpl.Metadata.Annotations[transform.AnnotationCrossplaneScope])

	meta := tpl.Spec.Section(template.SectionMetadata)
	assert.True(t, meta.IsRequired(template.ParamNamespace))

	step := tpl.Spec.Steps[0]
	assert.Equal(t, steps.IDCreateClaim, step.ID)
	assert.Equal(t, "kubernetes:create", step.Action)
	assert.Equal(t, "Database", step.Input["manifest"].(map[string]interface{})["kind"])
}

func TestTransform_MalformedVersionDoesNotAbort(t *testing.T) {
	var logs bytes.Buffer

	tr := transform.New(transform.Options{Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	res := tr.Transform(parse(t, brokenSchemaV2))

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "v1alpha1", res.Errors[0].Version)
	assert.ErrorIs(t, res.Errors[0], transform.ErrMalformedSchema)
	assert.Contains(t, res.Errors[0].Error(), "caches.example.org@v1alpha1")

	require.Len(t, res.Templates, 1)
	assert.Equal(t, "caches-template-v1", res.Templates[0].Metadata.Name)
	assert.Contains(t, logs.String(), "skipping version")
}

func TestTransform_NoServedVersions(t *testing.T) {
	def := parse(t, minimalV2)
	def.Spec.Versions[0].Served = false

	tr := newTransformer(transform.Options{})
	res := tr.Transform(def)
	assert.Empty(t, res.Templates)
	assert.Empty(t, res.Errors)

	v := tr.CanTransform(def)
	assert.False(t, v.Valid)
	assert.Contains(t, v.Reasons, "XRD must have at least one served version")
}

func TestTransform_UnknownScopeIsDefinitionError(t *testing.T) {
	def := parse(t, minimalV2)
	def.Spec.Scope = ""

	res := newTransformer(transform.Options{}).Transform(def)
	assert.Empty(t, res.Templates)
	require.Len(t, res.Errors, 1)
	assert.Empty(t, res.Errors[0].Version)
	assert.ErrorIs(t, res.Errors[0], xrd.ErrUnknownScope)
}

func TestTransform_Idempotent(t *testing.T) {
	def := parse(t, networkV2)
	tr := newTransformer(transform.Options{})

	first := tr.Transform(def)
	second := tr.Transform(def)

	require.Len(t, second.Templates, len(first.Templates))

	for i := range first.Templates {
		assert.Equal(t, first.Templates[i].ToMap(), second.Templates[i].ToMap())
	}
}

func TestTransform_PublishingSection(t *testing.T) {
	opts := transform.Options{
		Steps: steps.Config{
			Publish: steps.PublishConfig{
				Enabled: true,
				Phase: &steps.PublishPhase{
					Git: &steps.GitConfig{RepoURL: "github.com?owner=acme&repo=infra", PullRequest: true},
				},
			},
			Register: true,
		},
	}

	tr := newTransformer(opts)
	assert.Empty(t, tr.ConfigIssues())

	res := tr.Transform(parse(t, minimalV2))
	require.Len(t, res.Templates, 1)

	tpl := res.Templates[0]
	pub := tpl.Spec.Section(template.SectionPublishing)
	require.NotNil(t, pub)
	assert.Equal(t, "github.com?owner=acme&repo=infra", pub.Property(template.ParamRepoURL).Default)
	assert.Equal(t, "main", pub.Property(template.ParamBranch).Default)
	assert.Equal(t, true, pub.Property(template.ParamCreatePullRequest).Default)

	// Every expression in the steps refers to a declared parameter.
	declared := tpl.Spec.ParameterNames()
	for _, st := range tpl.Spec.Steps {
		for _, ref := range template.ReferencedParameters(st.ToMap()) {
			assert.True(t, declared[ref], "step %s references undeclared %s", st.ID, ref)
		}
	}

	assert.NotNil(t, tpl.Spec.Output)
}

func TestTransform_PublishingSectionWithoutPullRequests(t *testing.T) {
	opts := transform.Options{
		Steps: steps.Config{
			Publish: steps.PublishConfig{
				Enabled: true,
				Phase:   &steps.PublishPhase{Git: &steps.GitConfig{RepoURL: "github.com?owner=acme&repo=infra"}},
			},
		},
	}

	res := newTransformer(opts).Transform(parse(t, minimalV2))
	require.Len(t, res.Templates, 1)

	pub := res.Templates[0].Spec.Section(template.SectionPublishing)
	require.NotNil(t, pub)
	assert.Nil(t, pub.Property(template.ParamCreatePullRequest))
	assert.Nil(t, res.Templates[0].Spec.Step(steps.IDPublishChange))
	assert.NotNil(t, res.Templates[0].Spec.Step(steps.IDPublishGit))
}

func TestTransform_MultiCluster(t *testing.T) {
	def := parse(t, minimalV2)
	def.AddCluster("prod")
	def.AddCluster("dev")

	res := newTransformer(transform.Options{}).Transform(def)
	require.Len(t, res.Templates, 1)

	meta := res.Templates[0].Spec.Section(template.SectionMetadata)
	cluster := meta.Property(template.ParamCluster)
	require.NotNil(t, cluster)
	assert.Equal(t, []interface{}{"dev", "prod"}, cluster.Enum)
	assert.True(t, meta.IsRequired(template.ParamCluster))
	assert.Equal(t, "${{ parameters.cluster }}", res.Templates[0].Spec.Steps[0].Input["cluster"])
}

func TestCanTransform_AccumulatesReasons(t *testing.T) {
	def := &xrd.ResourceDefinition{APIVersion: "apiextensions.crossplane.io/v3"}

	v := newTransformer(transform.Options{}).CanTransform(def)
	assert.False(t, v.Valid)
	require.Len(t, v.Reasons, 4)
	assert.Equal(t, "XRD must have a metadata.name", v.Reasons[0])
	assert.Equal(t, "XRD must have a spec.group", v.Reasons[1])
	assert.Equal(t, "XRD must have at least one served version", v.Reasons[2])
	assert.True(t, strings.HasPrefix(v.Reasons[3], "unsupported XRD apiVersion"))
}

func TestCanTransform_Valid(t *testing.T) {
	v := newTransformer(transform.Options{}).CanTransform(parse(t, claimV1))
	assert.True(t, v.Valid)
	assert.Empty(t, v.Reasons)
}

func TestPreview(t *testing.T) {
	def := parse(t, networkV2)
	p, err := newTransformer(transform.Options{}).Preview(def)
	require.NoError(t, err)

	assert.Equal(t, "networks.net.example.org", p.Name)
	assert.Equal(t, xrd.V2, p.Detection.APIVersion)
	assert.Equal(t, xrd.ScopeCluster, p.Detection.Scope)
	assert.Equal(t, "Network", p.ResourceKind)
	assert.False(t, p.RequiresNamespace)
	assert.False(t, p.MultiCluster)
	assert.Equal(t, 2, p.TemplateCount)

	require.Len(t, p.Versions, 3)
	assert.Equal(t, transform.VersionPreview{
		Name: "v1beta1", Served: true, Deprecated: true, HasSchema: true,
		TemplateName: "networks-template-v1beta1",
	}, p.Versions[0])
	assert.Equal(t, transform.VersionPreview{Name: "v0"}, p.Versions[2])
}

func TestPreview_MatchesTransform(t *testing.T) {
	tr := newTransformer(transform.Options{})

	for _, doc := range []string{minimalV2, networkV2, claimV1} {
		def := parse(t, doc)

		p, err := tr.Preview(def)
		require.NoError(t, err)
		assert.Len(t, tr.Transform(def).Templates, p.TemplateCount)
	}
}

func TestPreview_UnsupportedAPIVersion(t *testing.T) {
	def := parse(t, minimalV2)
	def.APIVersion = "apiextensions.crossplane.io/v1beta1"

	_, err := newTransformer(transform.Options{}).Preview(def)
	assert.ErrorIs(t, err, xrd.ErrUnsupportedAPIVersion)
}

func TestTransformValid_RejectsInvalidDefinition(t *testing.T) {
	def := parse(t, minimalV2)
	def.Spec.Group = ""
	def.Spec.Scope = ""

	res := newTransformer(transform.Options{}).TransformValid(def)
	assert.Empty(t, res.Templates)
	require.Len(t, res.Errors, 2)

	for _, e := range res.Errors {
		assert.Empty(t, e.Version)
		assert.ErrorIs(t, e, transform.ErrInvalidDefinition)
	}

	assert.Contains(t, res.Errors[0].Error(), "tests.example.org: invalid definition: XRD must have a spec.group")
	assert.ErrorIs(t, res.Errors[1], xrd.ErrUnknownScope)
}

func TestTransformValid_UnnamedDefinition(t *testing.T) {
	def := parse(t, minimalV2)
	def.Metadata.Name = ""

	res := newTransformer(transform.Options{}).TransformValid(def)
	assert.Empty(t, res.Templates)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "<unnamed>", res.Errors[0].Definition)
}

func TestTransformValid_ValidMatchesTransform(t *testing.T) {
	def := parse(t, networkV2)
	tr := newTransformer(transform.Options{})

	valid := tr.TransformValid(def)
	plain := tr.Transform(def)

	require.Len(t, valid.Templates, len(plain.Templates))
	assert.Empty(t, valid.Errors)

	for i := range plain.Templates {
		assert.Equal(t, plain.Templates[i].ToMap(), valid.Templates[i].ToMap())
	}
}

const collidingV2 = `apiVersion: apiextensions.crossplane.io/v2
kind: CompositeResourceDefinition
metadata:
  name: stores.example.org
spec:
  group: example.org
  scope: Cluster
  names:
    kind: Store
    plural: stores
  versions:
    - name: v1alpha1
      served: true
      referenceable: false
      schema:
        openAPIV3Schema:
          type: object
          properties:
            spec:
              type: object
              properties:
                db_size:
                  type: string
                db:
                  type: object
                  properties:
                    size:
                      type: integer
    - name: v1
      served: true
      referenceable: true
      schema:
        openAPIV3Schema:
          type: object
          properties:
            spec:
              type: object
              properties:
                db:
                  type: object
                  properties:
                    size:
                      type: integer
`

func TestTransform_FlattenedNameConflict(t *testing.T) {
	res := newTransformer(transform.Options{}).Transform(parse(t, collidingV2))

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "v1alpha1", res.Errors[0].Version)
	assert.ErrorIs(t, res.Errors[0], transform.ErrMalformedSchema)
	assert.Contains(t, res.Errors[0].Error(), `spec.db.size and spec.db_size both map to parameter "db_size"`)

	require.Len(t, res.Templates, 1)
	assert.Equal(t, "stores-template-v1", res.Templates[0].Metadata.Name)

	// Every declared configuration property survives serialization.
	cfg := res.Templates[0].Spec.Section(template.SectionConfiguration)
	require.NotNil(t, cfg)
	props, _ := cfg.ToMap()["properties"].(map[string]interface{})
	assert.Len(t, props, len(cfg.Properties))
	assert.Contains(t, props, "db_size")
}
