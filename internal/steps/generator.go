// Package steps generates the ordered scaffolder steps that create a
// Crossplane resource and optionally publish and register it.
package steps

import (
	"fmt"
	"path"
	"strings"

	"github.com/hupe1980/xrd2template/internal/maputil"
	"github.com/hupe1980/xrd2template/internal/template"
	"github.com/hupe1980/xrd2template/internal/xrd"
)

// Step ids in emission order.
const (
	IDFetch            = "fetch-base"
	IDCreateClaim      = "create-claim"
	IDCreateXR         = "create-xr"
	IDGenerateManifest = "generate-manifest"
	IDPublishGit       = "publish-git"
	IDPublishChange    = "publish-change-request"
	IDReconcileFlux    = "reconcile-flux"
	IDSyncArgoCD       = "sync-argocd"
	IDRegister         = "register"
)

// Labels and annotations stamped onto generated manifests.
const (
	LabelManagedBy          = "app.kubernetes.io/managed-by"
	LabelOwner              = "backstage.io/owner"
	LabelXRD                = "crossplane.io/xrd"
	LabelCompositionName    = "crossplane.io/composition-name"
	AnnotationCreatedBy     = "backstage.io/created-by"
	AnnotationTemplate      = "backstage.io/template"
	ManagedByBackstage      = "backstage"
	defaultCatalogInfoPath  = "/catalog-info.yaml"
	defaultManifestDir      = "manifests"
	serializeManifestAction = "roadiehq:utils:serialize:yaml"
)

// Style selects the resource-creation strategy.
type Style string

// Supported styles.
const (
	// StyleV1 creates claims or XRs with kubernetes:create.
	StyleV1 Style = "v1"
	// StyleV2 applies XRs in place with kubernetes:apply.
	StyleV2 Style = "v2"
)

// Input is everything Generate needs for one version of a definition.
type Input struct {
	Definition   *xrd.ResourceDefinition
	Detection    xrd.Detection
	Version      xrd.Version
	Sections     []template.ParameterSection
	TemplateName string
}

// Generator produces the step list of a template.
type Generator struct {
	style Style
	cfg   Config
}

// NewV1 returns a generator for v1-style claim/XR creation.
func NewV1(cfg Config) *Generator {
	return &Generator{style: StyleV1, cfg: cfg}
}

// NewV2 returns a generator for v2-style in-place apply.
func NewV2(cfg Config) *Generator {
	return &Generator{style: StyleV2, cfg: cfg}
}

// ForDefinition returns the V2 generator when def is V2-compatible and the
// V1 generator otherwise.
func ForDefinition(def *xrd.ResourceDefinition, cfg Config) *Generator {
	if v2 := NewV2(cfg); v2.IsCompatible(def) {
		return v2
	}

	return NewV1(cfg)
}

// Style returns the generator's strategy.
func (g *Generator) Style() Style { return g.style }

// Config returns the generator's configuration.
func (g *Generator) Config() Config { return g.cfg }

// ValidateConfig reports configuration problems without failing.
func (g *Generator) ValidateConfig() []string {
	return g.cfg.Validate()
}

// IsCompatible reports whether def can be handled by this generator. The V2
// generator accepts only */v2 documents with a Cluster or Namespaced scope;
// the V1 generator accepts every detectable document the V2 one rejects.
func (g *Generator) IsCompatible(def *xrd.ResourceDefinition) bool {
	det, err := xrd.Detect(def)
	if err != nil {
		return false
	}

	v2 := det.APIVersion == xrd.V2 && det.Scope != xrd.ScopeLegacyCluster

	if g.style == StyleV2 {
		return v2
	}

	return !v2
}

// Generate returns the ordered step list:
// fetch?, resource, generate-manifest?, publish-git?, reconcile-flux?,
// sync-argocd?, register?.
func (g *Generator) Generate(in Input) []template.Step {
	var out []template.Step

	if g.cfg.FetchURL != "" {
		out = append(out, g.fetchStep())
	}

	resource := g.resourceStep(in)
	out = append(out, resource)

	manifest, _ := resource.Input["manifest"].(map[string]interface{})
	out = append(out, g.publishSteps(in, manifest)...)

	if g.cfg.Register {
		out = append(out, g.registerStep())
	}

	return out
}

// Output returns the output links matching the steps Generate emits, or nil.
func (g *Generator) Output() *template.Output {
	var links []template.Link

	git := g.gitConfig()

	if git != nil {
		links = append(links, template.Link{
			Title: "Repository",
			URL:   template.StepOutput(IDPublishGit, "remoteUrl"),
			If:    directPushCondition(git),
		})

		if git.PullRequest {
			field := "remoteUrl"
			if git.ProviderName() == ProviderGitLab {
				field = "mergeRequestUrl"
			}

			links = append(links, template.Link{
				Title: "Pull request",
				URL:   template.StepOutput(IDPublishChange, field),
				If:    template.ParameterRef(template.ParamCreatePullRequest),
			})
		}
	}

	if g.cfg.Register {
		links = append(links, template.Link{
			Title:     "Open in catalog",
			Icon:      "catalog",
			EntityRef: template.StepOutput(IDRegister, "entityRef"),
			If:        directPushCondition(git),
		})
	}

	if len(links) == 0 {
		return nil
	}

	return &template.Output{Links: links}
}

func (g *Generator) gitConfig() *GitConfig {
	if !g.cfg.GitEnabled() {
		return nil
	}

	return g.cfg.Publish.Phase.Git
}

// directPushCondition guards steps that depend on the direct push. It is
// empty unless the user can choose a pull request instead.
func directPushCondition(git *GitConfig) string {
	if git == nil || !git.PullRequest {
		return ""
	}

	return template.Expr("not parameters." + template.ParamCreatePullRequest)
}

func (g *Generator) fetchStep() template.Step {
	return template.Step{
		ID:     IDFetch,
		Name:   "Fetch base",
		Action: "fetch:template",
		Input: map[string]interface{}{
			"url": g.cfg.FetchURL,
			"values": map[string]interface{}{
				"name": template.ParameterRef(template.ParamName),
			},
		},
	}
}

func (g *Generator) resourceStep(in Input) template.Step {
	kind := xrd.ResourceKind(in.Definition, in.Detection)

	id, action := IDCreateXR, "kubernetes:create"
	if in.Detection.UsesClaims {
		id = IDCreateClaim
	}

	if g.style == StyleV2 {
		action = "kubernetes:apply"
	}

	input := map[string]interface{}{
		"manifest": g.buildManifest(in, kind),
	}

	if in.Definition.MultiCluster() {
		input["cluster"] = template.ParameterRef(template.ParamCluster)
	}

	if in.Detection.UsesClaims || in.Detection.Scope == xrd.ScopeNamespaced {
		input["namespaced"] = true
	}

	return template.Step{
		ID:     id,
		Name:   "Create " + kind,
		Action: action,
		Input:  input,
	}
}

func (g *Generator) buildManifest(in Input, kind string) map[string]interface{} {
	metadata := map[string]interface{}{
		"name": template.ParameterRef(template.ParamName),
		"labels": map[string]interface{}{
			LabelManagedBy: ManagedByBackstage,
			LabelOwner:     template.Expr("user.entity.metadata.name"),
		},
		"annotations": map[string]interface{}{
			AnnotationCreatedBy: template.Expr("user.ref"),
			AnnotationTemplate:  in.TemplateName,
		},
	}

	if xrd.RequiresNamespace(in.Detection) {
		metadata["namespace"] = template.ParameterRef(template.ParamNamespace)
	}

	spec := specFromSections(in.Sections)

	selector := map[string]interface{}{
		"matchLabels": compositionLabels(in.Definition),
	}

	if g.style == StyleV2 {
		crossplane, _ := spec["crossplane"].(map[string]interface{})
		if crossplane == nil {
			crossplane = make(map[string]interface{})
		}

		crossplane["compositionSelector"] = selector
		spec["crossplane"] = crossplane
	} else {
		spec["compositionSelector"] = selector
	}

	return map[string]interface{}{
		"apiVersion": in.Definition.GroupVersion(in.Version.Name).String(),
		"kind":       kind,
		"metadata":   metadata,
		"spec":       spec,
	}
}

// compositionLabels always selects on the definition's own label and adds
// the composition name when a default composition is declared.
func compositionLabels(def *xrd.ResourceDefinition) map[string]interface{} {
	labels := map[string]interface{}{
		LabelXRD: def.Metadata.Name,
	}

	if ref := def.Spec.DefaultCompositionRef; ref != nil && ref.Name != "" {
		labels[LabelCompositionName] = ref.Name
	}

	return labels
}

// specFromSections rebuilds the nested spec structure from the flattened
// configuration properties, each leaf holding a parameter expression.
func specFromSections(sections []template.ParameterSection) map[string]interface{} {
	spec := make(map[string]interface{})

	for _, sec := range sections {
		if sec.Title != template.SectionConfiguration {
			continue
		}

		for _, p := range sec.Properties {
			srcPath := p.SourcePath
			if len(srcPath) == 0 {
				srcPath = strings.Split(p.Name, "_")
			}

			maputil.SetPath(spec, srcPath, template.ParameterRef(p.Name))
		}
	}

	return spec
}

func (g *Generator) publishSteps(in Input, manifest map[string]interface{}) []template.Step {
	if !g.cfg.Publish.Enabled || g.cfg.Publish.Phase == nil {
		return nil
	}

	phase := g.cfg.Publish.Phase
	kind := xrd.ResourceKind(in.Definition, in.Detection)

	out := []template.Step{{
		ID:     IDGenerateManifest,
		Name:   "Generate manifest",
		Action: serializeManifestAction,
		Input: map[string]interface{}{
			"data": maputil.DeepCopyMap(manifest),
			"path": manifestPath(phase.Git),
		},
	}}

	if phase.Git != nil {
		out = append(out, gitSteps(phase.Git, kind)...)
	}

	if phase.Flux != nil {
		input := map[string]interface{}{
			"kustomization": phase.Flux.Kustomization,
		}

		if phase.Flux.Namespace != "" {
			input["namespace"] = phase.Flux.Namespace
		}

		if in.Definition.MultiCluster() {
			input["cluster"] = template.ParameterRef(template.ParamCluster)
		}

		out = append(out, template.Step{
			ID:     IDReconcileFlux,
			Name:   "Reconcile Flux kustomization",
			Action: "flux:reconcile",
			Input:  input,
		})
	}

	if phase.ArgoCD != nil {
		input := map[string]interface{}{
			"appName": phase.ArgoCD.Application,
		}

		if phase.ArgoCD.Instance != "" {
			input["argoInstance"] = phase.ArgoCD.Instance
		}

		out = append(out, template.Step{
			ID:     IDSyncArgoCD,
			Name:   "Sync Argo CD application",
			Action: "argocd:sync",
			Input:  input,
		})
	}

	return out
}

// gitSteps returns the direct push step and, when pull requests are
// enabled, the pull request step. Exactly one of them runs, selected by the
// createPullRequest parameter.
func gitSteps(git *GitConfig, kind string) []template.Step {
	push := template.Step{
		ID:     IDPublishGit,
		Name:   "Publish to git",
		Action: "publish:" + git.ProviderName(),
		Input: map[string]interface{}{
			"repoUrl":       template.ParameterRef(template.ParamRepoURL),
			"defaultBranch": template.ParameterRef(template.ParamBranch),
		},
		If: directPushCondition(git),
	}

	if !git.PullRequest {
		return []template.Step{push}
	}

	input := map[string]interface{}{
		"repoUrl":          template.ParameterRef(template.ParamRepoURL),
		"branchName":       template.ParameterRef(template.ParamName),
		"targetBranchName": template.ParameterRef(template.ParamBranch),
		"title":            fmt.Sprintf("Create %s %s", kind, template.ParameterRef(template.ParamName)),
		"description":      fmt.Sprintf("Requested by %s", template.Expr("user.ref")),
		"targetPath":       git.TargetPath,
	}

	action := "publish:github:pull-request"
	if git.ProviderName() == ProviderGitLab {
		action = "publish:gitlab:merge-request"
	}

	change := template.Step{
		ID:     IDPublishChange,
		Name:   "Open pull request",
		Action: action,
		Input:  input,
		If:     template.ParameterRef(template.ParamCreatePullRequest),
	}

	return []template.Step{push, change}
}

func manifestPath(git *GitConfig) string {
	dir := defaultManifestDir
	if git != nil && git.TargetPath != "" {
		dir = git.TargetPath
	}

	return path.Join(dir, template.ParameterRef(template.ParamName)+".yaml")
}

func (g *Generator) registerStep() template.Step {
	catalogPath := g.cfg.CatalogInfoPath
	if catalogPath == "" {
		catalogPath = defaultCatalogInfoPath
	}

	input := map[string]interface{}{
		"catalogInfoPath": catalogPath,
	}

	git := g.gitConfig()

	// Only the direct push publishes repoContentsUrl.
	if git != nil {
		input["repoContentsUrl"] = template.StepOutput(IDPublishGit, "repoContentsUrl")
	}

	return template.Step{
		ID:     IDRegister,
		Name:   "Register in catalog",
		Action: "catalog:register",
		Input:  input,
		If:     directPushCondition(git),
	}
}
