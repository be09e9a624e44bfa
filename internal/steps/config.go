package steps

// Git providers.
const (
	ProviderGitHub = "github"
	ProviderGitLab = "gitlab"
)

// Config controls which optional steps a Generator emits.
type Config struct {
	// FetchURL adds a fetch:template step pulling a skeleton from this URL.
	FetchURL string `json:"fetchUrl,omitempty"`

	// Publish configures GitOps publishing.
	Publish PublishConfig `json:"publish,omitempty"`

	// Register adds a catalog:register step.
	Register bool `json:"register,omitempty"`

	// CatalogInfoPath is the catalog file path registered by the register
	// step (default: /catalog-info.yaml).
	CatalogInfoPath string `json:"catalogInfoPath,omitempty"`
}

// PublishConfig enables publishing and holds its phase configuration.
type PublishConfig struct {
	Enabled bool          `json:"enabled,omitempty"`
	Phase   *PublishPhase `json:"phase,omitempty"`
}

// PublishPhase groups the independently optional publishing targets.
type PublishPhase struct {
	Git    *GitConfig    `json:"git,omitempty"`
	Flux   *FluxConfig   `json:"flux,omitempty"`
	ArgoCD *ArgoCDConfig `json:"argocd,omitempty"`
}

// GitConfig publishes the rendered manifest to a git repository.
type GitConfig struct {
	RepoURL     string `json:"repoUrl,omitempty"`
	Branch      string `json:"branch,omitempty"`
	TargetPath  string `json:"targetPath,omitempty"`
	PullRequest bool   `json:"pullRequest,omitempty"`
	Provider    string `json:"provider,omitempty"`
}

// ProviderName returns Provider, defaulting to GitHub.
func (g *GitConfig) ProviderName() string {
	if g.Provider == "" {
		return ProviderGitHub
	}

	return g.Provider
}

// FluxConfig triggers a Flux Kustomization reconciliation.
type FluxConfig struct {
	Kustomization string `json:"kustomization,omitempty"`
	Namespace     string `json:"namespace,omitempty"`
}

// ArgoCDConfig triggers an Argo CD application sync.
type ArgoCDConfig struct {
	Application string `json:"application,omitempty"`
	Instance    string `json:"instance,omitempty"`
}

func (c Config) phase() *PublishPhase {
	if !c.Publish.Enabled {
		return nil
	}

	return c.Publish.Phase
}

// GitEnabled reports whether git publishing is active.
func (c Config) GitEnabled() bool {
	p := c.phase()
	return p != nil && p.Git != nil
}

// FluxEnabled reports whether Flux reconciliation is active.
func (c Config) FluxEnabled() bool {
	p := c.phase()
	return p != nil && p.Flux != nil
}

// ArgoCDEnabled reports whether Argo CD sync is active.
func (c Config) ArgoCDEnabled() bool {
	p := c.phase()
	return p != nil && p.ArgoCD != nil
}

// Validate reports configuration problems without failing. Generate does not
// re-check them and produces a best-effort step list when misconfigured.
func (c Config) Validate() []string {
	var issues []string

	if c.Publish.Enabled && c.Publish.Phase == nil {
		issues = append(issues, "publishing enabled but publish-phase config missing")
	}

	if c.GitEnabled() && c.Publish.Phase.Git.RepoURL == "" {
		issues = append(issues, "git publishing configured but repository URL missing")
	}

	if c.FluxEnabled() && c.Publish.Phase.Flux.Kustomization == "" {
		issues = append(issues, "flux configured but kustomization name missing")
	}

	if c.ArgoCDEnabled() && c.Publish.Phase.ArgoCD.Application == "" {
		issues = append(issues, "argocd configured but application name missing")
	}

	if c.Register && !c.GitEnabled() {
		issues = append(issues, "register enabled but git publishing not configured")
	}

	return issues
}
