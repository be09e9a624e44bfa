package config

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/hupe1980/xrd2template/internal/msgraph"
	"github.com/hupe1980/xrd2template/internal/steps"
)

// TemplateConfig holds the template-generation sections of the config file
// (.xrd2template.yaml).
type TemplateConfig struct {
	// Owner is the catalog entity owning generated templates,
	// e.g. "group:default/platform-team".
	Owner string `json:"owner,omitempty"`

	// TemplateType is spec.type of generated templates.
	TemplateType string `json:"templateType,omitempty"`

	// Tags are added to every generated template.
	Tags []string `json:"tags,omitempty"`

	Fetch FetchConfig `json:"fetch,omitempty"`

	Publish PublishConfig `json:"publish,omitempty"`

	// Register adds a catalog:register step.
	Register bool `json:"register,omitempty"`

	// CatalogInfoPath is registered by the register step.
	CatalogInfoPath string `json:"catalogInfoPath,omitempty"`

	Entra msgraph.Config `json:"entra,omitempty"`
}

// FetchConfig adds a skeleton fetch step.
type FetchConfig struct {
	URL string `json:"url,omitempty"`
}

// PublishConfig mirrors steps.PublishPhase with a top-level switch.
type PublishConfig struct {
	Enabled bool                `json:"enabled,omitempty"`
	Git     *steps.GitConfig    `json:"git,omitempty"`
	Flux    *steps.FluxConfig   `json:"flux,omitempty"`
	ArgoCD  *steps.ArgoCDConfig `json:"argocd,omitempty"`
}

// Environment overrides of the template sections.
const (
	EnvOwner             = EnvPrefix + "_OWNER"
	EnvTemplateType      = EnvPrefix + "_TEMPLATE_TYPE"
	EnvTags              = EnvPrefix + "_TAGS"
	EnvEntraTenantID     = EnvPrefix + "_ENTRA_TENANT_ID"
	EnvEntraClientID     = EnvPrefix + "_ENTRA_CLIENT_ID"
	EnvEntraClientSecret = EnvPrefix + "_ENTRA_CLIENT_SECRET"
)

// Template keys settable from flags. Flag names differ from the file keys.
var templateFlagKeys = map[string]string{
	"owner":         "owner",
	"template-type": "templateType",
	"tag":           "tags",
}

var templateEnvKeys = map[string]string{
	"owner":              EnvOwner,
	"templateType":       EnvTemplateType,
	"tags":               EnvTags,
	"entra.tenantId":     EnvEntraTenantID,
	"entra.clientId":     EnvEntraClientID,
	"entra.clientSecret": EnvEntraClientSecret,
}

var (
	entityRefPattern = regexp.MustCompile(`^([a-z][a-z0-9-]*:)?([a-z0-9][a-z0-9._-]*/)?[A-Za-z0-9][A-Za-z0-9._-]*$`)
	tagPattern       = regexp.MustCompile(`^[a-z0-9:+#]+(-[a-z0-9:+#]+)*$`)
)

// ParseTemplateConfig parses the template sections from raw config file
// bytes. Unknown keys, including the global settings, are ignored.
// Environment overrides are not applied.
func ParseTemplateConfig(data []byte) (*TemplateConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("parsing template config: %w", err)
	}

	return decodeTemplate(v)
}

func bindTemplateEnv(v *viper.Viper) {
	for key, env := range templateEnvKeys {
		_ = v.BindEnv(key, env)
	}
}

// decodeTemplate reads the template sections from v. The file keys are
// the json names of TemplateConfig and its nested step types.
func decodeTemplate(v *viper.Viper) (*TemplateConfig, error) {
	var cfg TemplateConfig

	err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "json"
	})
	if err != nil {
		return nil, fmt.Errorf("parsing template config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field formats. Incomplete publishing configuration is
// reported separately by steps.Config.Validate.
func (c *TemplateConfig) Validate() error {
	if c.Owner != "" && !entityRefPattern.MatchString(c.Owner) {
		return fmt.Errorf("owner %q is not a valid entity reference", c.Owner)
	}

	for i, tag := range c.Tags {
		if len(tag) > 63 || !tagPattern.MatchString(tag) {
			return fmt.Errorf("tags[%d]: %q must be lowercase alphanumeric words separated by dashes", i, tag)
		}
	}

	if git := c.Publish.Git; git != nil {
		switch git.Provider {
		case "", steps.ProviderGitHub, steps.ProviderGitLab:
		default:
			return fmt.Errorf("publish.git.provider %q: must be github or gitlab", git.Provider)
		}
	}

	return nil
}

// StepsConfig converts the file sections into the step generator config.
func (c *TemplateConfig) StepsConfig() steps.Config {
	cfg := steps.Config{
		FetchURL:        c.Fetch.URL,
		Register:        c.Register,
		CatalogInfoPath: c.CatalogInfoPath,
		Publish:         steps.PublishConfig{Enabled: c.Publish.Enabled},
	}

	if c.Publish.Git != nil || c.Publish.Flux != nil || c.Publish.ArgoCD != nil {
		cfg.Publish.Phase = &steps.PublishPhase{
			Git:    c.Publish.Git,
			Flux:   c.Publish.Flux,
			ArgoCD: c.Publish.ArgoCD,
		}
	}

	return cfg
}
