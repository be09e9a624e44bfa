// Package msgraph is a small Microsoft Graph client for looking up Entra ID
// users and groups when filling in template owners.
package msgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/hupe1980/xrd2template/internal/tokencache"
)

const (
	// DefaultBaseURL is the Graph v1.0 endpoint.
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"
	// DefaultScope requests the application's configured Graph permissions.
	DefaultScope = "https://graph.microsoft.com/.default"

	defaultLimit   = 25
	defaultTimeout = 30 * time.Second
)

// ErrUnauthorized is returned when Graph rejects the access token.
var ErrUnauthorized = errors.New("graph request unauthorized")

// Config holds the client-credentials settings of an Entra ID application.
type Config struct {
	TenantID     string `json:"tenantId,omitempty"`
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
	// TokenURL overrides the tenant's v2.0 token endpoint.
	TokenURL string `json:"tokenUrl,omitempty"`
	// BaseURL overrides DefaultBaseURL.
	BaseURL string `json:"baseUrl,omitempty"`
}

// Validate reports missing required settings.
func (c Config) Validate() error {
	var missing []string

	if c.TenantID == "" && c.TokenURL == "" {
		missing = append(missing, "tenantId")
	}

	if c.ClientID == "" {
		missing = append(missing, "clientId")
	}

	if c.ClientSecret == "" {
		missing = append(missing, "clientSecret")
	}

	if len(missing) > 0 {
		return fmt.Errorf("entra configuration incomplete: missing %s", strings.Join(missing, ", "))
	}

	return nil
}

// Kind selects the directory collection to search.
type Kind string

// Searchable kinds.
const (
	KindUser  Kind = "user"
	KindGroup Kind = "group"
)

// Entity is a user or group returned by a search.
type Entity struct {
	Kind              Kind   `json:"kind"`
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail,omitempty"`
	UserPrincipalName string `json:"userPrincipalName,omitempty"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for Graph requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenCache replaces the client-credentials token cache.
func WithTokenCache(tc *tokencache.Cache) Option {
	return func(c *Client) { c.tokens = tc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client searches Entra ID through Microsoft Graph.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *tokencache.Cache
	logger  *slog.Logger
}

// NewClient returns a Client authenticating with the client-credentials
// grant. Tokens are cached until five minutes before they expire.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  slog.Default(),
	}

	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.tokens == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}

		c.tokens = tokencache.New(ClientCredentialsRefresh(cfg))
	}

	return c, nil
}

// ClientCredentialsRefresh returns a refresh function fetching Graph tokens
// with the OAuth2 client-credentials grant.
func ClientCredentialsRefresh(cfg Config) tokencache.RefreshFunc {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(cfg.TenantID))
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{DefaultScope},
	}

	return func(ctx context.Context) (tokencache.Token, error) {
		tok, err := cc.Token(ctx)
		if err != nil {
			return tokencache.Token{}, fmt.Errorf("fetching graph token: %w", err)
		}

		return tokencache.Token{Value: tok.AccessToken, ExpiresAt: tok.Expiry}, nil
	}
}

// Search returns up to limit entities of kind whose display name or mail
// starts with query. limit <= 0 uses a default of 25.
func (c *Client) Search(ctx context.Context, kind Kind, query string, limit int) ([]Entity, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is empty")
	}

	if limit <= 0 {
		limit = defaultLimit
	}

	var (
		collection string
		fields     string
	)

	switch kind {
	case KindUser:
		collection, fields = "users", "id,displayName,mail,userPrincipalName"
	case KindGroup:
		collection, fields = "groups", "id,displayName,mail"
	default:
		return nil, fmt.Errorf("unsupported kind %q", kind)
	}

	escaped := strings.ReplaceAll(query, `"`, `\"`)

	params := url.Values{}
	params.Set("$search", fmt.Sprintf(`"displayName:%s" OR "mail:%s"`, escaped, escaped))
	params.Set("$select", fields)
	params.Set("$top", strconv.Itoa(limit))
	params.Set("$orderby", "displayName")

	var page struct {
		Value []Entity `json:"value"`
	}

	if err := c.get(ctx, "/"+collection+"?"+params.Encode(), &page); err != nil {
		return nil, err
	}

	for i := range page.Value {
		page.Value[i].Kind = kind
	}

	c.logger.Debug("graph search", slog.String("kind", string(kind)), slog.Int("results", len(page.Value)))

	return page.Value, nil
}

// get performs a Graph GET. A 401 drops the cached token and the request
// is retried once with a fresh one.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	err := c.do(ctx, path, out)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}

	c.logger.Debug("graph token rejected, retrying with a new token")

	return c.do(ctx, path, out)
}

func (c *Client) do(ctx context.Context, path string, out interface{}) error {
	token, err := c.tokens.Get(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	// Advanced queries ($search, $orderby) require eventual consistency.
	req.Header.Set("ConsistencyLevel", "eventual")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.tokens.Invalidate()
		return ErrUnauthorized
	case resp.StatusCode >= http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("graph request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding graph response: %w", err)
	}

	return nil
}
