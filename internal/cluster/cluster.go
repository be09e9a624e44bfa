// Package cluster discovers CompositeResourceDefinitions in one or more
// Kubernetes clusters.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/hupe1980/xrd2template/internal/loader"
	"github.com/hupe1980/xrd2template/internal/xrd"
)

// Resources listed, newest API first.
var (
	GVRv2 = schema.GroupVersionResource{Group: xrd.Group, Version: "v2", Resource: xrd.Resource}
	GVRv1 = schema.GroupVersionResource{Group: xrd.Group, Version: "v1", Resource: xrd.Resource}
)

// ClientFactory returns a dynamic client for a kubeconfig context. An empty
// context name selects the current context.
type ClientFactory func(contextName string) (dynamic.Interface, error)

// Options configure a Fetcher.
type Options struct {
	// Kubeconfig is an explicit kubeconfig path. Empty uses the default
	// loading rules (KUBECONFIG, ~/.kube/config).
	Kubeconfig string
	// Contexts to query. Empty queries the current context only.
	Contexts []string
	// Factory overrides client construction.
	Factory ClientFactory
	Logger  *slog.Logger
}

// Fetcher lists definitions from every configured context and merges them
// by name, recording the clusters each one was found in.
type Fetcher struct {
	opts Options
}

var _ loader.Loader = (*Fetcher)(nil)

// NewFetcher creates a Fetcher.
func NewFetcher(opts Options) *Fetcher {
	if opts.Factory == nil {
		opts.Factory = KubeconfigFactory(opts.Kubeconfig)
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Fetcher{opts: opts}
}

// KubeconfigFactory builds clients from kubeconfig contexts.
func KubeconfigFactory(kubeconfig string) ClientFactory {
	return func(contextName string) (dynamic.Interface, error) {
		cfg, err := clientConfig(kubeconfig, contextName).ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("loading kubeconfig context %q: %w", contextName, err)
		}

		return dynamic.NewForConfig(cfg)
	}
}

// CurrentContext returns the current context of the kubeconfig.
func CurrentContext(kubeconfig string) (string, error) {
	raw, err := clientConfig(kubeconfig, "").RawConfig()
	if err != nil {
		return "", fmt.Errorf("reading kubeconfig: %w", err)
	}

	return raw.CurrentContext, nil
}

func clientConfig(kubeconfig, contextName string) clientcmd.ClientConfig {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	rules.ExplicitPath = kubeconfig

	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{
		CurrentContext: contextName,
	})
}

// Load implements loader.Loader. ref is ignored.
func (f *Fetcher) Load(ctx context.Context, _ string) (*loader.Set, error) {
	defs, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	set := &loader.Set{}
	for _, d := range defs {
		set.Documents = append(set.Documents, loader.Document{Source: "cluster", Definition: d})
	}

	return set, nil
}

// Fetch lists definitions from all contexts concurrently. Any failing
// context fails the fetch.
func (f *Fetcher) Fetch(ctx context.Context) ([]*xrd.ResourceDefinition, error) {
	contexts := f.opts.Contexts
	if len(contexts) == 0 {
		contexts = []string{""}
	}

	results := make([][]*xrd.ResourceDefinition, len(contexts))

	g, gctx := errgroup.WithContext(ctx)

	for i, name := range contexts {
		g.Go(func() error {
			defs, err := f.fetchContext(gctx, name)
			if err != nil {
				return err
			}

			results[i] = defs

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return merge(results), nil
}

func (f *Fetcher) fetchContext(ctx context.Context, name string) ([]*xrd.ResourceDefinition, error) {
	client, err := f.opts.Factory(name)
	if err != nil {
		return nil, err
	}

	list, err := listDefinitions(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("context %q: %w", displayName(name), err)
	}

	defs := make([]*xrd.ResourceDefinition, 0, len(list.Items))

	for i := range list.Items {
		def, err := fromUnstructured(&list.Items[i])
		if err != nil {
			return nil, fmt.Errorf("context %q: %w", displayName(name), err)
		}

		if name != "" {
			def.AddCluster(name)
		}

		defs = append(defs, def)
	}

	f.opts.Logger.Debug("listed definitions", slog.String("context", displayName(name)), slog.Int("count", len(defs)))

	return defs, nil
}

// listDefinitions lists v2 definitions and falls back to v1 on clusters
// that do not serve v2.
func listDefinitions(ctx context.Context, client dynamic.Interface) (*unstructured.UnstructuredList, error) {
	list, err := client.Resource(GVRv2).List(ctx, metav1.ListOptions{})
	if err == nil {
		return list, nil
	}

	if !apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("listing %s: %w", GVRv2, err)
	}

	list, err = client.Resource(GVRv1).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", GVRv1, err)
	}

	return list, nil
}

func fromUnstructured(u *unstructured.Unstructured) (*xrd.ResourceDefinition, error) {
	data, err := u.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", u.GetName(), err)
	}

	return xrd.Parse(data)
}

// merge collapses definitions with the same name into the first occurrence,
// unioning their clusters. The result is sorted by name.
func merge(results [][]*xrd.ResourceDefinition) []*xrd.ResourceDefinition {
	byName := make(map[string]*xrd.ResourceDefinition)

	for _, defs := range results {
		for _, d := range defs {
			existing, ok := byName[d.Metadata.Name]
			if !ok {
				byName[d.Metadata.Name] = d
				continue
			}

			for _, c := range d.Clusters {
				existing.AddCluster(c)
			}
		}
	}

	out := make([]*xrd.ResourceDefinition, 0, len(byName))
	for _, d := range byName {
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Metadata.Name < out[j].Metadata.Name })

	return out
}

func displayName(contextName string) string {
	if contextName == "" {
		return "<current>"
	}

	return contextName
}
