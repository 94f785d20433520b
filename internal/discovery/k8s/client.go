// Package k8s discovers sibling flagcore nodes running in the same
// Kubernetes cluster, as an alternative to a statically configured
// internal/sync.RemoteSource address: nodes label a ConfigMap
// "flagcore.io/role=source" carrying their sync endpoint, and a node
// wanting to sync lists candidates by that label instead of requiring
// an operator to hand-wire a URL. Fully optional: a nil Client leaves
// internal/sync to static configuration.
//
// Grounded on internal/infrastructure/k8s/client.go, generalized from
// Secret discovery for publishing targets to ConfigMap discovery for
// sync endpoints.
package k8s

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// DefaultLabelSelector is the label a flagcore node's ConfigMap must
// carry to be discoverable as a sync source.
const DefaultLabelSelector = "flagcore.io/role=source"

// SyncURLKey and TransportKey name the ConfigMap data fields a
// discovered node's sync endpoint and transport kind are read from.
const (
	SyncURLKey   = "flagcore.io/sync-url"
	TransportKey = "flagcore.io/transport"
)

// Node describes one discovered sibling, enough to construct an
// internal/sync/sse.Source or internal/sync/push.Source against it.
type Node struct {
	Name      string
	Namespace string
	SyncURL   string
	Transport string // "sse" or "push"; defaults to "sse" if unset
}

// Discoverer lists sibling flagcore nodes. Client is the production
// implementation; tests substitute a fake clientset via newClientset.
type Discoverer interface {
	Discover(ctx context.Context, namespace string) ([]Node, error)
	Health(ctx context.Context) error
}

// Config tunes the client's retry behavior, mirroring
// K8sClientConfig's {Timeout, MaxRetries, RetryBackoff, MaxRetryBackoff}.
type Config struct {
	LabelSelector   string
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
}

// DefaultConfig mirrors DefaultK8sClientConfig's values.
func DefaultConfig() Config {
	return Config{
		LabelSelector:   DefaultLabelSelector,
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RetryBackoff:    100 * time.Millisecond,
		MaxRetryBackoff: 5 * time.Second,
	}
}

// Client implements Discoverer using k8s.io/client-go.
type Client struct {
	clientset kubernetes.Interface
	cfg       Config
	logger    *slog.Logger
}

// NewClient builds a Client from in-cluster configuration. Callers
// outside a cluster (local dev, tests) should construct a Client
// directly with a fake or mocked clientset instead.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LabelSelector == "" {
		cfg.LabelSelector = DefaultLabelSelector
	}

	restCfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, NewConnectionError("failed to load in-cluster config", err)
	}
	restCfg.Timeout = cfg.Timeout

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, NewConnectionError("failed to create clientset", err)
	}

	return &Client{clientset: clientset, cfg: cfg, logger: logger}, nil
}

// newClientFromClientset builds a Client around an existing clientset,
// for tests to inject a fake.
func newClientFromClientset(clientset kubernetes.Interface, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LabelSelector == "" {
		cfg.LabelSelector = DefaultLabelSelector
	}
	return &Client{clientset: clientset, cfg: cfg, logger: logger}
}

// Discover lists ConfigMaps in namespace matching the configured label
// selector and extracts each one's sync endpoint. A ConfigMap missing
// SyncURLKey is skipped with a warning rather than failing the whole
// call.
func (c *Client) Discover(ctx context.Context, namespace string) ([]Node, error) {
	var list *corev1.ConfigMapList
	err := c.retryWithBackoff(ctx, func() error {
		l, err := c.clientset.CoreV1().ConfigMaps(namespace).List(ctx, metav1.ListOptions{
			LabelSelector: c.cfg.LabelSelector,
			Limit:         1000,
		})
		if err != nil {
			return err
		}
		list = l
		return nil
	})
	if err != nil {
		return nil, wrapK8sError("discover sync sources", err)
	}

	nodes := make([]Node, 0, len(list.Items))
	for _, cm := range list.Items {
		url := cm.Data[SyncURLKey]
		if url == "" {
			c.logger.Warn("discovery: skipping configmap without sync URL", "name", cm.Name, "namespace", cm.Namespace)
			continue
		}
		transport := cm.Data[TransportKey]
		if transport == "" {
			transport = "sse"
		}
		nodes = append(nodes, Node{Name: cm.Name, Namespace: cm.Namespace, SyncURL: url, Transport: transport})
	}

	c.logger.Info("discovery: found sync sources", "namespace", namespace, "count", len(nodes))
	return nodes, nil
}

// Health checks API server reachability via the discovery endpoint.
func (c *Client) Health(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.clientset.Discovery().ServerVersion()
	if err != nil {
		return NewConnectionError("k8s API unavailable", err)
	}
	if healthCtx.Err() != nil {
		return NewTimeoutError("health check timeout", healthCtx.Err())
	}
	return nil
}

func (c *Client) retryWithBackoff(ctx context.Context, op func() error) error {
	backoff := c.cfg.RetryBackoff
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return NewTimeoutError("operation cancelled", ctx.Err())
		default:
		}

		err := op()
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return err
		}
		if attempt == c.cfg.MaxRetries {
			return err
		}

		c.logger.Warn("discovery: retrying k8s operation", "attempt", attempt+1, "max_retries", c.cfg.MaxRetries, "error", err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return NewTimeoutError("operation cancelled during backoff", ctx.Err())
		}

		backoff *= 2
		if backoff > c.cfg.MaxRetryBackoff {
			backoff = c.cfg.MaxRetryBackoff
		}
	}
	return fmt.Errorf("discovery: operation failed after %d retries", c.cfg.MaxRetries)
}
