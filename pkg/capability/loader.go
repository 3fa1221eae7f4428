package capability

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/corebridge/agentcore/pkg/registry"
)

func secondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds * float64(time.Second))
}

// NamespaceSeparator joins a capability name to its tool name when a
// tool is exposed to the chat model (spec.md §4.4 `"<capability>__<tool>"`).
const NamespaceSeparator = "__"

// Namespace returns the fully-qualified tool name for capability/tool.
func Namespace(capability, tool string) string {
	return capability + NamespaceSeparator + tool
}

// Split reverses Namespace, returning the capability and tool name it
// was built from. ok is false if name carries no separator.
func Split(name string) (capability, tool string, ok bool) {
	idx := strings.Index(name, NamespaceSeparator)
	if idx < 0 {
		return "", "", false
	}
	return name[:idx], name[idx+len(NamespaceSeparator):], true
}

// CredentialMinter mints the bearer credential a capability client
// presents to its server, given the descriptor and the caller's
// identity, tenant and roles. The example capability servers in this
// tree do not read it; they scope rows from the rbac_context argument
// (capsrv.ParseRBACContext).
type CredentialMinter func(desc registry.CapabilityDescriptor, callerID, tenantID string, roles []string) (string, error)

// loadedCapability is the loader's cached view of one capability:
// its live client plus the namespaced tools it currently exposes.
type loadedCapability struct {
	client *Client
	tools  []Tool
}

// Loader is C4, the Capability Loader: it pools capability clients,
// coalesces concurrent discovery calls per capability, and exposes
// tools to the orchestrator under namespaced names.
type Loader struct {
	registry *registry.CapabilityRegistry
	mint     CredentialMinter

	mu    sync.RWMutex
	cache map[string]*loadedCapability

	group singleflight.Group
}

// NewLoader builds a Loader over a capability registry. mint may be
// nil, in which case clients connect without a bearer credential.
func NewLoader(reg *registry.CapabilityRegistry, mint CredentialMinter) *Loader {
	return &Loader{
		registry: reg,
		mint:     mint,
		cache:    make(map[string]*loadedCapability),
	}
}

// Load returns the namespaced tools for one capability, connecting
// and discovering lazily and caching the result until Refresh is
// called for that capability (spec.md §4.4 `load(capability)`).
func (l *Loader) Load(ctx context.Context, capabilityName string, callerID, tenantID string, roles []string, timeoutSeconds float64) ([]string, map[string]Tool, error) {
	desc, ok := l.registry.Descriptor(capabilityName)
	if !ok {
		return nil, nil, fmt.Errorf("capability: unknown capability %q", capabilityName)
	}

	l.mu.RLock()
	cached, ok := l.cache[capabilityName]
	l.mu.RUnlock()
	if ok {
		return namespacedNames(capabilityName, cached.tools), namespacedToolMap(capabilityName, cached.tools), nil
	}

	v, err, _ := l.group.Do(capabilityName, func() (interface{}, error) {
		return l.discover(ctx, desc, callerID, tenantID, roles, timeoutSeconds)
	})
	if err != nil {
		return nil, nil, err
	}
	lc := v.(*loadedCapability)
	return namespacedNames(capabilityName, lc.tools), namespacedToolMap(capabilityName, lc.tools), nil
}

func (l *Loader) discover(ctx context.Context, desc registry.CapabilityDescriptor, callerID, tenantID string, roles []string, timeoutSeconds float64) (*loadedCapability, error) {
	credential := ""
	if l.mint != nil {
		var err error
		credential, err = l.mint(desc, callerID, tenantID, roles)
		if err != nil {
			return nil, fmt.Errorf("capability %s: mint credential: %w", desc.Name, err)
		}
	}

	timeout := secondsToDuration(timeoutSeconds)
	c := NewClient(desc.Name, desc.URL, credential, timeout)
	tools, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}

	lc := &loadedCapability{client: c, tools: tools}
	l.mu.Lock()
	l.cache[desc.Name] = lc
	l.mu.Unlock()
	return lc, nil
}

// Client returns the pooled client for a capability, or nil if it has
// not been loaded yet.
func (l *Loader) Client(capabilityName string) *Client {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lc, ok := l.cache[capabilityName]
	if !ok {
		return nil
	}
	return lc.client
}

// Refresh drops the cached discovery for one capability, forcing the
// next Load to reconnect and re-list tools (spec.md §4.4 `refresh()`,
// used on a schema-mismatch signal from the orchestrator).
func (l *Loader) Refresh(capabilityName string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, capabilityName)
}

// CloseAll closes every pooled client (spec.md §4.4 `close_all()`),
// used on graceful shutdown.
func (l *Loader) CloseAll() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for name, lc := range l.cache {
		if err := lc.client.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("capability %s: close: %w", name, err)
		}
		delete(l.cache, name)
	}
	return firstErr
}

func namespacedNames(capabilityName string, tools []Tool) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, Namespace(capabilityName, t.Name))
	}
	return names
}

func namespacedToolMap(capabilityName string, tools []Tool) map[string]Tool {
	out := make(map[string]Tool, len(tools))
	for _, t := range tools {
		out[Namespace(capabilityName, t.Name)] = t
	}
	return out
}
