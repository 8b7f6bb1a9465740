package config

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DefaultPort is the internal port assumed for a container that does not
// declare one, and the host port used by `switch` when none is given.
const DefaultPort = 8000

const (
	DefaultProxyName = "proxy-manager"
	DefaultNetwork   = "proxy-net"
)

// ContainerEntry describes one backend application container known to the
// registry. Name must match the runtime container name; Label is an optional
// alias usable anywhere a name is.
type ContainerEntry struct {
	Name    string `json:"name"`
	Label   string `json:"label,omitempty"`
	Port    int    `json:"port,omitempty"`
	Network string `json:"network,omitempty"`
}

// InternalPort returns the port the container listens on inside its network.
func (c ContainerEntry) InternalPort() int {
	if c.Port > 0 {
		return c.Port
	}
	return DefaultPort
}

// Route maps an external host port to a target container by name.
type Route struct {
	HostPort int    `json:"host_port"`
	Target   string `json:"target"`
}

// Model is the persisted registry document: the declarative description of
// which containers exist and which host port routes to which container.
// The running proxy container and its image are derived artifacts, rebuilt
// from the Model on every reconciliation.
type Model struct {
	Containers []ContainerEntry
	Routes     []Route
	ProxyName  string
	Network    string

	// Unknown top-level fields from the persisted document, carried through
	// save so hand-added keys survive a load/mutate/save cycle.
	extra map[string]json.RawMessage
}

// Default returns a fresh Model with empty containers and routes.
func Default() *Model {
	return &Model{
		Containers: []ContainerEntry{},
		Routes:     []Route{},
		ProxyName:  DefaultProxyName,
		Network:    DefaultNetwork,
	}
}

func (m *Model) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	known := map[string]any{
		"containers": &m.Containers,
		"routes":     &m.Routes,
		"proxy_name": &m.ProxyName,
		"network":    &m.Network,
	}
	for key, dst := range known {
		if val, ok := raw[key]; ok {
			if err := json.Unmarshal(val, dst); err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			delete(raw, key)
		}
	}
	if len(raw) > 0 {
		m.extra = raw
	}
	return nil
}

func (m *Model) MarshalJSON() ([]byte, error) {
	doc := make(map[string]json.RawMessage, len(m.extra)+4)
	for key, val := range m.extra {
		doc[key] = val
	}

	known := map[string]any{
		"containers": m.Containers,
		"routes":     m.Routes,
		"proxy_name": m.ProxyName,
		"network":    m.Network,
	}
	for key, val := range known {
		enc, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		doc[key] = enc
	}
	return json.Marshal(doc)
}

// ProxyImage returns the image tag the proxy is built as.
func (m *Model) ProxyImage() string {
	return m.ProxyName + ":latest"
}

// FindContainer looks up a container entry by name or label. Returns nil
// when nothing matches.
func (m *Model) FindContainer(identifier string) *ContainerEntry {
	for i := range m.Containers {
		c := &m.Containers[i]
		if c.Name == identifier || (c.Label != "" && c.Label == identifier) {
			return c
		}
	}
	return nil
}

// FindRoute looks up a route by host port. Returns nil when nothing matches.
func (m *Model) FindRoute(hostPort int) *Route {
	for i := range m.Routes {
		if m.Routes[i].HostPort == hostPort {
			return &m.Routes[i]
		}
	}
	return nil
}

// HostPorts returns every host port the proxy publishes. When no routes are
// configured it falls back to the single default port so a generated image
// always exposes something.
func (m *Model) HostPorts() []int {
	if len(m.Routes) == 0 {
		return []int{DefaultPort}
	}
	ports := make([]int, 0, len(m.Routes))
	for _, r := range m.Routes {
		ports = append(ports, r.HostPort)
	}
	return ports
}

// SortRoutes orders routes ascending by host port. Called after every route
// mutation so the document and the generated config stay deterministic.
func (m *Model) SortRoutes() {
	sort.Slice(m.Routes, func(i, j int) bool {
		return m.Routes[i].HostPort < m.Routes[j].HostPort
	})
}
