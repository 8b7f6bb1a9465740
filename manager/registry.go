package manager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"switchboard/config"
	"switchboard/docker"
)

// Registry applies CRUD mutations to the persisted Model. Route changes are
// the one mutation that reconciles immediately; container changes persist
// only, leaving the caller to reload.
type Registry struct {
	store   *config.Store
	runtime Runtime
	proxy   *ProxyManager
}

// NewRegistry wires the registry operations to a store, a runtime (for
// network auto-detection and discovery) and the lifecycle controller.
func NewRegistry(store *config.Store, runtime Runtime, proxy *ProxyManager) *Registry {
	return &Registry{store: store, runtime: runtime, proxy: proxy}
}

// AddContainer upserts a container entry by name. When no network is given
// it is auto-detected from the live container's current attachment. Returns
// true when an existing entry was updated rather than added.
func (r *Registry) AddContainer(ctx context.Context, name, label string, port int, network string) (bool, error) {
	model, err := r.store.Load()
	if err != nil {
		return false, err
	}

	if network == "" {
		detected, err := r.runtime.ContainerNetwork(ctx, name)
		if err != nil && !errors.Is(err, docker.ErrNotFound) {
			return false, err
		}
		if detected != "" {
			network = detected
			log.Printf("Auto-detected network: %s", network)
		}
	}

	var existing *config.ContainerEntry
	for i := range model.Containers {
		if model.Containers[i].Name == name {
			existing = &model.Containers[i]
			break
		}
	}

	updated := existing != nil
	if existing != nil {
		if label != "" {
			existing.Label = label
		}
		if port > 0 {
			existing.Port = port
		}
		if network != "" {
			existing.Network = network
		}
	} else {
		model.Containers = append(model.Containers, config.ContainerEntry{
			Name:    name,
			Label:   label,
			Port:    port,
			Network: network,
		})
	}

	if err := r.store.Save(model); err != nil {
		return false, err
	}
	return updated, nil
}

// RemoveContainer deletes a container entry by name or label, cascading to
// every route that targeted it. The proxy is not reconciled; a stale running
// proxy is resolved by the next reload. Returns the removed container name.
func (r *Registry) RemoveContainer(ctx context.Context, identifier string) (string, error) {
	model, err := r.store.Load()
	if err != nil {
		return "", err
	}

	entry := model.FindContainer(identifier)
	if entry == nil {
		return "", fmt.Errorf("container %q: %w", identifier, ErrNotRegistered)
	}
	name := entry.Name

	containers := model.Containers[:0]
	for _, c := range model.Containers {
		if c.Name != name {
			containers = append(containers, c)
		}
	}
	model.Containers = containers

	routes := model.Routes[:0]
	for _, route := range model.Routes {
		if route.Target != name {
			routes = append(routes, route)
		}
	}
	model.Routes = routes

	if err := r.store.Save(model); err != nil {
		return "", err
	}
	return name, nil
}

// SwitchTarget routes hostPort to the container matching identifier,
// retargeting an existing route on that port or appending a new one, then
// reloads the proxy so the change takes effect. A hostPort of zero means the
// default port. Returns true when a new route was added.
func (r *Registry) SwitchTarget(ctx context.Context, identifier string, hostPort int) (bool, error) {
	model, err := r.store.Load()
	if err != nil {
		return false, err
	}

	entry := model.FindContainer(identifier)
	if entry == nil {
		return false, fmt.Errorf("container %q: %w", identifier, ErrNotRegistered)
	}
	if hostPort <= 0 {
		hostPort = config.DefaultPort
	}

	added := false
	if route := model.FindRoute(hostPort); route != nil {
		route.Target = entry.Name
		log.Printf("Switching route: %d -> %s", hostPort, entry.Name)
	} else {
		model.Routes = append(model.Routes, config.Route{HostPort: hostPort, Target: entry.Name})
		added = true
		log.Printf("Adding route: %d -> %s", hostPort, entry.Name)
	}
	model.SortRoutes()

	if err := r.store.Save(model); err != nil {
		return false, err
	}
	return added, r.proxy.Reload(ctx)
}

// DetectContainers lists the runtime's containers, optionally filtered by a
// case-insensitive name substring.
func (r *Registry) DetectContainers(ctx context.Context, filter string) ([]docker.ContainerSummary, error) {
	containers, err := r.runtime.ListContainers(ctx)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return containers, nil
	}

	needle := strings.ToLower(filter)
	matched := containers[:0]
	for _, c := range containers {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

// Networks lists the runtime's virtual networks.
func (r *Registry) Networks(ctx context.Context) ([]docker.NetworkSummary, error) {
	return r.runtime.ListNetworks(ctx)
}
