// Package manager holds the reconciliation engine: the lifecycle state
// machine for the proxy container and the registry operations that feed it.
// The proxy container and its image are derived from the registry Model and
// rebuilt on every reconciliation; the runtime's container list, not local
// state, is the source of truth for whether the proxy is running.
package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"switchboard/config"
	"switchboard/docker"
	"switchboard/nginx"
)

const (
	defaultSettleTimeout = 10 * time.Second
	defaultPollInterval  = 200 * time.Millisecond
)

// ProxyManager drives the proxy container through start, stop, reload,
// restart and per-route teardown.
type ProxyManager struct {
	store   *config.Store
	runtime Runtime

	// Strict makes config generation fail on routes whose target container
	// is no longer registered, instead of silently skipping them.
	Strict bool

	// SettleTimeout caps how long restart/reload wait for the old proxy
	// container to disappear before starting the new one.
	SettleTimeout time.Duration
	PollInterval  time.Duration
}

// NewProxyManager wires the lifecycle controller to a registry store and a
// container runtime.
func NewProxyManager(store *config.Store, runtime Runtime) *ProxyManager {
	return &ProxyManager{
		store:         store,
		runtime:       runtime,
		SettleTimeout: defaultSettleTimeout,
		PollInterval:  defaultPollInterval,
	}
}

// EnsureNetwork creates the named bridge network unless it already exists.
func (pm *ProxyManager) EnsureNetwork(ctx context.Context, name string) error {
	existing, err := pm.runtime.NetworkNames(ctx)
	if err != nil {
		return err
	}
	for _, n := range existing {
		if n == name {
			return nil
		}
	}
	log.Printf("Creating network: %s", name)
	return pm.runtime.CreateNetwork(ctx, name)
}

// referencedNetworks returns the default network plus every network a
// registered container declares, deduplicated and sorted.
func referencedNetworks(model *config.Model) []string {
	seen := map[string]bool{model.Network: true}
	for _, c := range model.Containers {
		if c.Network != "" {
			seen[c.Network] = true
		}
	}
	networks := make([]string, 0, len(seen))
	for n := range seen {
		networks = append(networks, n)
	}
	sort.Strings(networks)
	return networks
}

// BuildImage regenerates the nginx configuration and build recipe from the
// Model, writes them to the store's build directory and builds the proxy
// image. Build failures surface the daemon's message and are never retried.
func (pm *ProxyManager) BuildImage(ctx context.Context, model *config.Model) error {
	buildCtx, err := nginx.NewBuildContext(model, nginx.Options{Strict: pm.Strict})
	if err != nil {
		return err
	}
	if err := buildCtx.WriteTo(pm.store.BuildDir()); err != nil {
		return err
	}

	log.Println("Building proxy image...")
	return pm.runtime.BuildImage(ctx, pm.store.BuildDir(), model.ProxyImage())
}

// Start brings the proxy up from the current Model: ensures every referenced
// network exists, builds a fresh image and runs the container publishing all
// route host ports. Calling Start while the proxy container already exists is
// a no-op.
func (pm *ProxyManager) Start(ctx context.Context) error {
	model, err := pm.store.Load()
	if err != nil {
		return err
	}
	if len(model.Containers) == 0 {
		return errNoContainers()
	}
	if len(model.Routes) == 0 {
		return errNoRoutes()
	}

	networks := referencedNetworks(model)
	for _, network := range networks {
		if err := pm.EnsureNetwork(ctx, network); err != nil {
			return err
		}
	}

	exists, err := pm.runtime.ContainerExists(ctx, model.ProxyName)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("Proxy already running: %s", model.ProxyName)
		return nil
	}

	if err := pm.BuildImage(ctx, model); err != nil {
		return err
	}

	log.Printf("Starting proxy: %s", model.ProxyName)
	if err := pm.runtime.RunContainer(ctx, model.ProxyImage(), model.ProxyName, model.Network, model.HostPorts()); err != nil {
		return err
	}

	for _, network := range networks {
		if network == model.Network {
			continue
		}
		if err := pm.runtime.ConnectNetwork(ctx, network, model.ProxyName); err != nil {
			log.Printf("Warning: could not connect to network %s: %v", network, err)
			continue
		}
		log.Printf("Connected proxy to network: %s", network)
	}

	log.Printf("Proxy started on port(s): %s", joinPorts(model.HostPorts()))
	return nil
}

// Stop tears the proxy container down. The second return reports whether a
// container was actually running; an absent proxy is not an error.
func (pm *ProxyManager) Stop(ctx context.Context) (bool, error) {
	model, err := pm.store.Load()
	if err != nil {
		return false, err
	}

	exists, err := pm.runtime.ContainerExists(ctx, model.ProxyName)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	log.Printf("Stopping proxy: %s", model.ProxyName)
	if err := pm.runtime.StopAndRemoveContainer(ctx, model.ProxyName); err != nil {
		return false, err
	}
	return true, nil
}

// waitRemoved polls the runtime until the named container is gone, so a
// subsequent Start cannot race the old container's teardown.
func (pm *ProxyManager) waitRemoved(ctx context.Context, name string) error {
	deadline := time.Now().Add(pm.SettleTimeout)
	for {
		exists, err := pm.runtime.ContainerExists(ctx, name)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("container %s still present after %s", name, pm.SettleTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pm.PollInterval):
		}
	}
}

// Restart stops the proxy, waits for its removal to complete and starts it
// again from a freshly built image.
func (pm *ProxyManager) Restart(ctx context.Context) error {
	model, err := pm.store.Load()
	if err != nil {
		return err
	}
	if _, err := pm.Stop(ctx); err != nil {
		return err
	}
	if err := pm.waitRemoved(ctx, model.ProxyName); err != nil {
		return err
	}
	return pm.Start(ctx)
}

// Reload applies registry changes by rebuilding and restarting the proxy.
// The configuration is baked into the image, so there is no hot path. It
// fails fast when the Model could not produce a runnable proxy.
func (pm *ProxyManager) Reload(ctx context.Context) error {
	model, err := pm.store.Load()
	if err != nil {
		return err
	}
	if len(model.Containers) == 0 {
		return errNoContainers()
	}
	if len(model.Routes) == 0 {
		return errNoRoutes()
	}

	log.Println("Reloading proxy...")
	return pm.Restart(ctx)
}

// StopPort removes the route on hostPort and re-reconciles: with routes
// remaining the proxy is reloaded with the smaller route set; with none left
// it is stopped entirely.
func (pm *ProxyManager) StopPort(ctx context.Context, hostPort int) error {
	model, err := pm.store.Load()
	if err != nil {
		return err
	}
	if model.FindRoute(hostPort) == nil {
		return fmt.Errorf("no route found for port %d", hostPort)
	}

	routes := model.Routes[:0]
	for _, r := range model.Routes {
		if r.HostPort != hostPort {
			routes = append(routes, r)
		}
	}
	model.Routes = routes
	if err := pm.store.Save(model); err != nil {
		return err
	}
	log.Printf("Removed route: port %d", hostPort)

	if len(model.Routes) > 0 {
		return pm.Reload(ctx)
	}
	_, err = pm.Stop(ctx)
	return err
}

// RouteStatus is one row of the status table.
type RouteStatus struct {
	HostPort     int
	Target       string
	InternalPort int
	TargetKnown  bool
}

// Status describes the proxy container and the configured routes.
type Status struct {
	ProxyName string
	Running   bool
	State     string
	Routes    []RouteStatus
}

// Status reports the proxy's runtime state alongside the route table.
func (pm *ProxyManager) Status(ctx context.Context) (*Status, error) {
	model, err := pm.store.Load()
	if err != nil {
		return nil, err
	}

	status := &Status{ProxyName: model.ProxyName}
	state, err := pm.runtime.ContainerStatus(ctx, model.ProxyName)
	switch {
	case err == nil:
		status.Running = true
		status.State = state
	case errors.Is(err, docker.ErrNotFound):
		// proxy absent, leave Running false
	default:
		return nil, err
	}

	for _, route := range model.Routes {
		rs := RouteStatus{HostPort: route.HostPort, Target: route.Target}
		for _, c := range model.Containers {
			if c.Name == route.Target {
				rs.TargetKnown = true
				rs.InternalPort = c.InternalPort()
				break
			}
		}
		status.Routes = append(status.Routes, rs)
	}
	return status, nil
}

// Logs streams the proxy container's log output.
func (pm *ProxyManager) Logs(ctx context.Context, follow bool, tail int, out io.Writer) error {
	model, err := pm.store.Load()
	if err != nil {
		return err
	}
	return pm.runtime.ContainerLogs(ctx, model.ProxyName, follow, tail, out)
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}
