package manager

import (
	"context"
	"errors"
	"fmt"
	"io"

	"switchboard/docker"
)

// Runtime is the container-runtime capability surface the control plane
// consumes. docker.Client implements it; tests substitute a fake.
type Runtime interface {
	ContainerExists(ctx context.Context, name string) (bool, error)
	ContainerStatus(ctx context.Context, name string) (string, error)
	ListContainers(ctx context.Context) ([]docker.ContainerSummary, error)
	ContainerNetwork(ctx context.Context, name string) (string, error)
	RunContainer(ctx context.Context, image, name, network string, hostPorts []int) error
	StopAndRemoveContainer(ctx context.Context, name string) error
	NetworkNames(ctx context.Context) ([]string, error)
	ListNetworks(ctx context.Context) ([]docker.NetworkSummary, error)
	CreateNetwork(ctx context.Context, name string) error
	ConnectNetwork(ctx context.Context, networkName, containerName string) error
	BuildImage(ctx context.Context, dir, tag string) error
	ContainerLogs(ctx context.Context, name string, follow bool, tail int, out io.Writer) error
}

// ErrNotRegistered reports an identifier that matches no registry entry.
var ErrNotRegistered = errors.New("not found in registry")

// ConfigIncompleteError reports a start or reload attempted before the
// registry has what the proxy needs. It is user guidance, not a fault.
type ConfigIncompleteError struct {
	Missing string // "containers" or "routes"
	Hint    string
}

func (e *ConfigIncompleteError) Error() string {
	return fmt.Sprintf("no %s configured. %s", e.Missing, e.Hint)
}

func errNoContainers() error {
	return &ConfigIncompleteError{Missing: "containers", Hint: "Use 'add' command first."}
}

func errNoRoutes() error {
	return &ConfigIncompleteError{Missing: "routes", Hint: "Use 'switch' command first."}
}
