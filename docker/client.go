// Package docker wraps the Docker SDK behind the small runtime surface the
// control plane needs: container lifecycle, virtual networks, image builds
// and log streaming. Not-found conditions are normalized to ErrNotFound so
// callers can distinguish them from real failures.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// ErrNotFound reports that a referenced container or network does not exist.
var ErrNotFound = errors.New("not found")

// Client talks to the local Docker daemon.
type Client struct {
	cli *client.Client
}

// NewClient connects to the daemon using the standard environment settings.
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Client{cli: cli}, nil
}

// ContainerSummary is the subset of container details the CLI surfaces.
type ContainerSummary struct {
	Name   string
	Image  string
	State  string
	Status string
}

// NetworkSummary is the subset of network details the CLI surfaces.
type NetworkSummary struct {
	Name       string
	Driver     string
	Scope      string
	Containers int
}

// ContainerExists reports whether a container with the given name exists,
// running or not.
func (c *Client) ContainerExists(ctx context.Context, name string) (bool, error) {
	_, err := c.cli.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}
	return true, nil
}

// ContainerStatus returns the container's current status string (running,
// exited, ...). Returns ErrNotFound when the container does not exist.
func (c *Client) ContainerStatus(ctx context.Context, name string) (string, error) {
	inspect, err := c.cli.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", fmt.Errorf("container %s: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("failed to inspect container %s: %w", name, err)
	}
	if inspect.State == nil {
		return "unknown", nil
	}
	return inspect.State.Status, nil
}

// ListContainers returns every container known to the daemon, running or not.
func (c *Client) ListContainers(ctx context.Context) ([]ContainerSummary, error) {
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	result := make([]ContainerSummary, 0, len(containers))
	for _, ctr := range containers {
		name := ""
		if len(ctr.Names) > 0 {
			name = strings.TrimPrefix(ctr.Names[0], "/")
		}
		result = append(result, ContainerSummary{
			Name:   name,
			Image:  ctr.Image,
			State:  ctr.State,
			Status: ctr.Status,
		})
	}
	return result, nil
}

// ContainerNetwork returns the first network the named container is attached
// to, or ErrNotFound when the container does not exist.
func (c *Client) ContainerNetwork(ctx context.Context, name string) (string, error) {
	inspect, err := c.cli.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", fmt.Errorf("container %s: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("failed to inspect container %s: %w", name, err)
	}
	if inspect.NetworkSettings == nil || len(inspect.NetworkSettings.Networks) == 0 {
		return "", nil
	}

	names := make([]string, 0, len(inspect.NetworkSettings.Networks))
	for netName := range inspect.NetworkSettings.Networks {
		names = append(names, netName)
	}
	sort.Strings(names)
	return names[0], nil
}

// RunContainer creates and starts a detached container from image, attached
// to networkName, publishing every host port 1:1.
func (c *Client) RunContainer(ctx context.Context, image, name, networkName string, hostPorts []int) error {
	exposedPorts := nat.PortSet{}
	portBindings := nat.PortMap{}
	for _, port := range hostPorts {
		containerPort := nat.Port(fmt.Sprintf("%d/tcp", port))
		exposedPorts[containerPort] = struct{}{}
		portBindings[containerPort] = []nat.PortBinding{
			{HostIP: "0.0.0.0", HostPort: fmt.Sprintf("%d", port)},
		}
	}

	resp, err := c.cli.ContainerCreate(
		ctx,
		&container.Config{
			Image:        image,
			ExposedPorts: exposedPorts,
		},
		&container.HostConfig{
			PortBindings: portBindings,
		},
		&network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				networkName: {},
			},
		},
		nil,
		name,
	)
	if err != nil {
		return fmt.Errorf("failed to create container %s: %w", name, err)
	}

	if err := c.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Best effort cleanup so a retry is not blocked by the dead container.
		_ = c.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
		return fmt.Errorf("failed to start container %s: %w", name, err)
	}
	return nil
}

// StopAndRemoveContainer stops the named container and removes it. Returns
// ErrNotFound when no such container exists.
func (c *Client) StopAndRemoveContainer(ctx context.Context, name string) error {
	if err := c.cli.ContainerStop(ctx, name, container.StopOptions{}); err != nil {
		if client.IsErrNotFound(err) {
			return fmt.Errorf("container %s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("failed to stop container %s: %w", name, err)
	}

	if err := c.cli.ContainerRemove(ctx, name, container.RemoveOptions{}); err != nil {
		if client.IsErrNotFound(err) {
			// Already gone, which is what we wanted.
			return nil
		}
		return fmt.Errorf("failed to remove container %s: %w", name, err)
	}
	return nil
}

// ContainerLogs streams the named container's log output to out,
// demultiplexing the stdout/stderr frames.
func (c *Client) ContainerLogs(ctx context.Context, name string, follow bool, tail int, out io.Writer) error {
	reader, err := c.cli.ContainerLogs(ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
		Tail:       fmt.Sprintf("%d", tail),
	})
	if err != nil {
		if client.IsErrNotFound(err) {
			return fmt.Errorf("container %s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("failed to fetch logs for %s: %w", name, err)
	}
	defer reader.Close()

	return demuxLogs(out, reader)
}
