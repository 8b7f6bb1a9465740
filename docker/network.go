package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
)

// NetworkNames returns the names of every network known to the daemon.
func (c *Client) NetworkNames(ctx context.Context) ([]string, error) {
	networks, err := c.cli.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}

	names := make([]string, 0, len(networks))
	for _, n := range networks {
		names = append(names, n.Name)
	}
	return names, nil
}

// ListNetworks returns driver, scope and attached-container counts for every
// network. Counts require a per-network inspect; the list endpoint does not
// report attachments.
func (c *Client) ListNetworks(ctx context.Context) ([]NetworkSummary, error) {
	networks, err := c.cli.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}

	result := make([]NetworkSummary, 0, len(networks))
	for _, n := range networks {
		summary := NetworkSummary{
			Name:   n.Name,
			Driver: n.Driver,
			Scope:  n.Scope,
		}
		if inspect, err := c.cli.NetworkInspect(ctx, n.ID, network.InspectOptions{}); err == nil {
			summary.Containers = len(inspect.Containers)
		}
		result = append(result, summary)
	}
	return result, nil
}

// CreateNetwork creates a bridge network with the given name.
func (c *Client) CreateNetwork(ctx context.Context, name string) error {
	_, err := c.cli.NetworkCreate(ctx, name, network.CreateOptions{Driver: "bridge"})
	if err != nil {
		return fmt.Errorf("failed to create network %s: %w", name, err)
	}
	return nil
}

// ConnectNetwork attaches the named container to the named network.
func (c *Client) ConnectNetwork(ctx context.Context, networkName, containerName string) error {
	if err := c.cli.NetworkConnect(ctx, networkName, containerName, nil); err != nil {
		if client.IsErrNotFound(err) {
			return fmt.Errorf("network %s: %w", networkName, ErrNotFound)
		}
		return fmt.Errorf("failed to connect %s to network %s: %w", containerName, networkName, err)
	}
	return nil
}
