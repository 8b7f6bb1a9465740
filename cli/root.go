// Package cli is the thin command surface over the reconciliation engine.
// Each subcommand maps 1:1 to a core operation; argument validation happens
// here, before the core is invoked.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"switchboard/config"
	"switchboard/docker"
	"switchboard/manager"
)

var (
	dataDir string
	strict  bool
)

var rootCmd = &cobra.Command{
	Use:   "switchboard",
	Short: "Route host ports to Docker app containers through one nginx proxy",
	Long: `Switchboard manages a single nginx reverse-proxy container that routes
external host ports to internal application containers.

It keeps a small declarative registry (containers and port routes) and
reconciles it into a running proxy by regenerating the nginx configuration,
rebuilding the proxy image and restarting the container.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Incomplete-configuration errors are user
// guidance, not faults: they print and exit zero.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var incomplete *manager.ConfigIncompleteError
		if errors.As(err, &incomplete) {
			fmt.Fprintf(os.Stdout, "Error: %s\n", err)
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "registry data directory (default ~/.local/share/switchboard)")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "fail instead of skipping routes whose target container is gone")
}

func newStore() (*config.Store, error) {
	dir := dataDir
	if dir == "" {
		var err error
		dir, err = config.DefaultDir()
		if err != nil {
			return nil, err
		}
	}
	return config.NewStore(dir), nil
}

// newProxyManager wires the store and the Docker runtime into the lifecycle
// controller. Commands that never touch the daemon use newStore directly.
func newProxyManager() (*manager.ProxyManager, error) {
	store, err := newStore()
	if err != nil {
		return nil, err
	}
	runtime, err := docker.NewClient()
	if err != nil {
		return nil, err
	}
	pm := manager.NewProxyManager(store, runtime)
	pm.Strict = strict
	return pm, nil
}

func newRegistry() (*manager.Registry, error) {
	store, err := newStore()
	if err != nil {
		return nil, err
	}
	runtime, err := docker.NewClient()
	if err != nil {
		return nil, err
	}
	pm := manager.NewProxyManager(store, runtime)
	pm.Strict = strict
	return manager.NewRegistry(store, runtime, pm), nil
}

// parsePort validates a user-supplied port argument.
func parsePort(arg string) (int, error) {
	port, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", arg)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return port, nil
}
