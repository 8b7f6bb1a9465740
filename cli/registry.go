package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"switchboard/config"
)

var (
	addPort    int
	addNetwork string
)

var addCmd = &cobra.Command{
	Use:   "add <container> [label]",
	Short: "Add or update a container in the registry",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if addPort != 0 && (addPort < 1 || addPort > 65535) {
			return fmt.Errorf("port must be between 1 and 65535, got %d", addPort)
		}

		label := ""
		if len(args) == 2 {
			label = args[1]
		}

		reg, err := newRegistry()
		if err != nil {
			return err
		}
		updated, err := reg.AddContainer(cmd.Context(), args[0], label, addPort, addNetwork)
		if err != nil {
			return err
		}
		if updated {
			fmt.Printf("Updated container: %s\n", args[0])
		} else {
			fmt.Printf("Added container: %s\n", args[0])
		}
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <name|label>",
	Short: "Remove a container from the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newRegistry()
		if err != nil {
			return err
		}
		name, err := reg.RemoveContainer(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Removed container: %s\n", name)
		return nil
	},
}

var switchCmd = &cobra.Command{
	Use:   "switch <name|label> [port]",
	Short: "Route a host port to a container",
	Long: `Route a host port to a container and reload the proxy. When the port
already has a route it is retargeted; otherwise a new route is added.
Defaults to port 8000 when none is given.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		port := 0
		if len(args) == 2 {
			var err error
			port, err = parsePort(args[1])
			if err != nil {
				return err
			}
		}

		reg, err := newRegistry()
		if err != nil {
			return err
		}
		_, err = reg.SwitchTarget(cmd.Context(), args[0], port)
		return err
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configured containers with settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore()
		if err != nil {
			return err
		}
		model, err := store.Load()
		if err != nil {
			return err
		}

		if len(model.Containers) == 0 {
			fmt.Println("No containers configured")
			return nil
		}

		routed := map[string]int{}
		for _, route := range model.Routes {
			routed[route.Target] = route.HostPort
		}

		fmt.Println("Configured containers:")
		for _, c := range model.Containers {
			line := fmt.Sprintf("  %s:%d@%s", c.Name, c.InternalPort(), containerNetwork(c, model))
			if c.Label != "" {
				line += " - " + c.Label
			}
			if hostPort, ok := routed[c.Name]; ok {
				line += fmt.Sprintf(" (port %d)", hostPort)
			}
			fmt.Println(line)
		}
		return nil
	},
}

func containerNetwork(c config.ContainerEntry, model *config.Model) string {
	if c.Network != "" {
		return c.Network
	}
	return model.Network
}

func init() {
	addCmd.Flags().IntVarP(&addPort, "port", "p", 0, "port the container exposes (default 8000)")
	addCmd.Flags().StringVarP(&addNetwork, "network", "n", "", "network the container is on (default: auto-detect)")

	rootCmd.AddCommand(addCmd, removeCmd, switchCmd, listCmd)
}
