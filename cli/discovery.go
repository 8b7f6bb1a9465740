package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect [filter]",
	Short: "List Docker containers, optionally filtered by name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := ""
		if len(args) == 1 {
			filter = args[0]
		}

		reg, err := newRegistry()
		if err != nil {
			return err
		}
		containers, err := reg.DetectContainers(cmd.Context(), filter)
		if err != nil {
			return err
		}

		fmt.Println("Detected containers:")
		for _, c := range containers {
			fmt.Printf("  %-30s %s\n", c.Name, c.Status)
		}
		return nil
	},
}

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List Docker networks with container counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newRegistry()
		if err != nil {
			return err
		}
		networks, err := reg.Networks(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("Available Docker networks:")
		for _, n := range networks {
			fmt.Printf("  %-25s driver=%-10s containers=%-4d scope=%s\n", n.Name, n.Driver, n.Containers, n.Scope)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show registry file path and contents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore()
		if err != nil {
			return err
		}

		fmt.Printf("Config file: %s\n\n", store.Path())
		data, err := os.ReadFile(store.Path())
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("(no registry file yet; defaults apply)")
				return nil
			}
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd, networksCmd, configCmd)
}
