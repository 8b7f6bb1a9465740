package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the proxy with all configured routes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pm, err := newProxyManager()
		if err != nil {
			return err
		}
		return pm.Start(cmd.Context())
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop [port]",
	Short: "Stop the proxy, or stop routing for one port",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pm, err := newProxyManager()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			port, err := parsePort(args[0])
			if err != nil {
				return err
			}
			return pm.StopPort(cmd.Context(), port)
		}

		running, err := pm.Stop(cmd.Context())
		if err != nil {
			return err
		}
		if !running {
			fmt.Println("Proxy not running")
		} else {
			fmt.Println("Proxy stopped")
		}
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop and start the proxy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pm, err := newProxyManager()
		if err != nil {
			return err
		}
		return pm.Restart(cmd.Context())
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Apply registry changes by rebuilding the proxy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pm, err := newProxyManager()
		if err != nil {
			return err
		}
		return pm.Reload(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show proxy status and all active routes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pm, err := newProxyManager()
		if err != nil {
			return err
		}

		status, err := pm.Status(cmd.Context())
		if err != nil {
			return err
		}
		if !status.Running {
			fmt.Println("Proxy not running")
			return nil
		}

		fmt.Printf("Proxy: %s (%s)\n\n", status.ProxyName, status.State)
		fmt.Println("Active routes:")
		for _, route := range status.Routes {
			if route.TargetKnown {
				fmt.Printf("  %d -> %s:%d\n", route.HostPort, route.Target, route.InternalPort)
			} else {
				fmt.Printf("  %d -> %s (container not found)\n", route.HostPort, route.Target)
			}
		}
		return nil
	},
}

var (
	logsFollow bool
	logsTail   int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show nginx proxy container logs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pm, err := newProxyManager()
		if err != nil {
			return err
		}
		return pm.Logs(cmd.Context(), logsFollow, logsTail, os.Stdout)
	},
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "follow log output (like tail -f)")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 100, "number of lines to show")

	rootCmd.AddCommand(startCmd, stopCmd, restartCmd, reloadCmd, statusCmd, logsCmd)
}
