package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Link the binary into ~/.local/bin for global access",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to locate own binary: %w", err)
		}
		exe, err = filepath.EvalSymlinks(exe)
		if err != nil {
			return err
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		userBin := filepath.Join(home, ".local", "bin")
		if err := os.MkdirAll(userBin, 0o755); err != nil {
			return err
		}

		link := filepath.Join(userBin, "switchboard")
		if _, err := os.Lstat(link); err == nil {
			if err := os.Remove(link); err != nil {
				return err
			}
		}
		if err := os.Link(exe, link); err != nil {
			return fmt.Errorf("failed to link %s: %w", link, err)
		}

		fmt.Printf("Created hardlink: %s -> %s\n\n", link, exe)
		fmt.Println("See 'switchboard --help' for a quick start guide.")
		if !strings.Contains(os.Getenv("PATH"), userBin) {
			fmt.Println("NOTE: Add ~/.local/bin to your PATH:")
			fmt.Printf("  export PATH=\"%s:$PATH\"\n", userBin)
		}
		return nil
	},
}

var version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("switchboard %s %s/%s\n", version, runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(installCmd, versionCmd)
}
