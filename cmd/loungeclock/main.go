package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds the persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
	APIUrl     string
	Password   string
}

// buildRoot creates the root command and all subcommands.
func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}
	cmd := &command{flags: flags}

	root := createRootCommand(flags)
	root.AddCommand(
		createServeCommand(cmd),
		createPanelCommand(cmd),
		createListCommand(cmd),
		createAddCommand(cmd),
		createToggleCommand(cmd),
		createAddTimeCommand(cmd),
		createDeleteCommand(cmd),
		createCheckCommand(cmd),
		createHashPasswordCommand(),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "loungeclock",
		Short: "Gaming lounge time tracking",
		Long: `Loungeclock tracks prepaid play time for lounge clients.

Examples:
  loungeclock serve --config lounge.toml      # Run the remote store
  loungeclock panel                           # Interactive admin panel
  loungeclock list --filter active --sort remaining
  loungeclock add --name Alice --phone 555-0101 --hours 1.5
  loungeclock toggle <id> --password secret`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML or YAML config file (optional)")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", "", "remote store URL (overrides panel.backend_url)")
	root.PersistentFlags().StringVar(&flags.Password, "password", "", "admin password; prompted when omitted")

	return root
}
