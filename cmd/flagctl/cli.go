package main

import (
	"github.com/spf13/cobra"
)

// CLI holds the API client every subcommand closes over.
type CLI struct {
	api *apiClient
}

// NewCLI constructs a CLI talking to the façade at baseURL.
func NewCLI(baseURL string) *CLI {
	return &CLI{api: newAPIClient(baseURL)}
}

// GetRootCommand returns the root flagctl command with every
// subcommand attached.
func (cli *CLI) GetRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "flagctl",
		Short: "Operate a flagcore evaluation server",
		Long:  "flagctl is a command-line client for flagcore's HTTP façade: create and evaluate flags, inspect the audit log, and trigger remote sync.",
	}

	root.AddCommand(
		cli.flagCommand(),
		cli.auditCommand(),
		cli.syncCommand(),
	)

	return root
}

// Execute runs the root command.
func (cli *CLI) Execute() error {
	return cli.GetRootCommand().Execute()
}
