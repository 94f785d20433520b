package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var addr string

func main() {
	cli := NewCLI("")

	root := cli.GetRootCommand()
	root.PersistentFlags().StringVar(&addr, "addr", "http://localhost:8080", "Base URL of the flagcore server")
	cobra.OnInitialize(func() {
		cli.api = newAPIClient(addr)
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
