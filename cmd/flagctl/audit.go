package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/vitaliisemenov/flagcore/internal/audit"
)

func (cli *CLI) auditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit log",
	}
	cmd.AddCommand(cli.auditQueryCommand())
	return cmd
}

func (cli *CLI) auditQueryCommand() *cobra.Command {
	var (
		flagKey string
		actorID string
		cursor  string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List audit records, optionally filtered by flag key or actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if flagKey != "" {
				q.Set("flagKey", flagKey)
			}
			if actorID != "" {
				q.Set("actorId", actorID)
			}
			if cursor != "" {
				q.Set("cursor", cursor)
			}
			if limit > 0 {
				q.Set("limit", fmt.Sprintf("%d", limit))
			}

			var page audit.Page
			if err := cli.api.do("GET", "/v1/audit?"+q.Encode(), nil, &page); err != nil {
				return err
			}
			return printJSON(page)
		},
	}

	cmd.Flags().StringVar(&flagKey, "flag-key", "", "Filter by flag key")
	cmd.Flags().StringVar(&actorID, "actor-id", "", "Filter by actor ID")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from a previous page")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum records to return")

	return cmd
}
