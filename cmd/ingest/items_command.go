package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
)

func newItemsCommand(app *app) *cobra.Command {
	var (
		owner  string
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "items",
		Short: "List the most recent items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.close()

			st := items.Status(strings.ToLower(status))
			if st != "" && !st.Valid() {
				return fmt.Errorf("invalid status %q", status)
			}

			repo, err := app.openRepo(cmd.Context())
			if err != nil {
				return err
			}
			list, err := repo.Latest(cmd.Context(), owner, st, limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No items found")
				return nil
			}

			headers, rows, aligns := itemRows(list, time.Now())
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Only show items of this owner")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (uploaded, processing, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of items")
	return cmd
}

func itemRows(list []*items.Item, now time.Time) ([]string, [][]string, []columnAlignment) {
	headers := []string{"ID", "Owner", "Name", "Status", "Size", "Created", "Genre", "Replicated", "Reason"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft}

	rows := make([][]string, 0, len(list))
	for _, it := range list {
		genre := ""
		if it.Analysis != nil {
			genre = it.Analysis.Genre
		}
		replicated := "no"
		if it.Replicated {
			replicated = "yes"
		}
		rows = append(rows, []string{
			string(it.ID),
			it.Owner,
			it.DisplayName,
			string(it.Status),
			humanize.Bytes(uint64(it.SizeBytes)),
			humanize.RelTime(it.CreatedAt, now, "ago", "from now"),
			genre,
			replicated,
			truncate(it.FailureReason, 48),
		})
	}
	return headers, rows, aligns
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
