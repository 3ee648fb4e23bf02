package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/automaton-ingest/internal/application/ingest"
)

func newUploadCommand(app *app) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload files and enqueue them for processing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.close()
			ctx := cmd.Context()

			svc, err := app.newProducer(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var failed []error
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					failed = append(failed, fmt.Errorf("%s: %w", path, err))
					continue
				}
				it, err := svc.Ingest(ctx, ingest.IngestCommand{
					Owner:    owner,
					FileName: filepath.Base(path),
					Data:     data,
				})
				if err != nil {
					failed = append(failed, fmt.Errorf("%s: %w", path, err))
					continue
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", it.ID, it.DisplayName, humanize.Bytes(uint64(it.SizeBytes)))
			}
			return errors.Join(failed...)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner the files belong to")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
