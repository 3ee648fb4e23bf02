package main

import (
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/automaton-ingest/internal/infra/httpserver"
)

func newWorkerCommand(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume the work queue and process items until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.close()
			ctx := cmd.Context()

			svc, err := app.newWorker(ctx)
			if err != nil {
				return err
			}

			wait := startOpsServer(ctx, app.cfg.Metrics.Addr, httpserver.NewOpsRouter(app.checkers), app.logger)
			svc.Run(ctx)
			wait()
			return nil
		},
	}
}
