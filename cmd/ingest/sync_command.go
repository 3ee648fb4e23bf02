package main

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/automaton-ingest/internal/infra/httpserver"
)

func newSyncCommand(app *app) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replicate terminal items into the analytical store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.close()
			ctx := cmd.Context()

			if path := app.cfg.Sync.LockFile; path != "" {
				lock := flock.New(path)
				ok, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquire lock: %w", err)
				}
				if !ok {
					return errors.New("another replicator is already running on this host")
				}
				app.track(lock.Unlock)
			}

			svc, err := app.newReplicator(ctx)
			if err != nil {
				return err
			}

			if once {
				n, err := svc.SyncOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "replicated %d row(s)\n", n)
				return nil
			}

			wait := startOpsServer(ctx, app.cfg.Metrics.Addr, httpserver.NewOpsRouter(app.checkers), app.logger)
			svc.Run(ctx)
			wait()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run a single replication cycle and exit")
	return cmd
}
