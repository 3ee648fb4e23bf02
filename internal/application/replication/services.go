// Package replication copies terminal items into the analytical store.
package replication

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bryanwahyu/automaton-ingest/internal/application"
	"github.com/bryanwahyu/automaton-ingest/internal/application/schedule"
	"github.com/bryanwahyu/automaton-ingest/internal/domain/items"
)

var (
	rowsReplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replication_rows_total",
		Help: "Rows appended to the analytical store.",
	})
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replication_cycles_total",
		Help: "Replication cycles by result.",
	}, []string{"result"})
)

// Service moves unreplicated terminal items created within Window into Sink.
type Service struct {
	Source    items.ReplicationSource
	Sink      items.AnalyticsSink
	Clock     application.Clock
	Window    time.Duration
	BatchSize int
	Interval  time.Duration
	Logger    *slog.Logger
}

// SyncOnce replicates one batch and returns how many rows were sent.
// The sink write always happens before the flag update, so a crash between
// the two re-sends the batch next cycle instead of losing it.
func (s *Service) SyncOnce(ctx context.Context) (int, error) {
	since := s.Clock.Now().Add(-s.Window)

	pending, err := s.Source.PendingReplication(ctx, since, s.BatchSize)
	if err != nil {
		cyclesTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("select pending: %w", err)
	}
	if len(pending) == 0 {
		cyclesTotal.WithLabelValues("empty").Inc()
		return 0, nil
	}

	rows := make([]items.FileStat, 0, len(pending))
	ids := make([]items.ID, 0, len(pending))
	for _, it := range pending {
		rows = append(rows, items.StatFromItem(it))
		ids = append(ids, it.ID)
	}

	if err := s.Sink.AppendStats(ctx, rows); err != nil {
		cyclesTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("append %d stats: %w", len(rows), err)
	}
	rowsReplicated.Add(float64(len(rows)))

	if err := s.Source.MarkReplicated(ctx, ids); err != nil {
		// baris sudah terkirim; cycle berikutnya akan kirim ulang (duplikat ok)
		cyclesTotal.WithLabelValues("error").Inc()
		return len(rows), fmt.Errorf("mark %d replicated: %w", len(ids), err)
	}

	cyclesTotal.WithLabelValues("ok").Inc()
	s.logger().Info("replicated batch", "rows", len(rows))
	return len(rows), nil
}

// Run replicates every Interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	loop := &schedule.Loop{
		Name:     "replicator",
		Interval: s.Interval,
		Logger:   s.logger(),
		Body: func(ctx context.Context) error {
			_, err := s.SyncOnce(ctx)
			return err
		},
	}
	loop.Run(ctx)
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
