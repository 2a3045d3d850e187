// Package cleanup enforces data retention. API deletes are soft; this
// service is the out-of-band purge that physically removes expired rows.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/waqedi/platform/pkg/config"
)

// Purger is the maintenance repository slice the service needs.
type Purger interface {
	PurgeDeletedDocuments(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeOldTraces(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service periodically enforces retention policies:
//   - Purges document rows soft-deleted longer ago than PurgeAfter
//   - Removes reasoning traces past their TTL
//
// All operations are idempotent and safe to run from multiple replicas.
type Service struct {
	cfg    config.RetentionConfig
	purger Purger
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg config.RetentionConfig, purger Purger, logger *slog.Logger) *Service {
	return &Service{cfg: cfg, purger: purger, logger: logger}
}

// Start launches the background purge loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("Cleanup service started",
		"purge_after", s.cfg.PurgeAfter,
		"trace_ttl", s.cfg.TraceTTL,
		"interval", s.cfg.SweepInterval)
}

// Stop signals the purge loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.purgeDeletedDocuments(ctx)
	s.purgeOldTraces(ctx)
}

func (s *Service) purgeDeletedDocuments(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.PurgeAfter)
	count, err := s.purger.PurgeDeletedDocuments(ctx, cutoff)
	if err != nil {
		s.logger.Error("Retention: document purge failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("Retention: purged soft-deleted documents", "count", count)
	}
}

func (s *Service) purgeOldTraces(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.TraceTTL)
	count, err := s.purger.PurgeOldTraces(ctx, cutoff)
	if err != nil {
		s.logger.Error("Retention: trace purge failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("Retention: purged old traces", "count", count)
	}
}
