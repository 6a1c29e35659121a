package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/documents"
	"github.com/ekaya-inc/deal-triage/pkg/repositories"
)

// DefaultBlobGracePeriod is how long an unreferenced blob may live; an upload
// stores its bytes before the document record is written.
const DefaultBlobGracePeriod = 24 * time.Hour

// blobPrefix is the key prefix every document blob is stored under.
const blobPrefix = "deals/"

// RetentionService removes uploaded blobs that no document record references.
type RetentionService interface {
	// SweepOrphans deletes unreferenced blobs older than the grace period.
	// Returns the number of blobs deleted.
	SweepOrphans(ctx context.Context) (int, error)

	// RunScheduler sweeps once immediately, then on every tick of the cron
	// schedule until ctx is cancelled.
	RunScheduler(ctx context.Context, schedule string) error
}

type retentionService struct {
	documents   repositories.DocumentRepository
	blobs       documents.BlobStore
	gracePeriod time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

func NewRetentionService(
	documentRepo repositories.DocumentRepository,
	blobs documents.BlobStore,
	gracePeriod time.Duration,
	logger *zap.Logger,
) RetentionService {
	if gracePeriod <= 0 {
		gracePeriod = DefaultBlobGracePeriod
	}
	return &retentionService{
		documents:   documentRepo,
		blobs:       blobs,
		gracePeriod: gracePeriod,
		now:         time.Now,
		logger:      logger.Named("retention-service"),
	}
}

var _ RetentionService = (*retentionService)(nil)

func (s *retentionService) SweepOrphans(ctx context.Context) (int, error) {
	blobs, err := s.blobs.List(ctx, blobPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list blobs: %w", err)
	}
	if len(blobs) == 0 {
		return 0, nil
	}

	keys, err := s.documents.ListStorageKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list document storage keys: %w", err)
	}
	referenced := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		referenced[k] = struct{}{}
	}

	cutoff := s.now().Add(-s.gracePeriod)
	deleted := 0
	for _, b := range blobs {
		if ctx.Err() != nil {
			return deleted, ctx.Err()
		}
		if _, ok := referenced[b.Key]; ok {
			continue
		}
		// Still inside the window where its document record may be pending.
		if b.ModTime.After(cutoff) {
			continue
		}
		if err := s.blobs.Delete(ctx, b.Key); err != nil {
			s.logger.Error("Failed to delete orphaned blob",
				zap.String("key", b.Key),
				zap.Error(err))
			return deleted, fmt.Errorf("failed to delete blob %s: %w", b.Key, err)
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Info("Orphaned blob sweep completed",
			zap.Int("scanned", len(blobs)),
			zap.Int("deleted", deleted),
			zap.Duration("grace_period", s.gracePeriod))
	}
	return deleted, nil
}

func (s *retentionService) RunScheduler(ctx context.Context, schedule string) error {
	parsed, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("invalid sweeper schedule %q: %w", schedule, err)
	}

	c := cron.New()
	c.Schedule(parsed, cron.FuncJob(func() { s.sweep(ctx) }))

	s.logger.Info("Retention scheduler started",
		zap.String("schedule", schedule),
		zap.Duration("grace_period", s.gracePeriod))

	go func() {
		s.sweep(ctx)
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()
		s.logger.Info("Retention scheduler stopped")
	}()
	return nil
}

func (s *retentionService) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.SweepOrphans(ctx); err != nil {
		s.logger.Error("Retention scheduler: sweep failed", zap.Error(err))
	}
}
