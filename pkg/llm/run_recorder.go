package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/models"
	"github.com/ekaya-inc/deal-triage/pkg/repositories"
)

// RunRecorder records completed LLM runs.
type RunRecorder interface {
	// Record queues a run for persistence. It never blocks the caller.
	Record(run *models.LLMRun)
}

// AsyncRunRecorder persists runs on a background goroutine so model calls
// are never slowed down by the run log.
type AsyncRunRecorder struct {
	repo   repositories.LLMRunRepository
	logger *zap.Logger
	queue  chan *models.LLMRun
	done   chan struct{}
}

// NewAsyncRunRecorder creates a new async recorder.
// queueSize controls the buffer size - if full, records are dropped with a warning.
func NewAsyncRunRecorder(repo repositories.LLMRunRepository, logger *zap.Logger, queueSize int) *AsyncRunRecorder {
	if queueSize <= 0 {
		queueSize = 100
	}

	r := &AsyncRunRecorder{
		repo:   repo,
		logger: logger.Named("llm-run-recorder"),
		queue:  make(chan *models.LLMRun, queueSize),
		done:   make(chan struct{}),
	}

	go r.processQueue()

	return r
}

// Record queues a run for async persistence.
func (r *AsyncRunRecorder) Record(run *models.LLMRun) {
	select {
	case r.queue <- run:
	default:
		r.logger.Warn("LLM run queue full, dropping entry",
			zap.String("deal_id", run.DealID.String()),
			zap.String("prompt", run.PromptName))
	}
}

// Close stops the recorder and waits for queued runs to be saved.
func (r *AsyncRunRecorder) Close() {
	close(r.queue)
	<-r.done
}

func (r *AsyncRunRecorder) processQueue() {
	defer close(r.done)

	for run := range r.queue {
		r.save(run)
	}
}

func (r *AsyncRunRecorder) save(run *models.LLMRun) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.repo.Save(ctx, run); err != nil {
		r.logger.Error("Failed to save LLM run",
			zap.String("deal_id", run.DealID.String()),
			zap.String("prompt", run.PromptName),
			zap.Error(err))
		return
	}

	r.logger.Debug("Saved LLM run",
		zap.String("deal_id", run.DealID.String()),
		zap.String("prompt", run.PromptName),
		zap.String("status", run.Status),
		zap.Int("duration_ms", run.DurationMs))
}

var _ RunRecorder = (*AsyncRunRecorder)(nil)
