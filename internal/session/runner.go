package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/heimdex/repcut/internal/library"
)

// Runner polls for pending save jobs and posts them to the library backend.
type Runner struct {
	service      *Service
	repo         Repository
	backend      Backend
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
}

func NewRunner(service *Service, repo Repository, backend Backend, logger *slog.Logger, pollInterval time.Duration) *Runner {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Runner{
		service:      service,
		repo:         repo,
		backend:      backend,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("save runner started", "poll_interval", r.pollInterval)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("save runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("save runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("save runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// processNextJob handles at most one pending job per tick.
func (r *Runner) processNextJob(ctx context.Context) {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return
	}
	if len(jobs) == 0 {
		return
	}

	job := jobs[0]
	switch job.Type {
	case JobTypeSave:
		r.processSaveJob(ctx, job)
	default:
		r.logger.Warn("unknown job type", "job_id", job.ID, "type", job.Type)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "unknown job type: "+job.Type)
	}
}

func (r *Runner) processSaveJob(ctx context.Context, job *Job) {
	log := r.logger.With("job_id", job.ID, "session_id", job.SessionID)

	if r.backend == nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, ErrNoBackend.Error())
		return
	}

	st, err := r.service.Snapshot(ctx, job.SessionID)
	if err != nil {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("load session: %v", err))
		return
	}
	payload, ok := library.NewTimelinePayload(st)
	if !ok {
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, ErrNothingTagged.Error())
		return
	}

	attempts, err := r.repo.IncrementJobAttempts(ctx, job.ID)
	if err != nil {
		log.Error("failed to record attempt", "error", err)
		return
	}
	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")
	log.Info("saving timeline", "attempt", attempts, "segments", len(payload.Segments))

	res, err := r.backend.SaveTimeline(ctx, payload)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			r.repo.UpdateJobStatus(context.WithoutCancel(ctx), job.ID, JobStatusPending, "")
			return
		}
		if library.IsRetryable(err) && attempts < MaxSaveAttempts {
			log.Warn("save failed, will retry", "attempt", attempts, "error", err)
			r.repo.UpdateJobStatus(ctx, job.ID, JobStatusPending, err.Error())
			return
		}
		log.Error("save failed", "attempt", attempts, "error", err)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return
	}
	if !res.Success {
		log.Error("backend rejected save", "message", res.Message)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "backend rejected save: "+res.Message)
		return
	}

	if data, err := json.Marshal(res); err == nil {
		r.repo.SetJobResult(ctx, job.ID, string(data))
	}
	r.repo.UpdateJobProgress(ctx, job.ID, 100)
	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	log.Info("timeline saved", "saved_count", res.SavedCount)
}

// PendingCount returns the number of save jobs waiting or in flight.
func (r *Runner) PendingCount(ctx context.Context) int {
	jobs, err := r.repo.ListJobs(ctx, 100)
	if err != nil {
		return 0
	}
	count := 0
	for _, j := range jobs {
		if j.Status == JobStatusPending || j.Status == JobStatusRunning {
			count++
		}
	}
	return count
}
