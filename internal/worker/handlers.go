// Package worker holds the background job handlers shared by the api and
// worker binaries.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-bot/internal/gcsuploader"
	"github.com/dvloznov/budget-bot/internal/jobs"
	"github.com/dvloznov/budget-bot/internal/pipeline"
)

// MemoryCleaner deletes stale category memory; an empty user cleans everyone.
type MemoryCleaner interface {
	Cleanup(ctx context.Context, userID string) (int64, error)
}

// NewRouter registers the handlers for every job type.
func NewRouter(deps *pipeline.Deps, cleaner MemoryCleaner, log zerolog.Logger) *jobs.Router {
	log = log.With().Str("component", "worker").Logger()
	return jobs.NewRouter().
		Register(jobs.JobTypeProcessReceipt, ProcessReceiptHandler(deps, log)).
		Register(jobs.JobTypeCleanupMemory, CleanupMemoryHandler(cleaner, log))
}

// ErrReceiptsDisabled fails receipt jobs when storage or the model is not configured.
var ErrReceiptsDisabled = errors.New("receipt processing is not configured")

// ProcessReceiptHandler runs the receipt pipeline. Errors a retry cannot fix
// are marked permanent. A nil deps fails every job with ErrReceiptsDisabled.
func ProcessReceiptHandler(deps *pipeline.Deps, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.Job) error {
		if deps == nil {
			return jobs.Permanent(ErrReceiptsDisabled)
		}
		if job.UserID == "" || job.GCSURI == "" {
			return jobs.Permanent(fmt.Errorf("process_receipt job %s needs user_id and gcs_uri", job.JobID))
		}

		log.Info().
			Str("job_id", job.JobID).
			Str("user_id", job.UserID).
			Str("gcs_uri", job.GCSURI).
			Msg("Processing receipt job")

		state, err := pipeline.ProcessReceipt(ctx, deps, job.UserID, job.GCSURI)
		if err != nil {
			if errors.Is(err, pipeline.ErrUnsupportedMedia) ||
				errors.Is(err, pipeline.ErrNoTransactions) ||
				errors.Is(err, pipeline.ErrInvalidReceipt) ||
				errors.Is(err, gcsuploader.ErrInvalidURI) {
				return jobs.Permanent(err)
			}
			return err
		}

		job.Result = fmt.Sprintf("%d transactions", len(state.Transactions))
		return nil
	}
}

// CleanupMemoryHandler deletes stale category memory for the job's user.
func CleanupMemoryHandler(cleaner MemoryCleaner, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.Job) error {
		n, err := cleaner.Cleanup(ctx, job.UserID)
		if err != nil {
			return fmt.Errorf("cleanup_memory job %s: %w", job.JobID, err)
		}
		job.Result = fmt.Sprintf("%d records removed", n)
		log.Info().Str("job_id", job.JobID).Str("user_id", job.UserID).Int64("deleted", n).Msg("Memory cleanup job done")
		return nil
	}
}

// ScheduleCleanup publishes a cleanup job for all users every interval until
// ctx is done.
func ScheduleCleanup(ctx context.Context, publisher jobs.Publisher, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job := jobs.NewCleanupMemoryJob("")
			if err := publisher.Publish(ctx, job); err != nil {
				if errors.Is(err, jobs.ErrQueueClosed) {
					return
				}
				log.Error().Err(err).Msg("Failed to schedule memory cleanup")
				continue
			}
			log.Info().Str("job_id", job.JobID).Msg("Scheduled memory cleanup")
		}
	}
}
