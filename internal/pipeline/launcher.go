package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds simultaneous in-flight platform calls for both
// the launch and monitor phases.
const DefaultConcurrency = 10

// Launcher submits one workbook job per sample with bounded parallelism.
// Submission failures are isolated per sample and never abort the batch.
type Launcher struct {
	log         *slog.Logger
	platform    JobSubmitter
	store       RecordUpdater
	concurrency int
}

func NewLauncher(log *slog.Logger, platform JobSubmitter, store RecordUpdater, concurrency int) *Launcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Launcher{
		log:         log,
		platform:    platform,
		store:       store,
		concurrency: concurrency,
	}
}

// Launch submits every request and records each successful submission in the
// tracker as it completes, so a crash mid-batch leaves a correct partial
// record. Every request ends up in exactly one of the two return values and
// their key sets are disjoint.
func (l *Launcher) Launch(
	ctx context.Context,
	requests []*domain.JobRequest,
) (map[string]*domain.JobHandle, []domain.LaunchError) {
	var (
		mu       sync.Mutex
		launched = make(map[string]*domain.JobHandle, len(requests))
		errs     []domain.LaunchError
	)

	pool, ctx := errgroup.WithContext(ctx)
	pool.SetLimit(l.concurrency)

	for _, request := range requests {
		pool.Go(func() error {
			handle, err := l.launchOne(ctx, request)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				errs = append(errs, domain.LaunchError{
					ReferralID: request.ReferralID,
					Err:        err,
				})
				return nil
			}

			launched[request.ReferralID] = handle

			return nil
		})
	}

	// workers only report per-sample errors as values
	_ = pool.Wait()

	l.log.InfoContext(ctx, "finished launching jobs",
		slog.Int("launched", len(launched)),
		slog.Int("errors", len(errs)),
	)

	return launched, errs
}

func (l *Launcher) launchOne(ctx context.Context, request *domain.JobRequest) (*domain.JobHandle, error) {
	handle, err := l.platform.Submit(ctx, request)
	if err != nil {
		l.log.ErrorContext(ctx, "job submission failed",
			slog.String("referral_id", request.ReferralID),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("failed to submit job: %w", err)
	}

	status := domain.StatusJobStarted
	location := fmt.Sprintf("%s:%s", handle.Project, handle.Folder)

	err = l.store.Update(ctx, request.ReferralID, domain.RecordUpdate{
		JobID:                    &handle.ID,
		ProcessingStatus:         &status,
		WorkbookDNAnexusLocation: &location,
	})
	if err != nil {
		return nil, fmt.Errorf("job %s submitted but tracker update failed: %w", handle.ID, err)
	}

	l.log.InfoContext(ctx, "job started",
		slog.String("referral_id", request.ReferralID),
		slog.String("job_id", handle.ID),
	)

	return handle, nil
}
