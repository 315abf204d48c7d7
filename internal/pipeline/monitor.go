package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPollInterval is how often each in-flight job is re-described.
	DefaultPollInterval = 15 * time.Second
	// DefaultJobTimeout bounds how long the monitor waits on a single job.
	DefaultJobTimeout = 10 * time.Minute
)

// Monitor polls every in-flight job until it reaches a terminal state or its
// deadline elapses. A timed-out job may still be running remotely; it is
// simply no longer waited upon.
type Monitor struct {
	log           *slog.Logger
	platform      JobDescriber
	downloader    OutputDownloader
	store         RecordUpdater
	downloadDir   string
	pollInterval  time.Duration
	perJobTimeout time.Duration
	concurrency   int
}

func NewMonitor(
	log *slog.Logger,
	platform JobDescriber,
	downloader OutputDownloader,
	store RecordUpdater,
	downloadDir string,
	pollInterval time.Duration,
	perJobTimeout time.Duration,
	concurrency int,
) *Monitor {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if perJobTimeout <= 0 {
		perJobTimeout = DefaultJobTimeout
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Monitor{
		log:           log,
		platform:      platform,
		downloader:    downloader,
		store:         store,
		downloadDir:   downloadDir,
		pollInterval:  pollInterval,
		perJobTimeout: perJobTimeout,
		concurrency:   concurrency,
	}
}

// Monitor watches every job concurrently and returns the aggregate failure
// digest. One job's polling never blocks another's; per-job failures are
// values, never errors that abort siblings.
func (m *Monitor) Monitor(ctx context.Context, jobs map[string]*domain.JobHandle) []domain.FailureReport {
	var (
		mu       sync.Mutex
		failures []domain.FailureReport
	)

	pool, ctx := errgroup.WithContext(ctx)
	pool.SetLimit(m.concurrency)

	for sampleID, handle := range jobs {
		pool.Go(func() error {
			failure := m.watch(ctx, sampleID, handle)
			if failure != nil {
				mu.Lock()
				failures = append(failures, *failure)
				mu.Unlock()
			}

			return nil
		})
	}

	_ = pool.Wait()

	m.log.InfoContext(ctx, "finished monitoring jobs",
		slog.Int("jobs", len(jobs)),
		slog.Int("failures", len(failures)),
	)

	return failures
}

func (m *Monitor) watch(ctx context.Context, sampleID string, handle *domain.JobHandle) *domain.FailureReport {
	deadline := time.Now().Add(m.perJobTimeout)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	lastState := domain.JobStateIdle

	for {
		description, err := m.platform.Describe(ctx, handle.ID)
		if err != nil {
			// transient describe failures are retried until the deadline
			m.log.ErrorContext(ctx, "failed to describe job",
				slog.String("job_id", handle.ID),
				slog.String("err", err.Error()),
			)
		} else {
			lastState = description.State

			if description.State.Terminal() {
				return m.finishTerminal(ctx, sampleID, description)
			}
		}

		if time.Now().After(deadline) {
			return m.finishTimeout(ctx, sampleID, handle.ID, lastState)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			// the run is stopping; the sample still gets an outcome
			return &domain.FailureReport{
				ReferralID: sampleID,
				JobID:      handle.ID,
				JobStatus:  lastState,
				Reason:     domain.FailureCancelled,
			}
		}
	}
}

func (m *Monitor) finishTerminal(
	ctx context.Context,
	sampleID string,
	description *domain.JobDescription,
) *domain.FailureReport {
	if description.State != domain.JobStateDone {
		m.updateRecord(ctx, sampleID, description.State, domain.StatusJobFailed)

		return &domain.FailureReport{
			ReferralID: sampleID,
			JobID:      description.ID,
			JobStatus:  description.State,
			Reason:     domain.FailureTerminal,
		}
	}

	m.updateRecord(ctx, sampleID, description.State, domain.StatusJobFinished)

	return m.finalize(ctx, sampleID, description)
}

func (m *Monitor) finishTimeout(
	ctx context.Context,
	sampleID, jobID string,
	lastState domain.JobState,
) *domain.FailureReport {
	m.updateRecord(ctx, sampleID, lastState, domain.StatusJobTimedOut)

	return &domain.FailureReport{
		ReferralID: sampleID,
		JobID:      jobID,
		JobStatus:  lastState,
		Reason:     domain.FailureTimeout,
	}
}

// finalize downloads the finished workbook into the ClinGen intake layout
// and records the download location. A workbook reported downloaded but
// absent on disk is a fatal inconsistency for this sample.
func (m *Monitor) finalize(
	ctx context.Context,
	sampleID string,
	description *domain.JobDescription,
) *domain.FailureReport {
	folder := filepath.Join(m.downloadDir, time.Now().Format("2006-01"), sampleID)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return m.inconsistency(sampleID, description,
			fmt.Sprintf("failed to create output folder: %v", err))
	}

	destination := filepath.Join(folder, sampleID+".xlsx")

	if err := m.downloader.DownloadOutput(ctx, description.OutputFileID, destination); err != nil {
		return m.inconsistency(sampleID, description,
			fmt.Sprintf("workbook download failed: %v", err))
	}

	if _, err := os.Stat(destination); err != nil {
		return m.inconsistency(sampleID, description,
			fmt.Sprintf("%s wasn't downloaded", destination))
	}

	status := domain.StatusWorkbookDownloaded
	err := m.store.Update(ctx, sampleID, domain.RecordUpdate{
		ProcessingStatus:        &status,
		WorkbookClinGenLocation: &folder,
	})
	if err != nil {
		return m.inconsistency(sampleID, description,
			fmt.Sprintf("tracker update failed after download: %v", err))
	}

	m.log.InfoContext(ctx, "workbook downloaded",
		slog.String("referral_id", sampleID),
		slog.String("location", folder),
	)

	return nil
}

func (m *Monitor) inconsistency(
	sampleID string,
	description *domain.JobDescription,
	detail string,
) *domain.FailureReport {
	return &domain.FailureReport{
		ReferralID: sampleID,
		JobID:      description.ID,
		JobStatus:  description.State,
		Reason:     domain.FailureInconsistency,
		Detail:     detail,
	}
}

func (m *Monitor) updateRecord(
	ctx context.Context,
	sampleID string,
	state domain.JobState,
	status domain.ProcessingStatus,
) {
	err := m.store.Update(ctx, sampleID, domain.RecordUpdate{
		JobStatus:        &state,
		ProcessingStatus: &status,
	})
	if err != nil {
		m.log.ErrorContext(ctx, "failed to update tracker record",
			slog.String("referral_id", sampleID),
			slog.String("err", err.Error()),
		)
	}
}
