package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
	"github.com/google/uuid"
)

type ReportWriter interface {
	WriteSummary(path string, rows []domain.SummaryRow) error
}

type RecordStore interface {
	RecordFinder
	RecordCreator
	RecordUpdater
}

// Orchestrator composes the end-to-end run: group, dedup, persist, prepare,
// launch, monitor, finalize. Stages communicate only through the tracker and
// explicit return values.
type Orchestrator struct {
	log          *slog.Logger
	grouper      *Grouper
	dedup        *Dedup
	preparer     *Preparer
	launcher     *Launcher
	monitor      *Monitor
	store        RecordStore
	tx           Transactor
	executions   ExecutionFinder
	uploader     FileUploader
	reports      ReportWriter
	notifier     Notifier
	appID        string
	logChannel   string
	alertChannel string
}

func NewOrchestrator(
	log *slog.Logger,
	grouper *Grouper,
	dedup *Dedup,
	preparer *Preparer,
	launcher *Launcher,
	monitor *Monitor,
	store RecordStore,
	tx Transactor,
	executions ExecutionFinder,
	uploader FileUploader,
	reports ReportWriter,
	notifier Notifier,
	appID string,
	logChannel string,
	alertChannel string,
) *Orchestrator {
	return &Orchestrator{
		log:          log,
		grouper:      grouper,
		dedup:        dedup,
		preparer:     preparer,
		launcher:     launcher,
		monitor:      monitor,
		store:        store,
		tx:           tx,
		executions:   executions,
		uploader:     uploader,
		reports:      reports,
		notifier:     notifier,
		appID:        appID,
		logChannel:   logChannel,
		alertChannel: alertChannel,
	}
}

// Run takes the discovered input files through the whole pipeline.
// bypassDedup is set when the caller named platform ids explicitly to
// deliberately reprocess samples. The returned report pairs every attempted
// sample with exactly one outcome; a validation failure aborts before any
// side effect.
func (o *Orchestrator) Run(
	ctx context.Context,
	files []domain.InputFile,
	bypassDedup bool,
) (*domain.BatchReport, error) {
	report := &domain.BatchReport{RunID: uuid.NewString()}

	log := o.log.With(slog.String("run_id", report.RunID))

	groups, err := o.grouper.Group(files)
	if err != nil {
		return nil, err
	}

	fresh := groups
	if !bypassDedup {
		fresh, report.AlreadySeen, err = o.dedup.Partition(ctx, groups)
		if err != nil {
			return nil, err
		}
	}

	if len(fresh) == 0 {
		log.InfoContext(ctx, "all detected samples already processed, nothing to do")
		o.notify(ctx, "All files detected have already been processed", o.logChannel)

		report.Launched = map[string]*domain.JobHandle{}

		return report, nil
	}

	date := time.Now().Format("060102")

	if err := o.createRecords(ctx, fresh, bypassDedup); err != nil {
		return nil, err
	}

	requests, prepErrors := o.prepareAll(ctx, date, fresh)

	report.Launched, report.LaunchErrors = o.launcher.Launch(ctx, requests)
	report.LaunchErrors = append(report.LaunchErrors, prepErrors...)

	o.uploadSummary(ctx, log, date, report.Launched)

	report.Failures = o.monitor.Monitor(ctx, report.Launched)

	o.notifyOutcome(ctx, report)

	return report, nil
}

// CheckJobs re-examines workbook executions created inside the trailing
// window instead of launching anything: every execution found is monitored
// to a terminal outcome and finalized the same way a freshly launched job
// would be.
func (o *Orchestrator) CheckJobs(ctx context.Context, createdAfter time.Time) (*domain.BatchReport, error) {
	report := &domain.BatchReport{RunID: uuid.NewString()}

	descriptions, err := o.executions.FindExecutions(ctx, o.appID, createdAfter)
	if err != nil {
		return nil, fmt.Errorf("failed to find executions: %w", err)
	}

	if len(descriptions) == 0 {
		o.log.InfoContext(ctx, "no executions found in window")
		o.notify(ctx, "Couldn't find any workbook jobs to check", o.logChannel)

		report.Launched = map[string]*domain.JobHandle{}

		return report, nil
	}

	// job names carry the referral id they were launched under
	report.Launched = make(map[string]*domain.JobHandle, len(descriptions))
	for _, description := range descriptions {
		report.Launched[description.Name] = &domain.JobHandle{
			ID:   description.ID,
			Name: description.Name,
		}
	}

	report.Failures = o.monitor.Monitor(ctx, report.Launched)

	o.notifyOutcome(ctx, report)

	return report, nil
}

// createRecords persists the Preprocessing row for every sample in one
// transaction. With reprocess set a sample may legitimately have a row
// already, deliberate re-runs are the whole point of explicit ids, so the
// existing row is reset instead of inserted. Without it a duplicate referral
// id means dedup and the store disagree, which is fatal for the whole batch.
func (o *Orchestrator) createRecords(ctx context.Context, fresh map[string][]domain.InputFile, reprocess bool) error {
	return o.tx.WithTransaction(ctx, func(ctx context.Context) error {
		for _, sampleID := range sortedKeys(fresh) {
			if reprocess {
				record, err := o.store.Lookup(ctx, sampleID)
				if err != nil {
					return fmt.Errorf("failed to look up %s: %w", sampleID, err)
				}

				if record != nil {
					if err := o.resetRecord(ctx, sampleID); err != nil {
						return err
					}
					continue
				}
			}

			err := o.store.Insert(ctx, &domain.SampleRecord{
				ReferralID:       sampleID,
				Date:             time.Now(),
				ProcessingStatus: domain.StatusPreprocessing,
			})
			if err != nil {
				return fmt.Errorf("failed to insert record for %s: %w", sampleID, err)
			}
		}

		return nil
	})
}

// resetRecord returns an already-tracked sample to the Preprocessing state
// with its previous job fields cleared.
func (o *Orchestrator) resetRecord(ctx context.Context, sampleID string) error {
	var (
		cleared = ""
		state   = domain.JobState("")
		status  = domain.StatusPreprocessing
	)

	err := o.store.Update(ctx, sampleID, domain.RecordUpdate{
		JobID:                    &cleared,
		JobStatus:                &state,
		ProcessingStatus:         &status,
		WorkbookDNAnexusLocation: &cleared,
		WorkbookClinGenLocation:  &cleared,
	})
	if err != nil {
		return fmt.Errorf("failed to reset record for %s: %w", sampleID, err)
	}

	return nil
}

func (o *Orchestrator) prepareAll(
	ctx context.Context,
	date string,
	fresh map[string][]domain.InputFile,
) ([]*domain.JobRequest, []domain.LaunchError) {
	requests := make([]*domain.JobRequest, 0, len(fresh))
	var errs []domain.LaunchError

	for _, sampleID := range sortedKeys(fresh) {
		request, err := o.preparer.Prepare(ctx, date, sampleID, fresh[sampleID])
		if err != nil {
			o.log.ErrorContext(ctx, "failed to prepare sample inputs",
				slog.String("referral_id", sampleID),
				slog.String("err", err.Error()),
			)
			errs = append(errs, domain.LaunchError{ReferralID: sampleID, Err: err})
			continue
		}

		requests = append(requests, request)
	}

	return requests, errs
}

// uploadSummary writes the per-run CSV and drops it into the run folder.
// Best effort: a failed summary never fails the batch.
func (o *Orchestrator) uploadSummary(
	ctx context.Context,
	log *slog.Logger,
	date string,
	launched map[string]*domain.JobHandle,
) {
	if len(launched) == 0 {
		return
	}

	rows := make([]domain.SummaryRow, 0, len(launched))
	for _, sampleID := range sortedKeys(launched) {
		rows = append(rows, domain.SummaryRow{
			Name:           sampleID,
			DateJobStarted: date,
		})
	}

	csvPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s_sc_wgs_workbooks.csv", date))

	if err := o.reports.WriteSummary(csvPath, rows); err != nil {
		log.ErrorContext(ctx, "failed to write summary csv", slog.String("err", err.Error()))
		return
	}

	if _, err := o.uploader.UploadFile(ctx, csvPath, path.Join("/", date)); err != nil {
		log.ErrorContext(ctx, "failed to upload summary csv", slog.String("err", err.Error()))
	}
}

func (o *Orchestrator) notifyOutcome(ctx context.Context, report *domain.BatchReport) {
	digest := report.Digest()
	if digest == "" {
		o.notify(ctx, fmt.Sprintf("All %d workbook job(s) completed successfully", len(report.Launched)), o.logChannel)
		return
	}

	o.notify(ctx, digest, o.alertChannel)
}

// notify is best effort; delivery failures are logged, never propagated.
func (o *Orchestrator) notify(ctx context.Context, message, channel string) {
	if err := o.notifier.Notify(ctx, message, channel); err != nil {
		o.log.ErrorContext(ctx, "failed to send notification",
			slog.String("channel", channel),
			slog.String("err", err.Error()),
		)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}
