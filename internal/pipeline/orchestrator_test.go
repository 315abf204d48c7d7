package pipeline_test

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
	"github.com/eastgenomics/sc-wgs-monitoring/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type orchestratorMocks struct {
	finder     *MockRecordFinder
	store      *MockRecordStore
	updater    *MockRecordUpdater
	submitter  *MockJobSubmitter
	describer  *MockJobDescriber
	downloader *MockOutputDownloader
	executions *MockExecutionFinder
	organizer  *MockPlatformOrganizer
	reports    *MockReportWriter
	notifier   *MockNotifier
}

func newOrchestrator(t *testing.T) (*pipeline.Orchestrator, *orchestratorMocks) {
	t.Helper()

	log := slog.New(slog.DiscardHandler)

	m := &orchestratorMocks{
		finder:     new(MockRecordFinder),
		store:      new(MockRecordStore),
		updater:    new(MockRecordUpdater),
		submitter:  new(MockJobSubmitter),
		describer:  new(MockJobDescriber),
		downloader: new(MockOutputDownloader),
		executions: new(MockExecutionFinder),
		organizer:  new(MockPlatformOrganizer),
		reports:    new(MockReportWriter),
		notifier:   new(MockNotifier),
	}

	grouper := pipeline.NewGrouper(log, pipeline.DefaultRolePatterns())
	dedup := pipeline.NewDedup(log, m.finder)
	preparer := pipeline.NewPreparer(log, m.organizer, "app-000000000000000000000001", referenceInputs(), "pid")
	launcher := pipeline.NewLauncher(log, m.submitter, m.updater, 2)
	monitor := pipeline.NewMonitor(log, m.describer, m.downloader, m.updater, t.TempDir(),
		time.Millisecond, time.Second, 2)

	orchestrator := pipeline.NewOrchestrator(
		log,
		grouper,
		dedup,
		preparer,
		launcher,
		monitor,
		m.store,
		fakeTransactor{},
		m.executions,
		m.organizer,
		m.reports,
		m.notifier,
		"app-000000000000000000000001",
		"egg-logs",
		"egg-alerts",
	)

	return orchestrator, m
}

func TestOrchestrator_Run_NothingToDo(t *testing.T) {
	t.Parallel()

	orchestrator, m := newOrchestrator(t)

	_, files := writeSampleFiles(t)

	m.finder.On("Lookup", mock.Anything, "S001").
		Return(&domain.SampleRecord{ReferralID: "S001"}, nil)
	m.notifier.On("Notify", mock.Anything, "All files detected have already been processed", "egg-logs").
		Return(nil)

	report, err := orchestrator.Run(context.Background(), files, false)
	require.NoError(t, err)

	assert.True(t, report.NothingToDo())
	assert.Equal(t, []string{"S001"}, report.AlreadySeen)

	// a "nothing to do" run makes no writes and launches nothing
	m.store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	m.submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	m.notifier.AssertExpectations(t)
}

func TestOrchestrator_Run_ValidationFailureHasNoSideEffects(t *testing.T) {
	t.Parallel()

	orchestrator, m := newOrchestrator(t)

	// structural variants file missing
	files := []domain.InputFile{
		{Name: "S001-reported_variants.v1.csv"},
		{Name: "S001.v1.supplementary.html"},
	}

	_, err := orchestrator.Run(context.Background(), files, false)

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "S001", validationErr.ReferralID)

	m.finder.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
	m.store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	m.submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestOrchestrator_Run_HappyPath(t *testing.T) {
	t.Parallel()

	orchestrator, m := newOrchestrator(t)

	_, files := writeSampleFiles(t)

	m.finder.On("Lookup", mock.Anything, "S001").Return(nil, nil)

	m.store.On("Insert", mock.Anything, mock.MatchedBy(func(record *domain.SampleRecord) bool {
		return record.ReferralID == "S001" &&
			record.ProcessingStatus == domain.StatusPreprocessing
	})).Return(nil)

	m.organizer.On("NewFolder", mock.Anything, mock.Anything).Return(nil)
	m.organizer.On("UploadFile", mock.Anything, mock.MatchedBy(func(path string) bool {
		return strings.HasSuffix(path, ".csv") && !strings.HasSuffix(path, "workbooks.csv")
	}), mock.Anything).Return("file-000000000000000000000001", nil)
	m.organizer.On("UploadContent", mock.Anything, "S001.v1.supplementary.html", mock.Anything, mock.Anything).
		Return("file-000000000000000000000003", nil)

	m.submitter.On("Submit", mock.Anything, mock.MatchedBy(func(request *domain.JobRequest) bool {
		return request.ReferralID == "S001" && len(request.Inputs) == 7
	})).Return(&domain.JobHandle{
		ID:      "job-000000000000000000000001",
		Name:    "S001",
		Project: "project-000000000000000000000001",
		Folder:  "/250101/S001/output",
	}, nil)

	m.updater.On("Update", mock.Anything, "S001", mock.Anything).Return(nil)

	m.reports.On("WriteSummary", mock.Anything, mock.MatchedBy(func(rows []domain.SummaryRow) bool {
		return len(rows) == 1 && rows[0].Name == "S001"
	})).Return(nil)
	m.organizer.On("UploadFile", mock.Anything, mock.MatchedBy(func(path string) bool {
		return strings.HasSuffix(path, "workbooks.csv")
	}), mock.Anything).Return("file-000000000000000000000009", nil)

	m.describer.On("Describe", mock.Anything, "job-000000000000000000000001").
		Return(&domain.JobDescription{
			ID:           "job-000000000000000000000001",
			Name:         "S001",
			State:        domain.JobStateDone,
			OutputFileID: "file-000000000000000000000002",
		}, nil)
	m.downloader.On("DownloadOutput", mock.Anything, "file-000000000000000000000002", mock.Anything).
		Run(func(args mock.Arguments) {
			require.NoError(t, os.WriteFile(args.String(2), []byte("workbook"), 0o644))
		}).
		Return(nil)

	m.notifier.On("Notify", mock.Anything, "All 1 workbook job(s) completed successfully", "egg-logs").
		Return(nil)

	report, err := orchestrator.Run(context.Background(), files, false)
	require.NoError(t, err)

	assert.False(t, report.NothingToDo())
	require.Contains(t, report.Launched, "S001")
	assert.Empty(t, report.LaunchErrors)
	assert.Empty(t, report.Failures)

	m.store.AssertExpectations(t)
	m.submitter.AssertExpectations(t)
	m.notifier.AssertExpectations(t)
}

func TestOrchestrator_Run_LaunchErrorsGoToAlertChannel(t *testing.T) {
	t.Parallel()

	orchestrator, m := newOrchestrator(t)

	_, files := writeSampleFiles(t)

	m.finder.On("Lookup", mock.Anything, "S001").Return(nil, nil)
	m.store.On("Insert", mock.Anything, mock.Anything).Return(nil)

	// preparation fails, which is a per-sample launch error
	m.organizer.On("NewFolder", mock.Anything, mock.Anything).
		Return(assert.AnError)

	m.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(message string) bool {
		return strings.Contains(message, "S001")
	}), "egg-alerts").Return(nil)

	report, err := orchestrator.Run(context.Background(), files, false)
	require.NoError(t, err)

	assert.Empty(t, report.Launched)
	require.Len(t, report.LaunchErrors, 1)
	assert.Equal(t, "S001", report.LaunchErrors[0].ReferralID)

	m.submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	m.notifier.AssertExpectations(t)
}

func TestOrchestrator_Run_ExplicitIDsBypassDedup(t *testing.T) {
	t.Parallel()

	orchestrator, m := newOrchestrator(t)

	files := []domain.InputFile{
		{ID: "file-000000000000000000000011", Name: "S001-reported_variants.v1.csv"},
		{ID: "file-000000000000000000000012", Name: "S001-reported_structural_variants.v1.csv"},
		{ID: "file-000000000000000000000013", Name: "S001.v1.supplementary.html"},
	}

	m.store.On("Lookup", mock.Anything, "S001").Return(nil, nil)
	m.store.On("Insert", mock.Anything, mock.Anything).Return(nil)
	m.organizer.On("NewFolder", mock.Anything, mock.Anything).Return(nil)
	m.organizer.On("MoveFile", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.submitter.On("Submit", mock.Anything, mock.Anything).
		Return(&domain.JobHandle{ID: "job-000000000000000000000001", Name: "S001"}, nil)
	m.updater.On("Update", mock.Anything, "S001", mock.Anything).Return(nil)
	m.reports.On("WriteSummary", mock.Anything, mock.Anything).Return(nil)
	m.organizer.On("UploadFile", mock.Anything, mock.Anything, mock.Anything).
		Return("file-000000000000000000000009", nil)
	m.describer.On("Describe", mock.Anything, mock.Anything).
		Return(&domain.JobDescription{
			ID:           "job-000000000000000000000001",
			Name:         "S001",
			State:        domain.JobStateDone,
			OutputFileID: "file-000000000000000000000002",
		}, nil)
	m.downloader.On("DownloadOutput", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			require.NoError(t, os.WriteFile(args.String(2), []byte("workbook"), 0o644))
		}).
		Return(nil)
	m.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	report, err := orchestrator.Run(context.Background(), files, true)
	require.NoError(t, err)

	require.Contains(t, report.Launched, "S001")

	// dedup is skipped entirely for deliberate reprocessing
	m.finder.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
}

func TestOrchestrator_Run_ExplicitIDsReprocessTrackedSample(t *testing.T) {
	t.Parallel()

	orchestrator, m := newOrchestrator(t)

	files := []domain.InputFile{
		{ID: "file-000000000000000000000011", Name: "S001-reported_variants.v1.csv"},
		{ID: "file-000000000000000000000012", Name: "S001-reported_structural_variants.v1.csv"},
		{ID: "file-000000000000000000000013", Name: "S001.v1.supplementary.html"},
	}

	// the sample went all the way through a previous run
	m.store.On("Lookup", mock.Anything, "S001").
		Return(&domain.SampleRecord{
			ReferralID:       "S001",
			JobID:            "job-000000000000000000000099",
			ProcessingStatus: domain.StatusWorkbookDownloaded,
		}, nil)
	m.store.On("Update", mock.Anything, "S001", statusUpdate(domain.StatusPreprocessing)).
		Return(nil)

	m.organizer.On("NewFolder", mock.Anything, mock.Anything).Return(nil)
	m.organizer.On("MoveFile", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.submitter.On("Submit", mock.Anything, mock.Anything).
		Return(&domain.JobHandle{ID: "job-000000000000000000000001", Name: "S001"}, nil)
	m.updater.On("Update", mock.Anything, "S001", mock.Anything).Return(nil)
	m.reports.On("WriteSummary", mock.Anything, mock.Anything).Return(nil)
	m.organizer.On("UploadFile", mock.Anything, mock.Anything, mock.Anything).
		Return("file-000000000000000000000009", nil)
	m.describer.On("Describe", mock.Anything, mock.Anything).
		Return(&domain.JobDescription{
			ID:           "job-000000000000000000000001",
			Name:         "S001",
			State:        domain.JobStateDone,
			OutputFileID: "file-000000000000000000000002",
		}, nil)
	m.downloader.On("DownloadOutput", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			require.NoError(t, os.WriteFile(args.String(2), []byte("workbook"), 0o644))
		}).
		Return(nil)
	m.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	report, err := orchestrator.Run(context.Background(), files, true)
	require.NoError(t, err)

	require.Contains(t, report.Launched, "S001")
	assert.Empty(t, report.LaunchErrors)

	// the existing row is reset, never re-inserted
	m.store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	m.store.AssertExpectations(t)
}

func TestOrchestrator_CheckJobs(t *testing.T) {
	t.Parallel()

	orchestrator, m := newOrchestrator(t)

	createdAfter := time.Now().Add(-24 * time.Hour)

	m.executions.On("FindExecutions", mock.Anything, "app-000000000000000000000001", createdAfter).
		Return([]*domain.JobDescription{
			{ID: "job-000000000000000000000001", Name: "S001", State: domain.JobStateRunning},
		}, nil)
	m.describer.On("Describe", mock.Anything, "job-000000000000000000000001").
		Return(&domain.JobDescription{
			ID:           "job-000000000000000000000001",
			Name:         "S001",
			State:        domain.JobStateDone,
			OutputFileID: "file-000000000000000000000002",
		}, nil)
	m.downloader.On("DownloadOutput", mock.Anything, "file-000000000000000000000002", mock.Anything).
		Run(func(args mock.Arguments) {
			require.NoError(t, os.WriteFile(args.String(2), []byte("workbook"), 0o644))
		}).
		Return(nil)
	m.updater.On("Update", mock.Anything, "S001", mock.Anything).Return(nil)
	m.notifier.On("Notify", mock.Anything, "All 1 workbook job(s) completed successfully", "egg-logs").
		Return(nil)

	report, err := orchestrator.CheckJobs(context.Background(), createdAfter)
	require.NoError(t, err)

	require.Contains(t, report.Launched, "S001")
	assert.Empty(t, report.Failures)

	m.executions.AssertExpectations(t)
	m.notifier.AssertExpectations(t)
}

func TestOrchestrator_CheckJobs_NoExecutions(t *testing.T) {
	t.Parallel()

	orchestrator, m := newOrchestrator(t)

	createdAfter := time.Now().Add(-24 * time.Hour)

	m.executions.On("FindExecutions", mock.Anything, "app-000000000000000000000001", createdAfter).
		Return([]*domain.JobDescription{}, nil)
	m.notifier.On("Notify", mock.Anything, "Couldn't find any workbook jobs to check", "egg-logs").
		Return(nil)

	report, err := orchestrator.CheckJobs(context.Background(), createdAfter)
	require.NoError(t, err)

	assert.True(t, report.NothingToDo())
	m.notifier.AssertExpectations(t)
}
