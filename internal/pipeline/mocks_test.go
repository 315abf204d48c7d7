package pipeline_test

import (
	"context"
	"io"
	"time"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockRecordFinder struct{ mock.Mock }

func (m *MockRecordFinder) Lookup(ctx context.Context, referralID string) (*domain.SampleRecord, error) {
	args := m.Called(ctx, referralID)

	var record *domain.SampleRecord
	if v := args.Get(0); v != nil {
		record = v.(*domain.SampleRecord)
	}

	return record, args.Error(1)
}

type MockRecordUpdater struct{ mock.Mock }

func (m *MockRecordUpdater) Update(ctx context.Context, referralID string, update domain.RecordUpdate) error {
	return m.Called(ctx, referralID, update).Error(0)
}

// MockRecordStore covers the full tracker surface the orchestrator drives.
type MockRecordStore struct{ mock.Mock }

func (m *MockRecordStore) Lookup(ctx context.Context, referralID string) (*domain.SampleRecord, error) {
	args := m.Called(ctx, referralID)

	var record *domain.SampleRecord
	if v := args.Get(0); v != nil {
		record = v.(*domain.SampleRecord)
	}

	return record, args.Error(1)
}

func (m *MockRecordStore) Insert(ctx context.Context, record *domain.SampleRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockRecordStore) Update(ctx context.Context, referralID string, update domain.RecordUpdate) error {
	return m.Called(ctx, referralID, update).Error(0)
}

type MockJobSubmitter struct{ mock.Mock }

func (m *MockJobSubmitter) Submit(ctx context.Context, request *domain.JobRequest) (*domain.JobHandle, error) {
	args := m.Called(ctx, request)

	var handle *domain.JobHandle
	if v := args.Get(0); v != nil {
		handle = v.(*domain.JobHandle)
	}

	return handle, args.Error(1)
}

type MockJobDescriber struct{ mock.Mock }

func (m *MockJobDescriber) Describe(ctx context.Context, jobID string) (*domain.JobDescription, error) {
	args := m.Called(ctx, jobID)

	var description *domain.JobDescription
	if v := args.Get(0); v != nil {
		description = v.(*domain.JobDescription)
	}

	return description, args.Error(1)
}

type MockOutputDownloader struct{ mock.Mock }

func (m *MockOutputDownloader) DownloadOutput(ctx context.Context, fileID, destination string) error {
	return m.Called(ctx, fileID, destination).Error(0)
}

type MockExecutionFinder struct{ mock.Mock }

func (m *MockExecutionFinder) FindExecutions(ctx context.Context, appID string, createdAfter time.Time) ([]*domain.JobDescription, error) {
	args := m.Called(ctx, appID, createdAfter)

	var descriptions []*domain.JobDescription
	if v := args.Get(0); v != nil {
		descriptions = v.([]*domain.JobDescription)
	}

	return descriptions, args.Error(1)
}

type MockObjectFinder struct{ mock.Mock }

func (m *MockObjectFinder) FindDataObjects(ctx context.Context, createdAfter time.Time) ([]domain.InputFile, error) {
	args := m.Called(ctx, createdAfter)

	var files []domain.InputFile
	if v := args.Get(0); v != nil {
		files = v.([]domain.InputFile)
	}

	return files, args.Error(1)
}

type MockFileDescriber struct{ mock.Mock }

func (m *MockFileDescriber) DescribeFile(ctx context.Context, fileID string) (string, error) {
	args := m.Called(ctx, fileID)
	return args.String(0), args.Error(1)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) Notify(ctx context.Context, message, channel string) error {
	return m.Called(ctx, message, channel).Error(0)
}

type MockReportWriter struct{ mock.Mock }

func (m *MockReportWriter) WriteSummary(path string, rows []domain.SummaryRow) error {
	return m.Called(path, rows).Error(0)
}

// MockPlatformOrganizer covers the folder, upload and move surface the
// preparer and orchestrator drive.
type MockPlatformOrganizer struct{ mock.Mock }

func (m *MockPlatformOrganizer) NewFolder(ctx context.Context, folder string) error {
	return m.Called(ctx, folder).Error(0)
}

func (m *MockPlatformOrganizer) UploadFile(ctx context.Context, path, folder string) (string, error) {
	args := m.Called(ctx, path, folder)
	return args.String(0), args.Error(1)
}

func (m *MockPlatformOrganizer) UploadContent(ctx context.Context, name, folder string, content io.Reader) (string, error) {
	args := m.Called(ctx, name, folder, content)
	return args.String(0), args.Error(1)
}

func (m *MockPlatformOrganizer) MoveFile(ctx context.Context, fileID, folder string) error {
	return m.Called(ctx, fileID, folder).Error(0)
}

// fakeTransactor runs the callback without a database.
type fakeTransactor struct{}

func (fakeTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
