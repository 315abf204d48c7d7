package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
)

type RecordFinder interface {
	Lookup(ctx context.Context, referralID string) (*domain.SampleRecord, error)
}

type RecordCreator interface {
	Insert(ctx context.Context, record *domain.SampleRecord) error
}

type RecordUpdater interface {
	Update(ctx context.Context, referralID string, update domain.RecordUpdate) error
}

type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type JobSubmitter interface {
	Submit(ctx context.Context, request *domain.JobRequest) (*domain.JobHandle, error)
}

type JobDescriber interface {
	Describe(ctx context.Context, jobID string) (*domain.JobDescription, error)
}

type OutputDownloader interface {
	DownloadOutput(ctx context.Context, fileID, destination string) error
}

type FolderCreator interface {
	NewFolder(ctx context.Context, folder string) error
}

type FileUploader interface {
	UploadFile(ctx context.Context, path, folder string) (fileID string, err error)
	UploadContent(ctx context.Context, name, folder string, content io.Reader) (fileID string, err error)
}

type FileMover interface {
	MoveFile(ctx context.Context, fileID, folder string) error
}

type ExecutionFinder interface {
	FindExecutions(ctx context.Context, appID string, createdAfter time.Time) ([]*domain.JobDescription, error)
}

type Notifier interface {
	Notify(ctx context.Context, message, channel string) error
}
