package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
	"github.com/eastgenomics/sc-wgs-monitoring/internal/scrub"
)

// workbookInputNames maps each file role to the workbook app input it feeds.
var workbookInputNames = map[domain.FileRole]string{
	domain.RoleReportedVariants:   "reported_variants",
	domain.RoleStructuralVariants: "reported_structural_variants",
	domain.RoleSupplementaryHTML:  "supplementary_html",
}

type PlatformOrganizer interface {
	FolderCreator
	FileUploader
	FileMover
}

// Preparer stages one sample's inputs on the platform and assembles the job
// request: a per-run folder is created, local files are uploaded into it
// (the supplementary HTML with its patient-identifiable div removed first),
// files already on the platform are moved into it, and the configured
// reference inputs are attached.
type Preparer struct {
	log       *slog.Logger
	platform  PlatformOrganizer
	appID     string
	refInputs map[string]string
	pidDivID  string
}

func NewPreparer(
	log *slog.Logger,
	platform PlatformOrganizer,
	appID string,
	refInputs map[string]string,
	pidDivID string,
) *Preparer {
	return &Preparer{
		log:       log,
		platform:  platform,
		appID:     appID,
		refInputs: refInputs,
		pidDivID:  pidDivID,
	}
}

// Prepare returns the ready-to-submit request for one sample. date is the
// YYMMDD run folder name shared by the whole batch.
func (p *Preparer) Prepare(
	ctx context.Context,
	date string,
	sampleID string,
	files []domain.InputFile,
) (*domain.JobRequest, error) {
	folder := path.Join("/", date, sampleID)

	if err := p.platform.NewFolder(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to create folder %s: %w", folder, err)
	}

	inputs := make(map[string]string, len(files)+len(p.refInputs))

	for _, file := range files {
		fileID, err := p.stage(ctx, file, folder)
		if err != nil {
			return nil, fmt.Errorf("failed to stage %s: %w", file.Name, err)
		}

		inputs[workbookInputNames[file.Role]] = fileID
	}

	for name, fileID := range p.refInputs {
		inputs[name] = fileID
	}

	p.log.DebugContext(ctx, "prepared job inputs",
		slog.String("referral_id", sampleID),
		slog.String("folder", folder),
	)

	return &domain.JobRequest{
		ReferralID:   sampleID,
		AppID:        p.appID,
		Inputs:       inputs,
		OutputFolder: path.Join(folder, "output"),
	}, nil
}

func (p *Preparer) stage(ctx context.Context, file domain.InputFile, folder string) (string, error) {
	if !file.Local() {
		if err := p.platform.MoveFile(ctx, file.ID, folder); err != nil {
			return "", fmt.Errorf("failed to move file: %w", err)
		}

		return file.ID, nil
	}

	if file.Role == domain.RoleSupplementaryHTML {
		return p.uploadScrubbed(ctx, file, folder)
	}

	fileID, err := p.platform.UploadFile(ctx, file.Path, folder)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return fileID, nil
}

// uploadScrubbed uploads the supplementary HTML with the PID div stripped.
// The scrubbed copy keeps the original name so role matching on the platform
// side stays intact.
func (p *Preparer) uploadScrubbed(ctx context.Context, file domain.InputFile, folder string) (string, error) {
	content, err := os.ReadFile(file.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read supplementary html: %w", err)
	}

	scrubbed, err := scrub.RemovePIDDiv(bytes.NewReader(content), p.pidDivID)
	if err != nil {
		return "", fmt.Errorf("failed to scrub supplementary html: %w", err)
	}

	fileID, err := p.platform.UploadContent(ctx, file.Name, folder, bytes.NewReader(scrubbed))
	if err != nil {
		return "", fmt.Errorf("failed to upload scrubbed html: %w", err)
	}

	return fileID, nil
}
