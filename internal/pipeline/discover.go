package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
)

type ObjectFinder interface {
	FindDataObjects(ctx context.Context, createdAfter time.Time) ([]domain.InputFile, error)
}

type FileDescriber interface {
	DescribeFile(ctx context.Context, fileID string) (name string, err error)
}

// Discovery resolves the run's input source into the flat file list the
// grouper consumes: the watched intake location with a trailing window,
// explicit local paths, or explicit platform file ids.
type Discovery struct {
	log      *slog.Logger
	finder   ObjectFinder
	describe FileDescriber
}

func NewDiscovery(log *slog.Logger, finder ObjectFinder, describe FileDescriber) *Discovery {
	return &Discovery{
		log:      log,
		finder:   finder,
		describe: describe,
	}
}

// Watched returns the files in dir modified within the trailing window.
func (d *Discovery) Watched(ctx context.Context, dir string, window time.Duration) ([]domain.InputFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %q: %w", dir, err)
	}

	cutoff := time.Now().Add(-window)

	var files []domain.InputFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %q: %w", entry.Name(), err)
		}

		if info.ModTime().Before(cutoff) {
			continue
		}

		files = append(files, domain.InputFile{
			Path: filepath.Join(dir, entry.Name()),
			Name: entry.Name(),
		})
	}

	d.log.DebugContext(ctx, "discovered files in watched location",
		slog.String("dir", dir),
		slog.Int("files", len(files)),
	)

	return files, nil
}

// FromPaths resolves explicitly named local files. A non-existent path is a
// validation error, reported before any side effect.
func (d *Discovery) FromPaths(paths []string) ([]domain.InputFile, error) {
	files := make([]domain.InputFile, 0, len(paths))

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &domain.ValidationError{
					Reason: fmt.Sprintf("path %q does not exist", p),
				}
			}
			return nil, fmt.Errorf("failed to stat %q: %w", p, err)
		}

		files = append(files, domain.InputFile{
			Path: p,
			Name: filepath.Base(p),
		})
	}

	return files, nil
}

// FromPlatformIDs resolves explicitly named platform files. Malformed ids
// are a validation error; names are fetched so role matching works the same
// as for local files.
func (d *Discovery) FromPlatformIDs(ctx context.Context, ids []string) ([]domain.InputFile, error) {
	files := make([]domain.InputFile, 0, len(ids))

	for _, id := range ids {
		if !domain.ValidPlatformID(id) {
			return nil, &domain.ValidationError{
				Reason: fmt.Sprintf("%q is not a valid platform id", id),
			}
		}

		name, err := d.describe.DescribeFile(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to describe %s: %w", id, err)
		}

		files = append(files, domain.InputFile{
			ID:   id,
			Name: name,
		})
	}

	return files, nil
}

// FromPlatform returns the project's data objects created inside the
// trailing window.
func (d *Discovery) FromPlatform(ctx context.Context, window time.Duration) ([]domain.InputFile, error) {
	files, err := d.finder.FindDataObjects(ctx, time.Now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to find new platform files: %w", err)
	}

	d.log.DebugContext(ctx, "discovered platform files", slog.Int("files", len(files)))

	return files, nil
}
