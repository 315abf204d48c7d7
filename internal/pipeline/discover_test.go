package pipeline_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
	"github.com/eastgenomics/sc-wgs-monitoring/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDiscovery_Watched_RespectsTrailingWindow(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.DiscardHandler)
	dir := t.TempDir()

	fresh := filepath.Join(dir, "S001-reported_variants.v1.csv")
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))

	stale := filepath.Join(dir, "S000-reported_variants.v1.csv")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	discovery := pipeline.NewDiscovery(log, nil, nil)

	files, err := discovery.Watched(context.Background(), dir, 24*time.Hour)
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "S001-reported_variants.v1.csv", files[0].Name)
	assert.Equal(t, fresh, files[0].Path)
}

func TestDiscovery_FromPlatform_RespectsTrailingWindow(t *testing.T) {
	t.Parallel()

	window := 24 * time.Hour

	finder := new(MockObjectFinder)
	finder.On("FindDataObjects", mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		age := time.Since(cutoff)
		return age >= window-time.Minute && age <= window+time.Minute
	})).Return([]domain.InputFile{
		{ID: "file-000000000000000000000001", Name: "S001-reported_variants.v1.csv"},
		{ID: "file-000000000000000000000002", Name: "S001-reported_structural_variants.v1.csv"},
	}, nil)

	discovery := pipeline.NewDiscovery(slog.New(slog.DiscardHandler), finder, nil)

	files, err := discovery.FromPlatform(context.Background(), window)
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, "file-000000000000000000000001", files[0].ID)
	assert.Equal(t, "S001-reported_variants.v1.csv", files[0].Name)

	finder.AssertExpectations(t)
}

func TestDiscovery_FromPaths_MissingPathIsAValidationError(t *testing.T) {
	t.Parallel()

	discovery := pipeline.NewDiscovery(slog.New(slog.DiscardHandler), nil, nil)

	_, err := discovery.FromPaths([]string{"/nonexistent/S001-reported_variants.v1.csv"})

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Reason, "does not exist")
}

func TestDiscovery_FromPlatformIDs(t *testing.T) {
	t.Parallel()

	describer := new(MockFileDescriber)
	describer.On("DescribeFile", mock.Anything, "file-000000000000000000000001").
		Return("S001-reported_variants.v1.csv", nil)

	discovery := pipeline.NewDiscovery(slog.New(slog.DiscardHandler), nil, describer)

	files, err := discovery.FromPlatformIDs(context.Background(), []string{"file-000000000000000000000001"})
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "file-000000000000000000000001", files[0].ID)
	assert.Equal(t, "S001-reported_variants.v1.csv", files[0].Name)

	describer.AssertExpectations(t)
}

func TestDiscovery_FromPlatformIDs_MalformedID(t *testing.T) {
	t.Parallel()

	discovery := pipeline.NewDiscovery(slog.New(slog.DiscardHandler), nil, new(MockFileDescriber))

	_, err := discovery.FromPlatformIDs(context.Background(), []string{"file-short"})

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Reason, "file-short")
}
