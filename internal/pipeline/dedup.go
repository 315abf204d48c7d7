package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
)

// Dedup partitions grouped samples into new work and samples already
// recorded in the tracker.
type Dedup struct {
	log   *slog.Logger
	store RecordFinder
}

func NewDedup(log *slog.Logger, store RecordFinder) *Dedup {
	return &Dedup{
		log:   log,
		store: store,
	}
}

// Partition looks every sample up in the tracker. A record's presence,
// whatever its status, marks the sample as already seen. The returned map
// and slice cover the input ids exactly once between them.
func (d *Dedup) Partition(
	ctx context.Context,
	groups map[string][]domain.InputFile,
) (map[string][]domain.InputFile, []string, error) {
	fresh := make(map[string][]domain.InputFile, len(groups))
	var seen []string

	for sampleID, files := range groups {
		record, err := d.store.Lookup(ctx, sampleID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to look up %s: %w", sampleID, err)
		}

		if record != nil {
			d.log.DebugContext(ctx, "sample already processed, skipping",
				slog.String("referral_id", sampleID),
				slog.String("processing_status", string(record.ProcessingStatus)),
			)
			seen = append(seen, sampleID)
			continue
		}

		fresh[sampleID] = files
	}

	sort.Strings(seen)

	return fresh, seen, nil
}
