package pipeline

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
)

// RolePattern maps a filename pattern to the workbook input role it fills.
// The sample id is the filename prefix preceding the match start.
type RolePattern struct {
	Pattern *regexp.Regexp
	Role    domain.FileRole
}

// DefaultRolePatterns covers the three files Gel delivers per sample, e.g.
// S001-reported_variants.v1.csv, S001-reported_structural_variants.v1.csv
// and S001.v1.supplementary.html.
func DefaultRolePatterns() []RolePattern {
	return []RolePattern{
		{
			Pattern: regexp.MustCompile(`-reported_variants\.v\d+\.csv$`),
			Role:    domain.RoleReportedVariants,
		},
		{
			Pattern: regexp.MustCompile(`-reported_structural_variants\.v\d+\.csv$`),
			Role:    domain.RoleStructuralVariants,
		},
		{
			Pattern: regexp.MustCompile(`\.v\d+\.supplementary(_scrubbed)?\.html$`),
			Role:    domain.RoleSupplementaryHTML,
		},
	}
}

// Grouper resolves a flat list of discovered files into complete per-sample
// groups.
type Grouper struct {
	log      *slog.Logger
	patterns []RolePattern
}

func NewGrouper(log *slog.Logger, patterns []RolePattern) *Grouper {
	return &Grouper{
		log:      log,
		patterns: patterns,
	}
}

// Group classifies every file by role, keys it by the sample id extracted
// from its name, and validates completeness. A file matching no pattern,
// a file matching more than one pattern, or a group without exactly one
// file per role is a validation error; a partial group never proceeds.
func (g *Grouper) Group(files []domain.InputFile) (map[string][]domain.InputFile, error) {
	groups := make(map[string][]domain.InputFile)

	for _, file := range files {
		classified, err := g.classify(file)
		if err != nil {
			return nil, err
		}

		sampleID := classified.Name[:g.matchStart(classified)]
		if sampleID == "" {
			return nil, &domain.ValidationError{
				Reason: fmt.Sprintf("file %q has no sample id before its role suffix", file.Name),
			}
		}

		groups[sampleID] = append(groups[sampleID], classified)
	}

	for sampleID, sampleFiles := range groups {
		if err := validateGroup(sampleID, sampleFiles); err != nil {
			return nil, err
		}
	}

	g.log.Debug("grouped input files",
		slog.Int("files", len(files)),
		slog.Int("samples", len(groups)),
	)

	return groups, nil
}

func (g *Grouper) classify(file domain.InputFile) (domain.InputFile, error) {
	var matched []RolePattern

	for _, rp := range g.patterns {
		if rp.Pattern.MatchString(file.Name) {
			matched = append(matched, rp)
		}
	}

	switch len(matched) {
	case 0:
		return domain.InputFile{}, &domain.ValidationError{
			Reason: fmt.Sprintf("file %q matches no known role pattern", file.Name),
		}
	case 1:
		file.Role = matched[0].Role
		return file, nil
	default:
		roles := make([]string, 0, len(matched))
		for _, rp := range matched {
			roles = append(roles, string(rp.Role))
		}
		sort.Strings(roles)

		return domain.InputFile{}, &domain.ValidationError{
			Reason: fmt.Sprintf("file %q matches more than one role pattern: %v", file.Name, roles),
		}
	}
}

func (g *Grouper) matchStart(file domain.InputFile) int {
	for _, rp := range g.patterns {
		if rp.Role != file.Role {
			continue
		}

		if loc := rp.Pattern.FindStringIndex(file.Name); loc != nil {
			return loc[0]
		}
	}

	return len(file.Name)
}

func validateGroup(sampleID string, files []domain.InputFile) error {
	if len(files) != domain.ExpectedRoleCount {
		return &domain.ValidationError{
			ReferralID: sampleID,
			Reason: fmt.Sprintf("%d file(s) associated, expected %d",
				len(files), domain.ExpectedRoleCount),
		}
	}

	seen := make(map[domain.FileRole]bool, len(files))
	for _, file := range files {
		if seen[file.Role] {
			return &domain.ValidationError{
				ReferralID: sampleID,
				Reason:     fmt.Sprintf("role %s filled by more than one file", file.Role),
			}
		}
		seen[file.Role] = true
	}

	return nil
}
