package postgresql

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// unique_violation
const uniqueViolationCode = "23505"

const TableTracker = "testdirectory.wgs_sc_tracker"

var trackerColumns = []string{
	"referral_id",
	"date",
	"job_id",
	"job_status",
	"processing_status",
	"workbook_dnanexus_location",
	"workbook_clingen_location",
}

// TrackerRepository is the durable mapping from referral id to processing
// record.
type TrackerRepository struct {
	pool *pgxpool.Pool
	qb   sq.StatementBuilderType
}

func NewTrackerRepository(pool *pgxpool.Pool) *TrackerRepository {
	return &TrackerRepository{
		pool: pool,
		qb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Lookup returns the record for a referral id, or nil when the sample has
// never been processed. More than one row for the same referral id is a
// consistency error.
func (r *TrackerRepository) Lookup(ctx context.Context, referralID string) (*domain.SampleRecord, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select(trackerColumns...).
		From(TableTracker).
		Where(sq.Eq{"referral_id": referralID}).
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[domain.SampleRecord])
	if err != nil {
		return nil, collectRowsError(err)
	}

	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return records[0], nil
	default:
		return nil, &domain.ConsistencyError{
			ReferralID: referralID,
			Reason:     fmt.Sprintf("%d rows share the same referral id", len(records)),
		}
	}
}

// Insert creates the row for a new sample. A duplicate referral id is a
// consistency error, not a normal outcome.
func (r *TrackerRepository) Insert(ctx context.Context, record *domain.SampleRecord) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Insert(TableTracker).
		Columns(trackerColumns...).
		Values(
			record.ReferralID,
			record.Date,
			record.JobID,
			record.JobStatus,
			record.ProcessingStatus,
			record.WorkbookDNAnexusLocation,
			record.WorkbookClinGenLocation,
		).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}

	if _, err := db.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return &domain.ConsistencyError{
				ReferralID: record.ReferralID,
				Reason:     "referral id already tracked",
			}
		}

		return executeQueryError(err)
	}

	return nil
}

// Update applies the set fields of update to one record, atomically by key.
func (r *TrackerRepository) Update(ctx context.Context, referralID string, update domain.RecordUpdate) error {
	fields := updateFields(update)
	if len(fields) == 0 {
		return nil
	}

	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Update(TableTracker).
		SetMap(fields).
		Where(sq.Eq{"referral_id": referralID}).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}

	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return executeQueryError(err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no tracker row for referral id %s", referralID)
	}

	return nil
}

func updateFields(update domain.RecordUpdate) map[string]any {
	fields := make(map[string]any)

	if update.JobID != nil {
		fields["job_id"] = *update.JobID
	}
	if update.JobStatus != nil {
		fields["job_status"] = *update.JobStatus
	}
	if update.ProcessingStatus != nil {
		fields["processing_status"] = *update.ProcessingStatus
	}
	if update.WorkbookDNAnexusLocation != nil {
		fields["workbook_dnanexus_location"] = *update.WorkbookDNAnexusLocation
	}
	if update.WorkbookClinGenLocation != nil {
		fields["workbook_clingen_location"] = *update.WorkbookClinGenLocation
	}

	return fields
}

// Samples returns a page of tracker rows, newest first, plus the total row
// count.
func (r *TrackerRepository) Samples(ctx context.Context, limit, offset uint64) ([]*domain.SampleRecord, int, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select("COUNT(*)").
		From(TableTracker).
		ToSql()
	if err != nil {
		return nil, -1, createQueryError(err)
	}

	var total int
	if err := db.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return nil, -1, scanRowError(err)
	}

	sql, args, err = r.qb.
		Select(trackerColumns...).
		From(TableTracker).
		OrderBy("date DESC", "referral_id ASC").
		Limit(limit).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, -1, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, -1, executeQueryError(err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[domain.SampleRecord])
	if err != nil {
		return nil, -1, collectRowsError(err)
	}

	return records, total, nil
}
