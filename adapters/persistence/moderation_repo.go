package persistence

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cvlinkhq/cvlink/internal/domain/moderation"
)

type postgresModerationRepo struct {
	db *pgxpool.Pool
}

func NewPostgresModerationRepo(db *pgxpool.Pool) moderation.Repository {
	return &postgresModerationRepo{db: db}
}

const reportColumns = `id, profile_id, reported_by, reason, status, created_at, updated_at`

func scanReport(row pgx.Row) (*moderation.Report, error) {
	rep := &moderation.Report{}
	err := row.Scan(
		&rep.ID,
		&rep.ProfileID,
		&rep.ReportedBy,
		&rep.Reason,
		&rep.Status,
		&rep.CreatedAt,
		&rep.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, moderation.ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to scan report row: %w", err)
	}
	return rep, nil
}

func (r *postgresModerationRepo) Create(ctx context.Context, rep *moderation.Report) error {
	query := `
		INSERT INTO moderation_reports (id, profile_id, reported_by, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		rep.ID, rep.ProfileID, rep.ReportedBy, rep.Reason, rep.Status, rep.CreatedAt, rep.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create moderation report: %w", err)
	}
	return nil
}

func (r *postgresModerationRepo) FindByID(ctx context.Context, id uuid.UUID) (*moderation.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM moderation_reports WHERE id = $1`
	return scanReport(r.db.QueryRow(ctx, query, id))
}

func (r *postgresModerationRepo) List(ctx context.Context, status *moderation.Status, limit, offset int) ([]*moderation.Report, error) {
	builder := psql.Select(reportColumns).
		From("moderation_reports").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	if status != nil {
		builder = builder.Where(sq.Eq{"status": string(*status)})
	}

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build report list query: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query moderation reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*moderation.Report, 0)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report row during iteration: %w", err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report rows: %w", err)
	}
	return reports, nil
}

func (r *postgresModerationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status moderation.Status) error {
	query := `UPDATE moderation_reports SET status = $2, updated_at = NOW() WHERE id = $1`
	cmdTag, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update report status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return moderation.ErrReportNotFound
	}
	return nil
}
