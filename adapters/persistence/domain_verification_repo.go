package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cvlinkhq/cvlink/internal/domain/domainverify"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

type postgresDomainVerificationRepo struct {
	db     *pgxpool.Pool
	logger logger.Logger
}

func NewPostgresDomainVerificationRepo(db *pgxpool.Pool, logger logger.Logger) domainverify.Repository {
	return &postgresDomainVerificationRepo{db: db, logger: logger}
}

const verificationColumns = `
	id, profile_id, domain, verification_status, cname_target, dns_records,
	ssl_status, check_failures, last_checked, created_at, updated_at`

func (r *postgresDomainVerificationRepo) scanVerification(row pgx.Row) (*domainverify.DomainVerification, error) {
	v := &domainverify.DomainVerification{}
	var dnsRecordsBytes []byte
	var lastChecked sql.NullTime

	err := row.Scan(
		&v.ID,
		&v.ProfileID,
		&v.Domain,
		&v.VerificationStatus,
		&v.CnameTarget,
		&dnsRecordsBytes,
		&v.SSLStatus,
		&v.CheckFailures,
		&lastChecked,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainverify.ErrNoActiveVerification
		}
		return nil, fmt.Errorf("failed to scan domain verification row: %w", err)
	}

	if lastChecked.Valid {
		t := lastChecked.Time
		v.LastChecked = &t
	}
	if err := json.Unmarshal(dnsRecordsBytes, &v.DNSRecords); err != nil {
		r.logger.Warn("Failed to unmarshal dns_records", zap.String("verification_id", v.ID.String()), zap.Error(err))
		v.DNSRecords = []string{}
	}
	return v, nil
}

// Replace supersedes any non-failed record for the profile and inserts the
// fresh pending one, in one transaction, keeping the at-most-one-active
// invariant even under concurrent submissions.
func (r *postgresDomainVerificationRepo) Replace(ctx context.Context, v *domainverify.DomainVerification) error {
	dnsRecordsBytes, err := json.Marshal(v.DNSRecords)
	if err != nil {
		return fmt.Errorf("failed to marshal dns_records: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin replace transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	supersedeQuery := `
		UPDATE domain_verifications
		SET verification_status = 'failed', updated_at = NOW()
		WHERE profile_id = $1 AND verification_status != 'failed'
	`
	if _, err := tx.Exec(ctx, supersedeQuery, v.ProfileID); err != nil {
		return fmt.Errorf("failed to supersede active verification: %w", err)
	}

	insertQuery := `
		INSERT INTO domain_verifications (
			id, profile_id, domain, verification_status, cname_target,
			dns_records, ssl_status, check_failures, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := tx.Exec(ctx, insertQuery,
		v.ID, v.ProfileID, v.Domain, v.VerificationStatus, v.CnameTarget,
		dnsRecordsBytes, v.SSLStatus, v.CheckFailures, v.CreatedAt, v.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert domain verification: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *postgresDomainVerificationRepo) FindActiveByProfile(ctx context.Context, profileID uuid.UUID) (*domainverify.DomainVerification, error) {
	query := `
		SELECT ` + verificationColumns + `
		FROM domain_verifications
		WHERE profile_id = $1 AND verification_status != 'failed'
	`
	return r.scanVerification(r.db.QueryRow(ctx, query, profileID))
}

func (r *postgresDomainVerificationRepo) ListDue(ctx context.Context, cutoff time.Time, limit int) ([]*domainverify.DomainVerification, error) {
	builder := psql.Select(verificationColumns).
		From("domain_verifications").
		Where(sq.NotEq{"verification_status": string(domainverify.StatusFailed)}).
		Where(sq.Or{
			sq.Eq{"last_checked": nil},
			sq.LtOrEq{"last_checked": cutoff},
		}).
		OrderBy("last_checked ASC NULLS FIRST").
		Limit(uint64(limit))

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build due verifications query: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due verifications: %w", err)
	}
	defer rows.Close()

	verifications := make([]*domainverify.DomainVerification, 0)
	for rows.Next() {
		v, err := r.scanVerification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan verification row during iteration: %w", err)
		}
		verifications = append(verifications, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating verification rows: %w", err)
	}
	return verifications, nil
}

// UpdateState is a single UPDATE so an interrupted recheck never leaves a
// half-applied record.
func (r *postgresDomainVerificationRepo) UpdateState(ctx context.Context, v *domainverify.DomainVerification) error {
	dnsRecordsBytes, err := json.Marshal(v.DNSRecords)
	if err != nil {
		return fmt.Errorf("failed to marshal dns_records: %w", err)
	}

	query := `
		UPDATE domain_verifications
		SET verification_status = $2, ssl_status = $3, check_failures = $4,
			dns_records = $5, last_checked = $6, updated_at = NOW()
		WHERE id = $1
	`
	cmdTag, err := r.db.Exec(ctx, query,
		v.ID, v.VerificationStatus, v.SSLStatus, v.CheckFailures,
		dnsRecordsBytes, v.LastChecked,
	)
	if err != nil {
		return fmt.Errorf("failed to update verification state: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return domainverify.ErrNoActiveVerification
	}
	return nil
}
