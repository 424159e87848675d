package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cvlinkhq/cvlink/internal/domain/user"
)

type postgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(db *pgxpool.Pool) user.Repository {
	return &postgresUserRepo{db: db}
}

const userColumns = `
	id, subject, email, username, first_name, last_name, profile_image_url,
	is_pro, is_admin, is_banned, created_at, updated_at`

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(
		&u.ID,
		&u.Subject,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.ProfileImageURL,
		&u.IsPro,
		&u.IsAdmin,
		&u.IsBanned,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("error when query user: %w", err)
	}
	return u, nil
}

func (r *postgresUserRepo) FindBySubject(ctx context.Context, subject string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE subject = $1`
	return scanUser(r.db.QueryRow(ctx, query, subject))
}

func (r *postgresUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// UpsertBySubject keys on the identity-provider subject so repeated
// authentications always land on the same row. Flags are never touched here.
func (r *postgresUserRepo) UpsertBySubject(ctx context.Context, u *user.User) (*user.User, error) {
	query := `
		INSERT INTO users (id, subject, email, username, first_name, last_name, profile_image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (subject) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			profile_image_url = EXCLUDED.profile_image_url,
			updated_at = NOW()
		RETURNING ` + userColumns

	return scanUser(r.db.QueryRow(ctx, query,
		u.ID, u.Subject, u.Email, u.Username, u.FirstName, u.LastName, u.ProfileImageURL,
	))
}

func (r *postgresUserRepo) SetPro(ctx context.Context, id uuid.UUID, isPro bool) error {
	query := `UPDATE users SET is_pro = $2, updated_at = NOW() WHERE id = $1`
	cmdTag, err := r.db.Exec(ctx, query, id, isPro)
	if err != nil {
		return fmt.Errorf("failed to set is_pro: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (r *postgresUserRepo) SetFlags(ctx context.Context, id uuid.UUID, isAdmin, isBanned bool) error {
	query := `UPDATE users SET is_admin = $2, is_banned = $3, updated_at = NOW() WHERE id = $1`
	cmdTag, err := r.db.Exec(ctx, query, id, isAdmin, isBanned)
	if err != nil {
		return fmt.Errorf("failed to set user flags: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}
