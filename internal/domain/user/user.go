package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrUserNotFound = errors.New("user not found")

// User is the local account linked to an identity-provider subject. There is
// exactly one User per subject; the row is created on first authentication.
type User struct {
	ID              uuid.UUID `json:"id"`
	Subject         string    `json:"-"`
	Email           *string   `json:"email"`
	Username        *string   `json:"username"`
	FirstName       *string   `json:"first_name"`
	LastName        *string   `json:"last_name"`
	ProfileImageURL *string   `json:"profile_image_url"`
	IsPro           bool      `json:"is_pro"`
	IsAdmin         bool      `json:"is_admin"`
	IsBanned        bool      `json:"is_banned"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Repository interface {
	FindBySubject(ctx context.Context, subject string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	// UpsertBySubject creates the user on first authentication and refreshes
	// the identity-provider fields on subsequent ones.
	UpsertBySubject(ctx context.Context, u *User) (*User, error)
	SetPro(ctx context.Context, id uuid.UUID, isPro bool) error
	SetFlags(ctx context.Context, id uuid.UUID, isAdmin, isBanned bool) error
}
