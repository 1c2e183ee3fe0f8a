// Package repository defines the storage interfaces the service layer
// depends on. Concrete adapters live in the sqlite and postgres
// subpackages; the service never imports either directly, which is what
// makes the database driver swappable in one line of wiring.
package repository

import (
	"context"

	"github.com/sakif/broken-weave/internal/model"
)

// UserRepository persists registered accounts.
type UserRepository interface {
	// CreateUser inserts a new user and fills in ID and CreatedAt.
	// Returns apperror.ErrConflict if the username or email is taken.
	CreateUser(ctx context.Context, user *model.User) error

	// GetUserByUsername returns apperror.ErrNotFound when no such user exists.
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)

	// UserExists reports whether any user already holds the given username
	// OR email.
	UserExists(ctx context.Context, username, email string) (bool, error)
}

// PersonRepository persists missing-person case records.
type PersonRepository interface {
	// CreatePerson inserts a new case with status "missing" and fills in
	// ID and ReportedAt.
	CreatePerson(ctx context.Context, p *model.Person) error

	// ListPersons returns every case, newest first.
	ListPersons(ctx context.Context) ([]model.Person, error)

	// SearchPersons filters by case-insensitive substring match on name,
	// description, and last-known location. A non-empty category restricts
	// to exact category equality. Results are newest first.
	SearchPersons(ctx context.Context, query, category string) ([]model.Person, error)

	// ListFoundPersons returns up to limit cases with status "found",
	// newest first.
	ListFoundPersons(ctx context.Context, limit int) ([]model.Person, error)

	// MarkPersonFound sets status to "found" unconditionally. Calling it
	// on an already-found case is a no-op success; an unknown id returns
	// apperror.ErrNotFound.
	MarkPersonFound(ctx context.Context, id int64) error

	// UpdatePerson overwrites the editable detail fields of p.ID. Status
	// and image reference are not touched. Returns apperror.ErrNotFound
	// for an unknown id.
	UpdatePerson(ctx context.Context, p *model.Person) error

	// ReplacePersonImage transactionally swaps the stored image reference
	// and returns the previous one (nil if the case had no image) so the
	// caller can clean up the old file after commit.
	ReplacePersonImage(ctx context.Context, id int64, newImageURL string) (*string, error)

	// DeletePerson transactionally removes the case and returns its image
	// reference (nil if none) so the caller can clean up the file after
	// commit.
	DeletePerson(ctx context.Context, id int64) (*string, error)
}

// VolunteerRepository persists volunteer sign-ups.
type VolunteerRepository interface {
	// CreateVolunteer inserts a new volunteer and fills in ID and
	// RegisteredAt.
	CreateVolunteer(ctx context.Context, v *model.Volunteer) error

	// ListVolunteers returns every volunteer, newest first.
	ListVolunteers(ctx context.Context) ([]model.Volunteer, error)
}

// Store is the full storage contract a database adapter provides. The
// connection pool is created once at startup and injected; Ping backs the
// health probe and Close runs during graceful shutdown.
type Store interface {
	UserRepository
	PersonRepository
	VolunteerRepository

	Ping(ctx context.Context) error
	Close() error
}
