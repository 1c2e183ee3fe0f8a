package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/broken-weave/internal/model"
	"github.com/sakif/broken-weave/internal/repository"
)

// compile-time check that *DB implements repository.VolunteerRepository
var _ repository.VolunteerRepository = (*DB)(nil)

// CreateVolunteer inserts a new volunteer with a server-assigned
// registration timestamp.
func (db *DB) CreateVolunteer(ctx context.Context, v *model.Volunteer) error {
	v.RegisteredAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO volunteers (name, email, phone, skills, availability, message, registered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.Name,
		v.Email,
		nullable(v.Phone),
		v.Skills,
		v.Availability,
		nullable(v.Message),
		v.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating volunteer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new volunteer id: %w", err)
	}
	v.ID = id

	return nil
}

// ListVolunteers returns every volunteer, newest first.
func (db *DB) ListVolunteers(ctx context.Context) ([]model.Volunteer, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, email, phone, skills, availability, message, registered_at
		 FROM volunteers
		 ORDER BY registered_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing volunteers: %w", err)
	}
	defer rows.Close()

	volunteers := make([]model.Volunteer, 0, 16)
	for rows.Next() {
		var v model.Volunteer
		var phone, message sql.NullString
		if err := rows.Scan(
			&v.ID, &v.Name, &v.Email, &phone,
			&v.Skills, &v.Availability, &message, &v.RegisteredAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning volunteer row: %w", err)
		}
		v.Phone = phone.String
		v.Message = message.String
		volunteers = append(volunteers, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating volunteers: %w", err)
	}

	return volunteers, nil
}
