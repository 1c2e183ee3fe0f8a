package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/broken-weave/internal/apperror"
	"github.com/sakif/broken-weave/internal/model"
	"github.com/sakif/broken-weave/internal/repository"
)

// compile-time check that *DB implements repository.PersonRepository
var _ repository.PersonRepository = (*DB)(nil)

const personColumns = `id, name, dob, category, last_known_location,
	contact_info, description, image_url, status, reported_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(s scanner, p *model.Person) error {
	var dob, description, imageURL sql.NullString

	err := s.Scan(
		&p.ID,
		&p.Name,
		&dob,
		&p.Category,
		&p.LastKnownLocation,
		&p.ContactInfo,
		&description,
		&imageURL,
		&p.Status,
		&p.ReportedAt,
	)
	if err != nil {
		return err
	}

	p.DOB = dob.String
	p.Description = description.String
	if imageURL.Valid {
		p.ImageURL = &imageURL.String
	} else {
		p.ImageURL = nil
	}
	return nil
}

func collectPersons(rows *sql.Rows) ([]model.Person, error) {
	persons := make([]model.Person, 0, 16)
	for rows.Next() {
		var p model.Person
		if err := scanPerson(rows, &p); err != nil {
			return nil, fmt.Errorf("postgres: scanning person row: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating persons: %w", err)
	}
	return persons, nil
}

// CreatePerson inserts a new case with status "missing" and a server-assigned
// reported timestamp.
func (db *DB) CreatePerson(ctx context.Context, p *model.Person) error {
	p.Status = model.StatusMissing
	p.ReportedAt = time.Now()

	var imageURL sql.NullString
	if p.ImageURL != nil {
		imageURL = nullable(*p.ImageURL)
	}

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO missing_persons
		 (name, dob, category, last_known_location, contact_info, description, image_url, status, reported_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		p.Name,
		nullable(p.DOB),
		p.Category,
		p.LastKnownLocation,
		p.ContactInfo,
		nullable(p.Description),
		imageURL,
		p.Status,
		p.ReportedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("postgres: creating person: %w", err)
	}

	return nil
}

// ListPersons returns every case, newest first.
func (db *DB) ListPersons(ctx context.Context) ([]model.Person, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+personColumns+` FROM missing_persons ORDER BY reported_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing persons: %w", err)
	}
	defer rows.Close()

	return collectPersons(rows)
}

// SearchPersons matches query as a case-insensitive substring of name,
// description, or last-known location. ILIKE is Postgres's case-insensitive
// LIKE; the SQLite adapter gets the same behaviour from plain LIKE.
func (db *DB) SearchPersons(ctx context.Context, query, category string) ([]model.Person, error) {
	pattern := "%" + query + "%"

	sqlStr := `SELECT ` + personColumns + ` FROM missing_persons
		WHERE (name ILIKE $1 OR description ILIKE $1 OR last_known_location ILIKE $1)`
	args := []any{pattern}

	if category != "" {
		sqlStr += ` AND category = $2`
		args = append(args, category)
	}
	sqlStr += ` ORDER BY reported_at DESC`

	rows, err := db.conn.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: searching persons: %w", err)
	}
	defer rows.Close()

	return collectPersons(rows)
}

// ListFoundPersons returns up to limit found cases, newest first.
func (db *DB) ListFoundPersons(ctx context.Context, limit int) ([]model.Person, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+personColumns+` FROM missing_persons
		 WHERE status = $1
		 ORDER BY reported_at DESC
		 LIMIT $2`,
		model.StatusFound, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing found persons: %w", err)
	}
	defer rows.Close()

	return collectPersons(rows)
}

// MarkPersonFound sets status to "found" unconditionally.
func (db *DB) MarkPersonFound(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE missing_persons SET status = $1 WHERE id = $2`,
		model.StatusFound, id,
	)
	if err != nil {
		return fmt.Errorf("postgres: marking person %d found: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("missing person", strconv.FormatInt(id, 10))
	}

	return nil
}

// UpdatePerson overwrites the editable detail fields; status and image
// reference have their own operations.
func (db *DB) UpdatePerson(ctx context.Context, p *model.Person) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE missing_persons
		 SET name = $1, dob = $2, category = $3, last_known_location = $4, contact_info = $5, description = $6
		 WHERE id = $7`,
		p.Name,
		nullable(p.DOB),
		p.Category,
		p.LastKnownLocation,
		p.ContactInfo,
		nullable(p.Description),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: updating person %d: %w", p.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("missing person", strconv.FormatInt(p.ID, 10))
	}

	return nil
}

// ReplacePersonImage transactionally swaps the stored image reference and
// returns the previous one for post-commit file cleanup. FOR UPDATE locks
// the row so a concurrent replace cannot read the same "old" reference.
func (db *DB) ReplacePersonImage(ctx context.Context, id int64, newImageURL string) (*string, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres: beginning image replace tx: %w", err)
	}
	defer tx.Rollback()

	var old sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT image_url FROM missing_persons WHERE id = $1 FOR UPDATE`, id,
	).Scan(&old)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("missing person", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("postgres: reading old image for person %d: %w", id, err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE missing_persons SET image_url = $1 WHERE id = $2`,
		newImageURL, id,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: updating image for person %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperror.NotFound("missing person", strconv.FormatInt(id, 10))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("postgres: committing image replace for person %d: %w", id, err)
	}

	if old.Valid {
		return &old.String, nil
	}
	return nil, nil
}

// DeletePerson transactionally removes the case and returns its image
// reference for post-commit file cleanup.
func (db *DB) DeletePerson(ctx context.Context, id int64) (*string, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres: beginning delete tx: %w", err)
	}
	defer tx.Rollback()

	var imageURL sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT image_url FROM missing_persons WHERE id = $1 FOR UPDATE`, id,
	).Scan(&imageURL)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("missing person", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("postgres: reading image for person %d: %w", id, err)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM missing_persons WHERE id = $1`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: deleting person %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperror.NotFound("missing person", strconv.FormatInt(id, 10))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("postgres: committing delete for person %d: %w", id, err)
	}

	if imageURL.Valid {
		return &imageURL.String, nil
	}
	return nil, nil
}
