package sqlite

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

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanPerson reads one row in personColumns order, translating the NULLable
// columns (dob, description, image_url) into their Go zero/nil forms.
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

// collectPersons drains rows into a slice. Always closes via the caller's
// defer; checks rows.Err() for mid-iteration failures.
func collectPersons(rows *sql.Rows) ([]model.Person, error) {
	persons := make([]model.Person, 0, 16)
	for rows.Next() {
		var p model.Person
		if err := scanPerson(rows, &p); err != nil {
			return nil, fmt.Errorf("sqlite: scanning person row: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating persons: %w", err)
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

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO missing_persons
		 (name, dob, category, last_known_location, contact_info, description, image_url, status, reported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name,
		nullable(p.DOB),
		p.Category,
		p.LastKnownLocation,
		p.ContactInfo,
		nullable(p.Description),
		imageURL,
		p.Status,
		p.ReportedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating person: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new person id: %w", err)
	}
	p.ID = id

	return nil
}

// ListPersons returns every case, newest first.
func (db *DB) ListPersons(ctx context.Context) ([]model.Person, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+personColumns+` FROM missing_persons ORDER BY reported_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing persons: %w", err)
	}
	defer rows.Close()

	return collectPersons(rows)
}

// SearchPersons matches query as a substring of name, description, or
// last-known location. SQLite's LIKE is case-insensitive for ASCII, which
// gives the case-insensitive containment the search contract asks for.
// An empty query degenerates to LIKE '%%' on name and matches every row.
func (db *DB) SearchPersons(ctx context.Context, query, category string) ([]model.Person, error) {
	pattern := "%" + query + "%"

	sqlStr := `SELECT ` + personColumns + ` FROM missing_persons
		WHERE (name LIKE ? OR description LIKE ? OR last_known_location LIKE ?)`
	args := []any{pattern, pattern, pattern}

	if category != "" {
		sqlStr += ` AND category = ?`
		args = append(args, category)
	}
	sqlStr += ` ORDER BY reported_at DESC`

	rows, err := db.conn.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching persons: %w", err)
	}
	defer rows.Close()

	return collectPersons(rows)
}

// ListFoundPersons returns up to limit found cases, newest first.
func (db *DB) ListFoundPersons(ctx context.Context, limit int) ([]model.Person, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+personColumns+` FROM missing_persons
		 WHERE status = ?
		 ORDER BY reported_at DESC
		 LIMIT ?`,
		model.StatusFound, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing found persons: %w", err)
	}
	defer rows.Close()

	return collectPersons(rows)
}

// MarkPersonFound sets status to "found". The update is unconditional, so
// marking an already-found case succeeds again without error.
func (db *DB) MarkPersonFound(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE missing_persons SET status = ? WHERE id = ?`,
		model.StatusFound, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking person %d found: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("missing person", strconv.FormatInt(id, 10))
	}

	return nil
}

// UpdatePerson overwrites the editable detail fields. Status and image
// reference are deliberately not part of the UPDATE — they have their own
// operations.
func (db *DB) UpdatePerson(ctx context.Context, p *model.Person) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE missing_persons
		 SET name = ?, dob = ?, category = ?, last_known_location = ?, contact_info = ?, description = ?
		 WHERE id = ?`,
		p.Name,
		nullable(p.DOB),
		p.Category,
		p.LastKnownLocation,
		p.ContactInfo,
		nullable(p.Description),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating person %d: %w", p.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("missing person", strconv.FormatInt(p.ID, 10))
	}

	return nil
}

// ReplacePersonImage swaps the stored image reference inside one
// transaction: read the old reference, write the new one, commit. The old
// reference is returned so the caller can remove the now-orphaned file —
// after commit, because file cleanup is best-effort and must not decide the
// transaction's fate.
func (db *DB) ReplacePersonImage(ctx context.Context, id int64, newImageURL string) (*string, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning image replace tx: %w", err)
	}
	// Rollback after a successful Commit is a harmless no-op.
	defer tx.Rollback()

	var old sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT image_url FROM missing_persons WHERE id = ?`, id,
	).Scan(&old)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("missing person", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: reading old image for person %d: %w", id, err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE missing_persons SET image_url = ? WHERE id = ?`,
		newImageURL, id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating image for person %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperror.NotFound("missing person", strconv.FormatInt(id, 10))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing image replace for person %d: %w", id, err)
	}

	if old.Valid {
		return &old.String, nil
	}
	return nil, nil
}

// DeletePerson removes the case inside one transaction and returns its image
// reference (nil if it had none) for post-commit file cleanup.
func (db *DB) DeletePerson(ctx context.Context, id int64) (*string, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning delete tx: %w", err)
	}
	defer tx.Rollback()

	var imageURL sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT image_url FROM missing_persons WHERE id = ?`, id,
	).Scan(&imageURL)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("missing person", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: reading image for person %d: %w", id, err)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM missing_persons WHERE id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: deleting person %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperror.NotFound("missing person", strconv.FormatInt(id, 10))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing delete for person %d: %w", id, err)
	}

	if imageURL.Valid {
		return &imageURL.String, nil
	}
	return nil, nil
}
