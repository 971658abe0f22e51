// ABOUTME: Content catalog CRUD with filter-driven listing
// ABOUTME: Filters mirror the query parameters of the registry list API

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const contentColumns = "id, path, size, uploaded, modified, category, expiration, serve_path, aired, alive"

// AddContent inserts a catalog entry. A missing ID is generated. Returns
// ErrDuplicate when the serve path is already taken.
func (s *SQLiteStore) AddContent(ctx context.Context, f *ContentFile) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if f.Uploaded.IsZero() {
		f.Uploaded = now
	}
	if f.Modified.IsZero() {
		f.Modified = now
	}

	query := `
		INSERT INTO content (` + contentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		f.ID,
		f.Path,
		f.Size,
		f.Uploaded.UTC().Format(time.RFC3339),
		f.Modified.UTC().Format(time.RFC3339),
		nullString(f.Category),
		nullTime(f.Expiration),
		f.ServePath,
		boolToInt(f.Aired),
		boolToInt(f.Alive),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("serve_path %q: %w", f.ServePath, ErrDuplicate)
		}
		return fmt.Errorf("inserting content: %w", err)
	}

	s.logger.Info("added content", "id", f.ID, "path", f.Path, "serve_path", f.ServePath)
	return nil
}

// GetContent retrieves a catalog entry by ID. Returns ErrNotFound when the
// entry does not exist.
func (s *SQLiteStore) GetContent(ctx context.Context, id string) (*ContentFile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM content WHERE id = ?`, id)
	f, err := scanContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying content: %w", err)
	}
	return f, nil
}

// UpdateContent rewrites a catalog entry in place, keyed by its ID.
func (s *SQLiteStore) UpdateContent(ctx context.Context, f *ContentFile) error {
	query := `
		UPDATE content
		SET path = ?, size = ?, modified = ?, category = ?, expiration = ?,
		    serve_path = ?, aired = ?, alive = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		f.Path,
		f.Size,
		f.Modified.UTC().Format(time.RFC3339),
		nullString(f.Category),
		nullTime(f.Expiration),
		f.ServePath,
		boolToInt(f.Aired),
		boolToInt(f.Alive),
		f.ID,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("serve_path %q: %w", f.ServePath, ErrDuplicate)
		}
		return fmt.Errorf("updating content: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("content %q: %w", f.ID, ErrNotFound)
	}
	return nil
}

// DeleteContent removes a catalog entry by ID.
func (s *SQLiteStore) DeleteContent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM content WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting content: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("content %q: %w", id, ErrNotFound)
	}
	return nil
}

// ListContent returns catalog entries matching the filter, most recently
// modified first.
func (s *SQLiteStore) ListContent(ctx context.Context, filter ContentFilter) ([]*ContentFile, error) {
	var clauses []string
	var args []any

	addIn := func(col string, vals []string) {
		if len(vals) == 0 {
			return
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", ")
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", col, placeholders))
		for _, v := range vals {
			args = append(args, v)
		}
	}

	addIn("id", filter.IDs)
	addIn("path", filter.Paths)
	addIn("serve_path", filter.ServePaths)

	if filter.Alive != nil {
		clauses = append(clauses, "alive = ?")
		args = append(args, boolToInt(*filter.Alive))
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "modified >= ?")
		args = append(args, filter.Since.UTC().Format(time.RFC3339))
	}

	query := `SELECT ` + contentColumns + ` FROM content`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY modified DESC"
	if filter.Count > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Count)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing content: %w", err)
	}
	defer rows.Close()

	var files []*ContentFile
	for rows.Next() {
		f, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning content: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func scanContent(row rowScanner) (*ContentFile, error) {
	var f ContentFile
	var uploaded, modified string
	var category, expiration sql.NullString
	var aired, alive int

	err := row.Scan(&f.ID, &f.Path, &f.Size, &uploaded, &modified,
		&category, &expiration, &f.ServePath, &aired, &alive)
	if err != nil {
		return nil, err
	}

	f.Category = category.String
	f.Aired = aired != 0
	f.Alive = alive != 0

	if f.Uploaded, err = parseTime(uploaded); err != nil {
		return nil, fmt.Errorf("parsing uploaded: %w", err)
	}
	if f.Modified, err = parseTime(modified); err != nil {
		return nil, fmt.Errorf("parsing modified: %w", err)
	}
	if expiration.Valid {
		t, err := parseTime(expiration.String)
		if err != nil {
			return nil, fmt.Errorf("parsing expiration: %w", err)
		}
		f.Expiration = &t
	}
	return &f, nil
}
