// ABOUTME: Append-only history of client actions on content files

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AddHistory appends a history entry. A missing ID is generated.
func (s *SQLiteStore) AddHistory(ctx context.Context, h *HistoryEntry) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.Created.IsZero() {
		h.Created = time.Now().UTC()
	}

	query := `
		INSERT INTO history (id, file_id, client_name, action, action_params, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		h.ID,
		h.FileID,
		h.ClientName,
		h.Action,
		nullString(h.Params),
		h.Created.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting history: %w", err)
	}
	return nil
}

// ListHistory returns a file's history entries, newest first.
func (s *SQLiteStore) ListHistory(ctx context.Context, fileID string, limit int) ([]*HistoryEntry, error) {
	query := `
		SELECT id, file_id, client_name, action, action_params, created_at
		FROM history
		WHERE file_id = ?
		ORDER BY created_at DESC
	`
	args := []any{fileID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		var params sql.NullString
		var createdAt string
		if err := rows.Scan(&h.ID, &h.FileID, &h.ClientName, &h.Action, &params, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		h.Params = params.String
		if h.Created, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		entries = append(entries, &h)
	}
	return entries, rows.Err()
}
