// ABOUTME: Client directory operations: registration, lookup, and key management
// ABOUTME: Backs the auth package's ClientDirectory interface

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateClient registers a new client. Returns ErrDuplicate if a client with
// the same name already exists.
func (s *SQLiteStore) CreateClient(ctx context.Context, c *Client) error {
	if c.Created.IsZero() {
		c.Created = time.Now().UTC()
	}

	query := `
		INSERT INTO clients (name, description, maintainer, email, created_at, active)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.Name,
		c.Description,
		c.Maintainer,
		nullString(c.Email),
		c.Created.UTC().Format(time.RFC3339),
		boolToInt(c.Active),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("client %q: %w", c.Name, ErrDuplicate)
		}
		return fmt.Errorf("inserting client: %w", err)
	}

	s.logger.Debug("created client", "name", c.Name, "active", c.Active)
	return nil
}

// FindClient looks up a client by name. A missing client (or, when activeOnly
// is set, an inactive one) is reported as (nil, nil).
func (s *SQLiteStore) FindClient(ctx context.Context, name string, activeOnly bool) (*Client, error) {
	query := `
		SELECT name, description, maintainer, email, created_at, active
		FROM clients
		WHERE name = ?
	`
	if activeOnly {
		query += " AND active = 1"
	}

	c, err := scanClient(s.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying client: %w", err)
	}
	return c, nil
}

// ListClients returns all registered clients ordered by name.
func (s *SQLiteStore) ListClients(ctx context.Context) ([]*Client, error) {
	query := `
		SELECT name, description, maintainer, email, created_at, active
		FROM clients
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing clients: %w", err)
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// SetClientActive flips the active flag on a client. Returns ErrNotFound if
// the client does not exist.
func (s *SQLiteStore) SetClientActive(ctx context.Context, name string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE clients SET active = ? WHERE name = ?`, boolToInt(active), name)
	if err != nil {
		return fmt.Errorf("updating client: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("client %q: %w", name, ErrNotFound)
	}
	return nil
}

// UpsertClientKey registers a key for (client, cipher), replacing any
// previous key for the same cipher. The client must exist.
func (s *SQLiteStore) UpsertClientKey(ctx context.Context, clientName, cipher string, key []byte) error {
	client, err := s.FindClient(ctx, clientName, false)
	if err != nil {
		return err
	}
	if client == nil {
		return fmt.Errorf("client %q: %w", clientName, ErrNotFound)
	}

	query := `
		INSERT INTO client_keys (client_name, cipher, key, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (client_name, cipher) DO UPDATE SET key = excluded.key
	`
	_, err = s.db.ExecContext(ctx, query, clientName, cipher, key, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting client key: %w", err)
	}

	s.logger.Debug("registered client key", "client", clientName, "cipher", cipher)
	return nil
}

// ClientKeys returns the client's keys keyed by cipher name. A client with
// no keys yields an empty map.
func (s *SQLiteStore) ClientKeys(ctx context.Context, clientName string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cipher, key FROM client_keys WHERE client_name = ?`, clientName)
	if err != nil {
		return nil, fmt.Errorf("querying client keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string][]byte)
	for rows.Next() {
		var cipher string
		var key []byte
		if err := rows.Scan(&cipher, &key); err != nil {
			return nil, fmt.Errorf("scanning client key: %w", err)
		}
		keys[cipher] = key
	}
	return keys, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*Client, error) {
	var c Client
	var email sql.NullString
	var createdAt string
	var active int

	if err := row.Scan(&c.Name, &c.Description, &c.Maintainer, &email, &createdAt, &active); err != nil {
		return nil, err
	}

	c.Email = email.String
	c.Active = active != 0
	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	c.Created = created
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
