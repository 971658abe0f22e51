// ABOUTME: ClientDirectory is the read-only view of registered clients that
// ABOUTME: the session manager needs; the SQLite store satisfies it

package auth

import (
	"context"

	"github.com/orbitcast/registry/internal/store"
)

// ClientDirectory is the narrow, read-only interface to the client registry.
// The implementation may block on storage I/O; the Manager never calls it
// while holding its lock.
type ClientDirectory interface {
	// FindClient looks up a client by name. When activeOnly is true,
	// deactivated clients are treated as absent. A missing client is
	// (nil, nil); a non-nil error means the directory itself failed.
	//
	// Handshake initiation requires an active client. Completion and
	// session verification look up without the active filter so that a
	// client deactivated mid-handshake can still finish against its
	// originally issued challenge.
	FindClient(ctx context.Context, name string, activeOnly bool) (*store.Client, error)

	// ClientKeys returns the client's symmetric keys keyed by cipher name.
	ClientKeys(ctx context.Context, name string) (map[string][]byte, error)
}
