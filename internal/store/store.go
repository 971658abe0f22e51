// ABOUTME: Data types and errors for registry persistence
// ABOUTME: Clients, client keys, content files, and history entries

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert would violate a uniqueness
// constraint, such as a client name or a content serve path.
var ErrDuplicate = errors.New("already exists")

// Client is a registered consumer of the registry.
type Client struct {
	Name        string
	Description string
	Maintainer  string
	Email       string
	Created     time.Time
	Active      bool
}

// ClientKey is a symmetric key registered for a client under a cipher name.
// A client has at most one key per cipher.
type ClientKey struct {
	ClientName string
	Cipher     string
	Key        []byte
	Created    time.Time
}

// ContentFile is a catalog entry describing a file the registry serves.
type ContentFile struct {
	ID         string
	Path       string // absolute path under the registry root
	Size       int64
	Uploaded   time.Time
	Modified   time.Time
	Category   string
	Expiration *time.Time // nil when the entry never expires
	ServePath  string     // path the receiver writes the file to
	Aired      bool
	Alive      bool
}

// HistoryEntry records an action a client performed on a content file.
type HistoryEntry struct {
	ID         string
	FileID     string
	ClientName string
	Action     string
	Params     string
	Created    time.Time
}

// ContentFilter narrows ListContent results. Zero-valued fields are ignored.
type ContentFilter struct {
	IDs        []string
	Paths      []string
	ServePaths []string
	Alive      *bool
	Since      time.Time // matches entries modified at or after this time
	Count      int       // limit; 0 means no limit
}
