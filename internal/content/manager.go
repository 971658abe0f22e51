// ABOUTME: Content catalog manager validating file metadata against the
// ABOUTME: registry root and recording client actions in the history log

package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/orbitcast/registry/internal/store"
)

// Catalog manager errors.
var (
	ErrOutsideRoot        = errors.New("path does not fall under the registry root")
	ErrNoSuchFile         = errors.New("no file at path")
	ErrDuplicateServePath = errors.New("file at serve_path already exists")
	ErrInvalidPath        = errors.New("invalid path")
)

// Catalog is the slice of the store the manager needs.
type Catalog interface {
	AddContent(ctx context.Context, f *store.ContentFile) error
	GetContent(ctx context.Context, id string) (*store.ContentFile, error)
	UpdateContent(ctx context.Context, f *store.ContentFile) error
	DeleteContent(ctx context.Context, id string) error
	ListContent(ctx context.Context, filter store.ContentFilter) ([]*store.ContentFile, error)
	AddHistory(ctx context.Context, h *store.HistoryEntry) error
}

// AddParams carries the caller-supplied metadata for a new catalog entry.
type AddParams struct {
	ServePath  string
	Category   string
	Expiration *time.Time
}

// UpdateParams carries the fields an update may change. Nil pointers leave
// the stored value untouched.
type UpdateParams struct {
	Path       *string
	ServePath  *string
	Category   *string
	Expiration *time.Time
	Aired      *bool
	Alive      *bool
}

// Manager owns catalog mutations. Every file must live under the configured
// root directory, and every mutation is attributed to an actor (the client
// name from the authenticated session) in the history log.
type Manager struct {
	root    string
	catalog Catalog
	logger  *slog.Logger
}

// NewManager creates a catalog manager rooted at rootPath.
func NewManager(rootPath string, catalog Catalog) *Manager {
	return &Manager{
		root:    filepath.Clean(rootPath),
		catalog: catalog,
		logger:  slog.Default().With("component", "content"),
	}
}

// Root returns the registry root directory.
func (m *Manager) Root() string {
	return m.root
}

// List returns catalog entries matching the filter.
func (m *Manager) List(ctx context.Context, filter store.ContentFilter) ([]*store.ContentFile, error) {
	return m.catalog.ListContent(ctx, filter)
}

// Get returns a catalog entry by ID.
func (m *Manager) Get(ctx context.Context, id string) (*store.ContentFile, error) {
	return m.catalog.GetContent(ctx, id)
}

// Add catalogs the file at path under params.ServePath. The path must name
// an existing regular file under the registry root, and the serve path must
// be unused.
func (m *Manager) Add(ctx context.Context, actor, path string, params AddParams) (*store.ContentFile, error) {
	if params.ServePath == "" {
		return nil, fmt.Errorf("%w: serve_path must be specified", ErrInvalidPath)
	}

	abs, size, err := m.checkPath(path)
	if err != nil {
		return nil, err
	}

	existing, err := m.catalog.ListContent(ctx, store.ContentFilter{ServePaths: []string{params.ServePath}, Count: 1})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateServePath, params.ServePath)
	}

	now := time.Now().UTC()
	f := &store.ContentFile{
		Path:       abs,
		Size:       size,
		Uploaded:   now,
		Modified:   now,
		Category:   params.Category,
		Expiration: params.Expiration,
		ServePath:  params.ServePath,
		Alive:      true,
	}
	if err := m.catalog.AddContent(ctx, f); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateServePath, params.ServePath)
		}
		return nil, err
	}

	m.recordHistory(ctx, actor, f.ID, "add", params.ServePath)
	return f, nil
}

// Update applies params to an existing catalog entry. A changed path is
// re-validated against the root and the size restated from disk.
func (m *Manager) Update(ctx context.Context, actor, id string, params UpdateParams) (*store.ContentFile, error) {
	f, err := m.catalog.GetContent(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Path != nil {
		abs, size, err := m.checkPath(*params.Path)
		if err != nil {
			return nil, err
		}
		f.Path = abs
		f.Size = size
	}
	if params.ServePath != nil {
		f.ServePath = *params.ServePath
	}
	if params.Category != nil {
		f.Category = *params.Category
	}
	if params.Expiration != nil {
		f.Expiration = params.Expiration
	}
	if params.Aired != nil {
		f.Aired = *params.Aired
	}
	if params.Alive != nil {
		f.Alive = *params.Alive
	}
	f.Modified = time.Now().UTC()

	if err := m.catalog.UpdateContent(ctx, f); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateServePath, f.ServePath)
		}
		return nil, err
	}

	m.recordHistory(ctx, actor, f.ID, "update", "")
	return f, nil
}

// Delete removes a catalog entry. The file on disk is left alone; the
// registry only owns metadata.
func (m *Manager) Delete(ctx context.Context, actor, id string) error {
	if err := m.catalog.DeleteContent(ctx, id); err != nil {
		return err
	}
	m.recordHistory(ctx, actor, id, "delete", "")
	return nil
}

// checkPath validates that path names an existing regular file under the
// registry root and returns its absolute form and size.
func (m *Manager) checkPath(path string) (string, int64, error) {
	if path == "" {
		return "", 0, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	rel, err := filepath.Rel(m.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", 0, fmt.Errorf("%w: %s is outside %s", ErrOutsideRoot, abs, m.root)
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return "", 0, fmt.Errorf("%w: %s", ErrNoSuchFile, abs)
	}
	return abs, info.Size(), nil
}

// recordHistory appends to the history log. Failures are logged, not
// propagated: the catalog mutation already happened.
func (m *Manager) recordHistory(ctx context.Context, actor, fileID, action, params string) {
	err := m.catalog.AddHistory(ctx, &store.HistoryEntry{
		FileID:     fileID,
		ClientName: actor,
		Action:     action,
		Params:     params,
	})
	if err != nil {
		m.logger.Warn("failed to record history", "file_id", fileID, "action", action, "error", err)
	}
}
