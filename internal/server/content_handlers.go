// ABOUTME: Content catalog routes: list, add, download, update, delete
// ABOUTME: All behind the session middleware; filters come from query params

package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/orbitcast/registry/internal/content"
	"github.com/orbitcast/registry/internal/store"
)

// fileBody is the JSON rendering of a catalog entry.
type fileBody struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	Uploaded   int64  `json:"uploaded"`
	Modified   int64  `json:"modified"`
	Category   string `json:"category,omitempty"`
	Expiration *int64 `json:"expiration,omitempty"`
	ServePath  string `json:"serve_path"`
	Aired      bool   `json:"aired"`
	Alive      bool   `json:"alive"`
}

type listEnvelope struct {
	Success bool       `json:"success"`
	Results []fileBody `json:"results"`
}

// handleContent dispatches /registry/ and /registry/{id} by method and path.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/registry/"), "/")

	switch {
	case id == "" && r.Method == http.MethodGet:
		s.handleListFiles(w, r)
	case id == "" && r.Method == http.MethodPost:
		s.handleAddFile(w, r)
	case id != "" && r.Method == http.MethodGet:
		s.handleGetFile(w, r, id)
	case id != "" && r.Method == http.MethodPut:
		s.handleUpdateFile(w, r, id)
	case id != "" && r.Method == http.MethodDelete:
		s.handleDeleteFile(w, r, id)
	default:
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	files, err := s.catalog.List(r.Context(), filter)
	if err != nil {
		s.writeContentError(w, err)
		return
	}

	results := make([]fileBody, 0, len(files))
	for _, f := range files {
		results = append(results, toFileBody(f))
	}
	writeJSON(w, http.StatusOK, listEnvelope{Success: true, Results: results})
}

func (s *Server) handleAddFile(w http.ResponseWriter, r *http.Request) {
	path := r.FormValue("path")
	servePath := r.FormValue("serve_path")
	if path == "" || servePath == "" {
		writeFailure(w, http.StatusBadRequest, "path and serve_path must be specified")
		return
	}

	params := content.AddParams{
		ServePath: servePath,
		Category:  r.FormValue("category"),
	}
	if exp := r.FormValue("expiration"); exp != "" {
		t, err := parseUnix(exp)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "expiration must be a unix timestamp")
			return
		}
		params.Expiration = &t
	}

	f, err := s.catalog.Add(r.Context(), r.FormValue("client_name"), path, params)
	if err != nil {
		s.writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope{Success: true, Results: []fileBody{toFileBody(f)}})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request, id string) {
	f, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		s.writeContentError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(f.Path)+`"`)
	http.ServeFile(w, r, f.Path)
}

func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request, id string) {
	var params content.UpdateParams

	if v := r.FormValue("path"); v != "" {
		params.Path = &v
	}
	if v := r.FormValue("serve_path"); v != "" {
		params.ServePath = &v
	}
	if v := r.FormValue("category"); v != "" {
		params.Category = &v
	}
	if v := r.FormValue("expiration"); v != "" {
		t, err := parseUnix(v)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "expiration must be a unix timestamp")
			return
		}
		params.Expiration = &t
	}
	if v := r.FormValue("aired"); v != "" {
		b := parseBool(v)
		params.Aired = &b
	}
	if v := r.FormValue("alive"); v != "" {
		b := parseBool(v)
		params.Alive = &b
	}

	f, err := s.catalog.Update(r.Context(), r.FormValue("client_name"), id, params)
	if err != nil {
		s.writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope{Success: true, Results: []fileBody{toFileBody(f)}})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.catalog.Delete(r.Context(), r.FormValue("client_name"), id); err != nil {
		s.writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) writeContentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeFailure(w, http.StatusNotFound, err.Error())
	case errors.Is(err, content.ErrOutsideRoot),
		errors.Is(err, content.ErrNoSuchFile),
		errors.Is(err, content.ErrDuplicateServePath),
		errors.Is(err, content.ErrInvalidPath):
		writeFailure(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("content operation failed", "error", err)
		writeFailure(w, http.StatusInternalServerError, "Unknown Error")
	}
}

// filterFromQuery builds a ContentFilter from list query parameters.
// Multi-value parameters accept comma-separated lists.
func filterFromQuery(r *http.Request) (store.ContentFilter, error) {
	q := r.URL.Query()
	var filter store.ContentFilter

	splitMulti := func(single, multi string) []string {
		if v := q.Get(multi); v != "" {
			parts := strings.Split(v, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return parts
		}
		if v := q.Get(single); v != "" {
			return []string{v}
		}
		return nil
	}

	filter.IDs = splitMulti("id", "ids")
	filter.Paths = splitMulti("path", "paths")
	filter.ServePaths = splitMulti("serve_path", "serve_paths")

	if v := q.Get("alive"); v != "" {
		b := parseBool(v)
		filter.Alive = &b
	}
	if v := q.Get("since"); v != "" {
		t, err := parseUnix(v)
		if err != nil {
			return filter, errors.New("since must be a unix timestamp")
		}
		filter.Since = t
	}
	if v := q.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("count must be a non-negative integer")
		}
		filter.Count = n
	}
	return filter, nil
}

// parseBool accepts the truthy spellings the legacy API did.
func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func parseUnix(v string) (time.Time, error) {
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0).UTC(), nil
}

func toFileBody(f *store.ContentFile) fileBody {
	body := fileBody{
		ID:        f.ID,
		Path:      f.Path,
		Size:      f.Size,
		Uploaded:  f.Uploaded.Unix(),
		Modified:  f.Modified.Unix(),
		Category:  f.Category,
		ServePath: f.ServePath,
		Aired:     f.Aired,
		Alive:     f.Alive,
	}
	if f.Expiration != nil {
		exp := f.Expiration.Unix()
		body.Expiration = &exp
	}
	return body
}
