package apitest

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/moodjournal/api"
)

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	offset, err := strconv.Atoi(q.Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	deleted := q.Get("deleted") == "true"
	uid := userIDFrom(r.Context())

	s.mu.Lock()
	matched := make([]api.Entry, 0)
	for _, e := range s.entries {
		if e.UserID == uid && e.Deleted() == deleted {
			matched = append(matched, *e)
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	page := api.Page[api.Entry]{Items: []api.Entry{}, TotalCount: int64(len(matched))}
	if offset < len(matched) {
		end := offset + limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Items = matched[offset:end]
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req api.EditEntryRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Feeling) == "" {
		writeError(w, http.StatusBadRequest, "feeling is required")
		return
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.nextEntry++
	e := &api.Entry{
		ID:        s.nextEntry,
		Feeling:   req.Feeling,
		UserID:    userIDFrom(r.Context()),
		Note:      req.Note,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.entries[e.ID] = e
	out := *e
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	s.withEntry(w, r, func(e *api.Entry) (int, string) {
		return http.StatusOK, ""
	})
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req api.EditEntryRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Feeling) == "" {
		writeError(w, http.StatusBadRequest, "feeling is required")
		return
	}
	s.withEntry(w, r, func(e *api.Entry) (int, string) {
		if e.Deleted() {
			return http.StatusConflict, "entry is deleted"
		}
		e.Feeling, e.Note = req.Feeling, req.Note
		e.UpdatedAt = time.Now().UTC()
		return http.StatusOK, ""
	})
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	s.withEntry(w, r, func(e *api.Entry) (int, string) {
		if e.Deleted() {
			return http.StatusConflict, "entry already deleted"
		}
		now := time.Now().UTC()
		e.DeletedAt = &now
		return http.StatusOK, ""
	})
}

func (s *Server) handleRestoreEntry(w http.ResponseWriter, r *http.Request) {
	s.withEntry(w, r, func(e *api.Entry) (int, string) {
		if !e.Deleted() {
			return http.StatusConflict, "entry is not deleted"
		}
		e.DeletedAt = nil
		e.UpdatedAt = time.Now().UTC()
		return http.StatusOK, ""
	})
}

// withEntry runs fn on the caller's entry under the lock and writes the
// entry, or the error fn reports.
func (s *Server) withEntry(w http.ResponseWriter, r *http.Request, fn func(*api.Entry) (int, string)) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	s.mu.Lock()
	e, found := s.entries[id]
	if !found || e.UserID != userIDFrom(r.Context()) {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	status, msg := fn(e)
	out := *e
	s.mu.Unlock()

	if msg != "" {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, status, out)
}
