package apitest

import (
	"net/http"
	"sort"
	"strings"

	"github.com/MrEthical07/moodjournal/api"
	"github.com/MrEthical07/moodjournal/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req api.AdminLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Username != s.opts.AdminUser || req.Password != s.opts.AdminPassword {
		writeError(w, http.StatusUnauthorized, "invalid admin credentials")
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.admins[token] = struct{}{}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: AdminCookie, Value: token, Path: "/api/admin", HttpOnly: true, SameSite: http.SameSiteStrictMode})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(AdminCookie); err == nil {
		s.mu.Lock()
		delete(s.admins, c.Value)
		s.mu.Unlock()
	}
	expireCookie(w, AdminCookie, "/api/admin")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(AdminCookie)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "admin login required")
			return
		}
		s.mu.Lock()
		_, ok := s.admins[c.Value]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "admin session expired")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]session.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, publicUser(u))
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req api.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil || req.Validate() != nil {
		writeError(w, http.StatusBadRequest, "email, name and password are required")
		return
	}
	if s.emailTaken(req.Email, 0) {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	id := s.AddUser(req.Email, req.Name, req.Password)
	s.mu.Lock()
	out := publicUser(s.users[id])
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	s.mu.Lock()
	u := s.users[id]
	s.mu.Unlock()
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, publicUser(u))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req api.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Email != "" && s.emailTaken(req.Email, id) {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	var hash []byte
	if req.Password != "" {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "hash password")
			return
		}
	}

	s.mu.Lock()
	u := s.users[id]
	if u == nil {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if req.Email != "" {
		u.email = req.Email
	}
	if req.Name != "" {
		u.name = req.Name
	}
	if hash != nil {
		u.passwordHash = hash
	}
	out := publicUser(u)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	delete(s.users, id)
	for value, rt := range s.refresh {
		if rt.userID == id {
			delete(s.refresh, value)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRefreshTokens(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]api.RefreshToken, 0, len(s.refresh))
	for _, rt := range s.refresh {
		out = append(out, api.RefreshToken{
			ID:        rt.id,
			UserID:    rt.userID,
			Value:     rt.value,
			CreatedAt: rt.createdAt,
			ExpiresAt: rt.expiresAt,
		})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteRefreshToken(w http.ResponseWriter, r *http.Request) {
	value := chi.URLParam(r, "value")
	s.mu.Lock()
	_, ok := s.refresh[value]
	delete(s.refresh, value)
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "refresh token not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) emailTaken(email string, except uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.id != except && strings.EqualFold(u.email, email) {
			return true
		}
	}
	return false
}
