package apitest

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/moodjournal/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	sidLogin   = "login"
	sidRefresh = "refresh"
)

type authResponse struct {
	ID           uint64 `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userIDContextKey struct{}

func userIDFrom(ctx context.Context) uint64 {
	id, _ := ctx.Value(userIDContextKey{}).(uint64)
	return id
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req session.LoginRequest
	if err := decodeJSON(r, &req); err != nil || req.Login == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "login and password are required")
		return
	}

	s.mu.Lock()
	var found *user
	for _, u := range s.users {
		if strings.EqualFold(strings.TrimSpace(req.Login), u.email) {
			found = u
			break
		}
	}
	s.mu.Unlock()

	if found == nil || bcrypt.CompareHashAndPassword(found.passwordHash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	s.issue(w, found, sidLogin)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if gate := s.refreshGate.Load(); gate != nil {
		select {
		case <-*gate:
		case <-r.Context().Done():
			return
		}
	}
	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	var req refreshRequest
	_ = decodeJSON(r, &req)
	value := req.RefreshToken
	if value == "" {
		if c, err := r.Cookie(RefreshCookie); err == nil {
			value = c.Value
		}
	}

	if s.failRefresh.Load() {
		writeError(w, http.StatusUnauthorized, "refresh rejected")
		return
	}

	s.mu.Lock()
	rt, ok := s.refresh[value]
	if ok {
		// Refresh tokens are single use.
		delete(s.refresh, value)
	}
	var u *user
	if ok && time.Now().Before(rt.expiresAt) {
		u = s.users[rt.userID]
	}
	s.mu.Unlock()

	if u == nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	s.issue(w, u, sidRefresh)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	_ = decodeJSON(r, &req)
	value := req.RefreshToken
	if value == "" {
		if c, err := r.Cookie(RefreshCookie); err == nil {
			value = c.Value
		}
	}

	s.mu.Lock()
	delete(s.refresh, value)
	s.mu.Unlock()

	expireCookie(w, AccessCookie, "/")
	expireCookie(w, RefreshCookie, "/api/auth")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u := s.users[userIDFrom(r.Context())]
	s.mu.Unlock()
	if u == nil {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	writeJSON(w, http.StatusOK, publicUser(u))
}

// issue creates an access token and a rotated refresh token for u, sends
// both as cookies and in the body.
func (s *Server) issue(w http.ResponseWriter, u *user, sid string) {
	access, _, err := s.signer.CreateAccess(strconv.FormatUint(u.id, 10), sid, s.gen.Load())
	if err != nil {
		s.logger.Error("sign access token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}

	now := time.Now()
	s.mu.Lock()
	s.nextRefresh++
	rt := &refreshToken{
		id:        s.nextRefresh,
		userID:    u.id,
		value:     uuid.NewString(),
		createdAt: now,
		expiresAt: now.Add(s.opts.RefreshTTL),
	}
	s.refresh[rt.value] = rt
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: AccessCookie, Value: access, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	http.SetCookie(w, &http.Cookie{Name: RefreshCookie, Value: rt.value, Path: "/api/auth", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	writeJSON(w, http.StatusOK, authResponse{
		ID:           u.id,
		Email:        u.email,
		Name:         u.name,
		Token:        access,
		RefreshToken: rt.value,
	})
}

// requireUser accepts a bearer token or the access cookie.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
				token, ok = c.Value, true
			}
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing credentials")
			return
		}

		claims, err := s.signer.ParseAccess(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid access token")
			return
		}
		if claims.Gen < s.gen.Load() {
			writeError(w, http.StatusUnauthorized, "access token expired")
			return
		}
		if claims.SID == sidRefresh && s.rejectRefreshed.Load() {
			writeError(w, http.StatusUnauthorized, "access token rejected")
			return
		}
		uid, err := claims.UserID()
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid subject")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDContextKey{}, uid)))
	})
}

func bearerToken(value string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}

func expireCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: path, MaxAge: -1, HttpOnly: true})
}

func publicUser(u *user) session.User {
	return session.User{ID: u.id, Email: u.email, Name: u.name}
}
