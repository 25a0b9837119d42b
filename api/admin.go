package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/moodjournal/session"
)

// AdminLoginRequest is the body of the admin login call.
type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateUserRequest is the body of an admin user creation. All fields are required.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (r CreateUserRequest) Validate() error {
	switch {
	case r.Email == "":
		return validationError("email is required")
	case r.Name == "":
		return validationError("name is required")
	case r.Password == "":
		return validationError("password is required")
	}
	return nil
}

// UpdateUserRequest changes only the non-empty fields.
type UpdateUserRequest struct {
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password,omitempty"`
}

// RefreshToken is an issued refresh token as listed by the admin API.
type RefreshToken struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AdminAPI drives the admin console endpoints. The admin session is cookie
// based and independent of the user session; IsLoggedIn tracks it locally.
type AdminAPI struct {
	c        *Client
	loggedIn atomic.Bool
}

func NewAdminAPI(c *Client) *AdminAPI {
	return &AdminAPI{c: c}
}

func (a *AdminAPI) IsLoggedIn() bool {
	return a.loggedIn.Load()
}

func (a *AdminAPI) Login(ctx context.Context, req AdminLoginRequest) error {
	if err := a.c.DoJSON(ctx, "admin login", http.MethodPost, "/admin/login", nil, req, nil); err != nil {
		return err
	}
	a.loggedIn.Store(true)
	return nil
}

// Logout ends the admin session. The local flag is cleared even when the
// call fails.
func (a *AdminAPI) Logout(ctx context.Context) error {
	err := a.c.DoJSON(ctx, "admin logout", http.MethodPost, "/admin/logout", nil, struct{}{}, nil)
	a.loggedIn.Store(false)
	return err
}

func (a *AdminAPI) Users(ctx context.Context) ([]session.User, error) {
	var users []session.User
	if err := a.c.DoJSON(ctx, "list users", http.MethodGet, "/admin/users", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (a *AdminAPI) User(ctx context.Context, id uint64) (session.User, error) {
	var u session.User
	err := a.c.DoJSON(ctx, "get user", http.MethodGet, userPath(id), nil, nil, &u)
	return u, err
}

func (a *AdminAPI) CreateUser(ctx context.Context, req CreateUserRequest) (session.User, error) {
	if err := req.Validate(); err != nil {
		return session.User{}, err
	}
	var u session.User
	err := a.c.DoJSON(ctx, "create user", http.MethodPost, "/admin/users", nil, req, &u)
	return u, err
}

func (a *AdminAPI) UpdateUser(ctx context.Context, id uint64, req UpdateUserRequest) (session.User, error) {
	var u session.User
	err := a.c.DoJSON(ctx, "update user", http.MethodPut, userPath(id), nil, req, &u)
	return u, err
}

func (a *AdminAPI) DeleteUser(ctx context.Context, id uint64) error {
	return a.c.DoJSON(ctx, "delete user", http.MethodDelete, userPath(id), nil, nil, nil)
}

func (a *AdminAPI) RefreshTokens(ctx context.Context) ([]RefreshToken, error) {
	var tokens []RefreshToken
	if err := a.c.DoJSON(ctx, "list refresh tokens", http.MethodGet, "/admin/refresh-tokens", nil, nil, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (a *AdminAPI) DeleteRefreshToken(ctx context.Context, value string) error {
	if value == "" {
		return validationError("token value is required")
	}
	return a.c.DoJSON(ctx, "delete refresh token", http.MethodDelete, "/admin/refresh-tokens/"+url.PathEscape(value), nil, nil, nil)
}

func userPath(id uint64) string {
	return "/admin/users/" + strconv.FormatUint(id, 10)
}
