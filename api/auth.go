package api

import (
	"context"
	"net/http"

	"github.com/MrEthical07/moodjournal/jwt"
	"github.com/MrEthical07/moodjournal/session"
)

// AuthEndpoints are paths relative to the client base URL.
type AuthEndpoints struct {
	Login   string
	Logout  string
	Refresh string
	Me      string
}

// DefaultAuthEndpoints returns the standard auth routes.
func DefaultAuthEndpoints() AuthEndpoints {
	return AuthEndpoints{
		Login:   "/auth/login",
		Logout:  "/auth/logout",
		Refresh: "/auth/refresh",
		Me:      "/auth/me",
	}
}

// AuthAPI implements session.Backend over HTTP.
type AuthAPI struct {
	c         *Client
	endpoints AuthEndpoints
	// bodyTokens sends the refresh token in request bodies. Cookie-based
	// sessions leave it off and rely on the jar.
	bodyTokens bool
}

var _ session.Backend = (*AuthAPI)(nil)

// NewAuthAPI returns the session backend for c. With bodyTokens the refresh
// token travels in request bodies; otherwise the server cookies carry it.
func NewAuthAPI(c *Client, endpoints AuthEndpoints, bodyTokens bool) *AuthAPI {
	def := DefaultAuthEndpoints()
	if endpoints.Login == "" {
		endpoints.Login = def.Login
	}
	if endpoints.Logout == "" {
		endpoints.Logout = def.Logout
	}
	if endpoints.Refresh == "" {
		endpoints.Refresh = def.Refresh
	}
	if endpoints.Me == "" {
		endpoints.Me = def.Me
	}
	return &AuthAPI{c: c, endpoints: endpoints, bodyTokens: bodyTokens}
}

// Endpoints returns the resolved auth routes.
func (a *AuthAPI) Endpoints() AuthEndpoints {
	return a.endpoints
}

type authResponse struct {
	ID           uint64 `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *AuthAPI) Login(ctx context.Context, req session.LoginRequest) (session.User, session.Credentials, error) {
	var out authResponse
	if err := a.c.DoJSON(ctx, "login", http.MethodPost, a.endpoints.Login, nil, req, &out); err != nil {
		return session.User{}, session.Credentials{}, err
	}
	return out.user(), out.credentials(), nil
}

func (a *AuthAPI) Logout(ctx context.Context, c session.Credentials) error {
	var body any = struct{}{}
	if a.bodyTokens && c.RefreshToken != "" {
		body = refreshRequest{RefreshToken: c.RefreshToken}
	}
	return a.c.DoJSON(ctx, "logout", http.MethodPost, a.endpoints.Logout, nil, body, nil)
}

func (a *AuthAPI) Refresh(ctx context.Context, c session.Credentials) (session.User, session.Credentials, error) {
	var body any = struct{}{}
	if a.bodyTokens {
		body = refreshRequest{RefreshToken: c.RefreshToken}
	}

	var out authResponse
	if err := a.c.DoJSON(ctx, "refresh", http.MethodPost, a.endpoints.Refresh, nil, body, &out); err != nil {
		return session.User{}, session.Credentials{}, err
	}
	return out.user(), out.credentials(), nil
}

func (a *AuthAPI) Me(ctx context.Context) (session.User, error) {
	var out session.User
	if err := a.c.DoJSON(ctx, "me", http.MethodGet, a.endpoints.Me, nil, nil, &out); err != nil {
		return session.User{}, err
	}
	return out, nil
}

func (r authResponse) user() session.User {
	return session.User{ID: r.ID, Email: r.Email, Name: r.Name}
}

func (r authResponse) credentials() session.Credentials {
	creds := session.Credentials{
		AccessToken:  r.Token,
		RefreshToken: r.RefreshToken,
		UserID:       r.ID,
	}
	if r.Token == "" {
		return creds
	}
	if info, err := jwt.Inspect(r.Token); err == nil {
		if !info.IssuedAt.IsZero() {
			creds.IssuedAt = info.IssuedAt.Unix()
		}
		if !info.ExpiresAt.IsZero() {
			creds.ExpiresAt = info.ExpiresAt.Unix()
		}
	}
	return creds
}
