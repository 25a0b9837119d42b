package apitest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"testing"
)

func do(t *testing.T, c *http.Client, method, url, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func TestLoginRefreshRotation(t *testing.T) {
	s := New(Options{})
	defer s.Close()
	s.AddUser("a@example.com", "Ann", "secret")
	c := s.Client()
	base := s.URL() + "/api"

	if code := do(t, c, http.MethodPost, base+"/auth/login", "", map[string]string{"login": "a@example.com", "password": "nope"}, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", code)
	}

	var login authResponse
	if code := do(t, c, http.MethodPost, base+"/auth/login", "", map[string]string{"login": "A@example.com", "password": "secret"}, &login); code != http.StatusOK {
		t.Fatalf("login: %d", code)
	}
	if code := do(t, c, http.MethodGet, base+"/auth/me", login.Token, nil, nil); code != http.StatusOK {
		t.Fatalf("me: %d", code)
	}

	s.ExpireAccessTokens()
	if code := do(t, c, http.MethodGet, base+"/auth/me", login.Token, nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected expired token to fail, got %d", code)
	}

	var renewed authResponse
	if code := do(t, c, http.MethodPost, base+"/auth/refresh", "", refreshRequest{RefreshToken: login.RefreshToken}, &renewed); code != http.StatusOK {
		t.Fatalf("refresh: %d", code)
	}
	if renewed.RefreshToken == login.RefreshToken {
		t.Fatal("refresh token must rotate")
	}
	if code := do(t, c, http.MethodPost, base+"/auth/refresh", "", refreshRequest{RefreshToken: login.RefreshToken}, nil); code != http.StatusUnauthorized {
		t.Fatalf("reused refresh token must fail, got %d", code)
	}
	if code := do(t, c, http.MethodGet, base+"/auth/me", renewed.Token, nil, nil); code != http.StatusOK {
		t.Fatalf("renewed token must work, got %d", code)
	}

	s.RejectRefreshed(true)
	if code := do(t, c, http.MethodGet, base+"/auth/me", renewed.Token, nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected refreshed token to be rejected, got %d", code)
	}

	if got := s.Calls("/api/auth/refresh"); got != 2 {
		t.Fatalf("expected 2 refresh calls, got %d", got)
	}
}

func TestFailRefresh(t *testing.T) {
	s := New(Options{})
	defer s.Close()
	s.AddUser("a@example.com", "Ann", "secret")
	c := s.Client()
	base := s.URL() + "/api"

	var login authResponse
	do(t, c, http.MethodPost, base+"/auth/login", "", map[string]string{"login": "a@example.com", "password": "secret"}, &login)
	s.FailRefresh(true)
	if code := do(t, c, http.MethodPost, base+"/auth/refresh", "", refreshRequest{RefreshToken: login.RefreshToken}, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected refresh failure, got %d", code)
	}
}

func TestEntriesLifecycle(t *testing.T) {
	s := New(Options{})
	defer s.Close()
	s.AddUser("a@example.com", "Ann", "secret")
	s.AddUser("b@example.com", "Bob", "secret")
	c := s.Client()
	base := s.URL() + "/api"

	var ann, bob authResponse
	do(t, c, http.MethodPost, base+"/auth/login", "", map[string]string{"login": "a@example.com", "password": "secret"}, &ann)
	do(t, c, http.MethodPost, base+"/auth/login", "", map[string]string{"login": "b@example.com", "password": "secret"}, &bob)

	if code := do(t, c, http.MethodPost, base+"/mood/entries", ann.Token, map[string]string{"note": "x"}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 without feeling, got %d", code)
	}
	var created struct {
		ID uint64 `json:"id"`
	}
	for _, f := range []string{"calm", "happy", "tired"} {
		if code := do(t, c, http.MethodPost, base+"/mood/entries", ann.Token, map[string]string{"feeling": f}, &created); code != http.StatusCreated {
			t.Fatalf("create: %d", code)
		}
	}

	var page struct {
		Items []struct {
			ID      uint64 `json:"id"`
			Feeling string `json:"feeling"`
		} `json:"items"`
		TotalCount int64 `json:"total_count"`
	}
	do(t, c, http.MethodGet, base+"/mood/entries?limit=2&offset=0&deleted=false", ann.Token, nil, &page)
	if page.TotalCount != 3 || len(page.Items) != 2 || page.Items[0].Feeling != "tired" {
		t.Fatalf("unexpected page %+v", page)
	}

	entryURL := base + "/mood/entries/" + "3"
	if code := do(t, c, http.MethodGet, entryURL, bob.Token, nil, nil); code != http.StatusNotFound {
		t.Fatalf("other users must not see entries, got %d", code)
	}
	if code := do(t, c, http.MethodDelete, entryURL, ann.Token, nil, nil); code != http.StatusOK {
		t.Fatalf("delete: %d", code)
	}
	if code := do(t, c, http.MethodDelete, entryURL, ann.Token, nil, nil); code != http.StatusConflict {
		t.Fatalf("double delete: %d", code)
	}
	do(t, c, http.MethodGet, base+"/mood/entries?deleted=true", ann.Token, nil, &page)
	if page.TotalCount != 1 {
		t.Fatalf("expected one deleted entry, got %d", page.TotalCount)
	}
	if code := do(t, c, http.MethodPost, entryURL+"/restore", ann.Token, struct{}{}, nil); code != http.StatusOK {
		t.Fatalf("restore: %d", code)
	}
}

func TestAdminRequiresCookie(t *testing.T) {
	s := New(Options{AdminUser: "root", AdminPassword: "toor"})
	defer s.Close()
	s.AddUser("a@example.com", "Ann", "secret")

	jar, _ := cookiejar.New(nil)
	c := s.Client()
	c.Jar = jar
	base := s.URL() + "/api"

	if code := do(t, c, http.MethodGet, base+"/admin/users", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without admin session, got %d", code)
	}
	if code := do(t, c, http.MethodPost, base+"/admin/login", "", map[string]string{"username": "root", "password": "toor"}, nil); code != http.StatusNoContent {
		t.Fatalf("admin login: %d", code)
	}

	var users []struct {
		ID uint64 `json:"id"`
	}
	if code := do(t, c, http.MethodGet, base+"/admin/users", "", nil, &users); code != http.StatusOK || len(users) != 1 {
		t.Fatalf("list users: %d %+v", code, users)
	}
	if code := do(t, c, http.MethodPost, base+"/admin/users", "", map[string]string{"email": "a@example.com", "name": "A", "password": "p"}, nil); code != http.StatusConflict {
		t.Fatalf("expected duplicate email conflict, got %d", code)
	}
	if code := do(t, c, http.MethodPost, base+"/admin/logout", "", struct{}{}, nil); code != http.StatusNoContent {
		t.Fatalf("admin logout: %d", code)
	}
	if code := do(t, c, http.MethodGet, base+"/admin/users", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after admin logout, got %d", code)
	}
}
