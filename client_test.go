package moodjournal

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/moodjournal/api"
	"github.com/MrEthical07/moodjournal/apitest"
	"github.com/MrEthical07/moodjournal/session"
)

func newTestServer(t *testing.T) *apitest.Server {
	t.Helper()
	s := apitest.New(apitest.Options{})
	s.AddUser("a", "Ann", "b")
	t.Cleanup(s.Close)
	return s
}

func newTestClient(t *testing.T, s *apitest.Server, mode CredentialMode, store session.TokenStore) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = s.URL() + "/api"
	cfg.Credentials.Mode = mode
	cfg.Metrics.EnableLatencyHistograms = true

	c, err := New().WithConfig(cfg).WithTokenStore(store).WithBaseTransport(s.Client().Transport).Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLoginScenario(t *testing.T) {
	s := newTestServer(t)
	c := newTestClient(t, s, ModeBearer, nil)
	ctx := context.Background()

	if st := c.Init(ctx); st.Status != session.StatusUnauthenticated {
		t.Fatalf("expected unauthenticated after init, got %v", st.Status)
	}
	if s.Calls("/api/auth/me") != 0 {
		t.Fatal("init without credentials must not call the identity endpoint")
	}

	if err := c.Login(ctx, "a", "b"); err != nil {
		t.Fatalf("login: %v", err)
	}
	u, ok := c.CurrentUser()
	if !ok || u.Name != "Ann" {
		t.Fatalf("expected current user Ann, got %+v %v", u, ok)
	}
	if st := c.AuthState(); st.Status != session.StatusAuthenticated {
		t.Fatalf("expected authenticated, got %v", st.Status)
	}

	err := c.Login(ctx, "a", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) || UserMessage(err) != MessageInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, ok := c.CurrentUser(); !ok {
		t.Fatal("failed login must not change the session")
	}
}

func runConcurrentUnauthorized(t *testing.T, mode CredentialMode) {
	s := newTestServer(t)
	c := newTestClient(t, s, mode, nil)
	ctx := context.Background()

	if err := c.Login(ctx, "a", "b"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := c.Entries().Create(ctx, api.EditEntryRequest{Feeling: "calm"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	s.ExpireAccessTokens()
	s.ResetCalls()
	release := s.BlockRefresh()
	defer release()

	const n = 3
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Entries().List(ctx, api.DefaultListOptions())
		}(i)
	}

	waitFor(t, "all requests to wait on refresh", func() bool { return c.transport.Waiting() == n })
	release()
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if got := s.Calls("/api/auth/refresh"); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}
	if got := s.Calls("/api/mood/entries"); got != 2*n {
		t.Fatalf("expected %d entry calls, got %d", 2*n, got)
	}

	snap := c.MetricsSnapshot()
	if snap.Counters[MetricRefreshStarted] != 1 || snap.Counters[MetricRetryAfterRefresh] != n {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
	if st := c.AuthState(); st.Status != session.StatusAuthenticated {
		t.Fatalf("expected session to survive refresh, got %v", st.Status)
	}
}

func TestConcurrentUnauthorizedBearer(t *testing.T) {
	runConcurrentUnauthorized(t, ModeBearer)
}

func TestConcurrentUnauthorizedCookie(t *testing.T) {
	runConcurrentUnauthorized(t, ModeCookie)
}

func TestRefreshFailureSurfacesOriginalError(t *testing.T) {
	s := newTestServer(t)
	store := session.NewMemoryStore()
	c := newTestClient(t, s, ModeBearer, store)
	ctx := context.Background()

	if err := c.Login(ctx, "a", "b"); err != nil {
		t.Fatalf("login: %v", err)
	}
	s.ExpireAccessTokens()
	s.FailRefresh(true)

	_, err := c.Entries().List(ctx, api.DefaultListOptions())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected original 401, got %v", err)
	}
	var se *api.StatusError
	if !errors.As(err, &se) || se.Op != "list entries" {
		t.Fatalf("expected the list call's own error, got %v", err)
	}
	if UserMessage(err) != MessageSessionExpired {
		t.Fatalf("unexpected message %q", UserMessage(err))
	}
	if st := c.AuthState(); st.Status != session.StatusUnauthenticated {
		t.Fatalf("expected cleared session, got %v", st.Status)
	}
	if _, err := store.Load(ctx); !errors.Is(err, session.ErrNoCredentials) {
		t.Fatalf("expected stored credentials to be deleted, got %v", err)
	}

	// With no session present, a later 401 is not retried.
	s.ResetCalls()
	if _, err := c.Entries().List(ctx, api.DefaultListOptions()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected 401, got %v", err)
	}
	if s.Calls("/api/auth/refresh") != 0 {
		t.Fatal("anonymous 401 must not refresh")
	}
}

func TestWrongPasswordKeepsSession(t *testing.T) {
	s := newTestServer(t)
	store := session.NewMemoryStore()
	c := newTestClient(t, s, ModeBearer, store)
	ctx := context.Background()

	if err := c.Login(ctx, "a", "b"); err != nil {
		t.Fatalf("login: %v", err)
	}
	s.FailRefresh(true)
	s.ResetCalls()

	if err := c.Login(ctx, "a", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if n := s.Calls("/api/auth/refresh"); n != 0 {
		t.Fatalf("wrong password must not refresh, got %d refresh calls", n)
	}
	if n := s.Calls("/api/auth/login"); n != 1 {
		t.Fatalf("password must be sent once, got %d login calls", n)
	}
	if u, ok := c.CurrentUser(); !ok || u.Name != "Ann" {
		t.Fatalf("expected Ann to stay logged in, got %+v %v", u, ok)
	}
	if _, err := store.Load(ctx); err != nil {
		t.Fatalf("stored credentials must survive, got %v", err)
	}
}

func TestAdminFailuresLeaveUserSession(t *testing.T) {
	s := newTestServer(t)
	c := newTestClient(t, s, ModeBearer, nil)
	ctx := context.Background()

	if err := c.Login(ctx, "a", "b"); err != nil {
		t.Fatalf("login: %v", err)
	}
	s.FailRefresh(true)
	s.ResetCalls()

	if err := c.Admin().Login(ctx, api.AdminLoginRequest{Username: "admin", Password: "nope"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected admin 401, got %v", err)
	}
	if _, err := c.Admin().Users(ctx); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected admin 401 without admin session, got %v", err)
	}
	if n := s.Calls("/api/auth/refresh"); n != 0 {
		t.Fatalf("admin 401s must not refresh the user session, got %d", n)
	}
	if c.Admin().IsLoggedIn() {
		t.Fatal("admin must not be logged in")
	}
	if st := c.AuthState(); st.Status != session.StatusAuthenticated {
		t.Fatalf("user session must survive admin failures, got %v", st.Status)
	}
	if _, err := c.Entries().List(ctx, api.DefaultListOptions()); err != nil {
		t.Fatalf("user requests must keep working: %v", err)
	}
}

func TestRetriedUnauthorizedIsNotRecovered(t *testing.T) {
	s := newTestServer(t)
	c := newTestClient(t, s, ModeBearer, nil)
	ctx := context.Background()

	if err := c.Login(ctx, "a", "b"); err != nil {
		t.Fatalf("login: %v", err)
	}
	s.ExpireAccessTokens()
	s.RejectRefreshed(true)
	s.ResetCalls()

	if _, err := c.Entries().List(ctx, api.DefaultListOptions()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected retried 401, got %v", err)
	}
	if s.Calls("/api/auth/refresh") != 1 || s.Calls("/api/mood/entries") != 2 {
		t.Fatalf("expected one refresh and one retry, got %d and %d", s.Calls("/api/auth/refresh"), s.Calls("/api/mood/entries"))
	}
	if c.MetricsSnapshot().Counters[MetricRetryUnauthorized] != 1 {
		t.Fatal("expected RetryUnauthorized")
	}
}

func TestInitRestoresPersistedSession(t *testing.T) {
	s := newTestServer(t)
	path := filepath.Join(t.TempDir(), "credentials")
	ctx := context.Background()

	first := newTestClient(t, s, ModeBearer, session.NewFileStore(path))
	if err := first.Login(ctx, "a", "b"); err != nil {
		t.Fatalf("login: %v", err)
	}

	second := newTestClient(t, s, ModeBearer, session.NewFileStore(path))
	if st := second.Init(ctx); st.Status != session.StatusAuthenticated || st.User.Name != "Ann" {
		t.Fatalf("expected restored session, got %+v", st)
	}

	s.ExpireAccessTokens()
	third := newTestClient(t, s, ModeBearer, session.NewFileStore(path))
	if st := third.Init(ctx); st.Status != session.StatusAuthenticated {
		t.Fatalf("expected restore through refresh, got %v", st.Status)
	}
}

func TestInitCookieModeProbes(t *testing.T) {
	s := newTestServer(t)
	c := newTestClient(t, s, ModeCookie, nil)
	ctx := context.Background()

	if st := c.Init(ctx); st.Status != session.StatusUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", st.Status)
	}
	if s.Calls("/api/auth/me") != 1 {
		t.Fatalf("cookie mode must probe the identity endpoint, got %d calls", s.Calls("/api/auth/me"))
	}
}

func TestLogoutClearsLocally(t *testing.T) {
	s := newTestServer(t)
	store := session.NewMemoryStore()
	c := newTestClient(t, s, ModeBearer, store)
	ctx := context.Background()

	if err := c.Login(ctx, "a", "b"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := c.CurrentUser(); ok {
		t.Fatal("expected no user after logout")
	}
	if _, err := store.Load(ctx); !errors.Is(err, session.ErrNoCredentials) {
		t.Fatalf("expected empty store, got %v", err)
	}
}

func TestEventsDelivered(t *testing.T) {
	s := newTestServer(t)
	sink := NewChannelSink(16)
	cfg := DefaultConfig()
	cfg.BaseURL = s.URL() + "/api"
	c, err := New().WithConfig(cfg).WithEventSink(sink).WithBaseTransport(s.Client().Transport).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()

	if err := c.Login(context.Background(), "a", "b"); err != nil {
		t.Fatalf("login: %v", err)
	}
	select {
	case ev := <-sink.Events():
		if ev.Type != EventLogin || !ev.Success || ev.Timestamp.IsZero() {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected login event")
	}
	if c.EventsDropped() != 0 {
		t.Fatal("no events should be dropped")
	}
}

func TestSubscribeSeesTransitions(t *testing.T) {
	s := newTestServer(t)
	c := newTestClient(t, s, ModeBearer, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	states := c.Subscribe(ctx)
	if st := <-states; st.Status != session.StatusUnknown {
		t.Fatalf("expected unknown first, got %v", st.Status)
	}
	c.Init(ctx)
	waitForStatus(t, states, session.StatusUnauthenticated)
	if err := c.Login(ctx, "a", "b"); err != nil {
		t.Fatalf("login: %v", err)
	}
	waitForStatus(t, states, session.StatusAuthenticated)
	c.ClearSession()
	waitForStatus(t, states, session.StatusUnauthenticated)
}

func waitForStatus(t *testing.T, states <-chan session.State, want session.Status) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case st := <-states:
			if st.Status == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %v", want)
		}
	}
}

func TestRequestIDPropagates(t *testing.T) {
	s := newTestServer(t)
	c := newTestClient(t, s, ModeBearer, nil)
	ctx := WithRequestID(context.Background(), "trace-1")
	if RequestIDFromContext(ctx) != "trace-1" {
		t.Fatal("request id lost")
	}
	if err := c.Login(ctx, "a", "b"); err != nil {
		t.Fatalf("login: %v", err)
	}
}
