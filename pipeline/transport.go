package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/moodjournal/internal/metrics"
	"github.com/MrEthical07/moodjournal/session"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Mode selects how credentials travel with a request.
type Mode uint8

const (
	// ModeBearer sends the access token in an Authorization header.
	ModeBearer Mode = iota
	// ModeCookie relies on cookies from the client's jar.
	ModeCookie
)

func (m Mode) String() string {
	if m == ModeCookie {
		return "cookie"
	}
	return "bearer"
}

// Session is the part of the session state holder the pipeline needs.
// *session.Manager satisfies it.
type Session interface {
	Present() bool
	AccessToken() string
	Refresh(ctx context.Context) (session.User, bool)
	Clear()
}

// Config controls request classification and credential transport.
type Config struct {
	Mode Mode
	// APIMarker marks protected paths; requests whose path does not contain
	// it get credentials but no recovery.
	APIMarker string
	// RefreshSuffix identifies the refresh endpoint, which never triggers a refresh.
	RefreshSuffix string
	// IdentitySuffix identifies the who-am-I endpoint, whose 401s qualify
	// even without a present session.
	IdentitySuffix string
	// LoginSuffix identifies the login endpoint. Its 401 means wrong
	// credentials and never triggers a refresh.
	LoginSuffix string
	// AdminMarker marks admin console paths. The admin session is separate
	// from the user session, so admin 401s are returned as is.
	AdminMarker string
	// Jar supplies rotated cookies for retries in ModeCookie. It must be the
	// jar of the http.Client using this transport.
	Jar     http.CookieJar
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// DefaultConfig returns the bearer-mode settings for the standard API layout.
func DefaultConfig() Config {
	return Config{
		Mode:           ModeBearer,
		APIMarker:      "/api/",
		RefreshSuffix:  "/auth/refresh",
		IdentitySuffix: "/auth/me",
		LoginSuffix:    "/auth/login",
		AdminMarker:    "/admin/",
	}
}

const refreshKey = "refresh"

// Transport is the authenticated request pipeline.
type Transport struct {
	base   http.RoundTripper
	sess   Session
	cfg    Config
	logger *zap.Logger

	group   singleflight.Group
	waiting atomic.Int64
}

// New wraps base. Empty Config strings take DefaultConfig values; a nil base
// means http.DefaultTransport.
func New(base http.RoundTripper, sess Session, cfg Config) *Transport {
	def := DefaultConfig()
	if cfg.APIMarker == "" {
		cfg.APIMarker = def.APIMarker
	}
	if cfg.RefreshSuffix == "" {
		cfg.RefreshSuffix = def.RefreshSuffix
	}
	if cfg.IdentitySuffix == "" {
		cfg.IdentitySuffix = def.IdentitySuffix
	}
	if cfg.LoginSuffix == "" {
		cfg.LoginSuffix = def.LoginSuffix
	}
	if cfg.AdminMarker == "" {
		cfg.AdminMarker = def.AdminMarker
	}
	if base == nil {
		base = http.DefaultTransport
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Transport{
		base:   base,
		sess:   sess,
		cfg:    cfg,
		logger: logger.Named("pipeline"),
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	protected := t.protected(out)
	if protected {
		if err := bufferBody(out); err != nil {
			return nil, err
		}
	}
	t.attach(out)
	ensureRequestID(out)
	jarNames := t.jarCookieNames(out)

	resp, err := t.base.RoundTrip(out)
	if !protected || err != nil || !t.qualifies(out, resp) {
		return resp, err
	}

	ok, err := t.awaitRefresh(out.Context())
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	if !ok {
		t.sess.Clear()
		t.cfg.Metrics.Inc(metrics.AuthErrorPropagated)
		t.logger.Debug("refresh failed; returning original response",
			zap.String("path", out.URL.Path),
			zap.String("request_id", out.Header.Get(HeaderRequestID)),
		)
		return resp, nil
	}

	drainAndClose(resp.Body)
	retry, err := t.retryRequest(out, jarNames)
	if err != nil {
		return nil, err
	}

	t.cfg.Metrics.Inc(metrics.RetryAfterRefresh)
	resp, err = t.base.RoundTrip(retry)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		t.cfg.Metrics.Inc(metrics.RetryUnauthorized)
		t.logger.Info("retry after refresh rejected",
			zap.String("path", retry.URL.Path),
			zap.String("request_id", retry.Header.Get(HeaderRequestID)),
		)
	}
	return resp, err
}

// Waiting reports how many requests are blocked on a refresh.
func (t *Transport) Waiting() int {
	return int(t.waiting.Load())
}

// CloseIdleConnections forwards to the base transport when it supports it.
func (t *Transport) CloseIdleConnections() {
	type idleCloser interface{ CloseIdleConnections() }
	if c, ok := t.base.(idleCloser); ok {
		c.CloseIdleConnections()
	}
}

func (t *Transport) protected(req *http.Request) bool {
	return strings.Contains(req.URL.Path, t.cfg.APIMarker)
}

// admin reports whether path is under the admin console, past the API marker.
func (t *Transport) admin(path string) bool {
	i := strings.Index(path, t.cfg.APIMarker)
	if i < 0 {
		return false
	}
	return strings.Contains(path[i+len(t.cfg.APIMarker)-1:], t.cfg.AdminMarker)
}

func (t *Transport) qualifies(req *http.Request, resp *http.Response) bool {
	if resp.StatusCode != http.StatusUnauthorized {
		return false
	}
	path := req.URL.Path
	if strings.HasSuffix(path, t.cfg.RefreshSuffix) || strings.HasSuffix(path, t.cfg.LoginSuffix) {
		return false
	}
	if t.admin(path) {
		return false
	}
	return strings.HasSuffix(path, t.cfg.IdentitySuffix) || t.sess.Present()
}

// awaitRefresh joins the in-flight refresh or starts one. The refresh runs
// detached from ctx so one caller giving up does not fail the others.
func (t *Transport) awaitRefresh(ctx context.Context) (bool, error) {
	leader := false
	detached := context.WithoutCancel(ctx)
	ch := t.group.DoChan(refreshKey, func() (any, error) {
		leader = true
		t.cfg.Metrics.Inc(metrics.RefreshStarted)
		t.logger.Debug("refresh started")

		start := time.Now()
		_, ok := t.sess.Refresh(detached)
		t.cfg.Metrics.Observe(metrics.RefreshLatency, time.Since(start))
		t.logger.Debug("refresh finished", zap.Bool("ok", ok), zap.Duration("dur", time.Since(start)))
		return ok, nil
	})
	t.waiting.Add(1)
	defer t.waiting.Add(-1)

	select {
	case res := <-ch:
		if !leader {
			t.cfg.Metrics.Inc(metrics.RefreshWaiter)
		}
		ok, _ := res.Val.(bool)
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (t *Transport) attach(req *http.Request) {
	if t.cfg.Mode != ModeBearer {
		return
	}
	if token := t.sess.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// retryRequest copies prev with a fresh body and the current credentials.
// In ModeCookie, cookies named in sentFromJar are replaced by the jar's
// current ones; any other Cookie header values are kept.
func (t *Transport) retryRequest(prev *http.Request, sentFromJar map[string]bool) (*http.Request, error) {
	retry := prev.Clone(prev.Context())
	if prev.GetBody != nil {
		body, err := prev.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replay request body: %w", err)
		}
		retry.Body = body
	}

	switch t.cfg.Mode {
	case ModeBearer:
		retry.Header.Del("Authorization")
		t.attach(retry)
	case ModeCookie:
		// http.Client applied the jar before this transport ran, so the
		// rotated cookies have to be copied in by hand.
		if t.cfg.Jar != nil {
			current := t.cfg.Jar.Cookies(retry.URL)
			fromJar := make(map[string]bool, len(sentFromJar)+len(current))
			for name := range sentFromJar {
				fromJar[name] = true
			}
			for _, c := range current {
				fromJar[c.Name] = true
			}

			kept := prev.Cookies()
			retry.Header.Del("Cookie")
			for _, c := range kept {
				if !fromJar[c.Name] {
					retry.AddCookie(c)
				}
			}
			for _, c := range current {
				retry.AddCookie(c)
			}
		}
	}
	return retry, nil
}

// jarCookieNames records which cookie names the jar holds for req's URL
// as it is sent.
func (t *Transport) jarCookieNames(req *http.Request) map[string]bool {
	if t.cfg.Mode != ModeCookie || t.cfg.Jar == nil {
		return nil
	}
	cookies := t.cfg.Jar.Cookies(req.URL)
	names := make(map[string]bool, len(cookies))
	for _, c := range cookies {
		names[c.Name] = true
	}
	return names
}

// bufferBody makes req's body replayable when the caller gave no GetBody.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}

	payload, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return fmt.Errorf("buffer request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(payload))
	req.ContentLength = int64(len(payload))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	return nil
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64*1024))
	body.Close()
}
