package moodjournal

import (
	"context"
	"net/http"

	"github.com/MrEthical07/moodjournal/api"
	"github.com/MrEthical07/moodjournal/internal/events"
	"github.com/MrEthical07/moodjournal/internal/metrics"
	"github.com/MrEthical07/moodjournal/pipeline"
	"github.com/MrEthical07/moodjournal/session"
	"go.uber.org/zap"
)

// Client is a configured mood journal client. It is safe for concurrent use.
type Client struct {
	config     Config
	logger     *zap.Logger
	httpClient *http.Client
	transport  *pipeline.Transport
	session    *session.Manager
	api        *api.Client
	entries    *api.EntryAPI
	admin      *api.AdminAPI
	events     *events.Dispatcher
	metrics    *metrics.Metrics
}

// Init resolves the initial session state from persisted credentials or the
// identity endpoint. Guards block until it completes.
func (c *Client) Init(ctx context.Context) session.State {
	return c.session.Init(ctx)
}

// Login authenticates. Read the user with CurrentUser afterwards.
func (c *Client) Login(ctx context.Context, login, password string) error {
	return c.session.Login(ctx, session.LoginRequest{Login: login, Password: password})
}

// Logout always ends the local session. The error reports only the remote call.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

// Refresh renews the session, reporting false when it ended instead.
func (c *Client) Refresh(ctx context.Context) (session.User, bool) {
	return c.session.Refresh(ctx)
}

// ClearSession forgets the session locally without a network call.
func (c *Client) ClearSession() {
	c.session.Clear()
}

func (c *Client) CurrentUser() (session.User, bool) {
	return c.session.CurrentUser()
}

func (c *Client) AuthState() session.State {
	return c.session.State()
}

// Subscribe streams session states until ctx ends.
func (c *Client) Subscribe(ctx context.Context) <-chan session.State {
	return c.session.Subscribe(ctx)
}

func (c *Client) WaitResolved(ctx context.Context) (session.State, error) {
	return c.session.WaitResolved(ctx)
}

// Session exposes the state holder for guards and other collaborators.
func (c *Client) Session() *session.Manager {
	return c.session
}

func (c *Client) Entries() *api.EntryAPI {
	return c.entries
}

func (c *Client) Admin() *api.AdminAPI {
	return c.admin
}

// API returns the JSON helper for endpoints without a typed client.
func (c *Client) API() *api.Client {
	return c.api
}

// HTTPClient returns the pipeline-wrapped client for raw requests.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Config returns a copy of the active configuration.
func (c *Client) Config() Config {
	return cloneConfig(c.config)
}

func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// EventsDropped reports session events lost to a full buffer.
func (c *Client) EventsDropped() uint64 {
	return c.events.Dropped()
}

// Close flushes pending events and releases idle connections.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.events.Close()
	c.httpClient.CloseIdleConnections()
}
