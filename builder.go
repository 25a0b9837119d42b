package moodjournal

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"

	"github.com/MrEthical07/moodjournal/api"
	"github.com/MrEthical07/moodjournal/internal/events"
	"github.com/MrEthical07/moodjournal/internal/metrics"
	"github.com/MrEthical07/moodjournal/pipeline"
	"github.com/MrEthical07/moodjournal/session"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// Builder assembles a Client. A Builder builds once.
type Builder struct {
	config Config
	store  session.TokenStore
	base   http.RoundTripper
	logger *zap.Logger
	sink   EventSink

	built bool
}

// New returns a Builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets Config.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithTokenStore sets where bearer credentials persist. Defaults to memory.
func (b *Builder) WithTokenStore(store session.TokenStore) *Builder {
	b.store = store
	return b
}

// WithBaseTransport sets the transport below the pipeline. Defaults to
// http.DefaultTransport.
func (b *Builder) WithBaseTransport(rt http.RoundTripper) *Builder {
	b.base = rt
	return b
}

// WithLogger sets the logger shared by every component. Nil keeps the no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithEventSink enables session events and delivers them to sink.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	b.config.Events.Enabled = sink != nil
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the client. The http.Client
// exists before the session manager so the auth endpoints share its cookie
// jar; its transport is installed last because the pipeline needs the manager.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := metrics.New(metrics.Config{
		Enabled:                 cfg.Metrics.Enabled,
		EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
	})

	sink := b.sink
	if sink == nil {
		sink = events.NewZapSink(logger)
	}
	dispatcher := events.NewDispatcher(events.Config{
		Enabled:    cfg.Events.Enabled,
		BufferSize: cfg.Events.BufferSize,
		DropIfFull: cfg.Events.DropIfFull,
	}, sink)

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	httpClient := &http.Client{
		Jar:     jar,
		Timeout: cfg.Transport.Timeout,
	}

	apiClient, err := api.NewClient(cfg.BaseURL, httpClient)
	if err != nil {
		return nil, err
	}
	authAPI := api.NewAuthAPI(apiClient, api.AuthEndpoints{
		Login:   cfg.Endpoints.Login,
		Logout:  cfg.Endpoints.Logout,
		Refresh: cfg.Endpoints.Refresh,
		Me:      cfg.Endpoints.Me,
	}, cfg.Credentials.Mode == ModeBearer)

	opts := session.Options{
		ProbeWithoutCredentials: cfg.Credentials.Mode == ModeCookie,
		StoreTimeout:            cfg.Session.StoreTimeout,
		Logger:                  logger,
		Metrics:                 m,
	}
	if dispatcher != nil {
		opts.Events = dispatcher
	}
	mgr := session.NewManager(authAPI, b.store, opts)

	transport := pipeline.New(pipeline.NewLogging(b.base, logger), mgr, pipeline.Config{
		Mode:           cfg.Credentials.Mode,
		APIMarker:      cfg.Credentials.APIMarker,
		RefreshSuffix:  cfg.Endpoints.Refresh,
		IdentitySuffix: cfg.Endpoints.Me,
		LoginSuffix:    cfg.Endpoints.Login,
		Jar:            jar,
		Logger:         logger,
		Metrics:        m,
	})
	httpClient.Transport = transport

	b.built = true
	return &Client{
		config:     cfg,
		logger:     logger,
		httpClient: httpClient,
		transport:  transport,
		session:    mgr,
		api:        apiClient,
		entries:    api.NewEntryAPI(apiClient),
		admin:      api.NewAdminAPI(apiClient),
		events:     dispatcher,
		metrics:    m,
	}, nil
}
