package moodjournal

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/moodjournal/pipeline"
)

// CredentialMode selects how credentials travel with requests.
type CredentialMode = pipeline.Mode

const (
	// ModeBearer persists tokens client-side and sends an Authorization header.
	ModeBearer = pipeline.ModeBearer
	// ModeCookie leaves credentials to server-set cookies.
	ModeCookie = pipeline.ModeCookie
)

// Config is the full client configuration. Start from DefaultConfig.
type Config struct {
	// BaseURL is the API root, e.g. "https://journal.example.com/api".
	BaseURL     string
	Credentials CredentialsConfig
	Endpoints   EndpointsConfig
	Transport   TransportConfig
	Session     SessionConfig
	Events      EventsConfig
	Metrics     MetricsConfig
}

type CredentialsConfig struct {
	Mode CredentialMode
	// APIMarker is the path fragment that marks protected requests.
	APIMarker string
}

// EndpointsConfig holds auth paths relative to BaseURL. Refresh and Me are
// also matched as path suffixes by the pipeline.
type EndpointsConfig struct {
	Login   string
	Logout  string
	Refresh string
	Me      string
}

type TransportConfig struct {
	// Timeout bounds every round trip, including refresh calls. Zero disables it.
	Timeout time.Duration
}

type SessionConfig struct {
	// StoreTimeout bounds credential deletes issued when the session clears.
	StoreTimeout time.Duration
}

// EventsConfig controls asynchronous session event delivery.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080/api",
		Credentials: CredentialsConfig{
			Mode:      ModeBearer,
			APIMarker: "/api/",
		},
		Endpoints: EndpointsConfig{
			Login:   "/auth/login",
			Logout:  "/auth/logout",
			Refresh: "/auth/refresh",
			Me:      "/auth/me",
		},
		Transport: TransportConfig{
			Timeout: 30 * time.Second,
		},
		Session: SessionConfig{
			StoreTimeout: 5 * time.Second,
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.BaseURL = strings.TrimSpace(cfg.BaseURL)
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("BaseURL must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("BaseURL scheme must be http or https")
	}

	if c.Credentials.Mode != ModeBearer && c.Credentials.Mode != ModeCookie {
		return errors.New("unsupported credential mode")
	}
	if !strings.HasPrefix(c.Credentials.APIMarker, "/") {
		return errors.New("Credentials APIMarker must start with /")
	}
	if !strings.Contains(u.Path+"/", c.Credentials.APIMarker) {
		return errors.New("BaseURL path must contain Credentials APIMarker")
	}

	for name, p := range map[string]string{
		"Login":   c.Endpoints.Login,
		"Logout":  c.Endpoints.Logout,
		"Refresh": c.Endpoints.Refresh,
		"Me":      c.Endpoints.Me,
	} {
		if !strings.HasPrefix(p, "/") {
			return errors.New("Endpoints " + name + " must start with /")
		}
	}
	if c.Endpoints.Refresh == c.Endpoints.Me {
		return errors.New("Endpoints Refresh and Me must differ")
	}

	if c.Transport.Timeout < 0 {
		return errors.New("Transport Timeout must be >= 0")
	}
	if c.Session.StoreTimeout < 0 {
		return errors.New("Session StoreTimeout must be >= 0")
	}
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	return nil
}
