package pipeline

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LoggingTransport logs one line per round trip.
type LoggingTransport struct {
	base   http.RoundTripper
	logger *zap.Logger
}

// NewLogging wraps base. A nil base means http.DefaultTransport.
func NewLogging(base http.RoundTripper, logger *zap.Logger) *LoggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingTransport{base: base, logger: logger.Named("http")}
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(HeaderRequestID) == "" {
		req = req.Clone(req.Context())
		ensureRequestID(req)
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Duration("dur", time.Since(start)),
		zap.String("request_id", req.Header.Get(HeaderRequestID)),
	}
	if err != nil {
		t.logger.Warn("request failed", append(fields, zap.Error(err))...)
		return nil, err
	}

	fields = append(fields, zap.Int("status", resp.StatusCode))
	if resp.StatusCode >= 500 {
		t.logger.Warn("request", fields...)
	} else {
		t.logger.Debug("request", fields...)
	}
	return resp, nil
}
