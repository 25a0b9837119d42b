package moodjournal

import (
	"io"

	"github.com/MrEthical07/moodjournal/internal/events"
	"go.uber.org/zap"
)

// Event is one session lifecycle record.
type Event = events.Event

// EventSink receives session events from the client's dispatcher goroutine.
type EventSink = events.Sink

type (
	ChannelSink    = events.ChannelSink
	JSONWriterSink = events.JSONWriterSink
	ZapSink        = events.ZapSink
	NoOpSink       = events.NoOpSink
)

const (
	EventLogin          = events.TypeLogin
	EventLoginFailed    = events.TypeLoginFailed
	EventLogout         = events.TypeLogout
	EventRefresh        = events.TypeRefresh
	EventRefreshFailed  = events.TypeRefreshFailed
	EventSessionCleared = events.TypeSessionCleared
	EventRestored       = events.TypeRestored
)

func NewChannelSink(buffer int) *ChannelSink {
	return events.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return events.NewJSONWriterSink(w)
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return events.NewZapSink(logger)
}
