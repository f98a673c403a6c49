package events

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventTypeExchangeStart    EventType = "exchange-start"
	EventTypeCapabilityCall   EventType = "capability-call"
	EventTypeCapabilityResult EventType = "capability-result"
	EventTypeExchangeFinal    EventType = "exchange-final"
	EventTypeExchangeError    EventType = "exchange-error"
)

// Metadata is attached to every event of one exchange.
type Metadata struct {
	ExchangeID string    `json:"exchange_id"`
	Model      string    `json:"model,omitempty"`
	Time       time.Time `json:"time"`
}

func (m Metadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("exchange_id", m.ExchangeID)
	if m.Model != "" {
		e.Str("model", m.Model)
	}
}

// Event is one observable step of a chat exchange. Events are flat JSON
// documents so they can travel over watermill unchanged.
type Event struct {
	Type     EventType `json:"type"`
	Metadata Metadata  `json:"meta"`

	// exchange-start
	Message        string `json:"message,omitempty"`
	CallerLocation string `json:"caller_location,omitempty"`
	HistoryLength  int    `json:"history_length,omitempty"`

	// capability-call / capability-result
	InvocationID string          `json:"invocation_id,omitempty"`
	Capability   string          `json:"capability,omitempty"`
	Arguments    json.RawMessage `json:"arguments,omitempty"`
	Success      *bool           `json:"success,omitempty"`
	ErrorKind    string          `json:"error_kind,omitempty"`
	DurationMs   int64           `json:"duration_ms,omitempty"`

	// exchange-final
	Answer     string `json:"answer,omitempty"`
	PlaceCount int    `json:"place_count,omitempty"`
	RouteCount int    `json:"route_count,omitempty"`

	// exchange-error
	Error string `json:"error,omitempty"`
}

func (e *Event) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type))
	ev.Object("meta", e.Metadata)
	if e.Capability != "" {
		ev.Str("capability", e.Capability)
	}
	if e.Success != nil {
		ev.Bool("success", *e.Success)
	}
	if e.ErrorKind != "" {
		ev.Str("error_kind", e.ErrorKind)
	}
	if e.DurationMs != 0 {
		ev.Int64("duration_ms", e.DurationMs)
	}
	if e.Error != "" {
		ev.Str("error", e.Error)
	}
}

func NewExchangeStartEvent(meta Metadata, message, callerLocation string, historyLength int) *Event {
	return &Event{
		Type:           EventTypeExchangeStart,
		Metadata:       meta,
		Message:        message,
		CallerLocation: callerLocation,
		HistoryLength:  historyLength,
	}
}

func NewCapabilityCallEvent(meta Metadata, invocationID, capability string, args json.RawMessage) *Event {
	return &Event{
		Type:         EventTypeCapabilityCall,
		Metadata:     meta,
		InvocationID: invocationID,
		Capability:   capability,
		Arguments:    args,
	}
}

func NewCapabilityResultEvent(meta Metadata, invocationID, capability string, success bool, errorKind string, d time.Duration) *Event {
	return &Event{
		Type:         EventTypeCapabilityResult,
		Metadata:     meta,
		InvocationID: invocationID,
		Capability:   capability,
		Success:      &success,
		ErrorKind:    errorKind,
		DurationMs:   d.Milliseconds(),
	}
}

func NewExchangeFinalEvent(meta Metadata, answer string, places, routes int) *Event {
	return &Event{
		Type:       EventTypeExchangeFinal,
		Metadata:   meta,
		Answer:     answer,
		PlaceCount: places,
		RouteCount: routes,
	}
}

func NewExchangeErrorEvent(meta Metadata, kind string, err error) *Event {
	e := &Event{
		Type:      EventTypeExchangeError,
		Metadata:  meta,
		ErrorKind: kind,
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// NewEventFromJSON decodes an event published by a WatermillSink.
func NewEventFromJSON(b []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrap(err, "could not decode event")
	}
	if e.Type == "" {
		return nil, errors.New("event has no type")
	}
	return &e, nil
}
