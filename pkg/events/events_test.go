package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{}

func (failingSink) PublishEvent(*Event) error { return errors.New("sink down") }

func TestPublishEventToContext(t *testing.T) {
	meta := Metadata{ExchangeID: "ex-1"}
	ctx := context.Background()

	// no sinks is a no-op
	PublishEventToContext(ctx, NewExchangeStartEvent(meta, "hi", "", 0))

	a, b := &CollectingSink{}, &CollectingSink{}
	ctx = WithEventSinks(ctx, a, failingSink{})
	ctx = WithEventSinks(ctx, b)
	assert.Len(t, GetEventSinks(ctx), 3)

	PublishEventToContext(ctx, NewExchangeStartEvent(meta, "hi", "", 0))
	PublishEventToContext(ctx, NewExchangeFinalEvent(meta, "hello", 0, 0))

	assert.Equal(t, []EventType{EventTypeExchangeStart, EventTypeExchangeFinal}, a.Types())
	assert.Equal(t, a.Types(), b.Types())
}

func TestNewEventFromJSON(t *testing.T) {
	e, err := NewEventFromJSON([]byte(`{"type":"capability-result","meta":{"exchange_id":"ex-1"},
		"capability":"search_places","success":false,"error_kind":"not_found","duration_ms":1500}`))
	require.NoError(t, err)
	assert.Equal(t, EventTypeCapabilityResult, e.Type)
	require.NotNil(t, e.Success)
	assert.False(t, *e.Success)
	assert.Equal(t, "not_found", e.ErrorKind)
	assert.EqualValues(t, 1500, e.DurationMs)

	_, err = NewEventFromJSON([]byte(`{"meta":{}}`))
	assert.Error(t, err)
	_, err = NewEventFromJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestRouterDeliversToHandler(t *testing.T) {
	router, err := NewEventRouter()
	require.NoError(t, err)

	var mu sync.Mutex
	var got []*Event
	done := make(chan struct{})
	router.AddHandler("collect", DefaultTopic, func(e *Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
		if len(got) == 2 {
			close(done)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()
	<-router.Running()

	sink := router.Sink(DefaultTopic)
	meta := Metadata{ExchangeID: "ex-42"}
	require.NoError(t, sink.PublishEvent(NewCapabilityCallEvent(meta, "call-1", "search_places", []byte(`{"query":"coffee"}`))))
	require.NoError(t, sink.PublishEvent(NewExchangeErrorEvent(meta, "ProviderUnavailable", errors.New("boom"))))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("events were not delivered")
	}
	require.NoError(t, router.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, EventTypeCapabilityCall, got[0].Type)
	assert.Equal(t, "ex-42", got[0].Metadata.ExchangeID)
	assert.JSONEq(t, `{"query":"coffee"}`, string(got[0].Arguments))
	assert.Equal(t, "boom", got[1].Error)
}

func TestRouterVerboseSelectsLogger(t *testing.T) {
	quiet, err := NewEventRouter(WithVerbose(false))
	require.NoError(t, err)
	assert.IsType(t, watermill.NopLogger{}, quiet.logger)

	loud, err := NewEventRouter(WithVerbose(true))
	require.NoError(t, err)
	assert.IsType(t, &WatermillZerologAdapter{}, loud.logger)

	def, err := NewEventRouter()
	require.NoError(t, err)
	assert.IsType(t, watermill.NopLogger{}, def.logger)
}
