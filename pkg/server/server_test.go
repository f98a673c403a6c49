package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	capmaps "github.com/go-go-golems/waypoint/pkg/capabilities/maps"
	"github.com/go-go-golems/waypoint/pkg/completion"
	"github.com/go-go-golems/waypoint/pkg/conversation"
	"github.com/go-go-golems/waypoint/pkg/dispatch"
	"github.com/go-go-golems/waypoint/pkg/events"
	"github.com/go-go-golems/waypoint/pkg/geo"
	"github.com/go-go-golems/waypoint/pkg/geo/geotest"
	"github.com/go-go-golems/waypoint/pkg/metrics"
	"github.com/go-go-golems/waypoint/pkg/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	geo      *geotest.Provider
	requests []completion.Request
	sink     *events.CollectingSink
	handler  http.Handler
}

// newFixture wires a server around a provider that replays replies in order.
func newFixture(t *testing.T, replies []completion.Reply, config Config, opts ...orchestrator.Option) *fixture {
	f := &fixture{geo: &geotest.Provider{}, sink: &events.CollectingSink{}}
	provider := completion.ProviderFunc(func(ctx context.Context, req completion.Request) (completion.Reply, error) {
		i := len(f.requests)
		f.requests = append(f.requests, req)
		if i >= len(replies) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return replies[i], nil
	})

	reg, err := capmaps.NewRegistry(f.geo)
	require.NoError(t, err)
	m := metrics.New()
	o, err := orchestrator.New(provider, dispatch.NewDispatcher(reg, dispatch.WithMetrics(m)), append(opts, orchestrator.WithMetrics(m))...)
	require.NoError(t, err)

	config.EventSinks = append(config.EventSinks, f.sink)
	f.handler = New(o, f.geo, config, m).Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var ret map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &ret)
	}
	return rec, ret
}

func TestChatDirectAnswer(t *testing.T) {
	f := newFixture(t, []completion.Reply{completion.DirectAnswer{Text: "Hi there"}}, Config{})

	rec, body := f.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hi there", body["response"])
	assert.Nil(t, body["places"])
	assert.Nil(t, body["map_data"])
	assert.Equal(t, 0, f.geo.Calls())
}

func TestChatSearchReturnsShapedPlaces(t *testing.T) {
	f := newFixture(t, []completion.Reply{
		completion.InvocationRequest{ID: "call_1", Name: capmaps.SearchPlaces, Arguments: `{"query":"coffee","location":"current location"}`},
		completion.DirectAnswer{Text: "Here are some coffee shops."},
	}, Config{})
	f.geo.Places = geotest.MakePlaces(12)

	rec, body := f.do(t, http.MethodPost, "/api/chat", map[string]any{
		"message":       "coffee near me",
		"user_location": "37.7749,-122.4194",
		"conversation_history": []map[string]string{
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "hello"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Here are some coffee shops.", body["response"])
	places, ok := body["places"].([]any)
	require.True(t, ok)
	assert.Len(t, places, dispatch.DefaultPlaceLimit)

	require.Len(t, f.geo.PlaceQueries, 1)
	assert.Equal(t, "37.7749,-122.4194", f.geo.PlaceQueries[0].Location)

	// system, two history turns, the new message
	require.Len(t, f.requests, 2)
	msgs := f.requests[0].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, conversation.RoleSystem, msgs[0].Role)
	assert.Equal(t, "hi", msgs[1].Text())
	assert.Equal(t, "coffee near me", msgs[3].Text())

	assert.Equal(t, []events.EventType{
		events.EventTypeExchangeStart,
		events.EventTypeCapabilityCall,
		events.EventTypeCapabilityResult,
		events.EventTypeExchangeFinal,
	}, f.sink.Types())
}

func TestChatDirectionsFillsMapData(t *testing.T) {
	f := newFixture(t, []completion.Reply{
		completion.InvocationRequest{ID: "call_1", Name: capmaps.GetDirections, Arguments: `{"origin":"A","destination":"B"}`},
		completion.DirectAnswer{Text: "Take the highway."},
	}, Config{})
	f.geo.Routes = []geo.Route{{Summary: "I-80"}}

	rec, body := f.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "A to B"})
	require.Equal(t, http.StatusOK, rec.Code)
	routes, ok := body["map_data"].([]any)
	require.True(t, ok)
	require.Len(t, routes, 1)
	assert.Equal(t, "I-80", routes[0].(map[string]any)["summary"])
}

func TestChatErrors(t *testing.T) {
	t.Run("empty message", func(t *testing.T) {
		f := newFixture(t, nil, Config{})
		rec, body := f.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "  "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, string(orchestrator.KindInvalidRequest), body["kind"])
		assert.Empty(t, f.requests)
	})

	t.Run("unknown history role", func(t *testing.T) {
		f := newFixture(t, nil, Config{})
		rec, body := f.do(t, http.MethodPost, "/api/chat", map[string]any{
			"message":              "hi",
			"conversation_history": []map[string]string{{"role": "narrator", "content": "x"}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, body["error"], "unknown role")
	})

	t.Run("tool turn in history", func(t *testing.T) {
		f := newFixture(t, nil, Config{})
		rec, _ := f.do(t, http.MethodPost, "/api/chat", map[string]any{
			"message":              "hi",
			"conversation_history": []map[string]string{{"role": "tool", "content": "{}"}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("broken body", func(t *testing.T) {
		f := newFixture(t, nil, Config{})
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("upstream timeout", func(t *testing.T) {
		f := newFixture(t, nil, Config{}, orchestrator.WithCompletionTimeout(20*time.Millisecond))
		rec, body := f.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "hi"})
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
		assert.Equal(t, string(orchestrator.KindUpstreamTimeout), body["kind"])
	})

	t.Run("malformed invocation", func(t *testing.T) {
		f := newFixture(t, []completion.Reply{
			completion.InvocationRequest{ID: "c", Name: capmaps.SearchPlaces, Arguments: `{"query":`},
		}, Config{})
		rec, body := f.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "coffee"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, string(orchestrator.KindMalformedInvocation), body["kind"])
		assert.NotContains(t, rec.Body.String(), `{\"query\":`)
	})
}

func TestSearchPlacesEndpoint(t *testing.T) {
	f := newFixture(t, nil, Config{SearchLimit: 3})
	f.geo.Places = geotest.MakePlaces(8)

	rec, body := f.do(t, http.MethodPost, "/api/places/search", map[string]any{"query": "pizza", "location": "Oakland"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 8, body["count"])
	assert.Len(t, body["results"], 3)

	require.Len(t, f.geo.PlaceQueries, 1)
	assert.Equal(t, uint(geo.DefaultSearchRadius), f.geo.PlaceQueries[0].Radius)

	rec, _ = f.do(t, http.MethodPost, "/api/places/search", map[string]any{"query": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchPlacesUpstreamFailureIsGeneric(t *testing.T) {
	f := newFixture(t, nil, Config{})
	f.geo.Err = assert.AnError

	rec, body := f.do(t, http.MethodPost, "/api/places/search", map[string]any{"query": "pizza"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, body["error"], assert.AnError.Error())
}

func TestPlaceDetailsEndpoint(t *testing.T) {
	f := newFixture(t, nil, Config{})
	f.geo.Details = map[string]*geo.PlaceDetails{
		"abc": {Place: geo.Place{PlaceID: "abc", Name: "Blue Bottle"}, PhoneNumber: "555"},
	}

	rec, body := f.do(t, http.MethodGet, "/api/places/abc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := body["result"].(map[string]any)
	assert.Equal(t, "Blue Bottle", result["name"])
	assert.Equal(t, "555", result["phone_number"])

	rec, body = f.do(t, http.MethodGet, "/api/places/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Place not found", body["error"])
}

func TestDirectionsEndpoint(t *testing.T) {
	f := newFixture(t, nil, Config{})

	rec, body := f.do(t, http.MethodPost, "/api/directions", map[string]any{"origin": "A", "destination": "B"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No route found", body["error"])

	f.geo.Routes = []geo.Route{{Summary: "US-101"}, {Summary: "I-280"}}
	rec, body = f.do(t, http.MethodPost, "/api/directions", map[string]any{"origin": "A", "destination": "B"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["routes"], 2)

	last := f.geo.DirectionQueries[len(f.geo.DirectionQueries)-1]
	assert.Equal(t, geo.TravelModeDriving, last.Mode)
	assert.True(t, last.Alternatives)

	rec, _ = f.do(t, http.MethodPost, "/api/directions", map[string]any{"origin": "A", "destination": "B", "mode": "teleport"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/directions", map[string]any{"origin": "A"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGeocodeEndpoints(t *testing.T) {
	f := newFixture(t, nil, Config{})
	f.geo.Geocodes = map[string]*geo.GeocodeResult{
		"1 Market St": {FormattedAddress: "1 Market St, San Francisco", Location: geo.LatLng{Lat: 37.79, Lng: -122.39}},
	}
	f.geo.Address = "1 Market St, San Francisco"

	rec, body := f.do(t, http.MethodPost, "/api/geocode", map[string]any{"address": "1 Market St"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1 Market St, San Francisco", body["result"].(map[string]any)["formatted_address"])

	rec, _ = f.do(t, http.MethodPost, "/api/geocode", map[string]any{"address": "nowhere"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/api/reverse-geocode?lat=37.79&lng=-122.39", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1 Market St, San Francisco", body["address"])

	rec, _ = f.do(t, http.MethodGet, "/api/reverse-geocode?lat=abc&lng=1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = f.do(t, http.MethodGet, "/api/reverse-geocode?lat=91&lng=1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthConfigAndCapabilities(t *testing.T) {
	f := newFixture(t, nil, Config{MapsConfigured: true, MapsBrowserKey: "browser-key"})

	rec, body := f.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["google_maps_configured"])
	assert.Equal(t, false, body["llm_configured"])

	_, body = f.do(t, http.MethodGet, "/api/config", nil)
	assert.Equal(t, "browser-key", body["google_maps_api_key"])

	rec, _ = f.do(t, http.MethodGet, "/api/capabilities", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var caps []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &caps))
	require.Len(t, caps, 3)
	assert.Equal(t, capmaps.SearchPlaces, caps[0]["name"])
	assert.NotNil(t, caps[0]["json_schema"])
}

func TestMetricsRecordRoutes(t *testing.T) {
	f := newFixture(t, nil, Config{})
	f.do(t, http.MethodGet, "/api/health", nil)

	rec, _ := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `waypoint_http_requests_total{code="200",route="/api/health"} 1`)
}

func TestIndexAndStatic(t *testing.T) {
	f := newFixture(t, nil, Config{})
	rec, body := f.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["message"], "Waypoint")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>waypoint</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))
	f = newFixture(t, nil, Config{StaticDir: dir})

	rec, _ = f.do(t, http.MethodGet, "/", nil)
	assert.Contains(t, rec.Body.String(), "<html>waypoint</html>")
	rec, _ = f.do(t, http.MethodGet, "/static/app.js", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "console.log(1)")
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, "127.0.0.1:0", http.NotFoundHandler(), time.Second)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
