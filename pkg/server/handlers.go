package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-go-golems/waypoint/pkg/capabilities"
	"github.com/go-go-golems/waypoint/pkg/conversation"
	"github.com/go-go-golems/waypoint/pkg/geo"
	"github.com/go-go-golems/waypoint/pkg/orchestrator"
	"github.com/go-go-golems/waypoint/pkg/shaper"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message             string        `json:"message"`
	ConversationHistory []chatMessage `json:"conversation_history"`
	UserLocation        string        `json:"user_location"`
}

type chatResponse struct {
	Response string      `json:"response"`
	Places   []geo.Place `json:"places"`
	MapData  []geo.Route `json:"map_data"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", string(orchestrator.KindInvalidRequest))
		return
	}

	history := make(conversation.Conversation, 0, len(req.ConversationHistory))
	for i, m := range req.ConversationHistory {
		role, err := conversation.ParseRole(m.Role)
		if err != nil {
			writeError(w, http.StatusBadRequest,
				"conversation_history["+strconv.Itoa(i)+"] has an unknown role", string(orchestrator.KindInvalidRequest))
			return
		}
		content := m.Content
		history = append(history, conversation.Turn{Role: role, Content: &content})
	}

	log.Ctx(r.Context()).Info().Int("message_length", len(req.Message)).Msg("chat request")

	out, err := s.orchestrator.Chat(r.Context(), orchestrator.ChatRequest{
		Message:        req.Message,
		History:        history,
		CallerLocation: strings.TrimSpace(req.UserLocation),
	})
	if err != nil {
		status, msg, kind := chatErrorStatus(err)
		writeError(w, status, msg, kind)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response: out.Answer,
		Places:   out.Places,
		MapData:  out.Routes,
	})
}

type searchRequest struct {
	Query     string `json:"query"`
	Location  string `json:"location"`
	Radius    *uint  `json:"radius"`
	PlaceType string `json:"place_type"`
}

func (s *Server) handleSearchPlaces(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required", "")
		return
	}
	q := geo.PlaceQuery{
		Query:     req.Query,
		Location:  req.Location,
		Radius:    geo.DefaultSearchRadius,
		PlaceType: req.PlaceType,
	}
	if req.Radius != nil {
		q.Radius = *req.Radius
	}

	log.Ctx(r.Context()).Info().Str("query", req.Query).Msg("place search")
	places, err := s.geo.SearchPlaces(r.Context(), q)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("place search failed")
		writeError(w, http.StatusBadGateway, "place search failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(places),
		"results": shaper.ShapePlaces(places, s.config.SearchLimit),
	})
}

func (s *Server) handlePlaceDetails(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "placeID")
	details, err := s.geo.PlaceDetails(r.Context(), placeID)
	if err != nil {
		if errors.Is(err, geo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Place not found", "")
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Str("place_id", placeID).Msg("place details failed")
		writeError(w, http.StatusBadGateway, "place details lookup failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result":  details,
	})
}

type directionsRequest struct {
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	Mode         string `json:"mode"`
	Alternatives *bool  `json:"alternatives"`
}

func validMode(m string) bool {
	for _, tm := range geo.TravelModes {
		if string(tm) == m {
			return true
		}
	}
	return false
}

func (s *Server) handleDirections(w http.ResponseWriter, r *http.Request) {
	var req directionsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.Origin == "" || req.Destination == "" {
		writeError(w, http.StatusBadRequest, "origin and destination are required", "")
		return
	}
	if req.Mode == "" {
		req.Mode = string(geo.TravelModeDriving)
	}
	if !validMode(req.Mode) {
		writeError(w, http.StatusBadRequest, "unsupported travel mode", "")
		return
	}
	alternatives := true
	if req.Alternatives != nil {
		alternatives = *req.Alternatives
	}

	routes, err := s.geo.Directions(r.Context(), geo.DirectionsQuery{
		Origin:       req.Origin,
		Destination:  req.Destination,
		Mode:         geo.TravelMode(req.Mode),
		Alternatives: alternatives,
	})
	if err != nil {
		if errors.Is(err, geo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No route found", "")
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("directions failed")
		writeError(w, http.StatusBadGateway, "directions lookup failed", "")
		return
	}
	if len(routes) == 0 {
		writeError(w, http.StatusNotFound, "No route found", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"routes":  routes,
	})
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := decodeBody(w, r, &req); err != nil || strings.TrimSpace(req.Address) == "" {
		writeError(w, http.StatusBadRequest, "address is required", "")
		return
	}
	res, err := s.geo.Geocode(r.Context(), req.Address)
	if err != nil {
		if errors.Is(err, geo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Address not found", "")
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("geocoding failed")
		writeError(w, http.StatusBadGateway, "geocoding failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": res})
}

func (s *Server) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		writeError(w, http.StatusBadRequest, "lat and lng must be valid coordinates", "")
		return
	}
	addr, err := s.geo.ReverseGeocode(r.Context(), lat, lng)
	if err != nil {
		if errors.Is(err, geo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Address not found", "")
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("reverse geocoding failed")
		writeError(w, http.StatusBadGateway, "reverse geocoding failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "address": addr})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                 "healthy",
		"google_maps_configured": s.config.MapsConfigured,
		"llm_configured":         s.config.LLMConfigured,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"google_maps_api_key": s.config.MapsBrowserKey,
	})
}

type capabilityView struct {
	capabilities.Schema
	JSONSchema *jsonschema.Schema `json:"json_schema"`
}

func (s *Server) handleCapabilities(w http.ResponseWriter, _ *http.Request) {
	caps := s.orchestrator.Capabilities()
	ret := make([]capabilityView, 0, len(caps))
	for _, c := range caps {
		ret = append(ret, capabilityView{Schema: c, JSONSchema: c.JSONSchema()})
	}
	writeJSON(w, http.StatusOK, ret)
}
