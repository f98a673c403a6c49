package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-go-golems/waypoint/pkg/orchestrator"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// StatusClientClosedRequest is used when the caller went away mid-exchange.
const StatusClientClosedRequest = 499

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("could not encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "invalid request body")
	}
	return nil
}

// chatErrorStatus maps orchestration failures to a status and a message that
// carries no upstream detail.
func chatErrorStatus(err error) (int, string, string) {
	var oe *orchestrator.Error
	if !errors.As(err, &oe) {
		return http.StatusInternalServerError, "chat processing failed", ""
	}
	switch oe.Kind {
	case orchestrator.KindInvalidRequest:
		// validation messages are our own, never upstream text
		return http.StatusBadRequest, "invalid chat request: " + oe.Err.Error(), string(oe.Kind)
	case orchestrator.KindUpstreamTimeout:
		return http.StatusGatewayTimeout, "the assistant did not answer in time", string(oe.Kind)
	case orchestrator.KindCanceled:
		return StatusClientClosedRequest, "request cancelled", string(oe.Kind)
	case orchestrator.KindProviderUnavailable, orchestrator.KindMalformedInvocation:
		return http.StatusBadGateway, "the assistant is unavailable", string(oe.Kind)
	}
	return http.StatusInternalServerError, "chat processing failed", string(oe.Kind)
}
