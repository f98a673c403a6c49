package dispatch

import (
	"encoding/json"

	"github.com/go-go-golems/waypoint/pkg/capabilities"
	"github.com/go-go-golems/waypoint/pkg/geo"
)

// ErrorKind classifies a failed dispatch. These never abort an exchange;
// they are reported back to the model in the tool turn.
type ErrorKind string

const (
	ErrorKindUnknownCapability ErrorKind = "unknown_capability"
	ErrorKindInvalidArguments  ErrorKind = "invalid_arguments"
	ErrorKindNotFound          ErrorKind = "not_found"
	ErrorKindTimeout           ErrorKind = "timeout"
	ErrorKindExecutionFailed   ErrorKind = "execution_failed"
)

// Result is the uniform envelope of one capability call. Only the exported
// JSON fields are shown to the model.
type Result struct {
	Capability string         `json:"capability"`
	Success    bool           `json:"success"`
	Payload    map[string]any `json:"payload,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  ErrorKind      `json:"error_kind,omitempty"`

	Kind   capabilities.Kind `json:"-"`
	Places []geo.Place       `json:"-"`
	Routes []geo.Route       `json:"-"`
	Place  *geo.PlaceDetails `json:"-"`
}

func failure(name string, kind capabilities.Kind, ek ErrorKind, msg string) *Result {
	return &Result{
		Capability: name,
		Kind:       kind,
		Success:    false,
		Error:      msg,
		ErrorKind:  ek,
	}
}

// JSON serializes the envelope for a tool turn.
func (r *Result) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		// payloads are plain data; this only trips on a broken handler
		b, _ = json.Marshal(failure(r.Capability, r.Kind, ErrorKindExecutionFailed, "result could not be serialized"))
	}
	return string(b)
}
