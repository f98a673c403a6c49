// Package capabilities declares the lookups the assistant may invoke and binds
// each one to the handler that performs it.
package capabilities

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/go-go-golems/waypoint/pkg/geo"
	"github.com/invopop/jsonschema"
)

// Kind tells the dispatcher how to post-process a capability's output.
type Kind string

const (
	KindSearch     Kind = "search"
	KindDirections Kind = "directions"
	KindLookup     Kind = "lookup"
)

type ParameterType string

const (
	TypeString  ParameterType = "string"
	TypeInteger ParameterType = "integer"
	TypeNumber  ParameterType = "number"
	TypeBoolean ParameterType = "boolean"
)

type Parameter struct {
	Name          string        `json:"name" yaml:"name"`
	Type          ParameterType `json:"type" yaml:"type"`
	Description   string        `json:"description" yaml:"description"`
	Required      bool          `json:"required,omitempty" yaml:"required,omitempty"`
	Default       any           `json:"default,omitempty" yaml:"default,omitempty"`
	AllowedValues []string      `json:"allowed_values,omitempty" yaml:"allowed_values,omitempty"`
	// inclusive bounds for integer and number parameters
	Minimum *float64 `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	// CallerLocation marks parameters that receive the caller's own location
	// when the model says "current location" or leaves them out.
	CallerLocation bool `json:"caller_location,omitempty" yaml:"caller_location,omitempty"`
}

type Schema struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	Kind        Kind        `json:"kind" yaml:"kind"`
	Parameters  []Parameter `json:"parameters" yaml:"parameters"`
}

// Parameter returns the declared parameter called name.
func (s Schema) Parameter(name string) (Parameter, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// JSONSchema renders the parameter list as an object schema, properties in
// declaration order. This is what gets advertised to the completion provider.
func (s Schema) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	required := []string{}
	for _, p := range s.Parameters {
		ps := &jsonschema.Schema{
			Type:        string(p.Type),
			Description: p.Description,
			Default:     p.Default,
		}
		for _, v := range p.AllowedValues {
			ps.Enum = append(ps.Enum, v)
		}
		if p.Minimum != nil {
			ps.Minimum = json.Number(strconv.FormatFloat(*p.Minimum, 'f', -1, 64))
		}
		if p.Maximum != nil {
			ps.Maximum = json.Number(strconv.FormatFloat(*p.Maximum, 'f', -1, 64))
		}
		props.Set(p.Name, ps)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// RawJSONSchema is JSONSchema serialized.
func (s Schema) RawJSONSchema() (json.RawMessage, error) {
	return json.Marshal(s.JSONSchema())
}

// Arguments are the normalized, validated arguments a handler receives.
type Arguments map[string]any

// Output is what a handler produced. Only the field matching the
// capability's kind is set.
type Output struct {
	Places []geo.Place
	Routes []geo.Route
	Place  *geo.PlaceDetails
}

type Handler func(ctx context.Context, args Arguments) (*Output, error)

// Bound is a convenience for Parameter.Minimum and Parameter.Maximum.
func Bound(v float64) *float64 {
	return &v
}
