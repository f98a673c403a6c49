package capabilities

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, Arguments) (*Output, error) { return &Output{}, nil }

func searchSchema() Schema {
	return Schema{
		Name:        "search_places",
		Description: "Search for places",
		Kind:        KindSearch,
		Parameters: []Parameter{
			{Name: "query", Type: TypeString, Description: "what to look for", Required: true},
			{Name: "location", Type: TypeString, Description: "where", CallerLocation: true},
			{Name: "radius", Type: TypeInteger, Description: "meters", Default: 5000, Minimum: Bound(1), Maximum: Bound(50000)},
			{Name: "place_type", Type: TypeString, Description: "type", AllowedValues: []string{"cafe", "bar"}},
		},
	}
}

func TestRegisterAndListKeepsOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(searchSchema(), noop))
	require.NoError(t, r.Register(Schema{Name: "get_place_details", Kind: KindLookup,
		Parameters: []Parameter{{Name: "place_id", Type: TypeString, Required: true}}}, noop))
	require.NoError(t, r.Register(Schema{Name: "get_directions", Kind: KindDirections}, noop))

	assert.Equal(t, []string{"search_places", "get_place_details", "get_directions"}, r.Names())
	assert.Equal(t, 3, r.Count())

	list := r.ListCapabilities()
	require.Len(t, list, 3)
	assert.Equal(t, "search_places", list[0].Name)
	assert.Equal(t, list, r.ListCapabilities())
}

func TestRegisterRejectsDuplicatesAndEmptyNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(searchSchema(), noop))
	assert.ErrorIs(t, r.Register(searchSchema(), noop), ErrDuplicateCapability)
	assert.ErrorIs(t, r.Register(Schema{Name: " "}, noop), ErrInvalidSchema)
	assert.ErrorIs(t, r.Register(Schema{Name: "x"}, nil), ErrInvalidSchema)
	assert.ErrorIs(t, r.Register(Schema{Name: "y", Parameters: []Parameter{{Name: "a"}, {Name: "a"}}}, noop), ErrInvalidSchema)
	assert.Equal(t, 1, r.Count())
}

func TestListedSchemasAreCopies(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(searchSchema(), noop))

	list := r.ListCapabilities()
	list[0].Name = "mutated"
	list[0].Parameters[0].Required = false
	list[0].Parameters[3].AllowedValues[0] = "zoo"

	again := r.ListCapabilities()
	assert.Equal(t, "search_places", again[0].Name)
	assert.True(t, again[0].Parameters[0].Required)
	assert.Equal(t, "cafe", again[0].Parameters[3].AllowedValues[0])
}

func TestJSONSchemaRendering(t *testing.T) {
	raw, err := searchSchema().RawJSONSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, []any{"query"}, doc["required"])

	props := doc["properties"].(map[string]any)
	assert.Len(t, props, 4)
	radius := props["radius"].(map[string]any)
	assert.Equal(t, "integer", radius["type"])
	assert.EqualValues(t, 5000, radius["default"])
	assert.EqualValues(t, 1, radius["minimum"])
	assert.EqualValues(t, 50000, radius["maximum"])
	assert.Equal(t, []any{"cafe", "bar"}, props["place_type"].(map[string]any)["enum"])

	// declaration order survives serialization
	s := string(raw)
	assert.Less(t, strings.Index(s, `"query":{`), strings.Index(s, `"location":{`))
	assert.Less(t, strings.Index(s, `"location":{`), strings.Index(s, `"radius":{`))
	assert.Less(t, strings.Index(s, `"radius":{`), strings.Index(s, `"place_type":{`))
}

func TestValidate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(searchSchema(), noop))
	e, ok := r.Lookup("search_places")
	require.True(t, ok)

	require.NoError(t, e.Validate(Arguments{"query": "coffee", "radius": 1000}))

	err := e.Validate(Arguments{"radius": 1000})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "search_places", ve.Capability)
	assert.Contains(t, err.Error(), "query")

	err = e.Validate(Arguments{"query": "coffee", "place_type": "zoo"})
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "place_type")

	err = e.Validate(Arguments{"query": 12})
	require.Error(t, err)

	err = e.Validate(Arguments{"query": "coffee", "radius": 10.5})
	require.Error(t, err)
}

func TestValidateBounds(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(searchSchema(), noop))
	e, _ := r.Lookup("search_places")

	require.NoError(t, e.Validate(Arguments{"query": "coffee", "radius": int64(1)}))
	require.NoError(t, e.Validate(Arguments{"query": "coffee", "radius": int64(50000)}))

	for _, v := range []any{int64(-5), 0, 50001} {
		err := e.Validate(Arguments{"query": "coffee", "radius": v})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, "%v", v)
		assert.Contains(t, err.Error(), "radius")
	}
}

func TestLookupUnknown(t *testing.T) {
	_, ok := NewRegistry().Lookup("teleport")
	assert.False(t, ok)
}
