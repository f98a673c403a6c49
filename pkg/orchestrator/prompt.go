package orchestrator

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/go-go-golems/waypoint/pkg/capabilities"
	"github.com/pkg/errors"
)

// DefaultPromptTemplate grounds the model in capability results. It is
// rendered once per exchange.
const DefaultPromptTemplate = `You are a helpful location assistant that helps users find places and get directions.
You have access to real map data through the capabilities listed below.

User's current location: {{ .CallerLocation | default "Not provided" }}

Available capabilities:
{{- range .Capabilities }}
- {{ .Name }}: {{ .Description | trim }}
{{- end }}

CRITICAL INSTRUCTIONS:
1. When the user asks for places "near me", "nearby", or for any kind of recommendation, you MUST call {{ .SearchCapability }}.
2. When the user wants places near them, set the location to "current location"{{ if .CallerLocation }}, which resolves to {{ .CallerLocation }}{{ end }}.
3. DO NOT make up or invent place names, addresses, or ratings.
4. ONLY present places and routes that a capability actually returned.
5. If a capability returns no results or an error, say so. Do not fabricate data.
{{- if .DirectionsCapability }}

When the user asks for directions, call {{ .DirectionsCapability }} using real place names or addresses from earlier results.
{{- end }}
`

type PromptData struct {
	CallerLocation       string
	Capabilities         []capabilities.Schema
	SearchCapability     string
	DirectionsCapability string
}

type PromptRenderer struct {
	tmpl *template.Template
}

// NewPromptRenderer parses text with the sprig function map. An empty text
// selects DefaultPromptTemplate.
func NewPromptRenderer(text string) (*PromptRenderer, error) {
	if text == "" {
		text = DefaultPromptTemplate
	}
	tmpl, err := template.New("system-prompt").
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=zero").
		Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse system prompt template")
	}
	return &PromptRenderer{tmpl: tmpl}, nil
}

func (p *PromptRenderer) Render(data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "could not render system prompt")
	}
	return buf.String(), nil
}

// promptData picks the first search and directions capabilities to name in
// the instructions.
func promptData(callerLocation string, caps []capabilities.Schema) PromptData {
	d := PromptData{
		CallerLocation: callerLocation,
		Capabilities:   caps,
	}
	for _, c := range caps {
		switch {
		case c.Kind == capabilities.KindSearch && d.SearchCapability == "":
			d.SearchCapability = c.Name
		case c.Kind == capabilities.KindDirections && d.DirectionsCapability == "":
			d.DirectionsCapability = c.Name
		}
	}
	if d.SearchCapability == "" {
		d.SearchCapability = "the search capability"
	}
	return d
}
