// Package orchestrator runs one chat exchange: a first completion call that
// may request a capability, at most one dispatch, and a second completion
// call that turns the capability result into the final answer.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-go-golems/waypoint/pkg/capabilities"
	"github.com/go-go-golems/waypoint/pkg/completion"
	"github.com/go-go-golems/waypoint/pkg/conversation"
	"github.com/go-go-golems/waypoint/pkg/dispatch"
	"github.com/go-go-golems/waypoint/pkg/events"
	"github.com/go-go-golems/waypoint/pkg/geo"
	"github.com/go-go-golems/waypoint/pkg/metrics"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultCompletionTimeout = 60 * time.Second

type ChatRequest struct {
	Message string
	History conversation.Conversation
	// CallerLocation is passed to the model and to capabilities verbatim,
	// usually "lat,lng". Empty when unknown.
	CallerLocation string
}

type ChatOutcome struct {
	ExchangeID string
	Answer     string
	// Places is set when a search capability succeeded.
	Places []geo.Place
	// Routes is set when a directions capability succeeded.
	Routes []geo.Route
	// Capability is the dispatch result, nil on the direct-answer path.
	Capability *dispatch.Result
}

type Orchestrator struct {
	provider          completion.Provider
	dispatcher        *dispatch.Dispatcher
	prompt            *PromptRenderer
	completionTimeout time.Duration
	metrics           *metrics.Recorder
	model             string
}

type Option func(*Orchestrator) error

func WithCompletionTimeout(d time.Duration) Option {
	return func(o *Orchestrator) error {
		if d > 0 {
			o.completionTimeout = d
		}
		return nil
	}
}

// WithPromptTemplate overrides DefaultPromptTemplate.
func WithPromptTemplate(text string) Option {
	return func(o *Orchestrator) error {
		p, err := NewPromptRenderer(text)
		if err != nil {
			return err
		}
		o.prompt = p
		return nil
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(o *Orchestrator) error {
		o.metrics = m
		return nil
	}
}

// WithModelName is recorded in event metadata.
func WithModelName(model string) Option {
	return func(o *Orchestrator) error {
		o.model = model
		return nil
	}
}

func New(provider completion.Provider, dispatcher *dispatch.Dispatcher, options ...Option) (*Orchestrator, error) {
	if provider == nil {
		return nil, errors.New("no completion provider")
	}
	if dispatcher == nil {
		return nil, errors.New("no dispatcher")
	}
	o := &Orchestrator{
		provider:          provider,
		dispatcher:        dispatcher,
		completionTimeout: DefaultCompletionTimeout,
	}
	for _, opt := range options {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.prompt == nil {
		p, err := NewPromptRenderer("")
		if err != nil {
			return nil, err
		}
		o.prompt = p
	}
	return o, nil
}

// Capabilities lists what gets advertised to the model.
func (o *Orchestrator) Capabilities() []capabilities.Schema {
	return o.dispatcher.Registry().ListCapabilities()
}

// Chat runs one exchange. Errors are always *Error.
func (o *Orchestrator) Chat(ctx context.Context, req ChatRequest) (*ChatOutcome, error) {
	start := time.Now()
	exchangeID := uuid.NewString()
	logger := log.Ctx(ctx).With().Str("exchange_id", exchangeID).Logger()
	ctx = logger.WithContext(ctx)
	meta := events.Metadata{ExchangeID: exchangeID, Model: o.model, Time: start}

	events.PublishEventToContext(ctx, events.NewExchangeStartEvent(meta, req.Message, req.CallerLocation, len(req.History)))
	logger.Info().
		Int("history_length", len(req.History)).
		Bool("has_location", req.CallerLocation != "").
		Msg("chat exchange started")

	outcome, err := o.chat(ctx, exchangeID, meta, req)

	elapsed := time.Since(start)
	if err != nil {
		var oe *Error
		if !errors.As(err, &oe) {
			oe = newError(KindProviderUnavailable, "", err)
		}
		logger.Error().Err(oe.Err).
			Str("kind", string(oe.Kind)).
			Str("phase", string(oe.Phase)).
			Dur("duration", elapsed).
			Msg("chat exchange failed")
		events.PublishEventToContext(ctx, events.NewExchangeErrorEvent(meta, string(oe.Kind), oe))
		o.metrics.ObserveExchange(string(oe.Kind), elapsed)
		return nil, oe
	}

	label := "direct"
	if outcome.Capability != nil {
		label = "invocation"
	}
	o.metrics.ObserveExchange(label, elapsed)
	events.PublishEventToContext(ctx, events.NewExchangeFinalEvent(meta, outcome.Answer, len(outcome.Places), len(outcome.Routes)))
	logger.Info().Str("path", label).Dur("duration", elapsed).Msg("chat exchange finished")
	return outcome, nil
}

func (o *Orchestrator) chat(ctx context.Context, exchangeID string, meta events.Metadata, req ChatRequest) (*ChatOutcome, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, newError(KindInvalidRequest, PhaseValidate, errors.New("message is empty"))
	}
	if err := conversation.ValidatePairing(req.History); err != nil {
		return nil, newError(KindInvalidRequest, PhaseValidate, errors.Wrap(err, "invalid conversation history"))
	}

	caps := o.dispatcher.Registry().ListCapabilities()
	system, err := o.prompt.Render(promptData(req.CallerLocation, caps))
	if err != nil {
		return nil, newError(KindProviderUnavailable, PhaseValidate, err)
	}

	conv := make(conversation.Conversation, 0, len(req.History)+4)
	conv = append(conv, conversation.NewSystemTurn(system))
	conv = append(conv, req.History.Clone()...)
	conv = append(conv, conversation.NewUserTurn(req.Message))

	reply, err := o.complete(ctx, PhaseFirstCompletion, completion.Request{
		Messages:        conv,
		Capabilities:    caps,
		AllowInvocation: true,
	})
	if err != nil {
		return nil, err
	}

	var inv completion.InvocationRequest
	switch r := reply.(type) {
	case completion.DirectAnswer:
		return &ChatOutcome{ExchangeID: exchangeID, Answer: r.Text}, nil
	case *completion.DirectAnswer:
		return &ChatOutcome{ExchangeID: exchangeID, Answer: r.Text}, nil
	case completion.InvocationRequest:
		inv = r
	case *completion.InvocationRequest:
		inv = *r
	default:
		return nil, newError(KindProviderUnavailable, PhaseFirstCompletion,
			errors.Wrapf(completion.ErrMalformedResponse, "unexpected reply type %T", reply))
	}

	args, raw, err := parseArguments(inv.Arguments)
	if err != nil {
		return nil, newError(KindMalformedInvocation, PhaseParseInvocation,
			errors.Wrapf(err, "arguments for %s", inv.Name))
	}

	zerolog.Ctx(ctx).Debug().Str("capability", inv.Name).Str("invocation_id", inv.ID).Msg("model requested capability")
	result := o.dispatcher.Dispatch(ctx, inv.Name, args, dispatch.CallContext{
		CallerLocation: req.CallerLocation,
		InvocationID:   inv.ID,
		Meta:           meta,
	})

	conv = append(conv,
		conversation.NewInvocationTurn(conversation.Invocation{ID: inv.ID, Name: inv.Name, Arguments: raw}),
		conversation.NewToolTurn(inv.ID, inv.Name, result.JSON()),
	)
	if err := conversation.ValidatePairing(conv); err != nil {
		return nil, newError(KindProviderUnavailable, PhaseSecondCompletion, err)
	}
	if ctx.Err() != nil {
		return nil, classify(ctx, PhaseSecondCompletion, ctx.Err())
	}

	reply, err = o.complete(ctx, PhaseSecondCompletion, completion.Request{
		Messages:        conv,
		AllowInvocation: false,
	})
	if err != nil {
		return nil, err
	}

	outcome := &ChatOutcome{ExchangeID: exchangeID, Capability: result}
	switch r := reply.(type) {
	case completion.DirectAnswer:
		outcome.Answer = r.Text
	case *completion.DirectAnswer:
		outcome.Answer = r.Text
	default:
		return nil, newError(KindProviderUnavailable, PhaseSecondCompletion,
			errors.Wrap(completion.ErrMalformedResponse, "provider requested another capability"))
	}

	if result.Success {
		switch result.Kind {
		case capabilities.KindSearch:
			outcome.Places = result.Places
		case capabilities.KindDirections:
			outcome.Routes = result.Routes
		case capabilities.KindLookup:
		}
	}
	return outcome, nil
}

func (o *Orchestrator) complete(ctx context.Context, phase Phase, req completion.Request) (completion.Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, o.completionTimeout)
	defer cancel()

	start := time.Now()
	reply, err := o.provider.Complete(ctx, req)
	o.metrics.ObserveCompletion(string(phase), err, time.Since(start))
	if err != nil {
		return nil, classify(ctx, phase, err)
	}
	if reply == nil {
		return nil, newError(KindProviderUnavailable, phase, errors.Wrap(completion.ErrMalformedResponse, "empty reply"))
	}
	return reply, nil
}

// classify maps a provider or context error onto an error kind.
func classify(ctx context.Context, phase Phase, err error) *Error {
	switch {
	case errors.Is(err, context.Canceled):
		return newError(KindCanceled, phase, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return newError(KindUpstreamTimeout, phase, err)
	}
	return newError(KindProviderUnavailable, phase, err)
}

// parseArguments decodes the model's argument payload. An empty payload is
// an empty object; anything that is not a JSON object is an error.
func parseArguments(s string) (map[string]any, json.RawMessage, error) {
	trimmed := bytes.TrimSpace([]byte(s))
	if len(trimmed) == 0 {
		return map[string]any{}, json.RawMessage("{}"), nil
	}
	var args map[string]any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if err := dec.Decode(&args); err != nil {
		return nil, nil, errors.Wrap(err, "not a JSON object")
	}
	if dec.More() {
		return nil, nil, errors.New("trailing data after JSON object")
	}
	if args == nil {
		return nil, nil, errors.New("arguments are null")
	}
	return args, json.RawMessage(trimmed), nil
}
