// Package dispatch turns a named capability request with untrusted arguments
// into a uniform Result. It never returns an error: every failure becomes an
// unsuccessful Result the model can read.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-go-golems/waypoint/pkg/capabilities"
	"github.com/go-go-golems/waypoint/pkg/events"
	"github.com/go-go-golems/waypoint/pkg/geo"
	"github.com/go-go-golems/waypoint/pkg/metrics"
	"github.com/go-go-golems/waypoint/pkg/shaper"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout    = 15 * time.Second
	DefaultPlaceLimit = 5

	// CurrentLocation is what the model writes when it means the caller's
	// own position.
	CurrentLocation = "current location"
)

// CallContext carries per-exchange facts the dispatcher needs.
type CallContext struct {
	CallerLocation string
	InvocationID   string
	Meta           events.Metadata
}

type Dispatcher struct {
	registry   *capabilities.Registry
	timeout    time.Duration
	placeLimit int
	metrics    *metrics.Recorder
}

type Option func(*Dispatcher)

func WithTimeout(d time.Duration) Option {
	return func(o *Dispatcher) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithPlaceLimit sets how many places a search result keeps.
func WithPlaceLimit(n int) Option {
	return func(o *Dispatcher) {
		o.placeLimit = n
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(o *Dispatcher) {
		o.metrics = m
	}
}

func NewDispatcher(registry *capabilities.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:   registry,
		timeout:    DefaultTimeout,
		placeLimit: DefaultPlaceLimit,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Dispatcher) Registry() *capabilities.Registry {
	return d.registry
}

// Dispatch validates and runs one capability call.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, arguments map[string]any, cc CallContext) *Result {
	start := time.Now()
	logger := log.Ctx(ctx).With().
		Str("capability", name).
		Str("invocation_id", cc.InvocationID).
		Logger()

	argsJSON, _ := json.Marshal(arguments)
	events.PublishEventToContext(ctx, events.NewCapabilityCallEvent(cc.Meta, cc.InvocationID, name, argsJSON))

	res := d.dispatch(ctx, name, arguments, cc)

	elapsed := time.Since(start)
	d.metrics.ObserveDispatch(name, string(res.ErrorKind), elapsed)
	events.PublishEventToContext(ctx, events.NewCapabilityResultEvent(
		cc.Meta, cc.InvocationID, name, res.Success, string(res.ErrorKind), elapsed))

	ev := logger.Debug()
	if !res.Success {
		ev = logger.Info().Str("error_kind", string(res.ErrorKind))
	}
	ev.Dur("duration", elapsed).Bool("success", res.Success).Msg("capability dispatched")
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, name string, arguments map[string]any, cc CallContext) *Result {
	entry, ok := d.registry.Lookup(name)
	if !ok {
		return failure(name, "", ErrorKindUnknownCapability,
			fmt.Sprintf("unknown capability %q, available: %s", name, strings.Join(d.registry.Names(), ", ")))
	}
	schema := entry.Schema

	args := normalize(schema, arguments, cc.CallerLocation)
	if err := entry.Validate(args); err != nil {
		return failure(name, schema.Kind, ErrorKindInvalidArguments, err.Error())
	}

	out, err := d.invoke(ctx, entry, args)
	if err != nil {
		return d.classify(ctx, name, schema.Kind, err)
	}
	return d.pack(name, schema.Kind, out)
}

// normalize returns a copy of args with caller location substituted,
// defaults applied and stringly-typed scalars coerced.
func normalize(schema capabilities.Schema, arguments map[string]any, callerLocation string) capabilities.Arguments {
	args := capabilities.Arguments{}
	for k, v := range arguments {
		args[k] = v
	}

	for _, p := range schema.Parameters {
		v, present := args[p.Name]

		if p.CallerLocation && (!present || isCurrentLocation(v)) {
			if callerLocation != "" {
				args[p.Name] = callerLocation
			} else {
				delete(args, p.Name)
			}
			v, present = args[p.Name]
		}

		if (!present || v == nil) && p.Default != nil {
			args[p.Name] = p.Default
			continue
		}
		if present && v == nil {
			delete(args, p.Name)
			continue
		}
		if s, ok := v.(string); ok {
			args[p.Name] = coerce(p.Type, s)
		}
	}
	return args
}

func isCurrentLocation(v any) bool {
	s, ok := v.(string)
	return ok && strings.EqualFold(strings.TrimSpace(s), CurrentLocation)
}

// coerce converts s to the declared scalar type, leaving it untouched when
// it does not parse so validation can report it.
func coerce(t capabilities.ParameterType, s string) any {
	s2 := strings.TrimSpace(s)
	switch t {
	case capabilities.TypeInteger:
		if i, err := strconv.ParseInt(s2, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s2, 64); err == nil && f == float64(int64(f)) {
			return int64(f)
		}
	case capabilities.TypeNumber:
		if f, err := strconv.ParseFloat(s2, 64); err == nil {
			return f
		}
	case capabilities.TypeBoolean:
		if b, err := strconv.ParseBool(s2); err == nil {
			return b
		}
	case capabilities.TypeString:
	}
	return s
}

type outcome struct {
	out *capabilities.Output
	err error
}

func (d *Dispatcher) invoke(ctx context.Context, entry *capabilities.Entry, args capabilities.Arguments) (*capabilities.Output, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Ctx(ctx).Error().Interface("panic", r).Str("capability", entry.Schema.Name).Msg("capability handler panicked")
				ch <- outcome{err: errors.Errorf("handler panicked: %v", r)}
			}
		}()
		out, err := entry.Handler(ctx, args)
		ch <- outcome{out: out, err: err}
	}()

	select {
	case o := <-ch:
		if o.err == nil && o.out == nil {
			return nil, errors.New("handler returned no output")
		}
		return o.out, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Dispatcher) classify(ctx context.Context, name string, kind capabilities.Kind, err error) *Result {
	switch {
	case errors.Is(err, geo.ErrNotFound):
		msg := "no results found"
		if kind == capabilities.KindDirections {
			msg = "no route found"
		}
		return failure(name, kind, ErrorKindNotFound, msg)
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return failure(name, kind, ErrorKindTimeout,
			fmt.Sprintf("%s did not answer within %s", name, d.timeout))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return failure(name, kind, ErrorKindExecutionFailed, fmt.Sprintf("%s was cancelled", name))
	}
	log.Ctx(ctx).Warn().Err(err).Str("capability", name).Msg("capability failed")
	return failure(name, kind, ErrorKindExecutionFailed, fmt.Sprintf("%s failed, the lookup service is unavailable", name))
}

func (d *Dispatcher) pack(name string, kind capabilities.Kind, out *capabilities.Output) *Result {
	r := &Result{
		Capability: name,
		Kind:       kind,
		Success:    true,
		Payload:    map[string]any{},
	}
	switch kind {
	case capabilities.KindSearch:
		r.Places = shaper.ShapePlaces(out.Places, d.placeLimit)
		r.Payload["places"] = r.Places
		r.Payload["count"] = len(out.Places)
	case capabilities.KindDirections:
		r.Routes = out.Routes
		r.Payload["routes"] = r.Routes
	case capabilities.KindLookup:
		r.Place = out.Place
		r.Payload["place"] = r.Place
	default:
		if out.Places != nil {
			r.Payload["places"] = out.Places
		}
		if out.Routes != nil {
			r.Payload["routes"] = out.Routes
		}
		if out.Place != nil {
			r.Payload["place"] = out.Place
		}
	}
	return r
}
