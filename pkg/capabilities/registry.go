package capabilities

import (
	"fmt"
	"strings"
	"sync"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrDuplicateCapability = errors.New("capability already registered")
	ErrInvalidSchema       = errors.New("invalid capability schema")
)

// Entry binds a schema to its handler and compiled argument validator.
type Entry struct {
	Schema    Schema
	Handler   Handler
	validator *gojsonschema.Schema
}

// ValidationError lists every way a set of arguments broke the schema.
type ValidationError struct {
	Capability string
	Problems   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Capability, strings.Join(e.Problems, "; "))
}

// Validate checks args against the compiled schema.
func (e *Entry) Validate(args Arguments) error {
	if args == nil {
		args = Arguments{}
	}
	res, err := e.validator.Validate(gojsonschema.NewGoLoader(map[string]any(args)))
	if err != nil {
		return &ValidationError{Capability: e.Schema.Name, Problems: []string{err.Error()}}
	}
	if res.Valid() {
		return nil
	}
	ve := &ValidationError{Capability: e.Schema.Name}
	for _, re := range res.Errors() {
		ve.Problems = append(ve.Problems, re.String())
	}
	return ve
}

// Registry holds the capabilities in registration order. It is written at
// startup and read concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries []*Entry
	byName  map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]*Entry{}}
}

func (r *Registry) Register(s Schema, h Handler) error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.Wrap(ErrInvalidSchema, "capability name is empty")
	}
	if h == nil {
		return errors.Wrapf(ErrInvalidSchema, "capability %s has no handler", s.Name)
	}
	seen := map[string]bool{}
	for _, p := range s.Parameters {
		if p.Name == "" || seen[p.Name] {
			return errors.Wrapf(ErrInvalidSchema, "capability %s has an empty or repeated parameter name", s.Name)
		}
		seen[p.Name] = true
	}

	raw, err := s.RawJSONSchema()
	if err != nil {
		return errors.Wrapf(err, "could not render schema for %s", s.Name)
	}
	v, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return errors.Wrapf(ErrInvalidSchema, "%s: %v", s.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[s.Name]; ok {
		return errors.Wrap(ErrDuplicateCapability, s.Name)
	}
	e := &Entry{Schema: clone.Clone(s).(Schema), Handler: h, validator: v}
	r.entries = append(r.entries, e)
	r.byName[s.Name] = e
	return nil
}

// MustRegister panics on error, for static built-in sets.
func (r *Registry) MustRegister(s Schema, h Handler) {
	if err := r.Register(s, h); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	return e, ok
}

// ListCapabilities returns copies of every schema in registration order.
func (r *Registry) ListCapabilities() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]Schema, 0, len(r.entries))
	for _, e := range r.entries {
		ret = append(ret, clone.Clone(e.Schema).(Schema))
	}
	return ret
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		ret = append(ret, e.Schema.Name)
	}
	return ret
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
