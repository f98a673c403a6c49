// Package completion is the boundary to the conversational model.
package completion

import (
	"context"
	"errors"

	"github.com/go-go-golems/waypoint/pkg/capabilities"
	"github.com/go-go-golems/waypoint/pkg/conversation"
)

// ErrMalformedResponse is returned when the provider answered with something
// that is neither text nor a capability request.
var ErrMalformedResponse = errors.New("malformed completion response")

type Request struct {
	Messages conversation.Conversation
	// Capabilities are advertised only when AllowInvocation is set.
	Capabilities    []capabilities.Schema
	AllowInvocation bool
}

// Reply is either a DirectAnswer or an InvocationRequest.
type Reply interface {
	isReply()
}

type DirectAnswer struct {
	Text string
}

// InvocationRequest is the model asking for a capability. Arguments is the
// raw, untrusted argument payload.
type InvocationRequest struct {
	ID        string
	Name      string
	Arguments string
}

func (DirectAnswer) isReply()      {}
func (InvocationRequest) isReply() {}

type Provider interface {
	Complete(ctx context.Context, req Request) (Reply, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) (Reply, error)

func (f ProviderFunc) Complete(ctx context.Context, req Request) (Reply, error) {
	return f(ctx, req)
}
