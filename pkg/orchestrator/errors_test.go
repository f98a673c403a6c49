package orchestrator

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKindSentinels(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := errors.Wrap(newError(KindProviderUnavailable, PhaseFirstCompletion, cause), "chat")

	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.NotErrorIs(t, err, ErrUpstreamTimeout)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "first-completion")
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, KindCanceled, classify(ctx, PhaseFirstCompletion, errors.Wrap(context.Canceled, "x")).Kind)
	assert.Equal(t, KindUpstreamTimeout, classify(ctx, PhaseFirstCompletion, errors.Wrap(context.DeadlineExceeded, "x")).Kind)
	assert.Equal(t, KindProviderUnavailable, classify(ctx, PhaseFirstCompletion, errors.New("502")).Kind)
}

func TestParseArguments(t *testing.T) {
	args, raw, err := parseArguments(`  {"query":"coffee","radius":500} `)
	assert.NoError(t, err)
	assert.Equal(t, "coffee", args["query"])
	assert.JSONEq(t, `{"query":"coffee","radius":500}`, string(raw))

	args, raw, err = parseArguments("")
	assert.NoError(t, err)
	assert.Empty(t, args)
	assert.Equal(t, "{}", string(raw))
}
