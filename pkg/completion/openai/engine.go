// Package openai implements completion.Provider for any OpenAI-compatible
// chat-completions endpoint (OpenAI, Ollama, vLLM, ...).
package openai

import (
	"context"
	"net/http"

	"github.com/go-go-golems/waypoint/pkg/completion"
	"github.com/go-go-golems/waypoint/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// placeholderAPIKey is sent to local servers that do not check keys.
const placeholderAPIKey = "not-needed"

type Engine struct {
	client      *go_openai.Client
	model       string
	temperature *float32
}

var _ completion.Provider = (*Engine)(nil)

type Option func(*Engine)

func WithTemperature(t float32) Option {
	return func(e *Engine) {
		e.temperature = &t
	}
}

// WithClient replaces the client built from the base URL and key.
func WithClient(c *go_openai.Client) Option {
	return func(e *Engine) {
		e.client = c
	}
}

func WithHTTPClient(c *http.Client, baseURL, apiKey string) Option {
	return func(e *Engine) {
		e.client = MakeClient(baseURL, apiKey, c)
	}
}

func MakeClient(baseURL, apiKey string, httpClient *http.Client) *go_openai.Client {
	if apiKey == "" {
		apiKey = placeholderAPIKey
	}
	config := go_openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if httpClient != nil {
		config.HTTPClient = httpClient
	}
	return go_openai.NewClientWithConfig(config)
}

func NewEngine(baseURL, apiKey, model string, options ...Option) (*Engine, error) {
	if model == "" {
		return nil, errors.New("no model specified")
	}
	e := &Engine{
		model: model,
	}
	for _, o := range options {
		o(e)
	}
	if e.client == nil {
		e.client = MakeClient(baseURL, apiKey, nil)
	}
	return e, nil
}

func (e *Engine) Model() string {
	return e.model
}

func (e *Engine) Complete(ctx context.Context, req completion.Request) (completion.Reply, error) {
	oreq, err := e.makeRequest(req)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Debug().
		Str("model", oreq.Model).
		Int("message_count", len(oreq.Messages)).
		Int("tool_count", len(oreq.Tools)).
		Msg("OpenAI chat completion request")

	resp, err := e.client.CreateChatCompletion(ctx, *oreq)
	if err != nil {
		return nil, wrapError(ctx, err)
	}
	return replyFromResponse(resp)
}

func (e *Engine) makeRequest(req completion.Request) (*go_openai.ChatCompletionRequest, error) {
	msgs, err := MessagesFromConversation(req.Messages)
	if err != nil {
		return nil, err
	}

	oreq := &go_openai.ChatCompletionRequest{
		Model:    e.model,
		Messages: msgs,
	}
	if e.temperature != nil {
		oreq.Temperature = *e.temperature
	}

	if req.AllowInvocation && len(req.Capabilities) > 0 {
		tools := make([]go_openai.Tool, 0, len(req.Capabilities))
		for _, c := range req.Capabilities {
			tools = append(tools, go_openai.Tool{
				Type: go_openai.ToolTypeFunction,
				Function: &go_openai.FunctionDefinition{
					Name:        c.Name,
					Description: c.Description,
					Parameters:  c.JSONSchema(),
				},
			})
		}
		oreq.Tools = tools
		oreq.ToolChoice = "auto"
	}
	return oreq, nil
}

// MessagesFromConversation maps turns onto chat messages. Invocation turns
// become assistant messages with one tool call.
func MessagesFromConversation(c conversation.Conversation) ([]go_openai.ChatCompletionMessage, error) {
	ret := make([]go_openai.ChatCompletionMessage, 0, len(c))
	for i, t := range c {
		switch t.Role {
		case conversation.RoleSystem, conversation.RoleUser:
			ret = append(ret, go_openai.ChatCompletionMessage{Role: string(t.Role), Content: t.Text()})
		case conversation.RoleAssistant:
			m := go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleAssistant, Content: t.Text()}
			if t.Invocation != nil {
				args := string(t.Invocation.Arguments)
				if args == "" {
					args = "{}"
				}
				m.ToolCalls = []go_openai.ToolCall{{
					ID:   t.Invocation.ID,
					Type: go_openai.ToolTypeFunction,
					Function: go_openai.FunctionCall{
						Name:      t.Invocation.Name,
						Arguments: args,
					},
				}}
			}
			ret = append(ret, m)
		case conversation.RoleTool:
			ret = append(ret, go_openai.ChatCompletionMessage{
				Role:       go_openai.ChatMessageRoleTool,
				Content:    t.Text(),
				ToolCallID: t.InvocationID,
				Name:       t.Name,
			})
		default:
			return nil, errors.Errorf("turn %d has unsupported role %q", i, t.Role)
		}
	}
	return ret, nil
}

func replyFromResponse(resp go_openai.ChatCompletionResponse) (completion.Reply, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.Wrap(completion.ErrMalformedResponse, "response has no choices")
	}
	msg := resp.Choices[0].Message

	calls := msg.ToolCalls
	if len(calls) == 0 && msg.FunctionCall != nil {
		// legacy function_call replies from older servers
		calls = []go_openai.ToolCall{{
			ID:       "call_" + msg.FunctionCall.Name,
			Type:     go_openai.ToolTypeFunction,
			Function: *msg.FunctionCall,
		}}
	}
	if len(calls) > 0 {
		if len(calls) > 1 {
			log.Warn().Int("tool_call_count", len(calls)).
				Str("first", calls[0].Function.Name).
				Msg("Provider requested several capabilities, only the first is executed")
		}
		call := calls[0]
		if call.Function.Name == "" {
			return nil, errors.Wrap(completion.ErrMalformedResponse, "tool call without a function name")
		}
		id := call.ID
		if id == "" {
			id = "call_0"
		}
		return completion.InvocationRequest{
			ID:        id,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		}, nil
	}
	return completion.DirectAnswer{Text: msg.Content}, nil
}

// wrapError keeps context errors matchable. API errors are reduced to their
// status code; the provider's message is only logged.
func wrapError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrap(ctxErr, "chat completion aborted")
	}
	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		log.Ctx(ctx).Error().Err(err).Int("status", apiErr.HTTPStatusCode).Msg("OpenAI API error")
		return errors.Errorf("completion provider returned status %d", apiErr.HTTPStatusCode)
	}
	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		log.Ctx(ctx).Error().Err(err).Int("status", reqErr.HTTPStatusCode).Msg("OpenAI request error")
		return errors.Errorf("completion provider returned status %d", reqErr.HTTPStatusCode)
	}
	return errors.Wrap(err, "chat completion failed")
}
