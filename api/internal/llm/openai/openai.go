// Package openai calls the OpenAI chat-completions endpoint through the
// go-openai SDK.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"policy-fund-backend/api/internal/llm"
)

const DefaultModel = "gpt-4o-mini"

// ChatClient is the part of *goopenai.Client the engine needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

type Engine struct {
	Model  string
	client ChatClient
}

// New builds the SDK client once. baseURL may be empty (api.openai.com); the
// /v1 suffix is added when missing.
func New(key, model, baseURL string, httpc *http.Client) (*Engine, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, llm.MissingCredential("OPENAI_API_KEY")
	}
	cfg := goopenai.DefaultConfig(key)
	if u := strings.TrimRight(strings.TrimSpace(baseURL), "/"); u != "" {
		if !strings.HasSuffix(u, "/v1") {
			u += "/v1"
		}
		cfg.BaseURL = u
	}
	if httpc != nil {
		cfg.HTTPClient = httpc
	}
	return NewWithClient(goopenai.NewClientWithConfig(cfg), model), nil
}

func NewWithClient(c ChatClient, model string) *Engine {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Engine{Model: strings.TrimSpace(model), client: c}
}

func (e *Engine) Name() string     { return llm.ProviderOpenAIChat }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Generate(ctx context.Context, p llm.Prompt) (llm.Reply, error) {
	req := goopenai.ChatCompletionRequest{
		Model:               e.Model,
		MaxCompletionTokens: p.MaxOutputTokens,
	}
	if p.System != "" {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: p.System,
		})
	}
	req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: p.User,
	})

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return llm.Reply{}, upstreamError(err)
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return llm.Reply{}, fmt.Errorf("encode chat completion: %w", err)
	}
	return llm.Reply{Kind: llm.ReplyOpenAIChat, Raw: raw}, nil
}

func upstreamError(err error) error {
	if llm.IsTimeout(err) {
		return llm.Classify(llm.ProviderOpenAIChat, err)
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		ue := &llm.UpstreamError{
			Provider: llm.ProviderOpenAIChat,
			Status:   apiErr.HTTPStatusCode,
			Message:  apiErr.Message,
		}
		if detail, mErr := json.Marshal(map[string]any{"error": apiErr}); mErr == nil {
			ue.Detail = detail
		}
		return ue
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		msg := fmt.Sprintf("OpenAI API error (status %d)", reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &llm.UpstreamError{
			Provider: llm.ProviderOpenAIChat,
			Status:   reqErr.HTTPStatusCode,
			Message:  msg,
		}
	}

	return llm.Classify(llm.ProviderOpenAIChat, err)
}
