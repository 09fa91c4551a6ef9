// Package gpt calls the OpenAI Responses API over plain HTTP.
package gpt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"policy-fund-backend/api/internal/llm"
)

const (
	DefaultBaseURL = "https://api.openai.com"
	DefaultModel   = "gpt-5-mini"
	DefaultEffort  = "medium"
)

type Engine struct {
	apiKey  string
	model   string
	effort  string
	baseURL string
	httpc   *http.Client
}

// New validates the credential up front; an empty key yields
// llm.ErrConfiguration.
func New(key, model, effort, baseURL string) (*Engine, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, llm.MissingCredential("OPENAI_API_KEY")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if strings.TrimSpace(effort) == "" {
		effort = DefaultEffort
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}

	return &Engine{
		apiKey:  key,
		model:   strings.TrimSpace(model),
		effort:  strings.TrimSpace(effort),
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		// the request context carries the deadline
		httpc: &http.Client{Transport: tr},
	}, nil
}

// WithHTTPClient overrides the internal HTTP client (e.g., for custom timeouts or tracing).
func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	if c != nil {
		e.httpc = c
	}
	return e
}

func (e *Engine) Name() string     { return llm.ProviderOpenAIResponses }
func (e *Engine) GetModel() string { return e.model }

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model           string         `json:"model"`
	Input           []inputMessage `json:"input"`
	Reasoning       *reasoning     `json:"reasoning,omitempty"`
	MaxOutputTokens int            `json:"max_output_tokens,omitempty"`
}

type reasoning struct {
	Effort string `json:"effort"`
}

func (e *Engine) Generate(ctx context.Context, p llm.Prompt) (llm.Reply, error) {
	body := responsesRequest{
		Model:           e.model,
		MaxOutputTokens: p.MaxOutputTokens,
	}
	if p.System != "" {
		body.Input = append(body.Input, inputMessage{Role: "system", Content: p.System})
	}
	body.Input = append(body.Input, inputMessage{Role: "user", Content: p.User})
	if e.effort != "none" {
		body.Reasoning = &reasoning{Effort: e.effort}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return llm.Reply{}, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/responses", bytes.NewReader(payload))
	if err != nil {
		return llm.Reply{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return llm.Reply{}, llm.Classify(e.Name(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Reply{}, llm.Classify(e.Name(), fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return llm.Reply{}, upstreamError(resp.StatusCode, raw)
	}
	return llm.Reply{Kind: llm.ReplyOpenAIResponses, Raw: raw}, nil
}

// upstreamError keeps the provider's own message (error.message) when the
// body carries one.
func upstreamError(status int, raw []byte) *llm.UpstreamError {
	ue := &llm.UpstreamError{
		Provider: llm.ProviderOpenAIResponses,
		Status:   status,
		Message:  fmt.Sprintf("OpenAI API error (status %d)", status),
	}
	var env struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Valid(raw) {
		ue.Detail = raw
		if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil && env.Error.Message != "" {
			ue.Message = env.Error.Message
		}
	} else if s := strings.TrimSpace(truncateBytes(raw, 512)); s != "" {
		ue.Message += ": " + s
	}
	return ue
}

func truncateBytes(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
