package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"policy-fund-backend/api/internal/llm"
)

const DefaultModel = "gemini-2.5-flash"

type generateFunc func(ctx context.Context, system string, maxTokens int32, user string) (*genai.GenerateContentResponse, error)

type Engine struct {
	Model    string
	client   *genai.Client
	generate generateFunc
}

// New opens one genai client for the life of the process. Close releases it.
func New(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Engine, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, llm.MissingCredential("GEMINI_API_KEY")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}

	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}
	e := &Engine{Model: strings.TrimSpace(model), client: cl}
	e.generate = e.sdkGenerate
	return e, nil
}

func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

func (e *Engine) Name() string     { return llm.ProviderGemini }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) sdkGenerate(ctx context.Context, system string, maxTokens int32, user string) (*genai.GenerateContentResponse, error) {
	m := e.client.GenerativeModel(e.Model)
	if system != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	if maxTokens > 0 {
		m.SetMaxOutputTokens(maxTokens)
	}
	return m.GenerateContent(ctx, genai.Text(user))
}

func (e *Engine) Generate(ctx context.Context, p llm.Prompt) (llm.Reply, error) {
	resp, err := e.generate(ctx, p.System, int32(p.MaxOutputTokens), p.User)
	if err != nil {
		return llm.Reply{}, upstreamError(err)
	}
	return llm.Reply{Kind: llm.ReplyGemini, Accessor: responseText{resp: resp}}, nil
}

// responseText exposes the SDK response through llm.TextAccessor.
type responseText struct {
	resp *genai.GenerateContentResponse
}

// Text joins the text parts of the first candidate that has content.
func (r responseText) Text() string {
	if r.resp == nil {
		return ""
	}
	for _, c := range r.resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

func upstreamError(err error) error {
	if llm.IsTimeout(err) {
		return llm.Classify(llm.ProviderGemini, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		ue := &llm.UpstreamError{
			Provider: llm.ProviderGemini,
			Status:   gerr.Code,
			Message:  gerr.Message,
		}
		if ue.Message == "" {
			ue.Message = gerr.Error()
		}
		if body := []byte(strings.TrimSpace(gerr.Body)); len(body) > 0 && body[0] == '{' && json.Valid(body) {
			ue.Detail = body
		}
		return ue
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &llm.UpstreamError{Provider: llm.ProviderGemini, Message: blocked.Error()}
	}

	return llm.Classify(llm.ProviderGemini, err)
}
