package llm

import (
	"context"
	"fmt"
)

// Engine is one LLM provider variant. Generate performs exactly one upstream
// call and returns the raw reply; extraction of the text is left to Normalize.
type Engine interface {
	Name() string
	GetModel() string
	Generate(ctx context.Context, p Prompt) (Reply, error)
}

const (
	ProviderOpenAIChat      = "openai-chat"
	ProviderOpenAIResponses = "openai-responses"
	ProviderGemini          = "gemini"
)

// Engines holds the constructed provider variants; exactly one is active.
type Engines struct {
	OpenAIChat      Engine
	OpenAIResponses Engine
	Gemini          Engine
}

func (e *Engines) GetEngine(provider string) (Engine, error) {
	var eng Engine
	switch provider {
	case ProviderOpenAIChat, "openai", "gpt":
		eng = e.OpenAIChat
	case ProviderOpenAIResponses, "responses":
		eng = e.OpenAIResponses
	case ProviderGemini:
		eng = e.Gemini
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q; use %s | %s | %s",
			ErrConfiguration, provider, ProviderOpenAIChat, ProviderOpenAIResponses, ProviderGemini)
	}
	if eng == nil {
		return nil, fmt.Errorf("%w: llm provider %q is not constructed", ErrConfiguration, provider)
	}
	return eng, nil
}

// Unavailable is the engine installed when a provider could not be
// constructed at start-up (typically a missing credential). Every request
// fails with the construction error instead of crashing the process.
type Unavailable struct {
	Provider string
	Model    string
	Err      error
}

func (u *Unavailable) Name() string     { return u.Provider }
func (u *Unavailable) GetModel() string { return u.Model }

func (u *Unavailable) Generate(context.Context, Prompt) (Reply, error) {
	return Reply{}, u.Err
}
