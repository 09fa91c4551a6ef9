package llm

import (
	"encoding/json"
	"strings"
)

type Kind string

const (
	KindChat Kind = "chat"
	KindBlog Kind = "blog"
)

// BlogStyle carries the optional styling fields of a blog request.
type BlogStyle struct {
	Title    string
	Keywords []string
	Audience string
	Tone     string
}

// GenerationRequest is a validated inbound request. UserText is set for chat,
// Topic for blog; the relevant one is never empty after trimming.
type GenerationRequest struct {
	Kind     Kind
	UserText string
	Topic    string
	Style    BlogStyle
}

// Text returns the user-supplied content for the request kind.
func (r GenerationRequest) Text() string {
	if r.Kind == KindBlog {
		return r.Topic
	}
	return r.UserText
}

// Valid reports whether the request satisfies the non-empty invariant.
func (r GenerationRequest) Valid() bool {
	switch r.Kind {
	case KindChat, KindBlog:
		return strings.TrimSpace(r.Text()) != ""
	}
	return false
}

// Prompt is the composed (system, user) pair sent to a provider.
type Prompt struct {
	System          string
	User            string
	MaxOutputTokens int
}

type ReplyKind string

const (
	ReplyOpenAIChat      ReplyKind = "openai_chat"
	ReplyOpenAIResponses ReplyKind = "openai_responses"
	ReplyGemini          ReplyKind = "gemini"
)

// TextAccessor is implemented by SDK responses that expose their text through
// a method rather than a JSON field.
type TextAccessor interface {
	Text() string
}

// Reply is the provider payload as received. Raw holds the JSON body when
// the provider speaks JSON; Accessor is set for SDK response objects.
type Reply struct {
	Kind     ReplyKind
	Raw      json.RawMessage
	Accessor TextAccessor
}

// Result is what a request produces once the reply has been normalized.
// DisclaimerPresent reports whether the model wrote the disclaimer itself.
type Result struct {
	Text              string
	DisclaimerPresent bool
	Model             string
	Provider          string
}
