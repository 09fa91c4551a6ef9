package handle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"policy-fund-backend/api/internal/llm"
)

// MaxBodyBytes bounds a request body.
const MaxBodyBytes = 1 << 20

var (
	ErrMalformedJSON = errors.New("malformed json body")
	ErrMissingField  = errors.New("missing required field")
	ErrBodyTooLarge  = errors.New("request body too large")
)

// FieldError names the required field that was absent, not a string or empty.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %s", ErrMissingField, e.Field) }
func (e *FieldError) Unwrap() error { return ErrMissingField }

// Message is the user-facing text.
func (e *FieldError) Message() string {
	return fmt.Sprintf("%s 를 입력해주세요.", e.Field)
}

func requiredField(kind llm.Kind) string {
	if kind == llm.KindBlog {
		return "topic"
	}
	return "message"
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, ErrBodyTooLarge
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return body, nil
}

// DecodeRequest validates a raw body for kind. The body is a JSON object, or a
// JSON string holding a JSON object (clients posting text/plain), which is
// parsed a second time.
func DecodeRequest(kind llm.Kind, body []byte) (llm.GenerationRequest, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return llm.GenerationRequest{}, err
	}

	name := requiredField(kind)
	value, ok := stringField(fields, name)
	if !ok || strings.TrimSpace(value) == "" {
		return llm.GenerationRequest{}, &FieldError{Field: name}
	}

	req := llm.GenerationRequest{Kind: kind}
	switch kind {
	case llm.KindChat:
		req.UserText = strings.TrimSpace(value)
	case llm.KindBlog:
		req.Topic = strings.TrimSpace(value)
		req.Style = llm.BlogStyle{
			Title:    optionalString(fields, "title"),
			Keywords: keywords(fields["keywords"]),
			Audience: optionalString(fields, "audience"),
			Tone:     optionalString(fields, "tone"),
		}
	default:
		return llm.GenerationRequest{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedJSON, kind)
	}
	return req, nil
}

func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
		}
		body = bytes.TrimSpace([]byte(inner))
	}
	if len(body) == 0 || body[0] != '{' {
		return nil, ErrMalformedJSON
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return fields, nil
}

func stringField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := fields[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func optionalString(fields map[string]json.RawMessage, name string) string {
	s, _ := stringField(fields, name)
	return strings.TrimSpace(s)
}

// keywords accepts ["a","b"] or "a, b".
func keywords(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		list = strings.Split(s, ",")
	}
	out := make([]string, 0, len(list))
	for _, k := range list {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
