package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"policy-fund-backend/api/internal/llm"
)

type textFunc func() string

func (f textFunc) Text() string { return f() }

func TestNormalize_AllShapesYieldSameText(t *testing.T) {
	cases := map[string]llm.Reply{
		"chat completions": {
			Kind: llm.ReplyOpenAIChat,
			Raw:  []byte(`{"id":"chatcmpl-1","choices":[{"index":0,"message":{"role":"assistant","content":"OK"}}]}`),
		},
		"responses array": {
			Kind: llm.ReplyOpenAIResponses,
			Raw:  []byte(`{"object":"response","output":[{"type":"message","content":[{"type":"output_text","text":"OK"}]}]}`),
		},
		"responses output_text": {
			Kind: llm.ReplyOpenAIResponses,
			Raw:  []byte(`{"object":"response","output_text":"OK"}`),
		},
		"gemini accessor": {
			Kind:     llm.ReplyGemini,
			Accessor: textFunc(func() string { return "OK" }),
		},
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, "OK", llm.Normalize(reply))
		})
	}
}

func TestNormalize_ResponsesFragmentsConcatenateInOrder(t *testing.T) {
	raw := []byte(`{"output":[
		{"type":"reasoning","content":[]},
		{"type":"message","content":[
			{"type":"output_text","text":"정책"},
			{"type":"refusal","refusal":"no"},
			{"type":"text","text":"자금"}
		]},
		{"type":"message","content":[{"text":" 안내"}]}
	],"output_text":"ignored"}`)

	assert.Equal(t, "정책자금 안내", llm.Normalize(llm.Reply{Raw: raw}))
}

func TestNormalize_PriorityChatBeforeResponses(t *testing.T) {
	raw := []byte(`{"choices":[{"message":{"content":"chat"}}],"output_text":"responses"}`)
	assert.Equal(t, "chat", llm.Normalize(llm.Reply{Raw: raw}))
}

func TestNormalize_FallsThroughToAccessor(t *testing.T) {
	r := llm.Reply{
		Raw:      []byte(`{"candidates":[]}`),
		Accessor: textFunc(func() string { return "from sdk" }),
	}
	assert.Equal(t, "from sdk", llm.Normalize(r))
}

func TestNormalize_UnrecognisedShapesAreEmpty(t *testing.T) {
	cases := map[string]llm.Reply{
		"empty":               {},
		"not json":            {Raw: []byte(`<html>bad gateway</html>`)},
		"json array":          {Raw: []byte(`["OK"]`)},
		"no choices":          {Raw: []byte(`{"choices":[]}`)},
		"null content":        {Raw: []byte(`{"choices":[{"message":{"content":null}}]}`)},
		"array content":       {Raw: []byte(`{"choices":[{"message":{"content":[{"type":"text"}]}}]}`)},
		"missing message":     {Raw: []byte(`{"choices":[{"index":0}]}`)},
		"output without text": {Raw: []byte(`{"output":[{"content":[{"type":"refusal"}]}]}`)},
		"numeric output_text": {Raw: []byte(`{"output_text":42}`)},
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, "", llm.Normalize(reply))
			})
		})
	}
}

func TestNormalize_PanickingAccessorIsEmpty(t *testing.T) {
	r := llm.Reply{Accessor: textFunc(func() string { panic("nil candidate") })}
	assert.Equal(t, "", llm.Normalize(r))
}

func TestNormalize_MistypedFieldOnlySkipsItsShape(t *testing.T) {
	cases := map[string]string{
		"string output":        `{"output":"x","output_text":"OK"}`,
		"object choices":       `{"choices":{},"output_text":"OK"}`,
		"bad unrelated output": `{"choices":[{"message":{"content":"OK"}}],"output":[{"content":"oops"}]}`,
		"bad output item":      `{"output":[{"content":"oops"},{"content":[{"type":"output_text","text":"OK"}]}]}`,
		"numeric part type":    `{"output":[{"content":[{"type":7,"text":"x"},{"type":"output_text","text":"OK"}]}]}`,
		"numeric usage":        `{"usage":"n/a","choices":[{"message":{"content":"OK"}}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, "OK", llm.Normalize(llm.Reply{Raw: []byte(raw)}))
		})
	}
}
