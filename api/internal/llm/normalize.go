package llm

import (
	"encoding/json"
	"strings"
)

// Each shape is decoded on its own, so a field of an unexpected type only
// disqualifies the shape it belongs to.
type chatChoice struct {
	Message *struct {
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

type outputItem struct {
	Content []json.RawMessage `json:"content"`
}

type outputPart struct {
	Type json.RawMessage `json:"type"`
	Text json.RawMessage `json:"text"`
}

// Normalize extracts the plain answer from a provider reply. Shapes are tried
// in order and the first match wins:
//
//  1. choices[0].message.content (chat completions)
//  2. output[*].content[*].text, concatenated (Responses API)
//  3. output_text (Responses API convenience field)
//  4. Reply.Accessor.Text() (Gemini SDK response)
//
// An unrecognised reply yields "". Normalize never fails.
func Normalize(r Reply) string {
	if len(r.Raw) > 0 {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(r.Raw, &fields); err == nil {
			if s, ok := chatContent(fields["choices"]); ok {
				return s
			}
			if s, ok := outputFragments(fields["output"]); ok {
				return s
			}
			if s, ok := jsonString(fields["output_text"]); ok {
				return s
			}
		}
	}
	if r.Accessor != nil {
		return accessorText(r.Accessor)
	}
	return ""
}

func chatContent(raw json.RawMessage) (string, bool) {
	var choices []chatChoice
	if len(raw) == 0 || json.Unmarshal(raw, &choices) != nil {
		return "", false
	}
	if len(choices) == 0 || choices[0].Message == nil {
		return "", false
	}
	return jsonString(choices[0].Message.Content)
}

func outputFragments(raw json.RawMessage) (string, bool) {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return "", false
	}
	var (
		b     strings.Builder
		found bool
	)
	for _, it := range items {
		var item outputItem
		if json.Unmarshal(it, &item) != nil {
			continue
		}
		for _, c := range item.Content {
			var part outputPart
			if json.Unmarshal(c, &part) != nil {
				continue
			}
			// Both `output_text` and `text` are seen in practice
			if typ, _ := jsonString(part.Type); typ != "output_text" && typ != "text" && typ != "" {
				continue
			}
			s, ok := jsonString(part.Text)
			if !ok {
				continue
			}
			b.WriteString(s)
			found = true
		}
	}
	return b.String(), found
}

func jsonString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func accessorText(a TextAccessor) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	return a.Text()
}
