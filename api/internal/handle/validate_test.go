package handle_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-fund-backend/api/internal/handle"
	"policy-fund-backend/api/internal/llm"
)

func TestDecodeRequest_Chat(t *testing.T) {
	req, err := handle.DecodeRequest(llm.KindChat, []byte(`{"message":"  운전자금 한도는? "}`))
	require.NoError(t, err)
	assert.Equal(t, llm.GenerationRequest{Kind: llm.KindChat, UserText: "운전자금 한도는?"}, req)
}

func TestDecodeRequest_DoubleEncoded(t *testing.T) {
	req, err := handle.DecodeRequest(llm.KindChat, []byte(`"{\"message\":\"hi\"}"`))
	require.NoError(t, err)
	assert.Equal(t, "hi", req.UserText)
}

func TestDecodeRequest_Blog(t *testing.T) {
	t.Run("keywords array", func(t *testing.T) {
		req, err := handle.DecodeRequest(llm.KindBlog, []byte(`{
			"topic":"소상공인 정책자금","title":"총정리","keywords":["정책자금"," ","저금리"],
			"audience":"예비창업자","tone":"담백하게"}`))
		require.NoError(t, err)
		assert.Equal(t, "소상공인 정책자금", req.Topic)
		assert.Equal(t, llm.BlogStyle{
			Title:    "총정리",
			Keywords: []string{"정책자금", "저금리"},
			Audience: "예비창업자",
			Tone:     "담백하게",
		}, req.Style)
	})

	t.Run("keywords comma string", func(t *testing.T) {
		req, err := handle.DecodeRequest(llm.KindBlog, []byte(`{"topic":"t","keywords":"a, b,,c"}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, req.Style.Keywords)
	})

	t.Run("wrongly typed optionals are ignored", func(t *testing.T) {
		req, err := handle.DecodeRequest(llm.KindBlog, []byte(`{"topic":"t","keywords":7,"tone":false}`))
		require.NoError(t, err)
		assert.Equal(t, llm.BlogStyle{}, req.Style)
	})
}

func TestDecodeRequest_Errors(t *testing.T) {
	cases := []struct {
		name  string
		kind  llm.Kind
		body  string
		want  error
		field string
	}{
		{name: "empty body", kind: llm.KindChat, body: ``, want: handle.ErrMalformedJSON},
		{name: "broken json", kind: llm.KindChat, body: `{"message":`, want: handle.ErrMalformedJSON},
		{name: "array", kind: llm.KindChat, body: `["hi"]`, want: handle.ErrMalformedJSON},
		{name: "string of garbage", kind: llm.KindChat, body: `"not json"`, want: handle.ErrMalformedJSON},
		{name: "empty object", kind: llm.KindChat, body: `{}`, want: handle.ErrMissingField, field: "message"},
		{name: "blank message", kind: llm.KindChat, body: `{"message":" \n"}`, want: handle.ErrMissingField, field: "message"},
		{name: "non-string message", kind: llm.KindChat, body: `{"message":42}`, want: handle.ErrMissingField, field: "message"},
		{name: "blog needs topic", kind: llm.KindBlog, body: `{"message":"hi"}`, want: handle.ErrMissingField, field: "topic"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := handle.DecodeRequest(tc.kind, []byte(tc.body))
			require.ErrorIs(t, err, tc.want)
			if tc.field != "" {
				var fe *handle.FieldError
				require.True(t, errors.As(err, &fe))
				assert.Equal(t, tc.field, fe.Field)
			}
		})
	}
}
