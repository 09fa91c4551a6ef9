package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-fund-backend/api/internal/llm"
)

type fakeClient struct {
	create func(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

func (f *fakeClient) CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	return f.create(ctx, req)
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New("", "", "", nil)
	assert.ErrorIs(t, err, llm.ErrConfiguration)
}

func TestGenerate_BuildsMessagesAndNormalizes(t *testing.T) {
	var got goopenai.ChatCompletionRequest
	e := NewWithClient(&fakeClient{
		create: func(_ context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
			got = req
			return goopenai.ChatCompletionResponse{
				ID: "chatcmpl-1",
				Choices: []goopenai.ChatCompletionChoice{{
					Message: goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: "OK"},
				}},
			}, nil
		},
	}, "")

	reply, err := e.Generate(context.Background(), llm.Prompt{System: "sys", User: "질문", MaxOutputTokens: 900})
	require.NoError(t, err)

	assert.Equal(t, llm.ReplyOpenAIChat, reply.Kind)
	assert.Equal(t, "OK", llm.Normalize(reply))
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, 900, got.MaxCompletionTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, goopenai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "질문", got.Messages[1].Content)
}

func TestGenerate_AgainstHTTPServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(b, &req))
		assert.Equal(t, "gpt-4o-mini", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"OK"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	e, err := New("sk-test", "gpt-4o-mini", srv.URL+"/v1", srv.Client())
	require.NoError(t, err)

	reply, err := e.Generate(context.Background(), llm.Prompt{User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "OK", llm.Normalize(reply))
}

func TestGenerate_RateLimitIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached for gpt-4o-mini","type":"requests","param":null,"code":"rate_limit_exceeded"}}`))
	}))
	defer srv.Close()

	e, err := New("sk-test", "", srv.URL, srv.Client())
	require.NoError(t, err)

	_, err = e.Generate(context.Background(), llm.Prompt{User: "hi"})
	var ue *llm.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusTooManyRequests, ue.Status)
	assert.Equal(t, "Rate limit reached for gpt-4o-mini", ue.Message)
	assert.NotEmpty(t, ue.Detail)
}

func TestGenerate_TransportErrorIsRelabelled(t *testing.T) {
	e := NewWithClient(&fakeClient{
		create: func(context.Context, goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
			return goopenai.ChatCompletionResponse{}, errors.New("dial tcp: connection refused")
		},
	}, "gpt-4o-mini")

	_, err := e.Generate(context.Background(), llm.Prompt{User: "hi"})
	var ue *llm.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, llm.ProviderOpenAIChat, ue.Provider)
}

func TestGenerate_DeadlineIsTimeout(t *testing.T) {
	e := NewWithClient(&fakeClient{
		create: func(ctx context.Context, _ goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
			return goopenai.ChatCompletionResponse{}, context.DeadlineExceeded
		},
	}, "")

	_, err := e.Generate(context.Background(), llm.Prompt{User: "hi"})
	assert.ErrorIs(t, err, llm.ErrUpstreamTimeout)
}
