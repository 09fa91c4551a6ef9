package service_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"policy-fund-backend/api/internal/llm"
	"policy-fund-backend/api/internal/metrics"
	"policy-fund-backend/api/internal/prompt"
	"policy-fund-backend/api/internal/service"
	"policy-fund-backend/api/internal/store"
)

type fakeEngine struct {
	calls    atomic.Int32
	generate func(ctx context.Context, p llm.Prompt) (llm.Reply, error)
}

func (f *fakeEngine) Name() string     { return llm.ProviderOpenAIChat }
func (f *fakeEngine) GetModel() string { return "gpt-4o-mini" }

func (f *fakeEngine) Generate(ctx context.Context, p llm.Prompt) (llm.Reply, error) {
	f.calls.Add(1)
	return f.generate(ctx, p)
}

func chatReply(text string) llm.Reply {
	return llm.Reply{
		Kind: llm.ReplyOpenAIChat,
		Raw:  []byte(`{"choices":[{"message":{"role":"assistant","content":` + quote(text) + `}}]}`),
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "\n", `\n`) + `"`
}

func newService(t *testing.T, eng llm.Engine, usage chan<- store.UsageEvent, timeout time.Duration) *service.Service {
	t.Helper()
	c, err := prompt.New(prompt.Config{})
	require.NoError(t, err)
	return service.New(service.Options{
		Composer: c,
		Engines:  &llm.Engines{OpenAIChat: eng},
		Provider: llm.ProviderOpenAIChat,
		Timeout:  timeout,
		Logger:   zap.NewNop(),
		Usage:    usage,
	})
}

func TestGenerate_AppendsDisclaimer(t *testing.T) {
	eng := &fakeEngine{generate: func(_ context.Context, p llm.Prompt) (llm.Reply, error) {
		assert.Equal(t, "창업자금 알려줘", p.User)
		return chatReply("창업자금은 ..."), nil
	}}
	usage := make(chan store.UsageEvent, 1)
	svc := newService(t, eng, usage, 0)

	res, err := svc.Generate(context.Background(), llm.GenerationRequest{Kind: llm.KindChat, UserText: "창업자금 알려줘"})
	require.NoError(t, err)

	assert.Equal(t, "창업자금은 ...\n\n"+prompt.DefaultDisclaimer, res.Text)
	assert.False(t, res.DisclaimerPresent)
	assert.Equal(t, "gpt-4o-mini", res.Model)
	assert.Equal(t, llm.ProviderOpenAIChat, res.Provider)

	ev := <-usage
	assert.Equal(t, "chat", ev.Kind)
	assert.Equal(t, string(service.OutcomeResponded), ev.Outcome)
	assert.True(t, ev.DisclaimerAppended)
	assert.Empty(t, ev.ErrorCode)
}

func TestGenerate_DisclaimerAlreadyPresent(t *testing.T) {
	text := "답변입니다.\n\n" + prompt.DefaultDisclaimer
	eng := &fakeEngine{generate: func(context.Context, llm.Prompt) (llm.Reply, error) {
		return chatReply(text), nil
	}}
	svc := newService(t, eng, nil, 0)

	res, err := svc.Generate(context.Background(), llm.GenerationRequest{Kind: llm.KindBlog, Topic: "정책자금"})
	require.NoError(t, err)
	assert.Equal(t, text, res.Text)
	assert.True(t, res.DisclaimerPresent)
}

func TestGenerate_InvalidNeverCallsEngine(t *testing.T) {
	eng := &fakeEngine{generate: func(context.Context, llm.Prompt) (llm.Reply, error) {
		t.Fatal("engine must not be called")
		return llm.Reply{}, nil
	}}
	usage := make(chan store.UsageEvent, 1)
	svc := newService(t, eng, usage, 0)

	_, err := svc.Generate(context.Background(), llm.GenerationRequest{Kind: llm.KindChat, UserText: "   "})
	assert.ErrorIs(t, err, service.ErrInvalidRequest)
	assert.Zero(t, eng.calls.Load())

	ev := <-usage
	assert.Equal(t, string(service.OutcomeInvalid), ev.Outcome)
	assert.Equal(t, "missing_field", ev.ErrorCode)
}

func TestGenerate_UpstreamErrorKeepsStatus(t *testing.T) {
	eng := &fakeEngine{generate: func(context.Context, llm.Prompt) (llm.Reply, error) {
		return llm.Reply{}, &llm.UpstreamError{Provider: llm.ProviderOpenAIChat, Status: 429, Message: "Rate limit reached"}
	}}
	usage := make(chan store.UsageEvent, 1)
	svc := newService(t, eng, usage, 0)

	_, err := svc.Generate(context.Background(), llm.GenerationRequest{Kind: llm.KindChat, UserText: "hi"})
	var ue *llm.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "Rate limit reached", ue.Message)
	assert.Equal(t, 1, int(eng.calls.Load()), "no retry")

	ev := <-usage
	assert.Equal(t, string(service.OutcomeUpstreamFailed), ev.Outcome)
	assert.Equal(t, "upstream_error", ev.ErrorCode)
	assert.Equal(t, 429, ev.UpstreamStatus)
}

func TestGenerate_Timeout(t *testing.T) {
	eng := &fakeEngine{generate: func(ctx context.Context, _ llm.Prompt) (llm.Reply, error) {
		<-ctx.Done()
		return llm.Reply{}, ctx.Err()
	}}
	svc := newService(t, eng, nil, 20*time.Millisecond)

	_, err := svc.Generate(context.Background(), llm.GenerationRequest{Kind: llm.KindChat, UserText: "hi"})
	assert.ErrorIs(t, err, llm.ErrUpstreamTimeout)
	assert.Equal(t, "upstream_timeout", service.ErrorCode(err))
}

func TestGenerate_UnavailableEngine(t *testing.T) {
	eng := &llm.Unavailable{Provider: llm.ProviderOpenAIChat, Err: llm.MissingCredential("OPENAI_API_KEY")}
	svc := newService(t, eng, nil, 0)

	_, err := svc.Generate(context.Background(), llm.GenerationRequest{Kind: llm.KindChat, UserText: "hi"})
	assert.ErrorIs(t, err, llm.ErrConfiguration)
	assert.Equal(t, "configuration_error", service.ErrorCode(err))
}

func TestGenerate_NormalizationGap(t *testing.T) {
	eng := &fakeEngine{generate: func(context.Context, llm.Prompt) (llm.Reply, error) {
		return llm.Reply{Kind: llm.ReplyOpenAIChat, Raw: []byte(`{"choices":[]}`)}, nil
	}}
	usage := make(chan store.UsageEvent, 1)
	svc := newService(t, eng, usage, 0)

	gaps := metrics.NormalizationGapsTotal.WithLabelValues(llm.ProviderOpenAIChat)
	before := testutil.ToFloat64(gaps)

	res, err := svc.Generate(context.Background(), llm.GenerationRequest{Kind: llm.KindChat, UserText: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "", res.Text)
	assert.Equal(t, before+1, testutil.ToFloat64(gaps))

	ev := <-usage
	assert.True(t, ev.NormalizationGap)
	assert.False(t, ev.DisclaimerAppended)
}

func TestGenerate_FullUsageQueueDoesNotBlock(t *testing.T) {
	eng := &fakeEngine{generate: func(context.Context, llm.Prompt) (llm.Reply, error) {
		return chatReply("OK"), nil
	}}
	usage := make(chan store.UsageEvent)
	svc := newService(t, eng, usage, 0)
	before := testutil.ToFloat64(metrics.UsageDroppedTotal)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Generate(context.Background(), llm.GenerationRequest{Kind: llm.KindChat, UserText: "hi"})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Generate blocked on the usage queue")
	}
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.UsageDroppedTotal))
}

func TestObserve(t *testing.T) {
	usage := make(chan store.UsageEvent, 1)
	svc := newService(t, &fakeEngine{}, usage, 0)

	svc.Observe(llm.KindBlog, service.OutcomeRejected, "origin_rejected")
	ev := <-usage
	assert.Equal(t, "blog", ev.Kind)
	assert.Equal(t, string(service.OutcomeRejected), ev.Outcome)
	assert.Equal(t, "origin_rejected", ev.ErrorCode)
}

func TestProvider(t *testing.T) {
	svc := newService(t, &fakeEngine{}, nil, 0)
	name, model := svc.Provider()
	assert.Equal(t, llm.ProviderOpenAIChat, name)
	assert.Equal(t, "gpt-4o-mini", model)
}
