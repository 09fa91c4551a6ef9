// Package service runs one generation request end to end: compose the prompt,
// make exactly one provider call, normalize the reply and enforce the
// disclaimer. It is shared by the HTTP handlers and the Telegram bot.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"policy-fund-backend/api/internal/cors"
	"policy-fund-backend/api/internal/llm"
	"policy-fund-backend/api/internal/metrics"
	"policy-fund-backend/api/internal/prompt"
	"policy-fund-backend/api/internal/store"
)

const DefaultTimeout = 30 * time.Second

// Outcome is the terminal state of a request.
type Outcome string

const (
	OutcomeResponded      Outcome = "responded"
	OutcomeRejected       Outcome = "rejected"
	OutcomeInvalid        Outcome = "invalid"
	OutcomeUpstreamFailed Outcome = "upstream_failed"
)

var ErrInvalidRequest = errors.New("invalid generation request")

type Options struct {
	Composer *prompt.Composer
	Engines  *llm.Engines
	Provider string
	Timeout  time.Duration
	Logger   *zap.Logger
	// Usage receives one event per finished request. Sends never block; a
	// full channel drops the event.
	Usage chan<- store.UsageEvent
}

type Service struct {
	composer *prompt.Composer
	engines  *llm.Engines
	provider string
	timeout  time.Duration
	log      *zap.Logger
	usage    chan<- store.UsageEvent
}

func New(o Options) *Service {
	s := &Service{
		composer: o.Composer,
		engines:  o.Engines,
		provider: o.Provider,
		timeout:  o.Timeout,
		log:      o.Logger,
		usage:    o.Usage,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Provider returns the configured provider name and its model, if constructed.
func (s *Service) Provider() (name, model string) {
	eng, err := s.engines.GetEngine(s.provider)
	if err != nil {
		return s.provider, ""
	}
	return eng.Name(), eng.GetModel()
}

// Generate performs one request. An empty normalized text is not an error:
// the result is returned with Text "" and the gap is counted and logged.
func (s *Service) Generate(ctx context.Context, req llm.GenerationRequest) (llm.Result, error) {
	start := time.Now()
	ev := store.UsageEvent{Kind: string(req.Kind), Provider: s.provider}

	if !req.Valid() {
		err := fmt.Errorf("%w: empty %s request", ErrInvalidRequest, req.Kind)
		s.finish(ev, OutcomeInvalid, err, start)
		return llm.Result{}, err
	}

	p, err := s.composer.Compose(req)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		s.finish(ev, OutcomeInvalid, err, start)
		return llm.Result{}, err
	}
	ev.PromptChars = len([]rune(p.User))

	eng, err := s.engines.GetEngine(s.provider)
	if err != nil {
		s.finish(ev, OutcomeUpstreamFailed, err, start)
		return llm.Result{}, err
	}
	ev.Provider, ev.Model = eng.Name(), eng.GetModel()

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	callStart := time.Now()
	reply, err := eng.Generate(cctx, p)
	metrics.UpstreamDuration.WithLabelValues(eng.Name()).Observe(time.Since(callStart).Seconds())
	if err != nil {
		err = llm.Classify(eng.Name(), err)
		metrics.UpstreamErrorsTotal.WithLabelValues(eng.Name(), ErrorCode(err)).Inc()
		s.finish(ev, OutcomeUpstreamFailed, err, start)
		return llm.Result{}, err
	}

	text := llm.Normalize(reply)
	if text == "" {
		ev.NormalizationGap = true
		metrics.NormalizationGapsTotal.WithLabelValues(eng.Name()).Inc()
		s.log.Warn("no text in provider reply",
			zap.String("provider", eng.Name()),
			zap.String("reply_kind", string(reply.Kind)),
		)
	}

	text, present := s.composer.EnsureDisclaimer(text)
	if !present && text != "" {
		ev.DisclaimerAppended = true
		metrics.DisclaimerAppendedTotal.WithLabelValues(string(req.Kind)).Inc()
	}
	ev.ReplyChars = len([]rune(text))
	s.finish(ev, OutcomeResponded, nil, start)

	return llm.Result{
		Text:              text,
		DisclaimerPresent: present,
		Model:             eng.GetModel(),
		Provider:          eng.Name(),
	}, nil
}

// Observe records a request that ended before Generate was called, such as an
// origin rejection or a body that failed validation. code is the error code
// the caller answered with.
func (s *Service) Observe(kind llm.Kind, outcome Outcome, code string) {
	ev := store.UsageEvent{Kind: string(kind), Provider: s.provider, ErrorCode: code}
	s.finish(ev, outcome, nil, time.Now())
}

func (s *Service) finish(ev store.UsageEvent, outcome Outcome, err error, start time.Time) {
	ev.Outcome = string(outcome)
	ev.Duration = time.Since(start)
	if ev.Kind == "" {
		ev.Kind = "unknown"
	}
	metrics.RequestsTotal.WithLabelValues(ev.Kind, ev.Outcome).Inc()

	fields := []zap.Field{
		zap.String("kind", ev.Kind),
		zap.String("outcome", ev.Outcome),
		zap.String("provider", ev.Provider),
		zap.Duration("duration", ev.Duration),
	}
	switch {
	case err == nil && ev.ErrorCode == "":
		s.log.Info("request finished", append(fields,
			zap.String("model", ev.Model),
			zap.Int("reply_chars", ev.ReplyChars),
			zap.Bool("disclaimer_appended", ev.DisclaimerAppended),
		)...)
	case outcome == OutcomeUpstreamFailed:
		ev.ErrorCode = ErrorCode(err)
		var ue *llm.UpstreamError
		if errors.As(err, &ue) {
			ev.UpstreamStatus = ue.Status
		}
		s.log.Error("request failed", append(fields,
			zap.String("code", ev.ErrorCode),
			zap.Int("upstream_status", ev.UpstreamStatus),
			zap.String("error", truncate(err.Error(), 500)),
		)...)
	default:
		if ev.ErrorCode == "" {
			ev.ErrorCode = ErrorCode(err)
		}
		s.log.Info("request refused", append(fields, zap.String("code", ev.ErrorCode))...)
	}

	if s.usage == nil {
		return
	}
	select {
	case s.usage <- ev:
	default:
		metrics.UsageDroppedTotal.Inc()
	}
}

// ErrorCode is the stable machine-readable code for err.
func ErrorCode(err error) string {
	var ue *llm.UpstreamError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, llm.ErrConfiguration):
		return "configuration_error"
	case errors.Is(err, llm.ErrUpstreamTimeout):
		return "upstream_timeout"
	case errors.As(err, &ue):
		return "upstream_error"
	case errors.Is(err, cors.ErrOriginRejected):
		return "origin_rejected"
	case errors.Is(err, ErrInvalidRequest):
		return "missing_field"
	}
	return "internal_error"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
