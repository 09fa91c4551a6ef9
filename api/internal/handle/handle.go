package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"policy-fund-backend/api/internal/cors"
	"policy-fund-backend/api/internal/llm"
	"policy-fund-backend/api/internal/service"
)

// Pinger is the optional dependency checked by Healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handle struct {
	svc *service.Service
	db  Pinger
	log *zap.Logger
}

// New builds the handlers. db may be nil when no usage journal is configured.
func New(svc *service.Service, db Pinger, log *zap.Logger) *Handle {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handle{svc: svc, db: db, log: log}
}

type errorResponse struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail,omitempty"`
	Hint    string          `json:"hint,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps err to its HTTP status and response body.
func classify(err error) (int, errorResponse) {
	var (
		fe *FieldError
		ue *llm.UpstreamError
	)
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge, errorResponse{Error: "payload_too_large", Message: "요청 본문이 너무 큽니다. (최대 1MB)"}
	case errors.Is(err, ErrMalformedJSON):
		return http.StatusBadRequest, errorResponse{Error: "invalid_json", Message: "데이터 형식이 잘못되었습니다."}
	case errors.As(err, &fe):
		return http.StatusBadRequest, errorResponse{Error: "missing_field", Message: fe.Message()}
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, errorResponse{Error: "missing_field", Message: "질문 내용이 없습니다."}
	case errors.Is(err, cors.ErrOriginRejected):
		return http.StatusForbidden, errorResponse{Error: "origin_rejected", Message: "허용되지 않은 출처(Origin)입니다."}
	case errors.Is(err, llm.ErrConfiguration):
		return http.StatusInternalServerError, errorResponse{Error: "configuration_error", Message: err.Error()}
	case errors.Is(err, llm.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout, errorResponse{Error: "upstream_timeout", Message: "AI 응답 시간이 초과되었습니다. 다시 시도해주세요."}
	case errors.As(err, &ue):
		msg := ue.Message
		if msg == "" {
			msg = "AI 제공자 오류가 발생했습니다."
		}
		body := errorResponse{Error: "upstream_error", Message: msg}
		if json.Valid(ue.Detail) {
			body.Detail = ue.Detail
		}
		return http.StatusBadGateway, body
	}
	return http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: "AI가 잠시 쉬고 있어요. 다시 시도해주세요."}
}

func (h *Handle) writeError(w http.ResponseWriter, err error) {
	code, body := classify(err)
	if code >= http.StatusInternalServerError && body.Error == "internal_error" {
		h.log.Error("unclassified error", zap.Error(err))
	}
	writeJSON(w, code, body)
}

// RejectOrigin answers a request whose Origin is not on the allow-list.
func (h *Handle) RejectOrigin(w http.ResponseWriter, r *http.Request, err error) {
	h.svc.Observe(kindFromPath(r.URL.Path), service.OutcomeRejected, "origin_rejected")
	h.writeError(w, err)
}

func kindFromPath(p string) llm.Kind {
	switch {
	case strings.HasSuffix(p, "/chat"):
		return llm.KindChat
	case strings.HasSuffix(p, "/blog"):
		return llm.KindBlog
	}
	return ""
}
