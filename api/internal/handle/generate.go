package handle

import (
	"context"
	"net/http"
	"time"

	"policy-fund-backend/api/internal/llm"
	"policy-fund-backend/api/internal/service"
)

type chatResponse struct {
	OK    bool   `json:"ok"`
	Reply string `json:"reply"`
	Model string `json:"model"`
}

type blogResponse struct {
	OK      bool   `json:"ok"`
	Content string `json:"content"`
	Model   string `json:"model"`
}

// Chat serves POST /api/chat {"message": "..."}.
func (h *Handle) Chat(w http.ResponseWriter, r *http.Request) {
	res, ok := h.generate(w, r, llm.KindChat)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{OK: true, Reply: res.Text, Model: res.Model})
}

// Blog serves POST /api/blog {"topic": "...", "title"?, "keywords"?, "audience"?, "tone"?}.
func (h *Handle) Blog(w http.ResponseWriter, r *http.Request) {
	res, ok := h.generate(w, r, llm.KindBlog)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, blogResponse{OK: true, Content: res.Text, Model: res.Model})
}

func (h *Handle) generate(w http.ResponseWriter, r *http.Request, kind llm.Kind) (llm.Result, bool) {
	req, err := decode(w, r, kind)
	if err != nil {
		_, eb := classify(err)
		h.svc.Observe(kind, service.OutcomeInvalid, eb.Error)
		h.writeError(w, err)
		return llm.Result{}, false
	}

	res, err := h.svc.Generate(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return llm.Result{}, false
	}
	return res, true
}

func decode(w http.ResponseWriter, r *http.Request, kind llm.Kind) (llm.GenerationRequest, error) {
	body, err := readBody(w, r)
	if err != nil {
		return llm.GenerationRequest{}, err
	}
	return DecodeRequest(kind, body)
}

var methodHints = map[llm.Kind]string{
	llm.KindChat: "POST /api/chat 로 JSON { message: '...' } 를 보내야 합니다.",
	llm.KindBlog: "POST /api/blog 로 JSON { topic/title/... } 를 보내야 합니다.",
}

// MethodNotAllowed answers non-POST requests to the generation endpoints.
func (h *Handle) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "POST, OPTIONS")
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
		Error:   "method_not_allowed",
		Message: "POST 요청만 가능합니다.",
		Hint:    methodHints[kindFromPath(r.URL.Path)],
	})
}

type rootResponse struct {
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Provider  string   `json:"provider"`
	Model     string   `json:"model,omitempty"`
	Endpoints []string `json:"endpoints"`
}

func (h *Handle) Root(w http.ResponseWriter, _ *http.Request) {
	provider, model := h.svc.Provider()
	writeJSON(w, http.StatusOK, rootResponse{
		Status:    "ok",
		Message:   "정책자금 AI 비서 백엔드 서버",
		Provider:  provider,
		Model:     model,
		Endpoints: []string{"POST /api/chat", "POST /api/blog"},
	})
}

func (h *Handle) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
