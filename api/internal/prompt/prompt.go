// Package prompt turns a validated request into the (system, user) pair sent
// to the provider. The system instruction always carries the closing
// disclaimer requirement.
package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"policy-fund-backend/api/internal/llm"
)

const (
	DefaultDisclaimer = "⚠️ 정확한 정보는 공고/기관 안내를 꼭 확인하세요."

	DefaultChatPersona = `당신은 '정책자금 AI 비서'입니다.
- 한국어로 친절하고 실무적으로 답합니다.
- 확정적 단정 대신, 조건/예외/필요서류/확인경로를 함께 안내합니다.`

	DefaultBlogPersona = `당신은 정책자금/정부지원금 전문 블로그 작가입니다.
- 글은 '문제제기→정보제공→경험결합→CTA' 구조로 SEO에 맞게 작성합니다.`

	DefaultAudience = "소상공인/자영업자"
	DefaultTone     = "친근하고 전문가 느낌"

	ChatMaxOutputTokens = 900
	BlogMaxOutputTokens = 1400
)

//go:embed blog.tmpl
var blogTemplate string

type Config struct {
	ChatPersona string
	BlogPersona string
	Disclaimer  string
}

// Composer is immutable after New and safe for concurrent use.
type Composer struct {
	disclaimer string
	chatSystem string
	blogSystem string
	blog       *template.Template
}

func New(cfg Config) (*Composer, error) {
	disclaimer := strings.TrimSpace(cfg.Disclaimer)
	if disclaimer == "" {
		disclaimer = DefaultDisclaimer
	}
	chat := strings.TrimSpace(cfg.ChatPersona)
	if chat == "" {
		chat = DefaultChatPersona
	}
	blog := strings.TrimSpace(cfg.BlogPersona)
	if blog == "" {
		blog = DefaultBlogPersona
	}

	tmpl, err := template.New("blog").
		Funcs(template.FuncMap{"join": strings.Join}).
		Parse(blogTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse blog template: %w", err)
	}

	return &Composer{
		disclaimer: disclaimer,
		chatSystem: withDisclaimer(chat, disclaimer),
		blogSystem: withDisclaimer(blog, disclaimer),
		blog:       tmpl,
	}, nil
}

func withDisclaimer(persona, disclaimer string) string {
	if strings.Contains(persona, disclaimer) {
		return persona
	}
	return persona + "\n- 마지막에 항상: \"" + disclaimer + "\" 문구를 포함합니다."
}

func (c *Composer) Disclaimer() string { return c.disclaimer }

// Compose builds the provider prompt for req. The result depends only on req
// and the composer configuration. A request without its required text is
// rejected.
func (c *Composer) Compose(req llm.GenerationRequest) (llm.Prompt, error) {
	if !req.Valid() {
		return llm.Prompt{}, fmt.Errorf("compose: empty or unknown %q request", req.Kind)
	}
	switch req.Kind {
	case llm.KindChat:
		return llm.Prompt{
			System:          c.chatSystem,
			User:            strings.TrimSpace(req.UserText),
			MaxOutputTokens: ChatMaxOutputTokens,
		}, nil
	case llm.KindBlog:
		user, err := c.renderBlog(req)
		if err != nil {
			return llm.Prompt{}, err
		}
		return llm.Prompt{
			System:          c.blogSystem,
			User:            user,
			MaxOutputTokens: BlogMaxOutputTokens,
		}, nil
	default:
		return llm.Prompt{}, fmt.Errorf("compose: unknown request kind %q", req.Kind)
	}
}

type blogData struct {
	Title      string
	Topic      string
	Audience   string
	Tone       string
	Keywords   []string
	Disclaimer string
}

func (c *Composer) renderBlog(req llm.GenerationRequest) (string, error) {
	data := blogData{
		Title:      strings.TrimSpace(req.Style.Title),
		Topic:      strings.TrimSpace(req.Topic),
		Audience:   orDefault(req.Style.Audience, DefaultAudience),
		Tone:       orDefault(req.Style.Tone, DefaultTone),
		Disclaimer: c.disclaimer,
	}
	for _, k := range req.Style.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			data.Keywords = append(data.Keywords, k)
		}
	}

	var buf bytes.Buffer
	if err := c.blog.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render blog prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
