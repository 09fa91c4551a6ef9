package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"policy-fund-backend/api/internal/llm"
)

// Sender is the part of *tgbotapi.BotAPI the router uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Generator runs one chat or blog request; *service.Service implements it.
type Generator interface {
	Generate(ctx context.Context, req llm.GenerationRequest) (llm.Result, error)
}

type Router struct {
	Bot Sender
	Svc Generator
	Log *zap.Logger
}

const usageText = `정책자금 AI 비서입니다.
- 궁금한 점을 그냥 메시지로 보내면 답변해 드려요.
- /blog <주제> 로 블로그 글 초안을 만들어 드려요.
아래 예시 질문을 눌러 보셔도 됩니다.`

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	cid := msg.Chat.ID

	if msg.IsCommand() {
		r.HandleCommand(ctx, msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		r.send(cid, "텍스트로 질문을 보내주세요.")
		return
	}
	r.answer(ctx, cid, llm.GenerationRequest{Kind: llm.KindChat, UserText: text})
}

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		m := tgbotapi.NewMessage(cid, usageText)
		m.ReplyMarkup = makeExamplesKeyboard()
		r.sendMsg(m)
	case "blog":
		topic := strings.TrimSpace(msg.CommandArguments())
		if topic == "" {
			r.send(cid, "사용법: /blog <주제>\n예) /blog 소상공인 정책자금 신청 방법")
			return
		}
		r.answer(ctx, cid, llm.GenerationRequest{Kind: llm.KindBlog, Topic: topic})
	default:
		r.send(cid, "알 수 없는 명령입니다. /help 를 입력해 보세요.")
	}
}

func (r *Router) handleCallback(ctx context.Context, cq tgbotapi.CallbackQuery) {
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cq.ID, ""))
	if cq.Message == nil {
		return
	}
	q, ok := exampleByData(cq.Data)
	if !ok {
		return
	}
	r.answer(ctx, cq.Message.Chat.ID, llm.GenerationRequest{Kind: llm.KindChat, UserText: q})
}

func (r *Router) answer(ctx context.Context, cid int64, req llm.GenerationRequest) {
	_, _ = r.Bot.Request(tgbotapi.NewChatAction(cid, tgbotapi.ChatTyping))

	res, err := r.Svc.Generate(ctx, req)
	if err != nil {
		r.logger().Warn("telegram generate failed",
			zap.Int64("chat_id", cid),
			zap.String("kind", string(req.Kind)),
			zap.Error(err),
		)
		r.send(cid, userMessage(err))
		return
	}
	if strings.TrimSpace(res.Text) == "" {
		r.send(cid, "답변을 만들지 못했어요. 질문을 조금 바꿔서 다시 보내주세요.")
		return
	}
	for _, part := range splitMessage(res.Text, maxMessageRunes) {
		r.send(cid, part)
	}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, llm.ErrUpstreamTimeout):
		return "⏳ AI 응답 시간이 초과되었어요. 잠시 후 다시 시도해주세요."
	case errors.Is(err, llm.ErrConfiguration):
		return "⚙️ 서버 설정 문제로 지금은 답변할 수 없어요."
	}
	return "AI가 잠시 쉬고 있어요. 다시 시도해주세요."
}

func (r *Router) send(chatID int64, text string) {
	r.sendMsg(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) sendMsg(m tgbotapi.MessageConfig) {
	if _, err := r.Bot.Send(m); err != nil {
		r.logger().Warn("telegram send failed", zap.Int64("chat_id", m.ChatID), zap.Error(err))
	}
}

func (r *Router) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}
