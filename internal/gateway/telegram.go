// Package gateway adapts the Telegram bot API to the relay core: it filters
// inbound updates, runs the authentication flow, hands authorized messages to
// the per-user session, and routes the reply parts back out.
package gateway

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"teachbot/internal/auth"
	"teachbot/internal/session"
)

const DefaultHandleTimeout = 20 * time.Second

// Fixed user-facing notices. These are part of the bot's contract with its
// users and are asserted in tests; change with care.
const (
	noticePrivateOnly   = "I only chat in private messages. Send me a direct message and we can talk."
	noticeAuthSuccess   = "Looks good! Your user is now authenticated :D"
	noticeAuthInvalid   = "Unfortunately, your token appears to be invalid or has already been used before.\n\nAre you sure you entered it correctly?"
	noticeAuthHowTo     = "Hey there!\n\nUnfortunately, you are not authenticated yet. Please paste in your authentication token in the following format:\n\n!token YOUR_TOKEN"
	noticeCompletionErr = "Sorry, something went wrong while I was thinking. Please try again."
	noticeTimeout       = "That took too long and I gave up waiting. Please try again."
)

// Gateway is the Telegram-facing edge of the bot.
type Gateway struct {
	bot      *bot.Bot
	policy   auth.Policy
	registry *session.Registry
	timeout  time.Duration
}

// New builds the gateway around a bot API token.
func New(token string, policy auth.Policy, registry *session.Registry, timeout time.Duration) (*Gateway, error) {
	if timeout <= 0 {
		timeout = DefaultHandleTimeout
	}
	g := &Gateway{
		policy:   policy,
		registry: registry,
		timeout:  timeout,
	}
	b, err := bot.New(token, bot.WithDefaultHandler(g.onUpdate))
	if err != nil {
		return nil, err
	}
	g.bot = b
	return g, nil
}

// Run polls for updates until the context is canceled.
func (g *Gateway) Run(ctx context.Context) {
	log.Printf("telegram gateway connected")
	g.bot.Start(ctx)
}

func (g *Gateway) onUpdate(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}
	if msg.From == nil || msg.From.IsBot {
		return
	}
	if msg.Chat.Type != "private" {
		g.reply(ctx, msg, noticePrivateOnly)
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	hctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	authorized, err := g.policy.IsAuthorized(hctx, userID)
	if err != nil {
		log.Printf("authorization lookup for user %s: %v", userID, err)
		g.reply(ctx, msg, noticeCompletionErr)
		return
	}
	if !authorized {
		g.handleAuthAttempt(hctx, msg, userID)
		return
	}

	g.typing(ctx, msg.Chat.ID)

	s := g.registry.GetOrCreate(userID)
	reply, err := s.Handle(hctx, msg.Text)
	if err != nil {
		log.Printf("handle message for user %s: %v", userID, err)
		if errors.Is(hctx.Err(), context.DeadlineExceeded) {
			g.reply(ctx, msg, noticeTimeout)
		} else {
			g.reply(ctx, msg, noticeCompletionErr)
		}
		return
	}

	if reply.HasReply() {
		g.reply(ctx, msg, reply.Reply)
	}
	if reply.HasChannel() {
		g.say(ctx, msg.Chat.ID, reply.Channel)
	}
}

func (g *Gateway) handleAuthAttempt(ctx context.Context, msg *tgmodels.Message, userID string) {
	outcome, err := g.policy.TryAuthenticate(ctx, userID, msg.Text)
	if err != nil {
		log.Printf("authenticate user %s: %v", userID, err)
		g.reply(ctx, msg, noticeCompletionErr)
		return
	}
	switch outcome {
	case auth.OutcomeSuccess:
		g.reply(ctx, msg, noticeAuthSuccess)
	case auth.OutcomeInvalidToken:
		g.reply(ctx, msg, noticeAuthInvalid)
	default:
		g.reply(ctx, msg, noticeAuthHowTo)
	}
}

// reply sends a threaded response to the triggering message.
func (g *Gateway) reply(ctx context.Context, msg *tgmodels.Message, text string) {
	_, err := g.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          msg.Chat.ID,
		Text:            text,
		ReplyParameters: &tgmodels.ReplyParameters{MessageID: msg.ID},
	})
	if err != nil {
		log.Printf("send reply: %v", err)
	}
}

// say posts an unthreaded message to the chat.
func (g *Gateway) say(ctx context.Context, chatID int64, text string) {
	_, err := g.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		log.Printf("send message: %v", err)
	}
}

func (g *Gateway) typing(ctx context.Context, chatID int64) {
	_, err := g.bot.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: chatID,
		Action: tgmodels.ChatActionTyping,
	})
	if err != nil {
		log.Printf("send typing action: %v", err)
	}
}
