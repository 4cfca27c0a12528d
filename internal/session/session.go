// Package session implements the per-user conversation engine: a registry of
// sessions keyed by user identity, each holding an ordered history that the
// completion backend continues.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"teachbot/internal/command"
	"teachbot/internal/models"
)

// ErrCompletionFailed marks failures of the completion backend. The gateway
// recovers from it with a user-visible apology; the session itself stays
// usable.
var ErrCompletionFailed = errors.New("completion failed")

const nothingToUndoNotice = "There is nothing to undo yet."

// Completer produces the next assistant turn for an ordered history. The
// session engine never retries; any retry policy belongs to the backend.
type Completer interface {
	Complete(ctx context.Context, history []*models.Message) (*models.Message, error)
}

// Session is one user's volatile conversation state. The first history entry
// is always the active system prompt. A session serializes its own handling:
// two messages from the same user never mutate history concurrently, while
// other users' sessions proceed independently.
type Session struct {
	mu       sync.Mutex
	history  []*models.Message
	llm      Completer
	lastUsed atomic.Int64 // unix nano, read by the registry sweeper
}

// New creates a session seeded with the default conversation prompt.
func New(llm Completer) *Session {
	s := &Session{
		history: []*models.Message{models.System(conversationPrompt)},
		llm:     llm,
	}
	s.touch()
	return s
}

// Handle processes one raw inbound message and produces the reply payload.
// History is only mutated after the paired completion succeeded, so a failed
// or abandoned call leaves the session exactly as it was.
func (s *Session) Handle(ctx context.Context, text string) (*models.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	cmd := command.Parse(text)
	if cmd == nil {
		return s.freeform(ctx, text)
	}

	switch cmd.Kind {
	case command.Chat:
		return s.restart(ctx, cmd.Arg)
	case command.Ask:
		return s.oneShot(ctx, reviewerPrompt, cmd.Arg)
	case command.Define:
		return s.oneShot(ctx, definePrompt, cmd.Arg)
	case command.Cases:
		return s.oneShot(ctx, casesPrompt, cmd.Arg)
	case command.Example:
		return s.oneShot(ctx, examplesPrompt, cmd.Arg)
	case command.Undo:
		return s.undo(), nil
	default:
		return s.freeform(ctx, text)
	}
}

// restart discards the conversation and opens a fresh one around the topic.
func (s *Session) restart(ctx context.Context, topic string) (*models.Reply, error) {
	fresh := []*models.Message{
		models.System(conversationPrompt),
		models.User(topic),
	}
	answer, err := s.llm.Complete(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("%w: restart conversation: %w", ErrCompletionFailed, err)
	}
	s.history = append(fresh, answer)
	return &models.Reply{Channel: answer.Content}, nil
}

// oneShot runs a single completion on a disposable history. The session's
// own history is untouched.
func (s *Session) oneShot(ctx context.Context, prompt, arg string) (*models.Reply, error) {
	answer, err := s.llm.Complete(ctx, []*models.Message{
		models.System(prompt),
		models.User(arg),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: one-shot: %w", ErrCompletionFailed, err)
	}
	return &models.Reply{Channel: answer.Content}, nil
}

// freeform runs the dual completion for an ordinary chat message: the
// in-persona continuation on the session history and, concurrently, reviewer
// feedback on a disposable history. Both requests are in flight before
// either is awaited. Either failure fails the whole exchange.
func (s *Session) freeform(ctx context.Context, text string) (*models.Reply, error) {
	convo := make([]*models.Message, len(s.history), len(s.history)+2)
	copy(convo, s.history)
	convo = append(convo, models.User(text))

	review := []*models.Message{
		models.System(reviewerPrompt),
		models.User(text),
	}

	type result struct {
		answer *models.Message
		err    error
	}
	convoCh := make(chan result, 1)
	reviewCh := make(chan result, 1)
	go func() {
		answer, err := s.llm.Complete(ctx, convo)
		convoCh <- result{answer, err}
	}()
	go func() {
		answer, err := s.llm.Complete(ctx, review)
		reviewCh <- result{answer, err}
	}()
	convoRes := <-convoCh
	reviewRes := <-reviewCh

	if convoRes.err != nil {
		return nil, fmt.Errorf("%w: continuation: %w", ErrCompletionFailed, convoRes.err)
	}
	if reviewRes.err != nil {
		return nil, fmt.Errorf("%w: review: %w", ErrCompletionFailed, reviewRes.err)
	}

	s.history = append(convo, convoRes.answer)
	return &models.Reply{
		Channel: convoRes.answer.Content,
		Reply:   reviewRes.answer.Content,
	}, nil
}

// undo removes up to the two most recent turns, never the leading system
// prompt, and reports what was removed as a direct reply.
func (s *Session) undo() *models.Reply {
	var removed []string
	for len(removed) < 2 && len(s.history) > 1 {
		last := s.history[len(s.history)-1]
		s.history = s.history[:len(s.history)-1]
		removed = append(removed, last.Content)
	}
	if len(removed) == 0 {
		return &models.Reply{Reply: nothingToUndoNotice}
	}

	var b strings.Builder
	b.WriteString("Forgot the last exchange:")
	for _, content := range removed {
		b.WriteString("\n\n> ")
		b.WriteString(content)
	}
	return &models.Reply{Reply: b.String()}
}

// HistoryLen reports the current history length, for the status API.
func (s *Session) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastUsed.Load()))
}
