package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"teachbot/internal/models"
)

// fakeCompleter records every history it receives and answers via reply,
// which defaults to echoing the last turn.
type fakeCompleter struct {
	mu    sync.Mutex
	calls [][]*models.Message
	reply func(history []*models.Message) (*models.Message, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, history []*models.Message) (*models.Message, error) {
	cloned := make([]*models.Message, len(history))
	copy(cloned, history)
	f.mu.Lock()
	f.calls = append(f.calls, cloned)
	f.mu.Unlock()

	if f.reply != nil {
		return f.reply(history)
	}
	last := history[len(history)-1]
	return models.Assistant("echo: " + last.Content), nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeCompleter) call(i int) []*models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func TestFreeformProducesBothParts(t *testing.T) {
	fake := &fakeCompleter{}
	s := New(fake)

	reply, err := s.Handle(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !reply.HasChannel() || !reply.HasReply() {
		t.Fatalf("expected both reply parts, got %+v", reply)
	}
	if fake.callCount() != 2 {
		t.Fatalf("expected 2 completions, got %d", fake.callCount())
	}
	if got := s.HistoryLen(); got != 3 {
		t.Fatalf("expected history [system, user, assistant], got %d entries", got)
	}

	// one request continues the conversation, the other consults the reviewer
	var sawConversation, sawReviewer bool
	for i := 0; i < 2; i++ {
		history := fake.call(i)
		if history[0].Role != models.RoleSystem {
			t.Fatalf("call %d does not start with a system prompt", i)
		}
		switch history[0].Content {
		case conversationPrompt:
			sawConversation = true
		case reviewerPrompt:
			sawReviewer = true
			if len(history) != 2 || history[1].Content != "hello there" {
				t.Fatalf("reviewer history should hold only the message, got %d entries", len(history))
			}
		}
	}
	if !sawConversation || !sawReviewer {
		t.Fatalf("expected one conversation and one reviewer request")
	}
}

func TestFreeformRequestsRunConcurrently(t *testing.T) {
	var inFlight atomic.Int32
	bothIn := make(chan struct{})
	fake := &fakeCompleter{}
	fake.reply = func(history []*models.Message) (*models.Message, error) {
		if inFlight.Add(1) == 2 {
			close(bothIn)
		}
		select {
		case <-bothIn:
		case <-time.After(2 * time.Second):
			return nil, errors.New("second request never arrived: completions ran sequentially")
		}
		return models.Assistant("ok"), nil
	}

	s := New(fake)
	if _, err := s.Handle(context.Background(), "cześć"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}

func TestChatResetsConversation(t *testing.T) {
	fake := &fakeCompleter{}
	s := New(fake)

	if _, err := s.Handle(context.Background(), "first message"); err != nil {
		t.Fatalf("warm-up Handle: %v", err)
	}

	reply, err := s.Handle(context.Background(), "!chat Let's talk about food")
	if err != nil {
		t.Fatalf("Handle !chat: %v", err)
	}
	if !reply.HasChannel() || reply.HasReply() {
		t.Fatalf("expected channel-only reply, got %+v", reply)
	}

	// the completion saw exactly the reset history: system prompt + topic
	last := fake.call(fake.callCount() - 1)
	if len(last) != 2 {
		t.Fatalf("expected reset history of 2 entries, got %d", len(last))
	}
	if last[0].Role != models.RoleSystem || last[0].Content != conversationPrompt {
		t.Fatalf("reset history must lead with the conversation prompt")
	}
	if last[1].Role != models.RoleUser || last[1].Content != "Let's talk about food" {
		t.Fatalf("reset history must carry the new topic, got %+v", last[1])
	}
	if got := s.HistoryLen(); got != 3 {
		t.Fatalf("expected history [system, topic, answer], got %d entries", got)
	}
}

func TestOneShotCommandsLeaveHistoryAlone(t *testing.T) {
	prompts := map[string]string{
		"!ask is this right?": reviewerPrompt,
		"!def pierogi":        definePrompt,
		"!cases kot":          casesPrompt,
		"!ex woda":            examplesPrompt,
	}
	for in, prompt := range prompts {
		fake := &fakeCompleter{}
		s := New(fake)

		reply, err := s.Handle(context.Background(), in)
		if err != nil {
			t.Fatalf("Handle(%q): %v", in, err)
		}
		if !reply.HasChannel() || reply.HasReply() {
			t.Fatalf("Handle(%q): expected channel-only reply, got %+v", in, reply)
		}
		if got := s.HistoryLen(); got != 1 {
			t.Fatalf("Handle(%q): history must stay untouched, got %d entries", in, got)
		}
		history := fake.call(0)
		if len(history) != 2 || history[0].Content != prompt {
			t.Fatalf("Handle(%q): wrong one-shot history: %+v", in, history)
		}
	}
}

func TestUndoOnFreshSession(t *testing.T) {
	s := New(&fakeCompleter{})

	reply, err := s.Handle(context.Background(), "!undo")
	if err != nil {
		t.Fatalf("Handle !undo: %v", err)
	}
	if reply.HasChannel() || !reply.HasReply() {
		t.Fatalf("expected direct-reply notice, got %+v", reply)
	}
	if reply.Reply != nothingToUndoNotice {
		t.Fatalf("expected nothing-to-undo notice, got %q", reply.Reply)
	}
	if got := s.HistoryLen(); got != 1 {
		t.Fatalf("undo must not shrink a fresh session, got %d entries", got)
	}
}

func TestUndoRemovesLastExchange(t *testing.T) {
	fake := &fakeCompleter{}
	s := New(fake)

	if _, err := s.Handle(context.Background(), "dzień dobry"); err != nil {
		t.Fatalf("warm-up Handle: %v", err)
	}
	if got := s.HistoryLen(); got != 3 {
		t.Fatalf("expected 3 entries before undo, got %d", got)
	}

	reply, err := s.Handle(context.Background(), "!undo")
	if err != nil {
		t.Fatalf("Handle !undo: %v", err)
	}
	if got := s.HistoryLen(); got != 1 {
		t.Fatalf("expected history restored to 1 entry, got %d", got)
	}
	if reply.HasChannel() || !reply.HasReply() {
		t.Fatalf("expected direct-reply notice, got %+v", reply)
	}
	if !strings.Contains(reply.Reply, "dzień dobry") || !strings.Contains(reply.Reply, "echo: dzień dobry") {
		t.Fatalf("notice must list the removed contents, got %q", reply.Reply)
	}
}

func TestCompletionFailureLeavesHistoryClean(t *testing.T) {
	boom := errors.New("provider exploded")
	fake := &fakeCompleter{}
	fake.reply = func(history []*models.Message) (*models.Message, error) {
		return nil, boom
	}
	s := New(fake)

	_, err := s.Handle(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("expected ErrCompletionFailed, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected underlying cause preserved, got %v", err)
	}
	if got := s.HistoryLen(); got != 1 {
		t.Fatalf("failed exchange must not mutate history, got %d entries", got)
	}

	// session stays usable after the failure
	fake.reply = nil
	if _, err := s.Handle(context.Background(), "hello again"); err != nil {
		t.Fatalf("Handle after failure: %v", err)
	}
	if got := s.HistoryLen(); got != 3 {
		t.Fatalf("expected recovery exchange recorded, got %d entries", got)
	}
}

func TestReviewerFailureFailsWholeExchange(t *testing.T) {
	fake := &fakeCompleter{}
	fake.reply = func(history []*models.Message) (*models.Message, error) {
		if history[0].Content == reviewerPrompt {
			return nil, fmt.Errorf("reviewer offline")
		}
		return models.Assistant("continuation"), nil
	}
	s := New(fake)

	_, err := s.Handle(context.Background(), "hello")
	if !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("expected ErrCompletionFailed, got %v", err)
	}
	if got := s.HistoryLen(); got != 1 {
		t.Fatalf("no partial reply: history must stay clean, got %d entries", got)
	}
}

func TestChatFailureKeepsOldConversation(t *testing.T) {
	fake := &fakeCompleter{}
	s := New(fake)

	if _, err := s.Handle(context.Background(), "before reset"); err != nil {
		t.Fatalf("warm-up Handle: %v", err)
	}

	fake.reply = func(history []*models.Message) (*models.Message, error) {
		return nil, errors.New("down")
	}
	if _, err := s.Handle(context.Background(), "!chat new topic"); err == nil {
		t.Fatalf("expected error")
	}
	// the old conversation survives a failed reset
	if got := s.HistoryLen(); got != 3 {
		t.Fatalf("expected prior history intact, got %d entries", got)
	}
}

func TestCanceledContextPropagates(t *testing.T) {
	fake := &fakeCompleter{}
	fake.reply = func(history []*models.Message) (*models.Message, error) {
		return nil, context.DeadlineExceeded
	}
	s := New(fake)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	_, err := s.Handle(ctx, "slow one")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error preserved, got %v", err)
	}
	if got := s.HistoryLen(); got != 1 {
		t.Fatalf("abandoned call must not leave history half-mutated, got %d entries", got)
	}
}
