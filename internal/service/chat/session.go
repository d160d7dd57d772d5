package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ismail-jr/studymate-backend/internal/model/chat"
)

var (
	ErrEmptyMessage  = errors.New("message is empty")
	ErrBusy          = errors.New("a send is already pending")
	ErrSessionClosed = errors.New("session closed")
)

// TranscriptStore is the session's contract with the durable message log.
// Subscribe delivers full-state snapshots in storage order (newest first).
type TranscriptStore interface {
	Append(ctx context.Context, userID string, msg chat.Message) (string, error)
	DeleteOne(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) error
	Subscribe(userID string) (<-chan []chat.Message, func())
}

// Completer turns a conversation window into generated text.
type Completer interface {
	Complete(ctx context.Context, window []chat.Turn) (string, error)
}

// Session owns one user's live conversation state: the ascending transcript,
// the user-authored history, the pending flag, and the active-chat marker.
// All mutations go through the store first; the subscription push is the
// authority that reconciles local state, and a push always wins over any
// optimistic local edit.
type Session struct {
	userID    string
	store     TranscriptStore
	completer Completer
	fallback  string

	mu          sync.Mutex
	messages    []chat.Message // ascending
	pastQueries []chat.Message // user turns, newest first
	pending     bool
	activeChat  string
	closed      bool
	watchers    map[chan chat.State]struct{}

	cancelSub func()
}

// NewSession subscribes to the user's transcript and starts reconciling.
func NewSession(userID string, store TranscriptStore, completer Completer, fallback string) *Session {
	s := &Session{
		userID:    userID,
		store:     store,
		completer: completer,
		fallback:  fallback,
		watchers:  make(map[chan chat.State]struct{}),
	}

	updates, cancel := store.Subscribe(userID)
	s.cancelSub = cancel

	go func() {
		for snapshot := range updates {
			s.reconcile(snapshot)
		}
	}()

	return s
}

// SendMessage persists the user turn, runs one completion, and persists the
// reply. The transcript UI updates arrive through the subscription push, not
// from this call. On completion failure the transcript keeps the unanswered
// user turn and the fallback reply is returned alongside the error; pending
// is cleared on every path.
func (s *Session) SendMessage(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	if s.pending {
		// At most one outstanding completion per session.
		s.mu.Unlock()
		return "", ErrBusy
	}
	s.pending = true
	window := chat.Window(s.messages)
	s.mu.Unlock()
	s.broadcast()

	defer s.clearPending()

	userMsg := chat.Message{
		UserID:    s.userID,
		Role:      chat.RoleUser,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.store.Append(ctx, s.userID, userMsg); err != nil {
		log.Printf("[session] append user turn failed user=%s: %v", s.userID, err)
		return "", err
	}
	window = append(window, chat.Turn{Role: chat.RoleUser, Content: text})

	reply, err := s.completer.Complete(ctx, window)

	if s.isClosed() {
		// Identity changed while the completion was in flight; discard.
		return "", ErrSessionClosed
	}
	if err != nil {
		log.Printf("[session] completion failed user=%s: %v", s.userID, err)
		return s.fallback, err
	}

	assistantMsg := chat.Message{
		UserID:    s.userID,
		Role:      chat.RoleAssistant,
		Content:   reply,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.store.Append(ctx, s.userID, assistantMsg); err != nil {
		log.Printf("[session] append assistant turn failed user=%s: %v", s.userID, err)
		return reply, err
	}

	return reply, nil
}

// StartNewChat clears the user's entire transcript. On store failure the
// local state is left as last-known-good; renders during the bulk delete may
// be transiently inconsistent but converge to empty through the push.
func (s *Session) StartNewChat(ctx context.Context) error {
	if s.isClosed() {
		return ErrSessionClosed
	}

	if err := s.store.DeleteAll(ctx, s.userID); err != nil {
		log.Printf("[session] clear transcript failed user=%s: %v", s.userID, err)
		return err
	}

	s.mu.Lock()
	s.messages = nil
	s.pastQueries = nil
	s.activeChat = ""
	s.mu.Unlock()
	s.broadcast()
	return nil
}

// DeleteQuery removes one user turn. The history sidebar entry goes eagerly;
// the transcript entry is removed only by the subsequent push, keeping both
// views consistent once reconciliation lands. Unknown or empty ids are no-ops.
func (s *Session) DeleteQuery(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if s.isClosed() {
		return ErrSessionClosed
	}

	if err := s.store.DeleteOne(ctx, s.userID, id); err != nil {
		log.Printf("[session] delete query failed user=%s id=%s: %v", s.userID, id, err)
		return err
	}

	s.mu.Lock()
	kept := s.pastQueries[:0:0]
	for _, m := range s.pastQueries {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	s.pastQueries = kept
	s.mu.Unlock()
	s.broadcast()
	return nil
}

// SetActiveChat marks which history entry the sidebar highlights. The
// transcript stays flat; the marker does not partition it.
func (s *Session) SetActiveChat(id string) {
	s.mu.Lock()
	s.activeChat = id
	s.mu.Unlock()
	s.broadcast()
}

// State snapshots the session for the presentation layer.
func (s *Session) State() chat.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Watch delivers a state snapshot per change, latest-wins for slow readers.
// Cancel detaches the watcher and closes the channel.
func (s *Session) Watch() (<-chan chat.State, func()) {
	ch := make(chan chat.State, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.watchers[ch] = struct{}{}
	ch <- s.stateLocked()
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			_, attached := s.watchers[ch]
			delete(s.watchers, ch)
			s.mu.Unlock()
			if attached {
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close tears the session down: the subscription is disposed, watchers are
// closed, and state is reset. In-flight completions finish but their results
// are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.messages = nil
	s.pastQueries = nil
	s.pending = false
	s.activeChat = ""
	watchers := s.watchers
	s.watchers = make(map[chan chat.State]struct{})
	s.mu.Unlock()

	s.cancelSub()
	for ch := range watchers {
		close(ch)
	}
}

// reconcile replaces local state with a fresh storage-order snapshot.
func (s *Session) reconcile(snapshot []chat.Message) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	queries := make([]chat.Message, 0, len(snapshot))
	for _, m := range snapshot {
		if m.Role == chat.RoleUser {
			queries = append(queries, m)
		}
	}
	s.pastQueries = queries

	ascending := make([]chat.Message, len(snapshot))
	for i, m := range snapshot {
		ascending[len(snapshot)-1-i] = m
	}
	s.messages = ascending
	s.mu.Unlock()
	s.broadcast()
}

func (s *Session) stateLocked() chat.State {
	return chat.State{
		Messages:    append([]chat.Message(nil), s.messages...),
		PastQueries: append([]chat.Message(nil), s.pastQueries...),
		Pending:     s.pending,
		ActiveChat:  s.activeChat,
	}
}

func (s *Session) broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	state := s.stateLocked()
	for ch := range s.watchers {
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}

func (s *Session) clearPending() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.mu.Unlock()
	s.broadcast()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
