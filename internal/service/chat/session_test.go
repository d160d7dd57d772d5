package chat_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	chatmodel "github.com/ismail-jr/studymate-backend/internal/model/chat"
	chat "github.com/ismail-jr/studymate-backend/internal/service/chat"
)

// memStore mimics the transcript store contract in memory: append-only rows,
// newest-first snapshots, one push per committed change.
type memStore struct {
	mu      sync.Mutex
	nextID  int
	rows    map[string][]chatmodel.Message
	subs    map[string][]chan []chatmodel.Message
	failAll error
}

func newMemStore() *memStore {
	return &memStore{
		rows: make(map[string][]chatmodel.Message),
		subs: make(map[string][]chan []chatmodel.Message),
	}
}

func (s *memStore) Append(_ context.Context, userID string, msg chatmodel.Message) (string, error) {
	s.mu.Lock()
	if s.failAll != nil {
		err := s.failAll
		s.mu.Unlock()
		return "", err
	}
	s.nextID++
	msg.ID = fmt.Sprintf("m%d", s.nextID)
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.rows[userID] = append(s.rows[userID], msg)
	s.mu.Unlock()

	s.notify(userID)
	return msg.ID, nil
}

func (s *memStore) DeleteOne(_ context.Context, userID, id string) error {
	s.mu.Lock()
	if s.failAll != nil {
		err := s.failAll
		s.mu.Unlock()
		return err
	}
	kept := s.rows[userID][:0:0]
	removed := false
	for _, m := range s.rows[userID] {
		if m.ID == id {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	s.rows[userID] = kept
	s.mu.Unlock()

	if removed {
		s.notify(userID)
	}
	return nil
}

func (s *memStore) DeleteAll(_ context.Context, userID string) error {
	s.mu.Lock()
	if s.failAll != nil {
		err := s.failAll
		s.mu.Unlock()
		return err
	}
	s.rows[userID] = nil
	s.mu.Unlock()

	s.notify(userID)
	return nil
}

func (s *memStore) Subscribe(userID string) (<-chan []chatmodel.Message, func()) {
	ch := make(chan []chatmodel.Message, 1)
	s.mu.Lock()
	s.subs[userID] = append(s.subs[userID], ch)
	s.mu.Unlock()

	s.notify(userID)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			kept := s.subs[userID][:0:0]
			for _, c := range s.subs[userID] {
				if c != ch {
					kept = append(kept, c)
				}
			}
			s.subs[userID] = kept
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *memStore) notify(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Snapshot in storage order, newest first.
	rows := s.rows[userID]
	snapshot := make([]chatmodel.Message, len(rows))
	for i, m := range rows {
		snapshot[len(rows)-1-i] = m
	}

	for _, ch := range s.subs[userID] {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func (s *memStore) count(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[userID])
}

// scriptedCompleter returns canned replies or errors, and can block to keep
// a send pending.
type scriptedCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   chan struct{}
	windows [][]chatmodel.Turn
}

func (c *scriptedCompleter) Complete(_ context.Context, window []chatmodel.Turn) (string, error) {
	c.mu.Lock()
	c.windows = append(c.windows, append([]chatmodel.Turn(nil), window...))
	block := c.block
	reply, err := c.reply, c.err
	c.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (c *scriptedCompleter) lastWindow() []chatmodel.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.windows) == 0 {
		return nil
	}
	return c.windows[len(c.windows)-1]
}

func newSession(t *testing.T, store *memStore, completer *scriptedCompleter) *chat.Session {
	t.Helper()
	sess := chat.NewSession("u1", store, completer, "Something went wrong. Please try again.")
	t.Cleanup(sess.Close)
	return sess
}

func waitForMessages(t *testing.T, sess *chat.Session, want int) chatmodel.State {
	t.Helper()
	var state chatmodel.State
	require.Eventually(t, func() bool {
		state = sess.State()
		return len(state.Messages) == want
	}, 2*time.Second, 5*time.Millisecond, "transcript never reached %d messages", want)
	return state
}

func TestSendMessageAppendsUserAndAssistantTurns(t *testing.T) {
	store := newMemStore()
	completer := &scriptedCompleter{reply: "try spaced repetition"}
	sess := newSession(t, store, completer)

	reply, err := sess.SendMessage(context.Background(), "how should I revise?")
	require.NoError(t, err)
	require.Equal(t, "try spaced repetition", reply)

	state := waitForMessages(t, sess, 2)
	require.Equal(t, chatmodel.RoleUser, state.Messages[0].Role)
	require.Equal(t, "how should I revise?", state.Messages[0].Content)
	require.Equal(t, chatmodel.RoleAssistant, state.Messages[1].Role)
	require.Equal(t, "try spaced repetition", state.Messages[1].Content)
	require.False(t, state.Pending)
}

func TestSendMessageCompletionFailureKeepsUserTurnOnly(t *testing.T) {
	store := newMemStore()
	completer := &scriptedCompleter{err: errors.New("upstream 502")}
	sess := newSession(t, store, completer)

	reply, err := sess.SendMessage(context.Background(), "hello")
	require.Error(t, err)
	require.Equal(t, "Something went wrong. Please try again.", reply)

	state := waitForMessages(t, sess, 1)
	require.Equal(t, chatmodel.RoleUser, state.Messages[0].Role)
	require.False(t, state.Pending, "pending must clear on failure")
	require.Equal(t, 1, store.count("u1"), "fallback reply must not be persisted")
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	store := newMemStore()
	sess := newSession(t, store, &scriptedCompleter{reply: "x"})

	_, err := sess.SendMessage(context.Background(), "   \n\t ")
	require.ErrorIs(t, err, chat.ErrEmptyMessage)
	require.Zero(t, store.count("u1"))
}

func TestSendMessageRejectsConcurrentSend(t *testing.T) {
	store := newMemStore()
	completer := &scriptedCompleter{reply: "ok", block: make(chan struct{})}
	sess := newSession(t, store, completer)

	firstDone := make(chan error, 1)
	go func() {
		_, err := sess.SendMessage(context.Background(), "first")
		firstDone <- err
	}()

	require.Eventually(t, func() bool {
		return sess.State().Pending
	}, 2*time.Second, 5*time.Millisecond)

	_, err := sess.SendMessage(context.Background(), "second")
	require.ErrorIs(t, err, chat.ErrBusy)

	close(completer.block)
	require.NoError(t, <-firstDone)
	waitForMessages(t, sess, 2)
}

func TestPastQueriesAlwaysUserAuthoredSubset(t *testing.T) {
	store := newMemStore()
	completer := &scriptedCompleter{reply: "reply"}
	sess := newSession(t, store, completer)

	for _, q := range []string{"one", "two", "three"} {
		_, err := sess.SendMessage(context.Background(), q)
		require.NoError(t, err)
	}

	state := waitForMessages(t, sess, 6)
	require.Len(t, state.PastQueries, 3)
	for _, q := range state.PastQueries {
		require.Equal(t, chatmodel.RoleUser, q.Role)
	}
	// Newest first, as the sidebar renders them.
	require.Equal(t, "three", state.PastQueries[0].Content)
	require.Equal(t, "one", state.PastQueries[2].Content)
}

func TestStartNewChatConvergesToEmpty(t *testing.T) {
	store := newMemStore()
	completer := &scriptedCompleter{reply: "reply"}
	sess := newSession(t, store, completer)

	_, err := sess.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	waitForMessages(t, sess, 2)

	sess.SetActiveChat("m1")
	require.NoError(t, sess.StartNewChat(context.Background()))

	state := waitForMessages(t, sess, 0)
	require.Empty(t, state.PastQueries)
	require.Empty(t, state.ActiveChat)
	require.Zero(t, store.count("u1"))
}

func TestStartNewChatStoreFailureLeavesStateUntouched(t *testing.T) {
	store := newMemStore()
	completer := &scriptedCompleter{reply: "reply"}
	sess := newSession(t, store, completer)

	_, err := sess.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	waitForMessages(t, sess, 2)

	store.mu.Lock()
	store.failAll = errors.New("connection lost")
	store.mu.Unlock()

	require.Error(t, sess.StartNewChat(context.Background()))
	require.Len(t, sess.State().Messages, 2, "local state stays last-known-good")
}

func TestDeleteQueryRemovesFromBothViews(t *testing.T) {
	store := newMemStore()
	completer := &scriptedCompleter{reply: "reply"}
	sess := newSession(t, store, completer)

	_, err := sess.SendMessage(context.Background(), "delete me")
	require.NoError(t, err)
	state := waitForMessages(t, sess, 2)
	queryID := state.PastQueries[0].ID
	require.NotEmpty(t, queryID)

	require.NoError(t, sess.DeleteQuery(context.Background(), queryID))

	require.Eventually(t, func() bool {
		st := sess.State()
		return len(st.Messages) == 1 && len(st.PastQueries) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDeleteQueryUnknownIDIsNoOp(t *testing.T) {
	store := newMemStore()
	completer := &scriptedCompleter{reply: "reply"}
	sess := newSession(t, store, completer)

	_, err := sess.SendMessage(context.Background(), "keep me")
	require.NoError(t, err)
	before := waitForMessages(t, sess, 2)

	require.NoError(t, sess.DeleteQuery(context.Background(), "no-such-id"))
	require.NoError(t, sess.DeleteQuery(context.Background(), ""))

	after := sess.State()
	require.Equal(t, before.Messages, after.Messages)
	require.Equal(t, before.PastQueries, after.PastQueries)
}

func TestDeleteQueryIsIdempotent(t *testing.T) {
	store := newMemStore()
	completer := &scriptedCompleter{reply: "reply"}
	sess := newSession(t, store, completer)

	_, err := sess.SendMessage(context.Background(), "once")
	require.NoError(t, err)
	state := waitForMessages(t, sess, 2)
	queryID := state.PastQueries[0].ID

	require.NoError(t, sess.DeleteQuery(context.Background(), queryID))
	require.NoError(t, sess.DeleteQuery(context.Background(), queryID))

	require.Eventually(t, func() bool {
		st := sess.State()
		return len(st.Messages) == 1 && len(st.PastQueries) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCompletionWindowIncludesHistoryAndNewTurn(t *testing.T) {
	store := newMemStore()
	completer := &scriptedCompleter{reply: "reply"}
	sess := newSession(t, store, completer)

	_, err := sess.SendMessage(context.Background(), "first")
	require.NoError(t, err)
	waitForMessages(t, sess, 2)

	_, err = sess.SendMessage(context.Background(), "second")
	require.NoError(t, err)

	window := completer.lastWindow()
	require.Len(t, window, 3)
	require.Equal(t, "first", window[0].Content)
	require.Equal(t, chatmodel.RoleAssistant, window[1].Role)
	require.Equal(t, "second", window[2].Content)
}

func TestCloseDiscardsInFlightCompletion(t *testing.T) {
	store := newMemStore()
	completer := &scriptedCompleter{reply: "late reply", block: make(chan struct{})}
	sess := newSession(t, store, completer)

	done := make(chan error, 1)
	go func() {
		_, err := sess.SendMessage(context.Background(), "hi")
		done <- err
	}()

	require.Eventually(t, func() bool {
		return completer.lastWindow() != nil
	}, 2*time.Second, 5*time.Millisecond)

	sess.Close()
	close(completer.block)

	require.ErrorIs(t, <-done, chat.ErrSessionClosed)
	require.Equal(t, 1, store.count("u1"), "late reply must not be persisted")
	require.Empty(t, sess.State().Messages)
}

func TestManagerDetachClosesSession(t *testing.T) {
	store := newMemStore()
	completer := &scriptedCompleter{reply: "reply"}
	mgr := chat.NewManager(store, completer, "fallback")

	sess := mgr.Attach("u1")
	require.Same(t, sess, mgr.Attach("u1"), "attach reuses the live session")

	mgr.Detach("u1")
	_, err := sess.SendMessage(context.Background(), "hi")
	require.ErrorIs(t, err, chat.ErrSessionClosed)

	require.NotSame(t, sess, mgr.Attach("u1"), "detach forces a fresh session")
	mgr.CloseAll()
}
