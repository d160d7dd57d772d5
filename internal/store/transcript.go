package store

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ismail-jr/studymate-backend/internal/model/chat"
)

// TranscriptStore persists per-user message logs and fans out full-state
// snapshots whenever a user's transcript changes. Snapshots are delivered
// in storage order (timestamp descending) and may coalesce under rapid
// writes: subscribers always receive the complete current list, never a
// diff, and a slow subscriber only ever misses intermediate states.
type TranscriptStore struct {
	db *DB

	mu   sync.Mutex
	subs map[string]map[chan []chat.Message]struct{}
}

// NewTranscriptStore wires a transcript store onto an opened database.
func NewTranscriptStore(db *DB) *TranscriptStore {
	return &TranscriptStore{
		db:   db,
		subs: make(map[string]map[chan []chat.Message]struct{}),
	}
}

// Append durably writes one message for userID and returns the assigned id.
func (s *TranscriptStore) Append(ctx context.Context, userID string, msg chat.Message) (string, error) {
	id := uuid.NewString()
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO messages (id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, string(msg.Role), msg.Content, createdAt)
	if err != nil {
		return "", storeErr("append message", err)
	}

	s.notify(userID)
	return id, nil
}

// List returns every message for userID, newest first.
func (s *TranscriptStore) List(ctx context.Context, userID string) ([]chat.Message, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, user_id, role, content, created_at FROM messages
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, storeErr("list messages", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0, 16)
	for rows.Next() {
		var m chat.Message
		var role string
		if err := rows.Scan(&m.ID, &m.UserID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, storeErr("scan message", err)
		}
		m.Role = chat.Role(role)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list messages", err)
	}

	return messages, nil
}

// DeleteOne removes a single message. Deleting an id that does not exist
// (or belongs to another user) is a no-op, not a failure.
func (s *TranscriptStore) DeleteOne(ctx context.Context, userID, id string) error {
	res, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM messages WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return storeErr("delete message", err)
	}

	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		s.notify(userID)
	}
	return nil
}

// DeleteAll removes every message for userID. The rows are enumerated and
// deleted one at a time, so a failure partway leaves a partially cleared
// transcript; subscribers converge once the remaining rows are gone.
func (s *TranscriptStore) DeleteAll(ctx context.Context, userID string) error {
	defer s.notify(userID)

	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id FROM messages WHERE user_id = ?`, userID)
	if err != nil {
		return storeErr("enumerate messages", err)
	}

	ids := make([]string, 0, 16)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return storeErr("enumerate messages", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return storeErr("enumerate messages", err)
	}

	for _, id := range ids {
		if _, err := s.db.conn.ExecContext(ctx,
			`DELETE FROM messages WHERE user_id = ? AND id = ?`, userID, id); err != nil {
			return storeErr("delete message", err)
		}
	}

	return nil
}

// Subscribe registers a listener for userID's transcript. The returned
// channel immediately receives the current snapshot and then one snapshot
// per observed change. Cancel detaches the listener and closes the channel.
func (s *TranscriptStore) Subscribe(userID string) (<-chan []chat.Message, func()) {
	ch := make(chan []chat.Message, 1)

	s.mu.Lock()
	if s.subs[userID] == nil {
		s.subs[userID] = make(map[chan []chat.Message]struct{})
	}
	s.subs[userID][ch] = struct{}{}
	s.mu.Unlock()

	// Seed the subscriber so it never starts from an empty view.
	s.notify(userID)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[userID], ch)
			if len(s.subs[userID]) == 0 {
				delete(s.subs, userID)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// notify re-queries the full transcript and pushes it to every subscriber,
// replacing any snapshot a slow subscriber has not drained yet.
func (s *TranscriptStore) notify(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.subs[userID]) == 0 {
		return
	}

	snapshot, err := s.List(context.Background(), userID)
	if err != nil {
		// Swallowed on purpose; the next change re-queries.
		log.Printf("[store] transcript snapshot failed for user=%s: %v", userID, err)
		return
	}

	for ch := range s.subs[userID] {
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
