package chat

// State is the read surface a session exposes to the presentation layer.
// Messages are chronological ascending; PastQueries are the user-authored
// turns, most recent first, as the history sidebar renders them.
type State struct {
	Messages    []Message `json:"messages"`
	PastQueries []Message `json:"pastQueries"`
	Pending     bool      `json:"pending"`
	ActiveChat  string    `json:"activeChat,omitempty"`
}
