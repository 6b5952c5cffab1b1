package search

// Result is a single message hit returned to the caller.
type Result struct {
	User    string `json:"user"`
	Message string `json:"message"`
	Snippet string `json:"snippet"`
	Sent    int64  `json:"sent"`
	Channel string `json:"channel"`
}

// Query describes a message search request.
type Query struct {
	Text    string
	Channel string // empty = all channels
	Limit   int
	Offset  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over the message log.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// MessageRecord is the data indexed per message. ID is derived from the
// (user, sent) primary key so reindexing stays idempotent.
type MessageRecord struct {
	ID      string `json:"id"`
	User    string `json:"user"`
	Message string `json:"message"`
	Sent    int64  `json:"sent"`
	Channel string `json:"channel"`
}
