package store

// User is a registered account. Rows are created once at registration and
// never mutated or deleted.
type User struct {
	Username     string
	PasswordHash string
	Salt         string
	Email        string
}

// Channel is a named message stream.
type Channel struct {
	Name string
}

// Message is one chat message. Sent is epoch milliseconds; (User, Sent) is
// the composite primary key.
type Message struct {
	User    string `json:"user"`
	Message string `json:"message"`
	Sent    int64  `json:"sent"`
	Channel string `json:"channel"`
}
