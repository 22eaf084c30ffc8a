package chat

import "github.com/oklog/ulid/v2"

// NewChatID returns a 26-char lexicographically sortable id.
func NewChatID() string {
	return ulid.Make().String()
}
