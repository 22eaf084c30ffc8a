package telegram

import (
	"context"
	"strings"
	"time"
)

// MaxMessageLength leaves headroom under Telegram's 4096 limit.
const MaxMessageLength = 4000

// SplitMessage cuts text into chunks of at most max runes. A cut prefers the
// last newline, then the last space, as long as that keeps the chunk at least
// half full; otherwise it is a hard cut. Leading whitespace of each remainder
// is dropped.
func SplitMessage(text string, max int) []string {
	if max <= 0 {
		max = MaxMessageLength
	}
	rest := []rune(text)
	if len(rest) <= max {
		return []string{text}
	}

	var out []string
	for len(rest) > 0 {
		if len(rest) <= max {
			out = append(out, string(rest))
			break
		}
		cut := lastIndex(rest, '\n', max)
		if cut < max/2 {
			cut = lastIndex(rest, ' ', max)
		}
		if cut < max/2 {
			cut = max
		}
		out = append(out, string(rest[:cut]))
		rest = []rune(strings.TrimLeft(string(rest[cut:]), " \t\r\n"))
	}
	return out
}

// lastIndex finds the last r at or before position limit, or -1.
func lastIndex(runes []rune, r rune, limit int) int {
	if limit >= len(runes) {
		limit = len(runes) - 1
	}
	for i := limit; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

// Deliver sends html, split into ordered chunks when it is too long.
func (c *Client) Deliver(ctx context.Context, chatID int64, html string) error {
	chunks := SplitMessage(html, MaxMessageLength)
	for i, chunk := range chunks {
		if i > 0 && c.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.ChunkDelay):
			}
		}
		if _, err := c.SendHTML(ctx, chatID, chunk); err != nil {
			return err
		}
	}
	return nil
}
