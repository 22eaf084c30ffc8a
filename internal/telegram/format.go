package telegram

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeHTML escapes the three characters Telegram's HTML parse mode cares about.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

var (
	reFence    = regexp.MustCompile("```[\\w]*\\n?([\\s\\S]+?)```")
	reInline   = regexp.MustCompile("`([^`\\n]+?)`")
	reHeading  = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	reBullet   = regexp.MustCompile(`(?m)^[ \t]*[*\-][ \t]+(.+)$`)
	reBoldStar = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reBoldUnd  = regexp.MustCompile(`__(.+?)__`)
	reItalStar = regexp.MustCompile(`\*([^*\n]+?)\*`)
	reItalUnd  = regexp.MustCompile(`(^|[^\w])_([^_\n]+?)_($|[^\w])`)
	reStash    = regexp.MustCompile(`\x00(\d+)\x00`)
	reTag      = regexp.MustCompile(`<[^>]*>`)
)

// MarkdownToHTML converts the small markdown subset LLMs tend to emit into
// Telegram HTML. Input is escaped first; code spans are left untouched.
func MarkdownToHTML(s string) string {
	s = EscapeHTML(s)

	var stash []string
	keep := func(rendered string) string {
		stash = append(stash, rendered)
		return fmt.Sprintf("\x00%d\x00", len(stash)-1)
	}

	s = reFence.ReplaceAllStringFunc(s, func(m string) string {
		body := reFence.FindStringSubmatch(m)[1]
		return keep("<pre>" + body + "</pre>")
	})
	s = reInline.ReplaceAllStringFunc(s, func(m string) string {
		body := reInline.FindStringSubmatch(m)[1]
		return keep("<code>" + body + "</code>")
	})

	s = reHeading.ReplaceAllString(s, "<b>$1</b>")
	s = reBullet.ReplaceAllString(s, "• $1")
	s = reBoldStar.ReplaceAllString(s, "<b>$1</b>")
	s = reBoldUnd.ReplaceAllString(s, "<b>$1</b>")
	s = reItalStar.ReplaceAllString(s, "<i>$1</i>")
	s = reItalUnd.ReplaceAllString(s, "$1<i>$2</i>$3")

	return reStash.ReplaceAllStringFunc(s, func(m string) string {
		i, err := strconv.Atoi(reStash.FindStringSubmatch(m)[1])
		if err != nil || i >= len(stash) {
			return m
		}
		return stash[i]
	})
}

// StripHTML removes tags and decodes entities, producing plain text.
func StripHTML(s string) string {
	return html.UnescapeString(reTag.ReplaceAllString(s, ""))
}

// Truncate cuts s to at most n runes, appending "..." when it cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
