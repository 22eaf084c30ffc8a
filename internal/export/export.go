package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/suPer8Hu/qbot/internal/ai"
	"github.com/suPer8Hu/qbot/internal/chat"
)

var (
	ErrNotConfigured = errors.New("notes repo not configured")
	ErrNoMessages    = errors.New("no messages to export")
)

const (
	RawDir   = "chats/raw"
	NotesDir = "chats/notes"
	footer   = "*Exported from QBot*"

	notesPromptHeader = `Convert this conversation into a well-organized knowledge document in Markdown format.
Extract key information, insights, and learnings. Use headers, bullet points, and code blocks where appropriate.
Make it useful as a reference document.

Conversation:
`
)

type Store interface {
	GetOrCreateActiveChat(ctx context.Context, userID int64) (*chat.Chat, error)
	GetChatWithMessages(ctx context.Context, chatID string) (*chat.Chat, error)
	GetSettings(ctx context.Context, userID int64) (chat.Settings, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, providerKey string, req ai.Request) (ai.Response, error)
}

// File is one document to commit, with a repo-relative slash path.
type File struct {
	Path    string
	Content string
}

// Publisher commits files to the notes repository and pushes them.
type Publisher interface {
	Publish(ctx context.Context, files []File, message string) error
}

type Result struct {
	RawFile   string
	NotesFile string
	RawURL    string
	NotesURL  string
}

type Exporter struct {
	store  Store
	ai     Dispatcher
	pub    Publisher
	webURL string
	logger *slog.Logger

	Now func() time.Time
}

// NewExporter returns an exporter; pub may be nil when no repo is configured.
// webURL, when set, is the browsable prefix for committed paths.
func NewExporter(store Store, dispatcher Dispatcher, pub Publisher, webURL string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		store:  store,
		ai:     dispatcher,
		pub:    pub,
		webURL: strings.TrimRight(webURL, "/"),
		logger: logger,
		Now:    time.Now,
	}
}

func (e *Exporter) Configured() bool { return e != nil && e.pub != nil }

// Export writes the active chat as a raw transcript and as AI-generated
// notes. When the provider fails the notes fall back to the transcript.
func (e *Exporter) Export(ctx context.Context, userID int64) (Result, error) {
	if !e.Configured() {
		return Result{}, ErrNotConfigured
	}

	active, err := e.store.GetOrCreateActiveChat(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	c, err := e.store.GetChatWithMessages(ctx, active.ID)
	if err != nil {
		return Result{}, err
	}
	if len(c.Messages) == 0 {
		return Result{}, ErrNoMessages
	}

	transcript := Transcript(c.Messages)
	notes := transcript
	settings, err := e.store.GetSettings(ctx, userID)
	if err == nil {
		resp, aiErr := e.ai.Dispatch(ctx, settings.Provider, ai.Request{
			Model:  settings.Model,
			Prompt: notesPromptHeader + transcript,
		})
		if aiErr != nil {
			e.logger.Warn("notes generation failed, exporting transcript", "chat_id", c.ID, "provider", settings.Provider, "error", aiErr)
		} else if strings.TrimSpace(resp.Content) != "" {
			notes = resp.Content
		}
	}

	now := e.Now()
	name := Filename(now, c.Title)
	rawPath := path.Join(RawDir, name)
	notesPath := path.Join(NotesDir, name)
	files := []File{
		{Path: rawPath, Content: Render(c.Title, transcript, now)},
		{Path: notesPath, Content: Render(c.Title, notes, now)},
	}
	if err := e.pub.Publish(ctx, files, "Add: "+c.Title); err != nil {
		return Result{}, fmt.Errorf("git push failed: %w", err)
	}
	e.logger.Info("chat exported", "chat_id", c.ID, "user_id", userID, "file", name)

	res := Result{RawFile: rawPath, NotesFile: notesPath}
	if e.webURL != "" {
		res.RawURL = e.webURL + "/" + rawPath
		res.NotesURL = e.webURL + "/" + notesPath
	}
	return res, nil
}

// Transcript renders messages as bold-speaker paragraphs.
func Transcript(msgs []chat.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		speaker := "Assistant"
		if m.Role == chat.RoleUser {
			speaker = "User"
		}
		parts = append(parts, fmt.Sprintf("**%s:** %s", speaker, m.Content))
	}
	return strings.Join(parts, "\n\n")
}

// Render wraps body with the title, the export stamp and the footer.
func Render(title, body string, at time.Time) string {
	return fmt.Sprintf("# %s\n\n> Exported on %s\n\n%s\n\n---\n\n%s\n",
		title, at.Format("2006-01-02 15:04:05"), body, footer)
}

var unsafeTitle = regexp.MustCompile(`[^a-zA-Z0-9\x{4e00}-\x{9fa5}]`)

// SafeTitle keeps ASCII alphanumerics and CJK, dashes the rest, and caps the
// result at 50 characters.
func SafeTitle(title string) string {
	s := []rune(unsafeTitle.ReplaceAllString(title, "-"))
	if len(s) > 50 {
		s = s[:50]
	}
	return string(s)
}

func Filename(at time.Time, title string) string {
	return at.UTC().Format("2006-01-02") + "-" + SafeTitle(title) + ".md"
}
