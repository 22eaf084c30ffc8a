package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/suPer8Hu/qbot/internal/ai"
	"github.com/suPer8Hu/qbot/internal/chat"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

type fakeStore struct {
	chat *chat.Chat
}

func (s *fakeStore) GetOrCreateActiveChat(ctx context.Context, userID int64) (*chat.Chat, error) {
	return &chat.Chat{ID: s.chat.ID, UserID: userID, Title: s.chat.Title}, nil
}

func (s *fakeStore) GetChatWithMessages(ctx context.Context, chatID string) (*chat.Chat, error) {
	return s.chat, nil
}

func (s *fakeStore) GetSettings(ctx context.Context, userID int64) (chat.Settings, error) {
	return chat.Settings{Provider: "fake", Model: "m"}, nil
}

type fakeDispatcher struct {
	resp ai.Response
	err  error
	req  ai.Request
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, key string, req ai.Request) (ai.Response, error) {
	d.req = req
	return d.resp, d.err
}

type recordingPublisher struct {
	files   []File
	message string
}

func (p *recordingPublisher) Publish(ctx context.Context, files []File, message string) error {
	p.files = files
	p.message = message
	return nil
}

func sampleChat() *chat.Chat {
	return &chat.Chat{
		ID:    "01CHAT",
		Title: "What is 2+2?",
		Messages: []chat.Message{
			{Role: "user", Content: "What is 2+2?"},
			{Role: "assistant", Content: "4"},
		},
	}
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 9, 10, 30, 0, 0, time.UTC)
}

func TestExport_WritesRawAndNotes(t *testing.T) {
	pub := &recordingPublisher{}
	d := &fakeDispatcher{resp: ai.Response{Content: "## Arithmetic\n- 2+2 = 4"}}
	e := NewExporter(&fakeStore{chat: sampleChat()}, d, pub, "https://github.com/me/notes/blob/main/", nil)
	e.Now = fixedNow

	res, err := e.Export(context.Background(), 1)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.RawFile != "chats/raw/2025-03-09-What-is-2-2-.md" || res.NotesFile != "chats/notes/2025-03-09-What-is-2-2-.md" {
		t.Fatalf("unexpected paths: %+v", res)
	}
	if res.NotesURL != "https://github.com/me/notes/blob/main/chats/notes/2025-03-09-What-is-2-2-.md" {
		t.Fatalf("unexpected url: %s", res.NotesURL)
	}
	if pub.message != "Add: What is 2+2?" {
		t.Fatalf("unexpected commit message %q", pub.message)
	}
	if len(pub.files) != 2 {
		t.Fatalf("expected two files, got %d", len(pub.files))
	}

	raw := pub.files[0].Content
	if !strings.HasPrefix(raw, "# What is 2+2?\n\n> Exported on 2025-03-09 10:30:00\n\n") {
		t.Fatalf("unexpected header:\n%s", raw)
	}
	if !strings.Contains(raw, "**User:** What is 2+2?\n\n**Assistant:** 4") {
		t.Fatalf("transcript missing:\n%s", raw)
	}
	if !strings.HasSuffix(raw, "---\n\n*Exported from QBot*\n") {
		t.Fatalf("footer missing:\n%s", raw)
	}
	if !strings.Contains(pub.files[1].Content, "## Arithmetic") {
		t.Fatalf("notes should carry the AI document")
	}
	if !strings.Contains(d.req.Prompt, "knowledge document") || d.req.Model != "m" {
		t.Fatalf("unexpected notes request: %+v", d.req)
	}
}

func TestExport_NotesFallBackToTranscript(t *testing.T) {
	pub := &recordingPublisher{}
	d := &fakeDispatcher{err: errors.New("provider down")}
	e := NewExporter(&fakeStore{chat: sampleChat()}, d, pub, "", nil)
	e.Now = fixedNow

	res, err := e.Export(context.Background(), 1)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.RawURL != "" {
		t.Fatalf("no web url expected")
	}
	if pub.files[0].Content != pub.files[1].Content {
		t.Fatalf("notes should equal transcript on provider failure")
	}
}

func TestExport_Errors(t *testing.T) {
	e := NewExporter(&fakeStore{chat: sampleChat()}, &fakeDispatcher{}, nil, "", nil)
	if _, err := e.Export(context.Background(), 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	empty := &chat.Chat{ID: "x", Title: chat.DefaultTitle}
	e = NewExporter(&fakeStore{chat: empty}, &fakeDispatcher{}, &recordingPublisher{}, "", nil)
	if _, err := e.Export(context.Background(), 1); !errors.Is(err, ErrNoMessages) {
		t.Fatalf("expected ErrNoMessages, got %v", err)
	}
}

func TestSafeTitle(t *testing.T) {
	if got := SafeTitle("Hello, 世界! ok"); got != "Hello--世界--ok" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SafeTitle(strings.Repeat("a", 80)); len(got) != 50 {
		t.Fatalf("expected 50 chars, got %d", len(got))
	}
}

func TestNewAuth_TokenForHTTPS(t *testing.T) {
	auth, err := NewAuth("https://github.com/me/notes.git", "", "", "tok")
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	basic, ok := auth.(*githttp.BasicAuth)
	if !ok || basic.Password != "tok" {
		t.Fatalf("expected basic auth with token, got %#v", auth)
	}

	auth, err = NewAuth("git@github.com:me/notes.git", "", "", "")
	if err != nil || auth != nil {
		t.Fatalf("expected no auth without key, got %v %v", auth, err)
	}
}
