package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestRepo(t *testing.T) *Repo {
	return NewRepo(openTestDB(t), "gemini", "gemini-2.0-flash")
}

func TestGetSettings_CreatesUserWithDefaults(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s, err := repo.GetSettings(ctx, 42)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if s.Provider != "gemini" || s.Model != "gemini-2.0-flash" || s.ActiveChatID != nil {
		t.Fatalf("unexpected settings: %+v", s)
	}

	if err := repo.SetProvider(ctx, 42, "claude", "claude-sonnet-4-20250514"); err != nil {
		t.Fatalf("set provider: %v", err)
	}
	if err := repo.SetModel(ctx, 42, "claude-3-5-haiku-20241022"); err != nil {
		t.Fatalf("set model: %v", err)
	}
	s, _ = repo.GetSettings(ctx, 42)
	if s.Provider != "claude" || s.Model != "claude-3-5-haiku-20241022" {
		t.Fatalf("unexpected settings after update: %+v", s)
	}
}

func TestSetModel_UnknownUserIsUpserted(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.SetModel(context.Background(), 7, "gemini-2.0-flash-lite"); err != nil {
		t.Fatalf("set model: %v", err)
	}
	s, _ := repo.GetSettings(context.Background(), 7)
	if s.Provider != "gemini" || s.Model != "gemini-2.0-flash-lite" {
		t.Fatalf("unexpected settings: %+v", s)
	}
}

func TestGetOrCreateActiveChat_Idempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.GetOrCreateActiveChat(ctx, 1)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := repo.GetOrCreateActiveChat(ctx, 1)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same chat, got %s and %s", first.ID, second.ID)
	}
	if first.Title != DefaultTitle {
		t.Fatalf("unexpected title %q", first.Title)
	}
}

func TestGetOrCreateActiveChat_SelfHealsDanglingPointer(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db, "gemini", "gemini-2.0-flash")
	ctx := context.Background()

	old, err := repo.GetOrCreateActiveChat(ctx, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// remove the chat behind the repo's back so the pointer dangles
	if err := db.Delete(&Chat{}, "id = ?", old.ID).Error; err != nil {
		t.Fatalf("delete: %v", err)
	}

	fresh, err := repo.GetOrCreateActiveChat(ctx, 1)
	if err != nil {
		t.Fatalf("self-heal: %v", err)
	}
	if fresh.ID == old.ID {
		t.Fatalf("expected a new chat")
	}
	s, _ := repo.GetSettings(ctx, 1)
	if s.ActiveChatID == nil || *s.ActiveChatID != fresh.ID {
		t.Fatalf("active pointer not updated: %+v", s)
	}
}

func TestGetOrCreateActiveChat_IgnoresForeignPointer(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db, "gemini", "gemini-2.0-flash")
	ctx := context.Background()

	other, _ := repo.GetOrCreateActiveChat(ctx, 2)
	if _, err := repo.GetSettings(ctx, 1); err != nil {
		t.Fatalf("settings: %v", err)
	}
	if err := db.Model(&User{}).Where("id = ?", 1).Update("active_chat_id", other.ID).Error; err != nil {
		t.Fatalf("point at foreign chat: %v", err)
	}

	mine, err := repo.GetOrCreateActiveChat(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if mine.ID == other.ID || mine.UserID != 1 {
		t.Fatalf("returned a chat owned by another user: %+v", mine)
	}
}

func TestGetOrCreateActiveChat_Concurrent(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db, "gemini", "gemini-2.0-flash")

	const n = 8
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := repo.GetOrCreateActiveChat(context.Background(), 99)
			errs[i] = err
			if c != nil {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("call %d returned %s, want %s", i, ids[i], ids[0])
		}
	}
	var count int64
	db.Model(&Chat{}).Where("user_id = ?", 99).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one chat, got %d", count)
	}
}

func TestRecentMessages_LastKChronological(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c, _ := repo.GetOrCreateActiveChat(ctx, 1)

	for i := 1; i <= 7; i++ {
		role := RoleUser
		if i%2 == 0 {
			role = RoleAssistant
		}
		if _, err := repo.AppendMessage(ctx, c.ID, role, fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := repo.RecentMessages(ctx, c.ID, 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	want := []string{"m4", "m5", "m6", "m7"}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Content != want[i] {
			t.Fatalf("position %d: want %s got %s", i, want[i], got[i].Content)
		}
	}

	n, _ := repo.MessageCount(ctx, c.ID)
	if n != 7 {
		t.Fatalf("expected 7 messages, got %d", n)
	}
}

func TestListRecent_OrdersByActivity(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, _ := repo.CreateChat(ctx, 1)
	time.Sleep(5 * time.Millisecond)
	b, _ := repo.CreateChat(ctx, 1)
	time.Sleep(5 * time.Millisecond)
	if _, err := repo.AppendMessage(ctx, a.ID, RoleUser, "bump"); err != nil {
		t.Fatalf("append: %v", err)
	}

	chats, err := repo.ListRecent(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chats) != 2 || chats[0].ID != a.ID || chats[1].ID != b.ID {
		t.Fatalf("unexpected order: %+v", chats)
	}
}

func TestDeleteChat_ClearsActivePointer(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	c, _ := repo.CreateChat(ctx, 1)
	_, _ = repo.AppendMessage(ctx, c.ID, RoleUser, "hi")

	if err := repo.DeleteChat(ctx, 2, c.ID); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound for non-owner, got %v", err)
	}
	if err := repo.DeleteChat(ctx, 1, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	s, _ := repo.GetSettings(ctx, 1)
	if s.ActiveChatID != nil {
		t.Fatalf("expected cleared pointer, got %v", *s.ActiveChatID)
	}
	n, _ := repo.MessageCount(ctx, c.ID)
	if n != 0 {
		t.Fatalf("expected messages removed, got %d", n)
	}
}

func TestSetActiveChat_ChecksOwnership(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	c, _ := repo.CreateChat(ctx, 1)
	if _, err := repo.SetActiveChat(ctx, 2, c.ID); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
	_, _ = repo.CreateChat(ctx, 1)
	if _, err := repo.SetActiveChat(ctx, 1, c.ID); err != nil {
		t.Fatalf("switch: %v", err)
	}
	s, _ := repo.GetSettings(ctx, 1)
	if *s.ActiveChatID != c.ID {
		t.Fatalf("active chat not switched")
	}
}

func TestSummaryAndClear(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c, _ := repo.GetOrCreateActiveChat(ctx, 1)

	sum := "talked about go"
	if err := repo.SetSummary(ctx, c.ID, &sum); err != nil {
		t.Fatalf("set summary: %v", err)
	}
	_, _ = repo.AppendMessage(ctx, c.ID, RoleUser, "x")
	if err := repo.ClearMessages(ctx, c.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}

	got, err := repo.GetChat(ctx, c.ID)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if got.Summary != nil {
		t.Fatalf("expected summary cleared, got %q", *got.Summary)
	}
	n, _ := repo.MessageCount(ctx, c.ID)
	if n != 0 {
		t.Fatalf("expected no messages, got %d", n)
	}
}

func TestAllowedUsers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.AddAllowedUser(ctx, 5, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.AddAllowedUser(ctx, 5, 1); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	ok, _ := repo.IsAllowedUser(ctx, 5)
	if !ok {
		t.Fatalf("expected allowed")
	}
	removed, err := repo.RemoveAllowedUser(ctx, 5)
	if err != nil || !removed {
		t.Fatalf("remove: removed=%v err=%v", removed, err)
	}
	removed, _ = repo.RemoveAllowedUser(ctx, 5)
	if removed {
		t.Fatalf("second remove should be a no-op")
	}
}
