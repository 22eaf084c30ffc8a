package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrChatNotFound = errors.New("chat not found")

type Repo struct {
	db              *gorm.DB
	defaultProvider string
	defaultModel    string
}

// NewRepo returns a store whose lazily created users start on the given
// provider and model.
func NewRepo(db *gorm.DB, defaultProvider, defaultModel string) *Repo {
	return &Repo{db: db, defaultProvider: defaultProvider, defaultModel: defaultModel}
}

func (r *Repo) DB() *gorm.DB { return r.db }

func (r *Repo) ensureUser(tx *gorm.DB, userID int64) (*User, error) {
	seed := User{ID: userID, Provider: r.defaultProvider, Model: r.defaultModel}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, err
	}
	var u User
	if err := tx.First(&u, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// Settings

func (r *Repo) GetSettings(ctx context.Context, userID int64) (Settings, error) {
	u, err := r.ensureUser(r.db.WithContext(ctx), userID)
	if err != nil {
		return Settings{}, err
	}
	return Settings{Provider: u.Provider, Model: u.Model, ActiveChatID: u.ActiveChatID}, nil
}

// SetProvider writes provider and model together; callers pass the new
// provider's default model.
func (r *Repo) SetProvider(ctx context.Context, userID int64, provider, model string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := r.ensureUser(tx, userID); err != nil {
			return err
		}
		return tx.Model(&User{}).Where("id = ?", userID).
			Updates(map[string]any{"provider": provider, "model": model}).Error
	})
}

func (r *Repo) SetModel(ctx context.Context, userID int64, model string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := r.ensureUser(tx, userID); err != nil {
			return err
		}
		return tx.Model(&User{}).Where("id = ?", userID).Update("model", model).Error
	})
}

// Chats

func createChat(tx *gorm.DB, userID int64) (*Chat, error) {
	c := &Chat{ID: NewChatID(), UserID: userID, Title: DefaultTitle}
	if err := tx.Create(c).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&User{}).Where("id = ?", userID).Update("active_chat_id", c.ID).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetOrCreateActiveChat returns the user's active chat, creating one when the
// pointer is empty or dangles. The read and the create share a transaction.
func (r *Repo) GetOrCreateActiveChat(ctx context.Context, userID int64) (*Chat, error) {
	var out *Chat
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := r.ensureUser(tx, userID)
		if err != nil {
			return err
		}
		if u.ActiveChatID != nil && *u.ActiveChatID != "" {
			var c Chat
			err := tx.Where("id = ? AND user_id = ?", *u.ActiveChatID, userID).First(&c).Error
			if err == nil {
				out = &c
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		out, err = createChat(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateChat starts a fresh chat and makes it active.
func (r *Repo) CreateChat(ctx context.Context, userID int64) (*Chat, error) {
	var out *Chat
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := r.ensureUser(tx, userID); err != nil {
			return err
		}
		var err error
		out, err = createChat(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	var c Chat
	if err := r.db.WithContext(ctx).First(&c, "id = ?", chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetChatWithMessages loads the chat and its whole transcript in id order.
func (r *Repo) GetChatWithMessages(ctx context.Context, chatID string) (*Chat, error) {
	var c Chat
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&c, "id = ?", chatID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return &c, nil
}

// SetActiveChat points the user at chatID if the user owns it.
func (r *Repo) SetActiveChat(ctx context.Context, userID int64, chatID string) (*Chat, error) {
	var out Chat
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", chatID, userID).First(&out).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChatNotFound
			}
			return err
		}
		if _, err := r.ensureUser(tx, userID); err != nil {
			return err
		}
		return tx.Model(&User{}).Where("id = ?", userID).Update("active_chat_id", chatID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteChat removes an owned chat with its messages and clears the active
// pointer when it referenced the chat.
func (r *Repo) DeleteChat(ctx context.Context, userID int64, chatID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned int64
		if err := tx.Model(&Chat{}).Where("id = ? AND user_id = ?", chatID, userID).Count(&owned).Error; err != nil {
			return err
		}
		if owned == 0 {
			return ErrChatNotFound
		}
		if err := tx.Where("chat_id = ?", chatID).Delete(&Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", chatID).Delete(&Chat{}).Error; err != nil {
			return err
		}
		return tx.Model(&User{}).
			Where("id = ? AND active_chat_id = ?", userID, chatID).
			Update("active_chat_id", nil).Error
	})
}

func (r *Repo) Rename(ctx context.Context, chatID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	return r.db.WithContext(ctx).Model(&Chat{}).Where("id = ?", chatID).
		Updates(map[string]any{"title": title, "updated_at": time.Now()}).Error
}

// SetSummary overwrites the rolling summary; nil clears it.
func (r *Repo) SetSummary(ctx context.Context, chatID string, summary *string) error {
	return r.db.WithContext(ctx).Model(&Chat{}).Where("id = ?", chatID).
		UpdateColumn("summary", summary).Error
}

// ListRecent returns the user's chats, most recently active first.
func (r *Repo) ListRecent(ctx context.Context, userID int64, limit int) ([]Chat, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var chats []Chat
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&chats).Error; err != nil {
		return nil, err
	}
	return chats, nil
}

// Messages

// AppendMessage inserts the message and bumps the chat's updated_at.
func (r *Repo) AppendMessage(ctx context.Context, chatID, role, content string) (*Message, error) {
	m := &Message{ChatID: chatID, Role: role, Content: content}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Model(&Chat{}).Where("id = ?", chatID).UpdateColumn("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecentMessages returns the newest limit messages, oldest first.
func (r *Repo) RecentMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	var desc []Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id DESC").
		Limit(limit).
		Find(&desc).Error; err != nil {
		return nil, err
	}
	// reverse to ASC (oldest -> newest)
	for i, j := 0, len(desc)-1; i < j; i, j = i+1, j-1 {
		desc[i], desc[j] = desc[j], desc[i]
	}
	return desc, nil
}

func (r *Repo) AllMessages(ctx context.Context, chatID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) MessageCount(ctx context.Context, chatID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Message{}).Where("chat_id = ?", chatID).Count(&n).Error
	return n, err
}

// ClearMessages bulk-deletes the transcript and the summary derived from it.
func (r *Repo) ClearMessages(ctx context.Context, chatID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", chatID).Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Model(&Chat{}).Where("id = ?", chatID).UpdateColumn("summary", nil).Error
	})
}

// Allow-list

func (r *Repo) ListAllowedUsers(ctx context.Context) ([]AllowedUser, error) {
	var out []AllowedUser
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) IsAllowedUser(ctx context.Context, userID int64) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&AllowedUser{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// AddAllowedUser is idempotent; re-adding keeps the original grant.
func (r *Repo) AddAllowedUser(ctx context.Context, userID, addedBy int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&AllowedUser{UserID: userID, AddedBy: addedBy}).Error
}

// RemoveAllowedUser reports whether a row was deleted.
func (r *Repo) RemoveAllowedUser(ctx context.Context, userID int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&AllowedUser{})
	return res.RowsAffected > 0, res.Error
}
