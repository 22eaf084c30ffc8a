package chat

import "time"

const DefaultTitle = "New Chat"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Provider     string    `gorm:"type:varchar(32);not null" json:"provider"`
	Model        string    `gorm:"type:varchar(128);not null" json:"model"`
	ActiveChatID *string   `gorm:"type:varchar(26)" json:"active_chat_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

type Chat struct {
	ID        string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	UserID    int64     `gorm:"index:idx_chats_user_updated,priority:1;not null" json:"user_id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Summary   *string   `gorm:"type:text" json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index:idx_chats_user_updated,priority:2" json:"updated_at"`

	Messages []Message `gorm:"foreignKey:ChatID" json:"messages,omitempty"`
}

func (Chat) TableName() string { return "chats" }

type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatID    string    `gorm:"type:varchar(26);index;not null" json:"chat_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string { return "messages" }

// AllowedUser is a dynamically granted user; the static allow-list lives in config.
type AllowedUser struct {
	UserID    int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	AddedBy   int64     `gorm:"not null" json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (AllowedUser) TableName() string { return "allowed_users" }

// Settings is the per-user routing state read on every request.
type Settings struct {
	Provider     string
	Model        string
	ActiveChatID *string
}

// AllModels lists every table the bot owns, for AutoMigrate.
func AllModels() []any {
	return []any{&User{}, &Chat{}, &Message{}, &AllowedUser{}}
}
