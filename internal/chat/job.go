package chat

import "time"

// SummaryJob asks a worker to regenerate one chat's rolling summary with the
// provider and model that produced the triggering answer.
type SummaryJob struct {
	ChatID    string    `json:"chat_id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

func (j SummaryJob) Valid() bool {
	return j.ChatID != "" && j.Provider != ""
}
