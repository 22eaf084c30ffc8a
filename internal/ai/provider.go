package ai

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one chat turn: prior history (oldest first) plus the new prompt.
// ContextPrefix carries the rolling summary; each provider decides where it goes.
type Request struct {
	Model         string
	Prompt        string
	History       []Message
	ContextPrefix string
}

// Response keeps the answer and the optional reasoning trace apart.
type Response struct {
	Content  string
	Thinking string
}

type Model struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Provider interface {
	Chat(ctx context.Context, req Request) (Response, error)
}

// ModelLister is optional. Providers without a listing endpoint rely on the
// static table registered with them.
type ModelLister interface {
	ListModels(ctx context.Context) ([]Model, error)
}

// Info describes a registered provider.
type Info struct {
	Key          string
	Name         string
	DefaultModel string
	Models       []Model
}

// ResolveShortName maps a static-table short name to its full model id.
func (i Info) ResolveShortName(short string) (string, bool) {
	for _, m := range i.Models {
		if m.Name == short {
			return m.ID, true
		}
	}
	return "", false
}
