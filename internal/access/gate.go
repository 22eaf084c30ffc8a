package access

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/suPer8Hu/qbot/internal/chat"
)

var (
	ErrNotOwner    = errors.New("only the owner can manage users")
	ErrOwnerImmune = errors.New("cannot delete owner")
	ErrStaticUser  = errors.New("user is configured statically and cannot be deleted")
	ErrNotListed   = errors.New("user is not in the allow-list")
)

const (
	DeniedMessage  = "🚫 Access denied. You are not authorized to use this bot."
	DeniedCallback = "🚫 Access denied."
)

// Store is the persisted half of the allow-list.
type Store interface {
	IsAllowedUser(ctx context.Context, userID int64) (bool, error)
	ListAllowedUsers(ctx context.Context) ([]chat.AllowedUser, error)
	AddAllowedUser(ctx context.Context, userID, addedBy int64) error
	RemoveAllowedUser(ctx context.Context, userID int64) (bool, error)
}

// Gate authorizes senders against the static list and the store. The first
// static entry is the owner.
type Gate struct {
	static []int64
	store  Store
	logger *slog.Logger
}

func NewGate(static []int64, store Store, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{static: append([]int64(nil), static...), store: store, logger: logger}
}

// ParseIDs reads a comma separated id list, skipping malformed entries.
func ParseIDs(raw string) []int64 {
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Open reports whether no allow-list is configured.
func (g *Gate) Open() bool { return len(g.static) == 0 }

func (g *Gate) Owner() (int64, bool) {
	if len(g.static) == 0 {
		return 0, false
	}
	return g.static[0], true
}

func (g *Gate) IsOwner(userID int64) bool {
	owner, ok := g.Owner()
	return ok && owner == userID
}

func (g *Gate) IsStatic(userID int64) bool {
	for _, id := range g.static {
		if id == userID {
			return true
		}
	}
	return false
}

func (g *Gate) Static() []int64 {
	return append([]int64(nil), g.static...)
}

// Allowed fails closed when the store cannot be read.
func (g *Gate) Allowed(ctx context.Context, userID int64) bool {
	if g.Open() || g.IsStatic(userID) {
		return true
	}
	if g.store == nil {
		return false
	}
	ok, err := g.store.IsAllowedUser(ctx, userID)
	if err != nil {
		g.logger.Error("allow-list lookup failed", "user_id", userID, "error", err)
		return false
	}
	return ok
}

// Listing is the owner's view of who may use the bot.
type Listing struct {
	Owner   int64
	Static  []int64
	Dynamic []chat.AllowedUser
}

func (g *Gate) List(ctx context.Context, actor int64) (Listing, error) {
	if !g.IsOwner(actor) {
		return Listing{}, ErrNotOwner
	}
	dynamic, err := g.store.ListAllowedUsers(ctx)
	if err != nil {
		return Listing{}, err
	}
	owner, _ := g.Owner()
	return Listing{Owner: owner, Static: g.Static(), Dynamic: dynamic}, nil
}

func (g *Gate) Add(ctx context.Context, actor, userID int64) error {
	if !g.IsOwner(actor) {
		return ErrNotOwner
	}
	if err := g.store.AddAllowedUser(ctx, userID, actor); err != nil {
		return err
	}
	g.logger.Info("user added to allow-list", "user_id", userID, "added_by", actor)
	return nil
}

func (g *Gate) Remove(ctx context.Context, actor, userID int64) error {
	if !g.IsOwner(actor) {
		return ErrNotOwner
	}
	if g.IsOwner(userID) {
		return ErrOwnerImmune
	}
	if g.IsStatic(userID) {
		return ErrStaticUser
	}
	removed, err := g.store.RemoveAllowedUser(ctx, userID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotListed
	}
	g.logger.Info("user removed from allow-list", "user_id", userID, "removed_by", actor)
	return nil
}
