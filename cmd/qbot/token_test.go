package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/suPer8Hu/qbot/internal/auth"
)

func TestTokenCommandDefaultsToOwner(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "s3cret")
	t.Setenv("ALLOWED_USERS", "111, 222")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--ttl", "1h"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	id, err := auth.ParseToken("s3cret", strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != 111 {
		t.Fatalf("subject = %d, want owner 111", id)
	}
}

func TestTokenCommandNeedsSecret(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "")
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"token", "--user", "5"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected an error without ADMIN_JWT_SECRET")
	}
}

func TestRootRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "worker", "setup-webhook", "token"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Fatalf("subcommand %q missing: %v", name, err)
		}
	}
}
