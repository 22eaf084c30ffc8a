package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	tok, err := IssueToken("s3cret", 12345, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := ParseToken("s3cret", tok)
	if err != nil || id != 12345 {
		t.Fatalf("parse: id=%d err=%v", id, err)
	}
	if _, err := ParseToken("other", tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	tok, err := IssueToken("s3cret", 1, time.Nanosecond)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	if _, err := ParseToken("s3cret", tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestIssueRequiresSecret(t *testing.T) {
	if _, err := IssueToken("", 1, time.Hour); err == nil {
		t.Fatalf("expected error")
	}
}
