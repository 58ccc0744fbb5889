package account

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestRegister_ValidationBeforeStorage(t *testing.T) {
	// nil db: validation failures must return before any query runs.
	svc := NewService(nil, zerolog.Nop())

	if err := svc.Register(context.Background(), "ab", "longenough"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("short username: err=%v", err)
	}
	if err := svc.Register(context.Background(), "  ab  ", "longenough"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("whitespace-padded short username: err=%v", err)
	}
	if err := svc.Register(context.Background(), "alice", "short"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("short password: err=%v", err)
	}
}
