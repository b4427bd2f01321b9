package notifier

import (
	"testing"

	"github.com/evorto/evorto-api/internal/models"
)

func TestNew_WithoutTokenIsNop(t *testing.T) {
	n, err := New("", "123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := n.(NopNotifier); !ok {
		t.Fatalf("expected NopNotifier, got %T", n)
	}
	if err := n.NotifyRefund(models.User{}, 100, "EUR", 1); err != nil {
		t.Errorf("nop notifier returned %v", err)
	}
}

func TestDiscordNotifier_RequiresSession(t *testing.T) {
	n := NewDiscordNotifier(nil, "123")
	if err := n.NotifyRegistration(models.User{}, models.Event{}, models.EventRegistration{}); err == nil {
		t.Error("expected error without a discord session")
	}
}
