package payments

import (
	"context"
	"errors"
	"testing"
)

func TestAppFee(t *testing.T) {
	tests := []struct {
		amount, bps, want int64
	}{
		{2500, 350, 88},
		{2000, 0, 0},
		{0, 350, 0},
		{1000, 100, 10},
	}
	for _, tt := range tests {
		if got := AppFee(tt.amount, tt.bps); got != tt.want {
			t.Errorf("AppFee(%d, %d) = %d, want %d", tt.amount, tt.bps, got, tt.want)
		}
	}
}

func TestStripeProvider_NotConfigured(t *testing.T) {
	p := NewStripeProvider("", "")

	if _, err := p.ListTaxRates(context.Background(), ""); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := p.CreateCheckout(context.Background(), CheckoutRequest{Amount: 100}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := p.ParseWebhook([]byte("{}"), "sig"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestStripeProvider_RejectsBadSignature(t *testing.T) {
	p := NewStripeProvider("", "whsec_test")
	if _, err := p.ParseWebhook([]byte(`{"id":"evt_1"}`), "t=1,v1=deadbeef"); err == nil {
		t.Fatal("expected signature verification to fail")
	}
}
