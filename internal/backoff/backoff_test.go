package backoff

import (
	"context"
	"testing"
	"time"
)

func TestDelay_Doubles(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Fatalf("attempt %d: got %v want %v", i+1, got, w)
		}
	}
}

func TestDelay_Capped(t *testing.T) {
	p := Policy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	if got := p.Delay(4); got != 5*time.Second {
		t.Fatalf("got %v want cap of 5s", got)
	}
	if got := p.Delay(100); got != 5*time.Second {
		t.Fatalf("got %v want cap of 5s", got)
	}
}

func TestDelay_ClampsLowAttempt(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second}
	if got := p.Delay(0); got != 2*time.Second {
		t.Fatalf("got %v want base delay", got)
	}
}

func TestWait_CanceledContext(t *testing.T) {
	p := Policy{MaxAttempts: 1, BaseDelay: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx, 1); err != context.Canceled {
		t.Fatalf("got %v want context.Canceled", err)
	}
}
