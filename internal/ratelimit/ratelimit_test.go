package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/fd1az/savvy-farm/internal/apperror"
)

func TestNew_BurstIsTenPercent(t *testing.T) {
	tests := []struct {
		name  string
		rpm   int
		burst int
	}{
		{"large", 600, 60},
		{"small", 5, 1},
		{"unlimited", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New("prices", tt.rpm).Burst(); got != tt.burst {
				t.Errorf("expected burst %d, got %d", tt.burst, got)
			}
		})
	}
}

func TestLimiter_WaitReturnsRateLimitError(t *testing.T) {
	l := New("prices", 1)

	if !l.Allow() {
		t.Fatal("expected first token to be available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	if err == nil {
		t.Fatal("expected wait to fail when the context expires first")
	}
	if got := apperror.GetCode(err); got != apperror.CodeRateLimitExceeded {
		t.Errorf("expected %s, got %s", apperror.CodeRateLimitExceeded, got)
	}
}

func TestNew_UnlimitedNeverBlocks(t *testing.T) {
	l := New("prices", 0)
	for i := 0; i < 100; i++ {
		if !l.Allow() {
			t.Fatalf("request %d was limited", i)
		}
	}
}
