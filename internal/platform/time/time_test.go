package time

import (
	"testing"
	"time"
)

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f := NewFake(start)
	if !f.Now().Equal(start) {
		t.Fatalf("Now = %v, want %v", f.Now(), start)
	}
	f.Advance(90 * time.Second)
	if got := f.Now().Sub(start); got != 90*time.Second {
		t.Fatalf("advanced by %v", got)
	}
}

func TestOrSystem(t *testing.T) {
	if OrSystem(nil) != System {
		t.Fatalf("nil clock should fall back to System")
	}
	f := NewFake(time.Unix(0, 0))
	if OrSystem(f) != Clock(f) {
		t.Fatalf("non-nil clock should be returned as is")
	}
	if d := time.Since(System.Now()); d < 0 || d > time.Second {
		t.Fatalf("system clock looks wrong: %v", d)
	}
}
