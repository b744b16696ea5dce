package testkit

import (
	"os"
	"sync"
	"testing"
)

// seams are package level vars; tests that swap them must not overlap
var seams sync.Mutex

// Swap replaces *target for the lifetime of t, restoring the old value on cleanup
func Swap[T any](t testing.TB, target *T, replacement T) {
	t.Helper()
	prev := *target
	*target = replacement
	t.Cleanup(func() { *target = prev })
}

// Serial holds the seam lock until t finishes
func Serial(t testing.TB) {
	t.Helper()
	seams.Lock()
	t.Cleanup(seams.Unlock)
}

// Unsetenv removes keys for the lifetime of t; t.Setenv records the old value so cleanup restores it
func Unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("unsetenv %s: %v", k, err)
		}
	}
}
