package attribution

import (
	"testing"
)

func TestDetectOwnerFromEnv(t *testing.T) {
	t.Setenv("LIFECACHE_OWNER", "  ann ")
	got := detectOwnerUncached()
	if got != "ann" {
		t.Errorf("expected ann, got %q", got)
	}
}

func TestDetectOwnerFallback(t *testing.T) {
	t.Setenv("LIFECACHE_OWNER", "")
	got := detectOwnerUncached()
	// Either a git name or the OS user on any machine running tests.
	if got == "" {
		t.Error("expected non-empty result")
	}
}

func TestResolveOwnerPrefersExplicit(t *testing.T) {
	got, ok := ResolveOwner(" sam ")
	if !ok || got != "sam" {
		t.Errorf("expected sam, got %q (ok=%v)", got, ok)
	}
}
