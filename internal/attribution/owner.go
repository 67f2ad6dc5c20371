// Package attribution decides who a memory belongs to when the caller does
// not say.
package attribution

import (
	"os"
	"os/exec"
	"os/user"
	"strings"
	"sync"
)

var (
	cachedOwner string
	once        sync.Once
)

// DetectOwner returns the default memory owner.
// Checks in order: LIFECACHE_OWNER env, git config user.name, the OS user.
// Returns "" when none is available. The result is cached after first call.
func DetectOwner() string {
	once.Do(func() {
		cachedOwner = detectOwnerUncached()
	})
	return cachedOwner
}

// detectOwnerUncached performs detection without caching. Used for testing.
func detectOwnerUncached() string {
	if name := strings.TrimSpace(os.Getenv("LIFECACHE_OWNER")); name != "" {
		return name
	}
	if name := gitUserName(); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil {
		return strings.TrimSpace(u.Username)
	}
	return ""
}

// gitUserName runs `git config --get user.name` and returns the trimmed result.
// Returns empty string on any error.
func gitUserName() string {
	out, err := exec.Command("git", "config", "--get", "user.name").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// ResolveOwner returns explicit when set, otherwise DetectOwner.
func ResolveOwner(explicit string) (string, bool) {
	if owner := strings.TrimSpace(explicit); owner != "" {
		return owner, true
	}
	owner := DetectOwner()
	return owner, owner != ""
}
