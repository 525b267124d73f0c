package version

import "testing"

func TestString(t *testing.T) {
	origV, origSHA, origTime := Version, GitSHA, BuildTime
	defer func() { Version, GitSHA, BuildTime = origV, origSHA, origTime }()

	Version, GitSHA, BuildTime = "v0.2.0", "unknown", "unknown"
	if got := String(); got != "v0.2.0" {
		t.Errorf("String() = %q, want %q", got, "v0.2.0")
	}

	GitSHA, BuildTime = "0123456789abcdef", "2026-01-02T03:04:05Z"
	if got, want := String(), "v0.2.0 (0123456, built 2026-01-02T03:04:05Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
