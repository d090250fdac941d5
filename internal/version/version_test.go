package version

import (
	"strings"
	"testing"
)

func TestString_ContainsVersionAndBuildTime(t *testing.T) {
	s := String()
	if !strings.Contains(s, "ragmux version") {
		t.Errorf("expected prefix 'ragmux version', got %q", s)
	}
	if !strings.Contains(s, Version) {
		t.Errorf("expected version %q in %q", Version, s)
	}
	if !strings.Contains(s, BuildTime) {
		t.Errorf("expected build time %q in %q", BuildTime, s)
	}
}
