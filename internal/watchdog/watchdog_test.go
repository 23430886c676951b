package watchdog

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testWatchdog(cfg Config, open int64, soft uint64) *Watchdog {
	w := New(cfg, zap.NewNop(), nil)
	w.usage = func() (int64, error) { return open, nil }
	w.limits = func() (uint64, error) { return soft, nil }
	return w
}

func TestLimits(t *testing.T) {
	soft, hard, err := Limits()
	if err != nil {
		t.Fatalf("Limits: %v", err)
	}
	if soft == 0 || hard == 0 {
		t.Errorf("expected nonzero limits, got soft=%d hard=%d", soft, hard)
	}
	if soft > hard {
		t.Errorf("soft limit %d exceeds hard limit %d", soft, hard)
	}
}

func TestOpenDescriptorCount(t *testing.T) {
	n, err := openDescriptorCount()
	if err != nil {
		t.Fatalf("openDescriptorCount: %v", err)
	}
	if n < 0 {
		t.Errorf("got %d", n)
	}
}

func TestCheck_NoRules(t *testing.T) {
	w := testWatchdog(Config{}, 1000, 1024)
	if got := w.Check(); len(got) != 0 {
		t.Errorf("no rules configured, expected no warnings, got %v", got)
	}
}

func TestCheck_MaxDescriptors(t *testing.T) {
	w := testWatchdog(Config{MaxDescriptors: 100}, 150, 0)

	warnings := w.Check()
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	if warnings[0].Rule != "max_descriptors" {
		t.Errorf("got rule %q", warnings[0].Rule)
	}
	if !strings.Contains(warnings[0].Message, "150") {
		t.Errorf("message should carry the count, got %q", warnings[0].Message)
	}
}

func TestCheck_MaxDescriptors_UnderCeiling(t *testing.T) {
	w := testWatchdog(Config{MaxDescriptors: 100}, 99, 0)
	if got := w.Check(); len(got) != 0 {
		t.Errorf("expected no warnings under the ceiling, got %v", got)
	}
}

func TestCheck_RlimitFraction(t *testing.T) {
	w := testWatchdog(Config{RlimitFraction: 0.5}, 600, 1024)

	warnings := w.Check()
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	if warnings[0].Rule != "rlimit_fraction" {
		t.Errorf("got rule %q", warnings[0].Rule)
	}
}

func TestCheck_BothRules(t *testing.T) {
	w := testWatchdog(Config{MaxDescriptors: 100, RlimitFraction: 0.5}, 600, 1024)
	if got := w.Check(); len(got) != 2 {
		t.Errorf("expected both rules to fire, got %v", got)
	}
}

func TestCheck_Cooldown(t *testing.T) {
	w := testWatchdog(Config{MaxDescriptors: 100}, 150, 0)
	w.SetCooldown(5 * time.Minute)

	if got := w.Check(); len(got) != 1 {
		t.Fatalf("first breach should warn, got %v", got)
	}
	if got := w.Check(); len(got) != 0 {
		t.Errorf("breach inside cooldown must stay quiet, got %v", got)
	}

	// Advance the clock past the cooldown.
	w.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	if got := w.Check(); len(got) != 1 {
		t.Errorf("breach after cooldown should warn again, got %v", got)
	}
}
