// Package watchdog keeps an eye on the process descriptor budget and warns
// before the table fills up.
package watchdog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/pipewright/fdkit/internal/metrics"
)

// Config holds watchdog thresholds.
type Config struct {
	Interval time.Duration
	// MaxDescriptors is an absolute ceiling on open descriptors; zero
	// disables the rule.
	MaxDescriptors int64
	// RlimitFraction warns once usage crosses this fraction of the soft
	// RLIMIT_NOFILE; zero disables the rule.
	RlimitFraction float64
}

// Warning names one breached rule.
type Warning struct {
	Rule    string
	Message string
}

// Watchdog evaluates descriptor-budget rules on a ticker. Warnings per rule
// respect a cooldown so a sustained breach does not spam the log.
type Watchdog struct {
	cfg      Config
	log      *zap.Logger
	registry *metrics.Registry
	cooldown time.Duration

	lastFired map[string]time.Time

	// Swappable for testing
	usage  func() (int64, error)
	limits func() (uint64, error)
	now    func() time.Time

	mu sync.Mutex
}

// New creates a watchdog. The registry may be nil when metrics are disabled.
func New(cfg Config, log *zap.Logger, registry *metrics.Registry) *Watchdog {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Watchdog{
		cfg:       cfg,
		log:       log,
		registry:  registry,
		cooldown:  5 * time.Minute,
		lastFired: make(map[string]time.Time),
		usage:     openDescriptorCount,
		limits:    softNoFileLimit,
		now:       time.Now,
	}
}

// SetCooldown sets the per-rule cooldown between repeated warnings.
func (w *Watchdog) SetCooldown(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cooldown = d
}

// Limits returns the soft and hard RLIMIT_NOFILE values.
func Limits() (soft, hard uint64, err error) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0, 0, err
	}
	return rl.Cur, rl.Max, nil
}

func softNoFileLimit() (uint64, error) {
	soft, _, err := Limits()
	return soft, err
}

// Check evaluates all rules once and returns the warnings that fired.
// Breaches still inside their cooldown window return nothing.
func (w *Watchdog) Check() []Warning {
	w.mu.Lock()
	defer w.mu.Unlock()

	open, err := w.usage()
	if err != nil {
		w.log.Warn("cannot count open descriptors", zap.Error(err))
		return nil
	}

	var warnings []Warning

	if w.cfg.MaxDescriptors > 0 && open >= w.cfg.MaxDescriptors {
		if wn, ok := w.fire("max_descriptors", fmt.Sprintf(
			"%d descriptors open, ceiling is %d", open, w.cfg.MaxDescriptors)); ok {
			warnings = append(warnings, wn)
		}
	}

	if w.cfg.RlimitFraction > 0 {
		soft, err := w.limits()
		if err != nil {
			w.log.Warn("cannot read RLIMIT_NOFILE", zap.Error(err))
		} else if soft > 0 && float64(open) >= w.cfg.RlimitFraction*float64(soft) {
			if wn, ok := w.fire("rlimit_fraction", fmt.Sprintf(
				"%d descriptors open, %.0f%% of the soft limit %d",
				open, 100*float64(open)/float64(soft), soft)); ok {
				warnings = append(warnings, wn)
			}
		}
	}

	return warnings
}

// fire applies the cooldown; the caller holds the lock.
func (w *Watchdog) fire(rule, msg string) (Warning, bool) {
	now := w.now()
	if last, ok := w.lastFired[rule]; ok && now.Sub(last) < w.cooldown {
		return Warning{}, false
	}
	w.lastFired[rule] = now
	return Warning{Rule: rule, Message: msg}, true
}

// Run checks on every tick until the context ends.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.log.Info("watchdog started", zap.Duration("interval", w.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			w.log.Info("watchdog stopped")
			return
		case <-ticker.C:
			for _, warning := range w.Check() {
				w.log.Warn("descriptor budget warning",
					zap.String("rule", warning.Rule),
					zap.String("detail", warning.Message),
				)
				if w.registry != nil {
					w.registry.RecordWatchdogWarning()
				}
			}
		}
	}
}
