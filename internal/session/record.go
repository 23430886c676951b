// Package session tracks capture runs: what was executed, what it wrote to
// each stream, and how it exited.
package session

import "time"

// Status represents session status.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
	StatusKilled   Status = "killed"
)

// Record is the full account of one captured command run. It is the unit the
// archive persists, so all fields carry JSON tags.
type Record struct {
	ID         string    `json:"id"`
	Argv       []string  `json:"argv"`
	Dir        string    `json:"dir,omitempty"`
	Status     Status    `json:"status"`
	ExitCode   int       `json:"exit_code"`
	Stdout     []byte    `json:"stdout,omitempty"`
	Stderr     []byte    `json:"stderr,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns the wall time of the run, or the time elapsed so far for
// a session still running.
func (r *Record) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Size returns the total captured bytes across both streams.
func (r *Record) Size() int64 {
	return int64(len(r.Stdout)) + int64(len(r.Stderr))
}
