package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pipewright/fdkit/internal/core"
	"github.com/pipewright/fdkit/internal/session"
)

func testRecord(id string) *session.Record {
	started := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	return &session.Record{
		ID:         id,
		Argv:       []string{"echo", "hi"},
		Status:     session.StatusComplete,
		Stdout:     []byte("hi\n"),
		StartedAt:  started,
		FinishedAt: started.Add(20 * time.Millisecond),
	}
}

func TestRecordKey(t *testing.T) {
	rec := testRecord("abc-123")
	want := "sessions/2026-08-31/abc-123.json"
	if got := recordKey(rec); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestArchiver_PutGetRoundtrip(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	a := NewArchiver(fs)
	ctx := context.Background()

	rec := testRecord("round-trip")
	if err := a.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := a.Get(ctx, "round-trip")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != rec.ID || got.Status != rec.Status {
		t.Errorf("got %+v", got)
	}
	if string(got.Stdout) != "hi\n" {
		t.Errorf("stdout: got %q", got.Stdout)
	}
	if !got.StartedAt.Equal(rec.StartedAt) {
		t.Errorf("started_at: got %s, want %s", got.StartedAt, rec.StartedAt)
	}
}

func TestArchiver_GetNotFound(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	a := NewArchiver(fs)

	_, err := a.Get(context.Background(), "missing")
	if !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestArchiver_ListIDs(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	a := NewArchiver(fs)
	ctx := context.Background()

	a.Put(ctx, testRecord("one"))
	a.Put(ctx, testRecord("two"))

	ids, err := a.ListIDs(ctx)
	if err != nil {
		t.Fatalf("ListIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["one"] || !seen["two"] {
		t.Errorf("got %v", ids)
	}
}

// failingStorage reports a backend fault on every operation.
type failingStorage struct{}

var errBackend = errors.New("backend down")

func (failingStorage) Write(context.Context, string, []byte) error { return errBackend }
func (failingStorage) Read(context.Context, string) ([]byte, error) {
	return nil, errBackend
}
func (failingStorage) List(context.Context, string) ([]string, error) {
	return nil, errBackend
}
func (failingStorage) Delete(context.Context, string) error { return errBackend }
func (failingStorage) Exists(context.Context, string) (bool, error) {
	return false, errBackend
}

func TestArchiver_WrapsBackendFailures(t *testing.T) {
	a := NewArchiver(failingStorage{})
	ctx := context.Background()

	err := a.Put(ctx, testRecord("x"))
	if !errors.Is(err, core.ErrArchiveFailed) {
		t.Errorf("Put: expected ErrArchiveFailed, got %v", err)
	}
	if !errors.Is(err, errBackend) {
		t.Errorf("Put: cause should be preserved, got %v", err)
	}

	if _, err := a.Get(ctx, "x"); !errors.Is(err, core.ErrArchiveFailed) {
		t.Errorf("Get: expected ErrArchiveFailed, got %v", err)
	}
	if _, err := a.ListIDs(ctx); !errors.Is(err, core.ErrArchiveFailed) {
		t.Errorf("ListIDs: expected ErrArchiveFailed, got %v", err)
	}
}
