package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pipewright/fdkit/internal/session"
)

func testServer(t *testing.T, store *session.Store) http.Handler {
	t.Helper()
	reg := NewRegistry()
	srv := NewServer(ServerConfig{Addr: "127.0.0.1:0"}, reg, store, zap.NewNop())
	return srv.httpServer.Handler
}

func TestServer_Healthz(t *testing.T) {
	handler := testServer(t, nil)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != `{"status":"ok"}` {
		t.Errorf("got body %q", w.Body.String())
	}
}

func TestServer_Metrics(t *testing.T) {
	handler := testServer(t, nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Error("expected metrics exposition output")
	}
}

func TestServer_Sessions(t *testing.T) {
	store := session.NewStore(10, time.Hour)
	rec := store.Create([]string{"echo", "hi"}, "")
	store.Update(rec.ID, func(r *session.Record) {
		r.Status = session.StatusComplete
		r.Stdout = []byte("hi\n")
		r.FinishedAt = time.Now()
	})

	handler := testServer(t, store)

	req := httptest.NewRequest("GET", "/sessions", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var got []sessionSummary
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 session, got %d", len(got))
	}
	if got[0].ID != rec.ID || got[0].Status != session.StatusComplete || got[0].Bytes != 3 {
		t.Errorf("unexpected summary: %+v", got[0])
	}
}

func TestServer_SessionsUnavailable(t *testing.T) {
	handler := testServer(t, nil)

	req := httptest.NewRequest("GET", "/sessions", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}
