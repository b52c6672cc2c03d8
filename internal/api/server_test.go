package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

type memoryKeys struct {
	claimed map[string]bool
}

func (m *memoryKeys) Claim(_ context.Context, userID, key string) (bool, error) {
	if m.claimed == nil {
		m.claimed = map[string]bool{}
	}
	id := userID + "/" + key
	if m.claimed[id] {
		return false, nil
	}
	m.claimed[id] = true
	return true, nil
}

func testServer() *Server {
	return &Server{
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		keys: &memoryKeys{},
	}
}

func mutationRequest(userID, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/bank-account/deposit", nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	ctx := context.WithValue(req.Context(), userContextKey, UserContext{UserID: userID})
	return req.WithContext(ctx)
}

func TestIdempotencyReplayDoesNotRerunHandler(t *testing.T) {
	s := testServer()
	calls := 0
	h := s.idempotency(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		writeData(w, http.StatusOK, map[string]any{"ok": true}, "")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, mutationRequest("user-1", "key-1"))
	if calls != 1 || rec.Code != http.StatusOK {
		t.Fatalf("first call: calls=%d status=%d", calls, rec.Code)
	}

	// Same key again, as a replay after a lost response would send it.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, mutationRequest("user-1", "key-1"))
	if calls != 1 {
		t.Fatalf("replay re-ran the mutation, calls=%d", calls)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("replay status = %d, want 200", rec.Code)
	}
	var body struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.Success {
		t.Fatal("replay response reported failure")
	}
	if applied, _ := body.Data["applied"].(bool); applied {
		t.Fatal("replay reported applied=true")
	}
}

func TestIdempotencyFreshKeysAndMissingHeader(t *testing.T) {
	s := testServer()
	calls := 0
	h := s.idempotency(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		writeData(w, http.StatusOK, map[string]any{"ok": true}, "")
	}))

	h.ServeHTTP(httptest.NewRecorder(), mutationRequest("user-1", "key-1"))
	h.ServeHTTP(httptest.NewRecorder(), mutationRequest("user-1", "key-2"))
	if calls != 2 {
		t.Fatalf("distinct keys ran handler %d times, want 2", calls)
	}

	// No header means no claim; every request runs.
	h.ServeHTTP(httptest.NewRecorder(), mutationRequest("user-1", ""))
	h.ServeHTTP(httptest.NewRecorder(), mutationRequest("user-1", ""))
	if calls != 4 {
		t.Fatalf("keyless requests ran handler %d times, want 4", calls)
	}
}

func TestIdempotencyKeysScopedPerUser(t *testing.T) {
	s := testServer()
	calls := 0
	h := s.idempotency(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		writeData(w, http.StatusOK, map[string]any{"ok": true}, "")
	}))

	h.ServeHTTP(httptest.NewRecorder(), mutationRequest("user-1", "shared-key"))
	h.ServeHTTP(httptest.NewRecorder(), mutationRequest("user-2", "shared-key"))
	if calls != 2 {
		t.Fatalf("one user's key blocked another, calls=%d", calls)
	}
}
