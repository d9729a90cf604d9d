package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/resonance/internal/extractor"
	"github.com/MikeSquared-Agency/resonance/internal/processor"
	"github.com/MikeSquared-Agency/resonance/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubFetcher struct {
	err error
}

func (f stubFetcher) Fetch(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return `<html><body><main><p>User: Help me plan a launch.</p><p>Assistant: Start with a waitlist.</p></main></body></html>`, nil
}

type stubReader struct {
	rec   *store.ConversationRecord
	ids   []uuid.UUID
	err   error
	limit int
}

func (s *stubReader) GetConversation(_ context.Context, id uuid.UUID) (*store.ConversationRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.rec == nil || s.rec.ID != id {
		return nil, store.ErrNotFound
	}
	return s.rec, nil
}

func (s *stubReader) ConversationsByTopic(_ context.Context, _ string, limit int) ([]uuid.UUID, error) {
	s.limit = limit
	return s.ids, s.err
}

func newTestServer(token string, fetchErr error, db ConversationReader) *Server {
	ext := extractor.New(extractor.Options{}, discardLogger())
	proc := processor.New(ext, stubFetcher{err: fetchErr}, nil, nil, discardLogger())
	return NewServer(8760, token, proc, db, discardLogger())
}

func do(srv *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	w := do(newTestServer("", nil, nil), "GET", "/health", "", nil)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer("secret", nil, nil)
	do(srv, "POST", "/api/v1/extract", `{"source":"User: hi\nAssistant: hello"}`,
		map[string]string{"Authorization": "Bearer secret"})

	w := do(srv, "GET", "/api/v1/resonance/status", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 without auth, got %d", w.Code)
	}
	var body struct {
		Agent       string          `json:"agent"`
		Persistence bool            `json:"persistence"`
		Stats       processor.Stats `json:"stats"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Agent != "resonance" {
		t.Errorf("expected agent resonance, got %q", body.Agent)
	}
	if body.Persistence {
		t.Error("expected persistence disabled")
	}
	if body.Stats.Processed != 1 {
		t.Errorf("expected 1 processed, got %d", body.Stats.Processed)
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	w := do(newTestServer("", nil, nil), "GET", "/nonexistent", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	srv := newTestServer("secret", nil, nil)
	body := `{"source":"User: hi\nAssistant: hello"}`

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong scheme", map[string]string{"Authorization": "Basic secret"}, http.StatusUnauthorized},
		{"wrong token", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"valid", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(srv, "POST", "/api/v1/extract", body, tt.header)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestExtract_Source(t *testing.T) {
	srv := newTestServer("", nil, nil)
	w := do(srv, "POST", "/api/v1/extract",
		`{"source":"User: I'm trying to grow a newsletter audience.\nAssistant: Publish weekly.","kind":"text","format":"transcript"}`, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		RequestID  string            `json:"request_id"`
		Result     *extractor.Result `json:"result"`
		Transcript string            `json:"transcript"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.RequestID == "" {
		t.Error("expected request id")
	}
	if got := len(body.Result.Conversation.Messages); got != 2 {
		t.Fatalf("expected 2 messages, got %d", got)
	}
	if body.Result.Context.ProblemStatement != "grow a newsletter audience" {
		t.Errorf("unexpected problem statement %q", body.Result.Context.ProblemStatement)
	}
	want := "User: I'm trying to grow a newsletter audience.\n\nAssistant: Publish weekly."
	if body.Transcript != want {
		t.Errorf("transcript:\n got %q\nwant %q", body.Transcript, want)
	}
}

func TestExtract_URL(t *testing.T) {
	srv := newTestServer("", nil, nil)
	w := do(srv, "POST", "/api/v1/extract", `{"url":"https://chatgpt.com/share/abc"}`, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body processor.Outcome
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.SourceURL != "https://chatgpt.com/share/abc" {
		t.Errorf("unexpected source url %q", body.SourceURL)
	}
	if body.Result.Kind != extractor.KindHTML {
		t.Errorf("expected html kind, got %q", body.Result.Kind)
	}
}

func TestExtract_ErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		fetchErr error
		body     string
		want     int
	}{
		{"bad json", nil, `{`, http.StatusBadRequest},
		{"empty request", nil, `{}`, http.StatusBadRequest},
		{"unsupported kind", nil, `{"source":"x","kind":"pdf"}`, http.StatusBadRequest},
		{"invalid url", nil, `{"url":"http://chatgpt.com/share/abc"}`, http.StatusBadRequest},
		{"fetch failure", errors.New("timeout"), `{"url":"https://chatgpt.com/share/abc"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newTestServer("", tt.fetchErr, nil), "POST", "/api/v1/extract", tt.body, nil)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("error body is not JSON: %v", err)
			}
			if body["error"] == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestGetConversation(t *testing.T) {
	id := uuid.New()
	db := &stubReader{rec: &store.ConversationRecord{ID: id, Title: "Launch planning", Messages: []extractor.Message{}}}
	srv := newTestServer("", nil, db)

	w := do(srv, "GET", "/api/v1/conversations/"+id.String(), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var rec store.ConversationRecord
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if rec.ID != id || rec.Title != "Launch planning" {
		t.Errorf("unexpected record %+v", rec)
	}

	if w := do(srv, "GET", "/api/v1/conversations/"+uuid.NewString(), "", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown id, got %d", w.Code)
	}
	if w := do(srv, "GET", "/api/v1/conversations/not-a-uuid", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", w.Code)
	}

	db.err = errors.New("connection reset")
	if w := do(srv, "GET", "/api/v1/conversations/"+id.String(), "", nil); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 on store failure, got %d", w.Code)
	}
}

func TestListConversations(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	db := &stubReader{ids: ids}
	srv := newTestServer("", nil, db)

	w := do(srv, "GET", "/api/v1/conversations?topic=pricing&limit=500", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if db.limit != maxTopicLimit {
		t.Errorf("expected limit clamped to %d, got %d", maxTopicLimit, db.limit)
	}
	var body struct {
		Topic string      `json:"topic"`
		IDs   []uuid.UUID `json:"conversation_ids"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Topic != "pricing" || len(body.IDs) != 2 {
		t.Errorf("unexpected body %+v", body)
	}

	if w := do(srv, "GET", "/api/v1/conversations", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without topic, got %d", w.Code)
	}
	if w := do(srv, "GET", "/api/v1/conversations?topic=x&limit=-1", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestConversationsWithoutPersistence(t *testing.T) {
	srv := newTestServer("", nil, nil)
	if w := do(srv, "GET", "/api/v1/conversations/"+uuid.NewString(), "", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

type pingReader struct {
	*stubReader
	err error
}

func (p pingReader) Ping(context.Context) error { return p.err }

type stubBus bool

func (b stubBus) Connected() bool { return bool(b) }

func TestStatusEndpoint_Dependencies(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		bus        stubBus
		wantStatus string
		wantDB     string
	}{
		{"healthy", nil, true, "ok", "ok"},
		{"database down", errors.New("refused"), true, "degraded", "unreachable"},
		{"bus down", nil, false, "degraded", "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer("", nil, pingReader{stubReader: &stubReader{}, err: tt.pingErr})
			srv.SetEventBus(tt.bus)

			w := do(srv, "GET", "/api/v1/resonance/status", "", nil)
			var body map[string]any
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tt.wantStatus)
			}
			if body["database"] != tt.wantDB {
				t.Errorf("database = %v, want %s", body["database"], tt.wantDB)
			}
			if body["event_bus"] != bool(tt.bus) {
				t.Errorf("event_bus = %v, want %v", body["event_bus"], tt.bus)
			}
		})
	}
}
