package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	app "github.com/plaza-social/plaza/internal/app"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	application, err := app.New(app.Stores{}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("start application: %v", err)
	}
	t.Cleanup(func() { _ = application.Stop(context.Background()) })
	return NewHandler(application, nil)
}

func marshal(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewBuffer(b)
}

func do(handler http.Handler, method, path string, body *bytes.Buffer) *httptest.ResponseRecorder {
	if body == nil {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, body)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestHandlerLifecycle(t *testing.T) {
	handler := newTestHandler(t)

	// Registration.
	resp := do(handler, http.MethodPost, "/register", marshal(t, map[string]any{"username": "alice", "password": "letmein4"}))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 register, got %d: %s", resp.Code, resp.Body)
	}
	var alice map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &alice); err != nil {
		t.Fatalf("unmarshal account: %v", err)
	}
	if alice["accountId"].(float64) == 0 || alice["username"] != "alice" {
		t.Fatalf("unexpected account body: %v", alice)
	}
	aliceID := int64(alice["accountId"].(float64))

	resp = do(handler, http.MethodPost, "/register", marshal(t, map[string]any{"username": "alice", "password": "different8"}))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 duplicate register, got %d", resp.Code)
	}

	resp = do(handler, http.MethodPost, "/register", marshal(t, map[string]any{"username": "  ", "password": "letmein4"}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 blank username, got %d", resp.Code)
	}

	resp = do(handler, http.MethodPost, "/register", marshal(t, map[string]any{"username": "bob", "password": "abc"}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 short password, got %d", resp.Code)
	}
	var failure map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &failure); err != nil || failure["error"] == "" {
		t.Fatalf("expected error body, got %s", resp.Body)
	}

	// Login.
	resp = do(handler, http.MethodPost, "/login", marshal(t, map[string]any{"username": "alice", "password": "letmein4"}))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 login, got %d", resp.Code)
	}

	resp = do(handler, http.MethodPost, "/login", marshal(t, map[string]any{"username": "alice", "password": "wrong"}))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 bad login, got %d", resp.Code)
	}

	resp = do(handler, http.MethodPost, "/login", marshal(t, map[string]any{"username": "alice"}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 missing password, got %d", resp.Code)
	}

	// Posting.
	resp = do(handler, http.MethodPost, "/messages", marshal(t, map[string]any{
		"postedBy": aliceID, "messageText": "hello world", "timePostedEpoch": 1669947792,
	}))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 send, got %d: %s", resp.Code, resp.Body)
	}
	var msg map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	msgID := int64(msg["messageId"].(float64))
	if msgID == 0 || msg["messageText"] != "hello world" {
		t.Fatalf("unexpected message body: %v", msg)
	}

	resp = do(handler, http.MethodPost, "/messages", marshal(t, map[string]any{
		"postedBy": 9999, "messageText": "ghost post",
	}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 unknown author, got %d", resp.Code)
	}

	// Reads.
	resp = do(handler, http.MethodGet, "/messages", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 list, got %d", resp.Code)
	}
	var listed []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &listed); err != nil || len(listed) != 1 {
		t.Fatalf("expected one listed message, got %s", resp.Body)
	}

	resp = do(handler, http.MethodGet, "/messages/9999", nil)
	if resp.Code != http.StatusOK || resp.Body.Len() != 0 {
		t.Fatalf("expected 200 empty body for absent message, got %d %q", resp.Code, resp.Body)
	}

	resp = do(handler, http.MethodGet, "/messages/not-a-number", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 non-numeric id, got %d", resp.Code)
	}

	// Update returns the number of rows changed.
	resp = do(handler, http.MethodPatch, "/messages/"+itoa(msgID), marshal(t, map[string]any{"messageText": "edited"}))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 update, got %d: %s", resp.Code, resp.Body)
	}
	if strings.TrimSpace(resp.Body.String()) != "1" {
		t.Fatalf("expected literal 1, got %q", resp.Body)
	}

	resp = do(handler, http.MethodPatch, "/messages/9999", marshal(t, map[string]any{"messageText": "edited"}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 update of absent message, got %d", resp.Code)
	}

	resp = do(handler, http.MethodPatch, "/messages/"+itoa(msgID), marshal(t, map[string]any{"messageText": "   "}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 blank update, got %d", resp.Code)
	}

	// Per-author listing reflects the edit.
	resp = do(handler, http.MethodGet, "/accounts/"+itoa(aliceID)+"/messages", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 by-author list, got %d", resp.Code)
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &listed); err != nil || len(listed) != 1 || listed[0]["messageText"] != "edited" {
		t.Fatalf("unexpected by-author listing: %s", resp.Body)
	}

	// Deletion.
	resp = do(handler, http.MethodDelete, "/messages/"+itoa(msgID), nil)
	if resp.Code != http.StatusOK || strings.TrimSpace(resp.Body.String()) != "1" {
		t.Fatalf("expected 200 with literal 1, got %d %q", resp.Code, resp.Body)
	}

	resp = do(handler, http.MethodDelete, "/messages/"+itoa(msgID), nil)
	if resp.Code != http.StatusOK || resp.Body.Len() != 0 {
		t.Fatalf("expected 200 empty body on repeat delete, got %d %q", resp.Code, resp.Body)
	}

	resp = do(handler, http.MethodGet, "/accounts/"+itoa(aliceID)+"/messages", nil)
	if err := json.Unmarshal(resp.Body.Bytes(), &listed); err != nil || len(listed) != 0 {
		t.Fatalf("expected empty by-author listing, got %s", resp.Body)
	}

	// Operational endpoints.
	resp = do(handler, http.MethodGet, "/healthz", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 healthz, got %d", resp.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &health); err != nil || health["status"] != "ok" {
		t.Fatalf("unexpected health body: %s", resp.Body)
	}

	resp = do(handler, http.MethodGet, "/metrics", nil)
	if resp.Code != http.StatusOK || resp.Body.Len() == 0 {
		t.Fatalf("expected non-empty 200 metrics, got %d", resp.Code)
	}
}

func TestHandlerRejectsMalformedJSON(t *testing.T) {
	handler := newTestHandler(t)

	resp := do(handler, http.MethodPost, "/register", bytes.NewBufferString("{not json"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 malformed json, got %d", resp.Code)
	}
}

func TestHandlerAssignsTraceIDs(t *testing.T) {
	handler := newTestHandler(t)

	resp := do(handler, http.MethodGet, "/messages", nil)
	if resp.Header().Get("X-Trace-Id") == "" {
		t.Fatal("expected a trace id header")
	}

	req := httptest.NewRequest(http.MethodGet, "/messages", nil)
	req.Header.Set("X-Trace-Id", "caller-chosen")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("X-Trace-Id") != "caller-chosen" {
		t.Fatalf("expected caller trace id to survive, got %q", rec.Header().Get("X-Trace-Id"))
	}
}

func TestAuditLogRecordsRequests(t *testing.T) {
	application, err := app.New(app.Stores{}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	h := &handler{app: application, audit: newAuditLog(2, nil)}
	wrapped := auditMiddleware(h.audit, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages", nil))
	}

	entries := h.audit.listLimit(10)
	if len(entries) != 2 {
		t.Fatalf("expected ring capped at 2 entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Status != http.StatusTeapot || entry.Path != "/messages" || entry.TraceID == "" {
			t.Fatalf("unexpected audit entry: %+v", entry)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	wrapped := CORSMiddleware([]string{"https://plaza.example"})(next)

	req := httptest.NewRequest(http.MethodOptions, "/messages", nil)
	req.Header.Set("Origin", "https://plaza.example")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://plaza.example" {
		t.Fatalf("expected allow-origin header, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodOptions, "/messages", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown origin, got %d", rec.Code)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
