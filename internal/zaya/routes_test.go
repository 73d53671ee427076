package zaya

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func setupRouter(t *testing.T) (chi.Router, *fakeRecords) {
	t.Helper()
	engine, _, records, _, _ := setupEngine(t)
	r := chi.NewRouter()
	RegisterRoutes(r, engine)
	return r, records
}

func postLog(t *testing.T, r chi.Router, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/zaya-log", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLogEndpoint(t *testing.T) {
	r, _ := setupRouter(t)

	w := postLog(t, r, `{
		"userId": "u1",
		"userIntent": "support",
		"userMessage": "how do I publish?",
		"timestamp": "2024-01-01T00:00:00Z",
		"pageUrl": "https://example.com",
		"fullConversation": "[{\"role\":\"user\",\"content\":\"hi\"}]"
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	var result LogResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !result.Success {
		t.Error("success should be true")
	}
	if result.AIResponse == "" {
		t.Error("ai_response should be non-empty")
	}
	if len(result.FeishuResponse) == 0 {
		t.Error("feishu_response should be present")
	}
}

func TestLogEndpointRejectsBadBody(t *testing.T) {
	r, _ := setupRouter(t)

	if w := postLog(t, r, `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", w.Code)
	}
	if w := postLog(t, r, `{"userMessage":"hi"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing userId status = %d, want 400", w.Code)
	}
	if w := postLog(t, r, `{"userId":"u1"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing userMessage status = %d, want 400", w.Code)
	}
}

func TestLogEndpointMalformedConversation(t *testing.T) {
	r, records := setupRouter(t)

	w := postLog(t, r, `{
		"userId": "u1",
		"userMessage": "hello",
		"timestamp": "2024-01-01T00:00:00Z",
		"fullConversation": "{not valid json"
	}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if records.writeCount() != 0 {
		t.Errorf("writeCount = %d, want 0", records.writeCount())
	}
}
