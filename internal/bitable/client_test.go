package bitable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// fakeBitable emulates the token, query, create and update endpoints and
// keeps one record per user like the real store.
type fakeBitable struct {
	mu          sync.Mutex
	records     map[string]map[string]any // recordID -> fields
	nextID      int
	rejectToken bool
	writes      int
	lastMethod  string
}

func newFakeBitable() *fakeBitable {
	return &fakeBitable{records: make(map[string]map[string]any)}
}

func (f *fakeBitable) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		if f.rejectToken {
			json.NewEncoder(w).Encode(map[string]any{"code": 99991663, "msg": "app not found"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"code": 0, "tenant_access_token": "t-test"})
	})

	mux.HandleFunc("/bitable/v1/apps/app-token/tables/tbl1/records", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			filter := r.URL.Query().Get("filter")
			var items []map[string]any
			for id, fields := range f.records {
				uid, _ := fields["User ID"].(string)
				if strings.Contains(filter, fmt.Sprintf("%q", uid)) {
					items = append(items, map[string]any{"record_id": id, "fields": fields})
				}
			}
			json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": map[string]any{"items": items}})

		case http.MethodPost:
			f.writes++
			f.lastMethod = http.MethodPost
			var payload struct {
				Fields map[string]any `json:"fields"`
			}
			json.NewDecoder(r.Body).Decode(&payload)
			f.nextID++
			id := fmt.Sprintf("rec%d", f.nextID)
			f.records[id] = payload.Fields
			json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": map[string]any{"record": map[string]any{"record_id": id}}})
		}
	})

	mux.HandleFunc("/bitable/v1/apps/app-token/tables/tbl1/records/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.writes++
		f.lastMethod = r.Method
		id := strings.TrimPrefix(r.URL.Path, "/bitable/v1/apps/app-token/tables/tbl1/records/")
		var payload struct {
			Fields map[string]any `json:"fields"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		f.records[id] = payload.Fields
		json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": map[string]any{"record": map[string]any{"record_id": id}}})
	})

	return mux
}

func setupClient(t *testing.T, fake *fakeBitable) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	return New(Config{
		BaseURL:   srv.URL,
		AppID:     "app-id",
		AppSecret: "app-secret",
		AppToken:  "app-token",
		TableID:   "tbl1",
	}, zerolog.Nop())
}

func testRecord(userID, message string) Record {
	return Record{
		UserID:           userID,
		Intent:           "support",
		Message:          message,
		Timestamp:        "2024-01-01T00:00:00Z",
		PageURL:          "https://example.com/page",
		Summary:          "a summary",
		FullConversation: `[{"role":"user","content":"hi"}]`,
	}
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	fake := newFakeBitable()
	client := setupClient(t, fake)
	ctx := context.Background()

	if _, op, err := client.Upsert(ctx, testRecord("u1", "first")); err != nil {
		t.Fatalf("first Upsert: %v", err)
	} else if op != OpCreate {
		t.Errorf("first upsert op = %s, want create", op)
	}
	if fake.lastMethod != http.MethodPost {
		t.Errorf("first upsert method = %s, want POST", fake.lastMethod)
	}

	if _, op, err := client.Upsert(ctx, testRecord("u1", "second")); err != nil {
		t.Fatalf("second Upsert: %v", err)
	} else if op != OpUpdate {
		t.Errorf("second upsert op = %s, want update", op)
	}
	if fake.lastMethod != http.MethodPut {
		t.Errorf("second upsert method = %s, want PUT", fake.lastMethod)
	}

	// Exactly one record for the user, holding fields from the second call.
	if len(fake.records) != 1 {
		t.Fatalf("record count = %d, want 1", len(fake.records))
	}
	for _, fields := range fake.records {
		if fields["Last Message"] != "second" {
			t.Errorf("Last Message = %v, want %q", fields["Last Message"], "second")
		}
	}
}

func TestUpsertWritesConvertedFields(t *testing.T) {
	fake := newFakeBitable()
	client := setupClient(t, fake)

	if _, _, err := client.Upsert(context.Background(), testRecord("u1", "hello")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	for _, fields := range fake.records {
		// 2024-01-01T00:00:00Z in epoch milliseconds.
		if ts, _ := fields["Timestamp"].(float64); int64(ts) != 1704067200000 {
			t.Errorf("Timestamp = %v, want 1704067200000", fields["Timestamp"])
		}
		convo, _ := fields["Full Conversation"].(string)
		if !strings.Contains(convo, "\n") {
			t.Errorf("Full Conversation should be pretty-printed, got %q", convo)
		}
		if fields["Conversation Summary"] != "a summary" {
			t.Errorf("Conversation Summary = %v", fields["Conversation Summary"])
		}
	}
}

func TestUpsertMalformedConversationFailsBeforeWrite(t *testing.T) {
	fake := newFakeBitable()
	client := setupClient(t, fake)

	rec := testRecord("u1", "hello")
	rec.FullConversation = "{not valid json"

	_, _, err := client.Upsert(context.Background(), rec)
	if !errors.Is(err, ErrMalformedConversation) {
		t.Fatalf("err = %v, want ErrMalformedConversation", err)
	}
	if fake.writes != 0 {
		t.Errorf("writes = %d, want 0", fake.writes)
	}
}

func TestUpsertAuthFailure(t *testing.T) {
	fake := newFakeBitable()
	fake.rejectToken = true
	client := setupClient(t, fake)

	_, _, err := client.Upsert(context.Background(), testRecord("u1", "hello"))
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
	if fake.writes != 0 {
		t.Errorf("writes = %d, want 0", fake.writes)
	}
}

func TestFindRecordTakesFirstMatch(t *testing.T) {
	fake := newFakeBitable()
	// Two pre-existing records for the same user; the client must update
	// exactly one of them rather than create a third.
	fake.records["recA"] = map[string]any{"User ID": "u1", "Last Message": "old-a"}
	fake.records["recB"] = map[string]any{"User ID": "u1", "Last Message": "old-b"}
	client := setupClient(t, fake)

	if _, _, err := client.Upsert(context.Background(), testRecord("u1", "newest")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if fake.lastMethod != http.MethodPut {
		t.Errorf("method = %s, want PUT", fake.lastMethod)
	}
	if len(fake.records) != 2 {
		t.Errorf("record count = %d, want 2 (no new record created)", len(fake.records))
	}
}

func TestEpochMillis(t *testing.T) {
	got, err := epochMillis("2024-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("epochMillis: %v", err)
	}
	if got != 1704067200000 {
		t.Errorf("epochMillis = %d, want 1704067200000", got)
	}

	// Sub-second precision is truncated before scaling.
	got, err = epochMillis("2024-01-01T00:00:00.999Z")
	if err != nil {
		t.Fatalf("epochMillis: %v", err)
	}
	if got != 1704067200000 {
		t.Errorf("epochMillis with sub-second = %d, want 1704067200000", got)
	}

	if _, err := epochMillis("yesterday"); err == nil {
		t.Error("expected error for non-ISO timestamp")
	}
}

func TestPrettyJSON(t *testing.T) {
	out, err := prettyJSON(`{"a":1}`)
	if err != nil {
		t.Fatalf("prettyJSON: %v", err)
	}
	if out != "{\n  \"a\": 1\n}" {
		t.Errorf("prettyJSON = %q", out)
	}

	if _, err := prettyJSON("nope{"); !errors.Is(err, ErrMalformedConversation) {
		t.Errorf("err = %v, want ErrMalformedConversation", err)
	}
}
