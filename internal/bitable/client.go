// Package bitable talks to the Feishu Bitable API: tenant token exchange,
// record lookup by user, and create-or-update writes.
package bitable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// ErrAuth indicates the tenant token exchange was rejected or returned no
// token. Fatal for the current upsert; never retried here.
var ErrAuth = errors.New("bitable: tenant access token exchange failed")

// ErrMalformedConversation indicates the full-conversation payload is not
// valid JSON. This is the one client error callers must not suppress:
// writing it through would persist an unusable record.
var ErrMalformedConversation = errors.New("bitable: full conversation is not valid JSON")

// Operation reports how an upsert resolved.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
)

// Record is the field set written to the Bitable, one live row per user.
type Record struct {
	UserID           string
	Intent           string
	Message          string
	Timestamp        string // ISO-8601
	PageURL          string
	Summary          string
	FullConversation string // JSON-encoded string
}

// Config holds the Bitable connection settings.
type Config struct {
	BaseURL   string // e.g. https://open.feishu.cn/open-apis
	AppID     string
	AppSecret string
	AppToken  string // table app token
	TableID   string
}

// Client performs authenticated Bitable calls. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger
}

// New creates a Bitable client with an explicit request timeout.
func New(cfg Config, log zerolog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log.With().Str("component", "bitable").Logger(),
	}
}

type tokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
}

// tenantAccessToken exchanges the app credentials for a short-lived bearer
// token via the internal token endpoint.
func (c *Client) tenantAccessToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(tokenRequest{AppID: c.cfg.AppID, AppSecret: c.cfg.AppSecret})
	if err != nil {
		return "", fmt.Errorf("marshalling token request: %w", err)
	}

	u := c.cfg.BaseURL + "/auth/v3/tenant_access_token/internal"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrAuth, err)
	}
	if tr.TenantAccessToken == "" {
		c.log.Error().Int("code", tr.Code).Str("msg", tr.Msg).Msg("tenant token exchange rejected")
		return "", fmt.Errorf("%w: code=%d msg=%s", ErrAuth, tr.Code, tr.Msg)
	}

	return tr.TenantAccessToken, nil
}

type queryResponse struct {
	Data struct {
		Items []struct {
			RecordID string         `json:"record_id"`
			Fields   map[string]any `json:"fields"`
		} `json:"items"`
	} `json:"data"`
}

// Upsert writes the record for rec.UserID: the first matching record is
// updated in place, otherwise a new record is created. The raw store
// response body is returned as data; a non-2xx store payload is not an
// error. The only errors raised are the token exchange failing, the
// conversation payload being malformed, or transport failures.
func (c *Client) Upsert(ctx context.Context, rec Record) (json.RawMessage, Operation, error) {
	token, err := c.tenantAccessToken(ctx)
	if err != nil {
		return nil, "", err
	}

	tableURL := fmt.Sprintf("%s/bitable/v1/apps/%s/tables/%s", c.cfg.BaseURL, c.cfg.AppToken, c.cfg.TableID)

	recordID, err := c.findRecord(ctx, token, tableURL, rec.UserID)
	if err != nil {
		return nil, "", err
	}

	prettyConvo, err := prettyJSON(rec.FullConversation)
	if err != nil {
		c.log.Error().Err(err).Str("user_id", rec.UserID).Msg("full conversation parse error")
		return nil, "", err
	}

	millis, err := epochMillis(rec.Timestamp)
	if err != nil {
		return nil, "", fmt.Errorf("parsing timestamp %q: %w", rec.Timestamp, err)
	}

	payload := map[string]any{
		"fields": map[string]any{
			"User ID":              rec.UserID,
			"User Intent":          rec.Intent,
			"Last Message":         rec.Message,
			"Timestamp":            millis,
			"Page URL":             rec.PageURL,
			"Full Conversation":    prettyConvo,
			"Conversation Summary": rec.Summary,
		},
	}

	if recordID != "" {
		resp, err := c.writeRecord(ctx, token, http.MethodPut, tableURL+"/records/"+recordID, payload)
		return resp, OpUpdate, err
	}
	resp, err := c.writeRecord(ctx, token, http.MethodPost, tableURL+"/records", payload)
	return resp, OpCreate, err
}

// findRecord queries for an existing record with an exact user ID match and
// returns its record ID, or "" when none exists. The store should return at
// most one match; if it ever returns more, the first one wins.
func (c *Client) findRecord(ctx context.Context, token, tableURL, userID string) (string, error) {
	filter := fmt.Sprintf("CurrentValue.[User ID]=%q", userID)
	u := tableURL + "/records?filter=" + url.QueryEscape(filter)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("creating query request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying records: %w", err)
	}
	defer resp.Body.Close()

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return "", fmt.Errorf("decoding query response: %w", err)
	}

	if len(qr.Data.Items) == 0 {
		return "", nil
	}
	return qr.Data.Items[0].RecordID, nil
}

func (c *Client) writeRecord(ctx context.Context, token, method, u string, payload map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling record payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating write request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("writing record: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading write response: %w", err)
	}

	c.log.Debug().Str("method", method).Int("status", resp.StatusCode).Msg("record written")
	return json.RawMessage(raw), nil
}

// prettyJSON re-serializes the conversation payload with indentation for
// storage, or reports it as malformed.
func prettyJSON(raw string) (string, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedConversation, err)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("re-serializing conversation: %w", err)
	}
	return string(pretty), nil
}

// epochMillis converts an ISO-8601 timestamp to epoch milliseconds. The
// value truncates to whole seconds before scaling, matching the store's
// existing rows; sub-second precision is intentionally lost.
func epochMillis(iso string) (int64, error) {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return 0, err
	}
	return t.Unix() * 1000, nil
}
