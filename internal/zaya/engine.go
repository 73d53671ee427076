// Package zaya implements the chat-log flow: per-user conversation state,
// summarization, record-store upserts, and assistant replies.
package zaya

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleeya2903/zaya-chatbot/internal/audit"
	"github.com/aleeya2903/zaya-chatbot/internal/bitable"
	"github.com/aleeya2903/zaya-chatbot/internal/conversation"
	"github.com/aleeya2903/zaya-chatbot/internal/llm"
	"github.com/aleeya2903/zaya-chatbot/internal/metrics"
)

const (
	summaryPrompt      = "Summarize this user's conversation briefly:\n"
	summaryTemperature = 0.5
	summaryMaxTokens   = 60

	replyTemperature = 0.7
	replyMaxTokens   = 150

	fallbackReply = "Sorry, something went wrong generating my reply!"
)

const personaPrompt = `You are Zaya, a helpful assistant for creators and developers using Leyline.

Use the following knowledge base to answer any platform-related questions:
%s

Keep answers concise and friendly. If the user asks something unrelated, just try your best.`

// RecordStore is the slice of the Bitable client the engine depends on.
type RecordStore interface {
	Upsert(ctx context.Context, rec bitable.Record) (json.RawMessage, bitable.Operation, error)
}

// Engine sequences the per-event flow: conversation update, summarization,
// record-store upsert, reply generation.
type Engine struct {
	conversations *conversation.Store
	provider      llm.Provider
	model         string
	records       RecordStore
	systemPrompt  string
	auditStore    *audit.Store     // optional
	metrics       *metrics.Metrics // optional
	log           zerolog.Logger
}

// NewEngine creates the log engine. knowledge is the knowledge-base text
// embedded in every system prompt; auditStore and m may be nil.
func NewEngine(conversations *conversation.Store, provider llm.Provider, model string, records RecordStore, knowledge string, auditStore *audit.Store, m *metrics.Metrics, log zerolog.Logger) *Engine {
	return &Engine{
		conversations: conversations,
		provider:      provider,
		model:         model,
		records:       records,
		systemPrompt:  fmt.Sprintf(personaPrompt, knowledge),
		auditStore:    auditStore,
		metrics:       m,
		log:           log.With().Str("component", "zaya").Logger(),
	}
}

// HandleLogEvent runs the fixed sequence summarize -> upsert -> respond and
// returns the aggregated result. Best-effort AI failures degrade to their
// documented defaults; only a malformed full-conversation payload aborts the
// event, since writing it through would persist an unusable record.
func (e *Engine) HandleLogEvent(ctx context.Context, ev LogEvent) (*LogResult, error) {
	start := time.Now()

	// Serialize concurrent events for the same user; events for different
	// users proceed in parallel.
	unlock := e.conversations.LockUser(ev.UserID)
	defer unlock()

	e.log.Info().Str("user_id", ev.UserID).Str("intent", ev.UserIntent).Str("page_url", ev.PageURL).Msg("received log event")

	summary := e.summarize(ctx, ev.UserID, ev.UserMessage)

	feishuResp, op, err := e.records.Upsert(ctx, bitable.Record{
		UserID:           ev.UserID,
		Intent:           ev.UserIntent,
		Message:          ev.UserMessage,
		Timestamp:        ev.Timestamp,
		PageURL:          ev.PageURL,
		Summary:          summary,
		FullConversation: ev.FullConversation,
	})
	if err != nil {
		if errors.Is(err, bitable.ErrMalformedConversation) {
			e.observe("malformed", start)
			return nil, err
		}
		// Auth and transport failures are fatal to the upsert only; the
		// caller still gets a response, with the failure surfaced as data.
		e.log.Error().Err(err).Str("user_id", ev.UserID).Msg("record store upsert failed")
		feishuResp = errorPayload(err)
		op = "error"
	}
	if e.metrics != nil {
		e.metrics.UpsertsTotal.WithLabelValues(string(op)).Inc()
	}

	reply := e.respond(ctx, ev.UserIntent, ev.UserMessage, ev.UserID)

	e.recordAudit(ctx, ev, summary, op, reply)
	e.observe("ok", start)

	return &LogResult{
		Success:        true,
		FeishuResponse: feishuResp,
		AIResponse:     reply,
	}, nil
}

// summarize appends the raw message to history and asks for a short summary
// of the newline-joined transcript. Summarization is best-effort: any
// failure yields an empty summary and must never block logging.
func (e *Engine) summarize(ctx context.Context, userID, message string) string {
	e.conversations.Append(userID, conversation.Plain(message))

	history := e.conversations.History(userID)
	lines := make([]string, 0, len(history))
	for _, entry := range history {
		lines = append(lines, entry.Text())
	}

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: summaryPrompt + strings.Join(lines, "\n")},
		},
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		e.log.Error().Err(err).Str("user_id", userID).Msg("summary completion failed")
		e.countCompletion("summary", "error")
		return ""
	}

	e.countCompletion("summary", "ok")
	return strings.TrimSpace(resp.Content)
}

// respond builds the assistant prompt from the system persona, the
// normalized history, and the new message, then generates a reply. The user
// message lands in history before the completion call, so a failed call
// still leaves it recorded. Failures return the fixed fallback string.
func (e *Engine) respond(ctx context.Context, intent, message, userID string) string {
	_ = intent // captured in the record store, not used for prompting

	messages := []llm.Message{{Role: llm.RoleSystem, Content: e.systemPrompt}}
	for _, entry := range e.conversations.History(userID) {
		role, content := entry.Normalize()
		messages = append(messages, llm.Message{Role: llm.Role(role), Content: content})
	}

	e.conversations.Append(userID, conversation.Structured("user", message))
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Model:       e.model,
		Messages:    messages,
		Temperature: replyTemperature,
		MaxTokens:   replyMaxTokens,
	})
	if err != nil {
		e.log.Error().Err(err).Str("user_id", userID).Msg("reply completion failed")
		e.countCompletion("reply", "error")
		return fallbackReply
	}

	reply := strings.TrimSpace(resp.Content)
	e.conversations.Append(userID, conversation.Structured("assistant", reply))
	e.countCompletion("reply", "ok")
	return reply
}

func (e *Engine) recordAudit(ctx context.Context, ev LogEvent, summary string, op bitable.Operation, reply string) {
	if e.auditStore == nil {
		return
	}
	err := e.auditStore.Log(ctx, audit.Entry{
		UserID:     ev.UserID,
		Intent:     ev.UserIntent,
		Message:    ev.UserMessage,
		PageURL:    ev.PageURL,
		Summary:    summary,
		UpsertOp:   audit.UpsertOp(op),
		AIResponse: reply,
	})
	if err != nil {
		e.log.Error().Err(err).Msg("writing audit entry failed")
	}
}

func (e *Engine) observe(status string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.LogEventsTotal.WithLabelValues(status).Inc()
	e.metrics.LogEventDuration.Observe(time.Since(start).Seconds())
}

func (e *Engine) countCompletion(kind, status string) {
	if e.metrics != nil {
		e.metrics.CompletionsTotal.WithLabelValues(kind, status).Inc()
	}
}

func errorPayload(err error) json.RawMessage {
	raw, mErr := json.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		return json.RawMessage(`{"error":"record store upsert failed"}`)
	}
	return json.RawMessage(raw)
}
