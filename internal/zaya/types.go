package zaya

import "encoding/json"

// LogEvent is the inbound chat-log payload posted by the Zaya widget.
type LogEvent struct {
	UserID           string `json:"userId"`
	UserIntent       string `json:"userIntent"`
	UserMessage      string `json:"userMessage"`
	Timestamp        string `json:"timestamp"` // ISO-8601
	PageURL          string `json:"pageUrl"`
	FullConversation string `json:"fullConversation"` // JSON-encoded string
}

// LogResult aggregates everything a handled event produced.
type LogResult struct {
	Success        bool            `json:"success"`
	FeishuResponse json.RawMessage `json:"feishu_response"`
	AIResponse     string          `json:"ai_response"`
}
