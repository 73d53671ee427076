package zaya

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aleeya2903/zaya-chatbot/internal/bitable"
)

// RegisterRoutes mounts the log endpoint on the given router.
func RegisterRoutes(r chi.Router, engine *Engine) {
	r.Post("/api/zaya-log", handleLog(engine))
}

func handleLog(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev LogEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if ev.UserID == "" {
			http.Error(w, `{"error":"userId is required"}`, http.StatusBadRequest)
			return
		}
		if ev.UserMessage == "" {
			http.Error(w, `{"error":"userMessage is required"}`, http.StatusBadRequest)
			return
		}

		result, err := engine.HandleLogEvent(r.Context(), ev)
		if err != nil {
			if errors.Is(err, bitable.ErrMalformedConversation) {
				http.Error(w, `{"error":"fullConversation is not valid JSON"}`, http.StatusBadRequest)
				return
			}
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}
