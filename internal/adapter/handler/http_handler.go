package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/tholander/bagwatch/internal/core/domain"
	"github.com/tholander/bagwatch/internal/core/service"
)

const unavailableText = "Service unavailable, please try again later."

type HTTPHandler struct {
	commands *service.CommandService
}

// CommandResponse is the Slack slash-command reply payload.
type CommandResponse struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

func NewHTTPHandler(commands *service.CommandService) *HTTPHandler {
	return &HTTPHandler{commands: commands}
}

// Command handles the Slack slash-command webhook. Slack posts form-encoded
// user_id and text fields and expects a 200 with the reply body; errors are
// reported as text, never as HTTP failures.
func (h *HTTPHandler) Command(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, CommandResponse{
			ResponseType: "ephemeral",
			Text:         "invalid request body",
		})
		return
	}

	slackID := r.PostFormValue("user_id")
	if slackID == "" {
		writeJSON(w, http.StatusBadRequest, CommandResponse{
			ResponseType: "ephemeral",
			Text:         "missing user_id",
		})
		return
	}

	cmd := domain.ParseCommand(r.PostFormValue("text"))

	reply, err := h.commands.Execute(r.Context(), slackID, cmd)
	if err != nil {
		log.Printf("handler: command failed for user %s: %v", slackID, err)
		writeJSON(w, http.StatusOK, CommandResponse{
			ResponseType: "ephemeral",
			Text:         unavailableText,
		})
		return
	}

	writeJSON(w, http.StatusOK, CommandResponse{
		ResponseType: "ephemeral",
		Text:         reply,
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
