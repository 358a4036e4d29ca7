package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/avonarret22/whatsapp-bot-template/internal/domain"
)

// handleWebhook receives carrier callbacks in Twilio's form encoding and
// feeds them through the pipeline. The carrier only needs the ack status;
// the reply itself is delivered out of band.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid form payload"})
		return
	}

	numMedia, _ := strconv.Atoi(r.PostFormValue("NumMedia"))
	msg := domain.InboundMessage{
		MessageID:  r.PostFormValue("MessageSid"),
		From:       r.PostFormValue("From"),
		To:         r.PostFormValue("To"),
		Body:       r.PostFormValue("Body"),
		NumMedia:   numMedia,
		ReceivedAt: time.Now().UTC(),
	}

	if msg.From == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing From field"})
		return
	}

	ack := s.pipeline.Handle(r.Context(), msg)
	status := ack.HTTPStatus
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, ack)
}

// handleWebhookVerify answers carrier endpoint checks.
func (s *Server) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": s.cfg.App.Name,
	})
}
