package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/markdave123-py/chatspace/internal/services"
)

// WidgetHandler serves the public, unauthenticated widget endpoints. Access
// is governed by the chat space's domain allow-list.
type WidgetHandler struct {
	svc    WidgetService
	logger *zap.Logger
}

func NewWidgetHandler(svc WidgetService, logger *zap.Logger) *WidgetHandler {
	return &WidgetHandler{svc: svc, logger: logger}
}

// message length is checked by the service, after the domain check
type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	EndUserID      string `json:"endUserId"`
}

func (h *WidgetHandler) Config(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.WidgetConfig(r.Context(), chi.URLParam(r, "slug"), r.Header.Get("Origin"), r.Header.Get("Referer"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, info)
}

func (h *WidgetHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	resp, err := h.svc.Answer(r.Context(), services.ChatRequest{
		Slug:           chi.URLParam(r, "slug"),
		Message:        req.Message,
		ConversationID: req.ConversationID,
		Origin:         r.Header.Get("Origin"),
		Referer:        r.Header.Get("Referer"),
		EndUserID:      req.EndUserID,
	})
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, resp)
}
