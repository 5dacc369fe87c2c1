package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/markdave123-py/chatspace/internal/services"
)

type SettingsHandler struct {
	svc    SettingsService
	logger *zap.Logger
}

func NewSettingsHandler(svc SettingsService, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{svc: svc, logger: logger}
}

type updateSettingsRequest struct {
	ResponseTone      *string `json:"responseTone" validate:"omitempty,max=50"`
	KBConnectorURL    *string `json:"kbConnectorUrl" validate:"omitempty,max=2048"`
	KBConnectorAPIKey *string `json:"kbConnectorApiKey" validate:"omitempty,max=512"`
	KBConnectorActive *bool   `json:"kbConnectorActive"`
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	st, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, st)
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req updateSettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if err := validateRequest(req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	st, err := h.svc.Update(r.Context(), userID, services.UpdateSettingsInput{
		ResponseTone:      req.ResponseTone,
		KBConnectorURL:    req.KBConnectorURL,
		KBConnectorAPIKey: req.KBConnectorAPIKey,
		KBConnectorActive: req.KBConnectorActive,
	})
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, st)
}
