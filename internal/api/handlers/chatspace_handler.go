package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/markdave123-py/chatspace/internal/models"
	"github.com/markdave123-py/chatspace/internal/services"
)

type ChatSpaceHandler struct {
	svc    ChatSpaceService
	logger *zap.Logger
}

func NewChatSpaceHandler(svc ChatSpaceService, logger *zap.Logger) *ChatSpaceHandler {
	return &ChatSpaceHandler{svc: svc, logger: logger}
}

type createChatSpaceRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

type updateChatSpaceRequest struct {
	Name         *string              `json:"name" validate:"omitempty,max=100"`
	Description  *string              `json:"description" validate:"omitempty,max=1000"`
	WidgetStatus *models.WidgetStatus `json:"widget_status" validate:"omitempty,oneof=testing live maintenance"`
	AIConfig     *models.AIConfig     `json:"ai_config"`
	WidgetConfig *models.WidgetConfig `json:"widget_config"`
}

type clearDocumentsResponse struct {
	Message   string            `json:"message"`
	ChatSpace *models.ChatSpace `json:"chatSpace"`
}

type cancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

func (h *ChatSpaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req createChatSpaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if err := validateRequest(req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	cs, err := h.svc.Create(r.Context(), userID, services.CreateChatSpaceInput{Name: req.Name, Description: req.Description})
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, cs)
}

func (h *ChatSpaceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	spaces, err := h.svc.List(r.Context(), userID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, spaces)
}

func (h *ChatSpaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	cs, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, cs)
}

func (h *ChatSpaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req updateChatSpaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if err := validateRequest(req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	cs, err := h.svc.Update(r.Context(), userID, chi.URLParam(r, "id"), services.UpdateChatSpaceInput{
		Name:         req.Name,
		Description:  req.Description,
		WidgetStatus: req.WidgetStatus,
		AIConfig:     req.AIConfig,
		WidgetConfig: req.WidgetConfig,
	})
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, cs)
}

func (h *ChatSpaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, MessageResponse{Message: "Chat space and all related data deleted successfully"})
}

func (h *ChatSpaceHandler) ClearDocuments(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	cs, err := h.svc.ClearDocuments(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, clearDocumentsResponse{
		Message:   "All documents and vectors cleared successfully",
		ChatSpace: cs,
	})
}

// Process runs ingestion and answers with the per-document summary.
// With ?async=true the run is queued and the response is 202.
func (h *ChatSpaceHandler) Process(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	id := chi.URLParam(r, "id")

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if err := h.svc.ProcessAsync(r.Context(), userID, id); err != nil {
			respondWithError(w, h.logger, err)
			return
		}
		respondWithJSON(w, h.logger, http.StatusAccepted, StatusResponse{Status: "queued"})
		return
	}

	res, err := h.svc.Process(r.Context(), userID, id)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, res)
}

func (h *ChatSpaceHandler) CancelProcess(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	cancelled, err := h.svc.CancelProcessing(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, cancelResponse{Cancelled: cancelled})
}
