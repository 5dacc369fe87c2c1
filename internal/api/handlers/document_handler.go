package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/models"
	"github.com/markdave123-py/chatspace/internal/services"
)

type DocumentHandler struct {
	svc            DocumentService
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewDocumentHandler(svc DocumentService, maxUploadBytes int64, logger *zap.Logger) *DocumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &DocumentHandler{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

type createDocumentRequest struct {
	Type        models.DocumentType `json:"type" validate:"required,oneof=url text"`
	SourceURL   string              `json:"source_url" validate:"required_if=Type url"`
	Title       string              `json:"title" validate:"max=200"`
	TextContent string              `json:"text_content" validate:"required_if=Type text"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	docs, err := h.svc.List(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, docs)
}

// Create adds a url or text document.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	var req createDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if err := validateRequest(req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	doc, err := h.svc.Create(r.Context(), userID, chi.URLParam(r, "id"), services.CreateDocumentInput{
		Type:      req.Type,
		SourceURL: req.SourceURL,
		Title:     req.Title,
		Content:   req.TextContent,
	})
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, doc)
}

// Upload accepts a multipart form with a single "file" field.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	// one extra MiB for the multipart framing
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, h.logger, fmt.Errorf("%w: file exceeds %d bytes", apperrors.ErrValidation, h.maxUploadBytes))
			return
		}
		respondWithError(w, h.logger, fmt.Errorf("%w: expected a multipart form", apperrors.ErrValidation))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, h.logger, fmt.Errorf("%w: no file uploaded", apperrors.ErrValidation))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		respondWithError(w, h.logger, fmt.Errorf("read upload: %w", err))
		return
	}

	doc, err := h.svc.Upload(r.Context(), userID, chi.URLParam(r, "id"), services.UploadInput{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, doc)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	doc, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, doc)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, MessageResponse{Message: "Document deleted"})
}
