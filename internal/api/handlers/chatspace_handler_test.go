package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/markdave123-py/chatspace/internal/api/handlers"
	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/core/ingestion_engine"
	"github.com/markdave123-py/chatspace/internal/models"
	"github.com/markdave123-py/chatspace/internal/services"
)

func setupChatSpaceHandler(t *testing.T) (*handlers.ChatSpaceHandler, *mockChatSpaceService) {
	t.Helper()
	svc := &mockChatSpaceService{}
	t.Cleanup(func() { svc.AssertExpectations(t) })
	return handlers.NewChatSpaceHandler(svc, zap.NewNop()), svc
}

func TestChatSpaceHandler_Create(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, svc := setupChatSpaceHandler(t)
		svc.On("Create", mock.Anything, "u1", services.CreateChatSpaceInput{Name: "Support", Description: "desk"}).
			Return(&models.ChatSpace{ID: "cs1", Name: "Support", EndpointSlug: "abc"}, nil).Once()

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/chat-spaces", strings.NewReader(`{"name":"Support","description":"desk"}`)), "u1")
		rr := httptest.NewRecorder()
		handler.Create(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Contains(t, rr.Body.String(), `"endpoint_slug":"abc"`)
	})

	t.Run("Missing name", func(t *testing.T) {
		handler, svc := setupChatSpaceHandler(t)
		req := asUser(httptest.NewRequest(http.MethodPost, "/api/chat-spaces", strings.NewReader(`{}`)), "u1")
		rr := httptest.NewRecorder()
		handler.Create(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Field 'Name' failed on the 'required' tag")
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Plan limit", func(t *testing.T) {
		handler, svc := setupChatSpaceHandler(t)
		svc.On("Create", mock.Anything, "u1", mock.Anything).Return(nil, apperrors.ErrQuotaExceeded).Once()

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/chat-spaces", strings.NewReader(`{"name":"Two"}`)), "u1")
		rr := httptest.NewRecorder()
		handler.Create(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		handler, _ := setupChatSpaceHandler(t)
		rr := httptest.NewRecorder()
		handler.Create(rr, httptest.NewRequest(http.MethodPost, "/api/chat-spaces", strings.NewReader(`{"name":"x"}`)))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestChatSpaceHandler_Update(t *testing.T) {
	handler, svc := setupChatSpaceHandler(t)
	svc.On("Update", mock.Anything, "u1", "cs1", mock.MatchedBy(func(in services.UpdateChatSpaceInput) bool {
		return in.Name == nil &&
			in.WidgetStatus != nil && *in.WidgetStatus == models.WidgetMaintenance &&
			in.WidgetConfig != nil && len(in.WidgetConfig.AllowedDomains) == 1
	})).Return(&models.ChatSpace{ID: "cs1", WidgetStatus: models.WidgetMaintenance}, nil).Once()

	body := `{"widget_status":"maintenance","widget_config":{"allowedDomains":["example.com"]}}`
	req := asUser(httptest.NewRequest(http.MethodPatch, "/api/chat-spaces/cs1", strings.NewReader(body)), "u1")
	rr := httptest.NewRecorder()
	handler.Update(rr, addChiURLParams(req, map[string]string{"id": "cs1"}))
	assert.Equal(t, http.StatusOK, rr.Code)

	t.Run("Unknown widget status", func(t *testing.T) {
		for _, status := range []string{"paused", "active", "inactive"} {
			req := asUser(httptest.NewRequest(http.MethodPatch, "/api/chat-spaces/cs1", strings.NewReader(`{"widget_status":"`+status+`"}`)), "u1")
			rr := httptest.NewRecorder()
			handler.Update(rr, addChiURLParams(req, map[string]string{"id": "cs1"}))
			assert.Equal(t, http.StatusBadRequest, rr.Code, status)
		}
	})

	t.Run("Go live", func(t *testing.T) {
		svc.On("Update", mock.Anything, "u1", "cs1", mock.MatchedBy(func(in services.UpdateChatSpaceInput) bool {
			return in.WidgetStatus != nil && *in.WidgetStatus == models.WidgetLive
		})).Return(&models.ChatSpace{ID: "cs1", WidgetStatus: models.WidgetLive}, nil).Once()

		req := asUser(httptest.NewRequest(http.MethodPatch, "/api/chat-spaces/cs1", strings.NewReader(`{"widget_status":"live"}`)), "u1")
		rr := httptest.NewRecorder()
		handler.Update(rr, addChiURLParams(req, map[string]string{"id": "cs1"}))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"widget_status":"live"`)
	})
}

func TestChatSpaceHandler_GetNotFound(t *testing.T) {
	handler, svc := setupChatSpaceHandler(t)
	svc.On("Get", mock.Anything, "u1", "other").Return(nil, apperrors.ErrNotFound).Once()

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/chat-spaces/other", nil), "u1")
	rr := httptest.NewRecorder()
	handler.Get(rr, addChiURLParams(req, map[string]string{"id": "other"}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestChatSpaceHandler_Process(t *testing.T) {
	t.Run("Synchronous", func(t *testing.T) {
		handler, svc := setupChatSpaceHandler(t)
		svc.On("Process", mock.Anything, "u1", "cs1").Return(&ingestion_engine.ProcessResult{
			ChatSpaceID: "cs1",
			Status:      models.ChatSpacePublished,
			Documents: []ingestion_engine.DocumentOutcome{
				{DocumentID: "d1", Status: models.DocumentCompleted, Chunks: 3},
				{DocumentID: "d2", Status: models.DocumentFailed, Error: "Data usage limit exceeded (5MB)"},
			},
		}, nil).Once()

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/chat-spaces/cs1/process", nil), "u1")
		rr := httptest.NewRecorder()
		handler.Process(rr, addChiURLParams(req, map[string]string{"id": "cs1"}))

		require.Equal(t, http.StatusOK, rr.Code)
		var res ingestion_engine.ProcessResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
		require.Len(t, res.Documents, 2)
		assert.Equal(t, "Data usage limit exceeded (5MB)", res.Documents[1].Error)
	})

	t.Run("Async", func(t *testing.T) {
		handler, svc := setupChatSpaceHandler(t)
		svc.On("ProcessAsync", mock.Anything, "u1", "cs1").Return(nil).Once()

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/chat-spaces/cs1/process?async=true", nil), "u1")
		rr := httptest.NewRecorder()
		handler.Process(rr, addChiURLParams(req, map[string]string{"id": "cs1"}))

		assert.Equal(t, http.StatusAccepted, rr.Code)
		assert.JSONEq(t, `{"status":"queued"}`, rr.Body.String())
	})

	t.Run("Already running", func(t *testing.T) {
		handler, svc := setupChatSpaceHandler(t)
		svc.On("Process", mock.Anything, "u1", "cs1").Return(nil, apperrors.ErrConflict).Once()

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/chat-spaces/cs1/process", nil), "u1")
		rr := httptest.NewRecorder()
		handler.Process(rr, addChiURLParams(req, map[string]string{"id": "cs1"}))
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("Cancel", func(t *testing.T) {
		handler, svc := setupChatSpaceHandler(t)
		svc.On("CancelProcessing", mock.Anything, "u1", "cs1").Return(true, nil).Once()

		req := asUser(httptest.NewRequest(http.MethodDelete, "/api/chat-spaces/cs1/process", nil), "u1")
		rr := httptest.NewRecorder()
		handler.CancelProcess(rr, addChiURLParams(req, map[string]string{"id": "cs1"}))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"cancelled":true}`, rr.Body.String())
	})
}

func TestChatSpaceHandler_DeleteAndClear(t *testing.T) {
	handler, svc := setupChatSpaceHandler(t)
	svc.On("Delete", mock.Anything, "u1", "cs1").Return(nil).Once()
	svc.On("ClearDocuments", mock.Anything, "u1", "cs2").Return(&models.ChatSpace{ID: "cs2", Status: models.ChatSpaceDraft}, nil).Once()

	req := asUser(httptest.NewRequest(http.MethodDelete, "/api/chat-spaces/cs1", nil), "u1")
	rr := httptest.NewRecorder()
	handler.Delete(rr, addChiURLParams(req, map[string]string{"id": "cs1"}))
	assert.Equal(t, http.StatusOK, rr.Code)

	req = asUser(httptest.NewRequest(http.MethodDelete, "/api/chat-spaces/cs2/documents", nil), "u1")
	rr = httptest.NewRecorder()
	handler.ClearDocuments(rr, addChiURLParams(req, map[string]string{"id": "cs2"}))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"draft"`)
}
