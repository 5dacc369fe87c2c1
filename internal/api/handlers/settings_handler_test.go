package handlers_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/markdave123-py/chatspace/internal/api/handlers"
	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/models"
	"github.com/markdave123-py/chatspace/internal/services"
)

func TestSettingsHandler(t *testing.T) {
	svc := &mockSettingsService{}
	t.Cleanup(func() { svc.AssertExpectations(t) })
	handler := handlers.NewSettingsHandler(svc, zap.NewNop())

	t.Run("Get", func(t *testing.T) {
		svc.On("Get", mock.Anything, "u1").Return(&models.Settings{UserID: "u1", ResponseTone: "professional"}, nil).Once()

		rr := httptest.NewRecorder()
		handler.Get(rr, asUser(httptest.NewRequest(http.MethodGet, "/api/settings", nil), "u1"))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"responseTone":"professional"`)
	})

	t.Run("Update passes only provided fields", func(t *testing.T) {
		svc.On("Update", mock.Anything, "u1", mock.MatchedBy(func(in services.UpdateSettingsInput) bool {
			return in.ResponseTone != nil && *in.ResponseTone == "friendly" &&
				in.KBConnectorURL == nil && in.KBConnectorActive == nil
		})).Return(&models.Settings{UserID: "u1", ResponseTone: "friendly"}, nil).Once()

		rr := httptest.NewRecorder()
		req := asUser(httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(`{"responseTone":"friendly"}`)), "u1")
		handler.Update(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Update rejected by service", func(t *testing.T) {
		svc.On("Update", mock.Anything, "u1", mock.Anything).
			Return(nil, fmt.Errorf("%w: connector url is required when the connector is active", apperrors.ErrValidation)).Once()

		rr := httptest.NewRecorder()
		req := asUser(httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(`{"kbConnectorActive":true}`)), "u1")
		handler.Update(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "connector url is required")
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.Get(rr, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
