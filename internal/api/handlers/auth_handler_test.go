package handlers_test

import (
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

func TestAuthHandler_Signup(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMock  func(*mockAuthService)
		wantStatus int
		wantBody   string
	}{
		{
			name: "created",
			body: `{"first_name":"Ada","email":"ada@example.com","password":"correcthorse"}`,
			setupMock: func(m *mockAuthService) {
				m.On("Signup", mock.Anything, services.SignupInput{FirstName: "Ada", Email: "ada@example.com", Password: "correcthorse"}).
					Return(&services.AuthResult{Token: "tok", User: &models.User{ID: "u1", Email: "ada@example.com"}}, nil).Once()
			},
			wantStatus: http.StatusCreated,
			wantBody:   `"token":"tok"`,
		},
		{
			name:       "invalid email",
			body:       `{"email":"nope","password":"correcthorse"}`,
			setupMock:  func(*mockAuthService) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Field 'Email' failed on the 'email' tag",
		},
		{
			name:       "short password",
			body:       `{"email":"ada@example.com","password":"short"}`,
			setupMock:  func(*mockAuthService) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Field 'Password' failed on the 'min' tag",
		},
		{
			name: "email taken",
			body: `{"email":"ada@example.com","password":"correcthorse"}`,
			setupMock: func(m *mockAuthService) {
				m.On("Signup", mock.Anything, mock.Anything).Return(nil, apperrors.ErrConflict).Once()
			},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockAuthService{}
			tc.setupMock(svc)
			handler := handlers.NewAuthHandler(svc, zap.NewNop())

			rr := httptest.NewRecorder()
			handler.Signup(rr, httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(tc.body)))

			assert.Equal(t, tc.wantStatus, rr.Code)
			if tc.wantBody != "" {
				assert.Contains(t, rr.Body.String(), tc.wantBody)
			}
			assert.NotContains(t, rr.Body.String(), "password_hash")
			svc.AssertExpectations(t)
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := &mockAuthService{}
		svc.On("Login", mock.Anything, "ada@example.com", "correcthorse").
			Return(&services.AuthResult{Token: "tok", User: &models.User{ID: "u1"}}, nil).Once()
		handler := handlers.NewAuthHandler(svc, zap.NewNop())

		rr := httptest.NewRecorder()
		handler.Login(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"email":"ada@example.com","password":"correcthorse"}`)))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"token":"tok"`)
		svc.AssertExpectations(t)
	})

	t.Run("Bad credentials", func(t *testing.T) {
		svc := &mockAuthService{}
		svc.On("Login", mock.Anything, "ada@example.com", "wrongpass").Return(nil, apperrors.ErrUnauthorized).Once()
		handler := handlers.NewAuthHandler(svc, zap.NewNop())

		rr := httptest.NewRecorder()
		handler.Login(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"email":"ada@example.com","password":"wrongpass"}`)))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"error":"Invalid credentials."}`, rr.Body.String())
		svc.AssertExpectations(t)
	})
}
