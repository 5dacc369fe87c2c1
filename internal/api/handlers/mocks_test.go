package handlers_test

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"

	middleware "github.com/markdave123-py/chatspace/internal/api/middlewares"
	"github.com/markdave123-py/chatspace/internal/core/ingestion_engine"
	"github.com/markdave123-py/chatspace/internal/models"
	"github.com/markdave123-py/chatspace/internal/services"
)

// addChiURLParams injects route parameters the way the chi router does.
func addChiURLParams(req *http.Request, params map[string]string) *http.Request {
	chiCtx := chi.NewRouteContext()
	for key, value := range params {
		chiCtx.URLParams.Add(key, value)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, chiCtx))
}

func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) Signup(ctx context.Context, in services.SignupInput) (*services.AuthResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*services.AuthResult)
	return res, args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*services.AuthResult, error) {
	args := m.Called(ctx, email, password)
	res, _ := args.Get(0).(*services.AuthResult)
	return res, args.Error(1)
}

type mockChatSpaceService struct{ mock.Mock }

func (m *mockChatSpaceService) Create(ctx context.Context, userID string, in services.CreateChatSpaceInput) (*models.ChatSpace, error) {
	args := m.Called(ctx, userID, in)
	cs, _ := args.Get(0).(*models.ChatSpace)
	return cs, args.Error(1)
}

func (m *mockChatSpaceService) List(ctx context.Context, userID string) ([]models.ChatSpace, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]models.ChatSpace)
	return list, args.Error(1)
}

func (m *mockChatSpaceService) Get(ctx context.Context, userID, id string) (*models.ChatSpace, error) {
	args := m.Called(ctx, userID, id)
	cs, _ := args.Get(0).(*models.ChatSpace)
	return cs, args.Error(1)
}

func (m *mockChatSpaceService) Update(ctx context.Context, userID, id string, in services.UpdateChatSpaceInput) (*models.ChatSpace, error) {
	args := m.Called(ctx, userID, id, in)
	cs, _ := args.Get(0).(*models.ChatSpace)
	return cs, args.Error(1)
}

func (m *mockChatSpaceService) Delete(ctx context.Context, userID, id string) error {
	return m.Called(ctx, userID, id).Error(0)
}

func (m *mockChatSpaceService) ClearDocuments(ctx context.Context, userID, id string) (*models.ChatSpace, error) {
	args := m.Called(ctx, userID, id)
	cs, _ := args.Get(0).(*models.ChatSpace)
	return cs, args.Error(1)
}

func (m *mockChatSpaceService) Process(ctx context.Context, userID, id string) (*ingestion_engine.ProcessResult, error) {
	args := m.Called(ctx, userID, id)
	res, _ := args.Get(0).(*ingestion_engine.ProcessResult)
	return res, args.Error(1)
}

func (m *mockChatSpaceService) ProcessAsync(ctx context.Context, userID, id string) error {
	return m.Called(ctx, userID, id).Error(0)
}

func (m *mockChatSpaceService) CancelProcessing(ctx context.Context, userID, id string) (bool, error) {
	args := m.Called(ctx, userID, id)
	return args.Bool(0), args.Error(1)
}

type mockDocumentService struct{ mock.Mock }

func (m *mockDocumentService) Create(ctx context.Context, userID, chatSpaceID string, in services.CreateDocumentInput) (*models.Document, error) {
	args := m.Called(ctx, userID, chatSpaceID, in)
	doc, _ := args.Get(0).(*models.Document)
	return doc, args.Error(1)
}

func (m *mockDocumentService) Upload(ctx context.Context, userID, chatSpaceID string, in services.UploadInput) (*models.Document, error) {
	args := m.Called(ctx, userID, chatSpaceID, in)
	doc, _ := args.Get(0).(*models.Document)
	return doc, args.Error(1)
}

func (m *mockDocumentService) List(ctx context.Context, userID, chatSpaceID string) ([]models.Document, error) {
	args := m.Called(ctx, userID, chatSpaceID)
	docs, _ := args.Get(0).([]models.Document)
	return docs, args.Error(1)
}

func (m *mockDocumentService) Get(ctx context.Context, userID, id string) (*models.Document, error) {
	args := m.Called(ctx, userID, id)
	doc, _ := args.Get(0).(*models.Document)
	return doc, args.Error(1)
}

func (m *mockDocumentService) Delete(ctx context.Context, userID, id string) error {
	return m.Called(ctx, userID, id).Error(0)
}

type mockWidgetService struct{ mock.Mock }

func (m *mockWidgetService) Answer(ctx context.Context, req services.ChatRequest) (*services.ChatResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*services.ChatResponse)
	return resp, args.Error(1)
}

func (m *mockWidgetService) WidgetConfig(ctx context.Context, slug, origin, referer string) (*services.WidgetInfo, error) {
	args := m.Called(ctx, slug, origin, referer)
	info, _ := args.Get(0).(*services.WidgetInfo)
	return info, args.Error(1)
}

type mockSettingsService struct{ mock.Mock }

func (m *mockSettingsService) Get(ctx context.Context, userID string) (*models.Settings, error) {
	args := m.Called(ctx, userID)
	st, _ := args.Get(0).(*models.Settings)
	return st, args.Error(1)
}

func (m *mockSettingsService) Update(ctx context.Context, userID string, in services.UpdateSettingsInput) (*models.Settings, error) {
	args := m.Called(ctx, userID, in)
	st, _ := args.Get(0).(*models.Settings)
	return st, args.Error(1)
}
