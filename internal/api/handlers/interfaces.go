package handlers

import (
	"context"

	"github.com/markdave123-py/chatspace/internal/core/ingestion_engine"
	"github.com/markdave123-py/chatspace/internal/models"
	"github.com/markdave123-py/chatspace/internal/services"
)

type AuthService interface {
	Signup(ctx context.Context, in services.SignupInput) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
}

type ChatSpaceService interface {
	Create(ctx context.Context, userID string, in services.CreateChatSpaceInput) (*models.ChatSpace, error)
	List(ctx context.Context, userID string) ([]models.ChatSpace, error)
	Get(ctx context.Context, userID, id string) (*models.ChatSpace, error)
	Update(ctx context.Context, userID, id string, in services.UpdateChatSpaceInput) (*models.ChatSpace, error)
	Delete(ctx context.Context, userID, id string) error
	ClearDocuments(ctx context.Context, userID, id string) (*models.ChatSpace, error)
	Process(ctx context.Context, userID, id string) (*ingestion_engine.ProcessResult, error)
	ProcessAsync(ctx context.Context, userID, id string) error
	CancelProcessing(ctx context.Context, userID, id string) (bool, error)
}

type DocumentService interface {
	Create(ctx context.Context, userID, chatSpaceID string, in services.CreateDocumentInput) (*models.Document, error)
	Upload(ctx context.Context, userID, chatSpaceID string, in services.UploadInput) (*models.Document, error)
	List(ctx context.Context, userID, chatSpaceID string) ([]models.Document, error)
	Get(ctx context.Context, userID, id string) (*models.Document, error)
	Delete(ctx context.Context, userID, id string) error
}

type WidgetService interface {
	Answer(ctx context.Context, req services.ChatRequest) (*services.ChatResponse, error)
	WidgetConfig(ctx context.Context, slug, origin, referer string) (*services.WidgetInfo, error)
}

type SettingsService interface {
	Get(ctx context.Context, userID string) (*models.Settings, error)
	Update(ctx context.Context, userID string, in services.UpdateSettingsInput) (*models.Settings, error)
}

var (
	_ AuthService      = (*services.UserService)(nil)
	_ ChatSpaceService = (*services.ChatSpaceService)(nil)
	_ DocumentService  = (*services.DocumentService)(nil)
	_ WidgetService    = (*services.ChatService)(nil)
	_ SettingsService  = (*services.SettingsService)(nil)
)
