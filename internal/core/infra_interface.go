package core

import (
	"context"
	"io"
	"time"

	"github.com/markdave123-py/chatspace/internal/models"
)

// DbClient defines all persistence operations the services need.
// Lookups return (nil, nil) when the row does not exist.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateChatSpace(ctx context.Context, cs *models.ChatSpace) error
	GetChatSpace(ctx context.Context, id string) (*models.ChatSpace, error)
	GetChatSpaceBySlug(ctx context.Context, slug string) (*models.ChatSpace, error)
	ListChatSpacesByUser(ctx context.Context, userID string) ([]models.ChatSpace, error)
	CountChatSpacesByUser(ctx context.Context, userID string) (int, error)
	// UpdateChatSpace writes the owner-editable fields: name, description,
	// widget status, ai_config and widget_config.
	UpdateChatSpace(ctx context.Context, cs *models.ChatSpace) error
	SetChatSpaceStatus(ctx context.Context, id string, status models.ChatSpaceStatus) error
	MarkChatSpacePublished(ctx context.Context, id string, at time.Time) error
	// IncrementDataUsage atomically adds delta bytes to the chat space's usage.
	IncrementDataUsage(ctx context.Context, id string, delta int64) error
	// ClearChatSpaceDocuments removes every chunk and document, resets usage
	// to 0 and puts the chat space back in draft.
	ClearChatSpaceDocuments(ctx context.Context, id string) error
	DeleteChatSpace(ctx context.Context, id string) error

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByChatSpace(ctx context.Context, chatSpaceID string) ([]models.Document, error)
	// ListDocumentsByStatus returns matching documents oldest first.
	ListDocumentsByStatus(ctx context.Context, chatSpaceID string, statuses ...models.DocumentStatus) ([]models.Document, error)
	CountDocuments(ctx context.Context, chatSpaceID string) (int, error)
	CountDocumentsByType(ctx context.Context, chatSpaceID string, types ...models.DocumentType) (int, error)
	DocumentExistsBySource(ctx context.Context, chatSpaceID, sourceURL string) (bool, error)
	UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus, errMsg string) error
	// CompleteDocument marks the document completed and adds bytes to its
	// chat space's usage in one step. Neither change is applied on error.
	CompleteDocument(ctx context.Context, documentID, chatSpaceID string, bytes int64) error
	UpdateDocumentContent(ctx context.Context, id, title, content string) error
	// RequeueStaleDocuments moves documents stuck in processing back to pending.
	RequeueStaleDocuments(ctx context.Context, chatSpaceID string) (int, error)
	DeleteDocument(ctx context.Context, id string) error

	// InsertDocumentChunks inserts all chunks or none.
	InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error
	ListChunksByChatSpace(ctx context.Context, chatSpaceID string) ([]models.DocumentChunk, error)
	DeleteChunksByDocument(ctx context.Context, documentID string) error

	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)

	GetSettings(ctx context.Context, userID string) (*models.Settings, error)
	UpsertSettings(ctx context.Context, s *models.Settings) error

	LogEvent(ctx context.Context, ev *models.AnalyticsEvent) error

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
