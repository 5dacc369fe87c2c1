package models

import (
	"time"
)

type ChatSpaceStatus string

const (
	ChatSpaceDraft      ChatSpaceStatus = "draft"
	ChatSpaceProcessing ChatSpaceStatus = "processing"
	ChatSpacePublished  ChatSpaceStatus = "published"
)

type WidgetStatus string

const (
	WidgetTesting     WidgetStatus = "testing"
	WidgetLive        WidgetStatus = "live"
	WidgetMaintenance WidgetStatus = "maintenance"
)

type DocumentType string

const (
	DocumentURL  DocumentType = "url"
	DocumentText DocumentType = "text"
	DocumentPDF  DocumentType = "pdf"
	DocumentDOCX DocumentType = "docx"
	DocumentHTML DocumentType = "html"
	DocumentMD   DocumentType = "md"
	DocumentTXT  DocumentType = "txt"
)

// FileDocumentTypes are the types created by uploads.
var FileDocumentTypes = []DocumentType{DocumentPDF, DocumentDOCX, DocumentHTML, DocumentMD, DocumentTXT}

// IsFile reports whether the document came from an upload.
func (t DocumentType) IsFile() bool {
	switch t {
	case DocumentPDF, DocumentDOCX, DocumentHTML, DocumentMD, DocumentTXT:
		return true
	}
	return false
}

type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentCompleted  DocumentStatus = "completed"
	DocumentFailed     DocumentStatus = "failed"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// User represents an authenticated owner of chat spaces.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AIConfig is the per-chat-space model configuration. Stored as JSON.
type AIConfig struct {
	SystemPrompt string `json:"systemPrompt,omitempty"`
	SafetyPrompt string `json:"safetyPrompt,omitempty"`
	ResponseTone string `json:"responseTone,omitempty"`
	ModelID      string `json:"openRouterModelId,omitempty"`
	APIKey       string `json:"openRouterApiKey,omitempty"`
}

// WidgetConfig is the embeddable widget's appearance and access policy. Stored as JSON.
type WidgetConfig struct {
	AllowedDomains []string `json:"allowedDomains"`
	Title          string   `json:"title,omitempty"`
	WelcomeMessage string   `json:"welcomeMessage,omitempty"`
	PrimaryColor   string   `json:"primaryColor,omitempty"`
	Position       string   `json:"position,omitempty"`
}

// ChatSpace is a tenant-owned knowledge base plus its chatbot.
type ChatSpace struct {
	ID              string          `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"user_id"`
	Name            string          `db:"name" json:"name"`
	Description     string          `db:"description" json:"description"`
	EndpointSlug    string          `db:"endpoint_slug" json:"endpoint_slug"`
	Status          ChatSpaceStatus `db:"status" json:"status"`
	WidgetStatus    WidgetStatus    `db:"widget_status" json:"widget_status"`
	AIConfig        AIConfig        `db:"ai_config" json:"ai_config"`
	WidgetConfig    WidgetConfig    `db:"widget_config" json:"widget_config"`
	DataUsageBytes  int64           `db:"data_usage_bytes" json:"data_usage_bytes"`
	LastProcessedAt *time.Time      `db:"last_processed_at" json:"last_processed_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Document is one ingestible source attached to a chat space.
type Document struct {
	ID                    string         `db:"id" json:"id"`
	ChatSpaceID           string         `db:"chat_space_id" json:"chat_space_id"`
	Type                  DocumentType   `db:"type" json:"type"`
	SourceURL             string         `db:"source_url" json:"source_url,omitempty"`
	Title                 string         `db:"title" json:"title,omitempty"`
	Content               string         `db:"content" json:"content,omitempty"`
	FileName              string         `db:"file_name" json:"file_name,omitempty"`
	FileSize              int64          `db:"file_size" json:"file_size,omitempty"`
	StorageKey            string         `db:"storage_key" json:"storage_key,omitempty"`
	Status                DocumentStatus `db:"status" json:"status"`
	ErrorMessage          string         `db:"error_message" json:"error_message,omitempty"`
	ProcessingStartedAt   *time.Time     `db:"processing_started_at" json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time     `db:"processing_completed_at" json:"processing_completed_at,omitempty"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at" json:"updated_at"`
}

// DocumentChunk represents one embedded slice of a document.
type DocumentChunk struct {
	ID          string    `db:"id" json:"id"`
	DocumentID  string    `db:"document_id" json:"document_id"`
	ChatSpaceID string    `db:"chat_space_id" json:"chat_space_id"`
	Content     string    `db:"content" json:"content"`
	Embedding   []float32 `db:"embedding" json:"-"` // pgvector column
	ChunkIndex  int       `db:"chunk_index" json:"chunk_index"`
	TokenCount  int       `db:"token_count" json:"token_count"`
	Source      string    `db:"source" json:"source,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Conversation groups the messages of one widget visitor.
type Conversation struct {
	ID          string    `db:"id" json:"id"`
	ChatSpaceID string    `db:"chat_space_id" json:"chat_space_id"`
	EndUserID   string    `db:"end_user_id" json:"end_user_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Message is a single turn. Assistant messages record the chunk ids they were grounded on.
type Message struct {
	ID             string      `db:"id" json:"id"`
	ConversationID string      `db:"conversation_id" json:"conversation_id"`
	Role           MessageRole `db:"role" json:"role"`
	Content        string      `db:"content" json:"content"`
	ContextChunks  []string    `db:"context_chunks" json:"context_chunks,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// Settings are tenant-wide defaults owned by a user.
type Settings struct {
	UserID            string    `db:"user_id" json:"user_id"`
	ResponseTone      string    `db:"response_tone" json:"responseTone"`
	KBConnectorURL    string    `db:"kb_connector_url" json:"kbConnectorUrl"`
	KBConnectorAPIKey string    `db:"kb_connector_api_key" json:"kbConnectorApiKey,omitempty"`
	KBConnectorActive bool      `db:"kb_connector_active" json:"kbConnectorActive"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

const (
	EventChatStart   = "chat_start"
	EventMessageSent = "message_sent"
)

// AnalyticsEvent is a best-effort usage record.
type AnalyticsEvent struct {
	ID          string         `db:"id" json:"id"`
	ChatSpaceID string         `db:"chat_space_id" json:"chat_space_id"`
	EventType   string         `db:"event_type" json:"event_type"`
	EndUserID   string         `db:"end_user_id" json:"end_user_id,omitempty"`
	Metadata    map[string]any `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}
