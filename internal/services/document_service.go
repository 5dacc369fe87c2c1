package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/config"
	"github.com/markdave123-py/chatspace/internal/core"
	"github.com/markdave123-py/chatspace/internal/core/ingestion_engine"
	"github.com/markdave123-py/chatspace/internal/models"
)

type DocumentConfig struct {
	MaxDocuments     int
	MaxUploadedFiles int
	MaxUploadBytes   int64
	Bucket           string
}

func NewDocumentConfig(cfg *config.Config) DocumentConfig {
	return DocumentConfig{
		MaxDocuments:     cfg.MaxDocuments,
		MaxUploadedFiles: cfg.MaxUploadedFiles,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		Bucket:           cfg.BucketName,
	}
}

type CreateDocumentInput struct {
	Type      models.DocumentType
	SourceURL string
	Title     string
	Content   string
}

type UploadInput struct {
	FileName    string
	ContentType string
	Data        []byte
}

type DocumentService struct {
	db        core.DbClient
	storage   core.ObjectClient
	extractor core.DocumentExtractor
	cfg       DocumentConfig
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewDocumentService wires document management. storage may be nil, in
// which case uploads keep only their parsed text.
func NewDocumentService(db core.DbClient, storage core.ObjectClient, extractor core.DocumentExtractor, cfg DocumentConfig, logger *zap.Logger) *DocumentService {
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = 10
	}
	if cfg.MaxUploadedFiles <= 0 {
		cfg.MaxUploadedFiles = 5
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &DocumentService{
		db:        db,
		storage:   storage,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Create adds a url or text document in pending state. Processing picks it up.
func (s *DocumentService) Create(ctx context.Context, userID, chatSpaceID string, in CreateDocumentInput) (*models.Document, error) {
	if _, err := ownedChatSpace(ctx, s.db, userID, chatSpaceID); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:          s.newID(),
		ChatSpaceID: chatSpaceID,
		Type:        in.Type,
		Title:       strings.TrimSpace(in.Title),
		Status:      models.DocumentPending,
	}

	switch in.Type {
	case models.DocumentURL:
		source, err := normalizeSourceURL(in.SourceURL)
		if err != nil {
			return nil, err
		}
		count, err := s.db.CountDocuments(ctx, chatSpaceID)
		if err != nil {
			return nil, fmt.Errorf("count documents: %w", err)
		}
		if count >= s.cfg.MaxDocuments {
			return nil, fmt.Errorf("%w: free plan limit reached, max %d documents per chat space", apperrors.ErrQuotaExceeded, s.cfg.MaxDocuments)
		}
		exists, err := s.db.DocumentExistsBySource(ctx, chatSpaceID, source)
		if err != nil {
			return nil, fmt.Errorf("check source: %w", err)
		}
		if exists {
			return nil, fmt.Errorf("%w: %s is already in this chat space", apperrors.ErrConflict, source)
		}
		doc.SourceURL = source

	case models.DocumentText:
		if strings.TrimSpace(in.Content) == "" {
			return nil, fmt.Errorf("%w: text content is required", apperrors.ErrValidation)
		}
		doc.Content = in.Content
		doc.FileSize = int64(len(in.Content))

	default:
		return nil, fmt.Errorf("%w: document type must be url or text, files go through upload", apperrors.ErrValidation)
	}

	now := s.now()
	doc.CreatedAt, doc.UpdatedAt = now, now
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

// Upload parses the file right away so a bad file is rejected at the door.
// The raw bytes go to object storage when it is configured.
func (s *DocumentService) Upload(ctx context.Context, userID, chatSpaceID string, in UploadInput) (*models.Document, error) {
	if _, err := ownedChatSpace(ctx, s.db, userID, chatSpaceID); err != nil {
		return nil, err
	}

	fileName := path.Base(strings.ReplaceAll(strings.TrimSpace(in.FileName), "\\", "/"))
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
	if !slices.Contains(ingestion_engine.SupportedExtensions, ext) {
		return nil, fmt.Errorf("%w: unsupported file type %q, expected one of %s",
			apperrors.ErrValidation, ext, strings.Join(ingestion_engine.SupportedExtensions, ", "))
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", apperrors.ErrValidation)
	}
	if int64(len(in.Data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", apperrors.ErrValidation, s.cfg.MaxUploadBytes)
	}

	count, err := s.db.CountDocumentsByType(ctx, chatSpaceID, models.FileDocumentTypes...)
	if err != nil {
		return nil, fmt.Errorf("count uploads: %w", err)
	}
	if count >= s.cfg.MaxUploadedFiles {
		return nil, fmt.Errorf("%w: free plan limit reached, max %d files per chat space", apperrors.ErrQuotaExceeded, s.cfg.MaxUploadedFiles)
	}

	text, err := s.extractor.ExtractText(ctx, in.Data, ext)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.logger.Info("upload rejected", zap.String("file", fileName), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to parse document, ensure it is a valid %s file", apperrors.ErrValidation, ext)
	}

	now := s.now()
	doc := &models.Document{
		ID:          s.newID(),
		ChatSpaceID: chatSpaceID,
		Type:        models.DocumentType(ext),
		Title:       strings.TrimSuffix(fileName, path.Ext(fileName)),
		Content:     text,
		FileName:    fileName,
		FileSize:    int64(len(in.Data)),
		Status:      models.DocumentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if s.storage != nil {
		key := s.objectKey(chatSpaceID, doc.ID, fileName)
		contentType := in.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if _, err := s.storage.UploadFile(ctx, s.cfg.Bucket, key, in.Data, contentType); err != nil {
			return nil, fmt.Errorf("store upload: %w", err)
		}
		doc.StorageKey = key
	}

	if err := s.db.CreateDocument(ctx, doc); err != nil {
		if doc.StorageKey != "" {
			s.deleteObject(ctx, doc.StorageKey)
		}
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, userID, chatSpaceID string) ([]models.Document, error) {
	if _, err := ownedChatSpace(ctx, s.db, userID, chatSpaceID); err != nil {
		return nil, err
	}
	docs, err := s.db.ListDocumentsByChatSpace(ctx, chatSpaceID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (s *DocumentService) Get(ctx context.Context, userID, id string) (*models.Document, error) {
	doc, err := s.db.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document not found", apperrors.ErrNotFound)
	}
	if _, err := ownedChatSpace(ctx, s.db, userID, doc.ChatSpaceID); err != nil {
		return nil, fmt.Errorf("%w: document not found", apperrors.ErrNotFound)
	}
	return doc, nil
}

// Delete removes the document with its chunks and stored file.
func (s *DocumentService) Delete(ctx context.Context, userID, id string) error {
	doc, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if doc.StorageKey != "" && s.storage != nil {
		s.deleteObject(ctx, doc.StorageKey)
	}
	return nil
}

func (s *DocumentService) deleteObject(ctx context.Context, key string) {
	if err := s.storage.DeleteFile(ctx, s.cfg.Bucket, key); err != nil {
		s.logger.Warn("delete stored file failed", zap.String("key", key), zap.Error(err))
	}
}

// objectKey creates a consistent S3 key layout.
func (s *DocumentService) objectKey(chatSpaceID, docID, filename string) string {
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join("chat-spaces", chatSpaceID, "documents", docID, filename)
}

func normalizeSourceURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: source_url must be an absolute http(s) URL", apperrors.ErrValidation)
	}
	u.Fragment = ""
	return u.String(), nil
}
