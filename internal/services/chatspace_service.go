package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/core"
	"github.com/markdave123-py/chatspace/internal/core/ingestion_engine"
	"github.com/markdave123-py/chatspace/internal/models"
)

// IngestionRunner is the slice of the ingestion worker pool the API drives.
type IngestionRunner interface {
	Run(ctx context.Context, chatSpaceID string) (*ingestion_engine.ProcessResult, error)
	Enqueue(chatSpaceID string) error
	Cancel(chatSpaceID string) bool
	IsRunning(chatSpaceID string) bool
}

type CreateChatSpaceInput struct {
	Name        string
	Description string
}

// UpdateChatSpaceInput holds the owner-editable fields. Nil fields are left as they are.
type UpdateChatSpaceInput struct {
	Name         *string
	Description  *string
	WidgetStatus *models.WidgetStatus
	AIConfig     *models.AIConfig
	WidgetConfig *models.WidgetConfig
}

type ChatSpaceService struct {
	db         core.DbClient
	obj        core.ObjectClient
	bucket     string
	ingestor   IngestionRunner
	maxPerUser int
	logger     *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewChatSpaceService wires owner-facing chat space management. obj may be
// nil when uploads are not kept in object storage.
func NewChatSpaceService(db core.DbClient, obj core.ObjectClient, bucket string, ingestor IngestionRunner, maxPerUser int, logger *zap.Logger) *ChatSpaceService {
	if maxPerUser <= 0 {
		maxPerUser = 1
	}
	return &ChatSpaceService{
		db:         db,
		obj:        obj,
		bucket:     bucket,
		ingestor:   ingestor,
		maxPerUser: maxPerUser,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

func (s *ChatSpaceService) Create(ctx context.Context, userID string, in CreateChatSpaceInput) (*models.ChatSpace, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}

	count, err := s.db.CountChatSpacesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count chat spaces: %w", err)
	}
	if count >= s.maxPerUser {
		return nil, fmt.Errorf("%w: free plan limit reached, you can only create %d chat space(s)", apperrors.ErrQuotaExceeded, s.maxPerUser)
	}

	now := s.now()
	cs := &models.ChatSpace{
		ID:           s.newID(),
		UserID:       userID,
		Name:         name,
		Description:  in.Description,
		EndpointSlug: uuid.NewString(),
		Status:       models.ChatSpaceDraft,
		WidgetStatus: models.WidgetTesting,
		WidgetConfig: models.WidgetConfig{AllowedDomains: []string{}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.CreateChatSpace(ctx, cs); err != nil {
		return nil, fmt.Errorf("create chat space: %w", err)
	}
	s.logger.Info("chat space created", zap.String("chat_space_id", cs.ID), zap.String("user_id", userID))
	return cs, nil
}

func (s *ChatSpaceService) List(ctx context.Context, userID string) ([]models.ChatSpace, error) {
	spaces, err := s.db.ListChatSpacesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list chat spaces: %w", err)
	}
	return spaces, nil
}

// Get returns the chat space only to its owner. Other users see ErrNotFound.
func (s *ChatSpaceService) Get(ctx context.Context, userID, id string) (*models.ChatSpace, error) {
	return ownedChatSpace(ctx, s.db, userID, id)
}

func (s *ChatSpaceService) Update(ctx context.Context, userID, id string, in UpdateChatSpaceInput) (*models.ChatSpace, error) {
	cs, err := ownedChatSpace(ctx, s.db, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", apperrors.ErrValidation)
		}
		cs.Name = name
	}
	if in.Description != nil {
		cs.Description = *in.Description
	}
	if in.WidgetStatus != nil {
		switch *in.WidgetStatus {
		case models.WidgetTesting, models.WidgetLive, models.WidgetMaintenance:
			cs.WidgetStatus = *in.WidgetStatus
		default:
			return nil, fmt.Errorf("%w: unknown widget status %q", apperrors.ErrValidation, *in.WidgetStatus)
		}
	}
	if in.AIConfig != nil {
		cs.AIConfig = *in.AIConfig
	}
	if in.WidgetConfig != nil {
		wc := *in.WidgetConfig
		wc.AllowedDomains = normalizeDomains(wc.AllowedDomains)
		cs.WidgetConfig = wc
	}

	if err := s.db.UpdateChatSpace(ctx, cs); err != nil {
		return nil, fmt.Errorf("update chat space: %w", err)
	}
	return cs, nil
}

// Delete stops any running ingestion and removes the chat space with all
// of its documents, chunks, conversations and events.
func (s *ChatSpaceService) Delete(ctx context.Context, userID, id string) error {
	if _, err := ownedChatSpace(ctx, s.db, userID, id); err != nil {
		return err
	}
	if s.ingestor != nil && s.ingestor.Cancel(id) {
		s.logger.Info("ingestion cancelled for deleted chat space", zap.String("chat_space_id", id))
	}

	keys, err := s.storedKeys(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteChatSpace(ctx, id); err != nil {
		return fmt.Errorf("delete chat space: %w", err)
	}
	s.deleteObjects(ctx, keys)
	return nil
}

// ClearDocuments drops every document and chunk, resets usage and puts the
// chat space back in draft. Refused while ingestion is running.
func (s *ChatSpaceService) ClearDocuments(ctx context.Context, userID, id string) (*models.ChatSpace, error) {
	if _, err := ownedChatSpace(ctx, s.db, userID, id); err != nil {
		return nil, err
	}
	if s.ingestor != nil && s.ingestor.IsRunning(id) {
		return nil, fmt.Errorf("%w: processing is running for this chat space", apperrors.ErrConflict)
	}

	keys, err := s.storedKeys(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.ClearChatSpaceDocuments(ctx, id); err != nil {
		return nil, fmt.Errorf("clear documents: %w", err)
	}
	s.deleteObjects(ctx, keys)
	return ownedChatSpace(ctx, s.db, userID, id)
}

// Process runs ingestion synchronously and returns the per-document summary.
func (s *ChatSpaceService) Process(ctx context.Context, userID, id string) (*ingestion_engine.ProcessResult, error) {
	if _, err := ownedChatSpace(ctx, s.db, userID, id); err != nil {
		return nil, err
	}
	return s.ingestor.Run(ctx, id)
}

// ProcessAsync queues ingestion on the worker pool.
func (s *ChatSpaceService) ProcessAsync(ctx context.Context, userID, id string) error {
	if _, err := ownedChatSpace(ctx, s.db, userID, id); err != nil {
		return err
	}
	return s.ingestor.Enqueue(id)
}

// CancelProcessing reports whether a queued or running ingestion was stopped.
func (s *ChatSpaceService) CancelProcessing(ctx context.Context, userID, id string) (bool, error) {
	if _, err := ownedChatSpace(ctx, s.db, userID, id); err != nil {
		return false, err
	}
	return s.ingestor.Cancel(id), nil
}

func (s *ChatSpaceService) storedKeys(ctx context.Context, chatSpaceID string) ([]string, error) {
	if s.obj == nil {
		return nil, nil
	}
	docs, err := s.db.ListDocumentsByChatSpace(ctx, chatSpaceID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	var keys []string
	for _, d := range docs {
		if d.StorageKey != "" {
			keys = append(keys, d.StorageKey)
		}
	}
	return keys, nil
}

// deleteObjects is best effort; rows are already gone.
func (s *ChatSpaceService) deleteObjects(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.obj.DeleteFile(ctx, s.bucket, key); err != nil {
			s.logger.Warn("delete stored file failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func ownedChatSpace(ctx context.Context, db core.DbClient, userID, id string) (*models.ChatSpace, error) {
	cs, err := db.GetChatSpace(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load chat space: %w", err)
	}
	if cs == nil || cs.UserID != userID {
		return nil, fmt.Errorf("%w: chat space not found", apperrors.ErrNotFound)
	}
	return cs, nil
}

// normalizeDomains trims entries, drops blanks and strips a trailing slash
// so "https://example.com/" matches an Origin of https://example.com.
func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.TrimSuffix(strings.TrimSpace(d), "/")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}
