package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/config"
	"github.com/markdave123-py/chatspace/internal/core"
	"github.com/markdave123-py/chatspace/internal/models"
)

type ChatConfig struct {
	MaxMessageLength  int
	SearchLimit       int
	CompletionTimeout time.Duration
}

func NewChatConfig(cfg *config.Config) ChatConfig {
	return ChatConfig{
		MaxMessageLength:  cfg.MaxMessageLength,
		SearchLimit:       cfg.SearchLimit,
		CompletionTimeout: cfg.CompletionTimeout,
	}
}

func (c ChatConfig) withDefaults() ChatConfig {
	if c.MaxMessageLength <= 0 {
		c.MaxMessageLength = 200
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 5
	}
	if c.CompletionTimeout <= 0 {
		c.CompletionTimeout = 60 * time.Second
	}
	return c
}

// ChatRequest is one visitor turn sent through a public widget.
type ChatRequest struct {
	Slug           string
	Message        string
	ConversationID string
	Origin         string
	Referer        string
	EndUserID      string
}

type ChatReply struct {
	Role      models.MessageRole `json:"role"`
	Content   string             `json:"content"`
	CreatedAt time.Time          `json:"createdAt"`
}

type ChatResponse struct {
	ConversationID string    `json:"conversationId"`
	Message        ChatReply `json:"message"`
}

// WidgetInfo is the public part of a chat space the widget loads at start.
type WidgetInfo struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Status       models.WidgetStatus `json:"status"`
	WidgetConfig models.WidgetConfig `json:"widget_config"`
}

// ChatService answers widget messages from a chat space's knowledge base.
type ChatService struct {
	db        core.DbClient
	retriever core.Retriever
	connector core.KnowledgeConnector
	llm       core.LLMProvider
	cfg       ChatConfig
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewChatService wires the answering pipeline. connector may be nil, which
// disables the external knowledge base fallback.
func NewChatService(
	db core.DbClient,
	retriever core.Retriever,
	connector core.KnowledgeConnector,
	llm core.LLMProvider,
	cfg ChatConfig,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		db:        db,
		retriever: retriever,
		connector: connector,
		llm:       llm,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Answer runs one turn: access and input checks first, then retrieval,
// prompt assembly and the model call. Both messages are persisted.
func (s *ChatService) Answer(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	cs, err := s.resolve(ctx, req.Slug, req.Origin, req.Referer)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", apperrors.ErrValidation)
	}
	if utf8.RuneCountInString(req.Message) > s.cfg.MaxMessageLength {
		return nil, fmt.Errorf("%w: message too long (max %d chars)", apperrors.ErrValidation, s.cfg.MaxMessageLength)
	}
	if cs.WidgetStatus == models.WidgetMaintenance {
		return nil, fmt.Errorf("%w: chat is currently under maintenance", apperrors.ErrServiceUnavailable)
	}

	conv, err := s.conversation(ctx, cs, req)
	if err != nil {
		return nil, err
	}

	if err := s.db.CreateMessage(ctx, &models.Message{
		ID:             s.newID(),
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        req.Message,
		CreatedAt:      s.now(),
	}); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}

	hits, err := s.retriever.Search(ctx, cs.ID, req.Message, s.cfg.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	settings, err := s.db.GetSettings(ctx, cs.UserID)
	if err != nil {
		s.logger.Warn("load tenant settings failed", zap.String("chat_space_id", cs.ID), zap.Error(err))
		settings = nil
	}

	contextText := joinChunks(hits)
	if len(hits) == 0 {
		if external := s.queryConnector(ctx, cs, settings, req.Message); external != "" {
			contextText = externalKBHeader + "\n" + external
		}
	}

	prompt := NewPromptBuilder().
		Base(cs.AIConfig.SystemPrompt).
		Tone(responseTone(cs, settings)).
		TenantSafety(cs.AIConfig.SafetyPrompt).
		Context(contextText).
		Build()

	llmCtx, cancel := context.WithTimeout(ctx, s.cfg.CompletionTimeout)
	defer cancel()
	answer, err := s.llm.Complete(llmCtx, []core.ChatMessage{
		{Role: string(models.RoleSystem), Content: prompt},
		{Role: string(models.RoleUser), Content: req.Message},
	}, core.CompletionOptions{Model: cs.AIConfig.ModelID, APIKey: cs.AIConfig.APIKey})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrCompletion, err)
	}

	chunkIDs := make([]string, 0, len(hits))
	for _, h := range hits {
		chunkIDs = append(chunkIDs, h.Chunk.ID)
	}
	reply := &models.Message{
		ID:             s.newID(),
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        answer,
		ContextChunks:  chunkIDs,
		CreatedAt:      s.now(),
	}
	if err := s.db.CreateMessage(ctx, reply); err != nil {
		return nil, fmt.Errorf("store assistant message: %w", err)
	}

	s.logEvent(ctx, cs.ID, models.EventMessageSent, conv.EndUserID, map[string]any{
		"role":     string(models.RoleUser),
		"length":   utf8.RuneCountInString(req.Message),
		"question": req.Message,
	})
	s.logEvent(ctx, cs.ID, models.EventMessageSent, conv.EndUserID, map[string]any{
		"role":   string(models.RoleAssistant),
		"length": utf8.RuneCountInString(answer),
	})

	return &ChatResponse{
		ConversationID: conv.ID,
		Message: ChatReply{
			Role:      reply.Role,
			Content:   reply.Content,
			CreatedAt: reply.CreatedAt,
		},
	}, nil
}

// WidgetConfig returns what the embed script needs to render, subject to
// the same domain restriction as Answer.
func (s *ChatService) WidgetConfig(ctx context.Context, slug, origin, referer string) (*WidgetInfo, error) {
	cs, err := s.resolve(ctx, slug, origin, referer)
	if err != nil {
		return nil, err
	}
	status := cs.WidgetStatus
	if status == "" {
		status = models.WidgetTesting
	}
	wc := cs.WidgetConfig
	if wc.AllowedDomains == nil {
		wc.AllowedDomains = []string{}
	}
	return &WidgetInfo{ID: cs.ID, Name: cs.Name, Status: status, WidgetConfig: wc}, nil
}

func (s *ChatService) resolve(ctx context.Context, slug, origin, referer string) (*models.ChatSpace, error) {
	cs, err := s.db.GetChatSpaceBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("load chat space: %w", err)
	}
	if cs == nil {
		return nil, fmt.Errorf("%w: chat space not found", apperrors.ErrNotFound)
	}
	if !IsDomainAllowed(cs.WidgetConfig.AllowedDomains, origin, referer) {
		return nil, fmt.Errorf("%w: domain not authorized", apperrors.ErrForbidden)
	}
	return cs, nil
}

// conversation continues the requested conversation when it belongs to
// this chat space and starts a new one otherwise.
func (s *ChatService) conversation(ctx context.Context, cs *models.ChatSpace, req ChatRequest) (*models.Conversation, error) {
	if req.ConversationID != "" {
		conv, err := s.db.GetConversation(ctx, req.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("load conversation: %w", err)
		}
		if conv != nil && conv.ChatSpaceID == cs.ID {
			return conv, nil
		}
	}

	now := s.now()
	conv := &models.Conversation{
		ID:          s.newID(),
		ChatSpaceID: cs.ID,
		EndUserID:   req.EndUserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	s.logEvent(ctx, cs.ID, models.EventChatStart, conv.EndUserID, nil)
	return conv, nil
}

func (s *ChatService) queryConnector(ctx context.Context, cs *models.ChatSpace, settings *models.Settings, query string) string {
	if s.connector == nil || settings == nil || !settings.KBConnectorActive || settings.KBConnectorURL == "" {
		return ""
	}
	data, err := s.connector.Query(ctx, settings.KBConnectorURL, settings.KBConnectorAPIKey, query)
	if err != nil {
		s.logger.Warn("knowledge base connector failed",
			zap.String("chat_space_id", cs.ID),
			zap.String("url", settings.KBConnectorURL),
			zap.Error(err))
		return ""
	}
	return data
}

// logEvent never fails the caller.
func (s *ChatService) logEvent(ctx context.Context, chatSpaceID, eventType, endUserID string, metadata map[string]any) {
	ev := &models.AnalyticsEvent{
		ID:          s.newID(),
		ChatSpaceID: chatSpaceID,
		EventType:   eventType,
		EndUserID:   endUserID,
		Metadata:    metadata,
		CreatedAt:   s.now(),
	}
	if err := s.db.LogEvent(ctx, ev); err != nil {
		s.logger.Warn("analytics event dropped",
			zap.String("chat_space_id", chatSpaceID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

func joinChunks(hits []core.ScoredChunk) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, h.Chunk.Content)
	}
	return strings.Join(parts, "\n\n")
}

func responseTone(cs *models.ChatSpace, settings *models.Settings) string {
	if cs.AIConfig.ResponseTone != "" {
		return cs.AIConfig.ResponseTone
	}
	if settings != nil && settings.ResponseTone != "" {
		return settings.ResponseTone
	}
	return DefaultResponseTone
}
