// Package memstore is an in-process DbClient for local runs without
// Postgres and for service tests.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/core"
	"github.com/markdave123-py/chatspace/internal/models"
)

// Store keeps every table in insertion order. All reads return copies.
type Store struct {
	mu sync.RWMutex

	users         []models.User
	chatSpaces    []models.ChatSpace
	documents     []models.Document
	chunks        []models.DocumentChunk
	conversations []models.Conversation
	messages      []models.Message
	settings      map[string]models.Settings
	events        []models.AnalyticsEvent

	now func() time.Time
}

var _ core.DbClient = (*Store)(nil)

func New() *Store {
	return &Store{
		settings: make(map[string]models.Settings),
		now:      time.Now,
	}
}

func (s *Store) Close() error { return nil }

// Events returns the logged analytics events.
func (s *Store) Events() []models.AnalyticsEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

// users

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: email already registered", apperrors.ErrConflict)
		}
	}
	s.users = append(s.users, *user)
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

// chat spaces

func (s *Store) chatSpaceIndex(id string) int {
	return slices.IndexFunc(s.chatSpaces, func(cs models.ChatSpace) bool { return cs.ID == id })
}

func (s *Store) CreateChatSpace(_ context.Context, cs *models.ChatSpace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.chatSpaces {
		if existing.EndpointSlug == cs.EndpointSlug {
			return fmt.Errorf("%w: endpoint slug taken", apperrors.ErrConflict)
		}
	}
	s.chatSpaces = append(s.chatSpaces, cloneChatSpace(*cs))
	return nil
}

func (s *Store) GetChatSpace(_ context.Context, id string) (*models.ChatSpace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.chatSpaceIndex(id); i >= 0 {
		out := cloneChatSpace(s.chatSpaces[i])
		return &out, nil
	}
	return nil, nil
}

func (s *Store) GetChatSpaceBySlug(_ context.Context, slug string) (*models.ChatSpace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cs := range s.chatSpaces {
		if cs.EndpointSlug == slug {
			out := cloneChatSpace(cs)
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ListChatSpacesByUser(_ context.Context, userID string) ([]models.ChatSpace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatSpace, 0)
	for i := len(s.chatSpaces) - 1; i >= 0; i-- {
		if s.chatSpaces[i].UserID == userID {
			out = append(out, cloneChatSpace(s.chatSpaces[i]))
		}
	}
	return out, nil
}

func (s *Store) CountChatSpacesByUser(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, cs := range s.chatSpaces {
		if cs.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *Store) UpdateChatSpace(_ context.Context, cs *models.ChatSpace) error {
	return s.mutateChatSpace(cs.ID, func(stored *models.ChatSpace) {
		stored.Name = cs.Name
		stored.Description = cs.Description
		stored.WidgetStatus = cs.WidgetStatus
		stored.AIConfig = cs.AIConfig
		stored.WidgetConfig = cloneWidget(cs.WidgetConfig)
	})
}

func (s *Store) SetChatSpaceStatus(_ context.Context, id string, status models.ChatSpaceStatus) error {
	return s.mutateChatSpace(id, func(stored *models.ChatSpace) { stored.Status = status })
}

func (s *Store) MarkChatSpacePublished(_ context.Context, id string, at time.Time) error {
	return s.mutateChatSpace(id, func(stored *models.ChatSpace) {
		stored.Status = models.ChatSpacePublished
		stored.LastProcessedAt = &at
	})
}

func (s *Store) IncrementDataUsage(_ context.Context, id string, delta int64) error {
	return s.mutateChatSpace(id, func(stored *models.ChatSpace) { stored.DataUsageBytes += delta })
}

func (s *Store) ClearChatSpaceDocuments(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.chatSpaceIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: chat space %s", apperrors.ErrNotFound, id)
	}
	s.chunks = slices.DeleteFunc(s.chunks, func(c models.DocumentChunk) bool { return c.ChatSpaceID == id })
	s.documents = slices.DeleteFunc(s.documents, func(d models.Document) bool { return d.ChatSpaceID == id })
	s.chatSpaces[i].DataUsageBytes = 0
	s.chatSpaces[i].Status = models.ChatSpaceDraft
	s.chatSpaces[i].UpdatedAt = s.now()
	return nil
}

func (s *Store) DeleteChatSpace(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.chatSpaceIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: chat space %s", apperrors.ErrNotFound, id)
	}
	s.chatSpaces = slices.Delete(s.chatSpaces, i, i+1)
	s.chunks = slices.DeleteFunc(s.chunks, func(c models.DocumentChunk) bool { return c.ChatSpaceID == id })
	s.documents = slices.DeleteFunc(s.documents, func(d models.Document) bool { return d.ChatSpaceID == id })
	s.events = slices.DeleteFunc(s.events, func(e models.AnalyticsEvent) bool { return e.ChatSpaceID == id })

	var convIDs []string
	s.conversations = slices.DeleteFunc(s.conversations, func(c models.Conversation) bool {
		if c.ChatSpaceID == id {
			convIDs = append(convIDs, c.ID)
			return true
		}
		return false
	})
	s.messages = slices.DeleteFunc(s.messages, func(m models.Message) bool {
		return slices.Contains(convIDs, m.ConversationID)
	})
	return nil
}

func (s *Store) mutateChatSpace(id string, fn func(*models.ChatSpace)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.chatSpaceIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: chat space %s", apperrors.ErrNotFound, id)
	}
	fn(&s.chatSpaces[i])
	s.chatSpaces[i].UpdatedAt = s.now()
	return nil
}

// documents

func (s *Store) documentIndex(id string) int {
	return slices.IndexFunc(s.documents, func(d models.Document) bool { return d.ID == id })
}

func (s *Store) CreateDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = append(s.documents, *doc)
	return nil
}

func (s *Store) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.documentIndex(id); i >= 0 {
		out := s.documents[i]
		return &out, nil
	}
	return nil, nil
}

func (s *Store) ListDocumentsByChatSpace(_ context.Context, chatSpaceID string) ([]models.Document, error) {
	return s.filterDocuments(func(d models.Document) bool { return d.ChatSpaceID == chatSpaceID }), nil
}

func (s *Store) ListDocumentsByStatus(_ context.Context, chatSpaceID string, statuses ...models.DocumentStatus) ([]models.Document, error) {
	return s.filterDocuments(func(d models.Document) bool {
		return d.ChatSpaceID == chatSpaceID && slices.Contains(statuses, d.Status)
	}), nil
}

// filterDocuments returns matches oldest first; ties keep insertion order.
func (s *Store) filterDocuments(keep func(models.Document) bool) []models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Document, 0)
	for _, d := range s.documents {
		if keep(d) {
			out = append(out, d)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Document) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (s *Store) CountDocuments(_ context.Context, chatSpaceID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.documents {
		if d.ChatSpaceID == chatSpaceID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountDocumentsByType(_ context.Context, chatSpaceID string, types ...models.DocumentType) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.documents {
		if d.ChatSpaceID == chatSpaceID && slices.Contains(types, d.Type) {
			n++
		}
	}
	return n, nil
}

func (s *Store) DocumentExistsBySource(_ context.Context, chatSpaceID, sourceURL string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.documents {
		if d.ChatSpaceID == chatSpaceID && d.SourceURL == sourceURL {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpdateDocumentStatus(_ context.Context, id string, status models.DocumentStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.documentIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: document %s", apperrors.ErrNotFound, id)
	}
	now := s.now()
	d := &s.documents[i]
	d.Status = status
	d.ErrorMessage = errMsg
	switch status {
	case models.DocumentProcessing:
		d.ProcessingStartedAt = &now
	case models.DocumentCompleted, models.DocumentFailed:
		d.ProcessingCompletedAt = &now
	}
	d.UpdatedAt = now
	return nil
}

func (s *Store) CompleteDocument(_ context.Context, documentID, chatSpaceID string, bytes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	di := s.documentIndex(documentID)
	if di < 0 {
		return fmt.Errorf("%w: document %s", apperrors.ErrNotFound, documentID)
	}
	ci := s.chatSpaceIndex(chatSpaceID)
	if ci < 0 {
		return fmt.Errorf("%w: chat space %s", apperrors.ErrNotFound, chatSpaceID)
	}
	now := s.now()
	d := &s.documents[di]
	d.Status = models.DocumentCompleted
	d.ErrorMessage = ""
	d.ProcessingCompletedAt = &now
	d.UpdatedAt = now
	s.chatSpaces[ci].DataUsageBytes += bytes
	s.chatSpaces[ci].UpdatedAt = now
	return nil
}

func (s *Store) UpdateDocumentContent(_ context.Context, id, title, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.documentIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: document %s", apperrors.ErrNotFound, id)
	}
	s.documents[i].Title = title
	s.documents[i].Content = content
	s.documents[i].UpdatedAt = s.now()
	return nil
}

func (s *Store) RequeueStaleDocuments(_ context.Context, chatSpaceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.documents {
		d := &s.documents[i]
		if d.ChatSpaceID == chatSpaceID && d.Status == models.DocumentProcessing {
			d.Status = models.DocumentPending
			d.UpdatedAt = s.now()
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.documentIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: document %s", apperrors.ErrNotFound, id)
	}
	s.documents = slices.Delete(s.documents, i, i+1)
	s.chunks = slices.DeleteFunc(s.chunks, func(c models.DocumentChunk) bool { return c.DocumentID == id })
	return nil
}

// chunks

func (s *Store) InsertDocumentChunks(_ context.Context, chunks []models.DocumentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		c.Embedding = slices.Clone(c.Embedding)
		s.chunks = append(s.chunks, c)
	}
	return nil
}

func (s *Store) ListChunksByChatSpace(_ context.Context, chatSpaceID string) ([]models.DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DocumentChunk, 0)
	for _, c := range s.chunks {
		if c.ChatSpaceID == chatSpaceID {
			c.Embedding = slices.Clone(c.Embedding)
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) DeleteChunksByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = slices.DeleteFunc(s.chunks, func(c models.DocumentChunk) bool { return c.DocumentID == documentID })
	return nil
}

// conversations

func (s *Store) CreateConversation(_ context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append(s.conversations, *conv)
	return nil
}

func (s *Store) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conversations {
		if c.ID == id {
			out := c
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := *msg
	m.ContextChunks = slices.Clone(msg.ContextChunks)
	s.messages = append(s.messages, m)
	for i := range s.conversations {
		if s.conversations[i].ID == msg.ConversationID {
			s.conversations[i].UpdatedAt = s.now()
		}
	}
	return nil
}

func (s *Store) ListMessages(_ context.Context, conversationID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, 0)
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			m.ContextChunks = slices.Clone(m.ContextChunks)
			out = append(out, m)
		}
	}
	return out, nil
}

// settings

func (s *Store) GetSettings(_ context.Context, userID string) (*models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settings[userID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *Store) UpsertSettings(_ context.Context, st *models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := *st
	v.UpdatedAt = s.now()
	s.settings[st.UserID] = v
	return nil
}

func (s *Store) LogEvent(_ context.Context, ev *models.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *ev)
	return nil
}

func cloneChatSpace(cs models.ChatSpace) models.ChatSpace {
	cs.WidgetConfig = cloneWidget(cs.WidgetConfig)
	if cs.LastProcessedAt != nil {
		t := *cs.LastProcessedAt
		cs.LastProcessedAt = &t
	}
	return cs
}

func cloneWidget(w models.WidgetConfig) models.WidgetConfig {
	w.AllowedDomains = slices.Clone(w.AllowedDomains)
	return w
}
