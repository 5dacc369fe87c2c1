package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/config"
	"github.com/markdave123-py/chatspace/internal/core"
	"github.com/markdave123-py/chatspace/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

var _ core.DbClient = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn := cfg.DatabaseURL
	if cfg.SslCertPath != "" {
		if _, err := os.Stat(cfg.SslCertPath); err != nil {
			return nil, fmt.Errorf("ssl cert not accessible at %q: %w", cfg.SslCertPath, err)
		}
		u, err := url.Parse(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		q := u.Query()
		q.Set("sslmode", "verify-ca")
		q.Set("sslrootcert", cfg.SslCertPath)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	ran, err := EnsureBootstrapped(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	logger.Info("database ready", zap.Bool("bootstrapped", ran))

	return &DatabaseClient{db: db}, nil
}

// NewFromDB wraps an already opened handle.
func NewFromDB(db *sql.DB) *DatabaseClient {
	return &DatabaseClient{db: db}
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, first_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.FirstName, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: email already registered", apperrors.ErrConflict)
	}
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// chat spaces

const chatSpaceColumns = `
	id, user_id, name, description, endpoint_slug, status, widget_status,
	ai_config, widget_config, data_usage_bytes, last_processed_at, created_at, updated_at`

func scanChatSpace(row rowScanner) (*models.ChatSpace, error) {
	var (
		cs            models.ChatSpace
		aiCfg, widget []byte
		lastProcessed sql.NullTime
	)
	if err := row.Scan(
		&cs.ID, &cs.UserID, &cs.Name, &cs.Description, &cs.EndpointSlug, &cs.Status, &cs.WidgetStatus,
		&aiCfg, &widget, &cs.DataUsageBytes, &lastProcessed, &cs.CreatedAt, &cs.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(aiCfg, &cs.AIConfig); err != nil {
		return nil, fmt.Errorf("decode ai_config: %w", err)
	}
	if err := unmarshalJSON(widget, &cs.WidgetConfig); err != nil {
		return nil, fmt.Errorf("decode widget_config: %w", err)
	}
	cs.LastProcessedAt = nullTimePtr(lastProcessed)
	return &cs, nil
}

func (c *DatabaseClient) CreateChatSpace(ctx context.Context, cs *models.ChatSpace) error {
	if cs == nil {
		return errors.New("nil chat space")
	}
	aiCfg, widget, err := marshalChatSpaceConfigs(cs)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO chat_spaces
			(id, user_id, name, description, endpoint_slug, status, widget_status,
			 ai_config, widget_config, data_usage_bytes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = c.db.ExecContext(ctx, q,
		cs.ID, cs.UserID, cs.Name, cs.Description, cs.EndpointSlug, cs.Status, cs.WidgetStatus,
		aiCfg, widget, cs.DataUsageBytes, cs.CreatedAt, cs.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: endpoint slug taken", apperrors.ErrConflict)
	}
	return err
}

func (c *DatabaseClient) GetChatSpace(ctx context.Context, id string) (*models.ChatSpace, error) {
	q := `SELECT ` + chatSpaceColumns + ` FROM chat_spaces WHERE id = $1`
	cs, err := scanChatSpace(c.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return cs, err
}

func (c *DatabaseClient) GetChatSpaceBySlug(ctx context.Context, slug string) (*models.ChatSpace, error) {
	q := `SELECT ` + chatSpaceColumns + ` FROM chat_spaces WHERE endpoint_slug = $1`
	cs, err := scanChatSpace(c.db.QueryRowContext(ctx, q, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return cs, err
}

func (c *DatabaseClient) ListChatSpacesByUser(ctx context.Context, userID string) ([]models.ChatSpace, error) {
	q := `SELECT ` + chatSpaceColumns + ` FROM chat_spaces WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.ChatSpace, 0)
	for rows.Next() {
		cs, err := scanChatSpace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cs)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) CountChatSpacesByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_spaces WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (c *DatabaseClient) UpdateChatSpace(ctx context.Context, cs *models.ChatSpace) error {
	aiCfg, widget, err := marshalChatSpaceConfigs(cs)
	if err != nil {
		return err
	}
	const q = `
		UPDATE chat_spaces
		SET name = $2, description = $3, widget_status = $4, ai_config = $5, widget_config = $6, updated_at = now()
		WHERE id = $1
	`
	return c.execOne(ctx, "chat space", cs.ID, q,
		cs.ID, cs.Name, cs.Description, cs.WidgetStatus, aiCfg, widget)
}

func (c *DatabaseClient) SetChatSpaceStatus(ctx context.Context, id string, status models.ChatSpaceStatus) error {
	const q = `UPDATE chat_spaces SET status = $2, updated_at = now() WHERE id = $1`
	return c.execOne(ctx, "chat space", id, q, id, status)
}

func (c *DatabaseClient) MarkChatSpacePublished(ctx context.Context, id string, at time.Time) error {
	const q = `
		UPDATE chat_spaces
		SET status = $2, last_processed_at = $3, updated_at = now()
		WHERE id = $1
	`
	return c.execOne(ctx, "chat space", id, q, id, models.ChatSpacePublished, at)
}

func (c *DatabaseClient) IncrementDataUsage(ctx context.Context, id string, delta int64) error {
	const q = `
		UPDATE chat_spaces
		SET data_usage_bytes = data_usage_bytes + $2, updated_at = now()
		WHERE id = $1
	`
	return c.execOne(ctx, "chat space", id, q, id, delta)
}

func (c *DatabaseClient) ClearChatSpaceDocuments(ctx context.Context, id string) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE chat_space_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE chat_space_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE chat_spaces
			SET data_usage_bytes = 0, status = $2, updated_at = now()
			WHERE id = $1`, id, models.ChatSpaceDraft)
		return err
	})
}

// DeleteChatSpace relies on ON DELETE CASCADE for documents, chunks,
// conversations, messages and events.
func (c *DatabaseClient) DeleteChatSpace(ctx context.Context, id string) error {
	return c.execOne(ctx, "chat space", id, `DELETE FROM chat_spaces WHERE id = $1`, id)
}

// documents

const documentColumns = `
	id, chat_space_id, type, source_url, title, content, file_name, file_size, storage_key,
	status, error_message, processing_started_at, processing_completed_at, created_at, updated_at`

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		d                  models.Document
		started, completed sql.NullTime
	)
	if err := row.Scan(
		&d.ID, &d.ChatSpaceID, &d.Type, &d.SourceURL, &d.Title, &d.Content, &d.FileName, &d.FileSize, &d.StorageKey,
		&d.Status, &d.ErrorMessage, &started, &completed, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.ProcessingStartedAt = nullTimePtr(started)
	d.ProcessingCompletedAt = nullTimePtr(completed)
	return &d, nil
}

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, chat_space_id, type, source_url, title, content, file_name, file_size, storage_key,
			 status, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.ChatSpaceID, doc.Type, doc.SourceURL, doc.Title, doc.Content, doc.FileName, doc.FileSize,
		doc.StorageKey, doc.Status, doc.ErrorMessage, doc.CreatedAt, doc.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

func (c *DatabaseClient) ListDocumentsByChatSpace(ctx context.Context, chatSpaceID string) ([]models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE chat_space_id = $1 ORDER BY created_at ASC`
	return c.queryDocuments(ctx, q, chatSpaceID)
}

func (c *DatabaseClient) ListDocumentsByStatus(ctx context.Context, chatSpaceID string, statuses ...models.DocumentStatus) ([]models.Document, error) {
	if len(statuses) == 0 {
		return []models.Document{}, nil
	}
	args := []any{chatSpaceID}
	for _, s := range statuses {
		args = append(args, s)
	}
	q := `SELECT ` + documentColumns + ` FROM documents
		WHERE chat_space_id = $1 AND status IN (` + placeholders(2, len(statuses)) + `)
		ORDER BY created_at ASC`
	return c.queryDocuments(ctx, q, args...)
}

func (c *DatabaseClient) queryDocuments(ctx context.Context, q string, args ...any) ([]models.Document, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) CountDocuments(ctx context.Context, chatSpaceID string) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE chat_space_id = $1`, chatSpaceID).Scan(&n)
	return n, err
}

func (c *DatabaseClient) CountDocumentsByType(ctx context.Context, chatSpaceID string, types ...models.DocumentType) (int, error) {
	if len(types) == 0 {
		return 0, nil
	}
	args := []any{chatSpaceID}
	for _, t := range types {
		args = append(args, t)
	}
	q := `SELECT COUNT(*) FROM documents WHERE chat_space_id = $1 AND type IN (` + placeholders(2, len(types)) + `)`
	var n int
	err := c.db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}

func (c *DatabaseClient) DocumentExistsBySource(ctx context.Context, chatSpaceID, sourceURL string) (bool, error) {
	var exists bool
	err := c.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE chat_space_id = $1 AND source_url = $2)`,
		chatSpaceID, sourceURL).Scan(&exists)
	return exists, err
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus, errMsg string) error {
	const q = `
		UPDATE documents
		SET status = $2::text,
		    error_message = $3,
		    processing_started_at = CASE WHEN $2::text = 'processing' THEN now() ELSE processing_started_at END,
		    processing_completed_at = CASE WHEN $2::text IN ('completed', 'failed') THEN now() ELSE processing_completed_at END,
		    updated_at = now()
		WHERE id = $1
	`
	return c.execOne(ctx, "document", id, q, id, status, errMsg)
}

func (c *DatabaseClient) CompleteDocument(ctx context.Context, documentID, chatSpaceID string, bytes int64) error {
	const markDoc = `
		UPDATE documents
		SET status = $2, error_message = '', processing_completed_at = now(), updated_at = now()
		WHERE id = $1
	`
	const charge = `
		UPDATE chat_spaces
		SET data_usage_bytes = data_usage_bytes + $2, updated_at = now()
		WHERE id = $1
	`
	return c.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, markDoc, documentID, models.DocumentCompleted)
		if err != nil {
			return err
		}
		if err := requireRow(res, "document", documentID); err != nil {
			return err
		}
		res, err = tx.ExecContext(ctx, charge, chatSpaceID, bytes)
		if err != nil {
			return err
		}
		return requireRow(res, "chat space", chatSpaceID)
	})
}

func (c *DatabaseClient) UpdateDocumentContent(ctx context.Context, id, title, content string) error {
	const q = `UPDATE documents SET title = $2, content = $3, updated_at = now() WHERE id = $1`
	return c.execOne(ctx, "document", id, q, id, title, content)
}

func (c *DatabaseClient) RequeueStaleDocuments(ctx context.Context, chatSpaceID string) (int, error) {
	const q = `
		UPDATE documents
		SET status = $2, updated_at = now()
		WHERE chat_space_id = $1 AND status = $3
	`
	res, err := c.db.ExecContext(ctx, q, chatSpaceID, models.DocumentPending, models.DocumentProcessing)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	return c.execOne(ctx, "document", id, `DELETE FROM documents WHERE id = $1`, id)
}

// chunks

// InsertDocumentChunks inserts chunks in a single transaction.
func (c *DatabaseClient) InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return c.withTx(ctx, func(tx *sql.Tx) error {
		const q = `
			INSERT INTO document_chunks
				(id, document_id, chat_space_id, chunk_index, content, embedding, token_count, source, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		stmt, err := tx.PrepareContext(ctx, q)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range chunks {
			ch := &chunks[i]
			if _, err := stmt.ExecContext(ctx,
				ch.ID, ch.DocumentID, ch.ChatSpaceID, ch.ChunkIndex, ch.Content,
				pgvector.NewVector(ch.Embedding), ch.TokenCount, ch.Source, ch.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert chunk %d: %w", ch.ChunkIndex, err)
			}
		}
		return nil
	})
}

func (c *DatabaseClient) ListChunksByChatSpace(ctx context.Context, chatSpaceID string) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, document_id, chat_space_id, chunk_index, content, embedding, token_count, source, created_at
		FROM document_chunks
		WHERE chat_space_id = $1
		ORDER BY created_at ASC, document_id ASC, chunk_index ASC
	`
	rows, err := c.db.QueryContext(ctx, q, chatSpaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.DocumentChunk, 0)
	for rows.Next() {
		var (
			ch  models.DocumentChunk
			emb pgvector.Vector
		)
		if err := rows.Scan(
			&ch.ID, &ch.DocumentID, &ch.ChatSpaceID, &ch.ChunkIndex, &ch.Content,
			&emb, &ch.TokenCount, &ch.Source, &ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		ch.Embedding = emb.Slice()
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	return err
}

// conversations

func (c *DatabaseClient) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	const q = `
		INSERT INTO conversations (id, chat_space_id, end_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := c.db.ExecContext(ctx, q, conv.ID, conv.ChatSpaceID, conv.EndUserID, conv.CreatedAt, conv.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	const q = `
		SELECT id, chat_space_id, end_user_id, created_at, updated_at
		FROM conversations WHERE id = $1
	`
	var conv models.Conversation
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&conv.ID, &conv.ChatSpaceID, &conv.EndUserID, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *DatabaseClient) CreateMessage(ctx context.Context, msg *models.Message) error {
	chunkIDs := msg.ContextChunks
	if chunkIDs == nil {
		chunkIDs = []string{}
	}
	ctxChunks, err := json.Marshal(chunkIDs)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO messages (id, conversation_id, role, content, context_chunks, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := c.db.ExecContext(ctx, q,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, string(ctxChunks), msg.CreatedAt); err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `UPDATE conversations SET updated_at = now() WHERE id = $1`, msg.ConversationID)
	return err
}

func (c *DatabaseClient) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	const q = `
		SELECT id, conversation_id, role, content, context_chunks, created_at
		FROM messages WHERE conversation_id = $1
		ORDER BY created_at ASC
	`
	rows, err := c.db.QueryContext(ctx, q, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Message, 0)
	for rows.Next() {
		var (
			m         models.Message
			ctxChunks []byte
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &ctxChunks, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(ctxChunks, &m.ContextChunks); err != nil {
			return nil, fmt.Errorf("decode context_chunks: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// settings

func (c *DatabaseClient) GetSettings(ctx context.Context, userID string) (*models.Settings, error) {
	const q = `
		SELECT user_id, response_tone, kb_connector_url, kb_connector_api_key, kb_connector_active, updated_at
		FROM settings WHERE user_id = $1
	`
	var s models.Settings
	err := c.db.QueryRowContext(ctx, q, userID).Scan(
		&s.UserID, &s.ResponseTone, &s.KBConnectorURL, &s.KBConnectorAPIKey, &s.KBConnectorActive, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *DatabaseClient) UpsertSettings(ctx context.Context, s *models.Settings) error {
	const q = `
		INSERT INTO settings (user_id, response_tone, kb_connector_url, kb_connector_api_key, kb_connector_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id) DO UPDATE SET
			response_tone = EXCLUDED.response_tone,
			kb_connector_url = EXCLUDED.kb_connector_url,
			kb_connector_api_key = EXCLUDED.kb_connector_api_key,
			kb_connector_active = EXCLUDED.kb_connector_active,
			updated_at = now()
	`
	_, err := c.db.ExecContext(ctx, q, s.UserID, s.ResponseTone, s.KBConnectorURL, s.KBConnectorAPIKey, s.KBConnectorActive)
	return err
}

// analytics

func (c *DatabaseClient) LogEvent(ctx context.Context, ev *models.AnalyticsEvent) error {
	meta := ev.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO analytics_events (id, chat_space_id, event_type, end_user_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = c.db.ExecContext(ctx, q, ev.ID, ev.ChatSpaceID, ev.EventType, ev.EndUserID, string(metaJSON), ev.CreatedAt)
	return err
}

// helpers

// execOne runs a write that must touch a row; zero rows is ErrNotFound.
func (c *DatabaseClient) execOne(ctx context.Context, what, id, q string, args ...any) error {
	res, err := c.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	return requireRow(res, what, id)
}

// requireRow turns a write that touched nothing into ErrNotFound.
func requireRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", apperrors.ErrNotFound, what, id)
	}
	return nil
}

func (c *DatabaseClient) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func marshalChatSpaceConfigs(cs *models.ChatSpace) (string, string, error) {
	if cs.WidgetConfig.AllowedDomains == nil {
		cs.WidgetConfig.AllowedDomains = []string{}
	}
	aiCfg, err := json.Marshal(cs.AIConfig)
	if err != nil {
		return "", "", fmt.Errorf("encode ai_config: %w", err)
	}
	widget, err := json.Marshal(cs.WidgetConfig)
	if err != nil {
		return "", "", fmt.Errorf("encode widget_config: %w", err)
	}
	return string(aiCfg), string(widget), nil
}

func unmarshalJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// placeholders renders "$start, $start+1, ..." for n arguments.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
