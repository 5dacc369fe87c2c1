package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/markdave123-py/chatspace/internal/config"
	"github.com/markdave123-py/chatspace/internal/core/ingestion_engine"
	"github.com/markdave123-py/chatspace/internal/core/memstore"
	objectclient "github.com/markdave123-py/chatspace/internal/core/object-client"
	"github.com/markdave123-py/chatspace/internal/services"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:            "test-secret",
		AllowedOrigins:       []string{"http://localhost:5173"},
		MaxUploadBytes:       1 << 20,
		MaxChatSpacesPerUser: 1,
		CompletionTimeout:    5 * time.Second,
	}
	logger := zap.NewNop()
	store := memstore.New()
	objects := objectclient.NewMemoryClient()
	extractor := ingestion_engine.NewDocconvExtractor(false)
	ingestor := ingestion_engine.NewIngestor(nil, 1, logger)

	svcs := serverServices{
		users:      services.NewUserService(store, cfg.JWTSecret),
		chatSpaces: services.NewChatSpaceService(store, objects, "bucket", ingestor, cfg.MaxChatSpacesPerUser, logger),
		documents:  services.NewDocumentService(store, objects, extractor, services.NewDocumentConfig(cfg), logger),
		chat:       services.NewChatService(store, nil, nil, nil, services.NewChatConfig(cfg), logger),
		settings:   services.NewSettingsService(store),
	}
	return newRouter(cfg, svcs, logger)
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_OwnerFlow(t *testing.T) {
	h := newTestRouter(t)

	rr := do(t, h, http.MethodPost, "/api/auth/signup", "", `{"first_name":"Ada","email":"ada@example.com","password":"correcthorse"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var auth struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &auth))
	require.NotEmpty(t, auth.Token)

	rr = do(t, h, http.MethodPost, "/api/chat-spaces", auth.Token, `{"name":"Support"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var cs struct {
		ID           string `json:"id"`
		EndpointSlug string `json:"endpoint_slug"`
		Status       string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cs))
	assert.Equal(t, "draft", cs.Status)

	t.Run("plan limit", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/api/chat-spaces", auth.Token, `{"name":"Second"}`)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("text document", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/api/chat-spaces/"+cs.ID+"/documents", auth.Token, `{"type":"text","text_content":"The sky is blue."}`)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		rr = do(t, h, http.MethodGet, "/api/chat-spaces/"+cs.ID+"/documents", auth.Token, "")
		require.Equal(t, http.StatusOK, rr.Code)
		var docs []map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &docs))
		assert.Len(t, docs, 1)
	})

	t.Run("widget config is public", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/api/widget/"+cs.EndpointSlug+"/config", "", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"allowedDomains":[]`)
	})

	t.Run("domain allow-list is enforced on the widget", func(t *testing.T) {
		rr := do(t, h, http.MethodPatch, "/api/chat-spaces/"+cs.ID, auth.Token, `{"widget_config":{"allowedDomains":["example.com"]}}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		req := httptest.NewRequest(http.MethodGet, "/api/widget/"+cs.EndpointSlug+"/config", nil)
		req.Header.Set("Origin", "https://evil.com")
		res := httptest.NewRecorder()
		h.ServeHTTP(res, req)
		assert.Equal(t, http.StatusForbidden, res.Code)
	})

	t.Run("another owner cannot see it", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/api/auth/signup", "", `{"email":"eve@example.com","password":"correcthorse"}`)
		require.Equal(t, http.StatusCreated, rr.Code)
		var other struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &other))

		rr = do(t, h, http.MethodGet, "/api/chat-spaces/"+cs.ID, other.Token, "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestRouter_Protection(t *testing.T) {
	h := newTestRouter(t)

	for _, path := range []string{"/api/chat-spaces", "/api/settings", "/api/documents/abc"} {
		rr := do(t, h, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}

	rr := do(t, h, http.MethodGet, "/api/widget/missing/config", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_CORS(t *testing.T) {
	h := newTestRouter(t)

	preflight := func(path, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	t.Run("widget accepts any site", func(t *testing.T) {
		rr := preflight("/api/widget/slug/chat", "https://customer.example")
		assert.Equal(t, "https://customer.example", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("dashboard origin", func(t *testing.T) {
		rr := preflight("/api/chat-spaces", "http://localhost:5173")
		assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin on dashboard routes", func(t *testing.T) {
		rr := preflight("/api/chat-spaces", "https://customer.example")
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = NewLogger("not-a-level")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}
