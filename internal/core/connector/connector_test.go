package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Query(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "content field", body: `{"content":"from content","answer":"ignored"}`, want: "from content"},
		{name: "answer field", body: `{"answer":"from answer"}`, want: "from answer"},
		{name: "empty content falls through to answer", body: `{"content":"","answer":"a"}`, want: "a"},
		{name: "structured content is kept as json", body: `{"content":{"k":1}}`, want: `{"k":1}`},
		{name: "other json is returned raw", body: `{"results":[1,2]}`, want: `{"results":[1,2]}`},
		{name: "plain text", body: "just text\n", want: "just text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "Bearer kb-key", r.Header.Get("Authorization"))

				var req map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "what are your hours?", req["query"])

				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := NewClient(time.Second).Query(context.Background(), srv.URL, "kb-key", "what are your hours?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_QueryErrors(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewClient(time.Second).Query(context.Background(), srv.URL, "", "q")
		assert.Error(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		start := time.Now()
		_, err := NewClient(50*time.Millisecond).Query(context.Background(), srv.URL, "", "q")
		assert.Error(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}
