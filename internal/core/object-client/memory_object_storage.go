package objectclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/core"
)

// MemoryClient keeps objects in process. Used when S3 is not configured.
type MemoryClient struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ core.ObjectClient = (*MemoryClient)(nil)

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{objects: make(map[string][]byte)}
}

func (c *MemoryClient) UploadFile(_ context.Context, bucket, key string, data []byte, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[bucket+"/"+key] = bytes.Clone(data)
	return fmt.Sprintf("memory://%s/%s", bucket, key), nil
}

func (c *MemoryClient) DeleteFile(_ context.Context, bucket, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, bucket+"/"+key)
	return nil
}

func (c *MemoryClient) GetObjectReader(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%w: object %s/%s", apperrors.ErrNotFound, bucket, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
