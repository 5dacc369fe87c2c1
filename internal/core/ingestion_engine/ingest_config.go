package ingestion_engine

import "github.com/markdave123-py/chatspace/internal/config"

// IngestConfig holds the per-run limits and batching knobs.
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int

	// MaxDocuments caps the documents a chat space may hold, crawled pages included.
	MaxDocuments      int
	MaxDataUsageBytes int64
	// MaxFileBytes bounds how much of a stored upload is read back for parsing.
	MaxFileBytes int64

	BatchSize        int
	EmbedConcurrency int

	Bucket string
}

func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		ChunkSize:         1000,
		ChunkOverlap:      200,
		MaxDocuments:      10,
		MaxDataUsageBytes: 5 * 1024 * 1024,
		MaxFileBytes:      10 << 20,
		BatchSize:         16,
		EmbedConcurrency:  4,
	}
}

func NewIngestConfig(cfg *config.Config) IngestConfig {
	return IngestConfig{
		ChunkSize:         cfg.ChunkSize,
		ChunkOverlap:      cfg.ChunkOverlap,
		MaxDocuments:      cfg.MaxDocuments,
		MaxDataUsageBytes: cfg.MaxDataUsageBytes,
		MaxFileBytes:      cfg.MaxUploadBytes,
		BatchSize:         cfg.EmbedBatchSize,
		EmbedConcurrency:  cfg.EmbedConcurrency,
		Bucket:            cfg.BucketName,
	}
}

func (c IngestConfig) withDefaults() IngestConfig {
	d := DefaultIngestConfig()
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = min(d.ChunkOverlap, c.ChunkSize/5)
	}
	if c.MaxDocuments <= 0 {
		c.MaxDocuments = d.MaxDocuments
	}
	if c.MaxDataUsageBytes <= 0 {
		c.MaxDataUsageBytes = d.MaxDataUsageBytes
	}
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = d.MaxFileBytes
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = d.EmbedConcurrency
	}
	return c
}
