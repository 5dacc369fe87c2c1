package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	// StorageMode selects the persistence backend: "postgres" or "memory".
	StorageMode string
	DatabaseURL string
	SslCertPath string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	// LLMProvider selects the model gateway: "openrouter" or "gemini".
	LLMProvider       string
	AIAPIKey          string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	SiteURL           string
	SiteName          string
	EmbedModel        string
	EmbedDim          int
	GenModel          string

	JWTSecret      string
	AllowedOrigins []string

	// ingestion quotas
	MaxDocuments         int
	MaxDataUsageBytes    int64
	MaxUploadedFiles     int
	MaxUploadBytes       int64
	MaxChatSpacesPerUser int
	ChunkSize            int
	ChunkOverlap         int
	EmbedBatchSize       int
	EmbedConcurrency     int
	IngestWorkers        int

	// chat
	MaxMessageLength  int
	SearchLimit       int
	ConnectorTimeout  time.Duration
	CompletionTimeout time.Duration

	// scraping
	BrowserControlURL string
	BrowserHeadless   bool
	ScrapeTimeout     time.Duration
	ScrapeSettleDelay time.Duration
	UseHTTPFetcher    bool
}

// LoadConfig loads the environment variables (and .env if present) and returns config.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StorageMode: getEnv("STORAGE_MODE", "postgres"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SslCertPath: getEnv("SSL_CERT_PATH", ""),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "chatspace-docs"),

		LLMProvider:       getEnv("LLM_PROVIDER", "openrouter"),
		AIAPIKey:          getEnv("GEMINI_API_KEY", ""),
		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		SiteURL:           getEnv("SITE_URL", "http://localhost:3000"),
		SiteName:          getEnv("SITE_NAME", "ChatSpace"),
		EmbedModel:        getEnv("EMBED_MODEL", ""),
		EmbedDim:          getEnvInt("EMBED_DIM", 2560),
		GenModel:          getEnv("GEN_MODEL", ""),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),

		MaxDocuments:         getEnvInt("MAX_DOCUMENTS", 10),
		MaxDataUsageBytes:    getEnvInt64("MAX_DATA_USAGE_BYTES", 5*1024*1024),
		MaxUploadedFiles:     getEnvInt("MAX_UPLOADED_FILES", 5),
		MaxUploadBytes:       getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		MaxChatSpacesPerUser: getEnvInt("MAX_CHAT_SPACES_PER_USER", 1),
		ChunkSize:            getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:         getEnvInt("CHUNK_OVERLAP", 200),
		EmbedBatchSize:       getEnvInt("EMBED_BATCH_SIZE", 16),
		EmbedConcurrency:     getEnvInt("EMBED_CONCURRENCY", 4),
		IngestWorkers:        getEnvInt("INGEST_WORKERS", 2),

		MaxMessageLength:  getEnvInt("MAX_MESSAGE_LENGTH", 200),
		SearchLimit:       getEnvInt("SEARCH_LIMIT", 5),
		ConnectorTimeout:  getEnvDuration("CONNECTOR_TIMEOUT", 5*time.Second),
		CompletionTimeout: getEnvDuration("COMPLETION_TIMEOUT", 60*time.Second),

		BrowserControlURL: getEnv("BROWSER_CONTROL_URL", ""),
		BrowserHeadless:   getEnvBool("BROWSER_HEADLESS", true),
		ScrapeTimeout:     getEnvDuration("SCRAPE_TIMEOUT", 60*time.Second),
		ScrapeSettleDelay: getEnvDuration("SCRAPE_SETTLE_DELAY", 2*time.Second),
		UseHTTPFetcher:    getEnvBool("USE_HTTP_FETCHER", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the combinations LoadConfig cannot default its way out of.
func (c *Config) Validate() error {
	switch c.StorageMode {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL not set")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORAGE_MODE %q", c.StorageMode)
	}

	switch c.LLMProvider {
	case "openrouter", "gemini":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET not set")
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid chunking: size=%d overlap=%d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.MaxDocuments <= 0 || c.MaxDataUsageBytes <= 0 {
		return fmt.Errorf("quotas must be positive")
	}
	return nil
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvInt64(key string, def int64) int64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
