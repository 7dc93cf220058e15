// Package config provides configuration loading for ragctl.
//
// Values come from three layers: hardcoded defaults (NewDefaultConfig), an
// optional YAML file, and RAG_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Config holds the complete ragctl configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Data        DataConfig        `koanf:"data"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Chunking    ChunkingConfig    `koanf:"chunking"`
	Text        TextConfig        `koanf:"text"`
	PDF         PDFConfig         `koanf:"pdf"`
	Image       ImageConfig       `koanf:"image"`
	OCR         OCRConfig         `koanf:"ocr"`
	Vision      VisionConfig      `koanf:"vision"`
	Doc         DocConfig         `koanf:"doc"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Events      EventsConfig      `koanf:"events"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Watch       WatchConfig       `koanf:"watch"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// IngestRoot, when set, confines folders named by HTTP and MCP
	// callers to this directory tree.
	IngestRoot      string   `koanf:"ingest_root"`
}

// DataConfig points at the folder ingested when no path is given.
type DataConfig struct {
	Folder string `koanf:"folder"`
}

// IngestConfig controls the folder walk.
type IngestConfig struct {
	Workers       int      `koanf:"workers"`
	Dedupe        bool     `koanf:"dedupe"`
	RedactSecrets bool     `koanf:"redact_secrets"`
	AllowlistPath string   `koanf:"allowlist_path"`
	MaxFileSizeMB int      `koanf:"max_file_size_mb"`
	IgnoreFiles   []string `koanf:"ignore_files"`
	SkipDirs      []string `koanf:"skip_dirs"`
}

// ChunkingConfig holds splitter parameters, measured in characters.
type ChunkingConfig struct {
	ChunkSize    int `koanf:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`
}

// TextConfig lists the decode attempts for plain text files, in order.
type TextConfig struct {
	Encodings []string `koanf:"encodings"`
}

// PDFConfig controls the scanned-document fallback.
type PDFConfig struct {
	MinTextChars int  `koanf:"min_text_chars"`
	OCRFallback  bool `koanf:"ocr_fallback"`
	DPI          int  `koanf:"dpi"`
}

// ImageConfig selects the image description strategy: vision, ocr or none.
type ImageConfig struct {
	Provider string `koanf:"provider"`
}

// OCRConfig locates the local OCR toolchain.
type OCRConfig struct {
	TesseractCmd string   `koanf:"tesseract_cmd"`
	PdftoppmCmd  string   `koanf:"pdftoppm_cmd"`
	Language     string   `koanf:"language"`
	Timeout      Duration `koanf:"timeout"`
}

// VisionConfig configures the OpenAI-compatible vision endpoint.
type VisionConfig struct {
	BaseURL     string   `koanf:"base_url"`
	Model       string   `koanf:"model"`
	APIKey      Secret   `koanf:"api_key"`
	Temperature float64  `koanf:"temperature"`
	MaxTokens   int      `koanf:"max_tokens"`
	RateLimit   float64  `koanf:"rate_limit"`
	Burst       int      `koanf:"burst"`
	MaxRetries  int      `koanf:"max_retries"`
	Timeout     Duration `koanf:"timeout"`
}

// DocConfig names the converter used for legacy .doc files.
type DocConfig struct {
	ConverterCmd string   `koanf:"converter_cmd"`
	Timeout      Duration `koanf:"timeout"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	APIKey    Secret `koanf:"api_key"`
	CacheDir  string `koanf:"cache_dir"`
	BatchSize int    `koanf:"batch_size"`
}

// VectorStoreConfig selects and configures the index backend.
type VectorStoreConfig struct {
	Provider          string  `koanf:"provider"`
	Collection        string  `koanf:"collection"`
	Path              string  `koanf:"path"`
	Compress          bool    `koanf:"compress"`
	QdrantHost        string  `koanf:"qdrant_host"`
	QdrantPort        int     `koanf:"qdrant_port"`
	QdrantTLS         bool    `koanf:"qdrant_tls"`
	DistanceThreshold float64 `koanf:"distance_threshold"`
	TopK              int     `koanf:"top_k"`
}

// EventsConfig controls NATS notifications.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// LoggingConfig is the subset of logger settings exposed to users.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig toggles OTLP export.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"`
	Insecure    bool   `koanf:"insecure"`
	ServiceName string `koanf:"service_name"`
}

// WatchConfig controls the folder watcher.
type WatchConfig struct {
	Debounce Duration `koanf:"debounce"`
}

// Image provider names.
const (
	ImageProviderVision = "vision"
	ImageProviderOCR    = "ocr"
	ImageProviderNone   = "none"
)

// NewDefaultConfig returns defaults matching the reference deployment:
// collection rag_collection persisted under chroma_db, documents read from
// rag_data_source, all-MiniLM-L6-v2 embeddings and a 1.2 distance cutoff.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            9090,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Data: DataConfig{Folder: "rag_data_source"},
		Ingest: IngestConfig{
			Workers:       4,
			MaxFileSizeMB: 100,
			IgnoreFiles:   []string{".ragignore"},
			SkipDirs:      []string{".git", "node_modules", "__pycache__"},
		},
		Chunking: ChunkingConfig{ChunkSize: 1000, ChunkOverlap: 200},
		Text:     TextConfig{Encodings: []string{"utf-8", "latin-1", "cp1252"}},
		PDF:      PDFConfig{MinTextChars: 50, OCRFallback: true, DPI: 300},
		Image:    ImageConfig{Provider: ImageProviderVision},
		OCR: OCRConfig{
			TesseractCmd: "tesseract",
			PdftoppmCmd:  "pdftoppm",
			Language:     "eng",
			Timeout:      Duration(2 * time.Minute),
		},
		Vision: VisionConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "meta-llama/llama-4-maverick-17b-128e-instruct",
			Temperature: 0.1,
			MaxTokens:   1024,
			RateLimit:   0.5,
			Burst:       1,
			MaxRetries:  3,
			Timeout:     Duration(60 * time.Second),
		},
		Doc: DocConfig{ConverterCmd: "antiword", Timeout: Duration(30 * time.Second)},
		Embeddings: EmbeddingsConfig{
			Provider:  "fastembed",
			Model:     "sentence-transformers/all-MiniLM-L6-v2",
			BaseURL:   "http://localhost:8080",
			BatchSize: 64,
		},
		VectorStore: VectorStoreConfig{
			Provider:          "chromem",
			Collection:        "rag_collection",
			Path:              "chroma_db",
			Compress:          false,
			QdrantHost:        "localhost",
			QdrantPort:        6334,
			DistanceThreshold: 1.2,
			TopK:              5,
		},
		Events: EventsConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "rag",
		},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
		Telemetry: TelemetryConfig{Endpoint: "localhost:4317", Protocol: "grpc", Insecure: true, ServiceName: "ragctl"},
		Watch:     WatchConfig{Debounce: Duration(2 * time.Second)},
	}
}

// applyKeyFallbacks fills API keys from the conventional provider variables
// when no RAG_-prefixed value was given.
func applyKeyFallbacks(cfg *Config) {
	if !cfg.Vision.APIKey.IsSet() {
		cfg.Vision.APIKey = Secret(os.Getenv("GROQ_API_KEY"))
	}
	if !cfg.Embeddings.APIKey.IsSet() {
		cfg.Embeddings.APIKey = Secret(os.Getenv("OPENAI_API_KEY"))
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, %d), got %d",
			c.Chunking.ChunkSize, c.Chunking.ChunkOverlap)
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest.workers must be >= 1, got %d", c.Ingest.Workers)
	}
	switch c.Image.Provider {
	case ImageProviderVision, ImageProviderOCR, ImageProviderNone:
	default:
		return fmt.Errorf("image.provider must be vision, ocr or none, got %q", c.Image.Provider)
	}
	if len(c.Text.Encodings) == 0 {
		return errors.New("text.encodings must list at least one encoding")
	}
	switch c.Embeddings.Provider {
	case "fastembed", "tei", "openai":
	default:
		return fmt.Errorf("embeddings.provider must be fastembed, tei or openai, got %q", c.Embeddings.Provider)
	}
	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("vectorstore.provider must be chromem or qdrant, got %q", c.VectorStore.Provider)
	}
	if c.VectorStore.Collection == "" {
		return errors.New("vectorstore.collection is required")
	}
	if c.VectorStore.DistanceThreshold <= 0 {
		return fmt.Errorf("vectorstore.distance_threshold must be positive, got %v", c.VectorStore.DistanceThreshold)
	}
	if c.VectorStore.TopK < 1 {
		return fmt.Errorf("vectorstore.top_k must be >= 1, got %d", c.VectorStore.TopK)
	}
	if c.Events.Enabled && c.Events.URL == "" {
		return errors.New("events.nats_url is required when events are enabled")
	}
	return nil
}

// MaxFileSize returns the per-file size limit in bytes; zero disables it.
func (c IngestConfig) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}
