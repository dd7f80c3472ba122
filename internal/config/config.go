package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the chatpdf server
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Queue    QueueConfig    `mapstructure:"queue"`
	RAG      RAGConfig      `mapstructure:"rag"`
	LLM      LLMConfig      `mapstructure:"llm"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

// DatabaseConfig holds sqlite configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Documents string        `mapstructure:"documents"`
	SignKey   string        `mapstructure:"sign_key"`
	URLTTL    time.Duration `mapstructure:"url_ttl"`
}

// QueueConfig holds ingestion queue configuration
type QueueConfig struct {
	// Driver is "nats" or "memory".
	Driver            string        `mapstructure:"driver"`
	URL               string        `mapstructure:"url"`
	Stream            string        `mapstructure:"stream"`
	Subject           string        `mapstructure:"subject"`
	Consumer          string        `mapstructure:"consumer"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	Workers           int           `mapstructure:"workers"`
}

// RAGConfig holds chunking and retrieval configuration
type RAGConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	TopK         int `mapstructure:"top_k"`
}

// LLMConfig holds embedding and generation backend configuration
type LLMConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	LLMModel       string        `mapstructure:"llm_model"`
	Dimensions     int           `mapstructure:"dimensions"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("CHATPDF")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")

	v.SetDefault("database.path", "./data/chatpdf.db")

	v.SetDefault("storage.documents", "./data/documents")
	v.SetDefault("storage.sign_key", "")
	v.SetDefault("storage.url_ttl", 15*time.Minute)

	v.SetDefault("queue.driver", "nats")
	v.SetDefault("queue.url", "nats://localhost:4222")
	v.SetDefault("queue.stream", "INGEST")
	v.SetDefault("queue.subject", "ingest.jobs")
	v.SetDefault("queue.consumer", "ingest-worker")
	v.SetDefault("queue.visibility_timeout", 180*time.Second)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.workers", 4)

	v.SetDefault("rag.chunk_size", 1000)
	v.SetDefault("rag.chunk_overlap", 200)
	v.SetDefault("rag.top_k", 5)

	v.SetDefault("llm.base_url", "http://localhost:11434/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.embedding_model", "nomic-embed-text")
	v.SetDefault("llm.llm_model", "qwen2.5:7b")
	v.SetDefault("llm.dimensions", 768)
	v.SetDefault("llm.timeout", 60*time.Second)
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
