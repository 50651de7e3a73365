package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig      `json:"server"`
	ObjectStore ObjectStoreConfig `json:"object_store"`
	Qdrant      QdrantConfig      `json:"qdrant"`
	Embedding   EmbeddingConfig   `json:"embedding"`
	LLM         LLMConfig         `json:"llm"`
	Kafka       KafkaConfig       `json:"kafka"`
	Analyze     AnalyzeConfig     `json:"analyze"`
}

type ServerConfig struct {
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type ObjectStoreConfig struct {
	Backend string      `json:"backend"` // "minio" or "gcs"
	Bucket  string      `json:"bucket"`
	Minio   MinioConfig `json:"minio"`
	GCS     GCSConfig   `json:"gcs"`
}

type MinioConfig struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Secure    bool   `json:"secure"`
}

type GCSConfig struct {
	ProjectID string `json:"project_id"`
}

type QdrantConfig struct {
	URL          string `json:"url"`
	APIKey       string `json:"api_key"`
	GRPCHost     string `json:"grpc_host"`
	GRPCPort     int    `json:"grpc_port"`
	UseTLS       bool   `json:"use_tls"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

type EmbeddingConfig struct {
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type LLMConfig struct {
	URL            string `json:"url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	RateLimitRPS   int    `json:"rate_limit_rps"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled"`
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
	GroupID string   `json:"group_id"`
}

type AnalyzeConfig struct {
	CollectionPrefix string `json:"collection_prefix"`
	TopK             int    `json:"top_k"`
}

// Load reads the JSON config file (optional), fills in defaults, and applies
// environment overrides. A .env file next to the process is honored if
// present. The LLM endpoint is the only setting without a usable default;
// a missing one is a startup error, not a per-request one.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config

	if configPath != "" {
		file, err := os.Open(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to open config file: %w", err)
			}
		} else {
			defer file.Close()
			if err := json.NewDecoder(file).Decode(&cfg); err != nil {
				return nil, fmt.Errorf("failed to decode config: %w", err)
			}
		}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.LLM.URL == "" {
		return nil, fmt.Errorf("llm url is required (set llm.url or LLM_URL)")
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}

	if cfg.ObjectStore.Backend == "" {
		cfg.ObjectStore.Backend = "minio"
	}
	if cfg.ObjectStore.Bucket == "" {
		cfg.ObjectStore.Bucket = "logs"
	}
	if cfg.ObjectStore.Minio.Endpoint == "" {
		cfg.ObjectStore.Minio.Endpoint = "localhost:9000"
	}
	if cfg.ObjectStore.Minio.AccessKey == "" {
		cfg.ObjectStore.Minio.AccessKey = "minio"
	}
	if cfg.ObjectStore.Minio.SecretKey == "" {
		cfg.ObjectStore.Minio.SecretKey = "minio123"
	}

	if cfg.Qdrant.URL == "" {
		cfg.Qdrant.URL = "http://localhost:6333"
	}
	if cfg.Qdrant.GRPCHost == "" {
		cfg.Qdrant.GRPCHost = "localhost"
	}
	if cfg.Qdrant.GRPCPort == 0 {
		cfg.Qdrant.GRPCPort = 6334
	}
	if cfg.Qdrant.ChunkSize == 0 {
		cfg.Qdrant.ChunkSize = 2000
	}
	if cfg.Qdrant.ChunkOverlap == 0 {
		cfg.Qdrant.ChunkOverlap = 200
	}

	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 60
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3"
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 120
	}
	if cfg.LLM.RateLimitRPS == 0 {
		cfg.LLM.RateLimitRPS = 2
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "ci-logs"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "sift-ingest"
	}

	if cfg.Analyze.CollectionPrefix == "" {
		cfg.Analyze.CollectionPrefix = "logs"
	}
	if cfg.Analyze.TopK == 0 {
		cfg.Analyze.TopK = 5
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Port = getEnvAsInt("PORT", cfg.Server.Port)

	cfg.ObjectStore.Backend = getEnv("OBJECT_STORE_BACKEND", cfg.ObjectStore.Backend)
	cfg.ObjectStore.Bucket = getEnv("LOGS_BUCKET", cfg.ObjectStore.Bucket)
	cfg.ObjectStore.Minio.Endpoint = getEnv("MINIO_ENDPOINT", cfg.ObjectStore.Minio.Endpoint)
	cfg.ObjectStore.Minio.AccessKey = getEnv("MINIO_ACCESS_KEY", cfg.ObjectStore.Minio.AccessKey)
	cfg.ObjectStore.Minio.SecretKey = getEnv("MINIO_SECRET_KEY", cfg.ObjectStore.Minio.SecretKey)
	cfg.ObjectStore.Minio.Secure = getEnvAsBool("MINIO_SECURE", cfg.ObjectStore.Minio.Secure)
	cfg.ObjectStore.GCS.ProjectID = getEnv("GCS_PROJECT_ID", cfg.ObjectStore.GCS.ProjectID)

	cfg.Qdrant.URL = strings.TrimRight(getEnv("QDRANT_URL", cfg.Qdrant.URL), "/")
	cfg.Qdrant.APIKey = getEnv("QDRANT_API_KEY", cfg.Qdrant.APIKey)
	cfg.Qdrant.GRPCHost = getEnv("QDRANT_GRPC_HOST", cfg.Qdrant.GRPCHost)
	cfg.Qdrant.GRPCPort = getEnvAsInt("QDRANT_GRPC_PORT", cfg.Qdrant.GRPCPort)

	cfg.Embedding.BaseURL = strings.TrimRight(getEnv("EMBEDDING_URL", cfg.Embedding.BaseURL), "/")
	cfg.Embedding.Model = getEnv("EMBEDDING_MODEL", cfg.Embedding.Model)

	cfg.LLM.URL = getEnv("LLM_URL", cfg.LLM.URL)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)

	cfg.Kafka.Enabled = getEnvAsBool("KAFKA_ENABLED", cfg.Kafka.Enabled)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", cfg.Kafka.GroupID)

	cfg.Analyze.CollectionPrefix = getEnv("COLLECTION_PREFIX", cfg.Analyze.CollectionPrefix)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	return strings.EqualFold(valueStr, "true")
}
