package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file; ORCHESTRATOR_CONFIG overrides it.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	StoreDriver string `yaml:"storeDriver"`
	DatabaseURL string `yaml:"databaseURL"`
	SeedFile    string `yaml:"seedFile"`

	ObjectStoreProvider  string `yaml:"objectStoreProvider"`
	MinioEndpoint        string `yaml:"minioEndpoint"`
	MinioAccessKey       string `yaml:"minioAccessKey"`
	MinioSecretKey       string `yaml:"minioSecretKey"`
	MinioUseSSL          bool   `yaml:"minioUseSSL"`
	S3Endpoint           string `yaml:"s3Endpoint"`
	S3Region             string `yaml:"s3Region"`
	S3Bucket             string `yaml:"s3Bucket"`
	S3AccessKey          string `yaml:"s3AccessKey"`
	S3SecretKey          string `yaml:"s3SecretKey"`
	ObjectPrefix         string `yaml:"objectPrefix"`
	PublicBaseURL        string `yaml:"publicBaseURL"`
	PresignExpirySeconds int    `yaml:"presignExpirySeconds"`

	LLMProvider         string `yaml:"llmProvider"`
	LLMBaseURL          string `yaml:"llmBaseURL"`
	LLMAPIKey           string `yaml:"llmAPIKey"`
	LLMModel            string `yaml:"llmModel"`
	LLMAPIVersion       string `yaml:"llmAPIVersion"`
	LLMTimeoutSeconds   int    `yaml:"llmTimeoutSeconds"`
	LLMMaxRetries       int    `yaml:"llmMaxRetries"`
	LLMRetryBaseDelayMs int    `yaml:"llmRetryBaseDelayMs"`

	RedisAddr                string `yaml:"redisAddr"`
	RedisPassword            string `yaml:"redisPassword"`
	PromptDefaultsFromRedis  bool   `yaml:"promptDefaultsFromRedis"`
	PromptDefaultsPrefix     string `yaml:"promptDefaultsPrefix"`
	PromptDefaultsTTLSeconds int    `yaml:"promptDefaultsTTLSeconds"`

	PromptDefaults map[string]PromptDefaults `yaml:"promptDefaults"`

	Fonts                     map[string]string `yaml:"fonts"`
	RenderFetchTimeoutSeconds int               `yaml:"renderFetchTimeoutSeconds"`

	InstagramBaseURL      string `yaml:"instagramBaseURL"`
	InstagramAccessToken  string `yaml:"instagramAccessToken"`
	InstagramAccountID    string `yaml:"instagramAccountID"`
	ThreadsBaseURL        string `yaml:"threadsBaseURL"`
	ThreadsAccessToken    string `yaml:"threadsAccessToken"`
	ThreadsAccountID      string `yaml:"threadsAccountID"`
	PublishTimeoutSeconds int    `yaml:"publishTimeoutSeconds"`

	QueueEnabled           bool   `yaml:"queueEnabled"`
	QueueName              string `yaml:"queueName"`
	QueueGroup             string `yaml:"queueGroup"`
	QueueConcurrency       int    `yaml:"queueConcurrency"`
	QueueMaxAttempts       int    `yaml:"queueMaxAttempts"`
	QueueRetryDelaySeconds int    `yaml:"queueRetryDelaySeconds"`

	RateLimitPerMinute int      `yaml:"rateLimitPerMinute"`
	TrustedProxies     []string `yaml:"trustedProxies"`
	CheckpointStages   bool     `yaml:"checkpointStages"`
}

// PromptDefaults are the per content type fallbacks for prompt settings.
type PromptDefaults struct {
	SystemPrompt string   `yaml:"systemPrompt"`
	Model        string   `yaml:"model"`
	Temperature  *float64 `yaml:"temperature"`
	MaxTokens    *int     `yaml:"maxTokens"`
}

// Load reads config from path (defaults to ORCHESTRATOR_CONFIG, then config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = os.Getenv("ORCHESTRATOR_CONFIG")
	}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.StoreDriver, "STORE_DRIVER")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.ObjectStoreProvider, "OBJECT_STORE_PROVIDER")
	setString(&cfg.MinioEndpoint, "MINIO_ENDPOINT")
	setString(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	setString(&cfg.S3Endpoint, "S3_ENDPOINT")
	setString(&cfg.S3Region, "S3_REGION")
	setString(&cfg.S3Bucket, "S3_BUCKET")
	setString(&cfg.S3AccessKey, "S3_ACCESS_KEY")
	setString(&cfg.S3SecretKey, "S3_SECRET_KEY")
	setString(&cfg.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&cfg.LLMProvider, "LLM_PROVIDER")
	setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setString(&cfg.LLMAPIKey, "LLM_API_KEY")
	setString(&cfg.LLMModel, "LLM_MODEL")
	setInt(&cfg.LLMMaxRetries, "LLM_MAX_RETRIES")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.InstagramAccessToken, "INSTAGRAM_ACCESS_TOKEN")
	setString(&cfg.InstagramAccountID, "INSTAGRAM_ACCOUNT_ID")
	setString(&cfg.ThreadsAccessToken, "THREADS_ACCESS_TOKEN")
	setString(&cfg.ThreadsAccountID, "THREADS_ACCOUNT_ID")
	setInt(&cfg.QueueConcurrency, "ORCHESTRATOR_QUEUE_CONCURRENCY")
	setInt(&cfg.QueueMaxAttempts, "ORCHESTRATOR_QUEUE_MAX_ATTEMPTS")
	setInt(&cfg.RateLimitPerMinute, "ORCHESTRATOR_RATE_LIMIT_PER_MINUTE")
	if v := os.Getenv("ORCHESTRATOR_QUEUE_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.QueueEnabled = enabled
		}
	}
	if v := os.Getenv("ORCHESTRATOR_TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitCSV(v)
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = "postgres"
	}
	if cfg.ObjectStoreProvider == "" {
		cfg.ObjectStoreProvider = "minio"
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "openai"
	}
	if cfg.LLMTimeoutSeconds <= 0 {
		cfg.LLMTimeoutSeconds = 60
	}
	if cfg.RenderFetchTimeoutSeconds <= 0 {
		cfg.RenderFetchTimeoutSeconds = 15
	}
	if cfg.PublishTimeoutSeconds <= 0 {
		cfg.PublishTimeoutSeconds = 30
	}
	if cfg.QueueName == "" {
		cfg.QueueName = "autogensocial:orchestrate"
	}
	if cfg.QueueConcurrency <= 0 {
		cfg.QueueConcurrency = 2
	}
	if cfg.QueueMaxAttempts <= 0 {
		cfg.QueueMaxAttempts = 1
	}
	if cfg.PromptDefaultsTTLSeconds <= 0 {
		cfg.PromptDefaultsTTLSeconds = 60
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	switch cfg.StoreDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
		}
	case "memory":
	default:
		return fmt.Errorf("config: storeDriver must be postgres or memory, got %q", cfg.StoreDriver)
	}
	switch cfg.ObjectStoreProvider {
	case "minio":
		if cfg.MinioEndpoint == "" {
			return errors.New("config: minioEndpoint is required (set in config.yaml)")
		}
		if cfg.MinioAccessKey == "" {
			return errors.New("config: minioAccessKey is required (set in config.yaml)")
		}
		if cfg.MinioSecretKey == "" {
			return errors.New("config: minioSecretKey is required (set in config.yaml)")
		}
	case "s3":
		if cfg.S3Bucket == "" {
			return errors.New("config: s3Bucket is required (set in config.yaml or S3_BUCKET)")
		}
	default:
		return fmt.Errorf("config: objectStoreProvider must be minio or s3, got %q", cfg.ObjectStoreProvider)
	}
	switch cfg.LLMProvider {
	case "openai", "azure":
		if cfg.LLMBaseURL == "" {
			return errors.New("config: llmBaseURL is required (set in config.yaml or LLM_BASE_URL)")
		}
		if cfg.LLMProvider == "azure" && cfg.LLMAPIKey == "" {
			return errors.New("config: llmAPIKey is required for azure (set in config.yaml or LLM_API_KEY)")
		}
	case "ollama":
	default:
		return fmt.Errorf("config: llmProvider must be openai, azure or ollama, got %q", cfg.LLMProvider)
	}
	if cfg.LLMMaxRetries < 0 {
		return errors.New("config: llmMaxRetries must be >= 0")
	}
	if (cfg.QueueEnabled || cfg.RateLimitPerMinute > 0 || cfg.PromptDefaultsFromRedis) && cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required when the queue, rate limit or redis prompt defaults are enabled")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
