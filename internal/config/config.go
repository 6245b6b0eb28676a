package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Tracing   TracingConfig   `mapstructure:"tracing"`
	LLM       LLMConfig       `mapstructure:"llm"`
	XAI       XAIConfig       `mapstructure:"xai"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	MigrateOnly bool `mapstructure:"-"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

// LLMBackendConfig 单个模型后端（OpenAI 兼容接口或 Ollama）
type LLMBackendConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LLMConfig 在线 + 离线双后端
type LLMConfig struct {
	Online  LLMBackendConfig `mapstructure:"online"`
	Offline LLMBackendConfig `mapstructure:"offline"`
}

// XAIConfig 解释生成管线的调优参数
type XAIConfig struct {
	// SourceTag 是解释缓存的版本标签。升级生成逻辑后改这个值，
	// 旧解释在查询时自动失效（追加式存储，不删除历史行）。
	SourceTag             string  `mapstructure:"source_tag"`
	EvidenceTopK          int     `mapstructure:"evidence_top_k"`
	EvidenceMinSimilarity float64 `mapstructure:"evidence_min_similarity"`
	MaxLectureChars       int     `mapstructure:"max_lecture_chars"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("MCQ_TUTOR")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// JWT / Server
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("server.mode", "SERVER_MODE")

	// LLM backends
	viper.BindEnv("llm.online.base_url", "LLM_ONLINE_BASE_URL")
	viper.BindEnv("llm.online.api_key", "LLM_ONLINE_API_KEY")
	viper.BindEnv("llm.online.model", "LLM_ONLINE_MODEL")
	viper.BindEnv("llm.offline.base_url", "LLM_OFFLINE_BASE_URL")
	viper.BindEnv("llm.offline.model", "LLM_OFFLINE_MODEL")

	// XAI
	viper.BindEnv("xai.source_tag", "XAI_SOURCE_TAG")

	// Storage
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	applyLLMDefaults(&cfg.LLM)
	applyXAIDefaults(&cfg.XAI)

	// 在线超时必须小于离线超时：网络后端失败要快，本地推理允许慢
	if cfg.LLM.Online.TimeoutSeconds >= cfg.LLM.Offline.TimeoutSeconds {
		return nil, fmt.Errorf("llm.online.timeout_seconds (%d) must be less than llm.offline.timeout_seconds (%d)",
			cfg.LLM.Online.TimeoutSeconds, cfg.LLM.Offline.TimeoutSeconds)
	}

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

func applyLLMDefaults(cfg *LLMConfig) {
	if cfg.Online.TimeoutSeconds == 0 {
		cfg.Online.TimeoutSeconds = 8
	}
	if cfg.Offline.TimeoutSeconds == 0 {
		cfg.Offline.TimeoutSeconds = 40
	}
	if cfg.Offline.BaseURL == "" {
		cfg.Offline.BaseURL = "http://localhost:11434"
	}
}

func applyXAIDefaults(cfg *XAIConfig) {
	if cfg.SourceTag == "" {
		cfg.SourceTag = "ai_generated_v2"
	}
	if cfg.EvidenceTopK == 0 {
		cfg.EvidenceTopK = 3
	}
	if cfg.EvidenceMinSimilarity == 0 {
		cfg.EvidenceMinSimilarity = 0.1
	}
	if cfg.MaxLectureChars == 0 {
		cfg.MaxLectureChars = 2000
	}
}
