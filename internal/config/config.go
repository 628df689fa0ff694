package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ashwinyue/tracesmith/internal/model"
	"github.com/ashwinyue/tracesmith/internal/service/types"
)

// Config 应用配置
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	AI         AIConfig
	Generation GenerationConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
	AuthEnabled  bool
	JWTSecret    string
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// AIConfig 生成与评分服务配置
type AIConfig struct {
	Provider          string
	Model             string
	GradingModel      string
	Temperature       float32
	RequestsPerMinute int
	MaxRetries        int
	Timeout           int
	OpenAI            ProviderConfig
	Alibaba           ProviderConfig
	DeepSeek          ProviderConfig
}

// ProviderConfig 单个 OpenAI 兼容服务商配置
type ProviderConfig struct {
	APIKey  string
	BaseURL string
}

// GenerationConfig 数据集生成配置
type GenerationConfig struct {
	DatasetType    string
	Traces         int
	MaxIterations  int
	Workers        int
	Plan           bool
	SectionSize    int
	PassThreshold  float64
	MinPolicyWords int
	OutputDir      string
}

// Load 加载配置，path 为空时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix("TRACESMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindProviderEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate 校验生成相关配置
func (c *Config) Validate() error {
	if _, err := model.ParseDatasetType(c.Generation.DatasetType); err != nil {
		return err
	}
	if c.Generation.Traces < 1 {
		return &types.ConfigurationError{Field: "generation.traces", Reason: "must be at least 1"}
	}
	if c.Generation.MaxIterations < 1 {
		return &types.ConfigurationError{Field: "generation.maxIterations", Reason: "must be at least 1"}
	}
	if c.Generation.Workers < 0 {
		return &types.ConfigurationError{Field: "generation.workers", Reason: "must not be negative"}
	}
	if c.Generation.PassThreshold < 0 || c.Generation.PassThreshold > 1 {
		return &types.ConfigurationError{Field: "generation.passThreshold", Reason: "must be within [0, 1]"}
	}
	if c.Server.AuthEnabled && c.Server.JWTSecret == "" {
		return &types.ConfigurationError{Field: "server.jwtSecret", Reason: "is required when auth is enabled"}
	}
	return nil
}

// GetGradingModel 评分模型，未配置时与生成模型相同
func (c *AIConfig) GetGradingModel() string {
	if c.GradingModel != "" {
		return c.GradingModel
	}
	return c.Model
}

// GetTimeout 单次调用超时
func (c *AIConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// bindProviderEnv 兼容各服务商约定俗成的 API Key 环境变量
func bindProviderEnv(v *viper.Viper) {
	_ = v.BindEnv("ai.openai.apiKey", "TRACESMITH_AI_OPENAI_APIKEY", "OPENAI_API_KEY")
	_ = v.BindEnv("ai.deepseek.apiKey", "TRACESMITH_AI_DEEPSEEK_APIKEY", "DEEPSEEK_API_KEY")
	_ = v.BindEnv("ai.alibaba.apiKey", "TRACESMITH_AI_ALIBABA_APIKEY", "DASHSCOPE_API_KEY")
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "tracesmith")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.debug", false)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.authEnabled", false)
	v.SetDefault("server.jwtSecret", "")

	// Database
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "tracesmith")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// AI
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.gradingModel", "")
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.requestsPerMinute", 60)
	v.SetDefault("ai.maxRetries", 3)
	v.SetDefault("ai.timeout", 60)
	v.SetDefault("ai.openai.baseUrl", "https://api.openai.com/v1")
	v.SetDefault("ai.deepseek.baseUrl", "https://api.deepseek.com/v1")
	v.SetDefault("ai.alibaba.baseUrl", "https://dashscope.aliyuncs.com/compatible-mode/v1")

	// Generation
	v.SetDefault("generation.datasetType", "sft")
	v.SetDefault("generation.traces", 20)
	v.SetDefault("generation.maxIterations", 3)
	v.SetDefault("generation.workers", 0)
	v.SetDefault("generation.plan", true)
	v.SetDefault("generation.sectionSize", 1200)
	v.SetDefault("generation.passThreshold", 0.7)
	v.SetDefault("generation.minPolicyWords", 10)
	v.SetDefault("generation.outputDir", ".")
}
