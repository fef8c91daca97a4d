package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full application configuration, read from environment
// variables.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	ClickHouse  ClickHouseConfig
	Redis       RedisConfig
	OpenAI      OpenAIConfig
	Weaviate    WeaviateConfig
	Webscraper  WebscraperConfig
	Vectorstore VectorstoreConfig
	Classifier  ClassifierConfig
	Pipeline    PipelineConfig
	Telegram    TelegramConfig
	Logging     LoggingConfig
}

// ServerConfig configures the REST surface.
type ServerConfig struct {
	Port string `envconfig:"SERVER_PORT" default:"8000"`
}

// DatabaseConfig holds Postgres connection parameters.
type DatabaseConfig struct {
	Host           string `envconfig:"DB_HOST" default:"localhost"`
	Port           int    `envconfig:"DB_PORT" default:"5432"`
	Name           string `envconfig:"DB_NAME" default:"infolettre"`
	User           string `envconfig:"DB_USER" required:"true"`
	Password       string `envconfig:"DB_PASSWORD" required:"true"`
	SSLMode        string `envconfig:"DB_SSLMODE" default:"disable"`
	MigrationsPath string `envconfig:"DB_MIGRATIONS_PATH" default:"migrations"`
}

// GetDSN builds the Postgres DSN.
func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// ClickHouseConfig holds the metrics sink parameters. Metrics are optional:
// an empty host disables them.
type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST" default:""`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	Database string `envconfig:"CLICKHOUSE_DATABASE" default:"infolettre"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD" default:""`
}

// GetDSN builds the ClickHouse DSN.
func (c ClickHouseConfig) GetDSN() string {
	return fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig holds the run-lock parameters. Optional: an empty host
// disables the distributed lock and runs rely on in-process exclusion only.
type RedisConfig struct {
	Host    string        `envconfig:"REDIS_HOST" default:""`
	Port    int           `envconfig:"REDIS_PORT" default:"6379"`
	LockTTL time.Duration `envconfig:"REDIS_LOCK_TTL" default:"1h"`
}

// OpenAIConfig configures the embedding and completion models.
type OpenAIConfig struct {
	APIKey          string  `envconfig:"OPENAI_API_KEY" required:"true"`
	EmbeddingModel  string  `envconfig:"OPENAI_EMBEDDING_MODEL" default:"text-embedding-3-large"`
	CompletionModel string  `envconfig:"OPENAI_COMPLETION_MODEL" default:"gpt-4o"`
	Temperature     float32 `envconfig:"OPENAI_TEMPERATURE" default:"0.1"`
	MaxRetries      int     `envconfig:"OPENAI_MAX_RETRIES" default:"3"`
}

// WeaviateConfig holds the vector database connection parameters.
type WeaviateConfig struct {
	Host   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	Scheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`
}

// WebscraperConfig configures the webscraper.io collaborator.
type WebscraperConfig struct {
	APIToken string `envconfig:"WEBSCRAPER_IO_API_TOKEN" required:"true"`
	BaseURL  string `envconfig:"WEBSCRAPER_IO_BASE_URL" default:"https://api.webscraper.io/api/v1"`
}

// VectorstoreConfig tunes the reference-corpus search.
type VectorstoreConfig struct {
	CollectionName string  `envconfig:"VECTORSTORE_COLLECTION" default:"ReferenceNews"`
	MaxResults     int     `envconfig:"VECTORSTORE_MAX_RESULTS" default:"10"`
	HybridWeight   float64 `envconfig:"VECTORSTORE_HYBRID_WEIGHT" default:"0.75"`
	MinimalScore   float64 `envconfig:"VECTORSTORE_MINIMAL_SCORE" default:"0.0"`
}

// ClassifierConfig selects and tunes the classification strategy.
type ClassifierConfig struct {
	Strategy           string  `envconfig:"CLASSIFIER_STRATEGY" default:"max-mean-score"`
	RelevancyThreshold float64 `envconfig:"CLASSIFIER_RELEVANCY_THRESHOLD" default:"0.4"`
	KNNNeighbors       int     `envconfig:"CLASSIFIER_KNN_NEIGHBORS" default:"4"`
	ForestTrees        int     `envconfig:"CLASSIFIER_FOREST_TREES" default:"100"`
}

// PipelineConfig tunes the orchestrator.
type PipelineConfig struct {
	Timezone         string        `envconfig:"PIPELINE_TIMEZONE" default:"America/Montreal"`
	DeleteJobs       bool          `envconfig:"PIPELINE_DELETE_JOBS" default:"true"`
	RunTimeout       time.Duration `envconfig:"PIPELINE_RUN_TIMEOUT" default:"1h"`
	OutputDir        string        `envconfig:"PIPELINE_OUTPUT_DIR" default:"output"`
	TemplatesDir     string        `envconfig:"PIPELINE_TEMPLATES_DIR" default:""`
	ScheduleEnabled  bool          `envconfig:"PIPELINE_SCHEDULE_ENABLED" default:"false"`
	ScheduleWeekday  int           `envconfig:"PIPELINE_SCHEDULE_WEEKDAY" default:"1"` // Monday
	ScheduleHour     int           `envconfig:"PIPELINE_SCHEDULE_HOUR" default:"6"`
	ScheduleInterval time.Duration `envconfig:"PIPELINE_SCHEDULE_INTERVAL" default:"30m"`
}

// TelegramConfig configures newsletter delivery. Optional: an empty token
// disables delivery.
type TelegramConfig struct {
	BotToken  string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	ChannelID int64  `envconfig:"TELEGRAM_CHANNEL_ID" default:"0"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" default:""`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}
