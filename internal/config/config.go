package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/maribel/gemlens/internal/domain"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Producers ProducersConfig `mapstructure:"producers"`
	Fusion    FusionConfig    `mapstructure:"fusion"`
	Modes     ModesConfig     `mapstructure:"modes"`
	Listing   ListingConfig   `mapstructure:"listing"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres
	Path            string        `mapstructure:"path"`   // sqlite file path
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	Dimensions int    `mapstructure:"dimensions"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // s3, r2, minio
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	JobTTL   time.Duration `mapstructure:"job_ttl"`
}

// ProducerEndpoint configures one remote analysis producer.
type ProducerEndpoint struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ProducersConfig struct {
	Detector    ProducerEndpoint `mapstructure:"detector"`
	Vision      ProducerEndpoint `mapstructure:"vision"`
	Segmenter   ProducerEndpoint `mapstructure:"segmenter"`
	Embedder    EmbedderConfig   `mapstructure:"embedder"`
	Reasoner    ProducerEndpoint `mapstructure:"reasoner"`
	Synthesizer ProducerEndpoint `mapstructure:"synthesizer"`
}

type EmbedderConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// FusionConfig holds the tunable fusion parameters. The defaults mirror the
// documented category vote weights; treat them as configuration, not
// measured constants.
type FusionConfig struct {
	CategoryWeights map[string]float64 `mapstructure:"category_weights"`
	ConfidenceFloor float64            `mapstructure:"confidence_floor"`
	PriceSpreadLow  float64            `mapstructure:"price_spread_low"`
	PriceSpreadHigh float64            `mapstructure:"price_spread_high"`
}

// ModeLimits are the per-mode submission limits, exposed for the HTTP layer
// to validate against; the core pipeline does not enforce them.
type ModeLimits struct {
	MaxFiles       int           `mapstructure:"max_files"`
	MaxFileSizeMB  int           `mapstructure:"max_file_size_mb"`
	PerFileSeconds time.Duration `mapstructure:"per_file_seconds"`
}

type ModesConfig struct {
	Standard ModeLimits `mapstructure:"standard"`
	Advanced ModeLimits `mapstructure:"advanced"`
	Premium  ModeLimits `mapstructure:"premium"`
}

// Limits returns the limits for a mode, defaulting to standard.
func (m *ModesConfig) Limits(mode domain.ProcessingMode) ModeLimits {
	switch mode {
	case domain.ModeAdvanced:
		return m.Advanced
	case domain.ModePremium:
		return m.Premium
	default:
		return m.Standard
	}
}

type ListingConfig struct {
	TitleMaxLen       int     `mapstructure:"title_max_len"`
	MaxTags           int     `mapstructure:"max_tags"`
	FreeShippingPrice float64 `mapstructure:"free_shipping_price"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("producers.detector.api_key", "DETECTOR_API_KEY")
	v.BindEnv("producers.vision.api_key", "OPENAI_API_KEY")
	v.BindEnv("producers.vision.base_url", "OPENAI_BASE_URL")
	v.BindEnv("producers.segmenter.api_key", "SEGMENTER_API_KEY")
	v.BindEnv("producers.embedder.api_key", "JINA_API_KEY")
	v.BindEnv("producers.reasoner.api_key", "OPENAI_API_KEY")
	v.BindEnv("producers.synthesizer.api_key", "OPENAI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/gemlens.db")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "jewelry")
	v.SetDefault("qdrant.dimensions", 1024)

	v.SetDefault("storage.type", "minio")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "jewelry-uploads")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.job_ttl", 24*time.Hour)

	v.SetDefault("producers.detector.base_url", "http://localhost:8501")
	v.SetDefault("producers.detector.model", "yolov8-jewelry")
	v.SetDefault("producers.detector.timeout", 30*time.Second)
	v.SetDefault("producers.vision.base_url", "https://api.openai.com/v1")
	v.SetDefault("producers.vision.model", "gpt-4o-mini")
	v.SetDefault("producers.vision.timeout", 60*time.Second)
	v.SetDefault("producers.segmenter.base_url", "http://localhost:8502")
	v.SetDefault("producers.segmenter.model", "sam-vit-b")
	v.SetDefault("producers.segmenter.timeout", 45*time.Second)
	v.SetDefault("producers.embedder.base_url", "https://api.jina.ai/v1")
	v.SetDefault("producers.embedder.model", "jina-embeddings-v3")
	v.SetDefault("producers.embedder.dimensions", 1024)
	v.SetDefault("producers.embedder.timeout", 30*time.Second)
	v.SetDefault("producers.reasoner.base_url", "https://api.openai.com/v1")
	v.SetDefault("producers.reasoner.model", "gpt-4o-mini")
	v.SetDefault("producers.reasoner.timeout", 90*time.Second)
	v.SetDefault("producers.synthesizer.base_url", "https://api.openai.com/v1")
	v.SetDefault("producers.synthesizer.model", "gpt-4o")
	v.SetDefault("producers.synthesizer.timeout", 120*time.Second)

	v.SetDefault("fusion.category_weights", map[string]float64{
		domain.StageDetection:   0.30,
		domain.StageVision:      0.20,
		domain.StageVectorStore: 0.20,
		domain.StageSynthesis:   0.30,
	})
	v.SetDefault("fusion.confidence_floor", 0.15)
	v.SetDefault("fusion.price_spread_low", 0.8)
	v.SetDefault("fusion.price_spread_high", 1.3)

	v.SetDefault("modes.standard.max_files", 10)
	v.SetDefault("modes.standard.max_file_size_mb", 10)
	v.SetDefault("modes.standard.per_file_seconds", 30*time.Second)
	v.SetDefault("modes.advanced.max_files", 25)
	v.SetDefault("modes.advanced.max_file_size_mb", 15)
	v.SetDefault("modes.advanced.per_file_seconds", 60*time.Second)
	v.SetDefault("modes.premium.max_files", 50)
	v.SetDefault("modes.premium.max_file_size_mb", 25)
	v.SetDefault("modes.premium.per_file_seconds", 120*time.Second)

	v.SetDefault("listing.title_max_len", 70)
	v.SetDefault("listing.max_tags", 10)
	v.SetDefault("listing.free_shipping_price", 100.0)
}
