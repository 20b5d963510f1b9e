package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	S3         S3Config
	Log        LogConfig
	ML         MLServiceConfig
	OCR        OCRConfig
	Matching   MatchingConfig
	Lock       LockConfig
	Queue      QueueConfig
	Notify     NotifyConfig
	Heuristics HeuristicsConfig
}

// ServerConfig holds health-server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// S3Config holds AWS S3 settings for attached invoice documents.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MLServiceConfig holds settings for the external ML service.
type MLServiceConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	BaseURL            string `mapstructure:"base_url"`
	APIKey             string `mapstructure:"api_key"`
	ExtractTimeoutSecs int    `mapstructure:"extract_timeout_secs"`
	MatchTimeoutSecs   int    `mapstructure:"match_timeout_secs"`
	FraudTimeoutSecs   int    `mapstructure:"fraud_timeout_secs"`
	CodingTimeoutSecs  int    `mapstructure:"coding_timeout_secs"`
}

// OCRConfig selects the text recognizer.
type OCRConfig struct {
	Provider        string `mapstructure:"provider"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`
}

// MatchingConfig selects the PO matcher implementation.
type MatchingConfig struct {
	Provider string `mapstructure:"provider"`
}

// LockConfig selects the per-invoice lock implementation.
type LockConfig struct {
	Provider string        `mapstructure:"provider"`
	TTL      time.Duration `mapstructure:"ttl"`
	Wait     time.Duration `mapstructure:"wait"`
}

// QueueConfig holds pipeline worker settings.
type QueueConfig struct {
	PollIntervalSecs int `mapstructure:"poll_interval_secs"`
	Concurrency      int `mapstructure:"concurrency"`
	BatchSize        int `mapstructure:"batch_size"`
}

// NotifyConfig holds exception notification settings.
type NotifyConfig struct {
	Provider    string   `mapstructure:"provider"`
	Region      string   `mapstructure:"region"`
	FromAddress string   `mapstructure:"from_address"`
	FromName    string   `mapstructure:"from_name"`
	Recipients  []string `mapstructure:"recipients"`
}

// HeuristicsConfig holds every tunable threshold, weight and tolerance of the pipeline.
type HeuristicsConfig struct {
	DuplicateWindowDays         int     `mapstructure:"duplicate_window_days"`
	DuplicateThreshold          float64 `mapstructure:"duplicate_threshold"`
	DuplicateExceptionThreshold float64 `mapstructure:"duplicate_exception_threshold"`

	FraudSuspiciousScore float64 `mapstructure:"fraud_suspicious_score"`
	FraudExceptionScore  float64 `mapstructure:"fraud_exception_score"`

	WeightDuplicate float64 `mapstructure:"weight_duplicate"`
	WeightPrice     float64 `mapstructure:"weight_price"`
	WeightRush      float64 `mapstructure:"weight_rush"`
	WeightRound     float64 `mapstructure:"weight_round"`
	WeightNewVendor float64 `mapstructure:"weight_new_vendor"`
	WeightFrequency float64 `mapstructure:"weight_frequency"`

	PriceTolerancePct    float64 `mapstructure:"price_tolerance_pct"`
	QuantityTolerancePct float64 `mapstructure:"quantity_tolerance_pct"`
	AmountTolerance      float64 `mapstructure:"amount_tolerance"`

	LowConfidence    float64 `mapstructure:"low_confidence"`
	MatchFailScore   float64 `mapstructure:"match_fail_score"`
	AutoApproveLimit float64 `mapstructure:"auto_approve_limit"`
	MaxAgeDays       int     `mapstructure:"max_age_days"`
	ShortTermsDays   int     `mapstructure:"short_terms_days"`
}

// Load reads configuration from environment variables with the IVMS_ prefix.
// A .env file in the working directory is honoured when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("IVMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for key, env := range envBindings() {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("IVMS_SERVER_PORT") == "" {
		serverPort = ":" + port
	}
	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.Redis = RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		MaxFileSizeMB: v.GetInt64("s3.max_file_size_mb"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
		Output: v.GetString("log.output"),
	}
	cfg.ML = MLServiceConfig{
		Enabled:            v.GetBool("ml.enabled"),
		BaseURL:            strings.TrimRight(v.GetString("ml.base_url"), "/"),
		APIKey:             v.GetString("ml.api_key"),
		ExtractTimeoutSecs: v.GetInt("ml.extract_timeout_secs"),
		MatchTimeoutSecs:   v.GetInt("ml.match_timeout_secs"),
		FraudTimeoutSecs:   v.GetInt("ml.fraud_timeout_secs"),
		CodingTimeoutSecs:  v.GetInt("ml.coding_timeout_secs"),
	}
	cfg.OCR = OCRConfig{
		Provider:        v.GetString("ocr.provider"),
		CredentialsFile: v.GetString("ocr.credentials_file"),
		CredentialsJSON: v.GetString("ocr.credentials_json"),
	}
	cfg.Matching = MatchingConfig{
		Provider: v.GetString("matching.provider"),
	}
	cfg.Lock = LockConfig{
		Provider: v.GetString("lock.provider"),
		TTL:      v.GetDuration("lock.ttl"),
		Wait:     v.GetDuration("lock.wait"),
	}
	cfg.Queue = QueueConfig{
		PollIntervalSecs: v.GetInt("queue.poll_interval_secs"),
		Concurrency:      v.GetInt("queue.concurrency"),
		BatchSize:        v.GetInt("queue.batch_size"),
	}
	cfg.Notify = NotifyConfig{
		Provider:    v.GetString("notify.provider"),
		Region:      v.GetString("notify.region"),
		FromAddress: v.GetString("notify.from_address"),
		FromName:    v.GetString("notify.from_name"),
		Recipients:  splitList(v.GetString("notify.recipients")),
	}
	cfg.Heuristics = HeuristicsConfig{
		DuplicateWindowDays:         v.GetInt("heuristics.duplicate_window_days"),
		DuplicateThreshold:          v.GetFloat64("heuristics.duplicate_threshold"),
		DuplicateExceptionThreshold: v.GetFloat64("heuristics.duplicate_exception_threshold"),
		FraudSuspiciousScore:        v.GetFloat64("heuristics.fraud_suspicious_score"),
		FraudExceptionScore:         v.GetFloat64("heuristics.fraud_exception_score"),
		WeightDuplicate:             v.GetFloat64("heuristics.weight_duplicate"),
		WeightPrice:                 v.GetFloat64("heuristics.weight_price"),
		WeightRush:                  v.GetFloat64("heuristics.weight_rush"),
		WeightRound:                 v.GetFloat64("heuristics.weight_round"),
		WeightNewVendor:             v.GetFloat64("heuristics.weight_new_vendor"),
		WeightFrequency:             v.GetFloat64("heuristics.weight_frequency"),
		PriceTolerancePct:           v.GetFloat64("heuristics.price_tolerance_pct"),
		QuantityTolerancePct:        v.GetFloat64("heuristics.quantity_tolerance_pct"),
		AmountTolerance:             v.GetFloat64("heuristics.amount_tolerance"),
		LowConfidence:               v.GetFloat64("heuristics.low_confidence"),
		MatchFailScore:              v.GetFloat64("heuristics.match_fail_score"),
		AutoApproveLimit:            v.GetFloat64("heuristics.auto_approve_limit"),
		MaxAgeDays:                  v.GetInt("heuristics.max_age_days"),
		ShortTermsDays:              v.GetInt("heuristics.short_terms_days"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "ivms")
	v.SetDefault("db.password", "ivms_secret")
	v.SetDefault("db.name", "ivms_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "ivms-invoices")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.max_file_size_mb", 25)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	// ML service defaults
	v.SetDefault("ml.enabled", true)
	v.SetDefault("ml.base_url", "http://localhost:5000")
	v.SetDefault("ml.api_key", "")
	v.SetDefault("ml.extract_timeout_secs", 60)
	v.SetDefault("ml.match_timeout_secs", 30)
	v.SetDefault("ml.fraud_timeout_secs", 20)
	v.SetDefault("ml.coding_timeout_secs", 20)

	// OCR / matching / lock defaults
	v.SetDefault("ocr.provider", "noop")
	v.SetDefault("ocr.credentials_file", "")
	v.SetDefault("ocr.credentials_json", "")
	v.SetDefault("matching.provider", "service")
	v.SetDefault("lock.provider", "memory")
	v.SetDefault("lock.ttl", "10m")
	v.SetDefault("lock.wait", "30s")

	// Queue defaults
	v.SetDefault("queue.poll_interval_secs", 10)
	v.SetDefault("queue.concurrency", 5)
	v.SetDefault("queue.batch_size", 20)

	// Notification defaults
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("notify.region", "us-east-1")
	v.SetDefault("notify.from_address", "ap-alerts@ivms.local")
	v.SetDefault("notify.from_name", "IVMS")
	v.SetDefault("notify.recipients", "")

	// Heuristic defaults
	v.SetDefault("heuristics.duplicate_window_days", 7)
	v.SetDefault("heuristics.duplicate_threshold", 0.7)
	v.SetDefault("heuristics.duplicate_exception_threshold", 0.9)
	v.SetDefault("heuristics.fraud_suspicious_score", 30)
	v.SetDefault("heuristics.fraud_exception_score", 50)
	v.SetDefault("heuristics.weight_duplicate", 0.35)
	v.SetDefault("heuristics.weight_price", 0.25)
	v.SetDefault("heuristics.weight_rush", 0.15)
	v.SetDefault("heuristics.weight_round", 0.05)
	v.SetDefault("heuristics.weight_new_vendor", 0.10)
	v.SetDefault("heuristics.weight_frequency", 0.10)
	v.SetDefault("heuristics.price_tolerance_pct", 2)
	v.SetDefault("heuristics.quantity_tolerance_pct", 5)
	v.SetDefault("heuristics.amount_tolerance", 10)
	v.SetDefault("heuristics.low_confidence", 0.85)
	v.SetDefault("heuristics.match_fail_score", 0.8)
	v.SetDefault("heuristics.auto_approve_limit", 10000)
	v.SetDefault("heuristics.max_age_days", 180)
	v.SetDefault("heuristics.short_terms_days", 15)
}

// envBindings binds nested keys explicitly so they resolve without a config file.
func envBindings() map[string]string {
	keys := []string{
		"server.port", "server.read_timeout", "server.write_timeout", "server.environment",
		"db.host", "db.port", "db.user", "db.password", "db.name", "db.sslmode", "db.max_open", "db.max_idle",
		"redis.addr", "redis.password", "redis.db",
		"s3.region", "s3.bucket", "s3.endpoint", "s3.access_key", "s3.secret_key", "s3.max_file_size_mb",
		"log.level", "log.format", "log.output",
		"ml.enabled", "ml.base_url", "ml.api_key",
		"ml.extract_timeout_secs", "ml.match_timeout_secs", "ml.fraud_timeout_secs", "ml.coding_timeout_secs",
		"ocr.provider", "ocr.credentials_file", "ocr.credentials_json",
		"matching.provider",
		"lock.provider", "lock.ttl", "lock.wait",
		"queue.poll_interval_secs", "queue.concurrency", "queue.batch_size",
		"notify.provider", "notify.region", "notify.from_address", "notify.from_name", "notify.recipients",
		"heuristics.duplicate_window_days", "heuristics.duplicate_threshold", "heuristics.duplicate_exception_threshold",
		"heuristics.fraud_suspicious_score", "heuristics.fraud_exception_score",
		"heuristics.weight_duplicate", "heuristics.weight_price", "heuristics.weight_rush",
		"heuristics.weight_round", "heuristics.weight_new_vendor", "heuristics.weight_frequency",
		"heuristics.price_tolerance_pct", "heuristics.quantity_tolerance_pct", "heuristics.amount_tolerance",
		"heuristics.low_confidence", "heuristics.match_fail_score", "heuristics.auto_approve_limit",
		"heuristics.max_age_days", "heuristics.short_terms_days",
	}
	bindings := make(map[string]string, len(keys))
	for _, k := range keys {
		bindings[k] = "IVMS_" + strings.ToUpper(strings.ReplaceAll(k, ".", "_"))
	}
	return bindings
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
