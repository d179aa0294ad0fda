package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Signalflow SignalflowConfig `yaml:"signalflow"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	API        APIConfig        `yaml:"api"`
	Queue      QueueConfig      `yaml:"queue"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Enrich     EnrichConfig     `yaml:"enrich"`
	Admission  AdmissionConfig  `yaml:"admission"`
	Tiers      TiersConfig      `yaml:"tiers"`
	Gate       GateConfig       `yaml:"gate"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Store      StoreConfig      `yaml:"store"`
	Audit      AuditConfig      `yaml:"audit"`
}

type SignalflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	Output        string `yaml:"output"`
	MaxAge        int    `yaml:"max_age"`
	DashboardName string `yaml:"dashboard_name"`
}

type MetricsConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Region         string        `yaml:"region"`
	Namespace      string        `yaml:"namespace"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

type APIConfig struct {
	Address       string        `yaml:"address"`
	AllowedChains []string      `yaml:"allowed_chains"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
}

type QueueConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type IngestConfig struct {
	Kafka KafkaIngestConfig `yaml:"kafka"`
	Heat  HeatIngestConfig  `yaml:"heat"`
}

type KafkaIngestConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Brokers        []string      `yaml:"brokers"`
	Topics         []string      `yaml:"topics"`
	GroupID        string        `yaml:"group_id"`
	EventType      string        `yaml:"event_type"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	SubmitURL      string        `yaml:"submit_url"`
}

type HeatIngestConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Chain             string        `yaml:"chain"`
	IntervalMin       time.Duration `yaml:"interval_min"`
	IntervalMax       time.Duration `yaml:"interval_max"`
	RankSize          int           `yaml:"rank_size"`
	BatchSize         int           `yaml:"batch_size"`
	MaxTokensPerCycle int           `yaml:"max_tokens_per_cycle"`
	DetailConcurrency int           `yaml:"detail_concurrency"`
}

type EnrichConfig struct {
	Search     SearchConfig     `yaml:"search"`
	Meta       MetaConfig       `yaml:"meta"`
	SmartMoney SmartMoneyConfig `yaml:"smart_money"`
	TokenInfo  TokenInfoConfig  `yaml:"token_info"`
	RPC        RPCConfig        `yaml:"rpc"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

type SearchConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Index    string        `yaml:"index"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

type MetaConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIToken string        `yaml:"api_token"`
	Timeout  time.Duration `yaml:"timeout"`
}

type SmartMoneyConfig struct {
	BaseURL     string        `yaml:"base_url"`
	TrendWindow string        `yaml:"trend_window"`
	Timeout     time.Duration `yaml:"timeout"`
}

type TokenInfoConfig struct {
	BaseURL string        `yaml:"base_url"`
	Brand   string        `yaml:"brand"`
	Timeout time.Duration `yaml:"timeout"`
}

type RPCConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	BackupEndpoint string        `yaml:"backup_endpoint"`
	Timeout        time.Duration `yaml:"timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type AdmissionConfig struct {
	ExcludedAddresses []string      `yaml:"excluded_addresses"`
	DedupTTL          time.Duration `yaml:"dedup_ttl"`
	PremiumDedupTTL   time.Duration `yaml:"premium_dedup_ttl"`
}

type TiersConfig struct {
	RecentTokenDays     int             `yaml:"recent_token_days"`
	MaxTier             int             `yaml:"max_tier"`
	UniqueAddressesHour int             `yaml:"unique_addresses_per_hour"`
	Thresholds          []TierThreshold `yaml:"thresholds"`
}

type TierThreshold struct {
	MarketCapMin float64 `yaml:"market_cap_min"`
	M5TxnMin     int     `yaml:"m5_txn_min"`
	M5VolumeMin  float64 `yaml:"m5_volume_min"`
}

type GateConfig struct {
	IntervalMin time.Duration `yaml:"interval_min"`
	IntervalMax time.Duration `yaml:"interval_max"`
}

type DispatchConfig struct {
	Languages       map[string]LanguageTargets `yaml:"languages"`
	TargetsAPI      TargetsAPIConfig           `yaml:"targets_api"`
	Retry           RetryConfig                `yaml:"retry"`
	ContentCacheTTL time.Duration              `yaml:"content_cache_ttl"`
	ClaimTTL        time.Duration              `yaml:"claim_ttl"`
	PublishedTTL    time.Duration              `yaml:"published_ttl"`
	TradeURL        string                     `yaml:"trade_url"`
	ChartURL        string                     `yaml:"chart_url"`
}

type LanguageTargets struct {
	GroupID       string `yaml:"group_id"`
	HighFreqTopic string `yaml:"high_freq_topic"`
	LowFreqTopic  string `yaml:"low_freq_topic"`
}

type TargetsAPIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type RetryConfig struct {
	NormalAttempts  int           `yaml:"normal_attempts"`
	PremiumAttempts int           `yaml:"premium_attempts"`
	BaseDelay       time.Duration `yaml:"base_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
}

type TelegramConfig struct {
	BotToken   string        `yaml:"bot_token"`
	APITimeout time.Duration `yaml:"api_timeout"`
}

type StoreConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuditConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	Prefix          string        `yaml:"prefix"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	Compression     string        `yaml:"compression"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
	BatchSize       int           `yaml:"batch_size"`
}

const defaultConfigPath = "config/config.yml"

// envConfigPaths maps application environments to their dedicated
// configuration files. When the caller passes the default path and a
// file for the current environment exists, that file wins.
var envConfigPaths = map[string]string{
	environmentDevelopment: "config/config.development.yml",
	environmentStaging:     "config/config.staging.yml",
	environmentProduction:  "config/config.production.yml",
}

func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, defaultConfigPath, envConfigPaths)

	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Queue: QueueConfig{
			PollInterval: 100 * time.Millisecond,
		},
		Admission: AdmissionConfig{
			DedupTTL:        10 * time.Minute,
			PremiumDedupTTL: time.Hour,
		},
		Dispatch: DispatchConfig{
			Retry: RetryConfig{
				NormalAttempts:  3,
				PremiumAttempts: 1,
				BaseDelay:       2 * time.Second,
				MaxDelay:        30 * time.Second,
			},
			ContentCacheTTL: 3 * time.Minute,
			ClaimTTL:        time.Hour,
			PublishedTTL:    time.Hour,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override secrets from environment variables if available
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		config.Telegram.BotToken = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		config.Store.Redis.Addr = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		config.Store.Redis.Password = strings.TrimSpace(v)
	}
	if v := os.Getenv("SEARCH_USERNAME"); v != "" {
		config.Enrich.Search.Username = strings.TrimSpace(v)
	}
	if v := os.Getenv("SEARCH_PASSWORD"); v != "" {
		config.Enrich.Search.Password = strings.TrimSpace(v)
	}
	if config.Audit.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Audit.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Audit.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Audit.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("AUDIT_BUCKET"); v != "" {
			config.Audit.Bucket = strings.TrimSpace(v)
		}
	}

	config.Audit.Bucket = strings.TrimSpace(config.Audit.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Signalflow.Name == "" {
		return fmt.Errorf("signalflow.name is required")
	}

	if cfg.Signalflow.Version == "" {
		return fmt.Errorf("signalflow.version is required")
	}

	if cfg.API.Address == "" {
		return fmt.Errorf("api.address is required")
	}
	if len(cfg.API.AllowedChains) == 0 {
		return fmt.Errorf("api.allowed_chains must not be empty")
	}

	if cfg.Queue.PollInterval <= 0 {
		return fmt.Errorf("queue.poll_interval must be greater than 0")
	}

	if cfg.Admission.DedupTTL <= 0 {
		return fmt.Errorf("admission.dedup_ttl must be greater than 0")
	}
	if cfg.Admission.PremiumDedupTTL <= 0 {
		return fmt.Errorf("admission.premium_dedup_ttl must be greater than 0")
	}

	if len(cfg.Tiers.Thresholds) == 0 {
		return fmt.Errorf("tiers.thresholds must not be empty")
	}
	for i, th := range cfg.Tiers.Thresholds {
		if th.MarketCapMin <= 0 {
			return fmt.Errorf("tiers.thresholds[%d].market_cap_min must be greater than 0", i)
		}
		if i > 0 && th.MarketCapMin <= cfg.Tiers.Thresholds[i-1].MarketCapMin {
			return fmt.Errorf("tiers.thresholds must be ordered by ascending market_cap_min")
		}
	}
	if cfg.Tiers.MaxTier <= 0 || cfg.Tiers.MaxTier > len(cfg.Tiers.Thresholds) {
		return fmt.Errorf("tiers.max_tier must be between 1 and %d", len(cfg.Tiers.Thresholds))
	}
	if cfg.Tiers.UniqueAddressesHour <= 0 {
		return fmt.Errorf("tiers.unique_addresses_per_hour must be greater than 0")
	}
	if cfg.Tiers.RecentTokenDays <= 0 {
		return fmt.Errorf("tiers.recent_token_days must be greater than 0")
	}

	if cfg.Gate.IntervalMin <= 0 || cfg.Gate.IntervalMax < cfg.Gate.IntervalMin {
		return fmt.Errorf("gate.interval_min and gate.interval_max must describe a valid range")
	}

	if cfg.Dispatch.Retry.NormalAttempts <= 0 || cfg.Dispatch.Retry.PremiumAttempts <= 0 {
		return fmt.Errorf("dispatch.retry attempts must be greater than 0")
	}
	if cfg.Dispatch.Retry.BaseDelay <= 0 {
		return fmt.Errorf("dispatch.retry.base_delay must be greater than 0")
	}

	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 {
			return fmt.Errorf("ingest.kafka.brokers is required when kafka ingest is enabled")
		}
		if len(cfg.Ingest.Kafka.Topics) == 0 {
			return fmt.Errorf("ingest.kafka.topics is required when kafka ingest is enabled")
		}
		if cfg.Ingest.Kafka.GroupID == "" {
			return fmt.Errorf("ingest.kafka.group_id is required when kafka ingest is enabled")
		}
	}

	if cfg.Ingest.Heat.Enabled {
		if cfg.Ingest.Heat.IntervalMin <= 0 || cfg.Ingest.Heat.IntervalMax < cfg.Ingest.Heat.IntervalMin {
			return fmt.Errorf("ingest.heat interval bounds must describe a valid range")
		}
		if cfg.Ingest.Heat.DetailConcurrency <= 0 {
			return fmt.Errorf("ingest.heat.detail_concurrency must be greater than 0")
		}
	}

	if cfg.Audit.Enabled {
		if cfg.Audit.Bucket == "" {
			return fmt.Errorf("audit.bucket is required when audit is enabled")
		}
		if cfg.Audit.Region == "" {
			return fmt.Errorf("audit.region is required when audit is enabled")
		}
	}

	if IsProductionLike(AppEnvironment()) && cfg.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required in %s", AppEnvironment())
	}

	return nil
}
