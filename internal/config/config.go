package config

import (
	"bytes"
	_ "embed"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig      `mapstructure:"http"`
	Log        LogConfig       `mapstructure:"log"`
	MySQL      DatabaseConfig  `mapstructure:"mysql"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Redis      RedisConfig     `mapstructure:"redis"`
	WhatsApp   WhatsAppConfig  `mapstructure:"whatsapp"`
	Relay      RelayConfig     `mapstructure:"relay"`
	Scheduler  SchedulerConfig `mapstructure:"scheduler"`
	Templates  TemplatesConfig `mapstructure:"templates"`
	Reports    ReportsConfig   `mapstructure:"reports"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type WhatsAppConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	PhoneNumberID string        `mapstructure:"phone_number_id"`
	AccessToken   string        `mapstructure:"access_token"`
	AppSecret     string        `mapstructure:"app_secret"`
	VerifyToken   string        `mapstructure:"verify_token"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Breaker       BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	FailThreshold int           `mapstructure:"fail_threshold"`
	OpenFor       time.Duration `mapstructure:"open_for"`
}

// RelayConfig describes the optional downstream consumers of verified
// webhook events: a Kafka topic and/or a signed HTTP forward.
type RelayConfig struct {
	Brokers []string      `mapstructure:"brokers"`
	Topic   string        `mapstructure:"topic"`
	URL     string        `mapstructure:"url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SchedulerConfig struct {
	Timezone         string        `mapstructure:"timezone"`
	LocationInterval time.Duration `mapstructure:"location_interval"`
	SupportInterval  time.Duration `mapstructure:"support_interval"`
	CatchupInterval  time.Duration `mapstructure:"catchup_interval"`
	PreOpenOffsetMin int           `mapstructure:"pre_open_offset_min"`
	ToleranceMin     int           `mapstructure:"tolerance_min"`
	CatchupHour      int           `mapstructure:"catchup_hour"`
	InactiveDays     int           `mapstructure:"inactive_days"`
	SendGap          time.Duration `mapstructure:"send_gap"`
	IdempotencyTTL   time.Duration `mapstructure:"idempotency_ttl"`
}

type TemplatesConfig struct {
	PreOpenReminder string `mapstructure:"pre_open_reminder"`
	OpenReminder    string `mapstructure:"open_reminder"`
	SupportPrompt   string `mapstructure:"support_prompt"`
}

type ReportsConfig struct {
	APIKey string `mapstructure:"api_key"`
	RPS    int    `mapstructure:"rps"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (VENGAGE_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (VENGAGE_*)
	v.SetEnvPrefix("VENGAGE")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
