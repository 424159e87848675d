package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Port    string `mapstructure:"port"`
		Env     string `mapstructure:"env"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"app"`
	DB struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"db"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
	} `mapstructure:"redis"`
	Cache struct {
		ProfileTTL      time.Duration `mapstructure:"profile_ttl"`
		ViewDedupWindow time.Duration `mapstructure:"view_dedup_window"`
	} `mapstructure:"cache"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`
	Auth struct {
		JWTSecret     string        `mapstructure:"jwt_secret"`
		TokenLifespan time.Duration `mapstructure:"token_lifespan"`
	} `mapstructure:"auth"`
	Billing struct {
		WebhookSecret string `mapstructure:"webhook_secret"`
	} `mapstructure:"billing"`
	Profile struct {
		SlugCooldown time.Duration `mapstructure:"slug_cooldown"`
	} `mapstructure:"profile"`
	Domains struct {
		CnameTarget      string        `mapstructure:"cname_target"`
		CheckTimeout     time.Duration `mapstructure:"check_timeout"`
		MaxCheckFailures int           `mapstructure:"max_check_failures"`
		RecheckInterval  time.Duration `mapstructure:"recheck_interval"`
		RecheckBatchSize int           `mapstructure:"recheck_batch_size"`
		CertAuthorityURL string        `mapstructure:"cert_authority_url"`
	} `mapstructure:"domains"`
	Cloudinary struct {
		CloudName string `mapstructure:"cloud_name"`
		ApiKey    string `mapstructure:"api_key"`
		ApiSecret string `mapstructure:"api_secret"`
	} `mapstructure:"cloudinary"`
	Jaeger struct {
		OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	} `mapstructure:"jaeger"`
}

func LoadConfig(paths ...string) (cfg Config, err error) {

	err = godotenv.Load()
	if err != nil {
		log.Println("warning: .env file not found, use default.")
	}

	viper.AddConfigPath(".")
	for _, p := range paths {
		viper.AddConfigPath(p)
	}
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	if err = viper.ReadInConfig(); err != nil {
		log.Printf("note: config.yaml not found, read .env only. Error: %v", err)
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.BindEnv("app.port", "APP_PORT")
	viper.BindEnv("app.env", "APP_ENV")
	viper.BindEnv("app.base_url", "APP_BASE_URL")
	viper.BindEnv("db.dsn", "DB_DSN")
	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	viper.BindEnv("cache.profile_ttl", "CACHE_PROFILE_TTL")
	viper.BindEnv("cache.view_dedup_window", "CACHE_VIEW_DEDUP_WINDOW")
	viper.BindEnv("auth.jwt_secret", "JWT_SECRET")
	viper.BindEnv("auth.token_lifespan", "TOKEN_LIFESPAN")
	viper.BindEnv("billing.webhook_secret", "BILLING_WEBHOOK_SECRET")
	viper.BindEnv("profile.slug_cooldown", "PROFILE_SLUG_COOLDOWN")
	viper.BindEnv("domains.cname_target", "DOMAINS_CNAME_TARGET")
	viper.BindEnv("domains.check_timeout", "DOMAINS_CHECK_TIMEOUT")
	viper.BindEnv("domains.max_check_failures", "DOMAINS_MAX_CHECK_FAILURES")
	viper.BindEnv("domains.recheck_interval", "DOMAINS_RECHECK_INTERVAL")
	viper.BindEnv("domains.recheck_batch_size", "DOMAINS_RECHECK_BATCH_SIZE")
	viper.BindEnv("domains.cert_authority_url", "DOMAINS_CERT_AUTHORITY_URL")
	viper.BindEnv("cloudinary.cloud_name", "CLOUDINARY_CLOUD_NAME")
	viper.BindEnv("cloudinary.api_key", "CLOUDINARY_API_KEY")
	viper.BindEnv("cloudinary.api_secret", "CLOUDINARY_API_SECRET")
	viper.BindEnv("jaeger.otlp_endpoint", "JAEGER_OTLP_ENDPOINT")

	if err = viper.Unmarshal(&cfg); err != nil {
		return
	}

	applyDefaults(&cfg)
	return
}

func applyDefaults(cfg *Config) {
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "https://cvlink.to"
	}
	if cfg.Cache.ProfileTTL == 0 {
		cfg.Cache.ProfileTTL = 5 * time.Minute
	}
	if cfg.Cache.ViewDedupWindow == 0 {
		cfg.Cache.ViewDedupWindow = 30 * time.Minute
	}
	if cfg.Profile.SlugCooldown == 0 {
		cfg.Profile.SlugCooldown = 30 * 24 * time.Hour
	}
	if cfg.Domains.CnameTarget == "" {
		cfg.Domains.CnameTarget = "custom.cvlink.to"
	}
	if cfg.Domains.CheckTimeout == 0 {
		cfg.Domains.CheckTimeout = 10 * time.Second
	}
	if cfg.Domains.MaxCheckFailures == 0 {
		cfg.Domains.MaxCheckFailures = 5
	}
	if cfg.Domains.RecheckInterval == 0 {
		cfg.Domains.RecheckInterval = 10 * time.Minute
	}
	if cfg.Domains.RecheckBatchSize == 0 {
		cfg.Domains.RecheckBatchSize = 50
	}
}
