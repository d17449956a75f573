package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "TOKENWATCH"

// Config holds settings for the run command, loaded from flags, env, or
// config file.
type Config struct {
	Store      string
	PGDSN      string
	SQLitePath string

	MoralisAPIKey  string
	MoralisBaseURL string
	MoralisChain   string
	FetchTimeout   time.Duration

	FetchInterval        time.Duration
	TokenRefreshInterval time.Duration
	Lookback             time.Duration
	LookbackTolerance    time.Duration
	PercentageThreshold  float64
	PercentageAlertEmail string
	SkipOverlapping      bool
	InitRetries          int
	InitBackoff          time.Duration
	LookupConcurrency    int

	Notifier        string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	MailFrom        string
	PushbulletToken string
	PushbulletURL   string
	OutboxPath      string
	NotifyTimeout   time.Duration

	HTTPAddr string
	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setStoreDefaults(v)
	v.SetDefault("moralis-base-url", "https://deep-index.moralis.io/api/v2.2")
	v.SetDefault("moralis-chain", "eth")
	v.SetDefault("fetch-timeout", 30*time.Second)
	v.SetDefault("fetch-interval", 5*time.Minute)
	v.SetDefault("token-refresh-interval", time.Duration(0))
	v.SetDefault("lookback", time.Hour)
	v.SetDefault("lookback-tolerance", time.Minute)
	v.SetDefault("percentage-threshold", 3.0)
	v.SetDefault("skip-overlapping", false)
	v.SetDefault("init-retries", 5)
	v.SetDefault("init-backoff", time.Second)
	v.SetDefault("lookup-concurrency", 8)
	v.SetDefault("notifier", "smtp")
	v.SetDefault("smtp-port", 587)
	v.SetDefault("mail-from", "no reply <noreply@tokenwatch.local>")
	v.SetDefault("outbox-path", "./data/outbox.jsonl")
	v.SetDefault("notify-timeout", 15*time.Second)
	v.SetDefault("http-addr", ":8080")

	if err := readConfig(v, cfgFile, flags); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Store:      strings.ToLower(v.GetString("store")),
		PGDSN:      v.GetString("pg-dsn"),
		SQLitePath: v.GetString("sqlite-path"),

		MoralisAPIKey:  v.GetString("moralis-api-key"),
		MoralisBaseURL: v.GetString("moralis-base-url"),
		MoralisChain:   v.GetString("moralis-chain"),
		FetchTimeout:   v.GetDuration("fetch-timeout"),

		FetchInterval:        v.GetDuration("fetch-interval"),
		TokenRefreshInterval: v.GetDuration("token-refresh-interval"),
		Lookback:             v.GetDuration("lookback"),
		LookbackTolerance:    v.GetDuration("lookback-tolerance"),
		PercentageThreshold:  v.GetFloat64("percentage-threshold"),
		PercentageAlertEmail: v.GetString("percentage-alert-email"),
		SkipOverlapping:      v.GetBool("skip-overlapping"),
		InitRetries:          v.GetInt("init-retries"),
		InitBackoff:          v.GetDuration("init-backoff"),
		LookupConcurrency:    v.GetInt("lookup-concurrency"),

		Notifier:        strings.ToLower(v.GetString("notifier")),
		SMTPHost:        v.GetString("smtp-host"),
		SMTPPort:        v.GetInt("smtp-port"),
		SMTPUsername:    v.GetString("smtp-username"),
		SMTPPassword:    v.GetString("smtp-password"),
		MailFrom:        v.GetString("mail-from"),
		PushbulletToken: v.GetString("pushbullet-token"),
		PushbulletURL:   v.GetString("pushbullet-url"),
		OutboxPath:      v.GetString("outbox-path"),
		NotifyTimeout:   v.GetDuration("notify-timeout"),

		HTTPAddr: v.GetString("http-addr"),
		LogLevel: v.GetString("log-level"),
	}

	return cfg, cfg.Validate()
}

// Validate checks settings that have no usable default.
func (c Config) Validate() error {
	if err := validateStore(c.Store, c.PGDSN, c.SQLitePath); err != nil {
		return err
	}
	if c.MoralisAPIKey == "" {
		return fmt.Errorf("moralis-api-key is required")
	}
	if c.FetchInterval <= 0 {
		return fmt.Errorf("fetch-interval must be positive")
	}
	if c.PercentageThreshold <= 0 {
		return fmt.Errorf("percentage-threshold must be positive")
	}
	if c.PercentageAlertEmail == "" {
		return fmt.Errorf("percentage-alert-email is required")
	}
	switch c.Notifier {
	case "smtp":
		if c.SMTPHost == "" {
			return fmt.Errorf("smtp-host is required for the smtp notifier")
		}
	case "pushbullet":
		if c.PushbulletToken == "" {
			return fmt.Errorf("pushbullet-token is required for the pushbullet notifier")
		}
	case "file":
		if c.OutboxPath == "" {
			return fmt.Errorf("outbox-path is required for the file notifier")
		}
	case "log":
	default:
		return fmt.Errorf("unknown notifier %q (smtp, pushbullet, file, log)", c.Notifier)
	}
	return nil
}

func setStoreDefaults(v *viper.Viper) {
	v.SetDefault("store", "postgres")
	v.SetDefault("sqlite-path", "./data/tokenwatch.db")
	v.SetDefault("log-level", "info")
}

func validateStore(store, dsn, sqlitePath string) error {
	switch store {
	case "postgres":
		if dsn == "" {
			return fmt.Errorf("pg-dsn is required for the postgres store")
		}
	case "sqlite":
		if sqlitePath == "" {
			return fmt.Errorf("sqlite-path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown store %q (postgres, sqlite)", store)
	}
	return nil
}

// readConfig wires env, flags and the optional config file into v.
func readConfig(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
