// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

type Config struct {
	RPCList           []string `mapstructure:"rpc_list"`
	PriceFeedURL      string   `mapstructure:"price_feed_url"`
	PostgresURL       string   `mapstructure:"postgres_url"`
	MetricsAddr       string   `mapstructure:"metrics_addr"`
	WalletsFile       string   `mapstructure:"wallets_file"`
	MonitorIntervalMs int      `mapstructure:"monitor_interval_ms"`
	TradeIntervalMs   int      `mapstructure:"trade_interval_ms"`
	MaxPriceAgeMs     int      `mapstructure:"max_price_age_ms"`
	Retries           int      `mapstructure:"retries"`
	DebugLogging      bool     `mapstructure:"debug_logging"`
}

const (
	DefaultMonitorIntervalMs = 3000
	DefaultTradeIntervalMs   = 5000
	DefaultMaxPriceAgeMs     = 10000
	DefaultMetricsAddr       = ":9090"
	DefaultRetries           = 3
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"monitor_interval_ms": DefaultMonitorIntervalMs,
		"trade_interval_ms":   DefaultTradeIntervalMs,
		"max_price_age_ms":    DefaultMaxPriceAgeMs,
		"metrics_addr":        DefaultMetricsAddr,
		"retries":             DefaultRetries,
		"wallets_file":        "configs/wallets.yaml",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	if cfg.PriceFeedURL != "" {
		if err := validateURLWithCache(cfg.PriceFeedURL, "ws"); err != nil {
			return errors.New("invalid price feed URL protocol")
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.MonitorIntervalMs <= 0 {
		return errors.New("invalid monitor_interval_ms")
	}
	if cfg.TradeIntervalMs <= 0 {
		return errors.New("invalid trade_interval_ms")
	}
	if cfg.MaxPriceAgeMs <= 0 {
		return errors.New("invalid max_price_age_ms")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("VOLUME_BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envPostgres := v.GetString("POSTGRES_URL")
	if envPostgres != "" {
		cfg.PostgresURL = envPostgres
	}

	envRPCList := v.GetString("RPC_LIST")
	if envRPCList != "" {
		rpcs := strings.Split(envRPCList, ",")
		var cleanRPCs []string
		for _, rpc := range rpcs {
			clean := strings.TrimSpace(rpc)
			if clean != "" {
				cleanRPCs = append(cleanRPCs, clean)
			}
		}
		if len(cleanRPCs) > 0 {
			cfg.RPCList = cleanRPCs
		}
	}
	return nil
}
