package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the overall configuration for the gateway.
type Config struct {
	Server     ServerConfig       `yaml:"server"`
	Chains     []ChainNode        `yaml:"chains"`
	Wallet     WalletConfig       `yaml:"wallet"`
	Pyth       PythConfig         `yaml:"pyth"`
	PriceSvc   PriceServiceConfig `yaml:"priceService"`
	Settings   SettingsConfig     `yaml:"settings"`
	RpcClient  RpcClientConfig    `yaml:"rpcClient"`
	Logging    LoggingConfig      `yaml:"logging"`
	Encryption EncryptionConfig   `yaml:"encryption"`
}

// ServerConfig holds the REST server configuration.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
}

// TokenNode describes one configured token. Addresses stay strings here and
// are validated when the registry is built.
type TokenNode struct {
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	IconName string `yaml:"iconName"`
}

// ChainNode holds the configuration for a specific chain. Adding a chain
// means adding one such record; nothing outside this surface may hardcode
// chain identities.
type ChainNode struct {
	ChainID          int64                `yaml:"chainId"`
	Name             string               `yaml:"name"`
	DisplayName      string               `yaml:"displayName"`
	NativeSymbol     string               `yaml:"nativeSymbol"`
	NativeDecimals   uint8                `yaml:"nativeDecimals"`
	Endpoint         string               `yaml:"endpoint"`
	FallbackRPCURLs  []string             `yaml:"fallbackRpcUrls"`
	BlockExplorerURL string               `yaml:"blockExplorerUrl"`
	Router           string               `yaml:"router"`
	Tokens           map[string]TokenNode `yaml:"tokens"`
}

// WalletConfig identifies the account the gateway operates for. The private
// key is read from the named environment variable; when it is absent the
// gateway runs with the read capability only.
type WalletConfig struct {
	Address       string `yaml:"address"`
	PrivateKeyEnv string `yaml:"privateKeyEnv"`
}

// PythConfig holds the configuration for the Pyth Hermes price-feed client.
type PythConfig struct {
	BaseURL              string             `yaml:"baseURL"`
	RequestTimeoutMillis int64              `yaml:"requestTimeoutMillis"`
	FeedIDs              map[string]string  `yaml:"feedIds"`
	FixedPricesUSD       map[string]float64 `yaml:"fixedPricesUsd"`
}

// PriceServiceConfig holds configuration for the price service.
type PriceServiceConfig struct {
	CacheTTLSeconds     int `yaml:"cacheTtlSeconds"`
	PollIntervalSeconds int `yaml:"pollIntervalSeconds"`
	RatePerSecond       int `yaml:"ratePerSecond"`
	RateBurst           int `yaml:"rateBurst"`
}

// SettingsConfig tells the settings store where to persist per-flow records.
type SettingsConfig struct {
	Dir string `yaml:"dir"`
}

// RpcClientConfig holds configuration for chain RPC clients.
type RpcClientConfig struct {
	ConnectTimeoutMs      int64  `yaml:"connectTimeoutMs"`
	CallTimeoutMs         int64  `yaml:"callTimeoutMs"`
	ConfirmTimeoutSec     int64  `yaml:"confirmTimeoutSec"`
	ConfirmPollIntervalMs int64  `yaml:"confirmPollIntervalMs"`
	DefaultGasLimit       uint64 `yaml:"defaultGasLimit"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// EncryptionConfig holds configuration for the transaction encryption
// transform applied before broadcast.
type EncryptionConfig struct {
	RequestTimeoutMillis int64 `yaml:"requestTimeoutMillis"`
}

// LoadConfig loads configuration from a YAML file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if len(cfg.Chains) == 0 {
		return nil, fmt.Errorf("no chains configured in %s", path)
	}
	for _, chain := range cfg.Chains {
		if chain.Endpoint == "" {
			return nil, fmt.Errorf("chain %q (chainId %d) has no RPC endpoint", chain.Name, chain.ChainID)
		}
		if chain.Router == "" {
			logrus.Warnf("Chain %q (chainId %d) has no router configured; swap and pool flows will treat it as unsupported.", chain.Name, chain.ChainID)
		}
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60
	}
	if cfg.Pyth.BaseURL == "" {
		cfg.Pyth.BaseURL = "https://hermes.pyth.network"
		logrus.Infof("Pyth.BaseURL not set, defaulting to %s", cfg.Pyth.BaseURL)
	}
	if cfg.Pyth.RequestTimeoutMillis == 0 {
		cfg.Pyth.RequestTimeoutMillis = 10000
	}
	if cfg.PriceSvc.CacheTTLSeconds == 0 {
		cfg.PriceSvc.CacheTTLSeconds = 30
	}
	if cfg.PriceSvc.PollIntervalSeconds == 0 {
		cfg.PriceSvc.PollIntervalSeconds = 30
	}
	if cfg.PriceSvc.RatePerSecond == 0 {
		cfg.PriceSvc.RatePerSecond = 5
	}
	if cfg.PriceSvc.RateBurst == 0 {
		cfg.PriceSvc.RateBurst = 10
	}
	if cfg.Settings.Dir == "" {
		cfg.Settings.Dir = "data/settings"
	}
	if cfg.RpcClient.ConnectTimeoutMs == 0 {
		cfg.RpcClient.ConnectTimeoutMs = 10000
	}
	if cfg.RpcClient.CallTimeoutMs == 0 {
		cfg.RpcClient.CallTimeoutMs = 15000
	}
	if cfg.RpcClient.ConfirmTimeoutSec == 0 {
		cfg.RpcClient.ConfirmTimeoutSec = 180
	}
	if cfg.RpcClient.ConfirmPollIntervalMs == 0 {
		cfg.RpcClient.ConfirmPollIntervalMs = 2000
	}
	if cfg.RpcClient.DefaultGasLimit == 0 {
		cfg.RpcClient.DefaultGasLimit = 300000
	}
	if cfg.Encryption.RequestTimeoutMillis == 0 {
		cfg.Encryption.RequestTimeoutMillis = 10000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
