// Package config loads votectl settings from YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"voting-token-client/internal/ethereum"
	"voting-token-client/internal/log"
	"voting-token-client/internal/notify"
	"voting-token-client/internal/reader"
	"voting-token-client/internal/wallet"
)

// Environment variables read by ApplyEnvOverrides.
const (
	EnvRPCEndpoint      = "VOTING_RPC_ENDPOINT"
	EnvWSEndpoint       = "VOTING_WS_ENDPOINT"
	EnvAddress          = "VOTING_ADDRESS"
	EnvKeystore         = "VOTING_KEYSTORE"
	EnvKeystorePassword = "VOTING_KEYSTORE_PASSWORD"
	EnvPasswordFile     = "VOTING_KEYSTORE_PASSWORD_FILE"
	EnvLogLevel         = "VOTING_LOG_LEVEL"
	EnvMetricsAddr      = "VOTING_METRICS_ADDR"
	EnvConfirmations    = "VOTING_CONFIRMATIONS"
)

// DefaultPaths are tried in order when no config path is given.
var DefaultPaths = []string{"votectl.yaml", "configs/votectl.yaml"}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	RPC      RPCConfig      `yaml:"rpc"`
	Contract ContractConfig `yaml:"contract"`
	Wallet   WalletConfig   `yaml:"wallet"`
	Reader   ReaderConfig   `yaml:"reader"`
	Finality FinalityConfig `yaml:"finality"`
	Notify   NotifyConfig   `yaml:"notify"`
	Log      log.Config     `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type RPCConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	WSEndpoint string        `yaml:"wsEndpoint"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"maxRetries"`
	RetryDelay time.Duration `yaml:"retryDelay"`
	MaxDelay   time.Duration `yaml:"maxDelay"`
}

type ContractConfig struct {
	Address string `yaml:"address"`
}

type WalletConfig struct {
	Keystore     string  `yaml:"keystore"`
	Password     string  `yaml:"-"`
	PasswordFile string  `yaml:"passwordFile"`
	GasFactor    float64 `yaml:"gasFactor"`
}

type ReaderConfig struct {
	Concurrency int   `yaml:"concurrency"`
	MaxRounds   int64 `yaml:"maxRounds"`
	// RateLimit is reads per second. Zero means unlimited.
	RateLimit float64 `yaml:"rateLimit"`
	Burst     int     `yaml:"burst"`
}

type FinalityConfig struct {
	Confirmations   uint64        `yaml:"confirmations"`
	Timeout         time.Duration `yaml:"timeout"`
	PollInterval    time.Duration `yaml:"pollInterval"`
	MaxPollInterval time.Duration `yaml:"maxPollInterval"`
}

type NotifyConfig struct {
	ToastTTL time.Duration `yaml:"toastTTL"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a Config with every tunable set.
func Default() Config {
	fin := ethereum.DefaultFinalityConfig()
	return Config{
		RPC: RPCConfig{
			Endpoint:   "http://127.0.0.1:8545",
			Timeout:    ethereum.DefaultTimeout,
			MaxRetries: ethereum.DefaultMaxRetries,
			RetryDelay: ethereum.DefaultRetryDelay,
			MaxDelay:   ethereum.DefaultMaxDelay,
		},
		Wallet: WalletConfig{
			GasFactor: wallet.DefaultGasFactor,
		},
		Reader: ReaderConfig{
			Concurrency: reader.DefaultConcurrency,
			MaxRounds:   reader.DefaultMaxRounds,
			Burst:       1,
		},
		Finality: FinalityConfig{
			Confirmations:   fin.Confirmations,
			Timeout:         fin.Timeout,
			PollInterval:    fin.PollInterval,
			MaxPollInterval: fin.MaxPollInterval,
		},
		Notify: NotifyConfig{ToastTTL: notify.DefaultToastTTL},
		Log:    log.DefaultConfig(),
	}
}

// Load builds a Config from defaults, the YAML file at path (or the first of
// DefaultPaths that exists when path is empty), envFile and the environment.
// An explicit path that cannot be read is an error; a missing default file is not.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if err := loadFile(&cfg, path); err != nil {
		return cfg, err
	}
	if err := LoadEnvFile(envFile); err != nil {
		return cfg, err
	}
	if err := ApplyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return decode(cfg, path, data)
	}
	for _, candidate := range DefaultPaths {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		return decode(cfg, candidate, data)
	}
	return nil
}

// decode overlays only the keys present in data.
func decode(cfg *Config, path string, data []byte) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set win. A missing file is ignored.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides copies non-empty VOTING_* variables into cfg.
func ApplyEnvOverrides(cfg *Config) error {
	if v := env(EnvRPCEndpoint); v != "" {
		cfg.RPC.Endpoint = v
	}
	if v := env(EnvWSEndpoint); v != "" {
		cfg.RPC.WSEndpoint = v
	}
	if v := env(EnvAddress); v != "" {
		cfg.Contract.Address = v
	}
	if v := env(EnvKeystore); v != "" {
		cfg.Wallet.Keystore = v
	}
	if v := env(EnvKeystorePassword); v != "" {
		cfg.Wallet.Password = v
	}
	if v := env(EnvPasswordFile); v != "" {
		cfg.Wallet.PasswordFile = v
	}
	if v := env(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := env(EnvMetricsAddr); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := env(EnvConfirmations); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConfirmations, err)
		}
		cfg.Finality.Confirmations = n
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// Validate reports the first missing or malformed setting.
func (c Config) Validate() error {
	if c.RPC.Endpoint == "" {
		return fmt.Errorf("%w: rpc endpoint is required (%s)", ErrInvalid, EnvRPCEndpoint)
	}
	if c.Contract.Address == "" {
		return fmt.Errorf("%w: voting contract address is required (%s)", ErrInvalid, EnvAddress)
	}
	if _, err := c.VotingAddress(); err != nil {
		return fmt.Errorf("%w: voting contract address: %v", ErrInvalid, err)
	}
	if c.Reader.Concurrency < 1 {
		return fmt.Errorf("%w: reader concurrency must be at least 1", ErrInvalid)
	}
	if c.Reader.MaxRounds < 1 {
		return fmt.Errorf("%w: reader max rounds must be at least 1", ErrInvalid)
	}
	if c.Reader.RateLimit < 0 {
		return fmt.Errorf("%w: reader rate limit must not be negative", ErrInvalid)
	}
	if c.Finality.Confirmations < 1 {
		return fmt.Errorf("%w: finality confirmations must be at least 1", ErrInvalid)
	}
	if c.Wallet.GasFactor < 1 {
		return fmt.Errorf("%w: gas factor must be at least 1", ErrInvalid)
	}
	return nil
}

// VotingAddress parses Contract.Address.
func (c Config) VotingAddress() (ethtypes.Address0xHex, error) {
	addr, err := ethtypes.NewAddress(c.Contract.Address)
	if err != nil {
		return ethtypes.Address0xHex{}, err
	}
	return *addr, nil
}

// ClientOptions maps RPC settings onto HTTPClient options.
func (c Config) ClientOptions() []ethereum.ClientOption {
	return []ethereum.ClientOption{
		ethereum.WithTimeout(c.RPC.Timeout),
		ethereum.WithMaxRetries(c.RPC.MaxRetries),
		ethereum.WithRetryDelay(c.RPC.RetryDelay),
		ethereum.WithMaxDelay(c.RPC.MaxDelay),
	}
}

// EthereumFinality converts the finality section.
func (c Config) EthereumFinality() ethereum.FinalityConfig {
	return ethereum.FinalityConfig{
		Confirmations:   c.Finality.Confirmations,
		PollInterval:    c.Finality.PollInterval,
		MaxPollInterval: c.Finality.MaxPollInterval,
		Timeout:         c.Finality.Timeout,
	}
}

// ReaderOptions converts the reader section.
func (c Config) ReaderOptions() []reader.Option {
	opts := []reader.Option{
		reader.WithConcurrency(c.Reader.Concurrency),
		reader.WithMaxRounds(c.Reader.MaxRounds),
	}
	if c.Reader.RateLimit > 0 {
		opts = append(opts, reader.WithRateLimit(c.Reader.RateLimit, c.Reader.Burst))
	}
	return opts
}

// KeystoreConfig converts the wallet section.
func (c Config) KeystoreConfig() wallet.KeystoreConfig {
	return wallet.KeystoreConfig{
		Path:         c.Wallet.Keystore,
		Password:     c.Wallet.Password,
		PasswordFile: c.Wallet.PasswordFile,
		GasFactor:    c.Wallet.GasFactor,
	}
}
