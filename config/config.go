package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"promostaking/crypto"
)

type Config struct {
	ListenAddress        string    `toml:"ListenAddress" yaml:"listen"`
	DataDir              string    `toml:"DataDir" yaml:"data_dir"`
	OperatorKeystorePath string    `toml:"OperatorKeystorePath" yaml:"operator_keystore"`
	AllowMigrate         bool      `toml:"AllowMigrate" yaml:"allow_migrate"`
	Database             Database  `toml:"database" yaml:"database"`
	Ticks                Ticks     `toml:"ticks" yaml:"ticks"`
	Engine               Engine    `toml:"engine" yaml:"engine"`
	Program              *Program  `toml:"program" yaml:"program"`
	Tokens               []Token   `toml:"tokens" yaml:"tokens"`
	RPC                  RPC       `toml:"rpc" yaml:"rpc"`
	Logging              Logging   `toml:"logging" yaml:"logging"`
	Telemetry            Telemetry `toml:"telemetry" yaml:"telemetry"`
	Archive              Archive   `toml:"archive" yaml:"archive"`
}

// Load loads the configuration from the given path. The format follows the
// file extension: .yaml/.yml decode as YAML, anything else as TOML. A missing
// TOML file is replaced by a generated default with a fresh operator key.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path required")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if isYAML(path) {
			return nil, fmt.Errorf("config file %s not found", path)
		}
		return createDefault(path)
	}

	cfg := &Config{}
	if isYAML(path) {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown keys: %v", path, undecoded)
		}
	}

	cfg.normalize(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Default returns the configuration used for a fresh devnet.
func Default() *Config {
	return &Config{
		ListenAddress: "127.0.0.1:8645",
		DataDir:       "./promo-data",
		Database:      Database{Backend: "leveldb"},
		Ticks:         Ticks{Source: "block", BlockInterval: "1s"},
		Engine:        Engine{Module: "promo"},
		RPC: RPC{
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
			MaxBodyBytes:       1 << 20,
			MaxCallAge:         "5m",
			JWTSecretEnv:       "PROMO_RPC_JWT_SECRET",
			JWTIssuer:          "promo-cli",
			ReadTimeout:        "15s",
			WriteTimeout:       "15s",
		},
		Logging:   Logging{Level: "info"},
		Telemetry: Telemetry{Endpoint: "localhost:4318"},
	}
}

func (cfg *Config) normalize(path string) {
	defaults := Default()
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaults.ListenAddress
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = defaults.DataDir
	}
	if cfg.OperatorKeystorePath == "" {
		cfg.OperatorKeystorePath = defaultKeystorePath(path)
	}
	cfg.Database.Backend = strings.ToLower(strings.TrimSpace(cfg.Database.Backend))
	if cfg.Database.Backend == "" {
		cfg.Database.Backend = defaults.Database.Backend
	}
	cfg.Ticks.Source = strings.ToLower(strings.TrimSpace(cfg.Ticks.Source))
	if cfg.Ticks.Source == "" {
		cfg.Ticks.Source = defaults.Ticks.Source
	}
	if cfg.Ticks.BlockInterval == "" {
		cfg.Ticks.BlockInterval = defaults.Ticks.BlockInterval
	}
	cfg.Engine.Module = strings.TrimSpace(cfg.Engine.Module)
	if cfg.Engine.Module == "" {
		cfg.Engine.Module = defaults.Engine.Module
	}
	cfg.Engine.Initializer = strings.TrimSpace(cfg.Engine.Initializer)
	if cfg.Program != nil {
		cfg.Program.Token = strings.ToUpper(strings.TrimSpace(cfg.Program.Token))
	}
	for i := range cfg.Tokens {
		cfg.Tokens[i].Symbol = strings.ToUpper(strings.TrimSpace(cfg.Tokens[i].Symbol))
	}
	if cfg.RPC.RateLimitPerSecond <= 0 {
		cfg.RPC.RateLimitPerSecond = defaults.RPC.RateLimitPerSecond
	}
	if cfg.RPC.RateLimitBurst <= 0 {
		cfg.RPC.RateLimitBurst = defaults.RPC.RateLimitBurst
	}
	if cfg.RPC.MaxBodyBytes <= 0 {
		cfg.RPC.MaxBodyBytes = defaults.RPC.MaxBodyBytes
	}
	if cfg.RPC.MaxCallAge == "" {
		cfg.RPC.MaxCallAge = defaults.RPC.MaxCallAge
	}
	if cfg.RPC.JWTSecretEnv == "" {
		cfg.RPC.JWTSecretEnv = defaults.RPC.JWTSecretEnv
	}
	if cfg.RPC.JWTIssuer == "" {
		cfg.RPC.JWTIssuer = defaults.RPC.JWTIssuer
	}
	if cfg.RPC.ReadTimeout == "" {
		cfg.RPC.ReadTimeout = defaults.RPC.ReadTimeout
	}
	if cfg.RPC.WriteTimeout == "" {
		cfg.RPC.WriteTimeout = defaults.RPC.WriteTimeout
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = defaults.Telemetry.Endpoint
	}
	cfg.Archive.Driver = strings.ToLower(strings.TrimSpace(cfg.Archive.Driver))
}

// ArchiveDSN resolves the event archive connection string. SQLite archives
// default to a file under DataDir.
func (cfg *Config) ArchiveDSN() string {
	if dsn := strings.TrimSpace(cfg.Archive.DSN); dsn != "" {
		return dsn
	}
	if cfg.Archive.Driver == "sqlite" {
		return filepath.Join(cfg.DataDir, "events.db")
	}
	return ""
}

// DatabasePath resolves the on-disk location of the configured backend.
func (cfg *Config) DatabasePath() string {
	if cfg.Database.Path != "" {
		return cfg.Database.Path
	}
	switch cfg.Database.Backend {
	case "bolt":
		return filepath.Join(cfg.DataDir, "ledger.db")
	default:
		return filepath.Join(cfg.DataDir, "ledger")
	}
}

func defaultKeystorePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "operator.keystore")
}

// createDefault writes a default configuration whose initializer is a freshly
// generated operator key stored next to the config file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, os.Getenv("PROMO_KEYSTORE_PASSPHRASE")); err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.OperatorKeystorePath = keystorePath
	cfg.Engine.Initializer = key.PubKey().Address().String()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize(path)
	return cfg, cfg.Validate()
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
