package config

// Database selects the storage backend.
type Database struct {
	// Backend is one of memory, leveldb or bolt.
	Backend string `toml:"Backend" yaml:"backend"`
	// Path overrides the default location under DataDir.
	Path string `toml:"Path" yaml:"path"`
}

// Ticks configures where the ledger reads the current tick from.
type Ticks struct {
	// Source is clock (unix seconds) or block (a counter advanced every
	// BlockInterval).
	Source        string `toml:"Source" yaml:"source"`
	BlockInterval string `toml:"BlockInterval" yaml:"block_interval"`
	StartHeight   uint64 `toml:"StartHeight" yaml:"start_height"`
}

// Engine fixes the identities baked into the reward engine at construction.
type Engine struct {
	// Module names the custody account; its address is derived from the name.
	Module string `toml:"Module" yaml:"module"`
	// Initializer is the bech32 address allowed to initialize the program.
	Initializer string `toml:"Initializer" yaml:"initializer"`
}

// Program describes an emission program created at boot when the ledger is
// still uninitialized.
type Program struct {
	Token string `toml:"Token" yaml:"token"`
	// StartTick is absolute. When zero, StartDelay ticks after boot is used.
	StartTick   uint64 `toml:"StartTick" yaml:"start_tick"`
	StartDelay  uint64 `toml:"StartDelay" yaml:"start_delay"`
	Duration    uint64 `toml:"Duration" yaml:"duration"`
	TotalReward string `toml:"TotalReward" yaml:"total_reward"`
}

// Allocation credits a genesis balance.
type Allocation struct {
	Address string `toml:"Address" yaml:"address"`
	Amount  string `toml:"Amount" yaml:"amount"`
}

// Token registers a fungible token at boot.
type Token struct {
	Symbol        string       `toml:"Symbol" yaml:"symbol"`
	Name          string       `toml:"Name" yaml:"name"`
	Decimals      uint8        `toml:"Decimals" yaml:"decimals"`
	MintAuthority string       `toml:"MintAuthority" yaml:"mint_authority"`
	Allocations   []Allocation `toml:"Allocations" yaml:"allocations"`
}

// RPC configures the JSON-RPC server.
type RPC struct {
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond" yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `toml:"RateLimitBurst" yaml:"rate_limit_burst"`
	MaxBodyBytes       int64   `toml:"MaxBodyBytes" yaml:"max_body_bytes"`
	// MaxCallAge bounds how far in the future a signed call deadline may be.
	MaxCallAge   string   `toml:"MaxCallAge" yaml:"max_call_age"`
	JWTSecretEnv string   `toml:"JWTSecretEnv" yaml:"jwt_secret_env"`
	JWTIssuer    string   `toml:"JWTIssuer" yaml:"jwt_issuer"`
	JWTAudience  []string `toml:"JWTAudience" yaml:"jwt_audience"`
	ReadTimeout  string   `toml:"ReadTimeout" yaml:"read_timeout"`
	WriteTimeout string   `toml:"WriteTimeout" yaml:"write_timeout"`
}

// Logging configures structured logging.
type Logging struct {
	Env        string `toml:"Env" yaml:"env"`
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups int    `toml:"MaxBackups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"max_age_days"`
}

// Telemetry configures OpenTelemetry export.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint" yaml:"endpoint"`
	Insecure    bool    `toml:"Insecure" yaml:"insecure"`
	Headers     string  `toml:"Headers" yaml:"headers"`
	Traces      bool    `toml:"Traces" yaml:"traces"`
	Metrics     bool    `toml:"Metrics" yaml:"metrics"`
	SampleRatio float64 `toml:"SampleRatio" yaml:"sample_ratio"`
}

// Archive configures the optional SQL event journal.
type Archive struct {
	// Driver is sqlite or postgres; empty disables the archive.
	Driver string `toml:"Driver" yaml:"driver"`
	DSN    string `toml:"DSN" yaml:"dsn"`
}
