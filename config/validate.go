package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"promostaking/crypto"
)

// Validate checks the configuration for values the daemon cannot run with.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	switch cfg.Database.Backend {
	case "memory", "leveldb", "bolt":
	default:
		return fmt.Errorf("database: unsupported backend %q", cfg.Database.Backend)
	}
	switch cfg.Ticks.Source {
	case "clock":
	case "block":
		interval, err := cfg.Ticks.Interval()
		if err != nil {
			return fmt.Errorf("ticks: %w", err)
		}
		if interval <= 0 {
			return fmt.Errorf("ticks: block_interval must be positive")
		}
	default:
		return fmt.Errorf("ticks: unsupported source %q", cfg.Ticks.Source)
	}
	if _, err := cfg.Engine.InitializerAddress(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	symbols := make(map[string]struct{}, len(cfg.Tokens))
	for _, token := range cfg.Tokens {
		if token.Symbol == "" {
			return fmt.Errorf("tokens: symbol must not be empty")
		}
		if _, dup := symbols[token.Symbol]; dup {
			return fmt.Errorf("tokens: duplicate symbol %s", token.Symbol)
		}
		symbols[token.Symbol] = struct{}{}
		if strings.TrimSpace(token.Name) == "" {
			return fmt.Errorf("tokens: %s name must not be empty", token.Symbol)
		}
		if token.MintAuthority != "" {
			if _, err := crypto.DecodePromoAddress(token.MintAuthority); err != nil {
				return fmt.Errorf("tokens: %s mint authority: %w", token.Symbol, err)
			}
		}
		for _, alloc := range token.Allocations {
			if _, err := crypto.DecodePromoAddress(alloc.Address); err != nil {
				return fmt.Errorf("tokens: %s allocation: %w", token.Symbol, err)
			}
			if _, err := ParseAmount(alloc.Amount); err != nil {
				return fmt.Errorf("tokens: %s allocation: %w", token.Symbol, err)
			}
		}
	}

	if p := cfg.Program; p != nil {
		if _, ok := symbols[p.Token]; !ok {
			return fmt.Errorf("program: token %q is not listed under tokens", p.Token)
		}
		if p.Duration == 0 {
			return fmt.Errorf("program: duration must be positive")
		}
		if _, err := ParseAmount(p.TotalReward); err != nil {
			return fmt.Errorf("program: total_reward: %w", err)
		}
	}

	for name, raw := range map[string]string{
		"max_call_age":  cfg.RPC.MaxCallAge,
		"read_timeout":  cfg.RPC.ReadTimeout,
		"write_timeout": cfg.RPC.WriteTimeout,
	} {
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("rpc: %s: %w", name, err)
		}
	}
	switch cfg.Archive.Driver {
	case "", "sqlite":
	case "postgres":
		if strings.TrimSpace(cfg.Archive.DSN) == "" {
			return fmt.Errorf("archive: postgres requires a dsn")
		}
	default:
		return fmt.Errorf("archive: unsupported driver %q", cfg.Archive.Driver)
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample_ratio must be within [0,1]")
	}
	return nil
}

// Interval parses the block interval.
func (t Ticks) Interval() (time.Duration, error) {
	return time.ParseDuration(strings.TrimSpace(t.BlockInterval))
}

// InitializerAddress decodes the configured initializer identity.
func (e Engine) InitializerAddress() (crypto.Address, error) {
	if e.Initializer == "" {
		return crypto.Address{}, errors.New("initializer address required")
	}
	return crypto.DecodePromoAddress(e.Initializer)
}

// CustodyAddress derives the module account that holds deposits and rewards.
func (e Engine) CustodyAddress() crypto.Address {
	return crypto.ModuleAddress(e.Module)
}

// Durations returns the parsed RPC timeouts.
func (r RPC) Durations() (maxCallAge, read, write time.Duration) {
	maxCallAge, _ = time.ParseDuration(r.MaxCallAge)
	read, _ = time.ParseDuration(r.ReadTimeout)
	write, _ = time.ParseDuration(r.WriteTimeout)
	return maxCallAge, read, write
}

// ParseAmount parses a non-negative base-10 integer amount.
func ParseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}
