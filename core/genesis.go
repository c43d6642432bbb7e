package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	"promostaking/native/bank"
	"promostaking/native/promo"
)

// GenesisAllocation credits a balance when its token is first registered.
type GenesisAllocation struct {
	Address [20]byte
	Amount  *big.Int
}

// GenesisToken registers a token together with its initial balances.
type GenesisToken struct {
	Metadata    bank.Metadata
	Allocations []GenesisAllocation
}

// GenesisProgram describes the program created at boot when the ledger has
// not been initialized yet.
type GenesisProgram struct {
	Token string
	// StartTick is absolute; when zero the program starts StartDelay ticks
	// after the bootstrap tick.
	StartTick   uint64
	StartDelay  uint64
	Duration    uint64
	TotalReward *big.Int
}

// Genesis is the boot-time ledger content.
type Genesis struct {
	Tokens  []GenesisToken
	Program *GenesisProgram
}

// BootstrapResult reports what Bootstrap changed.
type BootstrapResult struct {
	Registered []string
	Program    *promo.Program
}

// Bootstrap applies genesis content that is not yet present. Tokens already
// registered are left alone together with their allocations. When a program
// is configured and the ledger is uninitialized, the reward is minted
// straight into custody and the program is initialized as the initializer.
// Everything happens in one transaction.
func (n *Node) Bootstrap(ctx context.Context, genesis Genesis) (*BootstrapResult, error) {
	result := &BootstrapResult{}
	err := n.mutate(ctx, "bootstrap", func(e *engines) error {
		for _, token := range genesis.Tokens {
			_, err := e.bank.Token(token.Metadata.Symbol)
			if err == nil {
				continue
			}
			if !errors.Is(err, bank.ErrUnknownToken) {
				return err
			}
			meta, err := e.bank.Register(token.Metadata)
			if err != nil {
				return fmt.Errorf("register %s: %w", token.Metadata.Symbol, err)
			}
			for _, alloc := range token.Allocations {
				if err := e.bank.Mint(meta.MintAuthority, meta.Symbol, alloc.Address, alloc.Amount); err != nil {
					return fmt.Errorf("allocate %s: %w", meta.Symbol, err)
				}
			}
			result.Registered = append(result.Registered, meta.Symbol)
		}

		boot := genesis.Program
		if boot == nil {
			return nil
		}
		if _, err := e.promo.Program(); err == nil {
			return nil
		} else if !errors.Is(err, promo.ErrNotInitialized) {
			return err
		}
		meta, err := e.bank.Token(boot.Token)
		if err != nil {
			return fmt.Errorf("program token: %w", err)
		}
		start := boot.StartTick
		if start == 0 {
			if boot.StartDelay > math.MaxUint64-e.now {
				return fmt.Errorf("%w: delay %d at tick %d", ErrStartDelayOverflow, boot.StartDelay, e.now)
			}
			start = e.now + boot.StartDelay
		}
		if boot.TotalReward != nil && boot.TotalReward.Sign() > 0 {
			if err := e.bank.Mint(meta.MintAuthority, meta.Symbol, n.custody, boot.TotalReward); err != nil {
				return fmt.Errorf("fund custody: %w", err)
			}
		}
		program, err := e.promo.Initialize(n.initializer, promo.InitParams{
			Token:       meta.Symbol,
			StartTick:   start,
			Duration:    boot.Duration,
			TotalReward: boot.TotalReward,
		})
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		result.Program = program
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(result.Registered) > 0 {
		n.logger.Info("genesis tokens registered", "symbols", result.Registered)
	}
	if result.Program != nil {
		n.logger.Info("genesis program initialized",
			"token", result.Program.Token,
			"start", result.Program.StartTick,
			"end", result.Program.EndTick,
			"totalReward", result.Program.TotalReward.String())
	}
	return result, nil
}
