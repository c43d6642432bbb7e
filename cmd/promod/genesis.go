package main

import (
	"fmt"

	"promostaking/config"
	"promostaking/core"
	"promostaking/crypto"
	"promostaking/native/bank"
)

// genesisFromConfig translates the token registry and bootstrap program. Mint
// authority defaults to the initializer.
func genesisFromConfig(cfg *config.Config, initializer [20]byte) (core.Genesis, error) {
	var genesis core.Genesis
	for _, token := range cfg.Tokens {
		meta := bank.Metadata{
			Symbol:        token.Symbol,
			Name:          token.Name,
			Decimals:      token.Decimals,
			MintAuthority: initializer,
		}
		if token.MintAuthority != "" {
			authority, err := crypto.DecodePromoAddress(token.MintAuthority)
			if err != nil {
				return core.Genesis{}, fmt.Errorf("token %s mint authority: %w", token.Symbol, err)
			}
			meta.MintAuthority = authority.Raw()
		}
		entry := core.GenesisToken{Metadata: meta}
		for _, alloc := range token.Allocations {
			addr, err := crypto.DecodePromoAddress(alloc.Address)
			if err != nil {
				return core.Genesis{}, fmt.Errorf("token %s allocation: %w", token.Symbol, err)
			}
			amount, err := config.ParseAmount(alloc.Amount)
			if err != nil {
				return core.Genesis{}, fmt.Errorf("token %s allocation: %w", token.Symbol, err)
			}
			entry.Allocations = append(entry.Allocations, core.GenesisAllocation{Address: addr.Raw(), Amount: amount})
		}
		genesis.Tokens = append(genesis.Tokens, entry)
	}

	if p := cfg.Program; p != nil {
		total, err := config.ParseAmount(p.TotalReward)
		if err != nil {
			return core.Genesis{}, fmt.Errorf("program total reward: %w", err)
		}
		genesis.Program = &core.GenesisProgram{
			Token:       p.Token,
			StartTick:   p.StartTick,
			StartDelay:  p.StartDelay,
			Duration:    p.Duration,
			TotalReward: total,
		}
	}
	return genesis, nil
}
