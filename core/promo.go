package core

import (
	"context"
	"math/big"

	"promostaking/core/state"
	"promostaking/native/bank"
	"promostaking/native/promo"
	"promostaking/storage/trie"
)

// PromoInitialize creates the emission program as caller. When fund is set the
// total reward is first moved from caller to custody in the same transaction,
// so the program is never live without its budget.
func (n *Node) PromoInitialize(ctx context.Context, caller [20]byte, params promo.InitParams, fund bool) (*promo.Program, error) {
	params.Token = bank.NormalizeSymbol(params.Token)
	var program *promo.Program
	err := n.mutate(ctx, "initialize", func(e *engines) error {
		if _, err := e.bank.Token(params.Token); err != nil {
			return err
		}
		if fund && params.TotalReward != nil && params.TotalReward.Sign() > 0 {
			// Authorization and state errors take precedence over a failed
			// funding transfer.
			if caller != n.initializer {
				return promo.ErrUnauthorized
			}
			if _, err := e.promo.Program(); err == nil {
				return promo.ErrAlreadyInitialized
			}
			if err := e.bank.Transfer(params.Token, caller, n.custody, params.TotalReward); err != nil {
				return err
			}
		}
		var err error
		program, err = e.promo.Initialize(caller, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info("promo program initialized",
		"token", program.Token,
		"start", program.StartTick,
		"end", program.EndTick,
		"totalReward", program.TotalReward.String(),
		"funded", fund)
	return program, nil
}

// PromoStake deposits amount from caller on behalf of beneficiary. A zero
// amount with beneficiary == caller compounds the caller's pending reward.
func (n *Node) PromoStake(ctx context.Context, caller, beneficiary [20]byte, amount *big.Int) (*promo.StakeResult, error) {
	var res *promo.StakeResult
	err := n.mutate(ctx, "stake", func(e *engines) error {
		var err error
		res, err = e.promo.Stake(caller, beneficiary, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// PromoUnstake withdraws amount of principal and pays the pending reward. A
// zero amount only claims.
func (n *Node) PromoUnstake(ctx context.Context, caller [20]byte, amount *big.Int) (*promo.UnstakeResult, error) {
	var res *promo.UnstakeResult
	err := n.mutate(ctx, "unstake", func(e *engines) error {
		var err error
		res, err = e.promo.Unstake(caller, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// PromoEmergencyWithdraw refunds caller's principal and forfeits the pending
// reward.
func (n *Node) PromoEmergencyWithdraw(ctx context.Context, caller [20]byte) (*promo.EmergencyResult, error) {
	var res *promo.EmergencyResult
	err := n.mutate(ctx, "emergency_withdraw", func(e *engines) error {
		var err error
		res, err = e.promo.EmergencyWithdraw(caller)
		return err
	})
	if err != nil {
		return nil, err
	}
	if res.Forfeited != nil && res.Forfeited.Sign() > 0 {
		n.logger.Warn("emergency withdraw forfeited reward",
			"refunded", res.Refunded.String(),
			"forfeited", res.Forfeited.String())
	}
	return res, nil
}

// PromoRefresh advances the accumulator to the current tick. The boolean
// reports whether anything changed.
func (n *Node) PromoRefresh(ctx context.Context) (*promo.Program, bool, error) {
	var (
		program *promo.Program
		changed bool
	)
	err := n.mutate(ctx, "refresh", func(e *engines) error {
		var err error
		program, changed, err = e.promo.Refresh()
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return program, changed, nil
}

// PromoProgram returns the stored program.
func (n *Node) PromoProgram(ctx context.Context) (*promo.Program, error) {
	var program *promo.Program
	err := n.view(ctx, "program", func(e *engines) error {
		var err error
		program, err = e.promo.Program()
		return err
	})
	return program, err
}

// PromoAccount returns the stored account record and whether one exists.
func (n *Node) PromoAccount(ctx context.Context, addr [20]byte) (*promo.Account, bool, error) {
	var (
		acct   *promo.Account
		exists bool
	)
	err := n.view(ctx, "account", func(e *engines) error {
		var err error
		acct, exists, err = e.promo.Account(addr)
		return err
	})
	return acct, exists, err
}

// PromoStakedAmount returns addr's principal.
func (n *Node) PromoStakedAmount(ctx context.Context, addr [20]byte) (*big.Int, error) {
	var amount *big.Int
	err := n.view(ctx, "staked_amount", func(e *engines) error {
		var err error
		amount, err = e.promo.StakedAmount(addr)
		return err
	})
	return amount, err
}

// PromoPendingTokens returns addr's reward as of the last refresh.
func (n *Node) PromoPendingTokens(ctx context.Context, addr [20]byte) (*big.Int, error) {
	var pending *big.Int
	err := n.view(ctx, "pending_tokens", func(e *engines) error {
		var err error
		pending, err = e.promo.PendingTokens(addr)
		return err
	})
	return pending, err
}

// PromoProjectedPending returns addr's reward as if refreshed now, together
// with the tick the projection was taken at.
func (n *Node) PromoProjectedPending(ctx context.Context, addr [20]byte) (*big.Int, uint64, error) {
	var (
		pending *big.Int
		at      uint64
	)
	err := n.view(ctx, "projected_pending", func(e *engines) error {
		var err error
		pending, at, err = e.promo.ProjectedPending(addr)
		return err
	})
	return pending, at, err
}

// Audit extends the engine audit with the custody balance check and a
// commitment to every staking account.
type Audit struct {
	*promo.AuditReport
	CustodyBalance  *big.Int `json:"custodyBalance"`
	CustodyExpected *big.Int `json:"custodyExpected"`
	CustodySolvent  bool     `json:"custodySolvent"`
	// AccountsRoot is the Merkle Patricia root over (address, amount,
	// rewardDebt) for all account records.
	AccountsRoot string `json:"accountsRoot"`
}

type accountLeaf struct {
	Amount     *big.Int
	RewardDebt *big.Int
}

func accountsRoot(tx *state.Tx) (string, error) {
	addrs, err := tx.PromoAccountList()
	if err != nil {
		return "", err
	}
	commitment := trie.NewCommitment()
	for _, addr := range addrs {
		acct, ok, err := tx.PromoAccountGet(addr)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		leaf := accountLeaf{Amount: acct.Amount, RewardDebt: acct.RewardDebt}
		if leaf.Amount == nil {
			leaf.Amount = new(big.Int)
		}
		if leaf.RewardDebt == nil {
			leaf.RewardDebt = new(big.Int)
		}
		if err := commitment.Put(addr[:], leaf); err != nil {
			return "", err
		}
	}
	root, err := commitment.Root()
	if err != nil {
		return "", err
	}
	return root.Hex(), nil
}

// PromoAudit recomputes ledger totals and compares the custody balance with
// totalReward - paid - compounded + totalStaked.
func (n *Node) PromoAudit(ctx context.Context) (*Audit, error) {
	var out *Audit
	err := n.view(ctx, "audit", func(e *engines) error {
		report, err := e.promo.Audit()
		if err != nil {
			return err
		}
		program, err := e.promo.Program()
		if err != nil {
			return err
		}
		balance, err := e.bank.BalanceOf(program.Token, n.custody)
		if err != nil {
			return err
		}
		expected := new(big.Int).Sub(program.TotalReward, program.Distributed())
		expected.Add(expected, program.TotalStaked)
		root, err := accountsRoot(e.tx)
		if err != nil {
			return err
		}
		out = &Audit{
			AccountsRoot:    root,
			AuditReport:     report,
			CustodyBalance:  balance,
			CustodyExpected: expected,
			CustodySolvent:  balance.Cmp(expected) >= 0,
		}
		return nil
	})
	return out, err
}
