package promo

import "math/big"

// Program returns a copy of the initialized program.
func (e *Engine) Program() (*Program, error) {
	return e.loadProgram()
}

// Account returns the stored record for addr. The boolean distinguishes a
// zeroed record from an address that never staked.
func (e *Engine) Account(addr [20]byte) (*Account, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	return e.loadAccount(addr)
}

// StakedAmount returns the principal of addr, zero when it has no record.
func (e *Engine) StakedAmount(addr [20]byte) (*big.Int, error) {
	acct, _, err := e.Account(addr)
	if err != nil {
		return nil, err
	}
	return acct.Amount, nil
}

// PendingTokens reports the reward accrued by addr as of the program's last
// refresh. It does not advance the accumulator, so the figure lags until
// Refresh or another mutating call runs.
func (e *Engine) PendingTokens(addr [20]byte) (*big.Int, error) {
	program, err := e.loadProgram()
	if err != nil {
		return nil, err
	}
	acct, _, err := e.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return pendingFor(acct, program.AccRewardPerShare)
}

// ProjectedPending reports what PendingTokens would return right after a
// Refresh at the current tick. Nothing is written.
func (e *Engine) ProjectedPending(addr [20]byte) (*big.Int, uint64, error) {
	program, err := e.loadProgram()
	if err != nil {
		return nil, 0, err
	}
	now := e.CurrentTick()
	if _, err := refresh(program, now); err != nil {
		return nil, 0, err
	}
	acct, _, err := e.loadAccount(addr)
	if err != nil {
		return nil, 0, err
	}
	pending, err := pendingFor(acct, program.AccRewardPerShare)
	if err != nil {
		return nil, 0, err
	}
	return pending, program.LastRewardTick, nil
}

// TotalReward returns the reward configured at initialization.
func (e *Engine) TotalReward() (*big.Int, error) {
	program, err := e.loadProgram()
	if err != nil {
		return nil, err
	}
	return program.TotalReward, nil
}

// TotalRewardPaid returns the reward transferred out to participants.
func (e *Engine) TotalRewardPaid() (*big.Int, error) {
	program, err := e.loadProgram()
	if err != nil {
		return nil, err
	}
	return program.TotalRewardPaid, nil
}

// RewardPerTick returns the constant emission rate.
func (e *Engine) RewardPerTick() (*big.Int, error) {
	program, err := e.loadProgram()
	if err != nil {
		return nil, err
	}
	return program.RewardPerTick, nil
}

// Audit sums every account record and checks it against the program totals
// and the reward budget.
func (e *Engine) Audit() (*AuditReport, error) {
	program, err := e.loadProgram()
	if err != nil {
		return nil, err
	}
	addrs, err := e.state.PromoAccountList()
	if err != nil {
		return nil, err
	}
	sum := new(big.Int)
	for _, addr := range addrs {
		acct, _, err := e.loadAccount(addr)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, acct.Amount)
	}
	schedule := program.Schedule()
	return &AuditReport{
		Accounts:              len(addrs),
		SumStaked:             sum,
		TotalStaked:           program.TotalStaked,
		StakeBalanced:         sum.Cmp(program.TotalStaked) == 0,
		TotalReward:           program.TotalReward,
		TotalRewardPaid:       program.TotalRewardPaid,
		TotalRewardCompounded: program.TotalRewardCompounded,
		UnclaimableDust:       schedule.Dust(),
		WithinBudget:          program.Distributed().Cmp(program.TotalReward) <= 0,
	}, nil
}
