package promo

import "math/big"

// StakeResult describes a completed stake.
type StakeResult struct {
	Caller     [20]byte
	Account    *Account
	Deposited  *big.Int
	Compounded *big.Int
	Program    *Program
}

// UnstakeResult describes a completed withdrawal or claim.
type UnstakeResult struct {
	Account   *Account
	Withdrawn *big.Int
	Reward    *big.Int
	Program   *Program
}

// EmergencyResult describes a principal refund that skipped settlement.
type EmergencyResult struct {
	Account   *Account
	Refunded  *big.Int
	Forfeited *big.Int
	Program   *Program
}

func validAmount(amount *big.Int) (*big.Int, error) {
	if amount == nil {
		return new(big.Int), nil
	}
	if _, err := toU256(amount); err != nil {
		return nil, err
	}
	return new(big.Int).Set(amount), nil
}

// capToBudget limits a settlement to what is left of the total reward.
// Floored reward debts can let the last settlements overshoot by a unit.
func capToBudget(program *Program, pending *big.Int) *big.Int {
	left := new(big.Int).Sub(program.TotalReward, program.Distributed())
	if left.Sign() <= 0 {
		return new(big.Int)
	}
	if pending.Cmp(left) > 0 {
		return left
	}
	return pending
}

// Stake deposits amount from caller on behalf of beneficiary. The
// beneficiary's pending reward is compounded into principal first, so
// Stake(caller, caller, 0) compounds without depositing.
func (e *Engine) Stake(caller, beneficiary [20]byte, amount *big.Int) (*StakeResult, error) {
	program, err := e.loadProgram()
	if err != nil {
		return nil, err
	}
	deposit, err := validAmount(amount)
	if err != nil {
		return nil, err
	}
	now := e.CurrentTick()
	if program.Schedule().Finished(now) {
		return nil, ErrProgramFinished
	}
	refreshed, err := refresh(program, now)
	if err != nil {
		return nil, err
	}

	acct, existed, err := e.loadAccount(beneficiary)
	if err != nil {
		return nil, err
	}
	pending := new(big.Int)
	if existed {
		if pending, err = pendingFor(acct, program.AccRewardPerShare); err != nil {
			return nil, err
		}
	}
	pending = capToBudget(program, pending)

	principal, err := add(acct.Amount, pending)
	if err != nil {
		return nil, err
	}
	if principal, err = add(principal, deposit); err != nil {
		return nil, err
	}
	increase, err := add(deposit, pending)
	if err != nil {
		return nil, err
	}
	totalStaked, err := add(program.TotalStaked, increase)
	if err != nil {
		return nil, err
	}
	debt, err := accrued(principal, program.AccRewardPerShare)
	if err != nil {
		return nil, err
	}

	if deposit.Sign() > 0 {
		if e.token == nil {
			return nil, ErrNilToken
		}
		if err := e.token.TransferFrom(program.Token, e.custody, caller, e.custody, deposit); err != nil {
			return nil, err
		}
	}

	acct.Amount = principal
	acct.RewardDebt = debt
	program.TotalStaked = totalStaked
	program.TotalRewardCompounded.Add(program.TotalRewardCompounded, pending)
	if err := e.state.PromoProgramPut(program); err != nil {
		return nil, err
	}
	if err := e.state.PromoAccountPut(acct); err != nil {
		return nil, err
	}

	res := &StakeResult{
		Caller:     caller,
		Account:    acct.Clone(),
		Deposited:  deposit,
		Compounded: pending,
		Program:    program.Clone(),
	}
	if refreshed {
		e.emit(RefreshedEvent(program))
	}
	e.emit(StakedEvent(res))
	return res, nil
}

// Unstake withdraws amount of principal and pays the caller's pending reward
// in the same transfer. Unstake(caller, 0) claims the reward only.
func (e *Engine) Unstake(caller [20]byte, amount *big.Int) (*UnstakeResult, error) {
	program, err := e.loadProgram()
	if err != nil {
		return nil, err
	}
	withdraw, err := validAmount(amount)
	if err != nil {
		return nil, err
	}
	refreshed, err := refresh(program, e.CurrentTick())
	if err != nil {
		return nil, err
	}

	acct, existed, err := e.loadAccount(caller)
	if err != nil {
		return nil, err
	}
	if withdraw.Cmp(acct.Amount) > 0 {
		return nil, ErrInsufficientStake
	}
	pending, err := pendingFor(acct, program.AccRewardPerShare)
	if err != nil {
		return nil, err
	}
	pending = capToBudget(program, pending)

	principal, _ := sub(acct.Amount, withdraw)
	totalStaked, ok := sub(program.TotalStaked, withdraw)
	if !ok {
		return nil, ErrCorruptAccount
	}
	debt, err := accrued(principal, program.AccRewardPerShare)
	if err != nil {
		return nil, err
	}
	payout := new(big.Int).Add(withdraw, pending)

	if payout.Sign() > 0 {
		if e.token == nil {
			return nil, ErrNilToken
		}
		if err := e.token.Transfer(program.Token, e.custody, caller, payout); err != nil {
			return nil, err
		}
	}

	acct.Amount = principal
	acct.RewardDebt = debt
	program.TotalStaked = totalStaked
	program.TotalRewardPaid.Add(program.TotalRewardPaid, pending)
	if err := e.state.PromoProgramPut(program); err != nil {
		return nil, err
	}
	if existed {
		if err := e.state.PromoAccountPut(acct); err != nil {
			return nil, err
		}
	}

	res := &UnstakeResult{
		Account:   acct.Clone(),
		Withdrawn: withdraw,
		Reward:    pending,
		Program:   program.Clone(),
	}
	if refreshed {
		e.emit(RefreshedEvent(program))
	}
	e.emit(UnstakedEvent(res))
	return res, nil
}

// EmergencyWithdraw refunds the caller's principal and forfeits any pending
// reward. The forfeited amount stays in custody and is never counted as paid.
func (e *Engine) EmergencyWithdraw(caller [20]byte) (*EmergencyResult, error) {
	program, err := e.loadProgram()
	if err != nil {
		return nil, err
	}
	refreshed, err := refresh(program, e.CurrentTick())
	if err != nil {
		return nil, err
	}
	acct, existed, err := e.loadAccount(caller)
	if err != nil {
		return nil, err
	}

	refund := new(big.Int).Set(acct.Amount)
	forfeited, err := pendingFor(acct, program.AccRewardPerShare)
	if err != nil {
		// Settlement is skipped here, so an inconsistent debt must not block
		// the refund.
		forfeited = new(big.Int)
	}
	totalStaked, ok := sub(program.TotalStaked, refund)
	if !ok {
		return nil, ErrCorruptAccount
	}

	if refund.Sign() > 0 {
		if e.token == nil {
			return nil, ErrNilToken
		}
		if err := e.token.Transfer(program.Token, e.custody, caller, refund); err != nil {
			return nil, err
		}
	}

	acct.Amount = new(big.Int)
	acct.RewardDebt = new(big.Int)
	program.TotalStaked = totalStaked
	if err := e.state.PromoProgramPut(program); err != nil {
		return nil, err
	}
	if existed {
		if err := e.state.PromoAccountPut(acct); err != nil {
			return nil, err
		}
	}

	res := &EmergencyResult{
		Account:   acct.Clone(),
		Refunded:  refund,
		Forfeited: forfeited,
		Program:   program.Clone(),
	}
	if refreshed {
		e.emit(RefreshedEvent(program))
	}
	e.emit(EmergencyWithdrawnEvent(res))
	return res, nil
}

// Refresh brings the accumulator up to the current tick. The boolean reports
// whether anything changed; a repeated call at the same tick is a no-op.
func (e *Engine) Refresh() (*Program, bool, error) {
	program, err := e.loadProgram()
	if err != nil {
		return nil, false, err
	}
	changed, err := refresh(program, e.CurrentTick())
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return program, false, nil
	}
	if err := e.state.PromoProgramPut(program); err != nil {
		return nil, false, err
	}
	e.emit(RefreshedEvent(program))
	return program.Clone(), true, nil
}
