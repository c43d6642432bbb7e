package promo

import "math/big"

// Precision scales AccRewardPerShare so sub-unit rewards survive integer
// division.
var Precision = big.NewInt(1_000_000_000_000)

// Program is the singleton emission program. It is created once by Initialize
// and mutated only by the ledger operations.
type Program struct {
	Token       string `json:"token"`
	Initialized bool   `json:"initialized"`
	StartTick   uint64 `json:"startTick"`
	EndTick     uint64 `json:"endTick"`

	TotalReward   *big.Int `json:"totalReward"`
	RewardPerTick *big.Int `json:"rewardPerTick"`

	TotalStaked           *big.Int `json:"totalStaked"`
	TotalRewardPaid       *big.Int `json:"totalRewardPaid"`
	TotalRewardCompounded *big.Int `json:"totalRewardCompounded"`

	AccRewardPerShare *big.Int `json:"accRewardPerShare"`
	LastRewardTick    uint64   `json:"lastRewardTick"`
}

// Clone returns a deep copy of the program.
func (p *Program) Clone() *Program {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TotalReward = cloneBig(p.TotalReward)
	clone.RewardPerTick = cloneBig(p.RewardPerTick)
	clone.TotalStaked = cloneBig(p.TotalStaked)
	clone.TotalRewardPaid = cloneBig(p.TotalRewardPaid)
	clone.TotalRewardCompounded = cloneBig(p.TotalRewardCompounded)
	clone.AccRewardPerShare = cloneBig(p.AccRewardPerShare)
	return &clone
}

// Schedule returns the emission parameters of the program.
func (p *Program) Schedule() Schedule {
	return Schedule{
		Start:         p.StartTick,
		End:           p.EndTick,
		TotalReward:   cloneBig(p.TotalReward),
		RewardPerTick: cloneBig(p.RewardPerTick),
	}
}

// Pool returns the accumulator pair of the program.
func (p *Program) Pool() Pool {
	return Pool{AccRewardPerShare: cloneBig(p.AccRewardPerShare), LastRewardTick: p.LastRewardTick}
}

func (p *Program) applyPool(pool Pool) {
	p.AccRewardPerShare = cloneBig(pool.AccRewardPerShare)
	p.LastRewardTick = pool.LastRewardTick
}

// Distributed is the reward that has left the undistributed budget, either
// paid out or folded into principal.
func (p *Program) Distributed() *big.Int {
	return new(big.Int).Add(cloneBig(p.TotalRewardPaid), cloneBig(p.TotalRewardCompounded))
}

func (p *Program) normalize() {
	if p.TotalReward == nil {
		p.TotalReward = new(big.Int)
	}
	if p.RewardPerTick == nil {
		p.RewardPerTick = new(big.Int)
	}
	if p.TotalStaked == nil {
		p.TotalStaked = new(big.Int)
	}
	if p.TotalRewardPaid == nil {
		p.TotalRewardPaid = new(big.Int)
	}
	if p.TotalRewardCompounded == nil {
		p.TotalRewardCompounded = new(big.Int)
	}
	if p.AccRewardPerShare == nil {
		p.AccRewardPerShare = new(big.Int)
	}
}

// Account tracks one participant's principal and settled reward.
type Account struct {
	Address    [20]byte `json:"address"`
	Amount     *big.Int `json:"amount"`
	RewardDebt *big.Int `json:"rewardDebt"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Amount = cloneBig(a.Amount)
	clone.RewardDebt = cloneBig(a.RewardDebt)
	return &clone
}

func newAccount(addr [20]byte) *Account {
	return &Account{Address: addr, Amount: new(big.Int), RewardDebt: new(big.Int)}
}

func (a *Account) normalize() {
	if a.Amount == nil {
		a.Amount = new(big.Int)
	}
	if a.RewardDebt == nil {
		a.RewardDebt = new(big.Int)
	}
}

// AuditReport compares the aggregate fields of the program with the account
// records they summarise.
type AuditReport struct {
	Accounts              int      `json:"accounts"`
	SumStaked             *big.Int `json:"sumStaked"`
	TotalStaked           *big.Int `json:"totalStaked"`
	StakeBalanced         bool     `json:"stakeBalanced"`
	TotalReward           *big.Int `json:"totalReward"`
	TotalRewardPaid       *big.Int `json:"totalRewardPaid"`
	TotalRewardCompounded *big.Int `json:"totalRewardCompounded"`
	UnclaimableDust       *big.Int `json:"unclaimableDust"`
	WithinBudget          bool     `json:"withinBudget"`
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
