package promo

import "math/big"

// InitParams configures the emission program.
type InitParams struct {
	Token       string
	StartTick   uint64
	Duration    uint64
	TotalReward *big.Int
}

// Initialize creates the program. It succeeds exactly once and only for the
// initializer. Funding the custody address with TotalReward is the caller's
// responsibility.
func (e *Engine) Initialize(caller [20]byte, params InitParams) (*Program, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if caller != e.initializer {
		return nil, ErrUnauthorized
	}
	existing, ok, err := e.state.PromoProgramGet()
	if err != nil {
		return nil, err
	}
	if ok && existing != nil && existing.Initialized {
		return nil, ErrAlreadyInitialized
	}
	if params.Token == "" {
		return nil, ErrInvalidToken
	}
	schedule, err := NewSchedule(params.StartTick, params.Duration, params.TotalReward)
	if err != nil {
		return nil, err
	}
	if params.StartTick < e.CurrentTick() {
		return nil, ErrInvalidStartTick
	}

	program := &Program{
		Token:          params.Token,
		Initialized:    true,
		StartTick:      schedule.Start,
		EndTick:        schedule.End,
		TotalReward:    schedule.TotalReward,
		RewardPerTick:  schedule.RewardPerTick,
		LastRewardTick: schedule.Start,
	}
	program.normalize()
	if err := e.state.PromoProgramPut(program); err != nil {
		return nil, err
	}
	e.emit(InitializedEvent(program))
	return program.Clone(), nil
}
