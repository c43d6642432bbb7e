package promo

import (
	"math"
	"math/big"
)

// Schedule holds the linear emission parameters fixed at initialization.
type Schedule struct {
	Start         uint64
	End           uint64
	TotalReward   *big.Int
	RewardPerTick *big.Int
}

// NewSchedule validates the window and derives RewardPerTick by floor
// division. The remainder is never emitted.
func NewSchedule(start, duration uint64, totalReward *big.Int) (Schedule, error) {
	if duration == 0 || duration > math.MaxUint64-start {
		return Schedule{}, ErrInvalidDuration
	}
	if totalReward == nil || totalReward.Sign() < 0 {
		return Schedule{}, ErrInvalidAmount
	}
	if _, err := toU256(totalReward); err != nil {
		return Schedule{}, err
	}
	perTick := new(big.Int).Quo(totalReward, new(big.Int).SetUint64(duration))
	return Schedule{
		Start:         start,
		End:           start + duration,
		TotalReward:   new(big.Int).Set(totalReward),
		RewardPerTick: perTick,
	}, nil
}

// Duration is the number of emitting ticks.
func (s Schedule) Duration() uint64 {
	return s.End - s.Start
}

// Clamp bounds a tick to the emission window.
func (s Schedule) Clamp(tick uint64) uint64 {
	if tick < s.Start {
		return s.Start
	}
	if tick > s.End {
		return s.End
	}
	return tick
}

// Finished reports whether tick lies beyond the window.
func (s Schedule) Finished(tick uint64) bool {
	return tick > s.End
}

// Emitted is the reward released over [from, to] after clamping both ends.
func (s Schedule) Emitted(from, to uint64) *big.Int {
	from, to = s.Clamp(from), s.Clamp(to)
	if to <= from {
		return new(big.Int)
	}
	elapsed := new(big.Int).SetUint64(to - from)
	return elapsed.Mul(elapsed, cloneBig(s.RewardPerTick))
}

// Dust is the floor-division remainder that no participant can ever claim.
func (s Schedule) Dust() *big.Int {
	emitted := s.Emitted(s.Start, s.End)
	dust, ok := sub(s.TotalReward, emitted)
	if !ok {
		return new(big.Int)
	}
	return dust
}
