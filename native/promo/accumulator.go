package promo

import "math/big"

// Pool is the global accumulator pair.
type Pool struct {
	AccRewardPerShare *big.Int
	LastRewardTick    uint64
}

// Accumulate integrates rewards emitted since pool.LastRewardTick into the
// per-share accumulator. It is pure: the returned pool is a new value and the
// inputs are left untouched. When nothing is staked the elapsed rewards are
// not distributed, but LastRewardTick still advances.
func Accumulate(s Schedule, pool Pool, totalStaked *big.Int, current uint64) (Pool, error) {
	next := Pool{AccRewardPerShare: cloneBig(pool.AccRewardPerShare), LastRewardTick: pool.LastRewardTick}
	now := s.Clamp(current)
	if now <= next.LastRewardTick {
		return next, nil
	}
	elapsed := now - next.LastRewardTick
	if totalStaked != nil && totalStaked.Sign() > 0 {
		reward, err := mulU64(s.RewardPerTick, elapsed)
		if err != nil {
			return Pool{}, err
		}
		increment, err := mulDiv(reward, Precision, totalStaked)
		if err != nil {
			return Pool{}, err
		}
		acc, err := add(next.AccRewardPerShare, increment)
		if err != nil {
			return Pool{}, err
		}
		next.AccRewardPerShare = acc
	}
	next.LastRewardTick = now
	return next, nil
}

// Differs reports whether the two pools hold different accumulator values.
func (p Pool) Differs(other Pool) bool {
	return other.LastRewardTick != p.LastRewardTick || cloneBig(other.AccRewardPerShare).Cmp(cloneBig(p.AccRewardPerShare)) != 0
}
