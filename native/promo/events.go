package promo

import (
	"strconv"

	"promostaking/core/types"
	"promostaking/crypto"
)

const (
	// EventTypeInitialized is emitted once when the program is configured.
	EventTypeInitialized = "promo.initialized"
	// EventTypeRefreshed is emitted when the accumulator advances.
	EventTypeRefreshed = "promo.refreshed"
	// EventTypeStaked is emitted for every stake, including pure compounding.
	EventTypeStaked = "promo.staked"
	// EventTypeUnstaked is emitted for withdrawals and claims.
	EventTypeUnstaked = "promo.unstaked"
	// EventTypeEmergencyWithdrawn is emitted when principal is refunded without settlement.
	EventTypeEmergencyWithdrawn = "promo.emergency_withdrawn"
)

// InitializedEvent returns the payload emitted when the program is configured.
func InitializedEvent(p *Program) *types.Event {
	return &types.Event{
		Type: EventTypeInitialized,
		Attributes: map[string]string{
			"token":         p.Token,
			"startTick":     strconv.FormatUint(p.StartTick, 10),
			"endTick":       strconv.FormatUint(p.EndTick, 10),
			"totalReward":   p.TotalReward.String(),
			"rewardPerTick": p.RewardPerTick.String(),
		},
	}
}

// RefreshedEvent returns the payload carrying the advanced accumulator.
func RefreshedEvent(p *Program) *types.Event {
	return &types.Event{
		Type: EventTypeRefreshed,
		Attributes: map[string]string{
			"accRewardPerShare": p.AccRewardPerShare.String(),
			"lastRewardTick":    strconv.FormatUint(p.LastRewardTick, 10),
			"totalStaked":       p.TotalStaked.String(),
		},
	}
}

// StakedEvent returns the structured event payload for a deposit or compound.
func StakedEvent(res *StakeResult) *types.Event {
	return &types.Event{
		Type: EventTypeStaked,
		Attributes: map[string]string{
			"caller":      crypto.FormatRaw(res.Caller),
			"beneficiary": crypto.FormatRaw(res.Account.Address),
			"amount":      res.Deposited.String(),
			"compounded":  res.Compounded.String(),
			"principal":   res.Account.Amount.String(),
		},
	}
}

// UnstakedEvent returns the structured event payload for a withdrawal or claim.
func UnstakedEvent(res *UnstakeResult) *types.Event {
	return &types.Event{
		Type: EventTypeUnstaked,
		Attributes: map[string]string{
			"account":   crypto.FormatRaw(res.Account.Address),
			"amount":    res.Withdrawn.String(),
			"reward":    res.Reward.String(),
			"principal": res.Account.Amount.String(),
		},
	}
}

// EmergencyWithdrawnEvent returns the payload for a refund that forfeited rewards.
func EmergencyWithdrawnEvent(res *EmergencyResult) *types.Event {
	return &types.Event{
		Type: EventTypeEmergencyWithdrawn,
		Attributes: map[string]string{
			"account":   crypto.FormatRaw(res.Account.Address),
			"amount":    res.Refunded.String(),
			"forfeited": res.Forfeited.String(),
		},
	}
}
