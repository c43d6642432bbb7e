package promo

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"promostaking/core/events"
)

func TestNewScheduleFloorsRewardPerTick(t *testing.T) {
	s, err := NewSchedule(1000, 300, big.NewInt(10_000))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if s.End != 1300 || s.Duration() != 300 {
		t.Fatalf("unexpected window %d..%d", s.Start, s.End)
	}
	requireInt(t, "rewardPerTick", s.RewardPerTick, 33)
	requireInt(t, "dust", s.Dust(), 100)
	requireInt(t, "emitted", s.Emitted(0, 5000), 9900)
	requireInt(t, "emitted partial", s.Emitted(1100, 1200), 3300)

	if _, err := NewSchedule(1, 0, big.NewInt(1)); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	if _, err := NewSchedule(^uint64(0), 2, big.NewInt(1)); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected overflowing window to fail, got %v", err)
	}
	if _, err := NewSchedule(1, 10, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestAccumulateIsPureAndClamped(t *testing.T) {
	s, err := NewSchedule(100, 10, big.NewInt(1000))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	pool := Pool{AccRewardPerShare: big.NewInt(0), LastRewardTick: 100}

	before, err := Accumulate(s, pool, big.NewInt(50), 90)
	if err != nil {
		t.Fatalf("accumulate: %v", err)
	}
	if before.Differs(pool) {
		t.Fatalf("accumulate before start changed the pool: %+v", before)
	}

	next, err := Accumulate(s, pool, big.NewInt(50), 500)
	if err != nil {
		t.Fatalf("accumulate: %v", err)
	}
	if next.LastRewardTick != 110 {
		t.Fatalf("expected clamp to end tick, got %d", next.LastRewardTick)
	}
	// 10 ticks * 100 per tick * 1e12 / 50
	requireInt(t, "acc", next.AccRewardPerShare, 20_000_000_000_000)
	requireInt(t, "input untouched", pool.AccRewardPerShare, 0)

	empty, err := Accumulate(s, pool, big.NewInt(0), 105)
	if err != nil {
		t.Fatalf("accumulate: %v", err)
	}
	if empty.LastRewardTick != 105 || empty.AccRewardPerShare.Sign() != 0 {
		t.Fatalf("empty pool should only advance the tick: %+v", empty)
	}
}

func TestMulDivUsesWideIntermediate(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	got, err := mulDiv(max, big.NewInt(3), big.NewInt(3))
	if err != nil {
		t.Fatalf("mulDiv: %v", err)
	}
	if got.Cmp(max) != 0 {
		t.Fatalf("expected max uint256 back, got %s", got)
	}
	if _, err := mulDiv(max, big.NewInt(2), big.NewInt(1)); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	if _, err := mulDiv(tooBig, big.NewInt(1), big.NewInt(1)); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected overflow for 2^256 input, got %v", err)
	}
}

func TestInitializeGuards(t *testing.T) {
	h := newHarness(t, 50)
	params := InitParams{Token: "PROMO", StartTick: 100, Duration: 300, TotalReward: big.NewInt(10_000)}

	if _, err := h.engine.Initialize(addr(1), params); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	bad := params
	bad.Token = ""
	if _, err := h.engine.Initialize(testInitializer, bad); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	bad = params
	bad.Duration = 0
	if _, err := h.engine.Initialize(testInitializer, bad); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	bad = params
	bad.StartTick = 49
	if _, err := h.engine.Initialize(testInitializer, bad); !errors.Is(err, ErrInvalidStartTick) {
		t.Fatalf("expected ErrInvalidStartTick, got %v", err)
	}
	if h.state.program != nil {
		t.Fatalf("failed initialization must not write state")
	}

	// Starting at the current tick is allowed.
	params.StartTick = 50
	program, err := h.engine.Initialize(testInitializer, params)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !program.Initialized || program.EndTick != 350 || program.LastRewardTick != 50 {
		t.Fatalf("unexpected program %+v", program)
	}
	requireInt(t, "rewardPerTick", program.RewardPerTick, 33)

	if _, err := h.engine.Initialize(testInitializer, params); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestOperationsRequireInitialization(t *testing.T) {
	h := newHarness(t, 0)
	if _, err := h.engine.Stake(addr(1), addr(1), big.NewInt(1)); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("stake: expected ErrNotInitialized, got %v", err)
	}
	if _, err := h.engine.Unstake(addr(1), big.NewInt(0)); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("unstake: expected ErrNotInitialized, got %v", err)
	}
	if _, err := h.engine.EmergencyWithdraw(addr(1)); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("emergency: expected ErrNotInitialized, got %v", err)
	}
	if _, _, err := h.engine.Refresh(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("refresh: expected ErrNotInitialized, got %v", err)
	}
	staked, err := h.engine.StakedAmount(addr(1))
	if err != nil {
		t.Fatalf("staked amount: %v", err)
	}
	requireInt(t, "staked", staked, 0)

	var nilEngine *Engine
	if _, err := nilEngine.Program(); !errors.Is(err, ErrNilState) {
		t.Fatalf("expected ErrNilState, got %v", err)
	}
}

func TestTwoAccountsSplitRewardPeriods(t *testing.T) {
	const start = 1000
	h := newHarness(t, start)
	h.start(t, start, 300, 10_000)
	a, b := addr(1), addr(2)
	h.fund(a, 10)
	h.fund(b, 20)

	h.stake(t, a, 10)
	h.at(t, start+100)
	h.stake(t, b, 20)
	h.at(t, start+200)

	// Stale until refreshed: A only sees the first period.
	requireInt(t, "stale pending A", h.pending(t, a), 3300)
	requireInt(t, "stale pending B", h.pending(t, b), 0)
	projected, asOf, err := h.engine.ProjectedPending(a)
	if err != nil {
		t.Fatalf("projected: %v", err)
	}
	requireInt(t, "projected A", projected, 4400)
	if asOf != start+200 {
		t.Fatalf("projection tick %d", asOf)
	}
	if h.state.program.LastRewardTick != start+100 {
		t.Fatalf("projection must not write state")
	}

	if _, changed, err := h.engine.Refresh(); err != nil || !changed {
		t.Fatalf("refresh: changed=%v err=%v", changed, err)
	}
	// rewardPerTick=33: A = 100*33 + 100*33*10/30, B = 100*33*20/30.
	requireInt(t, "pending A", h.pending(t, a), 4400)
	requireInt(t, "pending B", h.pending(t, b), 2200)
	h.checkInvariants(t)
}

func TestRefreshIsIdempotentAtSameTick(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, 0, 100, 1000)
	h.fund(addr(1), 5)
	h.stake(t, addr(1), 5)
	h.at(t, 40)

	first, changed, err := h.engine.Refresh()
	if err != nil || !changed {
		t.Fatalf("first refresh: changed=%v err=%v", changed, err)
	}
	second, changed, err := h.engine.Refresh()
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if changed || first.Pool().Differs(second.Pool()) {
		t.Fatalf("second refresh changed the accumulator: %+v -> %+v", first.Pool(), second.Pool())
	}
}

func TestDepositsBeforeStartAccrueNothing(t *testing.T) {
	h := newHarness(t, 10)
	h.start(t, 100, 100, 1000)
	h.fund(addr(1), 50)
	h.stake(t, addr(1), 50)

	h.at(t, 99)
	if _, changed, err := h.engine.Refresh(); err != nil || changed {
		t.Fatalf("refresh before start: changed=%v err=%v", changed, err)
	}
	requireInt(t, "pending before start", h.pending(t, addr(1)), 0)

	h.at(t, 100)
	if _, _, err := h.engine.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	requireInt(t, "pending at start", h.pending(t, addr(1)), 0)

	h.at(t, 101)
	if _, _, err := h.engine.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	requireInt(t, "pending after one tick", h.pending(t, addr(1)), 10)
}

func TestProgramFreezesAfterEnd(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, 0, 300, 10_000)
	a := addr(1)
	h.fund(a, 20)
	h.stake(t, a, 10)

	h.at(t, 300)
	// Staking on the end tick itself is still allowed.
	h.stake(t, a, 5)

	h.at(t, 301)
	if _, err := h.engine.Stake(a, a, big.NewInt(5)); !errors.Is(err, ErrProgramFinished) {
		t.Fatalf("expected ErrProgramFinished, got %v", err)
	}
	if _, err := h.engine.Stake(a, a, big.NewInt(0)); !errors.Is(err, ErrProgramFinished) {
		t.Fatalf("compounding after end: expected ErrProgramFinished, got %v", err)
	}

	h.at(t, 10_000)
	if _, changed, err := h.engine.Refresh(); err != nil || changed {
		t.Fatalf("no accrual after end: changed=%v err=%v", changed, err)
	}

	res, err := h.engine.Unstake(a, nil)
	if err != nil {
		t.Fatalf("claim after end: %v", err)
	}
	if res.Reward.Sign() != 0 {
		t.Fatalf("reward was compounded at end tick, claim should be empty: %s", res.Reward)
	}
	principal := new(big.Int).Set(res.Account.Amount)
	if _, err := h.engine.Unstake(a, principal); err != nil {
		t.Fatalf("unstake after end: %v", err)
	}
	// 5 never staked, plus 15 principal and the 9 900 compounded at the end tick.
	requireInt(t, "wallet", h.token.balance(a), 5+15+9900)
	h.checkInvariants(t)
}

func TestSingleStakerShortfallIsDust(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, 0, 300, 10_000)
	h.fund(addr(1), 10)
	h.stake(t, addr(1), 10)

	h.at(t, 400)
	res, err := h.engine.Unstake(addr(1), big.NewInt(10))
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	requireInt(t, "reward", res.Reward, 9900)
	requireInt(t, "paid", res.Program.TotalRewardPaid, 9900)
	shortfall := new(big.Int).Sub(res.Program.TotalReward, res.Program.TotalRewardPaid)
	if shortfall.Cmp(big.NewInt(299)) > 0 {
		t.Fatalf("shortfall %s exceeds duration-1", shortfall)
	}
	report, err := h.engine.Audit()
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	requireInt(t, "dust", report.UnclaimableDust, 100)
	if !report.StakeBalanced || !report.WithinBudget || report.Accounts != 1 {
		t.Fatalf("unexpected audit %+v", report)
	}
}

func TestStakeZeroCompoundsPendingIntoPrincipal(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, 0, 100, 1000)
	a := addr(1)
	h.fund(a, 10)
	h.stake(t, a, 10)
	h.at(t, 10)

	walletBefore := h.token.balance(a)
	res := h.stake(t, a, 0)
	requireInt(t, "compounded", res.Compounded, 100)
	requireInt(t, "principal", res.Account.Amount, 110)
	requireInt(t, "totalStaked", res.Program.TotalStaked, 110)
	requireInt(t, "paid", res.Program.TotalRewardPaid, 0)
	requireInt(t, "compounded total", res.Program.TotalRewardCompounded, 100)
	if h.token.balance(a).Cmp(walletBefore) != 0 {
		t.Fatalf("compounding must not move tokens")
	}
	requireInt(t, "pending after compound", h.pending(t, a), 0)
	h.checkInvariants(t)
}

func TestUnstakeZeroClaimsReward(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, 0, 100, 1000)
	a := addr(1)
	h.fund(a, 10)
	h.stake(t, a, 10)
	h.at(t, 25)

	res, err := h.engine.Unstake(a, big.NewInt(0))
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	requireInt(t, "reward", res.Reward, 250)
	requireInt(t, "principal", res.Account.Amount, 10)
	requireInt(t, "wallet", h.token.balance(a), 250)
	requireInt(t, "paid", res.Program.TotalRewardPaid, 250)
	requireInt(t, "totalStaked", res.Program.TotalStaked, 10)
	h.checkInvariants(t)
}

func TestStakeForBeneficiaryCreditsBeneficiaryOnly(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, 0, 100, 1000)
	payer, friend := addr(1), addr(2)
	h.fund(payer, 30)
	h.stake(t, payer, 10)
	h.at(t, 10)

	res, err := h.engine.Stake(payer, friend, big.NewInt(20))
	if err != nil {
		t.Fatalf("stake for friend: %v", err)
	}
	requireInt(t, "friend compounded", res.Compounded, 0)
	requireInt(t, "friend principal", res.Account.Amount, 20)
	requireInt(t, "friend debt", res.Account.RewardDebt, 20*10)
	if _, ok := h.state.accounts[friend]; !ok {
		t.Fatalf("beneficiary record was not created")
	}
	// The payer's own pending reward is untouched by paying for someone else.
	requireInt(t, "payer pending", h.pending(t, payer), 100)
	requireInt(t, "payer principal", h.state.accounts[payer].Amount, 10)
	h.checkInvariants(t)
}

func TestStakeZeroForNewBeneficiaryInsertsEmptyRecord(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, 0, 100, 1000)
	res, err := h.engine.Stake(addr(1), addr(2), nil)
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	acct, ok, err := h.engine.Account(addr(2))
	if err != nil || !ok {
		t.Fatalf("expected explicit record: ok=%v err=%v", ok, err)
	}
	requireInt(t, "principal", acct.Amount, 0)
	requireInt(t, "deposited", res.Deposited, 0)

	if _, ok, _ := h.engine.Account(addr(3)); ok {
		t.Fatalf("untouched address must have no record")
	}
}

func TestEmergencyWithdrawForfeitsPending(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, 0, 100, 1000)
	a, b := addr(1), addr(2)
	h.fund(a, 10)
	h.fund(b, 10)
	h.stake(t, a, 10)
	h.stake(t, b, 10)
	h.at(t, 50)

	res, err := h.engine.EmergencyWithdraw(a)
	if err != nil {
		t.Fatalf("emergency: %v", err)
	}
	requireInt(t, "refunded", res.Refunded, 10)
	requireInt(t, "forfeited", res.Forfeited, 250)
	requireInt(t, "wallet", h.token.balance(a), 10)
	requireInt(t, "paid", res.Program.TotalRewardPaid, 0)
	requireInt(t, "principal", res.Account.Amount, 0)
	requireInt(t, "debt", res.Account.RewardDebt, 0)
	requireInt(t, "pending", h.pending(t, a), 0)
	h.checkInvariants(t)

	// Nothing is left to claim later, and the other staker is unaffected.
	h.at(t, 60)
	claim, err := h.engine.Unstake(a, big.NewInt(0))
	if err != nil {
		t.Fatalf("claim after emergency: %v", err)
	}
	requireInt(t, "late claim", claim.Reward, 0)
	requireInt(t, "b pending", h.pending(t, b), 250+100)
	h.checkInvariants(t)
}

func TestEmergencyWithdrawWithoutRecordIsHarmless(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, 0, 100, 1000)
	res, err := h.engine.EmergencyWithdraw(addr(9))
	if err != nil {
		t.Fatalf("emergency: %v", err)
	}
	requireInt(t, "refunded", res.Refunded, 0)
	if _, ok := h.state.accounts[addr(9)]; ok {
		t.Fatalf("emergency withdraw must not create records")
	}
}

func TestOverUnstakeLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, 0, 100, 1000)
	a := addr(1)
	h.fund(a, 10)
	h.stake(t, a, 10)
	h.at(t, 30)

	program, accounts := h.state.snapshot()
	wallet := h.token.balance(a)
	if _, err := h.engine.Unstake(a, big.NewInt(11)); !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("expected ErrInsufficientStake, got %v", err)
	}
	if h.state.program.Pool().Differs(program.Pool()) || h.state.program.TotalStaked.Cmp(program.TotalStaked) != 0 {
		t.Fatalf("program changed on failed unstake")
	}
	if h.state.accounts[a].Amount.Cmp(accounts[a].Amount) != 0 || h.state.accounts[a].RewardDebt.Cmp(accounts[a].RewardDebt) != 0 {
		t.Fatalf("account changed on failed unstake")
	}
	if h.token.balance(a).Cmp(wallet) != 0 {
		t.Fatalf("tokens moved on failed unstake")
	}
	if _, err := h.engine.Unstake(addr(5), big.NewInt(1)); !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("unknown account: expected ErrInsufficientStake, got %v", err)
	}
}

func TestFailedTransferIsAtomic(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, 0, 100, 1000)
	a := addr(1)
	h.token.mint(a, 10) // no allowance

	if _, err := h.engine.Stake(a, a, big.NewInt(10)); !errors.Is(err, errMockInsufficient) {
		t.Fatalf("expected token failure, got %v", err)
	}
	if len(h.state.accounts) != 0 || h.state.program.TotalStaked.Sign() != 0 {
		t.Fatalf("state changed after failed transfer")
	}
}

func TestEventsEmittedPerOperation(t *testing.T) {
	h := newHarness(t, 0)
	var buf events.Buffer
	h.engine.SetEmitter(&buf)
	h.start(t, 0, 100, 1000)
	h.fund(addr(1), 10)
	h.stake(t, addr(1), 10)
	h.at(t, 5)
	if _, err := h.engine.Unstake(addr(1), big.NewInt(0)); err != nil {
		t.Fatalf("claim: %v", err)
	}

	var kinds []string
	for _, evt := range buf.Events() {
		kinds = append(kinds, evt.EventType())
	}
	want := []string{EventTypeInitialized, EventTypeStaked, EventTypeRefreshed, EventTypeUnstaked}
	if len(kinds) != len(want) {
		t.Fatalf("events %v want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("events %v want %v", kinds, want)
		}
	}
}

func TestRandomInterleavingsPreserveInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	h := newHarness(t, 0)
	h.start(t, 20, 500, 1_000_003)
	participants := [][20]byte{addr(1), addr(2), addr(3), addr(4), addr(5)}
	for _, p := range participants {
		h.fund(p, 1_000_000)
	}

	lastAcc := new(big.Int)
	var lastTick uint64
	now := uint64(0)
	for step := 0; step < 600; step++ {
		now += uint64(rng.Intn(3))
		h.at(t, now)
		who := participants[rng.Intn(len(participants))]
		var err error
		switch rng.Intn(6) {
		case 0, 1:
			_, err = h.engine.Stake(who, who, big.NewInt(int64(rng.Intn(5000))))
		case 2:
			other := participants[rng.Intn(len(participants))]
			_, err = h.engine.Stake(who, other, big.NewInt(int64(rng.Intn(100))))
		case 3:
			staked := h.state.accounts[who]
			amount := int64(0)
			if staked != nil && staked.Amount.Sign() > 0 {
				amount = rng.Int63n(staked.Amount.Int64() + 1)
			}
			_, err = h.engine.Unstake(who, big.NewInt(amount))
		case 4:
			_, err = h.engine.EmergencyWithdraw(who)
		default:
			_, _, err = h.engine.Refresh()
		}
		if err != nil && !errors.Is(err, ErrProgramFinished) {
			t.Fatalf("step %d: %v", step, err)
		}
		h.checkInvariants(t)

		program := h.state.program
		if program.AccRewardPerShare.Cmp(lastAcc) < 0 || program.LastRewardTick < lastTick {
			t.Fatalf("step %d: accumulator moved backwards", step)
		}
		lastAcc = new(big.Int).Set(program.AccRewardPerShare)
		lastTick = program.LastRewardTick
	}

	// Drain everyone after the end and confirm the budget held.
	h.at(t, now+1000)
	for _, p := range participants {
		acct := h.state.accounts[p]
		if acct == nil {
			continue
		}
		if _, err := h.engine.Unstake(p, acct.Amount); err != nil {
			t.Fatalf("drain: %v", err)
		}
	}
	h.checkInvariants(t)
	report, err := h.engine.Audit()
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !report.StakeBalanced || !report.WithinBudget || report.TotalStaked.Sign() != 0 {
		t.Fatalf("unexpected final audit %+v", report)
	}
}

func (h *harness) unstake(t *testing.T, who [20]byte, amount int64) *UnstakeResult {
	t.Helper()
	res, err := h.engine.Unstake(who, big.NewInt(amount))
	if err != nil {
		t.Fatalf("unstake %d: %v", amount, err)
	}
	return res
}

func TestEvenRewardDrainsDespiteRoundingOvershoot(t *testing.T) {
	h := newHarness(t, 0)
	h.start(t, 10, 10, 1000)
	a, b, c := addr(1), addr(2), addr(3)
	h.fund(a, 85)
	h.fund(b, 75)
	h.fund(c, 52)
	h.at(t, 5)
	h.stake(t, a, 85)
	h.stake(t, b, 75)
	h.stake(t, c, 52)

	h.at(t, 11)
	requireInt(t, "compound a", h.stake(t, a, 0).Compounded, 40)
	h.at(t, 12)
	requireInt(t, "claim c", h.unstake(t, c, 0).Reward, 45)
	h.at(t, 13)
	requireInt(t, "compound a again", h.stake(t, a, 0).Compounded, 100)
	h.at(t, 16)
	requireInt(t, "claim a", h.unstake(t, a, 0).Reward, 192)
	h.checkInvariants(t)

	// Floored debts leave c one unit above what the budget still holds.
	h.at(t, 100)
	drains := []struct {
		who       [20]byte
		principal int64
		reward    int64
	}{
		{a, 225, 256},
		{b, 75, 244},
		{c, 52, 123},
	}
	for _, d := range drains {
		res := h.unstake(t, d.who, d.principal)
		requireInt(t, "withdrawn", res.Withdrawn, d.principal)
		requireInt(t, "reward", res.Reward, d.reward)
		h.checkInvariants(t)
	}
	program := h.state.program
	requireInt(t, "paid", program.TotalRewardPaid, 860)
	requireInt(t, "compounded", program.TotalRewardCompounded, 140)
	requireInt(t, "totalStaked", program.TotalStaked, 0)
	requireInt(t, "custody", h.token.balance(testCustody), 0)
	requireInt(t, "wallet c", h.token.balance(c), 52+45+123)
}

func TestEvenRewardShortfallBoundAfterDrain(t *testing.T) {
	const duration = 500
	rng := rand.New(rand.NewSource(7))
	h := newHarness(t, 0)
	h.start(t, 20, duration, 1_000_000)
	// An anchor stake keeps the pool non-empty for the whole window.
	anchor := addr(9)
	h.fund(anchor, 1000)
	h.stake(t, anchor, 1000)
	participants := [][20]byte{addr(1), addr(2), addr(3), addr(4)}
	for _, p := range participants {
		h.fund(p, 1_000_000)
	}

	now := uint64(0)
	for step := 0; step < 400; step++ {
		now += uint64(rng.Intn(3))
		h.at(t, now)
		who := participants[rng.Intn(len(participants))]
		var err error
		switch rng.Intn(4) {
		case 0:
			_, err = h.engine.Stake(who, who, big.NewInt(int64(rng.Intn(5000))))
		case 1:
			_, err = h.engine.Stake(who, who, big.NewInt(0))
		case 2:
			amount := int64(0)
			if acct := h.state.accounts[who]; acct != nil && acct.Amount.Sign() > 0 {
				amount = rng.Int63n(acct.Amount.Int64() + 1)
			}
			_, err = h.engine.Unstake(who, big.NewInt(amount))
		default:
			_, err = h.engine.Unstake(who, big.NewInt(0))
		}
		if err != nil && !errors.Is(err, ErrProgramFinished) {
			t.Fatalf("step %d: %v", step, err)
		}
		h.checkInvariants(t)
	}

	h.at(t, now+1000)
	for _, p := range append(participants, anchor) {
		acct := h.state.accounts[p]
		if acct == nil {
			continue
		}
		if _, err := h.engine.Unstake(p, acct.Amount); err != nil {
			t.Fatalf("drain %x: %v", p, err)
		}
		h.checkInvariants(t)
	}
	program := h.state.program
	if program.TotalStaked.Sign() != 0 {
		t.Fatalf("stake left after drain: %s", program.TotalStaked)
	}
	shortfall := new(big.Int).Sub(program.TotalReward, program.Distributed())
	if shortfall.Sign() < 0 || shortfall.Cmp(big.NewInt(duration-1)) > 0 {
		t.Fatalf("shortfall %s outside [0, %d]", shortfall, duration-1)
	}
	requireInt(t, "custody", h.token.balance(testCustody), shortfall.Int64())
}
