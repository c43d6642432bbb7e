package promo

import (
	"errors"
	"math/big"
	"sort"
	"testing"

	"promostaking/core/tick"
)

type mockState struct {
	program  *Program
	accounts map[[20]byte]*Account
}

func newMockState() *mockState {
	return &mockState{accounts: make(map[[20]byte]*Account)}
}

func (m *mockState) PromoProgramGet() (*Program, bool, error) {
	if m.program == nil {
		return nil, false, nil
	}
	return m.program.Clone(), true, nil
}

func (m *mockState) PromoProgramPut(program *Program) error {
	m.program = program.Clone()
	return nil
}

func (m *mockState) PromoAccountGet(addr [20]byte) (*Account, bool, error) {
	acct, ok := m.accounts[addr]
	if !ok {
		return nil, false, nil
	}
	return acct.Clone(), true, nil
}

func (m *mockState) PromoAccountPut(account *Account) error {
	m.accounts[account.Address] = account.Clone()
	return nil
}

func (m *mockState) PromoAccountList() ([][20]byte, error) {
	out := make([][20]byte, 0, len(m.accounts))
	for addr := range m.accounts {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return string(out[i][:]) < string(out[j][:]) })
	return out, nil
}

func (m *mockState) snapshot() (*Program, map[[20]byte]*Account) {
	accounts := make(map[[20]byte]*Account, len(m.accounts))
	for addr, acct := range m.accounts {
		accounts[addr] = acct.Clone()
	}
	return m.program.Clone(), accounts
}

var errMockInsufficient = errors.New("mock token: insufficient funds")

type mockToken struct {
	balances   map[[20]byte]*big.Int
	allowances map[[40]byte]*big.Int
}

func newMockToken() *mockToken {
	return &mockToken{
		balances:   make(map[[20]byte]*big.Int),
		allowances: make(map[[40]byte]*big.Int),
	}
}

func allowanceKey(owner, spender [20]byte) [40]byte {
	var key [40]byte
	copy(key[:20], owner[:])
	copy(key[20:], spender[:])
	return key
}

func (m *mockToken) balance(addr [20]byte) *big.Int {
	if bal, ok := m.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

func (m *mockToken) mint(addr [20]byte, amount int64) {
	m.balances[addr] = new(big.Int).Add(m.balance(addr), big.NewInt(amount))
}

func (m *mockToken) approve(owner, spender [20]byte, amount int64) {
	m.allowances[allowanceKey(owner, spender)] = big.NewInt(amount)
}

func (m *mockToken) Transfer(_ string, from, to [20]byte, amount *big.Int) error {
	if m.balance(from).Cmp(amount) < 0 {
		return errMockInsufficient
	}
	m.balances[from] = new(big.Int).Sub(m.balance(from), amount)
	m.balances[to] = new(big.Int).Add(m.balance(to), amount)
	return nil
}

func (m *mockToken) TransferFrom(symbol string, spender, owner, to [20]byte, amount *big.Int) error {
	key := allowanceKey(owner, spender)
	allowance, ok := m.allowances[key]
	if !ok || allowance.Cmp(amount) < 0 {
		return errMockInsufficient
	}
	if err := m.Transfer(symbol, owner, to, amount); err != nil {
		return err
	}
	m.allowances[key] = new(big.Int).Sub(allowance, amount)
	return nil
}

var (
	testCustody     = [20]byte{0xcc}
	testInitializer = [20]byte{0xaa}
)

func addr(b byte) [20]byte { return [20]byte{0x10, b} }

type harness struct {
	engine *Engine
	state  *mockState
	token  *mockToken
	ticks  *tick.Counter
}

func newHarness(t *testing.T, now uint64) *harness {
	t.Helper()
	h := &harness{
		engine: NewEngine(testCustody, testInitializer),
		state:  newMockState(),
		token:  newMockToken(),
		ticks:  tick.NewCounter(now),
	}
	h.engine.SetState(h.state)
	h.engine.SetToken(h.token)
	h.engine.SetTickSource(h.ticks)
	return h
}

// start initializes a funded program beginning at start.
func (h *harness) start(t *testing.T, start, duration uint64, reward int64) *Program {
	t.Helper()
	h.token.mint(testCustody, reward)
	program, err := h.engine.Initialize(testInitializer, InitParams{
		Token:       "PROMO",
		StartTick:   start,
		Duration:    duration,
		TotalReward: big.NewInt(reward),
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return program
}

func (h *harness) fund(who [20]byte, amount int64) {
	h.token.mint(who, amount)
	h.token.approve(who, testCustody, amount)
}

func (h *harness) at(t *testing.T, tickValue uint64) {
	t.Helper()
	if !h.ticks.Set(tickValue) {
		t.Fatalf("tick moved backwards to %d", tickValue)
	}
}

func (h *harness) stake(t *testing.T, who [20]byte, amount int64) *StakeResult {
	t.Helper()
	res, err := h.engine.Stake(who, who, big.NewInt(amount))
	if err != nil {
		t.Fatalf("stake %d: %v", amount, err)
	}
	return res
}

func (h *harness) pending(t *testing.T, who [20]byte) *big.Int {
	t.Helper()
	pending, err := h.engine.PendingTokens(who)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	return pending
}

func requireInt(t *testing.T, label string, got *big.Int, want int64) {
	t.Helper()
	if got == nil || got.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("%s: got %v want %d", label, got, want)
	}
}

// checkInvariants asserts the ledger-wide properties that must hold in every
// reachable state.
func (h *harness) checkInvariants(t *testing.T) {
	t.Helper()
	program := h.state.program
	if program == nil {
		return
	}
	sum := new(big.Int)
	for _, acct := range h.state.accounts {
		if acct.Amount.Sign() < 0 {
			t.Fatalf("negative principal for %x", acct.Address)
		}
		if _, err := pendingFor(acct, program.AccRewardPerShare); err != nil {
			t.Fatalf("pending for %x: %v", acct.Address, err)
		}
		sum.Add(sum, acct.Amount)
	}
	if sum.Cmp(program.TotalStaked) != 0 {
		t.Fatalf("sum invariant broken: accounts=%s totalStaked=%s", sum, program.TotalStaked)
	}
	if program.TotalRewardPaid.Cmp(program.TotalReward) > 0 {
		t.Fatalf("paid %s exceeds total %s", program.TotalRewardPaid, program.TotalReward)
	}
	if program.Distributed().Cmp(program.TotalReward) > 0 {
		t.Fatalf("distributed %s exceeds total %s", program.Distributed(), program.TotalReward)
	}
	// Custody always covers every principal plus the undistributed budget.
	expected := new(big.Int).Sub(program.TotalReward, program.Distributed())
	expected.Add(expected, program.TotalStaked)
	if custody := h.token.balance(testCustody); custody.Cmp(expected) != 0 {
		t.Fatalf("custody %s want %s", custody, expected)
	}
}
