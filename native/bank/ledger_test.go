package bank

import (
	"errors"
	"math/big"
	"sort"
	"testing"

	"promostaking/core/events"
)

type mockState struct {
	tokens     map[string]*Metadata
	balances   map[string]*big.Int
	allowances map[string]*big.Int
}

func newMockState() *mockState {
	return &mockState{
		tokens:     make(map[string]*Metadata),
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]*big.Int),
	}
}

func (m *mockState) TokenMetadataGet(symbol string) (*Metadata, bool, error) {
	meta, ok := m.tokens[symbol]
	if !ok {
		return nil, false, nil
	}
	return meta.Clone(), true, nil
}

func (m *mockState) TokenMetadataPut(meta *Metadata) error {
	m.tokens[meta.Symbol] = meta.Clone()
	return nil
}

func (m *mockState) TokenList() ([]string, error) {
	out := make([]string, 0, len(m.tokens))
	for symbol := range m.tokens {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out, nil
}

func balanceID(symbol string, addr [20]byte) string { return symbol + string(addr[:]) }

func (m *mockState) TokenBalanceGet(symbol string, addr [20]byte) (*big.Int, error) {
	if bal, ok := m.balances[balanceID(symbol, addr)]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

func (m *mockState) TokenBalancePut(symbol string, addr [20]byte, amount *big.Int) error {
	m.balances[balanceID(symbol, addr)] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) TokenAllowanceGet(symbol string, owner, spender [20]byte) (*big.Int, error) {
	if v, ok := m.allowances[balanceID(symbol, owner)+string(spender[:])]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (m *mockState) TokenAllowancePut(symbol string, owner, spender [20]byte, amount *big.Int) error {
	m.allowances[balanceID(symbol, owner)+string(spender[:])] = new(big.Int).Set(amount)
	return nil
}

var (
	minter = [20]byte{0xaa}
	alice  = [20]byte{0x01}
	bob    = [20]byte{0x02}
	vault  = [20]byte{0x03}
)

func newTestLedger(t *testing.T) (*Ledger, *events.Buffer) {
	t.Helper()
	ledger := NewLedger()
	ledger.SetState(newMockState())
	buf := new(events.Buffer)
	ledger.SetEmitter(buf)
	if _, err := ledger.Register(Metadata{Symbol: "promo", Name: "Promo Token", Decimals: 18, MintAuthority: minter}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return ledger, buf
}

func balanceOf(t *testing.T, l *Ledger, addr [20]byte) int64 {
	t.Helper()
	bal, err := l.BalanceOf("PROMO", addr)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Int64()
}

func TestRegisterValidatesAndRejectsDuplicates(t *testing.T) {
	ledger, _ := newTestLedger(t)
	if _, err := ledger.Register(Metadata{Symbol: " Promo ", Name: "again"}); !errors.Is(err, ErrTokenExists) {
		t.Fatalf("expected ErrTokenExists, got %v", err)
	}
	if _, err := ledger.Register(Metadata{Symbol: "", Name: "x"}); !errors.Is(err, ErrInvalidSymbol) {
		t.Fatalf("expected ErrInvalidSymbol, got %v", err)
	}
	if _, err := ledger.Register(Metadata{Symbol: "X"}); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	tokens, err := ledger.Tokens()
	if err != nil || len(tokens) != 1 || tokens[0].Symbol != "PROMO" {
		t.Fatalf("unexpected tokens %+v err=%v", tokens, err)
	}
	if _, err := ledger.BalanceOf("NOPE", alice); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}

func TestMintRequiresAuthority(t *testing.T) {
	ledger, buf := newTestLedger(t)
	if err := ledger.Mint(alice, "PROMO", alice, big.NewInt(5)); !errors.Is(err, ErrMintUnauthorized) {
		t.Fatalf("expected ErrMintUnauthorized, got %v", err)
	}
	if err := ledger.Mint(minter, "promo", alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := balanceOf(t, ledger, alice); got != 100 {
		t.Fatalf("balance %d", got)
	}
	meta, err := ledger.Token("PROMO")
	if err != nil || meta.TotalSupply.Int64() != 100 {
		t.Fatalf("supply %v err=%v", meta, err)
	}
	last := buf.Events()[buf.Len()-1].(events.Payload).Event()
	if last.Type != EventTypeTransfer || last.Attributes["from"] != "" || last.Attributes["amount"] != "100" {
		t.Fatalf("unexpected mint event %+v", last)
	}
}

func TestTransferFailsAtomicallyOnInsufficientBalance(t *testing.T) {
	ledger, _ := newTestLedger(t)
	if err := ledger.Mint(minter, "PROMO", alice, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer("PROMO", alice, bob, big.NewInt(11)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if balanceOf(t, ledger, alice) != 10 || balanceOf(t, ledger, bob) != 0 {
		t.Fatalf("balances changed on failed transfer")
	}
	if err := ledger.Transfer("PROMO", alice, bob, big.NewInt(4)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if balanceOf(t, ledger, alice) != 6 || balanceOf(t, ledger, bob) != 4 {
		t.Fatalf("unexpected balances after transfer")
	}
	if err := ledger.Transfer("PROMO", alice, alice, big.NewInt(6)); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	if balanceOf(t, ledger, alice) != 6 {
		t.Fatalf("self transfer changed balance")
	}
	if err := ledger.Transfer("PROMO", alice, bob, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ledger, _ := newTestLedger(t)
	if err := ledger.Mint(minter, "PROMO", alice, big.NewInt(50)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.TransferFrom("PROMO", vault, alice, vault, big.NewInt(1)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	if err := ledger.Approve("PROMO", alice, vault, big.NewInt(80)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.TransferFrom("PROMO", vault, alice, vault, big.NewInt(60)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	allowance, _ := ledger.Allowance("PROMO", alice, vault)
	if allowance.Int64() != 80 {
		t.Fatalf("allowance changed on failed transferFrom: %s", allowance)
	}
	if err := ledger.TransferFrom("PROMO", vault, alice, vault, big.NewInt(30)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	allowance, _ = ledger.Allowance("PROMO", alice, vault)
	if allowance.Int64() != 50 || balanceOf(t, ledger, alice) != 20 || balanceOf(t, ledger, vault) != 30 {
		t.Fatalf("unexpected state after transferFrom: allowance=%s", allowance)
	}
}
