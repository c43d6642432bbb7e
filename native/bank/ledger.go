package bank

import (
	"errors"
	"fmt"
	"math/big"

	"promostaking/core/events"
	"promostaking/core/types"
)

var (
	ErrInvalidSymbol         = errors.New("bank: token symbol must not be empty")
	ErrInvalidName           = errors.New("bank: token name must not be empty")
	ErrTokenExists           = errors.New("bank: token already registered")
	ErrUnknownToken          = errors.New("bank: token not registered")
	ErrInvalidAmount         = errors.New("bank: amount must not be negative")
	ErrInsufficientBalance   = errors.New("bank: insufficient balance")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
	ErrMintUnauthorized      = errors.New("bank: caller is not the mint authority")
	ErrMintPaused            = errors.New("bank: minting paused")
	ErrNilState              = errors.New("bank: state not configured")
)

type engineState interface {
	TokenMetadataGet(symbol string) (*Metadata, bool, error)
	TokenMetadataPut(meta *Metadata) error
	TokenList() ([]string, error)
	TokenBalanceGet(symbol string, addr [20]byte) (*big.Int, error)
	TokenBalancePut(symbol string, addr [20]byte, amount *big.Int) error
	TokenAllowanceGet(symbol string, owner, spender [20]byte) (*big.Int, error)
	TokenAllowancePut(symbol string, owner, spender [20]byte, amount *big.Int) error
}

// Ledger is a multi-token balance and allowance book. Every method validates
// before it writes, so a returned error means nothing changed.
type Ledger struct {
	state   engineState
	emitter events.Emitter
}

// NewLedger constructs a ledger with a no-op emitter.
func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state engineState) { l.state = state }

// SetEmitter configures the event emitter.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(evt *types.Event) {
	if l.emitter != nil && evt != nil {
		l.emitter.Emit(events.Wrap(evt))
	}
}

func (l *Ledger) token(symbol string) (*Metadata, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	normalized := NormalizeSymbol(symbol)
	if normalized == "" {
		return nil, ErrInvalidSymbol
	}
	meta, ok, err := l.state.TokenMetadataGet(normalized)
	if err != nil {
		return nil, err
	}
	if !ok || meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, normalized)
	}
	return meta.Clone(), nil
}

func checkAmount(amount *big.Int) (*big.Int, error) {
	if amount == nil {
		return new(big.Int), nil
	}
	if amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return new(big.Int).Set(amount), nil
}

// Register records a new token. The symbol is normalised to upper case.
func (l *Ledger) Register(meta Metadata) (*Metadata, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	meta.Symbol = NormalizeSymbol(meta.Symbol)
	if meta.Symbol == "" {
		return nil, ErrInvalidSymbol
	}
	if meta.Name == "" {
		return nil, ErrInvalidName
	}
	_, ok, err := l.state.TokenMetadataGet(meta.Symbol)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenExists, meta.Symbol)
	}
	meta.TotalSupply = new(big.Int)
	if err := l.state.TokenMetadataPut(&meta); err != nil {
		return nil, err
	}
	l.emit(RegisteredEvent(&meta))
	return meta.Clone(), nil
}

// Token returns the metadata of a registered token.
func (l *Ledger) Token(symbol string) (*Metadata, error) {
	return l.token(symbol)
}

// Tokens lists every registered token in symbol order.
func (l *Ledger) Tokens() ([]*Metadata, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	symbols, err := l.state.TokenList()
	if err != nil {
		return nil, err
	}
	out := make([]*Metadata, 0, len(symbols))
	for _, symbol := range symbols {
		meta, err := l.token(symbol)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, nil
}

// Mint credits amount to recipient. Only the token's mint authority may mint.
func (l *Ledger) Mint(caller [20]byte, symbol string, to [20]byte, amount *big.Int) error {
	meta, err := l.token(symbol)
	if err != nil {
		return err
	}
	if caller != meta.MintAuthority {
		return ErrMintUnauthorized
	}
	if meta.MintPaused {
		return ErrMintPaused
	}
	value, err := checkAmount(amount)
	if err != nil {
		return err
	}
	balance, err := l.state.TokenBalanceGet(meta.Symbol, to)
	if err != nil {
		return err
	}
	meta.TotalSupply.Add(meta.TotalSupply, value)
	if err := l.state.TokenMetadataPut(meta); err != nil {
		return err
	}
	if err := l.state.TokenBalancePut(meta.Symbol, to, new(big.Int).Add(balance, value)); err != nil {
		return err
	}
	l.emit(TransferEvent(meta.Symbol, zeroAddress, to, value))
	return nil
}

// BalanceOf returns the balance of addr, zero for unknown holders.
func (l *Ledger) BalanceOf(symbol string, addr [20]byte) (*big.Int, error) {
	meta, err := l.token(symbol)
	if err != nil {
		return nil, err
	}
	return l.state.TokenBalanceGet(meta.Symbol, addr)
}

// Allowance returns how much spender may move on behalf of owner.
func (l *Ledger) Allowance(symbol string, owner, spender [20]byte) (*big.Int, error) {
	meta, err := l.token(symbol)
	if err != nil {
		return nil, err
	}
	return l.state.TokenAllowanceGet(meta.Symbol, owner, spender)
}

// Approve sets the allowance of spender over owner's balance, replacing any
// previous value.
func (l *Ledger) Approve(symbol string, owner, spender [20]byte, amount *big.Int) error {
	meta, err := l.token(symbol)
	if err != nil {
		return err
	}
	value, err := checkAmount(amount)
	if err != nil {
		return err
	}
	if err := l.state.TokenAllowancePut(meta.Symbol, owner, spender, value); err != nil {
		return err
	}
	l.emit(ApprovalEvent(meta.Symbol, owner, spender, value))
	return nil
}

// Transfer moves amount from one holder to another.
func (l *Ledger) Transfer(symbol string, from, to [20]byte, amount *big.Int) error {
	meta, err := l.token(symbol)
	if err != nil {
		return err
	}
	value, err := checkAmount(amount)
	if err != nil {
		return err
	}
	return l.move(meta.Symbol, from, to, value)
}

// TransferFrom moves amount from owner to recipient using spender's
// allowance.
func (l *Ledger) TransferFrom(symbol string, spender, owner, to [20]byte, amount *big.Int) error {
	meta, err := l.token(symbol)
	if err != nil {
		return err
	}
	value, err := checkAmount(amount)
	if err != nil {
		return err
	}
	allowance, err := l.state.TokenAllowanceGet(meta.Symbol, owner, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(value) < 0 {
		return ErrInsufficientAllowance
	}
	balance, err := l.state.TokenBalanceGet(meta.Symbol, owner)
	if err != nil {
		return err
	}
	if balance.Cmp(value) < 0 {
		return ErrInsufficientBalance
	}
	if err := l.move(meta.Symbol, owner, to, value); err != nil {
		return err
	}
	return l.state.TokenAllowancePut(meta.Symbol, owner, spender, new(big.Int).Sub(allowance, value))
}

func (l *Ledger) move(symbol string, from, to [20]byte, value *big.Int) error {
	fromBalance, err := l.state.TokenBalanceGet(symbol, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(value) < 0 {
		return ErrInsufficientBalance
	}
	if from != to {
		toBalance, err := l.state.TokenBalanceGet(symbol, to)
		if err != nil {
			return err
		}
		if err := l.state.TokenBalancePut(symbol, from, new(big.Int).Sub(fromBalance, value)); err != nil {
			return err
		}
		if err := l.state.TokenBalancePut(symbol, to, new(big.Int).Add(toBalance, value)); err != nil {
			return err
		}
	}
	l.emit(TransferEvent(symbol, from, to, value))
	return nil
}
