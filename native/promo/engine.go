package promo

import (
	"math/big"

	"promostaking/core/events"
	"promostaking/core/tick"
	"promostaking/core/types"
)

type engineState interface {
	PromoProgramGet() (*Program, bool, error)
	PromoProgramPut(program *Program) error
	PromoAccountGet(addr [20]byte) (*Account, bool, error)
	PromoAccountPut(account *Account) error
	PromoAccountList() ([][20]byte, error)
}

// Token moves the staked asset. Both calls must be all-or-nothing.
type Token interface {
	TransferFrom(symbol string, spender, owner, recipient [20]byte, amount *big.Int) error
	Transfer(symbol string, from, to [20]byte, amount *big.Int) error
}

// Engine implements the reward ledger on top of pluggable state, token and
// tick collaborators. It performs no locking; callers serialize access and
// provide atomic state.
type Engine struct {
	state       engineState
	token       Token
	ticks       tick.Source
	emitter     events.Emitter
	custody     [20]byte
	initializer [20]byte
}

// NewEngine constructs an engine that holds deposits at custody and accepts
// Initialize only from initializer.
func NewEngine(custody, initializer [20]byte) *Engine {
	return &Engine{
		emitter:     events.NoopEmitter{},
		ticks:       tick.Func(func() uint64 { return 0 }),
		custody:     custody,
		initializer: initializer,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetToken configures the token collaborator.
func (e *Engine) SetToken(token Token) { e.token = token }

// SetTickSource configures where the current tick is read from.
func (e *Engine) SetTickSource(src tick.Source) {
	if src == nil {
		return
	}
	e.ticks = src
}

// SetEmitter configures the event emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Custody returns the address holding deposits and the reward budget.
func (e *Engine) Custody() [20]byte { return e.custody }

// Initializer returns the only identity allowed to call Initialize.
func (e *Engine) Initializer() [20]byte { return e.initializer }

// CurrentTick reads the configured tick source.
func (e *Engine) CurrentTick() uint64 { return e.ticks.Current() }

func (e *Engine) emit(evt *types.Event) {
	if e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(events.Wrap(evt))
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return nil
}

// loadProgram returns a mutable copy of the initialized program.
func (e *Engine) loadProgram() (*Program, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	program, ok, err := e.state.PromoProgramGet()
	if err != nil {
		return nil, err
	}
	if !ok || program == nil || !program.Initialized {
		return nil, ErrNotInitialized
	}
	program = program.Clone()
	program.normalize()
	return program, nil
}

func (e *Engine) loadAccount(addr [20]byte) (*Account, bool, error) {
	acct, ok, err := e.state.PromoAccountGet(addr)
	if err != nil {
		return nil, false, err
	}
	if !ok || acct == nil {
		return newAccount(addr), false, nil
	}
	acct = acct.Clone()
	acct.Address = addr
	acct.normalize()
	return acct, true, nil
}

// refresh advances the program's accumulator to now in place and reports
// whether anything changed.
func refresh(program *Program, now uint64) (bool, error) {
	before := program.Pool()
	after, err := Accumulate(program.Schedule(), before, program.TotalStaked, now)
	if err != nil {
		return false, err
	}
	program.applyPool(after)
	return before.Differs(after), nil
}
