package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"promostaking/core/events"
	"promostaking/core/state"
	"promostaking/core/tick"
	"promostaking/native/bank"
	"promostaking/native/promo"
	"promostaking/observability"
	"promostaking/observability/otel"
	"promostaking/storage"
)

var (
	// ErrNilDatabase is returned when a node is constructed without storage.
	ErrNilDatabase = errors.New("core: database not configured")
	// ErrNilTickSource is returned when a node is constructed without a tick source.
	ErrNilTickSource = errors.New("core: tick source not configured")
	// ErrStartDelayOverflow rejects a genesis start delay that would wrap the tick.
	ErrStartDelayOverflow = errors.New("core: program start delay overflows tick")
)

// Options wires a node to its collaborators.
type Options struct {
	DB    storage.Database
	Ticks tick.Source
	// Custody holds staked principal and the undistributed reward budget.
	Custody [20]byte
	// Initializer is the only identity allowed to initialize the program.
	Initializer [20]byte
	// Emitter receives events after the state transition producing them
	// has been committed. Optional.
	Emitter events.Emitter
	Logger  *slog.Logger
}

// Node serializes every ledger operation. Each mutating call runs inside a
// single state transaction: the promo engine and the token ledger share it, so
// a failure anywhere leaves storage untouched and no events are released.
type Node struct {
	db          storage.Database
	state       *state.Manager
	ticks       tick.Source
	emitter     events.Emitter
	logger      *slog.Logger
	tracer      trace.Tracer
	operations  metric.Int64Counter
	custody     [20]byte
	initializer [20]byte
	stateMu     sync.Mutex
}

// NewNode constructs a node on top of the supplied database.
func NewNode(opts Options) (*Node, error) {
	if opts.DB == nil {
		return nil, ErrNilDatabase
	}
	if opts.Ticks == nil {
		return nil, ErrNilTickSource
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var operations metric.Int64Counter = noop.Int64Counter{}
	if counter, err := otel.Meter("core").Int64Counter("promo.operations",
		metric.WithDescription("Ledger operations by outcome")); err == nil {
		operations = counter
	}
	return &Node{
		db:          opts.DB,
		state:       state.NewManager(opts.DB),
		ticks:       opts.Ticks,
		emitter:     emitter,
		logger:      logger.With("component", "core"),
		tracer:      otel.Tracer("core"),
		operations:  operations,
		custody:     opts.Custody,
		initializer: opts.Initializer,
	}, nil
}

// Custody returns the custody account address.
func (n *Node) Custody() [20]byte { return n.custody }

// Initializer returns the address allowed to initialize the program.
func (n *Node) Initializer() [20]byte { return n.initializer }

// CurrentTick reports the tick the next operation will observe.
func (n *Node) CurrentTick() uint64 { return n.ticks.Current() }

// StateManager exposes the underlying state manager.
func (n *Node) StateManager() *state.Manager { return n.state }

// engines is the per-call view of the ledger. Both engines read and write the
// same transaction and observe the same tick.
type engines struct {
	tx    *state.Tx
	promo *promo.Engine
	bank  *bank.Ledger
	now   uint64
}

func (n *Node) newEngines(tx *state.Tx, emitter events.Emitter) *engines {
	now := n.ticks.Current()
	ledger := bank.NewLedger()
	ledger.SetState(tx)
	ledger.SetEmitter(emitter)

	engine := promo.NewEngine(n.custody, n.initializer)
	engine.SetState(tx)
	engine.SetToken(ledger)
	engine.SetTickSource(tick.Func(func() uint64 { return now }))
	engine.SetEmitter(emitter)
	return &engines{tx: tx, promo: engine, bank: ledger, now: now}
}

// mutate runs fn inside a fresh transaction. The transaction commits only
// when fn succeeds; buffered events are released after the commit.
func (n *Node) mutate(ctx context.Context, op string, fn func(e *engines) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := n.tracer.Start(ctx, "core."+op)
	defer span.End()
	started := time.Now()

	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	var buffer events.Buffer
	tx := n.state.Begin()
	e := n.newEngines(tx, &buffer)
	span.SetAttributes(attribute.Int64("promo.tick", int64(e.now)))

	err := fn(e)
	if err == nil {
		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("commit %s: %w", op, commitErr)
		}
	}
	if err != nil {
		tx.Discard()
		buffer.Discard()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.Promo().ObserveOperation(op, err, time.Since(started))
		n.operations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op), attribute.Bool("ok", false)))
		n.logger.Debug("operation rejected", "op", op, "tick", e.now, "error", err)
		return err
	}

	for _, evt := range buffer.Events() {
		observability.Events().RecordEvent(evt.EventType())
	}
	buffer.Flush(n.emitter)
	observability.Promo().ObserveOperation(op, nil, time.Since(started))
	n.operations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op), attribute.Bool("ok", true)))
	n.recordLedgerLocked(e.now)
	return nil
}

// view runs fn against a read-only transaction.
func (n *Node) view(ctx context.Context, op string, fn func(e *engines) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := n.tracer.Start(ctx, "core."+op)
	defer span.End()

	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	tx := n.state.Begin()
	defer tx.Discard()
	err := fn(n.newEngines(tx, events.NoopEmitter{}))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (n *Node) recordLedgerLocked(now uint64) {
	err := n.state.View(func(tx *state.Tx) error {
		program, ok, err := tx.PromoProgramGet()
		if err != nil || !ok {
			return err
		}
		observability.Promo().RecordLedger(observability.LedgerSnapshot{
			TotalStaked:       program.TotalStaked,
			TotalReward:       program.TotalReward,
			RewardPaid:        program.TotalRewardPaid,
			RewardCompounded:  program.TotalRewardCompounded,
			AccRewardPerShare: program.AccRewardPerShare,
			LastRewardTick:    program.LastRewardTick,
			CurrentTick:       now,
		})
		return nil
	})
	if err != nil {
		n.logger.Warn("ledger snapshot failed", "error", err)
	}
}
