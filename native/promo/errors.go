package promo

import "errors"

var (
	// ErrAlreadyInitialized is returned when Initialize runs a second time.
	ErrAlreadyInitialized = errors.New("promo: already initialized")
	// ErrInvalidStartTick is returned when the program would start in the past.
	ErrInvalidStartTick = errors.New("promo: start tick is in the past")
	// ErrProgramFinished rejects deposits and compounding after the end tick.
	ErrProgramFinished = errors.New("promo: program finished")
	// ErrInsufficientStake rejects withdrawals larger than the principal.
	ErrInsufficientStake = errors.New("promo: stake is not enough")

	// ErrCorruptAccount signals a reward debt larger than the accrued reward.
	ErrCorruptAccount = errors.New("promo: reward debt exceeds accrued reward")
)

// Engine configuration and input errors.
var (
	// ErrNotInitialized is returned by every operation before Initialize.
	ErrNotInitialized = errors.New("promo: program not initialized")
	// ErrUnauthorized rejects Initialize from anyone but the initializer.
	ErrUnauthorized = errors.New("promo: caller is not the initializer")
	// ErrInvalidDuration rejects a zero-length program.
	ErrInvalidDuration = errors.New("promo: duration must be positive")
	// ErrInvalidAmount rejects negative amounts.
	ErrInvalidAmount = errors.New("promo: amount must not be negative")
	// ErrInvalidToken rejects an empty token symbol.
	ErrInvalidToken = errors.New("promo: token must be set")
	// ErrNilState is returned when the engine has no state backend.
	ErrNilState = errors.New("promo: state not configured")
	// ErrNilToken is returned when a transfer is needed but no token is wired.
	ErrNilToken = errors.New("promo: token collaborator not configured")
	// ErrArithmeticOverflow is returned when a value leaves the 256-bit range.
	ErrArithmeticOverflow = errors.New("promo: arithmetic overflow")
)
