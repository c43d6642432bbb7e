package promo

import (
	"math/big"

	"github.com/holiman/uint256"
)

// All ledger quantities are unsigned 256-bit integers. Intermediate products
// are widened to 512 bits by uint256.MulDivOverflow before the floor division.

func toU256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return out, nil
}

// mulDiv returns floor(x*y/d). d must be non-zero.
func mulDiv(x, y, d *big.Int) (*big.Int, error) {
	ux, err := toU256(x)
	if err != nil {
		return nil, err
	}
	uy, err := toU256(y)
	if err != nil {
		return nil, err
	}
	ud, err := toU256(d)
	if err != nil {
		return nil, err
	}
	if ud.IsZero() {
		return nil, ErrArithmeticOverflow
	}
	out, overflow := new(uint256.Int).MulDivOverflow(ux, uy, ud)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return out.ToBig(), nil
}

func mulU64(x *big.Int, n uint64) (*big.Int, error) {
	ux, err := toU256(x)
	if err != nil {
		return nil, err
	}
	out, overflow := new(uint256.Int).MulOverflow(ux, uint256.NewInt(n))
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return out.ToBig(), nil
}

func add(x, y *big.Int) (*big.Int, error) {
	ux, err := toU256(x)
	if err != nil {
		return nil, err
	}
	uy, err := toU256(y)
	if err != nil {
		return nil, err
	}
	out, overflow := new(uint256.Int).AddOverflow(ux, uy)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return out.ToBig(), nil
}

// sub returns x-y and reports ok=false on underflow.
func sub(x, y *big.Int) (*big.Int, bool) {
	out := new(big.Int).Sub(cloneBig(x), cloneBig(y))
	if out.Sign() < 0 {
		return nil, false
	}
	return out, true
}

// accrued is amount*acc/Precision, the reward an amount has earned since the
// accumulator was zero.
func accrued(amount, acc *big.Int) (*big.Int, error) {
	return mulDiv(amount, acc, Precision)
}

// pendingFor is the unsettled reward of an account at the given accumulator.
func pendingFor(acct *Account, acc *big.Int) (*big.Int, error) {
	if acct == nil {
		return new(big.Int), nil
	}
	total, err := accrued(acct.Amount, acc)
	if err != nil {
		return nil, err
	}
	pending, ok := sub(total, acct.RewardDebt)
	if !ok {
		return nil, ErrCorruptAccount
	}
	return pending, nil
}
