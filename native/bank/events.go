package bank

import (
	"math/big"

	"promostaking/core/types"
	"promostaking/crypto"
)

const (
	// EventTypeTransfer is emitted whenever balances move, including mints.
	EventTypeTransfer = "token.transfer"
	// EventTypeApproval is emitted when an allowance is set.
	EventTypeApproval = "token.approval"
	// EventTypeRegistered is emitted when a token is registered.
	EventTypeRegistered = "token.registered"
)

var zeroAddress [20]byte

func formatAddr(addr [20]byte) string {
	if addr == zeroAddress {
		return ""
	}
	return crypto.FormatRaw(addr)
}

func TransferEvent(symbol string, from, to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"token":  symbol,
			"from":   formatAddr(from),
			"to":     formatAddr(to),
			"amount": amount.String(),
		},
	}
}

func ApprovalEvent(symbol string, owner, spender [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeApproval,
		Attributes: map[string]string{
			"token":   symbol,
			"owner":   formatAddr(owner),
			"spender": formatAddr(spender),
			"amount":  amount.String(),
		},
	}
}

func RegisteredEvent(meta *Metadata) *types.Event {
	return &types.Event{
		Type: EventTypeRegistered,
		Attributes: map[string]string{
			"token":         meta.Symbol,
			"name":          meta.Name,
			"mintAuthority": formatAddr(meta.MintAuthority),
		},
	}
}
