package core

import (
	"context"
	"math/big"

	"promostaking/native/bank"
)

// TokenRegister records a new token.
func (n *Node) TokenRegister(ctx context.Context, meta bank.Metadata) (*bank.Metadata, error) {
	var out *bank.Metadata
	err := n.mutate(ctx, "token_register", func(e *engines) error {
		var err error
		out, err = e.bank.Register(meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info("token registered", "symbol", out.Symbol, "decimals", out.Decimals)
	return out, nil
}

// TokenMint credits amount of symbol to recipient on behalf of the mint
// authority caller.
func (n *Node) TokenMint(ctx context.Context, caller [20]byte, symbol string, to [20]byte, amount *big.Int) error {
	return n.mutate(ctx, "token_mint", func(e *engines) error {
		return e.bank.Mint(caller, symbol, to, amount)
	})
}

// TokenTransfer moves amount of symbol from caller to recipient.
func (n *Node) TokenTransfer(ctx context.Context, caller [20]byte, symbol string, to [20]byte, amount *big.Int) error {
	return n.mutate(ctx, "token_transfer", func(e *engines) error {
		return e.bank.Transfer(symbol, caller, to, amount)
	})
}

// TokenApprove sets spender's allowance over caller's balance.
func (n *Node) TokenApprove(ctx context.Context, caller [20]byte, symbol string, spender [20]byte, amount *big.Int) error {
	return n.mutate(ctx, "token_approve", func(e *engines) error {
		return e.bank.Approve(symbol, caller, spender, amount)
	})
}

// TokenBalance returns addr's balance of symbol.
func (n *Node) TokenBalance(ctx context.Context, symbol string, addr [20]byte) (*big.Int, error) {
	var balance *big.Int
	err := n.view(ctx, "token_balance", func(e *engines) error {
		var err error
		balance, err = e.bank.BalanceOf(symbol, addr)
		return err
	})
	return balance, err
}

// TokenAllowance returns how much spender may move out of owner's balance.
func (n *Node) TokenAllowance(ctx context.Context, symbol string, owner, spender [20]byte) (*big.Int, error) {
	var allowance *big.Int
	err := n.view(ctx, "token_allowance", func(e *engines) error {
		var err error
		allowance, err = e.bank.Allowance(symbol, owner, spender)
		return err
	})
	return allowance, err
}

// Tokens lists the registered tokens.
func (n *Node) Tokens(ctx context.Context) ([]*bank.Metadata, error) {
	var out []*bank.Metadata
	err := n.view(ctx, "token_list", func(e *engines) error {
		var err error
		out, err = e.bank.Tokens()
		return err
	})
	return out, err
}
