package state

import (
	"fmt"
	"math/big"
	"sort"

	"promostaking/native/bank"
)

// TokenMetadataGet loads the metadata of a registered token.
func (tx *Tx) TokenMetadataGet(symbol string) (*bank.Metadata, bool, error) {
	meta := new(bank.Metadata)
	ok, err := tx.KVGet(tokenMetadataKey(symbol), meta)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return meta, true, nil
}

// TokenMetadataPut stores token metadata and records the symbol in the
// sorted token index.
func (tx *Tx) TokenMetadataPut(meta *bank.Metadata) error {
	if meta == nil {
		return fmt.Errorf("state: nil token metadata")
	}
	symbol := normalizeSymbol(meta.Symbol)
	if symbol == "" {
		return fmt.Errorf("token symbol must not be empty")
	}
	list, err := tx.TokenList()
	if err != nil {
		return err
	}
	idx := sort.SearchStrings(list, symbol)
	if idx == len(list) || list[idx] != symbol {
		list = append(list, "")
		copy(list[idx+1:], list[idx:])
		list[idx] = symbol
		if err := tx.KVPut(tokenListKey, list); err != nil {
			return err
		}
	}
	stored := meta.Clone()
	stored.Symbol = symbol
	return tx.KVPut(tokenMetadataKey(symbol), stored)
}

// TokenList returns all registered token symbols in sorted order.
func (tx *Tx) TokenList() ([]string, error) {
	var list []string
	if err := tx.KVGetList(tokenListKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// TokenBalanceGet returns the balance of addr, zero when unset.
func (tx *Tx) TokenBalanceGet(symbol string, addr [20]byte) (*big.Int, error) {
	amount := new(big.Int)
	if _, err := tx.KVGet(balanceKey(symbol, addr), amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// TokenBalancePut stores an account balance for the provided token.
func (tx *Tx) TokenBalancePut(symbol string, addr [20]byte, amount *big.Int) error {
	if amount == nil {
		amount = new(big.Int)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	return tx.KVPut(balanceKey(symbol, addr), amount)
}

// TokenAllowanceGet returns how much spender may move from owner.
func (tx *Tx) TokenAllowanceGet(symbol string, owner, spender [20]byte) (*big.Int, error) {
	amount := new(big.Int)
	if _, err := tx.KVGet(allowanceKey(symbol, owner, spender), amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// TokenAllowancePut stores an allowance. A zero allowance removes the key.
func (tx *Tx) TokenAllowancePut(symbol string, owner, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return tx.KVDelete(allowanceKey(symbol, owner, spender))
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative allowance not allowed")
	}
	return tx.KVPut(allowanceKey(symbol, owner, spender), amount)
}
