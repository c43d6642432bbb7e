package state

import (
	"fmt"

	"promostaking/native/promo"
)

// PromoProgramGet loads the singleton emission program.
func (tx *Tx) PromoProgramGet() (*promo.Program, bool, error) {
	program := new(promo.Program)
	ok, err := tx.KVGet(promoProgramKey, program)
	if err != nil {
		return nil, false, fmt.Errorf("state: load promo program: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return program, true, nil
}

// PromoProgramPut persists the emission program.
func (tx *Tx) PromoProgramPut(program *promo.Program) error {
	if program == nil {
		return fmt.Errorf("state: nil promo program")
	}
	return tx.KVPut(promoProgramKey, program)
}

// PromoAccountGet loads the participant record for addr.
func (tx *Tx) PromoAccountGet(addr [20]byte) (*promo.Account, bool, error) {
	account := new(promo.Account)
	ok, err := tx.KVGet(promoAccountKey(addr), account)
	if err != nil {
		return nil, false, fmt.Errorf("state: load promo account: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	account.Address = addr
	return account, true, nil
}

// PromoAccountPut persists a participant record and adds it to the account
// index on first write. Records are never deleted.
func (tx *Tx) PromoAccountPut(account *promo.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil promo account")
	}
	if err := tx.KVAppend(promoAccountIndexKey, account.Address[:]); err != nil {
		return err
	}
	return tx.KVPut(promoAccountKey(account.Address), account)
}

// PromoAccountList returns every address that has a participant record, in
// insertion order.
func (tx *Tx) PromoAccountList() ([][20]byte, error) {
	var raw [][]byte
	if err := tx.KVGetList(promoAccountIndexKey, &raw); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 20 {
			return nil, fmt.Errorf("state: malformed promo account index entry")
		}
		out = append(out, [20]byte(entry))
	}
	return out, nil
}
