package main

import (
	"fmt"
	"strings"

	"promostaking/config"
)

func (c *cli) runRegister(args []string) int {
	fs := c.flagSet("register")
	symbol := fs.String("symbol", "", "token symbol")
	name := fs.String("name", "", "token name")
	decimals := fs.Uint("decimals", 18, "display decimals")
	authority := fs.String("mint-authority", "", "address allowed to mint")
	bearer := fs.String("admin-token", "", "admin bearer token (defaults to PROMO_ADMIN_TOKEN)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *decimals > 255 {
		return c.fail(fmt.Errorf("--decimals must fit in a byte"))
	}
	params := map[string]interface{}{
		"symbol":   strings.TrimSpace(*symbol),
		"name":     strings.TrimSpace(*name),
		"decimals": *decimals,
	}
	if a := strings.TrimSpace(*authority); a != "" {
		params["mintAuthority"] = a
	}
	raw, err := c.call("token_register", []interface{}{params}, adminBearer(*bearer))
	if err != nil {
		return c.fail(err)
	}
	return c.printResult(raw)
}

func (c *cli) runMint(args []string) int {
	fs := c.flagSet("mint")
	keyPath := fs.String("key", "", "mint authority keystore")
	bearer := fs.String("admin-token", "", "admin bearer token (defaults to PROMO_ADMIN_TOKEN)")
	token, to, amount := tokenMoveFlags(fs, "to")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return c.sendTokenMove(*keyPath, "token_mint", *token, "to", *to, *amount, adminBearer(*bearer))
}

func (c *cli) runTransfer(args []string) int {
	fs := c.flagSet("transfer")
	keyPath := fs.String("key", "", "sender keystore")
	token, to, amount := tokenMoveFlags(fs, "to")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return c.sendTokenMove(*keyPath, "token_transfer", *token, "to", *to, *amount, "")
}

func (c *cli) runApprove(args []string) int {
	fs := c.flagSet("approve")
	keyPath := fs.String("key", "", "owner keystore")
	token, spender, amount := tokenMoveFlags(fs, "spender")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return c.sendTokenMove(*keyPath, "token_approve", *token, "spender", *spender, *amount, "")
}

type flagRegistrar interface {
	String(name, value, usage string) *string
}

func tokenMoveFlags(fs flagRegistrar, counterparty string) (token, party, amount *string) {
	token = fs.String("token", "", "token symbol")
	party = fs.String(counterparty, "", counterparty+" address")
	amount = fs.String("amount", "", "amount")
	return token, party, amount
}

func (c *cli) sendTokenMove(keyPath, method, token, partyField, party, amount, bearer string) int {
	value, err := config.ParseAmount(amount)
	if err != nil {
		return c.fail(fmt.Errorf("--amount: %w", err))
	}
	key, err := c.loadKey(keyPath)
	if err != nil {
		return c.fail(err)
	}
	raw, err := c.signedCall(key, method, map[string]interface{}{
		"token":    strings.TrimSpace(token),
		partyField: strings.TrimSpace(party),
		"amount":   value.String(),
	}, bearer)
	if err != nil {
		return c.fail(err)
	}
	return c.printResult(raw)
}

func (c *cli) runBalance(args []string) int {
	fs := c.flagSet("balance")
	token := fs.String("token", "", "token symbol")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		return c.fail(fmt.Errorf("exactly one address argument expected"))
	}
	return c.query("token_balance", []interface{}{map[string]string{
		"token":   strings.TrimSpace(*token),
		"address": strings.TrimSpace(fs.Arg(0)),
	}})
}

func (c *cli) runAllowance(args []string) int {
	fs := c.flagSet("allowance")
	token := fs.String("token", "", "token symbol")
	owner := fs.String("owner", "", "owner address")
	spender := fs.String("spender", "", "spender address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return c.query("token_allowance", []interface{}{map[string]string{
		"token":   strings.TrimSpace(*token),
		"owner":   strings.TrimSpace(*owner),
		"spender": strings.TrimSpace(*spender),
	}})
}
