package main

import (
	"fmt"
	"strings"

	"promostaking/config"
)

func (c *cli) runInitialize(args []string) int {
	fs := c.flagSet("initialize")
	keyPath := fs.String("key", "", "initializer keystore")
	token := fs.String("token", "", "reward and stake token symbol")
	start := fs.Uint64("start", 0, "first rewarded tick")
	duration := fs.Uint64("duration", 0, "emission length in ticks")
	reward := fs.String("reward", "", "total reward budget")
	fund := fs.Bool("fund", false, "transfer the reward budget from the caller into custody")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	total, err := config.ParseAmount(*reward)
	if err != nil {
		return c.fail(fmt.Errorf("--reward: %w", err))
	}
	key, err := c.loadKey(*keyPath)
	if err != nil {
		return c.fail(err)
	}
	raw, err := c.signedCall(key, "promo_initialize", map[string]interface{}{
		"token":       strings.TrimSpace(*token),
		"startTick":   *start,
		"duration":    *duration,
		"totalReward": total.String(),
		"fund":        *fund,
	}, "")
	if err != nil {
		return c.fail(err)
	}
	return c.printResult(raw)
}

func (c *cli) runStake(args []string) int {
	fs := c.flagSet("stake")
	keyPath := fs.String("key", "", "staker keystore")
	amount := fs.String("amount", "", "amount to deposit")
	beneficiary := fs.String("beneficiary", "", "account credited with the stake (defaults to the signer)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	value, err := config.ParseAmount(*amount)
	if err != nil {
		return c.fail(fmt.Errorf("--amount: %w", err))
	}
	return c.sendStake(*keyPath, value.String(), *beneficiary)
}

// runCompound restakes the signer's pending reward.
func (c *cli) runCompound(args []string) int {
	fs := c.flagSet("compound")
	keyPath := fs.String("key", "", "staker keystore")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return c.sendStake(*keyPath, "0", "")
}

func (c *cli) sendStake(keyPath, amount, beneficiary string) int {
	key, err := c.loadKey(keyPath)
	if err != nil {
		return c.fail(err)
	}
	fields := map[string]interface{}{"amount": amount}
	if b := strings.TrimSpace(beneficiary); b != "" {
		fields["beneficiary"] = b
	}
	raw, err := c.signedCall(key, "promo_stake", fields, "")
	if err != nil {
		return c.fail(err)
	}
	return c.printResult(raw)
}

func (c *cli) runUnstake(args []string) int {
	fs := c.flagSet("unstake")
	keyPath := fs.String("key", "", "staker keystore")
	amount := fs.String("amount", "", "principal to withdraw")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	value, err := config.ParseAmount(*amount)
	if err != nil {
		return c.fail(fmt.Errorf("--amount: %w", err))
	}
	return c.sendUnstake(*keyPath, value.String())
}

// runClaim pays out pending rewards without touching principal.
func (c *cli) runClaim(args []string) int {
	fs := c.flagSet("claim")
	keyPath := fs.String("key", "", "staker keystore")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return c.sendUnstake(*keyPath, "0")
}

func (c *cli) sendUnstake(keyPath, amount string) int {
	key, err := c.loadKey(keyPath)
	if err != nil {
		return c.fail(err)
	}
	raw, err := c.signedCall(key, "promo_unstake", map[string]interface{}{"amount": amount}, "")
	if err != nil {
		return c.fail(err)
	}
	return c.printResult(raw)
}

func (c *cli) runEmergencyWithdraw(args []string) int {
	return c.runKeyOnly("emergency-withdraw", "promo_emergencyWithdraw", args)
}

func (c *cli) runRefresh(args []string) int {
	return c.runKeyOnly("refresh", "promo_refresh", args)
}

func (c *cli) runKeyOnly(name, method string, args []string) int {
	fs := c.flagSet(name)
	keyPath := fs.String("key", "", "signer keystore")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := c.loadKey(*keyPath)
	if err != nil {
		return c.fail(err)
	}
	raw, err := c.signedCall(key, method, nil, "")
	if err != nil {
		return c.fail(err)
	}
	return c.printResult(raw)
}

func (c *cli) runAddressQuery(method string, args []string) int {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return c.fail(fmt.Errorf("exactly one address argument expected"))
	}
	return c.query(method, []interface{}{strings.TrimSpace(args[0])})
}

func (c *cli) runHistory(args []string) int {
	fs := c.flagSet("history")
	eventType := fs.String("type", "", "event type filter, e.g. promo.staked")
	address := fs.String("address", "", "only events mentioning this address")
	after := fs.Uint64("after", 0, "return events with an id above this")
	limit := fs.Int("limit", 0, "page size")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	params := map[string]interface{}{}
	if t := strings.TrimSpace(*eventType); t != "" {
		params["type"] = t
	}
	if a := strings.TrimSpace(*address); a != "" {
		params["address"] = a
	}
	if *after > 0 {
		params["afterId"] = *after
	}
	if *limit > 0 {
		params["limit"] = *limit
	}
	return c.query("events_history", []interface{}{params})
}
