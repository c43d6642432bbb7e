package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"promostaking/cmd/internal/passphrase"
)

// cli carries the process-wide settings shared by every subcommand.
type cli struct {
	endpoint   string
	stdout     io.Writer
	stderr     io.Writer
	client     *http.Client
	passphrase *passphrase.Source
	now        func() time.Time
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	c := &cli{
		endpoint:   defaultRPCEndpoint(),
		stdout:     stdout,
		stderr:     stderr,
		client:     http.DefaultClient,
		passphrase: passphrase.NewSource(passphrase.DefaultEnv, "keystore"),
		now:        time.Now,
	}
	args, err := c.applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	command, rest := args[0], args[1:]
	switch command {
	case "generate-key":
		return c.runGenerateKey(rest)
	case "address":
		return c.runAddress(rest)
	case "admin-token":
		return c.runAdminToken(rest)
	case "initialize":
		return c.runInitialize(rest)
	case "stake":
		return c.runStake(rest)
	case "compound":
		return c.runCompound(rest)
	case "unstake":
		return c.runUnstake(rest)
	case "claim":
		return c.runClaim(rest)
	case "emergency-withdraw":
		return c.runEmergencyWithdraw(rest)
	case "refresh":
		return c.runRefresh(rest)
	case "program":
		return c.query("promo_getProgram", nil)
	case "audit":
		return c.query("promo_audit", nil)
	case "tick":
		return c.query("promo_currentTick", nil)
	case "account":
		return c.runAddressQuery("promo_getAccount", rest)
	case "staked":
		return c.runAddressQuery("promo_getStakedAmount", rest)
	case "pending":
		return c.runAddressQuery("promo_getPendingTokens", rest)
	case "project":
		return c.runAddressQuery("promo_projectPending", rest)
	case "tokens":
		return c.query("token_list", nil)
	case "register":
		return c.runRegister(rest)
	case "mint":
		return c.runMint(rest)
	case "balance":
		return c.runBalance(rest)
	case "allowance":
		return c.runAllowance(rest)
	case "approve":
		return c.runApprove(rest)
	case "transfer":
		return c.runTransfer(rest)
	case "history":
		return c.runHistory(rest)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return 1
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("PROMO_RPC_URL")); v != "" {
		return v
	}
	return "http://127.0.0.1:8645"
}

func (c *cli) applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			c.endpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			c.endpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: promo-cli [--rpc URL] <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Keys:")
	fmt.Fprintln(w, "  generate-key --out <path> [--light]       Create an encrypted keystore")
	fmt.Fprintln(w, "  address --key <path>                      Print the keystore address")
	fmt.Fprintln(w, "  admin-token [--ttl 1h] [--subject name]   Issue an admin bearer token")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Staking:")
	fmt.Fprintln(w, "  initialize --key <path> --token SYM --start N --duration N --reward N [--fund]")
	fmt.Fprintln(w, "  stake --key <path> --amount N [--beneficiary addr]")
	fmt.Fprintln(w, "  compound --key <path>                     Restake pending rewards")
	fmt.Fprintln(w, "  unstake --key <path> --amount N")
	fmt.Fprintln(w, "  claim --key <path>                        Withdraw pending rewards only")
	fmt.Fprintln(w, "  emergency-withdraw --key <path>           Withdraw principal, forfeit rewards")
	fmt.Fprintln(w, "  refresh --key <path>")
	fmt.Fprintln(w, "  program | audit | tick")
	fmt.Fprintln(w, "  account | staked | pending | project <address>")
	fmt.Fprintln(w, "  history [--type T] [--address addr] [--after ID] [--limit N]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Tokens:")
	fmt.Fprintln(w, "  tokens")
	fmt.Fprintln(w, "  register --symbol SYM --name NAME [--decimals N] [--mint-authority addr]")
	fmt.Fprintln(w, "  mint --key <path> --token SYM --to addr --amount N")
	fmt.Fprintln(w, "  balance --token SYM <address>")
	fmt.Fprintln(w, "  allowance --token SYM --owner addr --spender addr")
	fmt.Fprintln(w, "  approve --key <path> --token SYM --spender addr --amount N")
	fmt.Fprintln(w, "  transfer --key <path> --token SYM --to addr --amount N")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment: PROMO_RPC_URL, PROMO_KEYSTORE_PASSPHRASE, PROMO_ADMIN_TOKEN, PROMO_RPC_JWT_SECRET")
}
