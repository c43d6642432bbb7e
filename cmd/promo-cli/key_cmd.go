package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"promostaking/crypto"
	"promostaking/rpc"
)

func (c *cli) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func (c *cli) runGenerateKey(args []string) int {
	fs := c.flagSet("generate-key")
	out := fs.String("out", "wallet.keystore", "keystore output path")
	light := fs.Bool("light", false, "use a cheap scrypt cost (devnets only)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if _, err := os.Stat(*out); err == nil {
		return c.fail(fmt.Errorf("%s already exists", *out))
	}
	pass, err := c.passphrase.Get()
	if err != nil {
		return c.fail(err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return c.fail(err)
	}
	params := crypto.StandardScrypt
	if *light {
		params = crypto.LightScrypt
	}
	if err := crypto.SaveToKeystoreWithParams(*out, key, pass, params); err != nil {
		return c.fail(err)
	}
	fmt.Fprintf(c.stdout, "Generated new key and saved to %s\n", *out)
	fmt.Fprintf(c.stdout, "Address: %s\n", key.PubKey().Address().String())
	return 0
}

func (c *cli) runAddress(args []string) int {
	fs := c.flagSet("address")
	keyPath := fs.String("key", "", "keystore path")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := c.loadKey(*keyPath)
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintln(c.stdout, key.PubKey().Address().String())
	return 0
}

func (c *cli) runAdminToken(args []string) int {
	fs := c.flagSet("admin-token")
	secretEnv := fs.String("secret-env", "PROMO_RPC_JWT_SECRET", "environment variable holding the HMAC secret")
	issuer := fs.String("issuer", "promo-cli", "token issuer")
	subject := fs.String("subject", "operator", "token subject")
	audience := fs.String("audience", "", "comma separated audience")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	secret := os.Getenv(strings.TrimSpace(*secretEnv))
	if strings.TrimSpace(secret) == "" {
		return c.fail(fmt.Errorf("%s is not set", *secretEnv))
	}
	var aud []string
	for _, part := range strings.Split(*audience, ",") {
		if part = strings.TrimSpace(part); part != "" {
			aud = append(aud, part)
		}
	}
	token, err := rpc.IssueAdminToken([]byte(strings.TrimSpace(secret)), *issuer, *subject, aud, *ttl)
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintln(c.stdout, token)
	return 0
}
