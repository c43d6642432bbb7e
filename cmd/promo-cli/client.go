package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"promostaking/crypto"
	"promostaking/rpc"
)

// signedCallTTL is how far in the future signed call deadlines are placed.
const signedCallTTL = 2 * time.Minute

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpc.RPCError   `json:"error"`
}

// call posts a JSON-RPC request and returns the raw result.
func (c *cli) call(method string, params []interface{}, bearer string) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", c.endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if decoded.Error != nil {
		if decoded.Error.Data != nil {
			return nil, fmt.Errorf("rpc error %d: %s (%v)", decoded.Error.Code, decoded.Error.Message, decoded.Error.Data)
		}
		return nil, fmt.Errorf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	return decoded.Result, nil
}

// signedCall wraps fields in a call object from the key's address and sends
// it as [call, signature]. A random nonce keeps repeated identical calls from
// being rejected as replays.
func (c *cli) signedCall(key *crypto.PrivateKey, method string, fields map[string]interface{}, bearer string) (json.RawMessage, error) {
	callObj := map[string]interface{}{
		"caller":   key.PubKey().Address().String(),
		"deadline": c.now().Add(signedCallTTL).Unix(),
		"nonce":    uuid.NewString(),
	}
	for k, v := range fields {
		callObj[k] = v
	}
	params, err := rpc.SignCall(key, method, callObj)
	if err != nil {
		return nil, fmt.Errorf("sign call: %w", err)
	}
	return c.call(method, params, bearer)
}

func (c *cli) loadKey(path string) (*crypto.PrivateKey, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("--key is required")
	}
	pass, err := c.passphrase.Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("load keystore %s: %w", path, err)
	}
	return key, nil
}

// printResult pretty-prints a raw result.
func (c *cli) printResult(raw json.RawMessage) int {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Fprintln(c.stdout, string(raw))
		return 0
	}
	fmt.Fprintln(c.stdout, buf.String())
	return 0
}

func (c *cli) fail(err error) int {
	fmt.Fprintf(c.stderr, "Error: %v\n", err)
	return 1
}

func (c *cli) query(method string, params []interface{}) int {
	raw, err := c.call(method, params, "")
	if err != nil {
		return c.fail(err)
	}
	return c.printResult(raw)
}

func adminBearer(explicit string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv("PROMO_ADMIN_TOKEN"))
}
