package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"promostaking/archive"
	"promostaking/core"
	"promostaking/core/events"
	"promostaking/core/tick"
	"promostaking/crypto"
	"promostaking/native/bank"
	"promostaking/storage"
)

const testSecret = "test-secret-value"

type rpcFixture struct {
	server *Server
	http   *httptest.Server
	node   *core.Node
	ticks  *tick.Counter
	admin  *crypto.PrivateKey
	alice  *crypto.PrivateKey
	bob    *crypto.PrivateKey
}

type testResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func mustKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key
}

func rawAddr(key *crypto.PrivateKey) [20]byte {
	return key.PubKey().Address().Raw()
}

func newRPCFixture(t *testing.T, cfg ServerConfig) *rpcFixture {
	t.Helper()
	f := &rpcFixture{
		ticks: tick.NewCounter(0),
		admin: mustKey(t),
		alice: mustKey(t),
		bob:   mustKey(t),
	}
	feed := events.NewFeed()
	var emitter events.Emitter = feed
	if arch, ok := cfg.History.(*archive.Archive); ok {
		emitter = events.MultiEmitter{feed, arch}
	}
	node, err := core.NewNode(core.Options{
		DB:          storage.NewMemDB(),
		Ticks:       f.ticks,
		Custody:     crypto.ModuleAddress("promo").Raw(),
		Initializer: rawAddr(f.admin),
		Emitter:     emitter,
	})
	require.NoError(t, err)
	_, err = node.Bootstrap(context.Background(), core.Genesis{
		Tokens: []core.GenesisToken{{
			Metadata: bank.Metadata{Symbol: "PROMO", Name: "Promo", Decimals: 18, MintAuthority: rawAddr(f.admin)},
			Allocations: []core.GenesisAllocation{
				{Address: rawAddr(f.alice), Amount: big.NewInt(5000)},
				{Address: rawAddr(f.bob), Amount: big.NewInt(5000)},
			},
		}},
		Program: &core.GenesisProgram{Token: "PROMO", StartTick: 10, Duration: 100, TotalReward: big.NewInt(10_000)},
	})
	require.NoError(t, err)

	if cfg.Auth.HMACSecret == "" {
		cfg.Auth = AuthConfig{HMACSecret: testSecret, Issuer: "promo-cli"}
	}
	f.node = node
	f.server = NewServer(node, feed, cfg, nil)
	f.http = httptest.NewServer(f.server.Handler())
	t.Cleanup(f.http.Close)
	return f
}

func (f *rpcFixture) call(t *testing.T, method string, params []interface{}, header http.Header) (int, testResponse) {
	t.Helper()
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, f.http.URL+"/", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := f.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out testResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (f *rpcFixture) signed(t *testing.T, key *crypto.PrivateKey, method string, fields map[string]interface{}) []interface{} {
	t.Helper()
	call := map[string]interface{}{
		"caller":   key.PubKey().Address().String(),
		"deadline": time.Now().Add(time.Minute).Unix(),
	}
	for k, v := range fields {
		call[k] = v
	}
	params, err := SignCall(key, method, call)
	require.NoError(t, err)
	return params
}

func (f *rpcFixture) approveAndStake(t *testing.T, key *crypto.PrivateKey, amount string) {
	t.Helper()
	status, resp := f.call(t, "token_approve", f.signed(t, key, "token_approve", map[string]interface{}{
		"token":   "PROMO",
		"spender": crypto.ModuleAddress("promo").String(),
		"amount":  amount,
	}), nil)
	require.Equal(t, http.StatusOK, status, "%+v", resp.Error)
	status, resp = f.call(t, "promo_stake", f.signed(t, key, "promo_stake", map[string]interface{}{"amount": amount}), nil)
	require.Equal(t, http.StatusOK, status, "%+v", resp.Error)
}

func TestSignedStakeAndQueries(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{})
	f.ticks.Set(10)
	f.approveAndStake(t, f.alice, "1000")

	f.ticks.Set(20)
	status, resp := f.call(t, "promo_getStakedAmount", []interface{}{f.alice.PubKey().Address().String()}, nil)
	require.Equal(t, http.StatusOK, status)
	var staked string
	require.NoError(t, json.Unmarshal(resp.Result, &staked))
	require.Equal(t, "1000", staked)

	status, resp = f.call(t, "promo_getPendingTokens", []interface{}{map[string]string{"address": f.alice.PubKey().Address().String()}}, nil)
	require.Equal(t, http.StatusOK, status)
	var pending PendingResult
	require.NoError(t, json.Unmarshal(resp.Result, &pending))
	require.Equal(t, "0", pending.Pending)

	status, resp = f.call(t, "promo_projectPending", []interface{}{f.alice.PubKey().Address().String()}, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(resp.Result, &pending))
	require.Equal(t, "1000", pending.Pending)
	require.Equal(t, uint64(20), pending.Tick)

	status, resp = f.call(t, "promo_unstake", f.signed(t, f.alice, "promo_unstake", map[string]interface{}{"amount": "0"}), nil)
	require.Equal(t, http.StatusOK, status, "%+v", resp.Error)
	var unstake UnstakeResult
	require.NoError(t, json.Unmarshal(resp.Result, &unstake))
	require.Equal(t, "1000", unstake.Reward)
	require.Equal(t, "0", unstake.Withdrawn)

	status, resp = f.call(t, "token_balance", []interface{}{map[string]string{
		"token":   "promo",
		"address": f.alice.PubKey().Address().String(),
	}}, nil)
	require.Equal(t, http.StatusOK, status)
	var balance BalanceResult
	require.NoError(t, json.Unmarshal(resp.Result, &balance))
	require.Equal(t, "PROMO", balance.Token)
	require.Equal(t, "5000", balance.Balance)

	status, resp = f.call(t, "promo_audit", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var audit AuditResult
	require.NoError(t, json.Unmarshal(resp.Result, &audit))
	require.True(t, audit.StakeBalanced)
	require.True(t, audit.CustodySolvent)
	require.Equal(t, "10000", audit.CustodyBalance)

	status, resp = f.call(t, "promo_currentTick", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var current TickResult
	require.NoError(t, json.Unmarshal(resp.Result, &current))
	require.Equal(t, uint64(20), current.Tick)
}

func TestSignedCallRejections(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{MaxCallAge: time.Hour})

	// Signed by bob on behalf of alice.
	forged, err := SignCall(f.bob, "promo_refresh", map[string]interface{}{
		"caller":   f.alice.PubKey().Address().String(),
		"deadline": time.Now().Add(time.Minute).Unix(),
	})
	require.NoError(t, err)
	status, resp := f.call(t, "promo_refresh", forged, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	expired, err := SignCall(f.alice, "promo_refresh", map[string]interface{}{
		"caller":   f.alice.PubKey().Address().String(),
		"deadline": time.Now().Add(-time.Minute).Unix(),
	})
	require.NoError(t, err)
	status, resp = f.call(t, "promo_refresh", expired, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Contains(t, resp.Error.Message, "expired")

	tooFar, err := SignCall(f.alice, "promo_refresh", map[string]interface{}{
		"caller":   f.alice.PubKey().Address().String(),
		"deadline": time.Now().Add(2 * time.Hour).Unix(),
	})
	require.NoError(t, err)
	status, _ = f.call(t, "promo_refresh", tooFar, nil)
	require.Equal(t, http.StatusUnauthorized, status)

	// A signature for one method cannot be replayed against another.
	crossed := f.signed(t, f.alice, "promo_refresh", nil)
	status, resp = f.call(t, "promo_emergencyWithdraw", crossed, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	status, resp = f.call(t, "promo_refresh", crossed, nil)
	require.Equal(t, http.StatusOK, status, "%+v", resp.Error)
	status, resp = f.call(t, "promo_refresh", crossed, nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, codeDuplicateCall, resp.Error.Code)
	require.Equal(t, 1, f.server.replay.size())

	status, resp = f.call(t, "promo_refresh", []interface{}{"only-one"}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestLedgerErrorsMapToCodes(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{})
	f.ticks.Set(10)
	f.approveAndStake(t, f.alice, "100")

	status, resp := f.call(t, "promo_unstake", f.signed(t, f.alice, "promo_unstake", map[string]interface{}{"amount": "101"}), nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInsufficient, resp.Error.Code)

	status, resp = f.call(t, "promo_initialize", f.signed(t, f.admin, "promo_initialize", map[string]interface{}{
		"token":       "PROMO",
		"startTick":   20,
		"duration":    10,
		"totalReward": "100",
	}), nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, codeAlreadyInit, resp.Error.Code)

	f.ticks.Set(111)
	status, resp = f.call(t, "promo_stake", f.signed(t, f.bob, "promo_stake", map[string]interface{}{"amount": "1"}), nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, codeProgramFinished, resp.Error.Code)

	status, resp = f.call(t, "promo_stake", f.signed(t, f.bob, "promo_stake", map[string]interface{}{"amount": "-1"}), nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestAdminMethodsRequireBearer(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{})
	params := []interface{}{map[string]interface{}{"symbol": "usdx", "name": "USD X", "decimals": 6}}

	status, resp := f.call(t, "token_register", params, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	forged, err := IssueAdminToken([]byte("other-secret"), "promo-cli", "ops", nil, time.Minute)
	require.NoError(t, err)
	status, _ = f.call(t, "token_register", params, http.Header{"Authorization": {"Bearer " + forged}})
	require.Equal(t, http.StatusUnauthorized, status)

	token, err := IssueAdminToken([]byte(testSecret), "promo-cli", "ops", nil, time.Minute)
	require.NoError(t, err)
	bearer := http.Header{"Authorization": {"Bearer " + token}}
	status, resp = f.call(t, "token_register", params, bearer)
	require.Equal(t, http.StatusOK, status, "%+v", resp.Error)
	var registered TokenResult
	require.NoError(t, json.Unmarshal(resp.Result, &registered))
	require.Equal(t, "USDX", registered.Symbol)

	// Minting needs the bearer token and the mint authority's signature.
	mint := f.signed(t, f.admin, "token_mint", map[string]interface{}{
		"token":  "PROMO",
		"to":     f.bob.PubKey().Address().String(),
		"amount": "25",
	})
	status, _ = f.call(t, "token_mint", mint, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	status, resp = f.call(t, "token_mint", mint, bearer)
	require.Equal(t, http.StatusOK, status, "%+v", resp.Error)
	var balance BalanceResult
	require.NoError(t, json.Unmarshal(resp.Result, &balance))
	require.Equal(t, "5025", balance.Balance)

	notAuthority := f.signed(t, f.bob, "token_mint", map[string]interface{}{
		"token":  "PROMO",
		"to":     f.bob.PubKey().Address().String(),
		"amount": "25",
	})
	status, resp = f.call(t, "token_mint", notAuthority, bearer)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestRoutingAndEnvelope(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{})

	status, resp := f.call(t, "promo_nope", nil, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	res, err := f.http.Client().Post(f.http.URL+"/", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	_, err = uuid.Parse(res.Header.Get(requestIDHeader))
	require.NoError(t, err)

	res, err = f.http.Client().Get(f.http.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, err = f.http.Client().Get(f.http.URL + "/metrics")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRateLimit(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{RateLimitPerSecond: 0.001, RateLimitBurst: 1})

	status, _ := f.call(t, "promo_currentTick", nil, nil)
	require.Equal(t, http.StatusOK, status)
	status, resp := f.call(t, "promo_currentTick", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, codeRateLimited, resp.Error.Code)
}

func TestEventStreamReplaysBacklog(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws/events"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var update events.Update
	require.NoError(t, json.Unmarshal(data, &update))
	require.Equal(t, uint64(1), update.Sequence)
	require.Equal(t, bank.EventTypeRegistered, update.Event.Type)
	require.Equal(t, "PROMO", update.Event.Attributes["token"])
}

func TestEventsHistory(t *testing.T) {
	db, err := archive.Open("sqlite", filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	arch, err := archive.New(db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = arch.Close() })

	f := newRPCFixture(t, ServerConfig{History: arch})
	status, resp := f.call(t, "events_history", []interface{}{map[string]interface{}{"type": "token.transfer"}}, nil)
	require.Equal(t, http.StatusOK, status, "%+v", resp.Error)
	var entries []HistoryEntry
	require.NoError(t, json.Unmarshal(resp.Result, &entries))
	require.Len(t, entries, 3)

	alice := f.alice.PubKey().Address().String()
	status, resp = f.call(t, "events_history", []interface{}{map[string]interface{}{"address": alice}}, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(resp.Result, &entries))
	require.Len(t, entries, 1)
	require.Equal(t, alice, entries[0].Attributes["to"])

	status, resp = f.call(t, "events_history", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(resp.Result, &entries))
	require.Equal(t, "token.registered", entries[0].Type)
	require.Equal(t, "promo.initialized", entries[len(entries)-1].Type)

	status, resp = f.call(t, "events_history", []interface{}{map[string]interface{}{"address": "nope"}}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestEventsHistoryDisabled(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{})
	status, resp := f.call(t, "events_history", nil, nil)
	require.Equal(t, http.StatusNotImplemented, status)
	require.Equal(t, codeServerError, resp.Error.Code)
}

func TestRejectedAdminCallMasksAuthorization(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{})
	var logs bytes.Buffer
	f.server.logger = slog.New(slog.NewJSONHandler(&logs, nil))

	forged, err := IssueAdminToken([]byte("other-secret"), "promo-cli", "ops", nil, time.Minute)
	require.NoError(t, err)
	params := []interface{}{map[string]interface{}{"symbol": "usdx", "name": "USD X", "decimals": 6}}
	status, _ := f.call(t, "token_register", params, http.Header{"Authorization": {"Bearer " + forged}})
	require.Equal(t, http.StatusUnauthorized, status)

	out := logs.String()
	require.Contains(t, out, "admin call rejected")
	require.Contains(t, out, `"authorization":"[REDACTED]"`)
	require.Contains(t, out, `"method":"token_register"`)
	require.NotContains(t, out, forged)
}
