package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"promostaking/crypto"
)

// AdminScope must be present in the scope claim of admin bearer tokens.
const AdminScope = "promo:admin"

const jwtClockSkew = 30 * time.Second

// AuthConfig configures admin bearer tokens.
type AuthConfig struct {
	HMACSecret string
	Issuer     string
	Audience   []string
}

type adminAuth struct {
	secret   []byte
	issuer   string
	audience []string
}

func newAdminAuth(cfg AuthConfig) *adminAuth {
	return &adminAuth{
		secret:   []byte(strings.TrimSpace(cfg.HMACSecret)),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: cfg.Audience,
	}
}

func extractBearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// require validates the request's bearer token and its admin scope.
func (a *adminAuth) require(r *http.Request) *RPCError {
	if a == nil || len(a.secret) == 0 {
		return &RPCError{Code: codeUnauthorized, Message: "admin authentication not configured"}
	}
	raw := extractBearer(r.Header.Get("Authorization"))
	if raw == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(jwtClockSkew),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	if len(a.audience) > 0 && !audienceMatches(claims.Audience, a.audience) {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	if !hasScope(claims.Scope, AdminScope) {
		return &RPCError{Code: codeUnauthorized, Message: "insufficient scope"}
	}
	return nil
}

// AdminClaims are the claims carried by admin bearer tokens.
type AdminClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// IssueAdminToken mints an HS256 admin token valid for ttl.
func IssueAdminToken(secret []byte, issuer, subject string, audience []string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("rpc: jwt secret required")
	}
	now := time.Now()
	claims := AdminClaims{
		Scope: AdminScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  audience,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func audienceMatches(got jwt.ClaimStrings, want []string) bool {
	for _, g := range got {
		for _, w := range want {
			if g == w {
				return true
			}
		}
	}
	return false
}

func hasScope(raw, scope string) bool {
	for _, s := range strings.Fields(raw) {
		if s == scope {
			return true
		}
	}
	return false
}

// callEnvelope is embedded in every signed call object.
type callEnvelope struct {
	Caller   string `json:"caller"`
	Deadline int64  `json:"deadline"`
}

// replayCache remembers accepted call digests until their deadline passes.
type replayCache struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func newReplayCache() *replayCache {
	return &replayCache{seen: make(map[string]time.Time)}
}

// remember records key and reports false when it was already present.
func (c *replayCache) remember(key string, expires, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, exp := range c.seen {
		if now.After(exp) {
			delete(c.seen, k)
		}
	}
	if _, exists := c.seen[key]; exists {
		return false
	}
	c.seen[key] = expires
	return true
}

func (c *replayCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// verifySignedCall authenticates a [callObject, signature] parameter pair.
// The call object is decoded into out and the verified caller is returned.
func (s *Server) verifySignedCall(method string, params []json.RawMessage, out interface{}) ([20]byte, *RPCError) {
	var zero [20]byte
	if len(params) != 2 {
		return zero, &RPCError{Code: codeInvalidParams, Message: "expected [call, signature] parameters"}
	}
	payload := []byte(params[0])
	var envelope callEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return zero, &RPCError{Code: codeInvalidParams, Message: "invalid call object", Data: err.Error()}
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return zero, &RPCError{Code: codeInvalidParams, Message: "invalid call object", Data: err.Error()}
		}
	}
	caller, err := crypto.DecodePromoAddress(envelope.Caller)
	if err != nil {
		return zero, &RPCError{Code: codeInvalidParams, Message: "invalid caller address", Data: err.Error()}
	}

	now := s.now()
	deadline := time.Unix(envelope.Deadline, 0)
	if envelope.Deadline <= 0 || !deadline.After(now) {
		return zero, &RPCError{Code: codeUnauthorized, Message: "call deadline expired"}
	}
	if deadline.Sub(now) > s.maxCallAge {
		return zero, &RPCError{Code: codeUnauthorized, Message: fmt.Sprintf("call deadline exceeds %s", s.maxCallAge)}
	}

	var sigHex string
	if err := json.Unmarshal(params[1], &sigHex); err != nil {
		return zero, &RPCError{Code: codeInvalidParams, Message: "signature must be a hex string"}
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(sigHex), "0x"))
	if err != nil {
		return zero, &RPCError{Code: codeInvalidParams, Message: "signature must be a hex string"}
	}
	signer, err := crypto.RecoverRequestSigner(method, payload, sig)
	if err != nil {
		return zero, &RPCError{Code: codeUnauthorized, Message: "invalid signature", Data: err.Error()}
	}
	if signer.Raw() != caller.Raw() {
		return zero, &RPCError{Code: codeUnauthorized, Message: "signature does not match caller"}
	}
	if !s.replay.remember(hex.EncodeToString(crypto.RequestDigest(method, payload)), deadline, now) {
		return zero, &RPCError{Code: codeDuplicateCall, Message: "call already submitted"}
	}
	return caller.Raw(), nil
}

// SignCall produces the [call, signature] parameter pair for method. It is
// the client-side counterpart of verifySignedCall.
func SignCall(key *crypto.PrivateKey, method string, call interface{}) ([]interface{}, error) {
	payload, err := json.Marshal(call)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.SignRequest(key, method, payload)
	if err != nil {
		return nil, err
	}
	return []interface{}{json.RawMessage(payload), "0x" + hex.EncodeToString(sig)}, nil
}
