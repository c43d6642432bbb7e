package rpc

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"promostaking/core"
	"promostaking/crypto"
	"promostaking/native/bank"
	"promostaking/native/promo"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError      = -32700
	codeInvalidRequest  = -32600
	codeMethodNotFound  = -32601
	codeInvalidParams   = -32602
	codeServerError     = -32000
	codeUnauthorized    = -32001
	codeDuplicateCall   = -32010
	codeRateLimited     = -32020
	codeAlreadyInit     = -32030
	codeInvalidStart    = -32031
	codeProgramFinished = -32032
	codeInsufficient    = -32033
	codeNotInitialized  = -32034
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// ledgerError maps a ledger failure onto an HTTP status and JSON-RPC code.
func ledgerError(err error) (int, int, string) {
	switch {
	case errors.Is(err, promo.ErrAlreadyInitialized):
		return http.StatusConflict, codeAlreadyInit, "program already initialized"
	case errors.Is(err, promo.ErrInvalidStartTick):
		return http.StatusBadRequest, codeInvalidStart, "start tick is in the past"
	case errors.Is(err, promo.ErrProgramFinished):
		return http.StatusConflict, codeProgramFinished, "program finished"
	case errors.Is(err, promo.ErrInsufficientStake):
		return http.StatusBadRequest, codeInsufficient, "insufficient stake"
	case errors.Is(err, promo.ErrNotInitialized):
		return http.StatusConflict, codeNotInitialized, "program not initialized"
	case errors.Is(err, promo.ErrUnauthorized), errors.Is(err, bank.ErrMintUnauthorized):
		return http.StatusForbidden, codeUnauthorized, "caller not authorized"
	case errors.Is(err, promo.ErrInvalidDuration),
		errors.Is(err, promo.ErrInvalidAmount),
		errors.Is(err, promo.ErrInvalidToken),
		errors.Is(err, bank.ErrInvalidSymbol),
		errors.Is(err, bank.ErrInvalidName),
		errors.Is(err, bank.ErrInvalidAmount),
		errors.Is(err, bank.ErrUnknownToken),
		errors.Is(err, bank.ErrTokenExists),
		errors.Is(err, bank.ErrInsufficientBalance),
		errors.Is(err, bank.ErrInsufficientAllowance),
		errors.Is(err, bank.ErrMintPaused):
		return http.StatusBadRequest, codeInvalidParams, err.Error()
	default:
		return http.StatusInternalServerError, codeServerError, "internal error"
	}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type ProgramResult struct {
	Token                 string `json:"token"`
	StartTick             uint64 `json:"startTick"`
	EndTick               uint64 `json:"endTick"`
	TotalReward           string `json:"totalReward"`
	RewardPerTick         string `json:"rewardPerTick"`
	TotalStaked           string `json:"totalStaked"`
	TotalRewardPaid       string `json:"totalRewardPaid"`
	TotalRewardCompounded string `json:"totalRewardCompounded"`
	AccRewardPerShare     string `json:"accRewardPerShare"`
	LastRewardTick        uint64 `json:"lastRewardTick"`
}

func programResult(p *promo.Program) *ProgramResult {
	if p == nil {
		return nil
	}
	return &ProgramResult{
		Token:                 p.Token,
		StartTick:             p.StartTick,
		EndTick:               p.EndTick,
		TotalReward:           amountString(p.TotalReward),
		RewardPerTick:         amountString(p.RewardPerTick),
		TotalStaked:           amountString(p.TotalStaked),
		TotalRewardPaid:       amountString(p.TotalRewardPaid),
		TotalRewardCompounded: amountString(p.TotalRewardCompounded),
		AccRewardPerShare:     amountString(p.AccRewardPerShare),
		LastRewardTick:        p.LastRewardTick,
	}
}

type AccountResult struct {
	Address    string `json:"address"`
	Exists     bool   `json:"exists"`
	Amount     string `json:"amount"`
	RewardDebt string `json:"rewardDebt"`
}

func accountResult(acct *promo.Account, exists bool) *AccountResult {
	if acct == nil {
		return nil
	}
	return &AccountResult{
		Address:    crypto.FormatRaw(acct.Address),
		Exists:     exists,
		Amount:     amountString(acct.Amount),
		RewardDebt: amountString(acct.RewardDebt),
	}
}

type StakeResult struct {
	Beneficiary string         `json:"beneficiary"`
	Deposited   string         `json:"deposited"`
	Compounded  string         `json:"compounded"`
	Account     *AccountResult `json:"account"`
	Program     *ProgramResult `json:"program"`
}

type UnstakeResult struct {
	Withdrawn string         `json:"withdrawn"`
	Reward    string         `json:"reward"`
	Account   *AccountResult `json:"account"`
	Program   *ProgramResult `json:"program"`
}

type EmergencyResult struct {
	Refunded  string         `json:"refunded"`
	Forfeited string         `json:"forfeited"`
	Account   *AccountResult `json:"account"`
	Program   *ProgramResult `json:"program"`
}

type RefreshResult struct {
	Changed bool           `json:"changed"`
	Program *ProgramResult `json:"program"`
}

type PendingResult struct {
	Address string `json:"address"`
	Pending string `json:"pending"`
	// Tick is set for projections only.
	Tick uint64 `json:"tick,omitempty"`
}

type AuditResult struct {
	Accounts              int    `json:"accounts"`
	SumStaked             string `json:"sumStaked"`
	TotalStaked           string `json:"totalStaked"`
	StakeBalanced         bool   `json:"stakeBalanced"`
	TotalReward           string `json:"totalReward"`
	TotalRewardPaid       string `json:"totalRewardPaid"`
	TotalRewardCompounded string `json:"totalRewardCompounded"`
	UnclaimableDust       string `json:"unclaimableDust"`
	WithinBudget          bool   `json:"withinBudget"`
	CustodyBalance        string `json:"custodyBalance"`
	CustodyExpected       string `json:"custodyExpected"`
	CustodySolvent        bool   `json:"custodySolvent"`
	AccountsRoot          string `json:"accountsRoot"`
}

func auditResult(a *core.Audit) *AuditResult {
	return &AuditResult{
		Accounts:              a.Accounts,
		SumStaked:             amountString(a.SumStaked),
		TotalStaked:           amountString(a.TotalStaked),
		StakeBalanced:         a.StakeBalanced,
		TotalReward:           amountString(a.TotalReward),
		TotalRewardPaid:       amountString(a.TotalRewardPaid),
		TotalRewardCompounded: amountString(a.TotalRewardCompounded),
		UnclaimableDust:       amountString(a.UnclaimableDust),
		WithinBudget:          a.WithinBudget,
		CustodyBalance:        amountString(a.CustodyBalance),
		CustodyExpected:       amountString(a.CustodyExpected),
		CustodySolvent:        a.CustodySolvent,
		AccountsRoot:          a.AccountsRoot,
	}
}

type TokenResult struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Decimals      uint8  `json:"decimals"`
	MintAuthority string `json:"mintAuthority,omitempty"`
	TotalSupply   string `json:"totalSupply"`
}

func tokenResult(meta *bank.Metadata) *TokenResult {
	out := &TokenResult{
		Symbol:      meta.Symbol,
		Name:        meta.Name,
		Decimals:    meta.Decimals,
		TotalSupply: amountString(meta.TotalSupply),
	}
	if meta.MintAuthority != ([20]byte{}) {
		out.MintAuthority = crypto.FormatRaw(meta.MintAuthority)
	}
	return out
}

type BalanceResult struct {
	Token   string `json:"token"`
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type AllowanceResult struct {
	Token     string `json:"token"`
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance string `json:"allowance"`
}

type TickResult struct {
	Tick uint64 `json:"tick"`
}
