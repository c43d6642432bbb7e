package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"promostaking/crypto"
	"promostaking/native/promo"
)

type promoInitializeParams struct {
	Token       string `json:"token"`
	StartTick   uint64 `json:"startTick"`
	Duration    uint64 `json:"duration"`
	TotalReward string `json:"totalReward"`
	// Fund moves totalReward from the caller into custody before initializing.
	Fund bool `json:"fund,omitempty"`
}

type promoStakeParams struct {
	Beneficiary string `json:"beneficiary,omitempty"`
	Amount      string `json:"amount"`
}

type promoUnstakeParams struct {
	Amount string `json:"amount"`
}

type addressParams struct {
	Address string `json:"address"`
}

// parseAmount accepts a non-negative base-10 integer.
func parseAmount(amount string) (*big.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return value, nil
}

// parseAddressParam accepts either a bare address string or {"address": ...}.
func parseAddressParam(params []json.RawMessage) ([20]byte, error) {
	var zero [20]byte
	if len(params) != 1 {
		return zero, fmt.Errorf("exactly one address parameter expected")
	}
	var raw string
	if err := json.Unmarshal(params[0], &raw); err != nil {
		var obj addressParams
		if err := json.Unmarshal(params[0], &obj); err != nil {
			return zero, fmt.Errorf("invalid address parameter")
		}
		raw = obj.Address
	}
	addr, err := crypto.DecodePromoAddress(strings.TrimSpace(raw))
	if err != nil {
		return zero, err
	}
	return addr.Raw(), nil
}

func (s *Server) handlePromoInitialize(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	var params promoInitializeParams
	caller, authErr := s.verifySignedCall(req.Method, req.Params, &params)
	if authErr != nil {
		writeError(w, signedCallStatus(authErr), req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	total, err := parseAmount(params.TotalReward)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "totalReward: "+err.Error(), nil)
		return
	}
	program, err := s.node.PromoInitialize(ctx, caller, promo.InitParams{
		Token:       params.Token,
		StartTick:   params.StartTick,
		Duration:    params.Duration,
		TotalReward: total,
	}, params.Fund)
	if err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	writeResult(w, req.ID, programResult(program))
}

func (s *Server) handlePromoStake(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	var params promoStakeParams
	caller, authErr := s.verifySignedCall(req.Method, req.Params, &params)
	if authErr != nil {
		writeError(w, signedCallStatus(authErr), req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	beneficiary := caller
	if strings.TrimSpace(params.Beneficiary) != "" {
		addr, err := crypto.DecodePromoAddress(params.Beneficiary)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid beneficiary address", err.Error())
			return
		}
		beneficiary = addr.Raw()
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	res, err := s.node.PromoStake(ctx, caller, beneficiary, amount)
	if err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	writeResult(w, req.ID, StakeResult{
		Beneficiary: crypto.FormatRaw(beneficiary),
		Deposited:   amountString(res.Deposited),
		Compounded:  amountString(res.Compounded),
		Account:     accountResult(res.Account, true),
		Program:     programResult(res.Program),
	})
}

func (s *Server) handlePromoUnstake(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	var params promoUnstakeParams
	caller, authErr := s.verifySignedCall(req.Method, req.Params, &params)
	if authErr != nil {
		writeError(w, signedCallStatus(authErr), req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	res, err := s.node.PromoUnstake(ctx, caller, amount)
	if err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	writeResult(w, req.ID, UnstakeResult{
		Withdrawn: amountString(res.Withdrawn),
		Reward:    amountString(res.Reward),
		Account:   accountResult(res.Account, true),
		Program:   programResult(res.Program),
	})
}

func (s *Server) handlePromoEmergencyWithdraw(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	caller, authErr := s.verifySignedCall(req.Method, req.Params, nil)
	if authErr != nil {
		writeError(w, signedCallStatus(authErr), req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	res, err := s.node.PromoEmergencyWithdraw(ctx, caller)
	if err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	writeResult(w, req.ID, EmergencyResult{
		Refunded:  amountString(res.Refunded),
		Forfeited: amountString(res.Forfeited),
		Account:   accountResult(res.Account, true),
		Program:   programResult(res.Program),
	})
}

func (s *Server) handlePromoRefresh(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	if _, authErr := s.verifySignedCall(req.Method, req.Params, nil); authErr != nil {
		writeError(w, signedCallStatus(authErr), req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	program, changed, err := s.node.PromoRefresh(ctx)
	if err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	writeResult(w, req.ID, RefreshResult{Changed: changed, Program: programResult(program)})
}

func (s *Server) handlePromoGetProgram(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	program, err := s.node.PromoProgram(ctx)
	if err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	writeResult(w, req.ID, programResult(program))
}

func (s *Server) handlePromoGetAccount(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	addr, err := parseAddressParam(req.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	acct, exists, err := s.node.PromoAccount(ctx, addr)
	if err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	writeResult(w, req.ID, accountResult(acct, exists))
}

func (s *Server) handlePromoGetStakedAmount(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	addr, err := parseAddressParam(req.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := s.node.PromoStakedAmount(ctx, addr)
	if err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	writeResult(w, req.ID, amountString(amount))
}

func (s *Server) handlePromoGetPendingTokens(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	addr, err := parseAddressParam(req.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	pending, err := s.node.PromoPendingTokens(ctx, addr)
	if err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	writeResult(w, req.ID, PendingResult{Address: crypto.FormatRaw(addr), Pending: amountString(pending)})
}

func (s *Server) handlePromoProjectPending(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	addr, err := parseAddressParam(req.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	pending, at, err := s.node.PromoProjectedPending(ctx, addr)
	if err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	writeResult(w, req.ID, PendingResult{Address: crypto.FormatRaw(addr), Pending: amountString(pending), Tick: at})
}

func (s *Server) handlePromoAudit(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	audit, err := s.node.PromoAudit(ctx)
	if err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	writeResult(w, req.ID, auditResult(audit))
}

func (s *Server) handlePromoCurrentTick(_ context.Context, w http.ResponseWriter, req *RPCRequest) {
	writeResult(w, req.ID, TickResult{Tick: s.node.CurrentTick()})
}

func signedCallStatus(err *RPCError) int {
	switch err.Code {
	case codeUnauthorized:
		return http.StatusUnauthorized
	case codeDuplicateCall:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
