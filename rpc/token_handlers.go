package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"promostaking/crypto"
	"promostaking/native/bank"
)

type tokenRegisterParams struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Decimals      uint8  `json:"decimals"`
	MintAuthority string `json:"mintAuthority,omitempty"`
}

type tokenMoveParams struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type tokenApproveParams struct {
	Token   string `json:"token"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type tokenBalanceParams struct {
	Token   string `json:"token"`
	Address string `json:"address"`
}

type tokenAllowanceParams struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

func decodeSingle(params []json.RawMessage, out interface{}) error {
	if len(params) != 1 {
		return errExactlyOneParam
	}
	return json.Unmarshal(params[0], out)
}

var errExactlyOneParam = &RPCError{Code: codeInvalidParams, Message: "exactly one parameter object expected"}

func decodeAddress(raw string) ([20]byte, error) {
	addr, err := crypto.DecodePromoAddress(strings.TrimSpace(raw))
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Raw(), nil
}

func (s *Server) handleTokenRegister(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	var params tokenRegisterParams
	if err := decodeSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	meta := bank.Metadata{Symbol: params.Symbol, Name: params.Name, Decimals: params.Decimals}
	if strings.TrimSpace(params.MintAuthority) != "" {
		authority, err := decodeAddress(params.MintAuthority)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid mint authority", err.Error())
			return
		}
		meta.MintAuthority = authority
	}
	registered, err := s.node.TokenRegister(ctx, meta)
	if err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	writeResult(w, req.ID, tokenResult(registered))
}

// handleTokenMint requires both an admin bearer token and a call signed by
// the token's mint authority.
func (s *Server) handleTokenMint(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	var params tokenMoveParams
	caller, authErr := s.verifySignedCall(req.Method, req.Params, &params)
	if authErr != nil {
		writeError(w, signedCallStatus(authErr), req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	to, err := decodeAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.TokenMint(ctx, caller, params.Token, to, amount); err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	s.writeBalance(ctx, w, req, params.Token, to)
}

func (s *Server) handleTokenTransfer(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	var params tokenMoveParams
	caller, authErr := s.verifySignedCall(req.Method, req.Params, &params)
	if authErr != nil {
		writeError(w, signedCallStatus(authErr), req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	to, err := decodeAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.TokenTransfer(ctx, caller, params.Token, to, amount); err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	s.writeBalance(ctx, w, req, params.Token, caller)
}

func (s *Server) handleTokenApprove(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	var params tokenApproveParams
	caller, authErr := s.verifySignedCall(req.Method, req.Params, &params)
	if authErr != nil {
		writeError(w, signedCallStatus(authErr), req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	spender, err := decodeAddress(params.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid spender address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.TokenApprove(ctx, caller, params.Token, spender, amount); err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	writeResult(w, req.ID, AllowanceResult{
		Token:     bank.NormalizeSymbol(params.Token),
		Owner:     crypto.FormatRaw(caller),
		Spender:   crypto.FormatRaw(spender),
		Allowance: amount.String(),
	})
}

func (s *Server) handleTokenBalance(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	var params tokenBalanceParams
	if err := decodeSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	addr, err := decodeAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	s.writeBalance(ctx, w, req, params.Token, addr)
}

func (s *Server) writeBalance(ctx context.Context, w http.ResponseWriter, req *RPCRequest, symbol string, addr [20]byte) {
	balance, err := s.node.TokenBalance(ctx, symbol, addr)
	if err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	writeResult(w, req.ID, BalanceResult{
		Token:   bank.NormalizeSymbol(symbol),
		Address: crypto.FormatRaw(addr),
		Balance: amountString(balance),
	})
}

func (s *Server) handleTokenAllowance(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	var params tokenAllowanceParams
	if err := decodeSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	owner, err := decodeAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	spender, err := decodeAddress(params.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid spender address", err.Error())
		return
	}
	allowance, err := s.node.TokenAllowance(ctx, params.Token, owner, spender)
	if err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	writeResult(w, req.ID, AllowanceResult{
		Token:     bank.NormalizeSymbol(params.Token),
		Owner:     crypto.FormatRaw(owner),
		Spender:   crypto.FormatRaw(spender),
		Allowance: amountString(allowance),
	})
}

func (s *Server) handleTokenList(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	tokens, err := s.node.Tokens(ctx)
	if err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	out := make([]*TokenResult, 0, len(tokens))
	for _, meta := range tokens {
		out = append(out, tokenResult(meta))
	}
	writeResult(w, req.ID, out)
}
