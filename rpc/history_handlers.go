package rpc

import (
	"context"
	"net/http"
	"strings"

	"promostaking/archive"
)

type historyParams struct {
	Type    string `json:"type,omitempty"`
	Address string `json:"address,omitempty"`
	AfterID uint64 `json:"afterId,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

type HistoryEntry struct {
	ID         uint64            `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  string            `json:"createdAt"`
}

func (s *Server) handleEventsHistory(ctx context.Context, w http.ResponseWriter, req *RPCRequest) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, req.ID, codeServerError, "event archive disabled", nil)
		return
	}
	var params historyParams
	if len(req.Params) > 0 {
		if err := decodeSingle(req.Params, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
			return
		}
	}
	if addr := strings.TrimSpace(params.Address); addr != "" {
		if _, err := decodeAddress(addr); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
			return
		}
	}
	if params.Limit < 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "limit must not be negative", nil)
		return
	}
	records, err := s.history.List(ctx, archive.Query{
		Type:    params.Type,
		Address: strings.TrimSpace(params.Address),
		AfterID: params.AfterID,
		Limit:   params.Limit,
	})
	if err != nil {
		s.writeLedgerError(ctx, w, req, err)
		return
	}
	out := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		evt, err := rec.Event()
		if err != nil {
			s.writeLedgerError(ctx, w, req, err)
			return
		}
		out = append(out, HistoryEntry{
			ID:         rec.ID,
			Type:       evt.Type,
			Attributes: evt.Attributes,
			CreatedAt:  rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	writeResult(w, req.ID, out)
}
