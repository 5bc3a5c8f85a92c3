package exchange

import (
	"context"
	"fmt"

	"github.com/yanun0323/logs"

	"stockex/internal/protocol"
)

// executeFund trades every leg of a fund in order and stops at the first
// rejected leg. Legs that already went through are then undone with the
// opposite action, newest first. A failed undo is not retried; it is
// reported for manual reconciliation and the basket is still rejected.
func (e *Endpoint) executeFund(ctx context.Context, id uint64, req protocol.OrderRequest) protocol.OrderResponse {
	legs, err := e.static.LegsOf(req.SecurityName)
	if err != nil {
		return protocol.Rejected(req, err.Error())
	}

	done := make([]protocol.OrderRequest, 0, len(legs))
	for _, leg := range legs {
		legReq := protocol.OrderRequest{
			Src:          protocol.SourceClient,
			ClientID:     req.ClientID,
			Action:       req.Action,
			SecurityName: leg.Security,
			Qty:          leg.Qty(req.Qty),
		}
		resp := e.executeSecurity(ctx, legReq)
		if resp.Succeeded() {
			done = append(done, legReq)
			continue
		}

		logs.Infof("%s: #%d %s leg %s rejected (%s), undoing %d legs", e.name, id, req.SecurityName, leg.Security, resp.Reason, len(done))
		e.compensate(ctx, id, req.SecurityName, done)
		return protocol.Rejected(req, fmt.Sprintf("leg %s: %s", leg.Security, resp.Reason))
	}

	filled := make([]string, 0, len(done))
	for _, leg := range done {
		filled = append(filled, leg.SecurityName)
	}
	resp := protocol.Filled(req, "")
	resp.Filled = filled
	return resp
}

func (e *Endpoint) compensate(ctx context.Context, id uint64, fund string, done []protocol.OrderRequest) {
	for i := len(done) - 1; i >= 0; i-- {
		undo := done[i]
		undo.Action = undo.Action.Opposite()
		resp := e.executeSecurity(ctx, undo)
		e.metrics.IncCompensation(resp.Succeeded())
		if !resp.Succeeded() {
			logs.Errorf("%s: reconciliation needed, #%d %s could not %s %d %s back, reason: %s",
				e.name, id, fund, undo.Action.Verb(), undo.Qty, undo.SecurityName, resp.Reason)
		}
	}
}
