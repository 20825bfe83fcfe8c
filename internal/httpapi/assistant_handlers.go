package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"finai.app/internal/audit"
	"finai.app/internal/intent"
	"finai.app/internal/obs"
	"finai.app/internal/stream"
)

type assistantMessageRequest struct {
	Message string `json:"message"`
}

type assistantMessageResponse struct {
	Advice   string           `json:"advice"`
	Proposal *intent.Proposal `json:"proposal,omitempty"`
}

// handleAssistantMessage forwards user text to the oracle together with a
// live balance summary. Nothing is written to the ledger here; any proposal
// goes back to the caller for explicit confirmation.
func (a *API) handleAssistantMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.oracle == nil {
		writeError(w, r, http.StatusServiceUnavailable, "assistant is not configured")
		return
	}

	var req assistantMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		writeError(w, r, http.StatusBadRequest, "message is required")
		return
	}
	if len(msg) > 4096 {
		writeError(w, r, http.StatusBadRequest, "message too long")
		return
	}

	summary, err := a.buildSummary(r)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}

	reply, err := a.oracle.Extract(r.Context(), msg, summary)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, "assistant is unavailable")
		return
	}

	_ = audit.LogEvent(r.Context(), "assistant.message", map[string]string{
		"proposed": strconv.FormatBool(reply.Proposal != nil),
	})

	writeJSON(w, http.StatusOK, assistantMessageResponse{
		Advice:   reply.Advice,
		Proposal: reply.Proposal,
	})
}

// handleAssistantConfirm applies a previously returned proposal. The payload
// is still untrusted input and goes through the full validating parse.
func (a *API) handleAssistantConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var proposal intent.Proposal
	if err := decodeJSON(w, r, &proposal); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	out, err := a.applier.Apply(r.Context(), proposal)
	if err != nil {
		obs.CountMutation("assistant.confirm", "error")
		handleLedgerError(w, r, err)
		return
	}
	obs.CountMutation("assistant.confirm", "ok")

	fields := map[string]string{"kind": proposal.Kind}
	switch {
	case out.Box != nil:
		fields["box_id"] = out.Box.ID
		a.publish(stream.Event{Op: "box.create", ID: out.Box.ID})
	case out.Transaction != nil:
		fields["transaction_id"] = out.Transaction.ID
		fields["box_matched"] = strconv.FormatBool(out.BoxMatched)
		a.publish(stream.Event{
			Op:     "transaction.add",
			Kind:   string(out.Transaction.Kind),
			ID:     out.Transaction.ID,
			BoxID:  out.Transaction.BoxID,
			Amount: out.Transaction.Amount,
		})
	}
	_ = audit.LogEvent(r.Context(), "assistant.confirm", fields)

	writeJSON(w, http.StatusCreated, out)
}

// buildSummary snapshots the projection, boxes and profile for the prompt.
func (a *API) buildSummary(r *http.Request) (intent.Summary, error) {
	ctx := r.Context()
	proj, err := a.ledger.Projection(ctx)
	if err != nil {
		return intent.Summary{}, err
	}
	boxes, err := a.ledger.ListBoxes(ctx)
	if err != nil {
		return intent.Summary{}, err
	}
	profile, err := a.ledger.Profile(ctx)
	if err != nil {
		return intent.Summary{}, err
	}
	return intent.Summary{
		Currency:    profile.Currency,
		FreeBalance: proj.FreeBalance,
		Boxes:       boxes,
	}, nil
}
