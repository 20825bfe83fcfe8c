package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finai.app/internal/audit"
	"finai.app/internal/ledger"
	"finai.app/internal/obs"
	"finai.app/internal/stream"
)

type listTransactionsResponse struct {
	Items []ledger.Transaction `json:"items"`
	AsOf  time.Time            `json:"as_of"`
}

type listBoxesResponse struct {
	Items []ledger.Box `json:"items"`
	AsOf  time.Time    `json:"as_of"`
}

func (a *API) handleTransactionsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listTransactions(w, r)
	case http.MethodPost:
		a.addTransaction(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTransactionResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/transactions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodDelete:
		a.deleteTransaction(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodDelete)
	}
}

func (a *API) handleBoxesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listBoxes(w, r)
	case http.MethodPost:
		a.createBox(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleBoxResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/boxes/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodPatch:
		a.updateBox(w, r, id)
	case http.MethodDelete:
		a.deleteBox(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleProjection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	proj, err := a.ledger.Projection(r.Context())
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		profile, err := a.ledger.Profile(r.Context())
		if err != nil {
			handleLedgerError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	case http.MethodPatch:
		a.updateProfile(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request) {
	items, err := a.ledger.ListTransactions(r.Context())
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listTransactionsResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) addTransaction(w http.ResponseWriter, r *http.Request) {
	var draft ledger.Draft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := a.ledger.AddTransaction(r.Context(), draft)
	if err != nil {
		obs.CountMutation("transaction.add", "error")
		handleLedgerError(w, r, err)
		return
	}
	obs.CountMutation("transaction.add", "ok")

	a.publish(stream.Event{
		Op:     "transaction.add",
		Kind:   string(tx.Kind),
		ID:     tx.ID,
		BoxID:  tx.BoxID,
		Amount: tx.Amount,
	})
	_ = audit.LogEvent(r.Context(), "ledger.transaction.add", map[string]string{
		"id":     tx.ID,
		"kind":   string(tx.Kind),
		"amount": strconv.FormatInt(tx.Amount, 10),
		"box_id": tx.BoxID,
	})

	w.Header().Set("Location", "/v1/transactions/"+tx.ID)
	writeJSON(w, http.StatusCreated, tx)
}

func (a *API) deleteTransaction(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.ledger.DeleteTransaction(r.Context(), id); err != nil {
		obs.CountMutation("transaction.delete", "error")
		handleLedgerError(w, r, err)
		return
	}
	obs.CountMutation("transaction.delete", "ok")

	a.publish(stream.Event{Op: "transaction.delete", ID: id})
	_ = audit.LogEvent(r.Context(), "ledger.transaction.delete", map[string]string{
		"id": id,
	})

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listBoxes(w http.ResponseWriter, r *http.Request) {
	items, err := a.ledger.ListBoxes(r.Context())
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listBoxesResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) createBox(w http.ResponseWriter, r *http.Request) {
	var draft ledger.BoxDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	box, err := a.ledger.CreateBox(r.Context(), draft)
	if err != nil {
		obs.CountMutation("box.create", "error")
		handleLedgerError(w, r, err)
		return
	}
	obs.CountMutation("box.create", "ok")

	a.publish(stream.Event{Op: "box.create", ID: box.ID})
	_ = audit.LogEvent(r.Context(), "ledger.box.create", map[string]string{
		"id":   box.ID,
		"name": box.Name,
		"goal": strconv.FormatInt(box.Goal, 10),
	})

	w.Header().Set("Location", "/v1/boxes/"+box.ID)
	writeJSON(w, http.StatusCreated, box)
}

func (a *API) updateBox(w http.ResponseWriter, r *http.Request, id string) {
	var patch ledger.BoxPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.ledger.UpdateBox(r.Context(), id, patch); err != nil {
		obs.CountMutation("box.update", "error")
		handleLedgerError(w, r, err)
		return
	}
	obs.CountMutation("box.update", "ok")

	a.publish(stream.Event{Op: "box.update", ID: id})
	_ = audit.LogEvent(r.Context(), "ledger.box.update", map[string]string{
		"id": id,
	})

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteBox(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.ledger.DeleteBox(r.Context(), id); err != nil {
		obs.CountMutation("box.delete", "error")
		handleLedgerError(w, r, err)
		return
	}
	obs.CountMutation("box.delete", "ok")

	a.publish(stream.Event{Op: "box.delete", ID: id})
	_ = audit.LogEvent(r.Context(), "ledger.box.delete", map[string]string{
		"id": id,
	})

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	var patch ledger.ProfilePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := a.ledger.UpdateProfile(r.Context(), patch)
	if err != nil {
		obs.CountMutation("profile.update", "error")
		handleLedgerError(w, r, err)
		return
	}
	obs.CountMutation("profile.update", "ok")

	_ = audit.LogEvent(r.Context(), "profile.update", map[string]string{
		"premium": strconv.FormatBool(profile.Premium),
	})

	writeJSON(w, http.StatusOK, profile)
}

func (a *API) publish(evt stream.Event) {
	if a.stream == nil {
		return
	}
	evt.Timestamp = time.Now().UTC()
	a.stream.Publish(evt)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidArgument):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrQuotaExceeded):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrStorageUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "storage unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
