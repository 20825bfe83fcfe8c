// Package httpapi is the HTTP surface of the finai service: the ledger CRUD
// endpoints, the assistant endpoints, and the operational plumbing around
// them (health, metrics, auth, rate limiting, SSE).
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"finai.app/internal/intent"
	"finai.app/internal/ledger"
	"finai.app/internal/obs"
	"finai.app/internal/stream"
)

const serviceName = "finai-api"

// ReadyProbe — readiness check (DB ping when a database is configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// Options bundles the collaborators the API serves.
type Options struct {
	Ledger     ledger.Service
	Oracle     intent.Oracle
	Stream     *stream.Stream
	Version    string
	TokenTTL   time.Duration
	RateBurst  int
	RatePerSec int
}

// API — HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	ledger  ledger.Service
	applier *intent.Applier
	oracle  intent.Oracle
	stream  *stream.Stream

	tokenTTL   time.Duration
	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, opts Options) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    opts.Version,
		ledger:     opts.Ledger,
		applier:    intent.NewApplier(opts.Ledger),
		oracle:     opts.Oracle,
		stream:     opts.Stream,
		tokenTTL:   opts.TokenTTL,
		rateBurst:  opts.RateBurst,
		ratePerSec: opts.RatePerSec,
	}
	if a.tokenTTL <= 0 {
		a.tokenTTL = 30 * 24 * time.Hour
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 10
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// ledger
	a.mux.HandleFunc("/v1/transactions", a.handleTransactionsCollection)
	a.mux.HandleFunc("/v1/transactions/", a.handleTransactionResource)
	a.mux.HandleFunc("/v1/boxes", a.handleBoxesCollection)
	a.mux.HandleFunc("/v1/boxes/", a.handleBoxResource)
	a.mux.HandleFunc("/v1/projection", a.handleProjection)
	a.mux.HandleFunc("/v1/profile", a.handleProfile)

	// assistant
	a.mux.HandleFunc("/v1/assistant/message", a.handleAssistantMessage)
	a.mux.HandleFunc("/v1/assistant/confirm", a.handleAssistantConfirm)

	// auth + events
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)
	a.mux.HandleFunc("/v1/events", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(http.Handler(a.mux))
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	h = Logging(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
