package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"coinbet/application"
	"coinbet/domain"
	"coinbet/domain/entities"
	"coinbet/infrastructure/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Settler settles declared markets
type Settler interface {
	SettleMarket(ctx context.Context, marketID int64) (*entities.SettlementResult, error)
}

// OddsRecalculator rebuilds the odds snapshot of a market
type OddsRecalculator interface {
	RecalculateOdds(ctx context.Context, marketID int64) (*entities.OddsSnapshot, error)
}

// Reconciler runs one repair pass
type Reconciler interface {
	RunOnce(ctx context.Context) (*application.ReconcileReport, error)
}

// MarketAuditor exposes the read side operators need
type MarketAuditor interface {
	ListUnsettled(ctx context.Context) ([]*entities.Market, error)
	GetMarketSummary(ctx context.Context, marketID int64) (*entities.MarketSummary, error)
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPMetrics records request measurements
type HTTPMetrics interface {
	ObserveHTTPRequest(method, route string, status int, d time.Duration)
}

// Deps are the collaborators the operator API delegates to
type Deps struct {
	Settler    Settler
	Odds       OddsRecalculator
	Reconciler Reconciler
	Auditor    MarketAuditor
	Database   Pinger
	Metrics    HTTPMetrics
	Gatherer   prometheus.Gatherer
}

// OperatorAPI is the HTTP surface used by operators to drive and inspect settlement
type OperatorAPI struct {
	server *http.Server
	deps   Deps
}

// NewOperatorAPI builds the router and server listening on port
func NewOperatorAPI(port int, deps Deps) *OperatorAPI {
	a := &OperatorAPI{deps: deps}
	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           a.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a
}

// Routes returns the operator router
func (a *OperatorAPI) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(a.metricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", a.handleReadyz)
	if a.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(a.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/operator", func(r chi.Router) {
		r.Get("/markets/unsettled", a.handleListUnsettled)
		r.Get("/markets/{id}/summary", a.handleMarketSummary)
		r.Post("/markets/{id}/settle", a.handleSettle)
		r.Post("/markets/{id}/recalculate-odds", a.handleRecalculateOdds)
		r.Post("/reconcile", a.handleReconcile)
	})
	return r
}

// Start serves in the background. Request contexts derive from ctx.
// The returned function shuts the server down.
func (a *OperatorAPI) Start(ctx context.Context) func() {
	a.server.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		log.WithField("addr", a.server.Addr).Info("Operator API listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Operator API stopped")
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Operator API shutdown failed")
		}
	}
}

func (a *OperatorAPI) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.deps.Metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww, status := observability.WrapResponseWriter(w)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		a.deps.Metrics.ObserveHTTPRequest(r.Method, route, status(), time.Since(start))
	})
}

func (a *OperatorAPI) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.deps.Database != nil {
		if err := a.deps.Database.Ping(r.Context()); err != nil {
			log.WithError(err).Warn("Readiness check failed")
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (a *OperatorAPI) handleListUnsettled(w http.ResponseWriter, r *http.Request) {
	markets, err := a.deps.Auditor.ListUnsettled(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, markets)
}

func (a *OperatorAPI) handleMarketSummary(w http.ResponseWriter, r *http.Request) {
	marketID, ok := marketIDParam(w, r)
	if !ok {
		return
	}
	summary, err := a.deps.Auditor.GetMarketSummary(r.Context(), marketID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (a *OperatorAPI) handleSettle(w http.ResponseWriter, r *http.Request) {
	marketID, ok := marketIDParam(w, r)
	if !ok {
		return
	}
	result, err := a.deps.Settler.SettleMarket(r.Context(), marketID)
	if err != nil {
		// A partial settlement still reports what was applied
		if domain.KindOf(err) == domain.KindConsistency && result != nil {
			log.WithFields(log.Fields{
				"marketID": marketID,
				"failed":   result.Failed,
			}).Warn("Operator settlement incomplete")
			respondJSON(w, http.StatusAccepted, partialResponse{Result: result, Error: newErrorBody(err)})
			return
		}
		respondError(w, r, err)
		return
	}

	log.WithFields(log.Fields{
		"marketID":     marketID,
		"newlySettled": result.NewlySettled,
	}).Info("Operator settled market")
	respondJSON(w, http.StatusOK, result)
}

func (a *OperatorAPI) handleRecalculateOdds(w http.ResponseWriter, r *http.Request) {
	marketID, ok := marketIDParam(w, r)
	if !ok {
		return
	}
	snapshot, err := a.deps.Odds.RecalculateOdds(r.Context(), marketID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

func (a *OperatorAPI) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := a.deps.Reconciler.RunOnce(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func marketIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, r, domain.NewError(domain.CodeInvalidInput, "market id must be a positive integer"))
		return 0, false
	}
	return id, true
}

type errorBody struct {
	Code    domain.ErrorCode `json:"code"`
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
	Details map[string]any   `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type partialResponse struct {
	Result *entities.SettlementResult `json:"result"`
	Error  errorBody                  `json:"error"`
}

func newErrorBody(err error) errorBody {
	var de *domain.Error
	if errors.As(err, &de) {
		return errorBody{Code: de.Code, Kind: de.Kind(), Message: de.Message, Details: de.Details}
	}
	return errorBody{Code: domain.CodeUnavailable, Kind: domain.KindInfrastructure, Message: "internal error"}
}

// statusFor maps an error to the HTTP status operators see
func statusFor(err error) int {
	switch domain.CodeOf(err) {
	case domain.CodeMarketNotFound, domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeForbidden:
		return http.StatusForbidden
	}

	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindState:
		return http.StatusConflict
	case domain.KindConsistency:
		return http.StatusAccepted
	default:
		return http.StatusServiceUnavailable
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	fields := log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
		"error":  err,
	}
	if status >= http.StatusInternalServerError {
		log.WithFields(fields).Error("Operator request failed")
	} else {
		log.WithFields(fields).Debug("Operator request rejected")
	}
	respondJSON(w, status, errorResponse{Error: newErrorBody(err)})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).Error("Failed to encode JSON response")
	}
}
