package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/vanshika/icorewards/internal/metrics"
)

// RouterDependencies collects handler dependencies.
type RouterDependencies struct {
	Health           HealthService
	API              *APIHandlers
	Auth             *Authenticator
	Gateway          *GatewayVerifier
	Metrics          *metrics.Metrics
	MetricsEnabled   bool
	AllowedOrigins   []string
	AllowCredentials bool
}

type routes struct {
	router  *httprouter.Router
	logger  *slog.Logger
	metrics *metrics.Metrics
	auth    *Authenticator
}

// NewRouter wires the HTTP routes exposed by the rewards API.
func NewRouter(logger *slog.Logger, deps RouterDependencies) http.Handler {
	rt := &routes{
		router:  httprouter.New(),
		logger:  logger,
		metrics: deps.Metrics,
		auth:    deps.Auth,
	}
	rt.router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	rt.router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	rt.router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		logger.Error("handler panic", "method", r.Method, "path", r.URL.Path, "panic", v)
		writeError(w, http.StatusInternalServerError, "internal error")
	}

	rt.public(http.MethodGet, "/healthz", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		payload := map[string]any{
			"status": "ok",
		}

		if deps.Health != nil {
			if err := deps.Health.Probe(ctx); err != nil {
				logger.Error("health probe failed", "error", err)
				status = http.StatusServiceUnavailable
				payload["status"] = "degraded"
				payload["error"] = err.Error()
			}
		}

		respondJSON(w, status, payload)
	})

	if deps.MetricsEnabled && deps.Metrics != nil {
		rt.router.Handler(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	if api := deps.API; api != nil {
		rt.public(http.MethodGet, "/staking/plans", api.listPlans)
		rt.public(http.MethodGet, "/pricing", api.currentPrice)

		rt.private(http.MethodPost, "/users", api.registerUser)
		rt.private(http.MethodGet, "/referrals/code", api.referralCode)
		rt.private(http.MethodGet, "/referrals/summary", api.referralSummary)
		rt.private(http.MethodGet, "/referrals/tree", api.referralTree)
		rt.private(http.MethodGet, "/referrals/downline", api.referralDownline)
		rt.private(http.MethodGet, "/referrals/earnings", api.referralEarnings)

		rt.private(http.MethodPost, "/staking/stakes", api.createStake)
		rt.private(http.MethodGet, "/staking/stakes", api.listStakes)
		rt.private(http.MethodGet, "/staking/stakes/:id", api.getStake)
		rt.private(http.MethodPost, "/staking/stakes/:id/withdrawal", api.requestWithdrawal)
		rt.private(http.MethodPost, "/staking/stakes/:id/claim", api.claimStake)
		rt.private(http.MethodGet, "/staking/summary", api.stakingSummary)

		rt.private(http.MethodGet, "/wallet/balances", api.balances)
		rt.private(http.MethodPost, "/wallet/swap", api.swapToTokens)
		rt.private(http.MethodPost, "/wallet/redeem-referral", api.redeemReferral)
		rt.private(http.MethodGet, "/notifications", api.notifications)

		// Payment confirmations come only from the gateway, never from users.
		if deps.Gateway != nil {
			rt.public(http.MethodPost, "/payments/webhook", deps.Gateway.Require(api.confirmPayment))
		}
	}

	handler := http.Handler(rt.router)
	if len(deps.AllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   deps.AllowedOrigins,
			AllowCredentials: deps.AllowCredentials,
			AllowedHeaders:   []string{"Content-Type", "Authorization", DevUserHeader},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		}).Handler(handler)
	}
	return handler
}

func (rt *routes) public(method, path string, h httprouter.Handle) {
	rt.router.Handle(method, path, rt.instrument(method, path, h))
}

func (rt *routes) private(method, path string, h httprouter.Handle) {
	if rt.auth != nil {
		h = rt.auth.Require(h)
	}
	rt.public(method, path, h)
}

// instrument logs and measures every request under its route pattern.
func (rt *routes) instrument(method, route string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r, ps)
		elapsed := time.Since(start)
		rt.metrics.ObserveHTTP(method, route, rec.status, elapsed)
		rt.logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
