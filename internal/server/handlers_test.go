package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/icorewards/internal/config"
	"github.com/vanshika/icorewards/internal/domain"
	"github.com/vanshika/icorewards/internal/graph"
	"github.com/vanshika/icorewards/internal/ledger"
	"github.com/vanshika/icorewards/internal/logging"
	"github.com/vanshika/icorewards/internal/metrics"
	"github.com/vanshika/icorewards/internal/pricing"
	"github.com/vanshika/icorewards/internal/repository"
	"github.com/vanshika/icorewards/internal/service"
)

const (
	testSecret    = "test-secret"
	gatewaySecret = "gateway-secret"
)

type testAPI struct {
	handler http.Handler
	store   *ledger.MemoryStore
	graph   *graph.MemoryClient
	auth    *Authenticator
}

// knownUser answers user lookups and referral debits for U1, who holds 12.50
// in referral earnings. Every other query is empty.
func knownUser(q graph.ExecutedQuery) (graph.Result, bool, error) {
	if q.Params["userId"] != "U1" {
		return graph.Result{}, false, nil
	}
	if q.Write && strings.Contains(q.Query, "AS duplicate") {
		available := int64(1250)
		return graph.Result{Records: []graph.Record{{
			"applied":   q.Params["amountPaise"].(int64) <= available,
			"duplicate": false,
			"available": available,
		}}}, true, nil
	}
	if q.Write || !strings.HasSuffix(strings.TrimSpace(q.Query), "AS user") {
		return graph.Result{}, false, nil
	}
	return graph.Result{Records: []graph.Record{{
		"user": map[string]any{
			"userId":                   "U1",
			"name":                     "Asha",
			"referralCode":             "ICOABC123",
			"referralPath":             []any{},
			"referralLevel":            int64(0),
			"referralDownlineCounts":   []any{int64(0), int64(0), int64(0), int64(0), int64(0), int64(0), int64(0), int64(0), int64(0)},
			"referralWalletPaise":      int64(1250),
			"referralTotalEarnedPaise": int64(1250),
			"createdAt":                "2025-03-14T09:30:00Z",
		},
	}}}, true, nil
}

func newTestAPI(t *testing.T, devHeader bool) *testAPI {
	t.Helper()
	logger := logging.Discard()
	client := graph.NewMemoryClient().WithResponder(knownUser)
	store := ledger.NewMemoryStore()
	m := metrics.New()

	referral := service.NewReferralService(repository.New(client), store, service.DefaultReferralRules()).
		WithLogger(logger).WithMetrics(m)
	staking := service.NewStakingService(store, store, service.NewStakingRules(config.DefaultRewards())).
		WithLogger(logger).WithMetrics(m)
	prices := pricing.NewService(store, logger, "ICOX", decimal.NewFromInt(10))
	purchases := service.NewPurchaseService(store, prices, referral, logger)
	walletOps := service.NewWalletService(store, store, repository.New(client), prices, referral,
		service.NewWalletRules(config.DefaultRewards())).WithLogger(logger).WithMetrics(m)

	auth := NewAuthenticator(config.AuthConfig{JWTSecret: testSecret, Issuer: "icorewards", AllowDevUserHeader: devHeader})
	api := NewAPIHandlers(logger, APIDependencies{
		Referral:  referral,
		Staking:   staking,
		Purchases: purchases,
		WalletOps: walletOps,
		Prices:    prices,
		Wallet:    store,
	})
	handler := NewRouter(logger, RouterDependencies{
		Health:         DependencyHealth{Graph: client, Ledger: store},
		API:            api,
		Auth:           auth,
		Gateway:        NewGatewayVerifier(gatewaySecret),
		Metrics:        m,
		MetricsEnabled: true,
		AllowedOrigins: []string{"https://app.example.com"},
	})
	return &testAPI{handler: handler, store: store, graph: client, auth: auth}
}

func (a *testAPI) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		token, err := a.auth.IssueToken(userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

// webhook posts body signed with secret. An empty secret sends no signature.
func (a *testAPI) webhook(t *testing.T, secret, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(SignatureHeader, NewGatewayVerifier(secret).Sign([]byte(body)))
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) balance(t *testing.T, userID string, kind domain.AccountKind) string {
	t.Helper()
	bal, err := a.store.Balance(context.Background(), domain.AccountRef{UserID: userID, Kind: kind})
	require.NoError(t, err)
	return bal.Amount.String()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return payload
}

func (a *testAPI) fund(t *testing.T, userID, amount string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, a.store.SetKYCStatus(ctx, userID, domain.KYCVerified))
	_, err := a.store.Credit(ctx, domain.AccountRef{UserID: userID, Kind: domain.AccountHolding}, decimal.RequireFromString(amount), ledger.ReasonCredit, "seed")
	require.NoError(t, err)
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, false)
	rec := api.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	api.graph.WithConnectivityError(errors.New("neo4j unreachable"))
	rec = api.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Contains(t, body["error"], "graph: neo4j unreachable")
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t, false)

	rec := api.do(t, http.MethodGet, "/referrals/code", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/referrals/code", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/referrals/code", nil)
	req.Header.Set(DevUserHeader, "U1")
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "dev header is disabled")

	rec = api.do(t, http.MethodGet, "/referrals/code", "U1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ICOABC123", decodeBody(t, rec)["referralCode"])
}

func TestAuthDevHeader(t *testing.T) {
	api := newTestAPI(t, true)
	req := httptest.NewRequest(http.MethodGet, "/referrals/summary", nil)
	req.Header.Set(DevUserHeader, "U1")
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ICOABC123", body["referralCode"])
	assert.Equal(t, "12.5", body["walletBalance"])
	assert.Len(t, body["percentages"], domain.MaxReferralLevels)
}

func TestRegisterUser_InvalidCode(t *testing.T) {
	api := newTestAPI(t, false)
	rec := api.do(t, http.MethodPost, "/users", "U2", map[string]any{"name": "Ravi", "referralCode": "ICONOPE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.ErrInvalidReferralCode.Error(), decodeBody(t, rec)["error"])
	assert.Empty(t, api.graph.WriteCalls())

	rec = api.do(t, http.MethodPost, "/users", "U2", `{"name":"Ravi","unexpected":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReferralSummary_UnknownUser(t *testing.T) {
	api := newTestAPI(t, false)
	rec := api.do(t, http.MethodGet, "/referrals/summary", "ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStakingPlansArePublic(t *testing.T) {
	api := newTestAPI(t, false)
	rec := api.do(t, http.MethodGet, "/staking/plans", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var plans []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
	require.Len(t, plans, 8)
	assert.Equal(t, "fixed", plans[0]["stackType"])
	assert.Equal(t, "6", plans[0]["monthlyRate"])
}

func TestStakeLifecycle(t *testing.T) {
	api := newTestAPI(t, false)
	api.fund(t, "U1", "1500")

	rec := api.do(t, http.MethodPost, "/staking/stakes", "U1", map[string]any{
		"tokenAmount":    "1000",
		"stackType":      "fixed",
		"durationMonths": 12,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	stake := decodeBody(t, rec)
	assert.Equal(t, "2200", stake["expectedReturn"])
	assert.Equal(t, "100", stake["monthlyInterestAmount"])
	assert.Equal(t, "active", stake["status"])
	id := stake["id"].(string)

	rec = api.do(t, http.MethodPost, "/staking/stakes/"+id+"/claim", "U1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, service.ErrNotMatured.Error(), decodeBody(t, rec)["error"])

	rec = api.do(t, http.MethodPost, "/staking/stakes/"+id+"/withdrawal", "U1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodGet, "/staking/stakes/"+id, "U1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/staking/stakes/"+id, "U9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/staking/stakes", "U1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = api.do(t, http.MethodGet, "/staking/summary", "U1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["activePositions"])

	rec = api.do(t, http.MethodGet, "/wallet/balances", "U1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var balances []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balances))
	require.Len(t, balances, 2)
	assert.Equal(t, string(domain.AccountHolding), balances[0]["kind"])
	assert.Equal(t, "500", balances[0]["amount"])
}

func TestStakeErrors(t *testing.T) {
	api := newTestAPI(t, false)
	api.fund(t, "U1", "50")

	rec := api.do(t, http.MethodPost, "/staking/stakes", "U2", map[string]any{"tokenAmount": 200, "stackType": "fluid", "durationMonths": 3})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/staking/stakes", "U1", map[string]any{"tokenAmount": 200, "stackType": "fluid", "durationMonths": 3})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, service.ErrInsufficientBalance.Error(), decodeBody(t, rec)["error"])

	rec = api.do(t, http.MethodPost, "/staking/stakes", "U1", map[string]any{"tokenAmount": 200, "stackType": "fluid", "durationMonths": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentWebhook(t *testing.T) {
	api := newTestAPI(t, false)
	body := `{"userId":"U1","sourceType":"ico","sourceId":"pay_1","amount":"1000"}`

	rec := api.webhook(t, gatewaySecret, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody(t, rec)
	assert.Equal(t, true, resp["recorded"])
	assert.Equal(t, "100", resp["tokenAmount"])
	assert.Equal(t, "100", api.balance(t, "U1", domain.AccountHolding))

	rec = api.webhook(t, gatewaySecret, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["recorded"])

	rec = api.webhook(t, gatewaySecret, `{"userId":"U1","sourceType":"gift","sourceId":"x","amount":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.webhook(t, gatewaySecret, `{"userId":"ghost","sourceType":"ico","sourceId":"pay_2","amount":"1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "100", api.balance(t, "U1", domain.AccountHolding))
}

func TestPaymentWebhook_RejectsUnsignedAndForged(t *testing.T) {
	api := newTestAPI(t, false)
	body := `{"userId":"U1","sourceType":"ico","sourceId":"pay_1","amount":"1000"}`

	rec := api.webhook(t, "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.webhook(t, "not-the-gateway", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
	req.Header.Set(SignatureHeader, "zz-not-hex")
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A valid signature for a different body.
	req = httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
	req.Header.Set(SignatureHeader, NewGatewayVerifier(gatewaySecret).Sign([]byte(`{"amount":"1"}`)))
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, "0", api.balance(t, "U1", domain.AccountHolding))
}

func TestPaymentWebhook_RejectsTokenAmount(t *testing.T) {
	api := newTestAPI(t, false)

	rec := api.webhook(t, gatewaySecret, `{"userId":"U1","sourceType":"ico","sourceId":"pay_1","amount":"1000","tokenAmount":"1000000"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "0", api.balance(t, "U1", domain.AccountHolding))
}

func TestUsersCannotConfirmPayments(t *testing.T) {
	api := newTestAPI(t, false)
	body := map[string]any{"sourceType": "ico", "sourceId": "pay_1", "amount": "1000", "tokenAmount": "1000000"}

	rec := api.do(t, http.MethodPost, "/payments/confirm", "U1", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPost, "/payments/webhook", "U1", map[string]any{"userId": "U1", "sourceType": "ico", "sourceId": "pay_1", "amount": "1000"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "a user token is not a gateway signature")

	assert.Equal(t, "0", api.balance(t, "U1", domain.AccountHolding))
}

func TestPaymentWebhook_DisabledWithoutSecret(t *testing.T) {
	logger := logging.Discard()
	handler := NewRouter(logger, RouterDependencies{
		API:     NewAPIHandlers(logger, APIDependencies{}),
		Gateway: NewGatewayVerifier(""),
	})
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWalletSwap(t *testing.T) {
	api := newTestAPI(t, false)
	ctx := context.Background()

	rec := api.do(t, http.MethodPost, "/wallet/swap", "U1", map[string]any{"amount": "100"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, service.ErrKYCRequired.Error(), decodeBody(t, rec)["error"])

	require.NoError(t, api.store.SetKYCStatus(ctx, "U1", domain.KYCVerified))
	_, err := api.store.Credit(ctx, domain.AccountRef{UserID: "U1", Kind: domain.AccountWallet}, decimal.NewFromInt(1500), ledger.ReasonCredit, "seed")
	require.NoError(t, err)

	rec = api.do(t, http.MethodPost, "/wallet/swap", "U1", map[string]any{"amount": "1000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody(t, rec)
	assert.Equal(t, "100", resp["tokenAmount"])
	assert.Equal(t, "500", resp["walletBalance"])
	assert.Equal(t, "100", resp["holdingBalance"])

	rec = api.do(t, http.MethodPost, "/wallet/swap", "U1", map[string]any{"amount": "600"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, service.ErrInsufficientWalletBalance.Error(), decodeBody(t, rec)["error"])

	rec = api.do(t, http.MethodPost, "/wallet/swap", "U1", map[string]any{"amount": "100", "tokenAmount": "5000"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, "500", api.balance(t, "U1", domain.AccountWallet))
	assert.Equal(t, "100", api.balance(t, "U1", domain.AccountHolding))
}

func TestWalletRedeemReferral(t *testing.T) {
	api := newTestAPI(t, false)

	rec := api.do(t, http.MethodPost, "/wallet/redeem-referral", "U1", map[string]any{"amount": "12.50"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody(t, rec)
	assert.NotEmpty(t, resp["redemptionId"])
	assert.Equal(t, "12.5", resp["walletBalance"])
	assert.Equal(t, "12.5", api.balance(t, "U1", domain.AccountWallet))

	rec = api.do(t, http.MethodPost, "/wallet/redeem-referral", "U1", map[string]any{"amount": "20"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "available 12.50")

	rec = api.do(t, http.MethodPost, "/wallet/redeem-referral", "U1", map[string]any{"amount": "5"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/wallet/redeem-referral", "ghost", map[string]any{"amount": "10"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, "12.5", api.balance(t, "U1", domain.AccountWallet))
}

func TestPricingAndNotifications(t *testing.T) {
	api := newTestAPI(t, false)

	rec := api.do(t, http.MethodGet, "/pricing", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ICOX", body["symbol"])
	assert.Equal(t, "10", body["priceInr"])

	require.NoError(t, api.store.InsertNotification(context.Background(), domain.Notification{
		UserID: "U1", Title: "Staking started", Message: "m", Type: service.NotifyStaking,
	}))
	rec = api.do(t, http.MethodGet, "/notifications?limit=5", "U1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var notes []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "Staking started", notes[0]["title"])
}

func TestMetricsAndCORS(t *testing.T) {
	api := newTestAPI(t, false)
	api.do(t, http.MethodGet, "/staking/plans", "", nil)

	rec := api.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/staking/plans",status="200"} 1`)

	req := httptest.NewRequest(http.MethodOptions, "/staking/stakes", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = api.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
