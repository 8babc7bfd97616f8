package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coinbet/application"
	"coinbet/domain"
	"coinbet/domain/entities"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSettler struct{ mock.Mock }

func (m *mockSettler) SettleMarket(ctx context.Context, marketID int64) (*entities.SettlementResult, error) {
	args := m.Called(ctx, marketID)
	result, _ := args.Get(0).(*entities.SettlementResult)
	return result, args.Error(1)
}

type mockOdds struct{ mock.Mock }

func (m *mockOdds) RecalculateOdds(ctx context.Context, marketID int64) (*entities.OddsSnapshot, error) {
	args := m.Called(ctx, marketID)
	snapshot, _ := args.Get(0).(*entities.OddsSnapshot)
	return snapshot, args.Error(1)
}

type mockReconciler struct{ mock.Mock }

func (m *mockReconciler) RunOnce(ctx context.Context) (*application.ReconcileReport, error) {
	args := m.Called(ctx)
	report, _ := args.Get(0).(*application.ReconcileReport)
	return report, args.Error(1)
}

type mockAuditor struct{ mock.Mock }

func (m *mockAuditor) ListUnsettled(ctx context.Context) ([]*entities.Market, error) {
	args := m.Called(ctx)
	markets, _ := args.Get(0).([]*entities.Market)
	return markets, args.Error(1)
}

func (m *mockAuditor) GetMarketSummary(ctx context.Context, marketID int64) (*entities.MarketSummary, error) {
	args := m.Called(ctx, marketID)
	summary, _ := args.Get(0).(*entities.MarketSummary)
	return summary, args.Error(1)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type observedRequest struct {
	method, route string
	status        int
}

type fakeHTTPMetrics struct{ requests []observedRequest }

func (m *fakeHTTPMetrics) ObserveHTTPRequest(method, route string, status int, _ time.Duration) {
	m.requests = append(m.requests, observedRequest{method: method, route: route, status: status})
}

type testAPI struct {
	settler    *mockSettler
	odds       *mockOdds
	reconciler *mockReconciler
	auditor    *mockAuditor
	metrics    *fakeHTTPMetrics
	handler    http.Handler
}

func newTestAPI(db Pinger) *testAPI {
	t := &testAPI{
		settler:    &mockSettler{},
		odds:       &mockOdds{},
		reconciler: &mockReconciler{},
		auditor:    &mockAuditor{},
		metrics:    &fakeHTTPMetrics{},
	}
	api := NewOperatorAPI(0, Deps{
		Settler:    t.settler,
		Odds:       t.odds,
		Reconciler: t.reconciler,
		Auditor:    t.auditor,
		Database:   db,
		Metrics:    t.metrics,
		Gatherer:   prometheus.NewRegistry(),
	})
	t.handler = api.Routes()
	return t
}

func (a *testAPI) do(method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestOperatorAPI_Settle(t *testing.T) {
	tests := []struct {
		name       string
		result     *entities.SettlementResult
		err        error
		wantStatus int
		wantCode   domain.ErrorCode
	}{
		{
			name:       "settled",
			result:     &entities.SettlementResult{MarketID: 20, Result: "Lions", SettlementTotals: entities.SettlementTotals{Settled: 2, Won: 1, Lost: 1, TotalPayout: 190}, NewlySettled: 2},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown market",
			err:        domain.NewError(domain.CodeMarketNotFound, "market 20 not found"),
			wantStatus: http.StatusNotFound,
			wantCode:   domain.CodeMarketNotFound,
		},
		{
			name:       "no result yet",
			err:        domain.NewError(domain.CodeNotReadyToSettle, "market 20 has no result"),
			wantStatus: http.StatusConflict,
			wantCode:   domain.CodeNotReadyToSettle,
		},
		{
			name:       "database down",
			err:        errors.New("failed to begin transaction: connection refused"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   domain.CodeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(nil)
			api.settler.On("SettleMarket", mock.Anything, int64(20)).Return(tt.result, tt.err)

			rec := api.do(http.MethodPost, "/operator/markets/20/settle")

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.err == nil {
				var got entities.SettlementResult
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, *tt.result, got)
			} else {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
			}
			api.settler.AssertExpectations(t)
		})
	}
}

func TestOperatorAPI_SettleIncomplete(t *testing.T) {
	api := newTestAPI(nil)
	partial := &entities.SettlementResult{MarketID: 20, Result: "Lions", NewlySettled: 1, Failed: 1}
	err := domain.NewError(domain.CodeSettlementIncomplete, "1 of 2 bets on market 20 failed to settle").
		WithDetail("failed", 1)
	api.settler.On("SettleMarket", mock.Anything, int64(20)).Return(partial, err)

	rec := api.do(http.MethodPost, "/operator/markets/20/settle")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp partialResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, partial, resp.Result)
	assert.Equal(t, domain.CodeSettlementIncomplete, resp.Error.Code)
	assert.Equal(t, domain.KindConsistency, resp.Error.Kind)
}

func TestOperatorAPI_BadMarketID(t *testing.T) {
	api := newTestAPI(nil)

	for _, path := range []string{"/operator/markets/abc/settle", "/operator/markets/0/settle", "/operator/markets/-4/recalculate-odds"} {
		rec := api.do(http.MethodPost, path)

		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, domain.CodeInvalidInput, decodeError(t, rec).Code)
	}
	api.settler.AssertNotCalled(t, "SettleMarket", mock.Anything, mock.Anything)
	api.odds.AssertNotCalled(t, "RecalculateOdds", mock.Anything, mock.Anything)
}

func TestOperatorAPI_RecalculateOdds(t *testing.T) {
	api := newTestAPI(nil)
	snapshot := &entities.OddsSnapshot{
		MarketID:   20,
		TotalStake: 400,
		Options:    []entities.OptionOdds{{Name: "Lions", Odds: 1.27, Stake: 300}, {Name: "Tigers", Odds: 3.8, Stake: 100}},
		UpdatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	api.odds.On("RecalculateOdds", mock.Anything, int64(20)).Return(snapshot, nil)

	rec := api.do(http.MethodPost, "/operator/markets/20/recalculate-odds")

	require.Equal(t, http.StatusOK, rec.Code)
	var got entities.OddsSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, *snapshot, got)
}

func TestOperatorAPI_Reconcile(t *testing.T) {
	api := newTestAPI(nil)
	api.reconciler.On("RunOnce", mock.Anything).Return(&application.ReconcileReport{StakesRecorded: 3, MarketsSettled: 1}, nil)

	rec := api.do(http.MethodPost, "/operator/reconcile")

	require.Equal(t, http.StatusOK, rec.Code)
	var got application.ReconcileReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, application.ReconcileReport{StakesRecorded: 3, MarketsSettled: 1}, got)
}

func TestOperatorAPI_MarketAudit(t *testing.T) {
	api := newTestAPI(nil)
	api.auditor.On("ListUnsettled", mock.Anything).Return([]*entities.Market{}, nil)
	api.auditor.On("GetMarketSummary", mock.Anything, int64(20)).Return(&entities.MarketSummary{MarketID: 20, TotalBets: 2, TotalAmount: 300}, nil)
	api.auditor.On("GetMarketSummary", mock.Anything, int64(99)).Return(nil, domain.NewError(domain.CodeMarketNotFound, "market 99 not found"))

	rec := api.do(http.MethodGet, "/operator/markets/unsettled")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = api.do(http.MethodGet, "/operator/markets/20/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary entities.MarketSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, int64(300), summary.TotalAmount)

	rec = api.do(http.MethodGet, "/operator/markets/99/summary")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOperatorAPI_HealthEndpoints(t *testing.T) {
	healthy := newTestAPI(fakePinger{})
	assert.Equal(t, http.StatusOK, healthy.do(http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusOK, healthy.do(http.MethodGet, "/readyz").Code)
	assert.Equal(t, http.StatusOK, healthy.do(http.MethodGet, "/metrics").Code)

	down := newTestAPI(fakePinger{err: errors.New("connection refused")})
	assert.Equal(t, http.StatusOK, down.do(http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, down.do(http.MethodGet, "/readyz").Code)
}

func TestOperatorAPI_RecordsRoutePattern(t *testing.T) {
	api := newTestAPI(nil)
	api.settler.On("SettleMarket", mock.Anything, int64(20)).Return(nil, domain.NewError(domain.CodeNotReadyToSettle, "no result"))

	api.do(http.MethodPost, "/operator/markets/20/settle")

	require.Len(t, api.metrics.requests, 1)
	assert.Equal(t, observedRequest{method: http.MethodPost, route: "/operator/markets/{id}/settle", status: http.StatusConflict}, api.metrics.requests[0])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrInsufficientFunds, http.StatusConflict},
		{domain.ErrSettlementIncomplete, http.StatusAccepted},
		{domain.ErrUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}
