package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenWatch/internal/model"
	"tokenWatch/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	mu       sync.Mutex
	tokens   map[string]model.Token
	alerts   []model.PriceAlertTarget
	history  map[int64][]model.PriceObservation
	since    time.Time
	failWith error
}

func (f *fakeStore) TokenByName(_ context.Context, name string) (model.Token, error) {
	if f.failWith != nil {
		return model.Token{}, f.failWith
	}
	t, ok := f.tokens[name]
	if !ok {
		return model.Token{}, storage.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) CreateAlertTarget(_ context.Context, target model.PriceAlertTarget) (model.PriceAlertTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target.ID = int64(len(f.alerts) + 1)
	f.alerts = append(f.alerts, target)
	return target, nil
}

func (f *fakeStore) PriceHistory(_ context.Context, tokenID int64, since time.Time) ([]model.PriceObservation, error) {
	f.since = since
	return f.history[tokenID], nil
}

func newTestServer(t *testing.T, store *fakeStore) *Server {
	t.Helper()
	srv, err := NewServer(Options{
		Store:         store,
		Gatherer:      prometheus.NewRegistry(),
		TrackedTokens: func() int { return 2 },
	})
	require.NoError(t, err)
	return srv
}

func newStore() *fakeStore {
	return &fakeStore{
		tokens: map[string]model.Token{
			"Ethereum": {ID: 1, Name: "Ethereum", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"},
		},
		history: map[int64][]model.PriceObservation{},
	}
}

func do(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestCreatePriceAlert(t *testing.T) {
	store := newStore()
	srv := newTestServer(t, store)

	rec, resp := do(t, srv, http.MethodPost, "/price-alert/create",
		`{"chain":"Ethereum","priceInDollar":"3500.00","email":"user@example.com"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Price alert created successfully", resp.Message)
	require.Len(t, store.alerts, 1)
	assert.Equal(t, model.PriceAlertTarget{ID: 1, TokenID: 1, Price: "3500.00", Email: "user@example.com"}, store.alerts[0])
}

func TestCreatePriceAlert_UnknownToken(t *testing.T) {
	srv := newTestServer(t, newStore())

	rec, resp := do(t, srv, http.MethodPost, "/price-alert/create",
		`{"chain":"Solana","priceInDollar":"150","email":"user@example.com"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "Token for given name not found.", resp.Message)
}

func TestCreatePriceAlert_Validation(t *testing.T) {
	store := newStore()
	srv := newTestServer(t, store)

	bodies := []string{
		`{"chain":"Ethereum","priceInDollar":"abc","email":"user@example.com"}`,
		`{"chain":"Ethereum","priceInDollar":"-1","email":"user@example.com"}`,
		`{"chain":"Ethereum","priceInDollar":"10","email":"not-an-email"}`,
		`{"chain":"Ethereum","email":"user@example.com"}`,
		`not json`,
	}
	for _, body := range bodies {
		rec, resp := do(t, srv, http.MethodPost, "/price-alert/create", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.False(t, resp.Success, body)
	}
	assert.Empty(t, store.alerts)
}

func TestCreatePriceAlert_StoreError(t *testing.T) {
	store := newStore()
	store.failWith = errors.New("connection refused")
	srv := newTestServer(t, store)

	rec, _ := do(t, srv, http.MethodPost, "/price-alert/create",
		`{"chain":"Ethereum","priceInDollar":"10","email":"user@example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLast24hPrices(t *testing.T) {
	store := newStore()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.history[1] = []model.PriceObservation{
		{TokenID: 1, Price: "3245.12", ObservedAt: at},
		{TokenID: 1, Price: "3200.00", ObservedAt: at.Add(-5 * time.Minute)},
	}
	srv := newTestServer(t, store)
	srv.now = func() time.Time { return at }

	rec, _ := do(t, srv, http.MethodGet, "/token-price/24h/Ethereum", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool         `json:"success"`
		Data    []PricePoint `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 2)
	assert.Equal(t, "3245.12", body.Data[0].Price)
	assert.True(t, at.Equal(body.Data[0].CreatedAt))
	assert.Equal(t, at.Add(-24*time.Hour), store.since)

	rec, _ = do(t, srv, http.MethodGet, "/token-price/24h/Dogecoin", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, newStore())

	rec, resp := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2.0, data["trackedTokens"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(metricsRec, req)
	assert.Equal(t, http.StatusOK, metricsRec.Code)
}

func TestNewServer_RequiresStore(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)
}
