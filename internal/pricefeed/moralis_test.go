package pricefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenWatch/internal/model"
)

func TestMoralisClient_FetchPrices(t *testing.T) {
	var gotReq pricesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/erc20/prices", r.URL.Path)
		assert.Equal(t, "polygon", r.URL.Query().Get("chain"))
		assert.Equal(t, "key", r.Header.Get("X-API-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"tokenAddress":"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2","usdPrice":3245.12,"usdPriceFormatted":"3245.120000000000000000"},
			{"tokenAddress":"0x455e53cbb86018ac2b8092fdcd39d8444affc3f6","usdPrice":0.725},
			{"tokenAddress":"0xdead","usdPriceFormatted":""}
		]`))
	}))
	defer srv.Close()

	client, err := NewMoralisClient(Config{BaseURL: srv.URL, APIKey: "key", Chain: "polygon"}, nil)
	require.NoError(t, err)

	prices, err := client.FetchPrices(context.Background(), []string{
		"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		"0x455e53CBB86018Ac2B8092FdCd39d8444aFFC3F6",
	})
	require.NoError(t, err)

	require.Len(t, gotReq.Tokens, 2)
	assert.Equal(t, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", gotReq.Tokens[0].TokenAddress)

	assert.Equal(t, []model.FetchedPrice{
		{Address: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", Price: "3245.120000000000000000"},
		{Address: "0x455e53cbb86018ac2b8092fdcd39d8444affc3f6", Price: "0.725"},
	}, prices)
}

func TestMoralisClient_EmptyAddressesSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	client, err := NewMoralisClient(Config{BaseURL: srv.URL, APIKey: "key"}, nil)
	require.NoError(t, err)

	prices, err := client.FetchPrices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, prices)
	assert.Zero(t, calls.Load())
}

func TestMoralisClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewMoralisClient(Config{BaseURL: srv.URL, APIKey: "key"}, nil)
	require.NoError(t, err)

	_, err = client.FetchPrices(context.Background(), []string{"0x1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestMoralisClient_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	client, err := NewMoralisClient(Config{BaseURL: srv.URL, APIKey: "key"}, nil)
	require.NoError(t, err)

	_, err = client.FetchPrices(context.Background(), []string{"0x1"})
	assert.Error(t, err)
}

func TestMoralisClient_OversizedResponse(t *testing.T) {
	prev := maxResponseBytes
	maxResponseBytes = 64
	t.Cleanup(func() { maxResponseBytes = prev })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"tokenAddress":"0x1","usdPriceFormatted":"1.0"},{"tokenAddress":"0x2","usdPriceFormatted":"2.0"}]`))
	}))
	defer srv.Close()

	client, err := NewMoralisClient(Config{BaseURL: srv.URL, APIKey: "key"}, nil)
	require.NoError(t, err)

	_, err = client.FetchPrices(context.Background(), []string{"0x1", "0x2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 64 bytes")
}

func TestNewMoralisClient_RequiresKey(t *testing.T) {
	_, err := NewMoralisClient(Config{}, nil)
	assert.Error(t, err)
}
