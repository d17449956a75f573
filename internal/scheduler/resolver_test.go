package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenWatch/internal/model"
)

func TestTargetResolver_ExactStringMatch(t *testing.T) {
	alerts := &fakeAlerts{targets: []model.PriceAlertTarget{
		{ID: 1, TokenID: 1, TokenName: "Ethereum", Price: "50.00", Email: "a@example.com"},
	}}
	r := NewTargetResolver(alerts, 4, nil, nil)

	hits := r.Resolve(context.Background(), []model.TokenPrice{{TokenID: 1, Price: "50.00"}})
	require.Len(t, hits, 1)
	assert.Equal(t, model.TargetHit{TokenID: 1, TokenName: "Ethereum", TargetPrice: "50.00", Email: "a@example.com"}, hits[0])

	for _, price := range []string{"50.0", "50", "50.000"} {
		assert.Empty(t, r.Resolve(context.Background(), []model.TokenPrice{{TokenID: 1, Price: price}}), price)
	}
	assert.Empty(t, r.Resolve(context.Background(), []model.TokenPrice{{TokenID: 2, Price: "50.00"}}))
}

func TestTargetResolver_CollectsAllTokens(t *testing.T) {
	alerts := &fakeAlerts{targets: []model.PriceAlertTarget{
		{TokenID: 1, TokenName: "Ethereum", Price: "3000", Email: "b@example.com"},
		{TokenID: 1, TokenName: "Ethereum", Price: "3000", Email: "a@example.com"},
		{TokenID: 2, TokenName: "Polygon", Price: "0.7", Email: "c@example.com"},
	}}
	r := NewTargetResolver(alerts, 1, nil, nil)

	hits := r.Resolve(context.Background(), []model.TokenPrice{
		{TokenID: 2, Price: "0.7"},
		{TokenID: 1, Price: "3000"},
	})
	require.Len(t, hits, 3)
	assert.Equal(t, "a@example.com", hits[0].Email)
	assert.Equal(t, "b@example.com", hits[1].Email)
	assert.Equal(t, "c@example.com", hits[2].Email)
}

func TestTargetResolver_LookupFailureSkipsOnlyThatToken(t *testing.T) {
	alerts := &fakeAlerts{
		targets: []model.PriceAlertTarget{
			{TokenID: 1, TokenName: "Ethereum", Price: "3000", Email: "a@example.com"},
			{TokenID: 2, TokenName: "Polygon", Price: "0.7", Email: "c@example.com"},
		},
		failFor: map[int64]error{1: errors.New("timeout")},
	}
	metrics := NewMetrics(prometheus.NewRegistry())
	r := NewTargetResolver(alerts, 4, metrics, nil)

	hits := r.Resolve(context.Background(), []model.TokenPrice{
		{TokenID: 1, Price: "3000"},
		{TokenID: 2, Price: "0.7"},
	})
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].TokenID)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AlertLookupFailures))
}
