package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenWatch/internal/model"
)

func TestSwingDetector_Threshold(t *testing.T) {
	d := NewSwingDetector(nil, time.Hour, time.Minute, 3, nil)
	base := []model.PriceObservation{{TokenID: 1, TokenName: "Ethereum", Price: "100"}}

	swings := d.Evaluate(base, []model.TokenPrice{{TokenID: 1, Price: "103.5"}})
	require.Len(t, swings, 1)
	assert.Equal(t, model.PercentageSwing{
		TokenID:            1,
		TokenName:          "Ethereum",
		PercentageIncrease: 3.5,
		CurrentPrice:       103.5,
		BasePrice:          100,
	}, swings[0])

	assert.Empty(t, d.Evaluate(base, []model.TokenPrice{{TokenID: 1, Price: "102.9"}}))
}

func TestSwingDetector_ExactlyAtThreshold(t *testing.T) {
	d := NewSwingDetector(nil, time.Hour, time.Minute, 3, nil)
	swings := d.Evaluate(
		[]model.PriceObservation{{TokenID: 1, Price: "100.00"}},
		[]model.TokenPrice{{TokenID: 1, Price: "103.00"}},
	)
	require.Len(t, swings, 1)
	assert.Equal(t, 3.0, swings[0].PercentageIncrease)
}

func TestSwingDetector_DecreaseIsIgnored(t *testing.T) {
	d := NewSwingDetector(nil, time.Hour, time.Minute, 3, nil)
	assert.Empty(t, d.Evaluate(
		[]model.PriceObservation{{TokenID: 1, Price: "100"}},
		[]model.TokenPrice{{TokenID: 1, Price: "90"}},
	))
}

func TestSwingDetector_SkipsInvalidBaselines(t *testing.T) {
	d := NewSwingDetector(nil, time.Hour, time.Minute, 3, nil)
	swings := d.Evaluate(
		[]model.PriceObservation{
			{TokenID: 1, Price: "0"},
			{TokenID: 2, Price: "-5"},
			{TokenID: 3, Price: "n/a"},
			{TokenID: 4, Price: "10"},
			{TokenID: 5, Price: "10"},
		},
		[]model.TokenPrice{
			{TokenID: 1, Price: "5"},
			{TokenID: 2, Price: "5"},
			{TokenID: 3, Price: "5"},
			{TokenID: 4, Price: "garbage"},
			{TokenID: 5, Price: "11"},
		},
	)
	require.Len(t, swings, 1)
	assert.Equal(t, int64(5), swings[0].TokenID)
	assert.InDelta(t, 10.0, swings[0].PercentageIncrease, 1e-9)
}

func TestSwingDetector_NoCurrentPriceNoAlert(t *testing.T) {
	d := NewSwingDetector(nil, time.Hour, time.Minute, 3, nil)
	assert.Empty(t, d.Evaluate(
		[]model.PriceObservation{{TokenID: 1, Price: "100"}},
		[]model.TokenPrice{{TokenID: 2, Price: "200"}},
	))
}

func TestWindowBounds(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	from, to := WindowBounds(now, time.Hour, time.Minute)
	assert.Equal(t, now.Add(-61*time.Minute), from)
	assert.Equal(t, now.Add(-59*time.Minute), to)
}

func TestSwingDetector_WindowSelection(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("only entry inside the band", func(t *testing.T) {
		store := newFakeStore(map[int64]string{1: "Ethereum"})
		store.add(1, "50", now.Add(-62*time.Minute))
		store.add(1, "100", now.Add(-60*time.Minute))
		store.add(1, "200", now.Add(-58*time.Minute-30*time.Second))

		d := NewSwingDetector(store, time.Hour, time.Minute, 3, nil)
		swings, err := d.Detect(context.Background(), now, []model.TokenPrice{{TokenID: 1, Price: "110"}})
		require.NoError(t, err)
		require.Len(t, swings, 1)
		assert.Equal(t, 100.0, swings[0].BasePrice)
		assert.InDelta(t, 10.0, swings[0].PercentageIncrease, 1e-9)
	})

	t.Run("latest entry in the band wins", func(t *testing.T) {
		store := newFakeStore(map[int64]string{1: "Ethereum"})
		store.add(1, "100", now.Add(-60*time.Minute))
		store.add(1, "105", now.Add(-59*time.Minute-30*time.Second))

		d := NewSwingDetector(store, time.Hour, time.Minute, 3, nil)
		swings, err := d.Detect(context.Background(), now, []model.TokenPrice{{TokenID: 1, Price: "110"}})
		require.NoError(t, err)
		require.Len(t, swings, 1)
		assert.Equal(t, 105.0, swings[0].BasePrice)
	})

	t.Run("band edges are inclusive", func(t *testing.T) {
		store := newFakeStore(map[int64]string{1: "Ethereum", 2: "Polygon"})
		store.add(1, "100", now.Add(-61*time.Minute))
		store.add(2, "1", now.Add(-59*time.Minute))

		d := NewSwingDetector(store, time.Hour, time.Minute, 3, nil)
		swings, err := d.Detect(context.Background(), now, []model.TokenPrice{
			{TokenID: 1, Price: "104"},
			{TokenID: 2, Price: "1.04"},
		})
		require.NoError(t, err)
		assert.Len(t, swings, 2)
	})
}

func TestSelectBaselines(t *testing.T) {
	now := time.Now()
	window := []model.PriceObservation{
		{TokenID: 1, Price: "3", ObservedAt: now},
		{TokenID: 2, Price: "20", ObservedAt: now},
		{TokenID: 1, Price: "2", ObservedAt: now.Add(-time.Minute)},
		{TokenID: 1, Price: "1", ObservedAt: now.Add(-2 * time.Minute)},
	}
	baselines := SelectBaselines(window)
	require.Len(t, baselines, 2)
	assert.Equal(t, "3", baselines[0].Price)
	assert.Equal(t, "20", baselines[1].Price)
}

func TestSwingDetector_ReadError(t *testing.T) {
	store := newFakeStore(nil)
	store.readErr = errors.New("connection reset")
	d := NewSwingDetector(store, time.Hour, time.Minute, 3, nil)

	_, err := d.Detect(context.Background(), time.Now(), []model.TokenPrice{{TokenID: 1, Price: "1"}})
	assert.Error(t, err)
}
