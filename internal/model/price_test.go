package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceObservationJSONKeepsPriceString(t *testing.T) {
	obs := PriceObservation{
		TokenID:    1,
		TokenName:  "Ethereum",
		Price:      "3120.450000000000000001",
		ObservedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(obs)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, obs.Price, decoded["price"])
}

func TestAddressKey(t *testing.T) {
	assert.Equal(t, "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", AddressKey("  0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2 "))
}

func TestAlertEventKinds(t *testing.T) {
	events := []AlertEvent{PercentageSwing{}, TargetHit{}}
	assert.Equal(t, AlertKindPercentageSwing, events[0].Kind())
	assert.Equal(t, AlertKindTargetHit, events[1].Kind())
}
