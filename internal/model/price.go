package model

import "time"

// FetchedPrice is a quote returned by the price provider, keyed by address.
type FetchedPrice struct {
	Address string `json:"address"`
	Price   string `json:"price"`
}

// TokenPrice is a current-cycle price resolved to a token id.
type TokenPrice struct {
	TokenID int64  `json:"token_id"`
	Price   string `json:"price"`
}

// PriceObservation is a persisted price point. Price keeps the provider's
// decimal string verbatim.
type PriceObservation struct {
	TokenID    int64     `json:"token_id"`
	TokenName  string    `json:"token_name,omitempty"`
	Price      string    `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}
