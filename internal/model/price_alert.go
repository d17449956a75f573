package model

import "time"

// PriceAlertTarget is a user-registered exact price for a token.
type PriceAlertTarget struct {
	ID        int64     `json:"id"`
	TokenID   int64     `json:"token_id"`
	TokenName string    `json:"token_name,omitempty"`
	Price     string    `json:"price"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
