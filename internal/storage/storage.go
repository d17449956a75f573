package storage

import (
	"context"
	"time"

	"tokenWatch/internal/model"
)

// TokenDirectory lists tracked tokens.
type TokenDirectory interface {
	ListTokens(ctx context.Context) ([]model.Token, error)
	TokenByName(ctx context.Context, name string) (model.Token, error)
	UpsertTokens(ctx context.Context, tokens []model.Token) error
}

// PriceStore is an append-only time series of token prices.
type PriceStore interface {
	// InsertPriceBatch writes all entries tagged with observedAt, all or nothing.
	InsertPriceBatch(ctx context.Context, observedAt time.Time, entries []model.TokenPrice) error
	// PricesBetween returns observations in [from, to], newest first.
	PricesBetween(ctx context.Context, from, to time.Time) ([]model.PriceObservation, error)
	// PriceHistory returns observations of one token since a point in time, newest first.
	PriceHistory(ctx context.Context, tokenID int64, since time.Time) ([]model.PriceObservation, error)
}

// AlertRegistry stores user-registered target prices.
type AlertRegistry interface {
	CreateAlertTarget(ctx context.Context, target model.PriceAlertTarget) (model.PriceAlertTarget, error)
	// FindAlertTargets returns targets whose price string equals price exactly.
	FindAlertTargets(ctx context.Context, tokenID int64, price string) ([]model.PriceAlertTarget, error)
}

// Store bundles every persistence concern behind one connection.
type Store interface {
	TokenDirectory
	PriceStore
	AlertRegistry
	Close()
}
