package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokenWatch/internal/model"
)

var hundred = decimal.NewFromInt(100)

// PriceWindowReader reads persisted prices by time range, newest first.
type PriceWindowReader interface {
	PricesBetween(ctx context.Context, from, to time.Time) ([]model.PriceObservation, error)
}

// SwingDetector compares current prices against the observation recorded
// roughly Lookback ago.
type SwingDetector struct {
	reader    PriceWindowReader
	lookback  time.Duration
	tolerance time.Duration
	threshold decimal.Decimal
	logger    *zap.Logger
}

func NewSwingDetector(reader PriceWindowReader, lookback, tolerance time.Duration, threshold float64, logger *zap.Logger) *SwingDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SwingDetector{
		reader:    reader,
		lookback:  lookback,
		tolerance: tolerance,
		threshold: decimal.NewFromFloat(threshold),
		logger:    logger,
	}
}

// WindowBounds returns [now-lookback-tolerance, now-lookback+tolerance].
func WindowBounds(now time.Time, lookback, tolerance time.Duration) (time.Time, time.Time) {
	center := now.Add(-lookback)
	return center.Add(-tolerance), center.Add(tolerance)
}

// SelectBaselines keeps the first observation per token. The input must be
// ordered newest first, so the most recent observation wins.
func SelectBaselines(window []model.PriceObservation) []model.PriceObservation {
	seen := make(map[int64]struct{}, len(window))
	out := make([]model.PriceObservation, 0, len(window))
	for _, obs := range window {
		if _, ok := seen[obs.TokenID]; ok {
			continue
		}
		seen[obs.TokenID] = struct{}{}
		out = append(out, obs)
	}
	return out
}

// Detect reads the trailing window and returns one swing per token whose
// current price rose by at least the threshold.
func (d *SwingDetector) Detect(ctx context.Context, now time.Time, current []model.TokenPrice) ([]model.PercentageSwing, error) {
	if len(current) == 0 {
		return nil, nil
	}
	from, to := WindowBounds(now, d.lookback, d.tolerance)
	window, err := d.reader.PricesBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("read price window: %w", err)
	}
	return d.Evaluate(SelectBaselines(window), current), nil
}

// Evaluate matches baselines with current prices by token id.
func (d *SwingDetector) Evaluate(baselines []model.PriceObservation, current []model.TokenPrice) []model.PercentageSwing {
	currentByID := make(map[int64]string, len(current))
	for _, p := range current {
		currentByID[p.TokenID] = p.Price
	}

	var swings []model.PercentageSwing
	for _, base := range baselines {
		price, ok := currentByID[base.TokenID]
		if !ok {
			continue
		}
		swing, ok, err := percentageSwing(base, price, d.threshold)
		if err != nil {
			d.logger.Warn("skip swing check", zap.Int64("token_id", base.TokenID), zap.String("base", base.Price), zap.String("current", price), zap.Error(err))
			continue
		}
		if ok {
			swings = append(swings, swing)
		}
	}
	return swings
}

func percentageSwing(base model.PriceObservation, current string, threshold decimal.Decimal) (model.PercentageSwing, bool, error) {
	baseDec, err := decimal.NewFromString(base.Price)
	if err != nil {
		return model.PercentageSwing{}, false, fmt.Errorf("parse baseline price: %w", err)
	}
	currentDec, err := decimal.NewFromString(current)
	if err != nil {
		return model.PercentageSwing{}, false, fmt.Errorf("parse current price: %w", err)
	}
	if !baseDec.IsPositive() {
		return model.PercentageSwing{}, false, fmt.Errorf("baseline price %s is not positive", base.Price)
	}

	pct := currentDec.Sub(baseDec).Div(baseDec).Mul(hundred)
	if pct.LessThan(threshold) {
		return model.PercentageSwing{}, false, nil
	}
	return model.PercentageSwing{
		TokenID:            base.TokenID,
		TokenName:          base.TokenName,
		PercentageIncrease: pct.InexactFloat64(),
		CurrentPrice:       currentDec.InexactFloat64(),
		BasePrice:          baseDec.InexactFloat64(),
	}, true, nil
}
