package scheduler

import (
	"context"
	"sort"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"tokenWatch/internal/model"
)

// AlertFinder looks up registered targets by exact price string.
type AlertFinder interface {
	FindAlertTargets(ctx context.Context, tokenID int64, price string) ([]model.PriceAlertTarget, error)
}

// TargetResolver turns current prices into target hits.
type TargetResolver struct {
	finder         AlertFinder
	maxConcurrency int
	metrics        *Metrics
	logger         *zap.Logger
}

func NewTargetResolver(finder AlertFinder, maxConcurrency int, metrics *Metrics, logger *zap.Logger) *TargetResolver {
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TargetResolver{finder: finder, maxConcurrency: maxConcurrency, metrics: metrics, logger: logger}
}

// Resolve looks up every current price concurrently and returns all hits
// once every lookup has finished. A failed lookup drops only that token.
func (r *TargetResolver) Resolve(ctx context.Context, current []model.TokenPrice) []model.TargetHit {
	if len(current) == 0 {
		return nil
	}

	p := pool.NewWithResults[[]model.TargetHit]().WithMaxGoroutines(r.maxConcurrency)
	for _, price := range current {
		price := price
		p.Go(func() []model.TargetHit {
			targets, err := r.finder.FindAlertTargets(ctx, price.TokenID, price.Price)
			if err != nil {
				r.logger.Warn("alert lookup failed", zap.Int64("token_id", price.TokenID), zap.String("price", price.Price), zap.Error(err))
				r.metrics.lookupFailed()
				return nil
			}
			hits := make([]model.TargetHit, 0, len(targets))
			for _, t := range targets {
				hits = append(hits, model.TargetHit{
					TokenID:     price.TokenID,
					TokenName:   t.TokenName,
					TargetPrice: t.Price,
					Email:       t.Email,
				})
			}
			return hits
		})
	}

	var hits []model.TargetHit
	for _, batch := range p.Wait() {
		hits = append(hits, batch...)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].TokenID != hits[j].TokenID {
			return hits[i].TokenID < hits[j].TokenID
		}
		return hits[i].Email < hits[j].Email
	})
	return hits
}
