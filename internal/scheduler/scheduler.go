package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"tokenWatch/internal/model"
	"tokenWatch/internal/notify"
)

// PriceFetcher returns current prices for the given addresses. It may
// return fewer entries than requested.
type PriceFetcher interface {
	FetchPrices(ctx context.Context, addresses []string) ([]model.FetchedPrice, error)
}

// PriceStore is the subset of storage.PriceStore a cycle needs.
type PriceStore interface {
	PriceWindowReader
	InsertPriceBatch(ctx context.Context, observedAt time.Time, entries []model.TokenPrice) error
}

// Config holds scheduler settings.
type Config struct {
	FetchInterval        time.Duration
	TokenRefreshInterval time.Duration
	FetchTimeout         time.Duration
	Lookback             time.Duration
	Tolerance            time.Duration
	Threshold            float64
	SwingRecipient       string
	SkipOverlapping      bool
	InitRetries          int
	InitBackoff          time.Duration
	LookupConcurrency    int
}

func (c Config) withDefaults() Config {
	if c.FetchInterval <= 0 {
		c.FetchInterval = 5 * time.Minute
	}
	if c.Lookback <= 0 {
		c.Lookback = time.Hour
	}
	if c.Tolerance <= 0 {
		c.Tolerance = time.Minute
	}
	if c.Threshold <= 0 {
		c.Threshold = 3
	}
	if c.InitBackoff <= 0 {
		c.InitBackoff = time.Second
	}
	return c
}

// Deps are the collaborators a Scheduler drives.
type Deps struct {
	Directory TokenLister
	Fetcher   PriceFetcher
	Prices    PriceStore
	Alerts    AlertFinder
	Sender    notify.Sender
	Metrics   *Metrics
	Logger    *zap.Logger
}

// CycleStatus is the outcome of one cycle.
type CycleStatus string

const (
	CycleOK      CycleStatus = "ok"
	CycleFailed  CycleStatus = "failed"
	CyclePanic   CycleStatus = "panic"
	CycleSkipped CycleStatus = "skipped"
)

// CycleReport summarises one cycle for logs and tests.
type CycleReport struct {
	Status     CycleStatus
	ObservedAt time.Time
	Fetched    int
	Stored     int
	Swings     int
	TargetHits int
	Dispatch   DispatchResult
	Err        error
}

// Scheduler owns the token cache and runs fetch-detect-notify cycles.
type Scheduler struct {
	cfg        Config
	cache      *TokenCache
	directory  TokenLister
	fetcher    PriceFetcher
	prices     PriceStore
	detector   *SwingDetector
	resolver   *TargetResolver
	dispatcher *Dispatcher
	metrics    *Metrics
	logger     *zap.Logger
	now        func() time.Time

	running atomic.Bool
	cron    *gocron.Scheduler
}

// New builds a Scheduler. The token cache starts empty; call Initialize.
func New(cfg Config, deps Deps) (*Scheduler, error) {
	if deps.Directory == nil {
		return nil, fmt.Errorf("token directory is nil")
	}
	if deps.Fetcher == nil {
		return nil, fmt.Errorf("price fetcher is nil")
	}
	if deps.Prices == nil {
		return nil, fmt.Errorf("price store is nil")
	}
	if deps.Alerts == nil {
		return nil, fmt.Errorf("alert registry is nil")
	}
	if deps.Sender == nil {
		return nil, fmt.Errorf("notification sender is nil")
	}
	cfg = cfg.withDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cfg:        cfg,
		cache:      NewTokenCache(),
		directory:  deps.Directory,
		fetcher:    deps.Fetcher,
		prices:     deps.Prices,
		detector:   NewSwingDetector(deps.Prices, cfg.Lookback, cfg.Tolerance, cfg.Threshold, logger.Named("detector")),
		resolver:   NewTargetResolver(deps.Alerts, cfg.LookupConcurrency, deps.Metrics, logger.Named("resolver")),
		dispatcher: NewDispatcher(deps.Sender, cfg.SwingRecipient, cfg.Threshold, deps.Metrics, logger.Named("dispatcher")),
		metrics:    deps.Metrics,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Cache exposes the token cache for read access.
func (s *Scheduler) Cache() *TokenCache {
	return s.cache
}

// Initialize loads the token cache, retrying with backoff. Failure leaves
// the cache empty and is only logged.
func (s *Scheduler) Initialize(ctx context.Context) {
	err := withRetry(ctx, s.cfg.InitRetries, s.cfg.InitBackoff, func(ctx context.Context) error {
		err := s.cache.Refresh(ctx, s.directory)
		if err != nil {
			s.logger.Warn("token cache load failed", zap.Error(err))
		}
		return err
	})
	if err != nil {
		s.logger.Error("token cache not initialized", zap.Error(err))
		return
	}
	s.metrics.tracked(s.cache.Len())
	s.logger.Info("token cache loaded", zap.Int("tokens", s.cache.Len()))
}

// Refresh reloads the token cache once.
func (s *Scheduler) Refresh(ctx context.Context) error {
	if err := s.cache.Refresh(ctx, s.directory); err != nil {
		return err
	}
	s.metrics.tracked(s.cache.Len())
	return nil
}

// RunCycle performs one fetch-detect-notify cycle. It never panics and
// never returns an error; the outcome is logged and reported.
func (s *Scheduler) RunCycle(ctx context.Context) (report CycleReport) {
	if s.cfg.SkipOverlapping {
		if !s.running.CompareAndSwap(false, true) {
			s.logger.Warn("previous cycle still running, tick skipped")
			s.metrics.cycle(CycleSkipped, 0)
			return CycleReport{Status: CycleSkipped}
		}
		defer s.running.Store(false)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			report.Status = CyclePanic
			report.Err = &panicError{value: r}
			s.logger.Error("cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		s.metrics.cycle(report.Status, time.Since(start))
	}()

	report = s.runCycle(ctx)
	if report.Err != nil {
		report.Status = CycleFailed
		s.logger.Error("cycle aborted", zap.Error(report.Err))
		return report
	}
	report.Status = CycleOK
	s.logger.Info("cycle complete",
		zap.Int("fetched", report.Fetched),
		zap.Int("stored", report.Stored),
		zap.Int("swings", report.Swings),
		zap.Int("target_hits", report.TargetHits),
		zap.Int("sent", report.Dispatch.Sent),
		zap.Int("failed", report.Dispatch.Failed),
		zap.Duration("took", time.Since(start)),
	)
	return report
}

func (s *Scheduler) runCycle(ctx context.Context) CycleReport {
	if !s.cache.Loaded() {
		if err := s.Refresh(ctx); err != nil {
			s.logger.Warn("token cache still empty", zap.Error(err))
		}
	}

	addresses := s.cache.Addresses()
	if len(addresses) == 0 {
		s.logger.Debug("no tracked tokens")
		return CycleReport{}
	}

	report := CycleReport{ObservedAt: s.now().UTC()}
	current, err := s.fetchAndPersist(ctx, addresses, report.ObservedAt, &report)
	if err != nil {
		report.Err = err
		return report
	}
	if len(current) == 0 {
		return report
	}

	var swings []model.PercentageSwing
	var hits []model.TargetHit
	var wg conc.WaitGroup
	wg.Go(func() {
		found, err := s.detector.Detect(ctx, report.ObservedAt, current)
		if err != nil {
			s.logger.Error("swing detection skipped", zap.Error(err))
			return
		}
		swings = found
	})
	wg.Go(func() {
		hits = s.resolver.Resolve(ctx, current)
	})
	wg.Wait()

	report.Swings = len(swings)
	report.TargetHits = len(hits)
	s.metrics.alerts(model.AlertKindPercentageSwing, len(swings))
	s.metrics.alerts(model.AlertKindTargetHit, len(hits))

	events := make([]model.AlertEvent, 0, len(swings)+len(hits))
	for _, sw := range swings {
		if sw.TokenName == "" {
			sw.TokenName, _ = s.cache.Name(sw.TokenID)
		}
		events = append(events, sw)
	}
	for _, h := range hits {
		if h.TokenName == "" {
			h.TokenName, _ = s.cache.Name(h.TokenID)
		}
		events = append(events, h)
	}
	report.Dispatch = s.dispatcher.Dispatch(ctx, events)
	return report
}

// fetchAndPersist fetches every address in one call, resolves the result
// against the cache and writes it as one batch tagged with observedAt.
func (s *Scheduler) fetchAndPersist(ctx context.Context, addresses []string, observedAt time.Time, report *CycleReport) ([]model.TokenPrice, error) {
	fetchCtx := ctx
	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}

	fetched, err := s.fetcher.FetchPrices(fetchCtx, addresses)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	report.Fetched = len(fetched)

	current := make([]model.TokenPrice, 0, len(fetched))
	unresolved := 0
	for _, p := range fetched {
		id, ok := s.cache.Resolve(p.Address)
		if !ok {
			unresolved++
			s.logger.Debug("drop untracked address", zap.String("address", p.Address))
			continue
		}
		current = append(current, model.TokenPrice{TokenID: id, Price: p.Price})
	}
	if len(current) == 0 {
		s.metrics.stored(0, unresolved)
		return nil, nil
	}

	if err := s.prices.InsertPriceBatch(ctx, observedAt, current); err != nil {
		return nil, fmt.Errorf("store prices: %w", err)
	}
	report.Stored = len(current)
	s.metrics.stored(len(current), unresolved)
	return current, nil
}

// Start schedules RunCycle every FetchInterval and, when configured, a
// periodic token refresh. The first cycle runs one interval after Start.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cron != nil {
		return errors.New("scheduler already started")
	}
	cron := gocron.NewScheduler(time.UTC)

	if _, err := cron.Every(s.cfg.FetchInterval).WaitForSchedule().Do(func() {
		s.RunCycle(ctx)
	}); err != nil {
		return fmt.Errorf("schedule price cycle: %w", err)
	}

	if s.cfg.TokenRefreshInterval > 0 {
		if _, err := cron.Every(s.cfg.TokenRefreshInterval).WaitForSchedule().Do(func() {
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn("token refresh failed", zap.Error(err))
				return
			}
			s.logger.Info("token cache refreshed", zap.Int("tokens", s.cache.Len()))
		}); err != nil {
			return fmt.Errorf("schedule token refresh: %w", err)
		}
	}

	cron.StartAsync()
	s.cron = cron
	s.logger.Info("scheduler started",
		zap.Duration("fetch_interval", s.cfg.FetchInterval),
		zap.Duration("token_refresh_interval", s.cfg.TokenRefreshInterval),
		zap.Bool("skip_overlapping", s.cfg.SkipOverlapping),
	)
	return nil
}

// Stop halts future ticks. Cycles already running are not interrupted.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	s.cron.Stop()
	s.cron = nil
	s.logger.Info("scheduler stopped")
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
