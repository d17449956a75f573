package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"tokenWatch/internal/model"
	"tokenWatch/internal/notify"
)

type fakeDirectory struct {
	mu     sync.Mutex
	tokens []model.Token
	errs   []error
	calls  int
}

func (d *fakeDirectory) ListTokens(context.Context) ([]model.Token, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return append([]model.Token(nil), d.tokens...), nil
}

type fakeFetcher struct {
	mu     sync.Mutex
	prices []model.FetchedPrice
	errs   []error
	calls  [][]string
	block  chan struct{}
	panics bool
}

func (f *fakeFetcher) FetchPrices(ctx context.Context, addresses []string) ([]model.FetchedPrice, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), addresses...))
	if f.panics {
		panic("provider exploded")
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return append([]model.FetchedPrice(nil), f.prices...), nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type priceBatch struct {
	at      time.Time
	entries []model.TokenPrice
}

// fakeStore keeps observations in memory and answers window queries the
// way the SQL stores do.
type fakeStore struct {
	mu       sync.Mutex
	names    map[int64]string
	obs      []model.PriceObservation
	batches  []priceBatch
	writeErr error
	readErr  error
}

func newFakeStore(names map[int64]string) *fakeStore {
	return &fakeStore{names: names}
}

func (s *fakeStore) InsertPriceBatch(_ context.Context, at time.Time, entries []model.TokenPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.batches = append(s.batches, priceBatch{at: at, entries: append([]model.TokenPrice(nil), entries...)})
	for _, e := range entries {
		s.obs = append(s.obs, model.PriceObservation{TokenID: e.TokenID, TokenName: s.names[e.TokenID], Price: e.Price, ObservedAt: at})
	}
	return nil
}

func (s *fakeStore) add(tokenID int64, price string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs = append(s.obs, model.PriceObservation{TokenID: tokenID, TokenName: s.names[tokenID], Price: price, ObservedAt: at})
}

func (s *fakeStore) PricesBetween(_ context.Context, from, to time.Time) ([]model.PriceObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	var out []model.PriceObservation
	for _, o := range s.obs {
		if !o.ObservedAt.Before(from) && !o.ObservedAt.After(to) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ObservedAt.After(out[j].ObservedAt) })
	return out, nil
}

func (s *fakeStore) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

type fakeAlerts struct {
	targets []model.PriceAlertTarget
	failFor map[int64]error
}

func (a *fakeAlerts) FindAlertTargets(_ context.Context, tokenID int64, price string) ([]model.PriceAlertTarget, error) {
	if err, ok := a.failFor[tokenID]; ok {
		return nil, err
	}
	var out []model.PriceAlertTarget
	for _, t := range a.targets {
		if t.TokenID == tokenID && t.Price == price {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []notify.Message
	failFor map[string]bool
	panicTo string
}

func (s *fakeSender) Send(_ context.Context, msg notify.Message) error {
	if msg.To == s.panicTo && s.panicTo != "" {
		panic("smtp relay exploded")
	}
	if s.failFor[msg.To] {
		return errors.New("mailbox unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) messages() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]notify.Message(nil), s.sent...)
	sort.Slice(out, func(i, j int) bool { return out[i].To < out[j].To })
	return out
}
