package scheduler

import (
	"context"
	"sync/atomic"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"tokenWatch/internal/model"
	"tokenWatch/internal/notify"
)

// DispatchResult counts the outcome of one dispatch round.
type DispatchResult struct {
	Sent   int
	Failed int
}

// Dispatcher renders alert events and sends them concurrently.
type Dispatcher struct {
	sender         notify.Sender
	swingRecipient string
	threshold      float64
	metrics        *Metrics
	logger         *zap.Logger
}

func NewDispatcher(sender notify.Sender, swingRecipient string, threshold float64, metrics *Metrics, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sender:         sender,
		swingRecipient: swingRecipient,
		threshold:      threshold,
		metrics:        metrics,
		logger:         logger,
	}
}

// Compose renders an event into a message. Swings go to the configured
// recipient, target hits to the registrant.
func (d *Dispatcher) Compose(ev model.AlertEvent) (notify.Message, bool) {
	switch e := ev.(type) {
	case model.PercentageSwing:
		return notify.ComposeSwing(e, d.threshold, d.swingRecipient), true
	case model.TargetHit:
		return notify.ComposeTargetHit(e), true
	default:
		return notify.Message{}, false
	}
}

// Dispatch sends one message per event and waits for all sends. A failed or
// panicking send is logged and counted; it never affects its siblings.
func (d *Dispatcher) Dispatch(ctx context.Context, events []model.AlertEvent) DispatchResult {
	if len(events) == 0 {
		return DispatchResult{}
	}

	var sent, failed atomic.Int64
	var wg conc.WaitGroup
	for _, ev := range events {
		msg, ok := d.Compose(ev)
		if !ok {
			d.logger.Warn("unknown alert event", zap.String("kind", string(ev.Kind())))
			failed.Add(1)
			continue
		}
		kind := ev.Kind()
		wg.Go(func() {
			if err := d.send(ctx, msg); err != nil {
				d.logger.Error("send notification failed", zap.String("kind", string(kind)), zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.Error(err))
				d.metrics.notification(kind, false)
				failed.Add(1)
				return
			}
			d.metrics.notification(kind, true)
			sent.Add(1)
		})
	}
	wg.Wait()

	return DispatchResult{Sent: int(sent.Load()), Failed: int(failed.Load())}
}

func (d *Dispatcher) send(ctx context.Context, msg notify.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return d.sender.Send(ctx, msg)
}
