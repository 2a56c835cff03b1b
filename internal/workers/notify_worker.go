package workers

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"mitoc/member/internal/alerts"
	"mitoc/member/internal/common"
	"mitoc/member/internal/logging"
	"mitoc/member/internal/metrics"
	"mitoc/member/internal/models/dtos"
	"mitoc/member/internal/providers"
)

const (
	// Deliveries are abandoned after this many attempts (the first,
	// inline attempt included).
	maxNotifyAttempts = 8

	notifyReadBlock = 5 * time.Second
)

// NotifyWorker redelivers membership-cache updates that failed their
// inline attempt. Items come off the redis stream, get retried against
// the trips API, and on failure go back on the stream with a randomized
// exponential delay.
type NotifyWorker struct {
	workerID string
	queue    *common.NotifyQueue
	trips    providers.TripsAPI
	alerter  alerts.Alerter
	metrics  *metrics.MetricsRegistry

	wg sync.WaitGroup
}

func NewNotifyWorker(workerID string, queue *common.NotifyQueue, trips providers.TripsAPI, alerter alerts.Alerter, reg *metrics.MetricsRegistry) *NotifyWorker {
	return &NotifyWorker{
		workerID: workerID,
		queue:    queue,
		trips:    trips,
		alerter:  alerter,
		metrics:  reg,
	}
}

// Start consumes the retry stream until ctx is cancelled.
func (w *NotifyWorker) Start(ctx context.Context) error {
	if err := w.queue.CreateConsumerGroup(ctx); err != nil {
		return err
	}
	logging.Info("Notify retry worker started", "worker_id", w.workerID)

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			logging.Info("Notify retry worker stopped", "worker_id", w.workerID)
			return nil
		default:
			messageID, item, err := w.queue.Read(ctx, w.workerID, notifyReadBlock)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				logging.Error("Failed to read from notify stream", "error", err.Error())
				time.Sleep(time.Second)
				continue
			}
			if item == nil {
				continue
			}

			w.process(ctx, messageID, item)
		}
	}
}

func (w *NotifyWorker) process(ctx context.Context, messageID string, item *common.NotifyQueueItem) {
	update := dtos.MembershipUpdate{
		MembershipExpires: item.MembershipExpires,
		WaiverExpires:     item.WaiverExpires,
	}

	err := w.trips.UpdateMembership(ctx, item.Email, update)
	if err == nil {
		logging.Info("Queued notification delivered",
			"email", item.Email,
			"attempts", item.Attempts+1,
		)
		w.ack(ctx, messageID)
		return
	}

	if item.Attempts+1 >= maxNotifyAttempts {
		logging.Error("Giving up on membership-cache notification",
			"email", item.Email,
			"attempts", item.Attempts+1,
			"error", err.Error(),
		)
		if w.metrics != nil {
			w.metrics.NotificationFailuresTotal.Inc()
		}
		w.alerter.CaptureException(err, map[string]string{
			"call":  "update_membership",
			"phase": "retry_exhausted",
		})
		w.ack(ctx, messageID)
		return
	}

	delay := retryDelay(item.Attempts)
	logging.Warn("Notification retry failed, rescheduling",
		"email", item.Email,
		"attempts", item.Attempts+1,
		"delay", delay.String(),
	)
	w.ack(ctx, messageID)
	w.requeueAfter(ctx, item, delay)
}

// requeueAfter puts the item back on the stream once the backoff delay
// has passed, without blocking the consume loop.
func (w *NotifyWorker) requeueAfter(ctx context.Context, item *common.NotifyQueueItem, delay time.Duration) {
	next := &common.NotifyQueueItem{
		Email:             item.Email,
		MembershipExpires: item.MembershipExpires,
		WaiverExpires:     item.WaiverExpires,
		Attempts:          item.Attempts + 1,
	}

	w.wg.Add(1)
	timer := time.NewTimer(delay)
	go func() {
		defer w.wg.Done()
		defer timer.Stop()
		select {
		case <-ctx.Done():
			// Push it back immediately so the item survives shutdown
		case <-timer.C:
		}
		if err := w.queue.Enqueue(context.WithoutCancel(ctx), next); err != nil {
			logging.Error("Failed to requeue notification",
				"email", next.Email,
				"error", err.Error(),
			)
		}
	}()
}

func (w *NotifyWorker) ack(ctx context.Context, messageID string) {
	if err := w.queue.Ack(context.WithoutCancel(ctx), messageID); err != nil {
		logging.Error("Failed to ack notify message", "message_id", messageID, "error", err.Error())
	}
}

// retryDelay grows steeply with the attempt count: a uniform base in
// [3, 5) raised to the number of attempts, in seconds. Attempt one
// lands a few seconds out, attempt seven several hours.
func retryDelay(attempts int) time.Duration {
	base := 3 + rand.Float64()*2
	return time.Duration(math.Pow(base, float64(attempts))) * time.Second
}
