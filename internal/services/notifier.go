package services

import (
	"context"

	"mitoc/member/internal/alerts"
	"mitoc/member/internal/common"
	"mitoc/member/internal/logging"
	"mitoc/member/internal/metrics"
	"mitoc/member/internal/models/dtos"
	"mitoc/member/internal/providers"
)

// Notifier delivers membership-cache updates to the trips site. The local
// database is authoritative and the cache self-heals on its next poll, so
// a failed delivery alerts a human and (when redis is configured) queues
// the update for redelivery rather than failing the originating request.
type Notifier struct {
	trips   providers.TripsAPI
	alerter alerts.Alerter
	queue   *common.NotifyQueue // nil when the retry queue is disabled
	metrics *metrics.MetricsRegistry
}

func NewNotifier(trips providers.TripsAPI, alerter alerts.Alerter, queue *common.NotifyQueue, reg *metrics.MetricsRegistry) *Notifier {
	return &Notifier{trips: trips, alerter: alerter, queue: queue, metrics: reg}
}

// Notify attempts delivery once, best-effort.
func (n *Notifier) Notify(ctx context.Context, email string, update dtos.MembershipUpdate) {
	err := n.trips.UpdateMembership(ctx, email, update)
	if err == nil {
		return
	}

	logging.Error("Membership-cache notification failed",
		"email", email,
		"error", err.Error(),
	)
	if n.metrics != nil {
		n.metrics.NotificationFailuresTotal.Inc()
	}
	n.alerter.CaptureException(err, map[string]string{"call": "update_membership"})

	if n.queue == nil {
		return
	}
	item := &common.NotifyQueueItem{
		Email:             email,
		MembershipExpires: update.MembershipExpires,
		WaiverExpires:     update.WaiverExpires,
		Attempts:          1,
	}
	if qerr := n.queue.Enqueue(ctx, item); qerr != nil {
		logging.Error("Failed to queue notification for retry",
			"email", email,
			"error", qerr.Error(),
		)
	}
}
