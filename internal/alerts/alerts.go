// Package alerts routes operational exceptions to an error tracker. The
// tracker is optional: when no DSN is configured the service runs with a
// no-op implementation rather than a nullable global.
package alerts

import (
	"time"

	"github.com/getsentry/sentry-go"

	"mitoc/member/internal/logging"
)

// Alerter captures exceptions that should page a human but must not fail
// the request that produced them (e.g. the membership-cache notification).
type Alerter interface {
	CaptureException(err error, tags map[string]string)
}

// Ensure both implementations satisfy Alerter
var (
	_ Alerter = (*SentryAlerter)(nil)
	_ Alerter = (*NoopAlerter)(nil)
)

// SentryAlerter reports exceptions to Sentry.
type SentryAlerter struct{}

// NewSentry initializes the Sentry SDK and returns an Alerter backed by it.
func NewSentry(dsn, environment string) (*SentryAlerter, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		return nil, err
	}
	return &SentryAlerter{}, nil
}

func (a *SentryAlerter) CaptureException(err error, tags map[string]string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

// Flush drains queued events before shutdown.
func (a *SentryAlerter) Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// NoopAlerter logs the exception and otherwise does nothing. Used when no
// tracker DSN is configured.
type NoopAlerter struct{}

func (a *NoopAlerter) CaptureException(err error, tags map[string]string) {
	logging.Warn("Exception captured without alerting backend",
		"error", err.Error(),
		"tags", tags,
	)
}
