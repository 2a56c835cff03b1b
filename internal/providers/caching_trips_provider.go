package providers

import (
	"context"
	"time"

	"mitoc/member/internal/common"
	"mitoc/member/internal/metrics"
	"mitoc/member/internal/models/dtos"
)

type aliasSet struct {
	primary string
	emails  []string
}

// CachingTripsAPI memoizes VerifiedEmails answers for a short TTL.
// Notifications pass straight through.
type CachingTripsAPI struct {
	inner   TripsAPI
	cache   *common.CacheService
	ttl     time.Duration
	metrics *metrics.MetricsRegistry
}

var _ TripsAPI = (*CachingTripsAPI)(nil)

func NewCachingTripsAPI(inner TripsAPI, cache *common.CacheService, ttl time.Duration, reg *metrics.MetricsRegistry) *CachingTripsAPI {
	return &CachingTripsAPI{inner: inner, cache: cache, ttl: ttl, metrics: reg}
}

func (c *CachingTripsAPI) VerifiedEmails(ctx context.Context, email string) (string, []string, error) {
	key := "verified_emails:" + email

	if cached, found := c.cache.Get(key); found {
		set := cached.(aliasSet)
		c.count("hit")
		return set.primary, set.emails, nil
	}

	primary, emails, err := c.inner.VerifiedEmails(ctx, email)
	if err != nil {
		c.count("error")
		return "", nil, err
	}

	c.cache.Set(key, aliasSet{primary: primary, emails: emails}, c.ttl)
	c.count("miss")
	return primary, emails, nil
}

func (c *CachingTripsAPI) UpdateMembership(ctx context.Context, email string, update dtos.MembershipUpdate) error {
	return c.inner.UpdateMembership(ctx, email, update)
}

func (c *CachingTripsAPI) count(result string) {
	if c.metrics != nil {
		c.metrics.VerifiedEmailLookupsTotal.WithLabelValues(result).Inc()
	}
}
