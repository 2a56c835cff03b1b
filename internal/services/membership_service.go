package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"mitoc/member/internal/constants"
	"mitoc/member/internal/db/repositories"
	"mitoc/member/internal/logging"
	"mitoc/member/internal/metrics"
	"mitoc/member/internal/models/dtos"
	"mitoc/member/internal/providers"
)

// MembershipService reconciles verified payment notifications against the
// records store: it resolves which person paid, suppresses replays, and
// opens a new 12-month validity window.
type MembershipService struct {
	store    repositories.Store
	trips    providers.TripsAPI
	notifier *Notifier
	metrics  *metrics.MetricsRegistry
}

func NewMembershipService(store repositories.Store, trips providers.TripsAPI, notifier *Notifier, reg *metrics.MetricsRegistry) *MembershipService {
	return &MembershipService{store: store, trips: trips, notifier: notifier, metrics: reg}
}

// ProcessPayment handles one verified membership payment. Validation runs
// before any database work; all writes happen in one transaction; the
// membership-cache notification afterwards is best-effort.
func (s *MembershipService) ProcessPayment(ctx context.Context, event *dtos.PaymentEvent) (*dtos.ReconcileResult, error) {
	mt, ok := constants.MembershipTypes[event.AffiliationCode]
	if !ok {
		s.count(metrics.OutcomeRejected)
		return nil, fmt.Errorf("%w: unknown code %q", ErrInvalidAffiliation, event.AffiliationCode)
	}

	// Re-derive the price from the code. The amount field came from a
	// client-submitted form and cannot be trusted on its own.
	amount, err := strconv.ParseFloat(event.Amount, 64)
	if err != nil || amount != float64(mt.Price) {
		s.count(metrics.OutcomeRejected)
		logging.Warn("Payment amount mismatch",
			"code", event.AffiliationCode,
			"amount", event.Amount,
			"expected", mt.Price,
		)
		return nil, fmt.Errorf("%w: paid %s for %s (expected %d)",
			ErrIncorrectPayment, event.Amount, event.AffiliationCode, mt.Price)
	}

	// From the given email, ask the trips site for all their verified
	// emails. This call failing fails the whole operation.
	primary, allEmails, err := s.trips.VerifiedEmails(ctx, event.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	paidDate := PaidDate(event.PaidAt)

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	personID, found, err := tx.PersonToUpdate(ctx, allEmails)
	if err != nil {
		return nil, err
	}

	var prior *time.Time
	if found {
		prior, err = tx.CurrentMembershipExpiration(ctx, personID, paidDate)
		if err != nil {
			return nil, err
		}
	}

	start := RenewalStart(prior, paidDate)
	expires := start.AddDate(1, 0, 0)

	if found {
		duplicate, err := tx.MembershipExists(ctx, personID, expires)
		if err != nil {
			return nil, err
		}
		if duplicate {
			// Most likely already processed
			s.count(metrics.OutcomeDuplicate)
			logging.Info("Membership already inserted",
				"person_id", personID,
				"expires", expires.Format("2006-01-02"),
			)
			return &dtos.ReconcileResult{Outcome: dtos.OutcomeDuplicate, PersonID: personID}, nil
		}
	}

	outcome := dtos.OutcomeUpdated
	if !found {
		// New to the club: create the person under the primary email
		personID, err = tx.AddPerson(ctx, event.FirstName, event.LastName, primary)
		if err != nil {
			return nil, err
		}
		outcome = dtos.OutcomeCreated
	}

	if _, err := tx.AddMembership(ctx, personID, event.Amount, event.AffiliationCode, expires); err != nil {
		return nil, err
	}
	if err := tx.UpdateAffiliation(ctx, personID, mt.Affiliation); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.count(outcome)
	logging.Info("Membership processed",
		"person_id", personID,
		"outcome", outcome,
		"code", event.AffiliationCode,
		"expires", expires.Format("2006-01-02"),
	)

	s.notifier.Notify(ctx, primary, dtos.MembershipUpdate{MembershipExpires: &expires})

	return &dtos.ReconcileResult{Outcome: outcome, PersonID: personID, Expires: &expires}, nil
}

func (s *MembershipService) count(outcome string) {
	if s.metrics != nil {
		s.metrics.MembershipsProcessedTotal.WithLabelValues(outcome).Inc()
	}
}
