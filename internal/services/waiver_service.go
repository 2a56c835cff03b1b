package services

import (
	"context"
	"fmt"

	"mitoc/member/internal/db/repositories"
	"mitoc/member/internal/logging"
	"mitoc/member/internal/metrics"
	"mitoc/member/internal/models/dtos"
	"mitoc/member/internal/providers"
)

// WaiverService reconciles completed waiver envelopes: one waiver per
// person per calendar day, valid for a year from signing.
type WaiverService struct {
	store    repositories.Store
	trips    providers.TripsAPI
	notifier *Notifier
	metrics  *metrics.MetricsRegistry
}

func NewWaiverService(store repositories.Store, trips providers.TripsAPI, notifier *Notifier, reg *metrics.MetricsRegistry) *WaiverService {
	return &WaiverService{store: store, trips: trips, notifier: notifier, metrics: reg}
}

// ProcessWaiver records one completed waiver. Re-signing on the same
// calendar day is suppressed as a duplicate.
func (s *WaiverService) ProcessWaiver(ctx context.Context, event *dtos.WaiverEvent) (*dtos.ReconcileResult, error) {
	primary, allEmails, err := s.trips.VerifiedEmails(ctx, event.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	personID, found, err := tx.PersonToUpdate(ctx, allEmails)
	if err != nil {
		return nil, err
	}

	if found {
		duplicate, err := tx.AlreadyAddedWaiver(ctx, personID, event.SignedAt)
		if err != nil {
			return nil, err
		}
		if duplicate {
			s.count(metrics.OutcomeDuplicate)
			logging.Info("Waiver already recorded for this day", "person_id", personID)
			return &dtos.ReconcileResult{Outcome: dtos.OutcomeDuplicate, PersonID: personID}, nil
		}
	}

	outcome := dtos.OutcomeUpdated
	if !found {
		personID, err = tx.AddPerson(ctx, event.FirstName, event.LastName, primary)
		if err != nil {
			return nil, err
		}
		outcome = dtos.OutcomeCreated
	}

	expires := event.SignedAt.AddDate(1, 0, 0)
	if _, err := tx.AddWaiver(ctx, personID, event.SignedAt, expires); err != nil {
		return nil, err
	}
	if err := tx.UpdateAffiliation(ctx, personID, event.Affiliation); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.count(outcome)
	logging.Info("Waiver processed",
		"person_id", personID,
		"outcome", outcome,
		"expires", expires.Format("2006-01-02"),
	)

	s.notifier.Notify(ctx, primary, dtos.MembershipUpdate{WaiverExpires: &expires})

	return &dtos.ReconcileResult{Outcome: outcome, PersonID: personID, Expires: &expires}, nil
}

func (s *WaiverService) count(outcome string) {
	if s.metrics != nil {
		s.metrics.WaiversProcessedTotal.WithLabelValues(outcome).Inc()
	}
}
