package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"mitoc/member/internal/models/dtos"
)

func newMembershipFixture(tx *fakeTx, trips *fakeTrips) (*MembershipService, *fakeStore, *fakeAlerter) {
	store := &fakeStore{tx: tx}
	alerter := &fakeAlerter{}
	notifier := NewNotifier(trips, alerter, nil, nil)
	return NewMembershipService(store, trips, notifier, nil), store, alerter
}

func paymentEvent() *dtos.PaymentEvent {
	return &dtos.PaymentEvent{
		Email:           "mitoc-member@example.com",
		FirstName:       "Tim",
		LastName:        "Beaver",
		Amount:          "15.00",
		AffiliationCode: "MU",
		PaidAt:          time.Date(2018, time.January, 24, 21, 48, 32, 0, time.UTC),
	}
}

func TestProcessPaymentUnknownAffiliationCode(t *testing.T) {
	trips := &fakeTrips{primary: "mitoc-member@example.com"}
	svc, store, _ := newMembershipFixture(&fakeTx{}, trips)

	event := paymentEvent()
	event.AffiliationCode = "ZZ"

	_, err := svc.ProcessPayment(context.Background(), event)
	if !errors.Is(err, ErrInvalidAffiliation) {
		t.Fatalf("Expected ErrInvalidAffiliation, got %v", err)
	}
	if trips.lookups != 0 || store.begins != 0 {
		t.Error("Rejected payments must not reach the trips API or the database")
	}
}

func TestProcessPaymentWrongAmount(t *testing.T) {
	cases := []struct {
		name   string
		code   string
		amount string
	}{
		{"overpaid student rate", "MU", "20.00"},
		{"stale affiliate price", "MA", "20.00"},
		{"unparseable amount", "MU", "fifteen"},
	}

	for _, tc := range cases {
		trips := &fakeTrips{primary: "mitoc-member@example.com"}
		svc, store, _ := newMembershipFixture(&fakeTx{}, trips)

		event := paymentEvent()
		event.AffiliationCode = tc.code
		event.Amount = tc.amount

		_, err := svc.ProcessPayment(context.Background(), event)
		if !errors.Is(err, ErrIncorrectPayment) {
			t.Fatalf("%s: expected ErrIncorrectPayment, got %v", tc.name, err)
		}
		if store.begins != 0 {
			t.Errorf("%s: rejected payment must not open a transaction", tc.name)
		}
	}
}

func TestProcessPaymentUpstreamUnavailable(t *testing.T) {
	trips := &fakeTrips{lookupErr: errors.New("connection refused")}
	tx := &fakeTx{}
	svc, store, _ := newMembershipFixture(tx, trips)

	_, err := svc.ProcessPayment(context.Background(), paymentEvent())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Expected ErrUpstreamUnavailable, got %v", err)
	}
	if store.begins != 0 {
		t.Error("No database work should happen when email verification fails")
	}
}

func TestProcessPaymentNewMember(t *testing.T) {
	trips := &fakeTrips{
		primary:   "tim@mit.edu",
		allEmails: []string{"tim@mit.edu", "mitoc-member@example.com"},
	}
	tx := &fakeTx{found: false, newPersonID: 128}
	svc, _, _ := newMembershipFixture(tx, trips)

	result, err := svc.ProcessPayment(context.Background(), paymentEvent())
	if err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}

	if result.Outcome != dtos.OutcomeCreated {
		t.Errorf("Expected outcome %q, got %q", dtos.OutcomeCreated, result.Outcome)
	}
	if result.PersonID != 128 {
		t.Errorf("Expected person 128, got %d", result.PersonID)
	}

	if len(tx.persons) != 1 {
		t.Fatalf("Expected one person created, got %d", len(tx.persons))
	}
	// New people are filed under their primary trips email, not the one
	// typed into the payment form
	if p := tx.persons[0]; p.first != "Tim" || p.last != "Beaver" || p.email != "tim@mit.edu" {
		t.Errorf("Unexpected person record %+v", p)
	}

	wantExpires := time.Date(2019, time.January, 24, 0, 0, 0, 0, time.UTC)
	if len(tx.memberships) != 1 {
		t.Fatalf("Expected one membership, got %d", len(tx.memberships))
	}
	m := tx.memberships[0]
	if m.personID != 128 || m.price != "15.00" || m.code != "MU" || !m.expires.Equal(wantExpires) {
		t.Errorf("Unexpected membership record %+v", m)
	}

	if len(tx.affiliations) != 1 || tx.affiliations[0] != "MIT undergrad" {
		t.Errorf("Expected affiliation set to MIT undergrad, got %v", tx.affiliations)
	}
	if !tx.committed {
		t.Error("Transaction was never committed")
	}

	if len(trips.updates) != 1 {
		t.Fatalf("Expected one cache notification, got %d", len(trips.updates))
	}
	u := trips.updates[0]
	if u.email != "tim@mit.edu" {
		t.Errorf("Notification sent to %q, expected the primary email", u.email)
	}
	if u.update.MembershipExpires == nil || !u.update.MembershipExpires.Equal(wantExpires) {
		t.Errorf("Notification carried membership_expires %v, expected %v", u.update.MembershipExpires, wantExpires)
	}
	if u.update.WaiverExpires != nil {
		t.Error("Membership notification must not carry waiver_expires")
	}
}

func TestProcessPaymentRenewalNearExpiry(t *testing.T) {
	// Paid on Jan 24, current membership runs through Feb 3: the new
	// year starts at the old expiry, not the payment date
	prior := time.Date(2018, time.February, 3, 0, 0, 0, 0, time.UTC)
	trips := &fakeTrips{primary: "tim@mit.edu", allEmails: []string{"tim@mit.edu"}}
	tx := &fakeTx{found: true, personID: 62, currentExpires: &prior}
	svc, _, _ := newMembershipFixture(tx, trips)

	result, err := svc.ProcessPayment(context.Background(), paymentEvent())
	if err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}

	if result.Outcome != dtos.OutcomeUpdated {
		t.Errorf("Expected outcome %q, got %q", dtos.OutcomeUpdated, result.Outcome)
	}
	if len(tx.persons) != 0 {
		t.Error("Existing member must not get a second person row")
	}

	wantExpires := time.Date(2019, time.February, 3, 0, 0, 0, 0, time.UTC)
	if len(tx.memberships) != 1 || !tx.memberships[0].expires.Equal(wantExpires) {
		t.Errorf("Expected membership through %v, got %+v", wantExpires, tx.memberships)
	}
}

func TestProcessPaymentRenewalFarFromExpiry(t *testing.T) {
	// More than 40 days of coverage left: the new window starts at the
	// payment date and the overlap is forfeit
	prior := time.Date(2018, time.June, 1, 0, 0, 0, 0, time.UTC)
	trips := &fakeTrips{primary: "tim@mit.edu", allEmails: []string{"tim@mit.edu"}}
	tx := &fakeTx{found: true, personID: 62, currentExpires: &prior}
	svc, _, _ := newMembershipFixture(tx, trips)

	result, err := svc.ProcessPayment(context.Background(), paymentEvent())
	if err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}

	wantExpires := time.Date(2019, time.January, 24, 0, 0, 0, 0, time.UTC)
	if result.Expires == nil || !result.Expires.Equal(wantExpires) {
		t.Errorf("Expected expiry %v, got %v", wantExpires, result.Expires)
	}
}

func TestProcessPaymentDuplicate(t *testing.T) {
	trips := &fakeTrips{primary: "tim@mit.edu", allEmails: []string{"tim@mit.edu"}}
	tx := &fakeTx{found: true, personID: 62, membershipExists: true}
	svc, _, _ := newMembershipFixture(tx, trips)

	result, err := svc.ProcessPayment(context.Background(), paymentEvent())
	if err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}

	if result.Outcome != dtos.OutcomeDuplicate {
		t.Errorf("Expected outcome %q, got %q", dtos.OutcomeDuplicate, result.Outcome)
	}
	if len(tx.memberships) != 0 || len(tx.affiliations) != 0 {
		t.Error("Duplicate must not write anything")
	}
	if tx.committed {
		t.Error("Duplicate must not commit")
	}
	if len(trips.updates) != 0 {
		t.Error("Duplicate must not send a cache notification")
	}

	// The duplicate check is pinned to the expiry this payment would
	// have produced
	wantExpires := time.Date(2019, time.January, 24, 0, 0, 0, 0, time.UTC)
	if !tx.membershipCheckedAt.Equal(wantExpires) {
		t.Errorf("Duplicate check ran against %v, expected %v", tx.membershipCheckedAt, wantExpires)
	}
}

func TestProcessPaymentNotifyFailureStillSucceeds(t *testing.T) {
	trips := &fakeTrips{
		primary:   "tim@mit.edu",
		allEmails: []string{"tim@mit.edu"},
		updateErr: errors.New("trips site is down"),
	}
	tx := &fakeTx{found: true, personID: 62}
	svc, _, alerter := newMembershipFixture(tx, trips)

	result, err := svc.ProcessPayment(context.Background(), paymentEvent())
	if err != nil {
		t.Fatalf("Notification failure must not fail the payment: %v", err)
	}
	if result.Outcome != dtos.OutcomeUpdated {
		t.Errorf("Expected outcome %q, got %q", dtos.OutcomeUpdated, result.Outcome)
	}
	if !tx.committed {
		t.Error("The membership write should have landed before notification")
	}
	if len(alerter.captured) != 1 {
		t.Errorf("Expected one captured exception, got %d", len(alerter.captured))
	}
}
