package services

import (
	"context"
	"time"

	"mitoc/member/internal/db/repositories"
	"mitoc/member/internal/models/dtos"
)

// In-memory fakes for the store and the trips API, in place of Postgres
// and the live trips site.

type addedPerson struct {
	first, last, email string
}

type addedMembership struct {
	personID       int64
	price, code    string
	expires        time.Time
}

type addedWaiver struct {
	personID          int64
	signedAt, expires time.Time
}

type fakeTx struct {
	// Configured state
	personID         int64
	found            bool
	currentExpires   *time.Time
	membershipExists bool
	waiverExists     bool
	newPersonID      int64

	// Recorded writes
	persons      []addedPerson
	memberships  []addedMembership
	waivers      []addedWaiver
	affiliations []string
	committed    bool
	rolledBack   bool

	// Recorded check arguments
	personLookupEmails  []string
	membershipCheckedAt time.Time
	waiverCheckedAt     time.Time
}

func (t *fakeTx) PersonToUpdate(ctx context.Context, allEmails []string) (int64, bool, error) {
	t.personLookupEmails = allEmails
	return t.personID, t.found, nil
}

func (t *fakeTx) CurrentMembershipExpiration(ctx context.Context, personID int64, at time.Time) (*time.Time, error) {
	return t.currentExpires, nil
}

func (t *fakeTx) MembershipExists(ctx context.Context, personID int64, expires time.Time) (bool, error) {
	t.membershipCheckedAt = expires
	return t.membershipExists, nil
}

func (t *fakeTx) AlreadyAddedWaiver(ctx context.Context, personID int64, signedAt time.Time) (bool, error) {
	t.waiverCheckedAt = signedAt
	return t.waiverExists, nil
}

func (t *fakeTx) AddPerson(ctx context.Context, first, last, email string) (int64, error) {
	t.persons = append(t.persons, addedPerson{first, last, email})
	return t.newPersonID, nil
}

func (t *fakeTx) AddMembership(ctx context.Context, personID int64, pricePaid, membershipCode string, expires time.Time) (int64, error) {
	t.memberships = append(t.memberships, addedMembership{personID, pricePaid, membershipCode, expires})
	return int64(len(t.memberships)), nil
}

func (t *fakeTx) AddWaiver(ctx context.Context, personID int64, signedAt, expires time.Time) (int64, error) {
	t.waivers = append(t.waivers, addedWaiver{personID, signedAt, expires})
	return int64(len(t.waivers)), nil
}

func (t *fakeTx) UpdateAffiliation(ctx context.Context, personID int64, affiliation string) error {
	t.affiliations = append(t.affiliations, affiliation)
	return nil
}

func (t *fakeTx) Commit() error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback() error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeStore struct {
	tx     *fakeTx
	begins int
}

func (s *fakeStore) Begin(ctx context.Context) (repositories.Tx, error) {
	s.begins++
	return s.tx, nil
}

type sentUpdate struct {
	email  string
	update dtos.MembershipUpdate
}

type fakeTrips struct {
	primary   string
	allEmails []string
	lookupErr error

	lookups   int
	updates   []sentUpdate
	updateErr error
}

func (f *fakeTrips) VerifiedEmails(ctx context.Context, email string) (string, []string, error) {
	f.lookups++
	if f.lookupErr != nil {
		return "", nil, f.lookupErr
	}
	return f.primary, f.allEmails, nil
}

func (f *fakeTrips) UpdateMembership(ctx context.Context, email string, update dtos.MembershipUpdate) error {
	f.updates = append(f.updates, sentUpdate{email, update})
	return f.updateErr
}

type fakeAlerter struct {
	captured []error
}

func (a *fakeAlerter) CaptureException(err error, tags map[string]string) {
	a.captured = append(a.captured, err)
}
