package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"mitoc/member/internal/constants"
)

// Store opens transactions against the membership records store. All
// mutations for one inbound event run inside a single transaction; the
// duplicate checks run inside it too, so check-then-insert at least sees
// read-committed state.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one reconciliation transaction. Commit is the final step of the
// happy path; any earlier exit rolls back.
type Tx interface {
	// PersonToUpdate resolves an alias set to the best-matching person id.
	PersonToUpdate(ctx context.Context, allEmails []string) (int64, bool, error)
	// CurrentMembershipExpiration returns the latest expiration among
	// memberships unexpired at the given instant, or nil.
	CurrentMembershipExpiration(ctx context.Context, personID int64, at time.Time) (*time.Time, error)
	// MembershipExists reports whether a membership with exactly this
	// expiration was already inserted for the person.
	MembershipExists(ctx context.Context, personID int64, expires time.Time) (bool, error)
	// AlreadyAddedWaiver reports whether the person signed a waiver on the
	// same calendar day (time of day ignored).
	AlreadyAddedWaiver(ctx context.Context, personID int64, signedAt time.Time) (bool, error)

	AddPerson(ctx context.Context, first, last, email string) (int64, error)
	AddMembership(ctx context.Context, personID int64, pricePaid, membershipCode string, expires time.Time) (int64, error)
	AddWaiver(ctx context.Context, personID int64, signedAt, expires time.Time) (int64, error)
	UpdateAffiliation(ctx context.Context, personID int64, affiliation string) error

	Commit() error
	Rollback() error
}

// MemberRepository is the sqlx/Postgres implementation of Store.
type MemberRepository struct {
	db *sqlx.DB
}

var _ Store = (*MemberRepository)(nil)

func NewMemberRepository(db *sqlx.DB) *MemberRepository {
	return &MemberRepository{db}
}

func (r *MemberRepository) Begin(ctx context.Context) (Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &memberTx{tx: tx}, nil
}

type memberTx struct {
	tx *sqlx.Tx
}

func (t *memberTx) PersonToUpdate(ctx context.Context, allEmails []string) (int64, bool, error) {
	var id int64
	err := t.tx.QueryRowxContext(ctx, constants.PersonToUpdate, pq.Array(allEmails)).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (t *memberTx) CurrentMembershipExpiration(ctx context.Context, personID int64, at time.Time) (*time.Time, error) {
	var expires sql.NullTime
	err := t.tx.QueryRowxContext(ctx, constants.CurrentMembershipExpiration, personID, at).Scan(&expires)
	if err != nil {
		return nil, err
	}
	if !expires.Valid {
		return nil, nil
	}
	return &expires.Time, nil
}

func (t *memberTx) MembershipExists(ctx context.Context, personID int64, expires time.Time) (bool, error) {
	var exists bool
	err := t.tx.QueryRowxContext(ctx, constants.MembershipExists, personID, expires).Scan(&exists)
	return exists, err
}

func (t *memberTx) AlreadyAddedWaiver(ctx context.Context, personID int64, signedAt time.Time) (bool, error) {
	var exists bool
	err := t.tx.QueryRowxContext(ctx, constants.WaiverSignedOn, personID, signedAt).Scan(&exists)
	return exists, err
}

func (t *memberTx) AddPerson(ctx context.Context, first, last, email string) (int64, error) {
	var id int64
	err := t.tx.QueryRowxContext(ctx, constants.InsertPerson, first, last, email).Scan(&id)
	return id, err
}

func (t *memberTx) AddMembership(ctx context.Context, personID int64, pricePaid, membershipCode string, expires time.Time) (int64, error) {
	var id int64
	err := t.tx.QueryRowxContext(ctx, constants.InsertMembership,
		personID, pricePaid, membershipCode, expires).Scan(&id)
	return id, err
}

func (t *memberTx) AddWaiver(ctx context.Context, personID int64, signedAt, expires time.Time) (int64, error) {
	var id int64
	err := t.tx.QueryRowxContext(ctx, constants.InsertWaiver, personID, signedAt, expires).Scan(&id)
	return id, err
}

func (t *memberTx) UpdateAffiliation(ctx context.Context, personID int64, affiliation string) error {
	_, err := t.tx.ExecContext(ctx, constants.UpdatePersonAffiliation, personID, affiliation)
	return err
}

func (t *memberTx) Commit() error {
	return t.tx.Commit()
}

func (t *memberTx) Rollback() error {
	return t.tx.Rollback()
}
