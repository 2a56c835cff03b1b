package dtos

import "time"

// PaymentEvent is the canonical form of a verified CyberSource payment
// notification for a membership transaction.
type PaymentEvent struct {
	// Email as entered on the payment form (merchant-defined field, NOT
	// the billing email)
	Email           string
	FirstName       string
	LastName        string
	Amount          string
	AffiliationCode string
	PaidAt          time.Time
}

// WaiverEvent is the canonical form of a completed waiver envelope.
type WaiverEvent struct {
	Email       string
	FirstName   string
	LastName    string
	Affiliation string
	SignedAt    time.Time // UTC
}

// Reconciliation outcomes. Duplicates are successful no-ops, not errors.
const (
	OutcomeCreated   = "created"   // a new person record was created
	OutcomeUpdated   = "updated"   // an existing person was extended
	OutcomeDuplicate = "duplicate" // already processed, zero writes
)

// ReconcileResult reports what the reconciliation engine did with an event.
type ReconcileResult struct {
	Outcome  string     `json:"outcome"`
	PersonID int64      `json:"person_id,omitempty"`
	Expires  *time.Time `json:"expires,omitempty"`
}
