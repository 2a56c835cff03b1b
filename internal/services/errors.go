package services

import "errors"

// Reconciliation failures that must reject the request before any write.
var (
	// ErrInvalidAffiliation: the two-letter affiliation code is not in the
	// membership table.
	ErrInvalidAffiliation = errors.New("invalid affiliation")

	// ErrIncorrectPayment: the amount paid does not match what the
	// affiliation code demands. Logged as a potential fraud signal.
	ErrIncorrectPayment = errors.New("incorrect payment")

	// ErrUpstreamUnavailable: the verified-emails lookup failed. The whole
	// operation fails; nothing was written.
	ErrUpstreamUnavailable = errors.New("identity provider unavailable")
)
