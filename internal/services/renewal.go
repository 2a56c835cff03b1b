package services

import "time"

// RenewalAllowedWithin is how close to the current expiration a payment
// must land to count as a renewal. Renewing inside this window banks the
// remaining days: the new membership year starts when the old one ends.
// Renewing any earlier forfeits the gap on purpose.
const RenewalAllowedWithin = 40 * 24 * time.Hour

// The club runs on US Eastern civil time; payment instants arrive in UTC.
var orgLocation = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("tzdata missing " + name + ": " + err.Error())
	}
	return loc
}

// PaidDate converts a payment instant to the club's civil calendar date
// (midnight UTC, matching how DATE columns scan).
func PaidDate(paidAt time.Time) time.Time {
	local := paidAt.In(orgLocation)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// RenewalStart returns the date a new 12-month validity window begins,
// given the current unexpired membership expiration (nil if none) and the
// payment's civil date.
func RenewalStart(priorExpiration *time.Time, paidDate time.Time) time.Time {
	if priorExpiration == nil {
		return paidDate
	}
	if priorExpiration.Sub(paidDate) < RenewalAllowedWithin {
		return *priorExpiration
	}
	return paidDate
}
