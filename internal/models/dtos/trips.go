package dtos

import "time"

// VerifiedEmailsResponse is the trips API's answer to an alias lookup.
type VerifiedEmailsResponse struct {
	Primary string   `json:"primary"`
	Emails  []string `json:"emails"`
}

// MembershipUpdate notifies the trips membership cache of a new expiration.
// Dates serialize as ISO YYYY-MM-DD; at most one of the two is set per call.
type MembershipUpdate struct {
	MembershipExpires *time.Time
	WaiverExpires     *time.Time
}
