package constants

const (
	// PersonToUpdate resolves an alias set to the single best person record.
	// Accounts are returned in the following order:
	//   1. Any account with an active membership/waiver (updated this year)
	//   2. The most recent account matching any verified email
	// Accounts that were never updated sort last. This ordering is a stopgap
	// for proper account merging; see DESIGN.md.
	PersonToUpdate = `
	SELECT t.id
	  FROM (SELECT p.id,
	               greatest(max(pm.expires), max(pw.expires)) AS last_update
	          FROM people p
	               LEFT JOIN people_memberships pm ON p.id = pm.person_id
	               LEFT JOIN people_emails      pe ON p.id = pe.person_id
	               LEFT JOIN people_waivers     pw ON p.id = pw.person_id
	         WHERE p.email = ANY($1)
	            OR pe.alternate_email = ANY($1)
	         GROUP BY p.id
	       ) t
	 ORDER BY (t.last_update > now() - interval '365 days') DESC NULLS LAST,
	          t.last_update DESC NULLS LAST
	 LIMIT 1
	`

	InsertPerson = `
	INSERT INTO people (firstname, lastname, email, date_inserted)
	VALUES ($1, $2, $3, now())
	RETURNING id
	`

	// CurrentMembershipExpiration reports the latest expiration among
	// memberships still valid at the given instant, if any.
	CurrentMembershipExpiration = `
	SELECT max(expires)
	  FROM people_memberships
	 WHERE person_id = $1
	   AND expires > $2
	`

	// MembershipExists probes by expiration, not date_inserted: memberships
	// are occasionally back-dated by hand, and the expiration a payment would
	// produce is the stable fingerprint of that payment.
	MembershipExists = `
	SELECT EXISTS(
	  SELECT 1
	    FROM people_memberships
	   WHERE person_id = $1
	     AND expires = $2
	)
	`

	InsertMembership = `
	INSERT INTO people_memberships
	       (person_id, price_paid, membership_type, date_inserted, expires)
	VALUES ($1, $2, $3, now(), $4)
	RETURNING id
	`

	// WaiverSignedOn checks for a waiver on the same calendar day.
	// date_signed is a timestamp; the time of day is ignored.
	WaiverSignedOn = `
	SELECT EXISTS(
	  SELECT 1
	    FROM people_waivers
	   WHERE person_id = $1
	     AND date(date_signed) = date($2)
	)
	`

	InsertWaiver = `
	INSERT INTO people_waivers (person_id, date_signed, expires)
	VALUES ($1, $2, $3)
	RETURNING id
	`

	UpdatePersonAffiliation = `
	UPDATE people SET affiliation = $2 WHERE id = $1
	`
)
