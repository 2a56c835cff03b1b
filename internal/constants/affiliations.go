package constants

// MembershipType pairs the long-form affiliation name with the annual dues
// CyberSource should have collected for it. Prices are re-derived from the
// two-letter code on every payment; the submitted amount is never trusted.
type MembershipType struct {
	Affiliation string
	Price       int
}

// MembershipTypes maps the two-letter merchant-defined affiliation code to
// its membership type. The codes are configured on the CyberSource payment
// form; the long-form names match the enum on people.affiliation.
var MembershipTypes = map[string]MembershipType{
	"MU": {"MIT undergrad", 15},
	"MG": {"MIT grad student", 15},
	"MA": {"MIT affiliate", 30},
	"ML": {"MIT alum (former student)", 40},
	"NU": {"Non-MIT undergrad", 40},
	"NG": {"Non-MIT grad student", 40},
	"NA": {"Non-affiliate", 40},
}

// KnownAffiliation reports whether name is one of the long-form affiliations.
// Waiver documents carry the long-form name (the dropdown on the DocuSign
// template enforces the set upstream).
func KnownAffiliation(name string) bool {
	for _, mt := range MembershipTypes {
		if mt.Affiliation == name {
			return true
		}
	}
	return false
}
