package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

// AccountIDValidator decides whether a raw account identifier is usable.
// Rows failing validation are dropped from the load, never inserted with a
// placeholder id.
type AccountIDValidator interface {
	Validate(id string) error
}

// SalesforceIDValidator enforces the CRM id shape: 15-18 alphanumeric
// characters, with a heuristic reject for cells that obviously hold
// descriptive prose instead of an id.
type SalesforceIDValidator struct{}

var salesforceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{15,18}$`)

// proseMarkers are substrings that show up when an upstream export shifts
// columns and free text lands in the id cell.
var proseMarkers = []string{"teaching", "assistance", "consulting", "billed"}

// Validate implements AccountIDValidator.
func (SalesforceIDValidator) Validate(id string) error {
	if id == "" {
		return fmt.Errorf("account id missing")
	}
	if len(id) > 100 {
		return fmt.Errorf("account id exceeds 100 characters")
	}
	lower := strings.ToLower(id)
	for _, marker := range proseMarkers {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("account id contains prose marker %q", marker)
		}
	}
	if strings.Contains(id, " ") {
		return fmt.Errorf("account id contains spaces")
	}
	if !salesforceIDPattern.MatchString(id) {
		return fmt.Errorf("account id %q is not a valid CRM id", id)
	}
	return nil
}

// nameProseKeywords flag account names that are really action context or
// play descriptions leaked into the wrong column.
var nameProseKeywords = []string{
	"build", "develop", "implement", "provide", "schedule", "create",
	"review", "analyze", "teaching", "assistance", "consulting",
	"offering", "enablement", "billed", "non-billed", "hours-based",
}

// accountNameOverrides maps known corrupted rows to their correct display
// names, as a last resort before the generic fallback.
var accountNameOverrides = map[string]string{
	"0013000000DXZ1fAAH": "Falvey Insurance Group Ltd",
	"00138000016Nd5jAAC": "Brigham Young University-Hawaii",
	"00138000017icJoAAI": "Eye Five Inc.",
}

// correctAccountName returns a usable display name and whether a correction
// was applied.
func correctAccountName(accountID, rawName string) (string, bool) {
	if rawName != "" && len(rawName) <= 100 && !nameLooksLikeProse(rawName) {
		return rawName, false
	}
	if fixed, ok := accountNameOverrides[accountID]; ok {
		return fixed, true
	}
	short := accountID
	if len(short) > 15 {
		short = short[:15]
	}
	return "Account " + short, true
}

func nameLooksLikeProse(name string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range nameProseKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
