package eligibility

import (
	"fmt"
	"strings"
	"time"
)

// MinIntervalDays is the minimum gap between whole blood donations.
const MinIntervalDays = 56

// Result is the outcome of an eligibility check.
type Result struct {
	Eligible      bool   `json:"eligible"`
	Reason        string `json:"reason"`
	DaysSinceLast *int   `json:"days_since_last_donation,omitempty"`
}

// Evaluate checks whether a donor may donate given their last donation
// date. An empty date means no donation on record. Malformed dates fail
// closed: the donor is reported ineligible with a diagnostic reason.
func Evaluate(lastDonationDate string) Result {
	return evaluateAt(lastDonationDate, time.Now())
}

func evaluateAt(lastDonationDate string, now time.Time) Result {
	if lastDonationDate == "" {
		return Result{
			Eligible: true,
			Reason:   "No previous donation recorded",
		}
	}

	last, err := parseDonationDate(lastDonationDate)
	if err != nil {
		return Result{
			Eligible: false,
			Reason:   fmt.Sprintf("Could not parse last donation date %q: %v", lastDonationDate, err),
		}
	}

	daysSince := int(now.Sub(last).Hours() / 24)

	if daysSince >= MinIntervalDays {
		return Result{
			Eligible:      true,
			Reason:        fmt.Sprintf("Last donation was %d days ago", daysSince),
			DaysSinceLast: &daysSince,
		}
	}

	remaining := MinIntervalDays - daysSince
	return Result{
		Eligible:      false,
		Reason:        fmt.Sprintf("Must wait %d more days (last donation was %d days ago)", remaining, daysSince),
		DaysSinceLast: &daysSince,
	}
}

// parseDonationDate accepts RFC 3339 timestamps (with Z or a numeric
// offset) and bare calendar dates.
func parseDonationDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	// ISO timestamps without a zone are treated as UTC.
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}
