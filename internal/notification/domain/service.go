// Package domain defines the billing notification contract.
package domain

import (
	"context"
	"time"

	customerdomain "github.com/smallbiznis/orbit/internal/customer/domain"
)

type Service interface {
	// RunDailyBatch emails an invoice summary to every customer whose
	// billing day and frequency match the given date. Send failures are
	// logged and never abort the batch.
	RunDailyBatch(ctx context.Context, now time.Time) error
}

// MatchesFrequency reports whether a customer with the given billing day and
// frequency should be notified on date. Quarterly billing lands on the first
// month of each quarter, yearly billing in January.
func MatchesFrequency(billingDay int, frequency customerdomain.BillingFrequency, date time.Time) bool {
	if date.Day() != billingDay {
		return false
	}
	switch frequency {
	case customerdomain.FrequencyMonthly:
		return true
	case customerdomain.FrequencyQuarterly:
		switch date.Month() {
		case time.January, time.April, time.July, time.October:
			return true
		}
		return false
	case customerdomain.FrequencyYearly:
		return date.Month() == time.January
	default:
		return false
	}
}
