package domain

import "time"

const periodLayout = "2006-01"

// ValidatePeriod checks a "YYYY-MM" billing period.
func ValidatePeriod(period string) error {
	if len(period) != len(periodLayout) {
		return Validationf("periodo must use the YYYY-MM format, got %q", period)
	}
	if _, err := time.Parse(periodLayout, period); err != nil {
		return Validationf("periodo must use the YYYY-MM format, got %q", period)
	}
	return nil
}

// PeriodOf returns the "YYYY-MM" period containing t.
func PeriodOf(t time.Time) string {
	return t.Format(periodLayout)
}
