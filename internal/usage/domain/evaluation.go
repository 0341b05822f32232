package domain

import "time"

// ZeroPolicy decides how an explicit zero threshold is treated.
type ZeroPolicy string

const (
	ZeroPolicyUnlimited ZeroPolicy = "unlimited"
	ZeroPolicyBlock     ZeroPolicy = "block"
)

type MonthlySummary struct {
	CustomerID      string    `json:"customer_id"`
	PeriodStart     time.Time `json:"period_start"`
	ProcessingBytes int64     `json:"processing_bytes"`
	StorageBytes    int64     `json:"storage_bytes"`
	TotalBytes      int64     `json:"total_bytes"`
}

type Evaluation struct {
	CustomerID      string       `json:"customer_id"`
	ProcessingBytes int64        `json:"processing_bytes"`
	Exceeded        []UsageLimit `json:"exceeded"`
	Restricted      bool         `json:"restricted"`
	Description     string       `json:"description"`
}

// StartOfMonth returns midnight UTC on the first day of now's month.
func StartOfMonth(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// IsExceeded reports whether usage breaks the limit. Unset thresholds never
// trigger; zero thresholds trigger only under ZeroPolicyBlock.
func IsExceeded(limit UsageLimit, usageBytes int64, ratePerByte float64, zero ZeroPolicy) bool {
	threshold := ResolveThreshold(limit, ratePerByte)
	switch threshold.Kind {
	case ThresholdPositive:
		return float64(usageBytes) > threshold.Bytes
	case ThresholdZero:
		return zero == ZeroPolicyBlock
	default:
		return false
	}
}

// EvaluateLimits compares the month's processing bytes with every limit and
// keeps the exceeding ones in input order.
func EvaluateLimits(customerID string, limits []UsageLimit, processingBytes int64, ratePerByte float64, zero ZeroPolicy) Evaluation {
	eval := Evaluation{
		CustomerID:      customerID,
		ProcessingBytes: processingBytes,
		Exceeded:        []UsageLimit{},
	}
	for _, limit := range limits {
		if !IsExceeded(limit, processingBytes, ratePerByte, zero) {
			continue
		}
		eval.Exceeded = append(eval.Exceeded, limit)
		if limit.ExceedAction == ExceedActionRestrict {
			eval.Restricted = true
		}
	}
	eval.Description = FormatExceedingLimits(eval.Exceeded)
	return eval
}

// NewlyExceeded returns limits exceeded in after that were not exceeded in before.
func NewlyExceeded(before, after Evaluation) []UsageLimit {
	seen := make(map[string]struct{}, len(before.Exceeded))
	for _, limit := range before.Exceeded {
		seen[limit.ID.String()] = struct{}{}
	}
	out := make([]UsageLimit, 0, len(after.Exceeded))
	for _, limit := range after.Exceeded {
		if _, ok := seen[limit.ID.String()]; ok {
			continue
		}
		out = append(out, limit)
	}
	return out
}
