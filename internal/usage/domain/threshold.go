package domain

import (
	"strconv"
	"strings"
)

// NoThresholdPlaceholder renders limits that carry neither a volume nor an amount.
const NoThresholdPlaceholder = "N/A"

var unitMultipliers = map[Unit]float64{
	UnitKB: 1024,
	UnitMB: 1024 * 1024,
	UnitGB: 1024 * 1024 * 1024,
	UnitTB: 1024 * 1024 * 1024 * 1024,
}

// UnitMultiplier returns the number of bytes in one unit.
func UnitMultiplier(u Unit) (float64, bool) {
	m, ok := unitMultipliers[u]
	return m, ok
}

func (u Unit) Valid() bool {
	_, ok := unitMultipliers[u]
	return ok
}

func (a ExceedAction) Valid() bool {
	return a == ExceedActionNotify || a == ExceedActionRestrict
}

func (t UsageType) Valid() bool {
	return t == UsageTypeProcessing || t == UsageTypeStorage
}

type ThresholdKind int

const (
	ThresholdUnset ThresholdKind = iota
	ThresholdZero
	ThresholdPositive
)

func (k ThresholdKind) String() string {
	switch k {
	case ThresholdZero:
		return "zero"
	case ThresholdPositive:
		return "positive"
	default:
		return "unset"
	}
}

type ThresholdSource string

const (
	ThresholdSourceNone   ThresholdSource = ""
	ThresholdSourceVolume ThresholdSource = "volume"
	ThresholdSourceAmount ThresholdSource = "amount"
)

// Threshold is a limit resolved to bytes. Bytes is meaningful only when Kind
// is ThresholdPositive.
type Threshold struct {
	Kind   ThresholdKind
	Source ThresholdSource
	Bytes  float64
}

// ResolveThreshold distinguishes an unset limit from an explicit zero. Volume
// fields win over the currency amount when both are present.
func ResolveThreshold(limit UsageLimit, ratePerByte float64) Threshold {
	if limit.UsageLimitValue != nil && limit.UsageUnit != nil {
		multiplier, ok := UnitMultiplier(*limit.UsageUnit)
		if ok {
			value := *limit.UsageLimitValue
			if value <= 0 {
				return Threshold{Kind: ThresholdZero, Source: ThresholdSourceVolume}
			}
			return Threshold{Kind: ThresholdPositive, Source: ThresholdSourceVolume, Bytes: value * multiplier}
		}
	}
	if limit.AmountLimitValue != nil && ratePerByte > 0 {
		amount := *limit.AmountLimitValue
		if amount <= 0 {
			return Threshold{Kind: ThresholdZero, Source: ThresholdSourceAmount}
		}
		return Threshold{Kind: ThresholdPositive, Source: ThresholdSourceAmount, Bytes: amount / ratePerByte}
	}
	return Threshold{Kind: ThresholdUnset}
}

// ConvertLimitToBytes keeps the legacy contract: a zero value in either field
// reads as absent, and ok is false when no threshold could be derived.
func ConvertLimitToBytes(limit UsageLimit, ratePerByte float64) (float64, bool) {
	if limit.UsageLimitValue != nil && *limit.UsageLimitValue != 0 && limit.UsageUnit != nil {
		if multiplier, ok := UnitMultiplier(*limit.UsageUnit); ok {
			return *limit.UsageLimitValue * multiplier, true
		}
	}
	if limit.AmountLimitValue != nil && *limit.AmountLimitValue != 0 && ratePerByte > 0 {
		return *limit.AmountLimitValue / ratePerByte, true
	}
	return 0, false
}

// FormatExceedingLimits renders limits in input order as "100 MB, $50".
func FormatExceedingLimits(limits []UsageLimit) string {
	parts := make([]string, 0, len(limits))
	for _, limit := range limits {
		parts = append(parts, FormatLimit(limit))
	}
	return strings.Join(parts, ", ")
}

func FormatLimit(limit UsageLimit) string {
	if limit.UsageLimitValue != nil && *limit.UsageLimitValue != 0 && limit.UsageUnit != nil && *limit.UsageUnit != "" {
		return formatNumber(*limit.UsageLimitValue) + " " + string(*limit.UsageUnit)
	}
	if limit.AmountLimitValue != nil && *limit.AmountLimitValue != 0 {
		return "$" + formatNumber(*limit.AmountLimitValue)
	}
	return NoThresholdPlaceholder
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
