package shipping

import "strings"

// Submission method tokens accepted at checkout.
const (
	MethodPost    = "post"
	MethodCourier = "courier"
)

// Calculator maps gross basket weight to a shipping fee. Rates come from
// configuration, not hardcoded constants; defaults are 7 per gram with a
// 70000 base fee.
type Calculator struct {
	PerGramRate int64
	BaseFee     int64
}

// Cost computes the fee for the given weight in grams. The calculator prices
// any submission method it is given; method eligibility is the caller's
// responsibility.
func (c Calculator) Cost(totalWeightGrams int64) int64 {
	if totalWeightGrams < 0 {
		totalWeightGrams = 0
	}
	return totalWeightGrams*c.PerGramRate + c.BaseFee
}

// KnownMethod reports whether the token is a recognised submission method.
func KnownMethod(method string) bool {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case MethodPost, MethodCourier:
		return true
	default:
		return false
	}
}

// CourierAllowed reports whether a courier delivery may be selected for the
// destination city. Only the configured city is eligible.
func CourierAllowed(city, allowedCity string) bool {
	normalise := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return normalise(city) != "" && normalise(city) == normalise(allowedCity)
}
