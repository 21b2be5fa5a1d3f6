package converge

import "strings"

// Card brand identifiers returned by DetectCardBrand.
const (
	BrandVisa       = "visa"
	BrandMastercard = "mastercard"
	BrandAmex       = "amex"
	BrandDiscover   = "discover"
	BrandUnknown    = "unknown"
)

// DetectCardBrand classifies a card number into a brand by prefix.
// It is only a fallback for when the gateway does not report ssl_card_type.
func DetectCardBrand(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)

	if digits == "" {
		return BrandUnknown
	}

	switch {
	case strings.HasPrefix(digits, "4"):
		return BrandVisa
	case len(digits) >= 2 && digits[:2] >= "51" && digits[:2] <= "55":
		return BrandMastercard
	case len(digits) >= 2 && digits[:2] >= "22" && digits[:2] <= "27":
		return BrandMastercard
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return BrandAmex
	case strings.HasPrefix(digits, "6011"), strings.HasPrefix(digits, "65"):
		return BrandDiscover
	default:
		return BrandUnknown
	}
}
