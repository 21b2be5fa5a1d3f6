package converge

import "strings"

// ErrorMapping pairs an internal diagnostic message with the message shown
// to end users. Raw gateway text must never reach users; everything goes
// through this table or the tiered fallback below.
type ErrorMapping struct {
	Internal string
	User     string
}

var resultCodeMessages = map[string]ErrorMapping{
	"05": {
		Internal: "card declined by issuer",
		User:     "Your card was declined. Please try a different payment method.",
	},
	"14": {
		Internal: "invalid card number",
		User:     "The card number entered is invalid. Please check it and try again.",
	},
	"51": {
		Internal: "insufficient funds",
		User:     "Your card has insufficient funds. Please use a different payment method.",
	},
	"54": {
		Internal: "expired card",
		User:     "Your card has expired. Please use a different payment method.",
	},
	"N7": {
		Internal: "CVV mismatch",
		User:     "The security code (CVV) did not match. Please check it and try again.",
	},
	"5001": {
		Internal: "AVS mismatch",
		User:     "The billing address did not match your card. Please check it and try again.",
	},
	"96": {
		Internal: "gateway system error",
		User:     "The payment system is temporarily unavailable. Please try again later.",
	},
	"4025": {
		Internal: "invalid merchant credentials",
		User:     "Payment processing is misconfigured. Please contact support.",
	},
}

// MapResultCode translates a gateway result or error code into messages.
// Unknown codes fall back by tier: a leading '4' indicates a request/card
// problem, a leading '5' a processor-side problem. Unknown codes must still
// map to a generic user message so raw gateway diagnostics never leak out.
func MapResultCode(code string) ErrorMapping {
	if m, ok := resultCodeMessages[code]; ok {
		return m
	}

	switch {
	case strings.HasPrefix(code, "4"):
		return ErrorMapping{
			Internal: "unrecognized gateway decline code " + code,
			User:     "We could not process this card. Please try a different payment method.",
		}
	case strings.HasPrefix(code, "5"):
		return ErrorMapping{
			Internal: "unrecognized gateway error code " + code,
			User:     "The payment system encountered an error. Please try again later.",
		}
	default:
		return ErrorMapping{
			Internal: "unrecognized gateway result code " + code,
			User:     "Payment failed. Please try again or contact support.",
		}
	}
}

// MapFailure extracts the most specific code from a failed gateway response
// and maps it. Converge reports declines via ssl_result and transport-level
// problems via errorCode.
func MapFailure(f Fields) ErrorMapping {
	code := f.Get("errorCode")
	if code == "" {
		code = f.Get("ssl_result")
	}
	return MapResultCode(code)
}
