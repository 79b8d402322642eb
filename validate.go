package shopauth

import (
	"regexp"
	"strings"
)

// PasswordCheck is returned by [ValidatePassword]. Violations lists every
// failed rule in evaluation order; it is empty when Valid is true.
type PasswordCheck struct {
	Valid      bool
	Violations []string
}

// CardNetwork classifies a card number by its leading digits.
//
// CardNetwork instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CardNetwork string

const (
	// CardVisa is an exported constant or variable used by the storefront auth core.
	CardVisa CardNetwork = "visa"
	// CardMastercard is an exported constant or variable used by the storefront auth core.
	CardMastercard CardNetwork = "mastercard"
	// CardAmex is an exported constant or variable used by the storefront auth core.
	CardAmex CardNetwork = "amex"
	// CardUnknown is an exported constant or variable used by the storefront auth core.
	CardUnknown CardNetwork = "unknown"
)

// CardCheck is returned by [ValidateCreditCard]. Network is classified
// independently of Valid, so a number failing the Luhn checksum still
// reports its network.
type CardCheck struct {
	Valid   bool
	Network CardNetwork
}

var (
	emailPattern        = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern        = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	jsSchemePattern     = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerPattern = regexp.MustCompile(`(?i)on\w+=`)
	digitsOnlyPattern   = regexp.MustCompile(`^\d+$`)
)

const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

// ValidateEmail reports whether s has the basic local@domain.tld shape.
// It is a shape check, not a deliverability guarantee.
func ValidateEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// ValidatePassword checks s against the storefront password policy. Every
// rule is evaluated independently so the caller can display the complete
// list of violations at once.
func ValidatePassword(s string) PasswordCheck {
	var violations []string

	if len(s) < 8 {
		violations = append(violations, "must be at least 8 characters")
	}
	if !strings.ContainsFunc(s, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		violations = append(violations, "must contain an uppercase letter")
	}
	if !strings.ContainsFunc(s, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		violations = append(violations, "must contain a lowercase letter")
	}
	if !strings.ContainsFunc(s, func(r rune) bool { return r >= '0' && r <= '9' }) {
		violations = append(violations, "must contain a digit")
	}
	if !strings.ContainsAny(s, passwordSymbols) {
		violations = append(violations, "must contain a symbol")
	}

	return PasswordCheck{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}

// SanitizeText strips angle brackets, javascript: scheme prefixes, and
// inline event-handler attribute patterns, then trims whitespace. It is a
// defense-in-depth filter for free-form storefront input, not a full HTML
// sanitizer.
func SanitizeText(s string) string {
	out := strings.NewReplacer("<", "", ">", "").Replace(s)
	out = jsSchemePattern.ReplaceAllString(out, "")
	out = eventHandlerPattern.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// ValidateCreditCard strips whitespace, requires 13-19 digits, validates the
// Luhn checksum, and classifies the card network by leading digits.
func ValidateCreditCard(s string) CardCheck {
	digits := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)

	check := CardCheck{Network: cardNetwork(digits)}
	if len(digits) < 13 || len(digits) > 19 || !digitsOnlyPattern.MatchString(digits) {
		return check
	}

	check.Valid = luhnValid(digits)
	return check
}

// luhnValid doubles every second digit from the rightmost, subtracting 9
// when the doubled value exceeds 9; the number is valid iff the digit sum
// is divisible by 10.
func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func cardNetwork(digits string) CardNetwork {
	switch {
	case strings.HasPrefix(digits, "4"):
		return CardVisa
	case len(digits) >= 2 && digits[0] == '5' && digits[1] >= '1' && digits[1] <= '5':
		return CardMastercard
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return CardAmex
	default:
		return CardUnknown
	}
}

// ValidatePhone strips spaces, dashes, and parentheses, then requires a
// leading non-zero digit with up to 15 following digits and an optional
// leading plus sign.
func ValidatePhone(s string) bool {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, s)
	return phonePattern.MatchString(stripped)
}
