package entities

import (
	"fmt"
	"regexp"
	"strings"
)

var msisdnPattern = regexp.MustCompile(`^254[17]\d{8}$`)

// NormalizePhoneNumber converts the common Kenyan formats (07XX..., +2547XX...,
// 7XX...) to the 2547XXXXXXXX form the payment gateway expects.
func NormalizePhoneNumber(raw string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	cleaned = strings.TrimPrefix(cleaned, "+")

	switch {
	case strings.HasPrefix(cleaned, "0") && len(cleaned) == 10:
		cleaned = "254" + cleaned[1:]
	case len(cleaned) == 9 && (cleaned[0] == '7' || cleaned[0] == '1'):
		cleaned = "254" + cleaned
	}

	if !msisdnPattern.MatchString(cleaned) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhoneNumber, raw)
	}
	return cleaned, nil
}
