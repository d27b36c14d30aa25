package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	e164Regex    = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	maskRegex    = regexp.MustCompile(`^(\+)(\d{1,3})(\d{3})(\d+)$`)
	nonDialRegex = regexp.MustCompile(`[^\d+]`)
)

// MaskPhoneNumber masks a phone number for logging
// Example: +919876543210 -> +919876••3210
func MaskPhoneNumber(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	if m := maskRegex.FindStringSubmatch(phone); len(m) == 5 && len(m[4]) >= 4 {
		rest := m[4]
		return "+" + m[2] + m[3] + strings.Repeat("•", len(rest)-4) + rest[len(rest)-4:]
	}

	if len(phone) > 4 {
		return strings.Repeat("•", len(phone)-4) + phone[len(phone)-4:]
	}
	return strings.Repeat("•", len(phone))
}

// ValidateE164 reports whether phone is in E.164 format
func ValidateE164(phone string) bool {
	return e164Regex.MatchString(phone)
}

// NormalizePhone normalizes an Indian number to E.164 (+91XXXXXXXXXX).
// Accepted inputs: +91XXXXXXXXXX, 91XXXXXXXXXX, 0XXXXXXXXXX, XXXXXXXXXX,
// with any spaces, dashes or brackets.
func NormalizePhone(phone string) (string, error) {
	cleaned := nonDialRegex.ReplaceAllString(strings.TrimSpace(phone), "")
	if cleaned == "" {
		return "", fmt.Errorf("phone number is required")
	}

	if !strings.HasPrefix(cleaned, "+") {
		switch {
		case len(cleaned) == 12 && strings.HasPrefix(cleaned, "91"):
			cleaned = "+" + cleaned
		case len(cleaned) == 11 && strings.HasPrefix(cleaned, "0"):
			cleaned = "+91" + cleaned[1:]
		case len(cleaned) == 10:
			cleaned = "+91" + cleaned
		default:
			return "", fmt.Errorf("cannot normalize phone number %s", MaskPhoneNumber(cleaned))
		}
	}

	if !ValidateE164(cleaned) {
		return "", fmt.Errorf("phone number must be in E.164 format (e.g., +919876543210)")
	}
	return cleaned, nil
}

// PhoneVariants returns every stored form a customer number may have been
// written in: +91XXXXXXXXXX, 91XXXXXXXXXX, 0XXXXXXXXXX and XXXXXXXXXX.
// The raw input is kept first when it does not normalize.
func PhoneVariants(phone string) []string {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		raw := strings.TrimSpace(phone)
		if raw == "" {
			return nil
		}
		return []string{raw}
	}

	if !strings.HasPrefix(normalized, "+91") {
		return []string{normalized, strings.TrimPrefix(normalized, "+")}
	}

	local := strings.TrimPrefix(normalized, "+91")
	return []string{normalized, "91" + local, "0" + local, local}
}

// LastDigits returns the last n digits of s, left-padded with zeros.
// Example: LastDigits("LOAN123", 4) -> "0123"
func LastDigits(s string, n int) string {
	var digits []byte
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits = append(digits, s[i])
		}
	}
	if len(digits) >= n {
		return string(digits[len(digits)-n:])
	}
	return strings.Repeat("0", n-len(digits)) + string(digits)
}
