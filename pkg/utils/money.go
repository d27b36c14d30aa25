package utils

import (
	"math"
	"strconv"
	"strings"
)

// FormatINR formats an amount with Indian digit grouping (1,23,456).
// Paise are shown only when non-zero.
func FormatINR(amount float64) string {
	neg := amount < 0
	amount = math.Abs(amount)
	rupees := int64(amount)
	paise := int64(math.Round((amount - float64(rupees)) * 100))
	if paise == 100 {
		rupees++
		paise = 0
	}

	digits := strconv.FormatInt(rupees, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	if len(digits) > 3 {
		head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
		for i, r := range head {
			if i > 0 && (len(head)-i)%2 == 0 {
				b.WriteByte(',')
			}
			b.WriteRune(r)
		}
		b.WriteByte(',')
		b.WriteString(tail)
	} else {
		b.WriteString(digits)
	}
	if paise > 0 {
		b.WriteByte('.')
		if paise < 10 {
			b.WriteByte('0')
		}
		b.WriteString(strconv.FormatInt(paise, 10))
	}
	return b.String()
}
