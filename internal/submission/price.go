package submission

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var pricePrinter = message.NewPrinter(language.English)

// normalizePrice strips every character that is not an ASCII digit and
// parses the remainder as a base-10 integer. No digits, or a value that
// does not fit in int64, yields 0 (invalid).
func normalizePrice(text string) int64 {
	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	value, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0
	}
	return value
}

// formatPrice renders a price with thousands grouping for captions.
func formatPrice(price int64) string {
	return pricePrinter.Sprintf("%d", price)
}

// parseCondition validates a condition grade: trimmed, case-insensitive,
// exactly one of A, B, C, D.
func parseCondition(text string) (string, bool) {
	grade := strings.ToUpper(strings.TrimSpace(text))
	switch grade {
	case "A", "B", "C", "D":
		return grade, true
	}
	return "", false
}
