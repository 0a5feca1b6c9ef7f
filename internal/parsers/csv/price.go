package csv

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ParsePrice parses a price string to cents (integer)
// Handles various formats: "12.99", "12,99", "1.299,00", "1 299,00 kn"
func ParsePrice(value string) (int, error) {
	if value == "" {
		return 0, fmt.Errorf("empty price value")
	}

	// Remove currency symbols and whitespace
	cleaned := strings.TrimSpace(value)
	cleaned = strings.Map(func(r rune) rune {
		// Remove currency symbols and thousands separators (space)
		if r == '€' || r == '$' || r == '£' || r == '₹' ||
		   r == '¥' || r == '¢' || r == '\u00A0' { // non-breaking space
			return -1
		}
		// Keep other characters
		return r
	}, cleaned)

	// Remove common currency text (kn, KUNA, etc.)
	cleaned = strings.ToUpper(cleaned)
	cleaned = regexp.MustCompile(`\s*(KN|KUNA|HRK|EUR|USD)\s*$`).ReplaceAllString(cleaned, "")

	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, fmt.Errorf("no numeric value found")
	}

	// Determine decimal separator
	// If there's a comma after a dot, comma is decimal separator (European)
	// If there's a dot after a comma, dot is decimal separator (US)
	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")

	if lastComma > lastDot {
		// European format: 1.234,56 -> comma is decimal
		// Remove dots (thousands separators)
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	} else if lastDot > lastComma {
		// US format: 1,234.56 -> just remove commas
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}
	// else: no separators found, use as-is

	cents, err := parseCents(cleaned)
	if err != nil {
		return 0, fmt.Errorf("invalid price format: %w", err)
	}
	return cents, nil
}

// parseCents converts a normalized decimal string (dot separator) to cents
// using integer arithmetic, so values like 7.90 never drift through a float
// representation. A missing integer part (".69") reads as 0.69; a third
// fractional digit rounds half away from zero.
func parseCents(s string) (int, error) {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")

	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return 0, fmt.Errorf("no digits found")
	}

	cents := 0
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, fmt.Errorf("unexpected character %q", r)
		}
		cents = cents*10 + int(r-'0')
	}
	cents *= 100

	scale := 10
	for i, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, fmt.Errorf("unexpected character %q", r)
		}
		d := int(r - '0')
		if i < 2 {
			cents += d * scale
			scale /= 10
		} else if i == 2 && d >= 5 {
			cents++
		}
	}

	if negative {
		cents = -cents
	}
	return cents, nil
}

// FormatCents formats cents as a decimal string (e.g., 1299 -> "12.99")
func FormatCents(cents int) string {
	euros := float64(cents) / 100.0
	return fmt.Sprintf("%.2f", euros)
}

// FormatCentsEuropean formats cents as a European decimal string (e.g., 1299 -> "12,99")
func FormatCentsEuropean(cents int) string {
	euros := float64(cents) / 100.0
	str := fmt.Sprintf("%.2f", euros)
	return strings.ReplaceAll(str, ".", ",")
}
