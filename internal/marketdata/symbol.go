package marketdata

import (
	"regexp"
	"strings"
)

var (
	// Digit-prefixed listings like "1NVDA" or "1NVDA.MI" that some data
	// vendors use for secondary lines on Borsa Italiana.
	digitPrefixedRe     = regexp.MustCompile(`^\d+[A-Z]{1,6}(\.[A-Z]{1,3})?$`)
	digitPrefixedBareRe = regexp.MustCompile(`^\d+[A-Z]{1,6}$`)
	leadingDigitsRe     = regexp.MustCompile(`^\d+`)
)

// NormalizeSymbol uppercases the symbol, strips all whitespace, and removes
// the numeric prefix from digit-prefixed listings ("1NVDA" -> "NVDA").
func NormalizeSymbol(raw string) string {
	s := CleanSymbol(raw)
	if digitPrefixedRe.MatchString(s) {
		s = leadingDigitsRe.ReplaceAllString(s, "")
	}
	return s
}

// SymbolCandidates returns the lookup order for a raw user symbol. A bare
// digit-prefixed symbol first tries its Milan listing, then the raw form,
// then the normalized form. Duplicates and empty entries are dropped.
func SymbolCandidates(raw string) []string {
	rawUp := CleanSymbol(raw)
	norm := NormalizeSymbol(raw)

	var out []string
	if rawUp != "" && !strings.Contains(rawUp, ".") && digitPrefixedBareRe.MatchString(rawUp) {
		out = append(out, rawUp+".MI")
	}
	for _, s := range []string{rawUp, norm} {
		if s == "" || containsSymbol(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// CleanSymbol uppercases and strips whitespace without touching digit
// prefixes. Cache keys use this form so distinct listings stay distinct.
func CleanSymbol(raw string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(raw)), " ", "")
}

func containsSymbol(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
