package market

import (
	"fmt"
	"strings"
)

// NormalizeQuery case-folds and trims a query for use as a cache key.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Pair is a currency pair such as USD/KRW.
type Pair struct {
	Base  string
	Quote string
}

func (p Pair) String() string { return p.Base + "/" + p.Quote }

// ParsePair accepts "USD/KRW", "usd-krw", "USD KRW" or "USDKRW".
func ParsePair(q string) (Pair, error) {
	s := strings.ToUpper(strings.TrimSpace(q))
	for _, sep := range []string{"/", "-", " ", "_"} {
		if base, quote, ok := strings.Cut(s, sep); ok {
			base, quote = strings.TrimSpace(base), strings.TrimSpace(quote)
			if !isCode(base) || !isCode(quote) {
				break
			}
			return Pair{Base: base, Quote: quote}, nil
		}
	}
	if len(s) == 6 && isLetters(s) {
		return Pair{Base: s[:3], Quote: s[3:]}, nil
	}
	return Pair{}, fmt.Errorf("%w: currency pair %q", ErrInvalidQuery, q)
}

// isCode reports whether s looks like a currency or token code (USD, USDT).
func isCode(s string) bool {
	return len(s) >= 3 && len(s) <= 5 && isLetters(s)
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
