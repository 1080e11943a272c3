package registry

import (
	"strings"
	"unicode"
)

var numberWords = map[string]string{
	"zero":   "0",
	"one":    "1",
	"two":    "2",
	"three":  "3",
	"four":   "4",
	"five":   "5",
	"six":    "6",
	"seven":  "7",
	"eight":  "8",
	"nine":   "9",
	"ten":    "10",
	"eleven": "11",
	"twelve": "12",
}

// Normalize folds a name into its comparison form: lower case, separators
// turned into single spaces, letter/digit runs split ("pump2" -> "pump 2")
// and spelled-out numbers replaced by digits ("compressor one" ->
// "compressor 1").
func Normalize(s string) string {
	return strings.Join(Tokens(s), " ")
}

// Tokens returns the normalized tokens of s.
func Tokens(s string) []string {
	var (
		tokens []string
		cur    []rune
		last   rune
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		tok := string(cur)
		if d, ok := numberWords[tok]; ok {
			tok = d
		}
		tokens = append(tokens, tok)
		cur = cur[:0]
	}
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			if len(cur) > 0 && unicode.IsDigit(r) != unicode.IsDigit(last) {
				flush()
			}
			cur = append(cur, r)
			last = r
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// DigitTokens returns the purely numeric tokens, in order.
func DigitTokens(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if isDigits(t) {
			out = append(out, t)
		}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func sameDigits(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if strings.TrimLeft(a[i], "0") != strings.TrimLeft(b[i], "0") {
			return false
		}
	}
	return true
}

// containsAll reports whether every token of sub appears in set.
func containsAll(set, sub []string) bool {
	if len(sub) == 0 {
		return false
	}
	for _, want := range sub {
		found := false
		for _, have := range set {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
