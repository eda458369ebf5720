package privacy

import (
	"regexp"
	"strings"
)

// Placeholders look like [Person_A], [Email_B], [Order_AA].
var (
	placeholderPattern = regexp.MustCompile(`\[[A-Za-z][A-Za-z0-9]*_[A-Z]+\]`)
	placeholderExact   = regexp.MustCompile(`^\[[A-Za-z][A-Za-z0-9]*_[A-Z]+\]$`)
	labelPattern       = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)
)

// IsPlaceholder reports whether s is exactly one placeholder token.
func IsPlaceholder(s string) bool {
	return placeholderExact.MatchString(s)
}

// FindPlaceholders returns the byte ranges of every placeholder token in text.
func FindPlaceholders(text string) [][]int {
	return placeholderPattern.FindAllStringIndex(text, -1)
}

// formatPlaceholder renders [<label>_<seq>].
func formatPlaceholder(label string, seq int) string {
	return "[" + label + "_" + sequenceLetters(seq) + "]"
}

// sequenceLetters renders n >= 1 in bijective base-26: 1=A, 26=Z, 27=AA,
// 52=AZ, 53=BA, 702=ZZ, 703=AAA.
func sequenceLetters(n int) string {
	if n < 1 {
		n = 1
	}
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// isBracketed reports whether s is wrapped in square brackets, which is the
// shape of an already-masked token.
func isBracketed(s string) bool {
	return len(s) >= 2 && strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")
}
