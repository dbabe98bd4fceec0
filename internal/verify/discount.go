package verify

import (
	"regexp"
	"strconv"
)

var firstIntPattern = regexp.MustCompile(`\d+`)

// ParseDiscount extracts the first integer from free-form discount text
// ("25% off sitewide" yields 25). Returns false when the text carries no
// digits; callers treat that as an unknown discount, not an error.
func ParseDiscount(s string) (float64, bool) {
	m := firstIntPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return float64(v), true
}
