package expiry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseCardFace accepts "MM/YY" or "MMYY" and returns month and year
// (four-digit, 2000-based). Expiry on a business card is free text, so
// callers should treat a parse failure as "no expiry known", not as bad
// input.
func ParseCardFace(in string) (month time.Month, year int, err error) {
	s := strings.TrimSpace(in)
	s = strings.ReplaceAll(s, "/", "")
	if len(s) != 4 {
		return 0, 0, fmt.Errorf("card face must be MM/YY or MMYY")
	}
	for i := 0; i < 4; i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, 0, fmt.Errorf("card face must be digits")
		}
	}
	mm, _ := strconv.Atoi(s[:2])
	if mm < 1 || mm > 12 {
		return 0, 0, fmt.Errorf("month must be 01..12")
	}
	yy, _ := strconv.Atoi(s[2:])
	return time.Month(mm), 2000 + yy, nil
}

// EndOfMonth returns the last instant of the given month in UTC.
func EndOfMonth(month time.Month, year int) time.Time {
	firstNext := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstNext.Add(-time.Nanosecond)
}

// Expired reports whether 'at' is strictly after the end of the expiry
// month named by the card face. The end instant itself is still valid.
func Expired(face string, at time.Time) (bool, error) {
	month, year, err := ParseCardFace(face)
	if err != nil {
		return false, err
	}
	return at.UTC().After(EndOfMonth(month, year)), nil
}
