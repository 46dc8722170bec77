package pin

import (
	"regexp"
	"strings"
	"time"
)

var (
	codePattern   = regexp.MustCompile(`^\d{8,15}$`)
	letterPattern = regexp.MustCompile(`[A-Za-z]`)
	datePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// DateLayout is the accepted input format for explicit expiration dates.
const DateLayout = "2006-01-02"

// ValidCode reports whether code is 8 to 15 ASCII digits.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// ContainsLetters reports whether code contains an ASCII letter.
func ContainsLetters(code string) bool {
	return letterPattern.MatchString(code)
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC.
// Dates that do not exist on the calendar (2023-02-30) are rejected.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !datePattern.MatchString(s) {
		return time.Time{}, OpError{Op: "pin.ParseDate", Kind: ErrInvalidDate, Msg: "expected YYYY-MM-DD"}
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, OpError{Op: "pin.ParseDate", Kind: ErrInvalidDate, Msg: s}
	}
	return t, nil
}
