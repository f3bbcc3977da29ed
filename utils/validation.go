package utils

import (
	"regexp"
	"strings"
	"time"
)

var pincodePattern = regexp.MustCompile(`^\d{6}$`)

// IsValidPincode checks for a six digit postal code
func IsValidPincode(pincode string) bool {
	return pincodePattern.MatchString(pincode)
}

// ParseDate parses a YYYY-MM-DD calendar date in UTC
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", strings.TrimSpace(value), time.UTC)
}

// IsBlank reports whether s is empty after trimming whitespace
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
