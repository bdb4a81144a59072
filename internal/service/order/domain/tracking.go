package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Tracking identifiers have the shape {CARRIER}-{10 digits}{check digit}. The
// check digit uses the same alternating 1/3 weighting as UPC codes, so a
// corrupted digit is caught before the ID ever reaches a carrier API.

// GenerateTrackingID produces a new tracking identifier for the given carrier
// code. The ten payload digits are derived from a fresh UUID.
func GenerateTrackingID(carrier string) string {
	u := uuid.New()
	digits := make([]int, 10)
	for i := range digits {
		digits[i] = int(u[i]) % 10
	}
	var b strings.Builder
	b.WriteString(carrier)
	b.WriteByte('-')
	for _, d := range digits {
		fmt.Fprintf(&b, "%d", d)
	}
	fmt.Fprintf(&b, "%d", TrackingChecksum(digits))
	return b.String()
}

// TrackingChecksum computes the check digit for ten payload digits: weights
// alternate 1 and 3 by position parity, and the check digit is what brings the
// weighted sum up to the next multiple of ten.
func TrackingChecksum(digits []int) int {
	var sum int
	for i, d := range digits {
		w := 1
		if i%2 == 1 {
			w = 3
		}
		sum += d * w
	}
	return (10 - sum%10) % 10
}

// ValidTrackingID reports whether the identifier is well-formed and its check
// digit matches its payload digits.
func ValidTrackingID(id string) bool {
	dash := strings.LastIndexByte(id, '-')
	if dash <= 0 || len(id)-dash-1 != 11 {
		return false
	}
	payload := id[dash+1:]
	digits := make([]int, 10)
	for i := 0; i < 10; i++ {
		c := payload[i]
		if c < '0' || c > '9' {
			return false
		}
		digits[i] = int(c - '0')
	}
	check := payload[10]
	if check < '0' || check > '9' {
		return false
	}
	return TrackingChecksum(digits) == int(check-'0')
}
