// Package bookingref generates and parses human-referenceable booking ids.
//
// Format: "FB" + 13-digit unix millisecond timestamp + 6 uppercase hex chars.
// The random suffix carries 24 bits of entropy, which together with the
// millisecond component makes collisions negligible without any shared
// counter, so Generate is safe to call from any number of goroutines.
package bookingref

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const prefix = "FB"

var pattern = regexp.MustCompile(`^FB\d{13}[A-F0-9]{6}$`)

func Generate() string {
	var buf [3]byte
	// rand.Read on the crypto source never fails on supported platforms.
	_, _ = rand.Read(buf[:])
	suffix := strings.ToUpper(hex.EncodeToString(buf[:]))
	return prefix + strconv.FormatInt(time.Now().UnixMilli(), 10) + suffix
}

func Validate(ref string) bool {
	return pattern.MatchString(ref)
}

// Timestamp extracts the creation time encoded in the reference, or the zero
// time if the reference is malformed.
func Timestamp(ref string) time.Time {
	if !Validate(ref) {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(ref[2:15], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Format renders a reference as FB-XXXX-XXXX-XXXX for display. Empty input
// renders as "N/A"; other short or malformed input is returned untouched.
func Format(ref string) string {
	if ref == "" {
		return "N/A"
	}
	if len(ref) < 19 {
		return ref
	}
	return ref[:2] + "-" + ref[2:6] + "-" + ref[6:10] + "-" + ref[10:]
}
