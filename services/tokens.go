package services

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// randomHex returns n random bytes encoded as lowercase hex.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// newResetToken returns a 64 character password reset token.
func newResetToken() (string, error) {
	return randomHex(32)
}

// newProjectCode returns PRJ-<base36 millis>-<6 hex>, upper case.
func newProjectCode(now time.Time) (string, error) {
	suffix, err := randomHex(3)
	if err != nil {
		return "", err
	}
	stamp := strconv.FormatInt(now.UnixMilli(), 36)
	return strings.ToUpper("PRJ-" + stamp + "-" + suffix), nil
}

// newAccessCode returns the short public code of a survey.
func newAccessCode() string {
	return strings.ToUpper(strings.SplitN(uuid.NewString(), "-", 2)[0])
}

// splitName splits a contact name into first and last name.
func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
