package tournaments

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	invitationCodeBytes = 6
	maxCodeAttempts     = 5
)

// NewInvitationCode returns an 8 character uppercase URL-safe token.
func NewInvitationCode() (string, error) {
	buf := make([]byte, invitationCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return strings.ToUpper(base64.RawURLEncoding.EncodeToString(buf)), nil
}

// NormalizeCode trims and uppercases user input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
