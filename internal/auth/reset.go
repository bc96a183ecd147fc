package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Reset secret configuration.
const (
	ResetSecretBytes = 32 // hex encoded to 64 chars
	DefaultResetTTL  = time.Hour
)

const resetTokenSeparator = "."

// GenerateResetSecret returns a random hex secret. Only its hash is ever persisted.
func GenerateResetSecret() (string, error) {
	buf := make([]byte, ResetSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ResetToken joins a ticket id and its secret into the value handed to the
// account owner. The id selects the ticket so confirmation checks a single hash.
func ResetToken(ticketID, secret string) string {
	return ticketID + resetTokenSeparator + secret
}

// SplitResetToken is the inverse of ResetToken. It reports false when either
// part is missing.
func SplitResetToken(token string) (ticketID, secret string, ok bool) {
	ticketID, secret, found := strings.Cut(token, resetTokenSeparator)
	if !found || ticketID == "" || secret == "" {
		return "", "", false
	}
	return ticketID, secret, true
}
