// Package approval gates sensitive profile mutations behind a short-lived,
// single-use verification token delivered out-of-band. Proving continued
// control of a verified channel is decoupled from applying the change, so
// a stolen session alone cannot rewrite tenant-identifying fields.
package approval

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// Token is a pending or consumed verification credential bound to one
// admin and one proposed-changes payload. Only the digest of the code is
// stored.
type Token struct {
	ID              string
	SchoolID        string
	AdminID         string
	Digest          string
	ProposedChanges json.RawMessage
	IssuedAt        time.Time
	ExpiresAt       time.Time
	UsedAt          *time.Time
	IP              string
	UserAgent       string
}

// Pending reports whether the token can still be verified at now.
func (t *Token) Pending(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// codeDigits is the length of the numeric verification code.
const codeDigits = 6

var codeMax = big.NewInt(1_000_000)

// generateCode produces a zero-padded numeric code from crypto/rand.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeMax)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// digestCode hashes the code for storage and lookup. The plaintext code
// never touches the database.
func digestCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
