package id

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID32 returns exactly 32 hex characters (no separators/prefixes). The
// underlying randomness is a v4 UUID.
func NewID32() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
