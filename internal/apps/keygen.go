package apps

import (
	"crypto/rand"
	"encoding/hex"
)

// KeyPrefix marks Pulse-issued API keys.
const KeyPrefix = "pk_"

// GenerateKey returns a new random API key: the pk_ prefix followed by
// 32 bytes of hex-encoded entropy.
func GenerateKey() string {
	buf := make([]byte, 32)
	rand.Read(buf)
	return KeyPrefix + hex.EncodeToString(buf)
}
