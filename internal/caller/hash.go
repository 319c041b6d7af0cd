package caller

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashDomain versions the caller-hash derivation so the algorithm can be
// migrated without colliding with old keys.
const hashDomain = "verity/caller/v1"

// Hash derives the one-way ledger key for a normalized E.164 number. The
// ledger stores only this hash, never the number itself. Empty input returns
// "" so callers can treat unclassifiable numbers as absent.
func Hash(e164 string) string {
	if e164 == "" {
		return ""
	}
	h := sha256.New()
	h.Write([]byte(hashDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(e164))
	return hex.EncodeToString(h.Sum(nil))
}
