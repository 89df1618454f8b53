package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainTrace prefixes trace fingerprints. The version suffix allows the
// encoding to change without colliding with older fingerprints.
const DomainTrace = "cycle/trace/v1"

// Fingerprint returns SHA256(DomainTrace + 0x00 + canonical(v)) as hex.
// Identical runs of a deterministic program have identical fingerprints.
func Fingerprint(v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(DomainTrace))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
