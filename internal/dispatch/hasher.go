package dispatch

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"bookflow/internal/constants"
)

// Hasher turns the key fields of a dispatch into a fixed-length idempotency key.
type Hasher struct {
	algorithm string
}

func NewHasher(algorithm string) *Hasher {
	return &Hasher{algorithm: strings.ToLower(algorithm)}
}

// ComputeKey hashes the values of keyFields in order. Missing fields hash as empty.
func (h *Hasher) ComputeKey(fields map[string]string, keyFields []string) (string, error) {
	if len(keyFields) == 0 {
		return "", fmt.Errorf("no key fields configured")
	}

	var builder strings.Builder
	for _, name := range keyFields {
		builder.WriteString(name)
		builder.WriteByte('=')
		builder.WriteString(fields[name])
		builder.WriteByte('|')
	}

	input := []byte(builder.String())
	switch h.algorithm {
	case constants.HashAlgorithmSHA256:
		sum := sha256.Sum256(input)
		return hex.EncodeToString(sum[:]), nil
	default:
		sum := md5.Sum(input)
		return hex.EncodeToString(sum[:]), nil
	}
}
