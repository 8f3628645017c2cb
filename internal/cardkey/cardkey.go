// Package cardkey generates redemption keys for license cards.
package cardkey

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Prefix is the fixed leading segment of every generated key.
const Prefix = "DORA"

// MaxBatch caps how many keys may be generated or uploaded at once.
const MaxBatch = 500

const (
	alphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	segmentCount = 4
	segmentLen   = 4
)

// GenerateKey produces one key in the shape PREFIX-XXXX-XXXX-XXXX-XXXX where
// each X is an uppercase letter or digit drawn uniformly from crypto/rand.
// Bytes at or above the largest multiple of the alphabet size are rejected,
// otherwise the reduction would skew toward the first few symbols.
func GenerateKey() (string, error) {
	const total = segmentCount * segmentLen
	limit := 256 - 256%len(alphabet)

	var b strings.Builder
	b.WriteString(Prefix)
	buf := make([]byte, 2*total)
	written := 0
	for written < total {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, raw := range buf {
			if int(raw) >= limit {
				continue
			}
			if written%segmentLen == 0 {
				b.WriteByte('-')
			}
			b.WriteByte(alphabet[int(raw)%len(alphabet)])
			written++
			if written == total {
				break
			}
		}
	}
	return b.String(), nil
}

// GenerateUniqueKeys produces count distinct keys, none of which appear in
// existing. The keyspace (36^16) vastly exceeds any permitted batch size, so
// the rejection loop terminates after roughly count draws.
func GenerateUniqueKeys(count int, existing map[string]struct{}) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("cardkey: count must be positive")
	}
	if count > MaxBatch {
		return nil, fmt.Errorf("cardkey: count exceeds %d", MaxBatch)
	}

	seen := make(map[string]struct{}, len(existing)+count)
	for key := range existing {
		seen[key] = struct{}{}
	}

	keys := make([]string, 0, count)
	for len(keys) < count {
		key, errGen := GenerateKey()
		if errGen != nil {
			return nil, errGen
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys, nil
}
