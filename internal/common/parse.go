package common

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSlot parses a decimal slot number such as the one in a "cleaned up" RPC error.
// Surrounding whitespace and "_" digit separators are ignored.
func ParseSlot(val string) (uint64, error) {
	str := strings.ReplaceAll(strings.TrimSpace(val), "_", "")
	if str == "" {
		return 0, fmt.Errorf("invalid slot %q: empty", val)
	}

	slot, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid slot %q: %w", val, err)
	}

	return slot, nil
}

const bytesInMB = 1024 * 1024

func MBToBytes(mb uint64) uint64 {
	return mb * bytesInMB
}

func BytesToMB(bytes uint64) uint64 {
	return bytes / bytesInMB
}

func ToLowerWithTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ShortID abbreviates a base58 identifier (signature, program id, hash) for log lines.
func ShortID(id string) string {
	const keep = 8
	if len(id) <= 2*keep {
		return id
	}

	return id[:keep] + ".." + id[len(id)-keep:]
}
