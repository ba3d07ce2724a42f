package wire

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	minHashLen   = 8  // shortest accepted identifier hash
	maxHashLen   = 64 // longest accepted identifier hash (sha-256 hex)
	maxBucketLen = 20 // bucket labels are deliberately tiny
	maxLabelLen  = 64 // free-form labels (chainId, taskType, ...)

	nodeIDPrefix = "node-"
	uuidLen      = 36
)

// ValidHash reports whether h is a lowercase hex identifier hash of
// acceptable length. Reporters salt and hash identifiers before publishing,
// so anything else is noise or an attack.
func ValidHash(h string) bool {
	if len(h) < minHashLen || len(h) > maxHashLen {
		return false
	}
	for i := 0; i < len(h); i++ {
		if !isHexLower(h[i]) {
			return false
		}
	}
	return true
}

func isHexLower(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f'
}

// ValidNodeID reports whether id has the reporter identifier shape
// node-<uuid>, with a canonically formatted UUID.
func ValidNodeID(id string) bool {
	if !strings.HasPrefix(id, nodeIDPrefix) {
		return false
	}
	u := id[len(nodeIDPrefix):]
	if len(u) != uuidLen {
		return false
	}
	_, err := uuid.Parse(u)
	return err == nil
}

// ValidBucket reports whether s is an anonymized bucket label: short ASCII
// from the digit/range/unit alphabet, e.g. "100-500ms", "<1K", "1M-10M".
func ValidBucket(s string) bool {
	if len(s) == 0 || len(s) > maxBucketLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
		case c == '-' || c == '<' || c == '>':
		case c == 'K' || c == 'M' || c == 'G' || c == 'B':
		case c == 'm' || c == 's':
		default:
			return false
		}
	}
	return true
}

// ValidLabel reports whether s fits the free-form label budget.
func ValidLabel(s string) bool {
	return len(s) <= maxLabelLen
}

// ValidLocation reports whether s is a "<lat>,<lon>" pair with both
// coordinates finite and in range.
func ValidLocation(s string) bool {
	lat, lon, ok := strings.Cut(s, ",")
	if !ok {
		return false
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil || math.IsNaN(la) || math.IsInf(la, 0) || la < -90 || la > 90 {
		return false
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil || math.IsNaN(lo) || math.IsInf(lo, 0) || lo < -180 || lo > 180 {
		return false
	}
	return true
}
