package verify

import "fmt"

// maxRotatingPeriod bounds the repeating-pattern search. Fill tools use
// short patterns (0x55AA, 0xDEADBEEF and the like), so 16 bytes covers
// what shows up in practice.
const maxRotatingPeriod = 16

const (
	sigConstantPrefix = "constant:"
	sigRotating       = "rotating-pattern"
	sigPreWipe        = "pre-wipe-content"
)

// detectSignature returns a non-empty signature name when the sample
// matches a known non-random structure: a constant fill or a short
// repeating pattern. Pre-wipe content is matched by digest in the
// engine, which already hashes every sample.
func detectSignature(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	if b, ok := constantByte(data); ok {
		return constantSignature(b)
	}

	if rotating(data) {
		return sigRotating
	}

	return ""
}

func constantByte(data []byte) (byte, bool) {
	b := data[0]
	for _, v := range data[1:] {
		if v != b {
			return 0, false
		}
	}
	return b, true
}

// rotating reports whether data is a whole-sample repetition of a block
// of 2..maxRotatingPeriod bytes. Constant fills are caught earlier, so a
// period of 1 never reaches here.
func rotating(data []byte) bool {
	for period := 2; period <= maxRotatingPeriod && period*2 <= len(data); period++ {
		match := true
		for i := period; i < len(data); i++ {
			if data[i] != data[i-period] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func constantSignature(b byte) string {
	return fmt.Sprintf("%s0x%02x", sigConstantPrefix, b)
}
