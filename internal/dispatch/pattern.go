package dispatch

import (
	"crypto/rand"
	"fmt"
)

// FillPattern fills buf with the pass pattern. Random data comes from the
// system CSPRNG; a generator failure is an error, never a silent fallback.
func FillPattern(pattern Pattern, buf []byte) error {
	switch pattern {
	case PatternZeros:
		for i := range buf {
			buf[i] = 0x00
		}
	case PatternOnes:
		for i := range buf {
			buf[i] = 0xFF
		}
	case PatternRandom:
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("failed to generate random data: %w", err)
		}
	case PatternSecureErase:
		return fmt.Errorf("pattern %s is hardware-dispatched, not software-filled", pattern)
	default:
		return fmt.Errorf("unknown pattern: %s", pattern)
	}
	return nil
}

// ValidateMethod parses a method name.
func ValidateMethod(name string) (Method, error) {
	m := Method(name)
	switch m {
	case MethodZero, MethodOne, MethodRandom, MethodDOD5220, MethodSecureErase:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported wipe method: %s", name)
	}
}

// methodPatterns returns the per-pass pattern cycle for a method.
// DOD 5220.22-M is three passes: random, zeros, random.
func methodPatterns(m Method) []Pattern {
	switch m {
	case MethodZero:
		return []Pattern{PatternZeros}
	case MethodOne:
		return []Pattern{PatternOnes}
	case MethodRandom:
		return []Pattern{PatternRandom}
	case MethodDOD5220:
		return []Pattern{PatternRandom, PatternZeros, PatternRandom}
	case MethodSecureErase:
		return []Pattern{PatternSecureErase}
	default:
		return nil
	}
}

// MethodPasses returns the natural pass count for a method.
func MethodPasses(m Method) int {
	switch m {
	case MethodDOD5220:
		return 3
	default:
		return 1
	}
}
