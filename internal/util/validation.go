package util

import (
	"regexp"
	"strings"
)

var (
	codeRegex        = regexp.MustCompile(`^[A-HJ-NP-Z2-9]{4}-[A-HJ-NP-Z2-9]{4}$`)
	deviceIDRegex    = regexp.MustCompile(`^[0-9a-f]{32}$`)
	fingerprintRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

const MaxDeviceNameLength = 100

// NormalizeCode upcases and trims a human-typed pairing code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidCode reports whether a (normalized) pairing code has the
// XXXX-XXXX shape over the ambiguity-free character set.
func IsValidCode(code string) bool {
	return codeRegex.MatchString(code)
}

func IsValidDeviceID(id string) bool {
	return deviceIDRegex.MatchString(id)
}

func IsValidFingerprint(fp string) bool {
	return fingerprintRegex.MatchString(fp)
}

func IsValidDeviceName(name string) bool {
	trimmed := strings.TrimSpace(name)
	return trimmed != "" && len(trimmed) <= MaxDeviceNameLength
}
