package provider

import "strings"

// NormalizeVersion extracts a bare version from agent version output
// like "lldpctl 1.0.18", "v0.4.0" or a multi-line banner. Returns ""
// when there is nothing version-shaped to extract.
func NormalizeVersion(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[len(fields)-1]
	}
	return strings.TrimPrefix(s, "v")
}
