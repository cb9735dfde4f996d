package search

import (
	"fmt"
	"regexp"
)

var endpointPattern = regexp.MustCompile(`^(https?://)([^:/]+)(:[0-9]+)?(/.*)?`)

// CanonicalEndpoint pins the endpoint to scheme://host:port, dropping any
// path. port 0 disables the rewrite and unrecognized input is returned as is.
func CanonicalEndpoint(raw string, port int) string {
	if port == 0 {
		return raw
	}
	m := endpointPattern.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	return fmt.Sprintf("%s%s:%d", m[1], m[2], port)
}
