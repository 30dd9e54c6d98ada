// Package metrics holds the Prometheus collectors of the counselor API.
// Each file enqueues its collectors from init; MustRegister registers them once.
package metrics

import "strings"

func norm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}
