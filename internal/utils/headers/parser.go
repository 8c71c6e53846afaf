package headers

import (
	"fmt"
	"net/http"
	"strings"
)

// reserved headers are owned by the fetchers and cannot be overridden
var reserved = map[string]bool{
	"Host":              true,
	"Content-Length":    true,
	"Transfer-Encoding": true,
	"Connection":        true,
}

// Parse converts "Key: Value" entries into request headers. Later entries
// for the same key replace earlier ones.
func Parse(entries []string) (http.Header, error) {
	h := make(http.Header, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, ":")
		key = http.CanonicalHeaderKey(strings.TrimSpace(key))
		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			return nil, fmt.Errorf("invalid header %q (want \"Key: Value\")", entry)
		}
		if reserved[key] {
			return nil, fmt.Errorf("header %s cannot be overridden", key)
		}
		h.Set(key, strings.TrimSpace(value))
	}
	return h, nil
}
