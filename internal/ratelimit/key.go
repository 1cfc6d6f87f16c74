package ratelimit

import (
	"fmt"
	"strings"
)

// KeyFor builds a limiter key for a route bucket and caller. Authenticated callers
// are keyed by user id, anonymous ones by client IP.
func KeyFor(bucket string, userID uint64, clientIP string) (string, Scope) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return "", ScopeNone
	}
	if userID != 0 {
		return fmt.Sprintf("%s:u:%d", bucket, userID), ScopeUser
	}
	clientIP = strings.TrimSpace(clientIP)
	if clientIP == "" {
		return "", ScopeNone
	}
	return fmt.Sprintf("%s:ip:%s", bucket, clientIP), ScopeIP
}
