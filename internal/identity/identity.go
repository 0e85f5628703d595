// Package identity defines the normalization boundary for user identities.
// Every persistent store in this repository is keyed by a normalized email
// address; nothing else is ever used as a storage key.
package identity

import (
	"regexp"
	"strings"
)

// emailRegex matches the address format accepted at sign-in.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Normalize normalizes an identity string:
// 1. Trim leading/trailing whitespace
// 2. Lowercase
//
// The result is the unique key for all per-user state. Callers must
// normalize before any lookup or write.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Valid reports whether the string looks like an email address.
// Validation happens before normalization output is ever used as a key,
// so malformed or path-looking input never reaches a store.
func Valid(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
