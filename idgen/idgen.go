// Package idgen generates identifiers for stored screenshots, bridge
// requests and capture sessions.
//
// Screenshots and sessions use time-sortable UUIDv7 so history listings
// order naturally; bridge request IDs only need to be unique for the
// lifetime of one round trip and use the short NanoID form.
package idgen

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator of base-36 IDs of the given length.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// UUIDv7 returns a Generator of RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every ID of gen ("shot_", "req_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// Screenshot generates stored screenshot IDs.
var Screenshot = Prefixed("shot_", UUIDv7())

// Request generates bridge request IDs.
var Request = Prefixed("req_", NanoID(12))

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// Parse validates a UUID string, ignoring a type prefix ending in '_'.
func Parse(s string) (string, error) {
	raw := s
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			raw = s[i+1:]
			break
		}
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("idgen: invalid UUID %q: %w", s, err)
	}
	return u.String(), nil
}
