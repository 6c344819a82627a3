package credentials

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

// BaseUsername derives the login handle for a person: lowercased
// "first.last" with everything that is not a letter or digit stripped from
// the name parts. Collision handling is the allocator's job.
func BaseUsername(firstName, lastName string) string {
	first := sanitizeNamePart(firstName)
	last := sanitizeNamePart(lastName)

	switch {
	case first == "" && last == "":
		return "user"
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + "." + last
}

// sanitizeNamePart lowercases a name and drops non-alphanumeric runes
func sanitizeNamePart(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DefaultPassword builds the generated first-login password: the configured
// prefix followed by a zero-padded 4-digit random number. This is a
// deliberately low-entropy placeholder that users must replace on first
// login; it is not a security boundary.
func DefaultPassword(prefix string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to draw random password digits: %w", err)
	}
	return fmt.Sprintf("%s%04d", prefix, n.Int64()), nil
}
