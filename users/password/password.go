// Package password hashes and verifies user credentials with bcrypt.
package password

import "golang.org/x/crypto/bcrypt"

// Hash produces a salted bcrypt digest of the plaintext. bcrypt embeds a
// fresh random salt in each digest, so hashing the same plaintext twice
// yields different outputs.
func Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches the digest. A mismatch or a
// malformed digest is a normal false outcome, not an error; the comparison
// is constant time.
func Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
