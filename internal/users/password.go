package users

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidHash is returned for malformed or unsupported stored hashes.
var ErrInvalidHash = errors.New("users: invalid password hash")

const (
	argonVersion     = 19 // argon2.Version (0x13)
	argonMemoryKiB   = 64 * 1024
	argonIterations  = 3
	argonParallelism = 2
	argonSaltLength  = 16
	argonKeyLength   = 32
)

// HashPassword hashes a password with Argon2id and returns a PHC string:
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("users: salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argonIterations, argonMemoryKiB, argonParallelism, argonKeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argonVersion, argonMemoryKiB, argonIterations, argonParallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// VerifyPassword checks password against an encoded PHC hash. It returns
// (true, nil) for a match, (false, nil) for a mismatch, and (false,
// ErrInvalidHash) when the stored string cannot be parsed.
func VerifyPassword(encoded, password string) (bool, error) {
	mem, iter, par, salt, expected, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(password), salt, iter, mem, par, uint32(len(expected)))

	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

func decodeHash(encoded string) (mem, iter uint32, par uint8, salt, hash []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" || parts[2] != "v=19" {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}

	var m, t, p uint32
	if _, scanErr := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); scanErr != nil {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	if m == 0 || t == 0 || p == 0 || p > 255 {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err = b64.DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	hash, err = b64.DecodeString(parts[5])
	if err != nil {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}
	if len(salt) < 8 || len(hash) < 16 {
		return 0, 0, 0, nil, nil, ErrInvalidHash
	}

	return m, t, uint8(p), salt, hash, nil
}
