package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id cost parameters. 64 MiB, 3 passes, single lane.
const (
	hashIterations = 3
	hashMemoryKiB  = 64 * 1024
	hashLanes      = 1
	hashLength     = 32
	saltLength     = 16
)

// hashParams carries the cost parameters recovered from a stored hash so
// verification replays whatever cost the hash was created with.
type hashParams struct {
	iterations uint32
	memoryKiB  uint32
	lanes      uint8
}

// HashPassword derives an Argon2id hash of the password and encodes it as
// a PHC string ($argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>).
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	digest := argon2.IDKey([]byte(password), salt, hashIterations, hashMemoryKiB, hashLanes, hashLength)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		hashMemoryKiB, hashIterations, hashLanes,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	)
	return encoded, nil
}

// VerifyPassword reports whether the plaintext password matches the stored
// PHC-encoded Argon2id hash.
func VerifyPassword(password, encodedHash string) (bool, error) {
	salt, stored, params, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, params.iterations, params.memoryKiB, params.lanes, uint32(len(stored))) //nolint:gosec // G115: hash length always fits uint32

	return subtle.ConstantTimeCompare(stored, candidate) == 1, nil
}

// parsePHC splits a PHC string into salt, hash and cost parameters.
func parsePHC(encoded string) (salt, hash []byte, params hashParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		return nil, nil, params, fmt.Errorf("invalid PHC hash format")
	}
	if parts[1] != "argon2id" {
		return nil, nil, params, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, scanErr := fmt.Sscanf(parts[2], "v=%d", &version); scanErr != nil {
		return nil, nil, params, fmt.Errorf("parsing version: %w", scanErr)
	}
	if _, scanErr := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memoryKiB, &params.iterations, &params.lanes); scanErr != nil {
		return nil, nil, params, fmt.Errorf("parsing parameters: %w", scanErr)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding salt: %w", err)
	}
	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding hash: %w", err)
	}

	return salt, hash, params, nil
}
