// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Argon2Params tunes the argon2id key derivation.
type Argon2Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	SaltLen uint32 // bytes
	KeyLen  uint32 // bytes
}

// DefaultArgon2Params are the OWASP-recommended argon2id parameters.
var DefaultArgon2Params = Argon2Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	SaltLen: 16,
	KeyLen:  32,
}

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher derives digests from a password and a per-user salt.
// Hash is deterministic for a given (password, salt) pair.
type PasswordHasher interface {
	// GenerateSalt returns a fresh random salt. Never reuse a salt.
	GenerateSalt() (string, error)

	// Hash derives the digest for password under salt.
	Hash(password, salt string) (string, error)

	// Verify reports whether password under salt produces digest.
	// Returns (false, error) if the digest or salt is malformed.
	Verify(password, salt, digest string) (bool, error)
}

// Argon2idHasher implements PasswordHasher using argon2id.
//
// Digests are encoded as $argon2id$v=19$m=<mem>,t=<time>,p=<threads>$<key>.
// The salt is stored separately and is not part of the digest.
type Argon2idHasher struct {
	params Argon2Params
}

var _ PasswordHasher = (*Argon2idHasher)(nil)

// NewArgon2idHasher creates an Argon2idHasher using DefaultArgon2Params.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultArgon2Params}
}

// NewArgon2idHasherWithParams creates an Argon2idHasher with custom parameters.
// Zero fields fall back to the defaults.
func NewArgon2idHasherWithParams(p Argon2Params) *Argon2idHasher {
	if p.Time == 0 {
		p.Time = DefaultArgon2Params.Time
	}
	if p.Memory == 0 {
		p.Memory = DefaultArgon2Params.Memory
	}
	if p.Threads == 0 {
		p.Threads = DefaultArgon2Params.Threads
	}
	if p.SaltLen == 0 {
		p.SaltLen = DefaultArgon2Params.SaltLen
	}
	if p.KeyLen == 0 {
		p.KeyLen = DefaultArgon2Params.KeyLen
	}
	return &Argon2idHasher{params: p}
}

// GenerateSalt returns base64-encoded random bytes.
func (h *Argon2idHasher) GenerateSalt() (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}
	return base64.RawStdEncoding.EncodeToString(salt), nil
}

// Hash derives the argon2id digest of password under salt.
func (h *Argon2idHasher) Hash(password, salt string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	rawSalt, err := decodeSalt(salt)
	if err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), rawSalt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the digest with the parameters recorded in digest and
// compares in constant time.
func (h *Argon2idHasher) Verify(password, salt, digest string) (bool, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 5 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid digest format")
	}
	if parts[1] != "argon2id" {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	keyLen := len(expected)
	if keyLen == 0 || keyLen > 1<<10 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid key length: %d", keyLen)
	}

	rawSalt, err := decodeSalt(salt)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), rawSalt, iterations, memory, uint8(threads), uint32(keyLen))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func decodeSalt(salt string) ([]byte, error) {
	if salt == "" {
		return nil, oops.Code("AUTH_INVALID_SALT").Errorf("salt cannot be empty")
	}
	raw, err := base64.RawStdEncoding.DecodeString(salt)
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_SALT").Wrap(err)
	}
	return raw, nil
}
