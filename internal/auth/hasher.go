// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

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

// Default argon2id parameters (OWASP baseline).
const (
	DefaultArgon2Memory  = 64 * 1024 // KiB
	DefaultArgon2Time    = 1
	DefaultArgon2Threads = 4

	argon2SaltLen = 16
	argon2KeyLen  = 32
)

// Bounds applied to parameters read back from stored hashes. A corrupted
// row must not make a single verification allocate gigabytes.
const (
	maxArgon2Memory  = 1024 * 1024 // 1 GiB
	maxArgon2Time    = 16
	maxArgon2Threads = 64
	minSaltLen       = 8
	minKeyLen        = 16
	maxKeyLen        = 128
)

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a self-describing hash of the password.
	Hash(password string) (string, error)

	// Verify checks password against an encoded hash. It returns nil on
	// match, ErrPasswordMismatch on a wrong password, ErrMalformedHash when
	// the encoded hash cannot be parsed, or another error on failure.
	Verify(password, encodedHash string) error
}

// HasherParams holds argon2id cost parameters.
type HasherParams struct {
	Memory  uint32 // KiB
	Time    uint32
	Threads uint8
}

// DefaultHasherParams returns the default argon2id parameters.
func DefaultHasherParams() HasherParams {
	return HasherParams{
		Memory:  DefaultArgon2Memory,
		Time:    DefaultArgon2Time,
		Threads: DefaultArgon2Threads,
	}
}

// Validate checks that the parameters are usable.
func (p HasherParams) Validate() error {
	if p.Memory < 8*uint32(p.Threads) || p.Memory > maxArgon2Memory {
		return oops.Code("HASHER_INVALID_PARAMS").With("memory", p.Memory).Errorf("memory out of range")
	}
	if p.Time == 0 || p.Time > maxArgon2Time {
		return oops.Code("HASHER_INVALID_PARAMS").With("time", p.Time).Errorf("time out of range")
	}
	if p.Threads == 0 || p.Threads > maxArgon2Threads {
		return oops.Code("HASHER_INVALID_PARAMS").With("threads", p.Threads).Errorf("threads out of range")
	}
	return nil
}

// Argon2idHasher implements PasswordHasher using argon2id and PHC strings.
type Argon2idHasher struct {
	params HasherParams
}

// NewArgon2idHasher creates an Argon2idHasher with the default parameters.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultHasherParams()}
}

// NewArgon2idHasherWithParams creates an Argon2idHasher with custom parameters.
func NewArgon2idHasherWithParams(params HasherParams) (*Argon2idHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2idHasher{params: params}, nil
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", oops.Code("AUTH_EMPTY_PASSWORD").Wrap(ErrEmptyPassword)
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the encoded hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) error {
	phc, err := parsePHC(encodedHash)
	if err != nil {
		return err
	}

	computed := argon2.IDKey([]byte(password), phc.salt, phc.time, phc.memory, phc.threads, uint32(len(phc.key)))
	if subtle.ConstantTimeCompare(computed, phc.key) != 1 {
		return oops.Code("AUTH_PASSWORD_MISMATCH").Wrap(ErrPasswordMismatch)
	}
	return nil
}

// DummyHash returns a well-formed hash with this hasher's cost parameters
// that no password matches. Verifying against it costs the same as a real
// verification.
func (h *Argon2idHasher) DummyHash() string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(make([]byte, argon2SaltLen)),
		base64.RawStdEncoding.EncodeToString(make([]byte, argon2KeyLen)),
	)
}

type phcHash struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func malformed(reason string) error {
	return oops.Code("AUTH_INVALID_HASH").With("reason", reason).Wrap(ErrMalformedHash)
}

// parsePHC decodes an argon2id PHC string and bounds its parameters.
func parsePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, malformed("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, malformed("unsupported hash algorithm")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, malformed("invalid version")
	}
	if version != argon2.Version {
		return nil, malformed("unsupported version")
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, malformed("invalid parameters")
	}
	if memory == 0 || memory > maxArgon2Memory || time == 0 || time > maxArgon2Time ||
		threads == 0 || threads > maxArgon2Threads {
		return nil, malformed("parameters out of range")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < minSaltLen {
		return nil, malformed("invalid salt")
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) < minKeyLen || len(key) > maxKeyLen {
		return nil, malformed("invalid key")
	}

	return &phcHash{
		memory:  memory,
		time:    time,
		threads: uint8(threads),
		salt:    salt,
		key:     key,
	}, nil
}
