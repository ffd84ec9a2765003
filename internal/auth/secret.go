// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/samber/oops"
)

// SessionTokenLength is the size of a session secret in bytes.
const SessionTokenLength = 32

// encodedSecretLength is the length of a hex encoded secret.
const encodedSecretLength = 2 * SessionTokenLength

// GenerateSecret fills a secret from the operating system CSPRNG.
func GenerateSecret() ([SessionTokenLength]byte, error) {
	var secret [SessionTokenLength]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return secret, oops.Code("SECRET_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenLength).
			Wrap(err)
	}
	return secret, nil
}

// EncodeHex returns the lowercase hex form of secret.
func EncodeHex(secret [SessionTokenLength]byte) string {
	return hex.EncodeToString(secret[:])
}

// DecodeHex parses a hex encoded secret. Upper and lower case digits are
// accepted.
//
// Input longer than 64 characters is rejected. Shorter input is right-padded
// with '0' before decoding, so a 32 character string yields 16 meaningful
// bytes followed by zeros. Distinct short inputs can therefore collapse to
// the same secret ("ab" and "ab00" decode identically); callers that need
// strict parsing must check the length themselves.
func DecodeHex(s string) ([SessionTokenLength]byte, error) {
	var secret [SessionTokenLength]byte
	if len(s) > encodedSecretLength {
		return secret, oops.Code("TOKEN_INVALID").
			With("length", len(s)).
			Wrap(ErrInvalidToken)
	}

	padded := s + strings.Repeat("0", encodedSecretLength-len(s))
	decoded, err := hex.DecodeString(padded)
	if err != nil || len(decoded) != SessionTokenLength {
		return secret, oops.Code("TOKEN_INVALID").Wrap(ErrInvalidToken)
	}
	copy(secret[:], decoded)
	return secret, nil
}
