// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err is an oops error whose code is code.
// oops reports the innermost code, so use it on errors built directly by
// the code under test.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

// AssertErrorContext asserts that err is an oops error with the given context key/value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	ctx := oopsErr.Context()
	assert.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}

// AssertErrorIs asserts that err wraps target and none of the others.
func AssertErrorIs(t *testing.T, err, target error, others ...error) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, target)
	for _, other := range others {
		assert.NotErrorIs(t, err, other)
	}
}

// AssertPublicMessage asserts that err carries msg as its client-safe message.
func AssertPublicMessage(t *testing.T, err error, msg string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, msg, oops.GetPublic(err, ""))
}
