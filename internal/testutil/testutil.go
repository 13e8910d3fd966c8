// Package testutil provides shared test helpers for the Homeglass backend
// test suite.
//
// All helpers accept [testing.TB] so they work from both tests and
// benchmarks, and every helper calls t.Helper() so failures report the
// caller's line number.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
)

// RequireErrorCode halts the test if err is nil, is not an *hgerr.Error,
// or does not carry the expected error code. This is the primary helper
// for checking error responses against the platform taxonomy.
//
// Example:
//
//	_, err := users.GetByID(ctx, unknownID)
//	testutil.RequireErrorCode(t, err, hgerr.CodeNotFoundUser)
func RequireErrorCode(t testing.TB, err error, code hgerr.Code, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	hgError, ok := hgerr.AsError(err)
	require.True(t, ok, "expected *hgerr.Error, got %T: %v", err, err)
	require.Equal(t, code, hgError.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		hgError.Code, code, hgError.Message)
}

// AssertErrorCode records a failure (without halting) if err is nil, is
// not an *hgerr.Error, or does not carry the expected error code. Use in
// table-driven tests where all rows should be checked.
func AssertErrorCode(t testing.TB, err error, code hgerr.Code, msgAndArgs ...any) bool {
	t.Helper()
	if !assert.Error(t, err, msgAndArgs...) {
		return false
	}
	hgError, ok := hgerr.AsError(err)
	if !assert.True(t, ok, "expected *hgerr.Error, got %T: %v", err, err) {
		return false
	}
	return assert.Equal(t, code, hgError.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		hgError.Code, code, hgError.Message)
}

// TempConfigFile creates a temporary file with the given content and
// extension (".yaml", ".json") inside t.TempDir() and returns its path.
// The file is removed when the test finishes.
func TempConfigFile(t testing.TB, content, ext string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config"+ext)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600),
		"failed to write temp config file %s", path)
	return path
}

// AssertJSONNotContains marshals v to JSON and asserts the result does not
// contain the given substring. Used to verify that secrets stay redacted
// in serialized configuration.
func AssertJSONNotContains(t testing.TB, v any, unexpected string) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err, "json.Marshal failed")
	assert.NotContains(t, string(data), unexpected)
}
