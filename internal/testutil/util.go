// Package testutil holds fixtures and golden-file helpers shared by package tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var Update = flag.Bool("update", false, "rewrite golden files under testdata/")

// GoldenPath is testdata/<name>.golden relative to the package under test.
func GoldenPath(name string) string {
	return filepath.Join("testdata", name+".golden")
}

// CompareWithGolden marshals v as indented JSON and compares it with the
// golden file for name. Run with -update to rewrite the file.
func CompareWithGolden(t testing.TB, name string, v any) {
	t.Helper()

	got, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err, "marshal %s", name)
	got = append(got, '\n')

	path := GoldenPath(name)
	if *Update {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, got, 0o644))
		return
	}

	want, err := os.ReadFile(path)
	require.NoError(t, err, "read %s (run with -update to create it)", path)
	assert.Equal(t, string(bytes.TrimSpace(want)), string(bytes.TrimSpace(got)), "golden mismatch for %s", name)
}
