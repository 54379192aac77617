//go:build cgo

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/upg/internal/export"
)

const fixtureDir = "../../testdata/fixtures/rust_demo"

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"-config-dir", t.TempDir()}, args...)
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun_Version(t *testing.T) {
	out, _, err := runCLI(t, "-version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestRun_UnknownCommand(t *testing.T) {
	_, stderr, err := runCLI(t, "frobnicate")
	require.Error(t, err)
	assert.Contains(t, stderr, "usage: upg")
}

func TestRun_AnalyzeToDir(t *testing.T) {
	out := t.TempDir()
	stdout, stderr, err := runCLI(t, "-output-dir", out, "analyze", fixtureDir)
	require.NoError(t, err)

	assert.Empty(t, stdout, "records go to the directory")
	assert.Contains(t, stderr, "rust_demo")
	assert.Contains(t, stderr, "control     Stop")
	assert.FileExists(t, filepath.Join(out, "rust_demo", "adt", "rust_demo::S.json"))
	assert.FileExists(t, filepath.Join(out, "rust_demo", "navi", "tree.json"))
}

func TestRun_AnalyzeToStdout(t *testing.T) {
	stdout, _, err := runCLI(t, "analyze", fixtureDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"name": "rust_demo::fill"`)
}

func TestRun_Diagram(t *testing.T) {
	stdout, _, err := runCLI(t, "diagram", fixtureDir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "graph TD\n"))
	assert.Contains(t, stdout, `["write_at"]`)
	assert.Contains(t, stdout, "class ")
}

func TestRun_Export(t *testing.T) {
	stdout, _, err := runCLI(t, "export", fixtureDir)
	require.NoError(t, err)

	var got export.GraphExport
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "rust_demo", got.Unit)
	assert.NotEmpty(t, got.Exposure)
}
