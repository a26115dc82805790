package devenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	root, err := GetWorkspaceRoot()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "go.mod"))
	require.NoError(t, err)

	testCases := []struct {
		path     string
		expected string
	}{
		{path: "reports.db", expected: "reports.db"},
		{path: "/tmp/reports.db", expected: "/tmp/reports.db"},
		{path: "<dev_state>/reports.db", expected: filepath.Join(root, "dev", ".state", "reports.db")},
		{path: "<dev_state>/dumps/http", expected: filepath.Join(root, "dev", ".state", "dumps", "http")},
	}
	for _, tc := range testCases {
		resolved, err := ResolvePath(tc.path)
		require.NoError(t, err)
		require.Equal(t, tc.expected, resolved)
	}
}

func TestIsWorkspaceRoot(t *testing.T) {
	dir := t.TempDir()
	require.False(t, isWorkspaceRoot(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/other\n"), 0644))
	require.False(t, isWorkspaceRoot(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module vhrscraper\n\ngo 1.22.2\n"), 0644))
	require.True(t, isWorkspaceRoot(dir))
}
