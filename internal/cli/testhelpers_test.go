package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

var (
	basicConfigDir = filepath.Join("..", "harness", "testdata", "configs", "basic")
	scenariosDir   = filepath.Join("..", "harness", "testdata", "scenarios")
)

// writeConfig writes a single-file CUE configuration in package carbon into
// a temp dir.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	src := "package carbon\n" + content
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.cue"), []byte(src), 0o644))
	return dir
}

// execute runs cmd with args and returns stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
