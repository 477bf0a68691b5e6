package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/firebird-suite/weaver"
	"github.com/simonhull/firebird-suite/weaver/internal/fileop"
	"github.com/simonhull/firebird-suite/weaver/pkg/format"
	"github.com/simonhull/firebird-suite/weaver/pkg/walker"
)

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := RootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// project writes a root with a source and an include directory
func project(t *testing.T) (root, inc string) {
	t.Helper()
	root = t.TempDir()
	files := map[string]string{
		"src/main.c":       "#include <stdio.h>\n#include \"util.h\"\n#include <lib/api.h>\n",
		"src/util.h":       "#pragma once\n",
		"inc/lib/api.h":    "#include \"detail.h\"\n",
		"inc/lib/detail.h": "",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root, filepath.Join(root, "inc")
}

func TestRoot_UnknownOption(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"--xyz"}, want: "unrecognised option '--xyz'"},
		{args: []string{"--xyz=1", "."}, want: "unrecognised option '--xyz'"},
		{args: []string{"-q"}, want: "unrecognised option '-q'"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			stdout, _, err := runCmd(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
			assert.Empty(t, stdout)
		})
	}
}

func TestRoot_Help(t *testing.T) {
	for _, flag := range []string{"-h", "--help"} {
		stdout, _, err := runCmd(t, flag)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Options:")
		assert.Contains(t, stdout, "--include")
		assert.Contains(t, stdout, "--ext .x")
		assert.Contains(t, stdout, "--dry-run")
	}
}

func TestRoot_Version(t *testing.T) {
	for _, flag := range []string{"-v", "--version"} {
		stdout, _, err := runCmd(t, flag)
		require.NoError(t, err)
		assert.Equal(t, "Weaver Version "+weaver.Version+"\n", stdout)
	}
}

func TestRoot_DefaultFormatIsDOT(t *testing.T) {
	root, inc := project(t)

	implicit, _, err := runCmd(t, "-I", inc, root)
	require.NoError(t, err)
	explicit, _, err := runCmd(t, "-f", "dot", "-I", inc, root)
	require.NoError(t, err)

	assert.Equal(t, explicit, implicit)
	assert.True(t, strings.HasPrefix(implicit, "strict digraph {\n"), implicit)
	assert.Contains(t, implicit, `[label="src/main.c"]`)
	assert.Contains(t, implicit, `[label="stdio.h"]`)
	assert.Contains(t, implicit, `[label="inc/lib/api.h"]`)
}

func TestRoot_GraphML(t *testing.T) {
	root, inc := project(t)

	stdout, _, err := runCmd(t, "-f", "xml", "-I", inc, root)
	require.NoError(t, err)

	assert.Contains(t, stdout, `<key id="key1"`)
	assert.Contains(t, stdout, `<graph id="G" edgedefault="directed">`)
	assert.Contains(t, stdout, "src/main.c")
}

func TestRoot_Deterministic(t *testing.T) {
	root, inc := project(t)

	first, _, err := runCmd(t, "-j", "1", "-I", inc, root)
	require.NoError(t, err)
	second, _, err := runCmd(t, "-j", "8", "-I", inc, root)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRoot_NoValidRoot(t *testing.T) {
	stdout, _, err := runCmd(t, filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, walker.ErrNoValidRoot)
	assert.Empty(t, stdout)

	_, _, err = runCmd(t)
	assert.ErrorIs(t, err, walker.ErrNoValidRoot)
}

func TestRoot_InvalidFormat(t *testing.T) {
	stdout, _, err := runCmd(t, "-f", "svg", filepath.Join(t.TempDir(), "missing"))

	// The format is checked before any root is looked at.
	assert.ErrorIs(t, err, format.ErrUnknownFormat)
	assert.NotErrorIs(t, err, walker.ErrNoValidRoot)
	assert.Empty(t, stdout)
}

func TestRoot_FormatIsCaseInsensitive(t *testing.T) {
	root, inc := project(t)

	upper, _, err := runCmd(t, "-f", "DOT", "-I", inc, root)
	require.NoError(t, err)
	lower, _, err := runCmd(t, "-f", "dot", "-I", inc, root)
	require.NoError(t, err)
	assert.Equal(t, lower, upper)

	graphml, _, err := runCmd(t, "-f", "GraphML", "-I", inc, root)
	require.NoError(t, err)
	assert.Contains(t, graphml, "<graphml")
}

func TestRoot_DryRun(t *testing.T) {
	root, inc := project(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "graphs", "deps.dot")
	prom := filepath.Join(dir, "weaver.prom")

	stdout, stderr, err := runCmd(t, "--dry-run", "-I", inc, "-o", out, "--metrics-file", prom, root)
	require.NoError(t, err)

	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Dry run: 5 nodes (1 unresolved), 4 edges")
	assert.Contains(t, stderr, "[DRY RUN] Write "+out)
	assert.Contains(t, stderr, "metrics: "+prom)
	assert.NoDirExists(t, filepath.Join(dir, "graphs"))
	assert.NoFileExists(t, prom)

	stdout, stderr, err = runCmd(t, "--dry-run", "-f", "xml", "-I", inc, root)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "bytes of xml")
}

func TestRoot_DryRunStillRefusesOverwrite(t *testing.T) {
	root, inc := project(t)
	out := filepath.Join(t.TempDir(), "deps.dot")
	require.NoError(t, os.WriteFile(out, []byte("keep"), 0644))

	_, _, err := runCmd(t, "--dry-run", "-I", inc, "-o", out, root)
	assert.ErrorIs(t, err, fileop.ErrExists)
}

func TestRoot_OutFile(t *testing.T) {
	root, inc := project(t)
	out := filepath.Join(t.TempDir(), "graphs", "deps.dot")

	stdout, stderr, err := runCmd(t, "-I", inc, "-o", out, root)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Wrote")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "strict digraph {"))

	_, _, err = runCmd(t, "-I", inc, "-o", out, root)
	assert.ErrorIs(t, err, fileop.ErrExists)

	_, _, err = runCmd(t, "-I", inc, "-o", out, "--force", "-f", "xml", root)
	require.NoError(t, err)
	data, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<graphml")
}

func TestRoot_MetricsFile(t *testing.T) {
	root, inc := project(t)
	prom := filepath.Join(t.TempDir(), "weaver.prom")

	_, _, err := runCmd(t, "-I", inc, "--metrics-file", prom, root)
	require.NoError(t, err)

	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(data), "weaver_walker_files_scanned_total 4")
	assert.Contains(t, string(data), "weaver_graph_edges 4")
}

func TestRoot_ExcludeAndParser(t *testing.T) {
	root, inc := project(t)

	stdout, _, err := runCmd(t, "--parser", "treesitter", "-e", "inc/", "-I", inc, root)
	require.NoError(t, err)

	// inc/lib/api.h is still reached through the search path, but
	// inc/lib/detail.h is no longer scanned as a file of its own.
	assert.Contains(t, stdout, `[label="inc/lib/api.h"]`)
	assert.NotContains(t, stdout, `[label="inc/lib/detail.h"]`)
}

func TestRoot_DumpConfig(t *testing.T) {
	stdout, _, err := runCmd(t, "--dump-config", "-f", "xml", "-I", "inc", "src")
	require.NoError(t, err)

	assert.Contains(t, stdout, "format: xml\n")
	assert.Contains(t, stdout, "roots:\n  - src\n")
	assert.Contains(t, stdout, "include:\n  - inc\n")
}

func TestRoot_ConfigFile(t *testing.T) {
	root, inc := project(t)
	cfgPath := filepath.Join(t.TempDir(), "weaver.yaml")
	yml := "format: xml\nroots:\n  - " + root + "\ninclude:\n  - " + inc + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yml), 0644))

	stdout, _, err := runCmd(t, "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "<graphml")
	assert.Contains(t, stdout, "inc/lib/api.h")
}
