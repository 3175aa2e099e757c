package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/studiomdl/compiler"
	"github.com/mogaika/studiomdl/config"
)

const boxSMD = `version 1
nodes
0 "root" -1
1 "lid" 0
end
skeleton
time 0
0 0 0 0 0 0 0
1 0 0 8 0 0 0
end
triangles
#white.bmp
0 0 0 0 0 0 1 0 0
0 8 0 0 0 0 1 1 0
1 0 8 8 0 0 1 0 1
end
`

const boxYAML = `
modelname: box.mdl
bodygroups:
  - name: body
    models: [{name: ref, file: box.smd}]
animations:
  - {name: closed, file: box.smd}
sequences:
  - {name: idle, animations: [closed], activity: 1}
`

func boxDir(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "box.smd"), []byte(boxSMD), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "box.yaml"), []byte(boxYAML), 0o644))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "studiomdl", cmd.Use)

	for _, name := range []string{"compile", "inspect", "preview"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)
}

func TestCompileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)

	output := compileCmd.Flags().Lookup("output")
	require.NotNil(t, output)
	assert.Equal(t, "o", output.Shorthand)
	assert.NotNil(t, compileCmd.Flags().Lookup("report"))
	assert.NotNil(t, compileCmd.Flags().Lookup("dump"))
}

func TestCompileCommand(t *testing.T) {
	dir := boxDir(t)
	out := filepath.Join(dir, "out")
	dump := filepath.Join(dir, "box.dump")

	stdout, err := execute(t, "compile", filepath.Join(dir, "box.yaml"), "-o", out, "--dump", dump)
	require.NoError(t, err)
	assert.Contains(t, stdout, "compiled box: 1 file(s)")

	data, err := os.ReadFile(filepath.Join(out, "box.mdl"))
	require.NoError(t, err)
	assert.Equal(t, "IDST", string(data[:4]))

	dumped, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.Contains(t, string(dumped), "closed")
}

func TestCompileCommandReport(t *testing.T) {
	dir := boxDir(t)

	stdout, err := execute(t, "compile", filepath.Join(dir, "box.yaml"), "--report", "-")
	require.NoError(t, err)

	var rep compiler.Report
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &rep))
	assert.Equal(t, "box", rep.Name)
	require.Len(t, rep.Files, 1)
	assert.Equal(t, "box.mdl", rep.Files[0].Name)
	assert.FileExists(t, filepath.Join(dir, "box.mdl"))
}

func TestOverrideOptions(t *testing.T) {
	cfg := config.DefaultOptions()
	cfg.SequenceGroupSize = 4096

	cmd := NewCompileCommand(&RootOptions{})
	require.NoError(t, cmd.ParseFlags([]string{"--collapse=false", "--boneweights"}))
	overrideOptions(cfg, &compileOptions{collapse: false, boneWeights: true, realign: false}, cmd)

	assert.False(t, cfg.Collapse)
	assert.True(t, cfg.BoneWeights)
	// not given on the command line
	assert.True(t, cfg.Realign)
	assert.Equal(t, 4096, cfg.SequenceGroupSize)
}

func TestCompileCommandErrors(t *testing.T) {
	dir := boxDir(t)

	_, err := execute(t, "compile", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = execute(t, "compile", filepath.Join(dir, "box.yaml"), "--options", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = execute(t, "compile")
	assert.Error(t, err)
}

func TestInspectCommand(t *testing.T) {
	dir := boxDir(t)
	_, err := execute(t, "compile", filepath.Join(dir, "box.yaml"))
	require.NoError(t, err)
	mdl := filepath.Join(dir, "box.mdl")

	stdout, err := execute(t, "inspect", mdl)
	require.NoError(t, err)
	assert.Contains(t, stdout, "ident: IDST")
	assert.Contains(t, stdout, "name: box")
	assert.Contains(t, stdout, "name: idle")

	stdout, err = execute(t, "inspect", "--tree", mdl)
	require.NoError(t, err)
	assert.Contains(t, stdout, "header")
	assert.Contains(t, stdout, "seqdesc")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.mdl"), []byte("junk"), 0o644))
	_, err = execute(t, "inspect", filepath.Join(dir, "junk.mdl"))
	assert.Error(t, err)
}

func TestPreviewCommand(t *testing.T) {
	dir := boxDir(t)
	_, err := execute(t, "compile", filepath.Join(dir, "box.yaml"))
	require.NoError(t, err)

	for _, src := range []string{"box.mdl", "box.yaml"} {
		t.Run(src, func(t *testing.T) {
			out := t.TempDir()
			stdout, err := execute(t, "preview", filepath.Join(dir, src), "-o", out)
			require.NoError(t, err)
			assert.Equal(t, 1, strings.Count(stdout, "\n"))

			data, err := os.ReadFile(filepath.Join(out, "#white.webp"))
			require.NoError(t, err)
			assert.Equal(t, "RIFF", string(data[:4]))
		})
	}
}

func TestPreviewName(t *testing.T) {
	assert.Equal(t, "skin.webp", previewName("skin.bmp"))
	assert.Equal(t, "arm.webp", previewName("textures\\arm.tga"))
	assert.Equal(t, "plain.webp", previewName("plain"))
}
