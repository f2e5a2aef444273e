package activation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/pkg-acceptor/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParseShellKind(t *testing.T) {
	for _, name := range []string{"bash", "sh", "POSIX"} {
		kind, err := ParseShellKind(name)
		require.NoError(t, err)
		assert.Equal(t, ShellPosix, kind)
	}
	kind, err := ParseShellKind("cmd")
	require.NoError(t, err)
	assert.Equal(t, ShellCmdExe, kind)

	for _, name := range []string{"zsh", "fish", "powershell", ""} {
		_, err := ParseShellKind(name)
		require.ErrorIs(t, err, ErrUnsupportedShell, name)
		var unsupported *UnsupportedShellError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, name, unsupported.Name)
	}
}

func TestShellKindProperties(t *testing.T) {
	assert.Equal(t, "sh", ShellPosix.Extension())
	assert.Equal(t, "bat", ShellCmdExe.Extension())
	assert.Equal(t, []string{"/tmp/x.sh"}, ShellPosix.Args("/tmp/x.sh"))
	assert.Equal(t, []string{"/d", "/c", `C:\x.bat`}, ShellCmdExe.Args(`C:\x.bat`))
	assert.Equal(t, ShellCmdExe, DefaultShell(types.PlatformWin64))
	assert.Equal(t, ShellPosix, DefaultShell(types.PlatformOsxArm64))
	assert.ErrorIs(t, ShellKind("fish").Validate(), ErrUnsupportedShell)
}

func TestScriptRendering(t *testing.T) {
	posix := NewScript(ShellPosix).
		SetEnv("A", `say "hi" $HOME`).
		UnsetEnv("B").
		Source("/env/etc/conda/activate.d/x.sh").
		AppendLine("echo done")
	assert.Equal(t,
		"export A=\"say \\\"hi\\\" \\$HOME\"\nunset B\n. \"/env/etc/conda/activate.d/x.sh\"\necho done\n",
		posix.String())

	cmd := NewScript(ShellCmdExe).
		SetEnv("A", "1").
		UnsetEnv("B").
		Source(`C:\env\etc\conda\activate.d\x.bat`)
	assert.Equal(t,
		"@SET \"A=1\"\n@SET B=\n@CALL \"C:\\env\\etc\\conda\\activate.d\\x.bat\"\n",
		cmd.String())
}

func TestContextFromEnviron(t *testing.T) {
	ctx := ContextFromEnviron([]string{
		"PATH=/usr/local/bin::/usr/bin",
		"CONDA_PREFIX=/opt/conda",
		"LANG=C.UTF-8",
		"SECRET=hidden",
		"malformed",
	}, types.PlatformLinux64)

	assert.Equal(t, []string{"/usr/local/bin", "/usr/bin"}, ctx.Path)
	assert.Equal(t, "/opt/conda", ctx.CondaPrefix)
	assert.Equal(t, map[string]string{"LANG": "C.UTF-8"}, ctx.Env)
	assert.Equal(t, types.PlatformLinux64, ctx.Platform)
	assert.Positive(t, ctx.CPUCount)

	win := ContextFromEnviron([]string{`Path=C:\Windows;C:\tools`}, types.PlatformWin64)
	assert.Equal(t, []string{`C:\Windows`, `C:\tools`}, win.Path)
	assert.Empty(t, win.CondaPrefix)
}

func TestOSVars(t *testing.T) {
	ctx := Context{CPUCount: 4, Path: []string{"/usr/bin"}, Env: map[string]string{"MAKEFLAGS": "-j4", "HOME": "/home/ci"}}

	toMap := func(vars []EnvVar) map[string]string {
		m := make(map[string]string)
		for _, v := range vars {
			m[v.Key] = v.Value
		}
		return m
	}

	linux := OSVars("/env", types.PlatformLinux64, ctx)
	lm := toMap(linux)
	assert.Equal(t, "4", lm["CPU_COUNT"])
	assert.Equal(t, ".so", lm["SHLIB_EXT"])
	assert.Equal(t, "/usr/bin", lm["PATH"])
	assert.Equal(t, "-j4", lm["MAKEFLAGS"])
	assert.Equal(t, "/home/ci", lm["HOME"])
	assert.Equal(t, "x86_64-conda-linux-gnu", lm["BUILD"])
	for i := 1; i < len(linux); i++ {
		assert.Less(t, linux[i-1].Key, linux[i].Key, "vars should be sorted")
	}

	osx := toMap(OSVars("/env", types.PlatformOsxArm64, ctx))
	assert.Equal(t, "arm64", osx["OSX_ARCH"])
	assert.Equal(t, "11.0", osx["MACOSX_DEPLOYMENT_TARGET"])
	assert.Equal(t, ".dylib", osx["SHLIB_EXT"])

	win := toMap(OSVars(`C:\env`, types.PlatformWin64, ctx))
	assert.Equal(t, `C:\env\Library`, win["LIBRARY_PREFIX"])
	assert.Equal(t, `C:\env\Library\bin`, win["LIBRARY_BIN"])
	assert.Equal(t, `C:\env\Scripts`, win["SCRIPTS"])
	assert.Equal(t, ".dll", win["SHLIB_EXT"])
}

func TestSynthesizeOrdering(t *testing.T) {
	root := t.TempDir()
	previous := t.TempDir()
	writeFile(t, filepath.Join(root, "etc", "conda", "activate.d", "20-second.sh"), "")
	writeFile(t, filepath.Join(root, "etc", "conda", "activate.d", "10-first.sh"), "")
	writeFile(t, filepath.Join(root, "etc", "conda", "activate.d", "ignored.bat"), "")
	writeFile(t, filepath.Join(root, "etc", "conda", "env_vars.d", "vars.json"), `{"FOO": "bar"}`)
	writeFile(t, filepath.Join(root, "conda-meta", "state"), `{"env_vars": {"FOO": "state", "BAZ": "1"}}`)
	writeFile(t, filepath.Join(previous, "etc", "conda", "deactivate.d", "off.sh"), "")
	writeFile(t, filepath.Join(previous, "etc", "conda", "env_vars.d", "old.json"), `{"OLD": "x"}`)

	ctx := Context{
		Path:        []string{filepath.Join(previous, "bin"), "/usr/bin"},
		CondaPrefix: previous,
		Platform:    types.PlatformLinux64,
		CPUCount:    2,
	}

	text, err := Synthesize(ShellPosix, ctx, root, "echo hello")
	require.NoError(t, err)

	order := []string{
		"export CPU_COUNT=\"2\"",
		"export PREFIX=\"" + root + "\"",
		"unset OLD",
		". \"" + filepath.Join(previous, "etc", "conda", "deactivate.d", "off.sh") + "\"",
		"export PATH=\"" + filepath.Join(root, "bin") + ":/usr/bin\"",
		"export CONDA_PREFIX=\"" + root + "\"",
		"export BAZ=\"1\"",
		"export FOO=\"state\"",
		". \"" + filepath.Join(root, "etc", "conda", "activate.d", "10-first.sh") + "\"",
		". \"" + filepath.Join(root, "etc", "conda", "activate.d", "20-second.sh") + "\"",
		"echo hello",
	}
	last := -1
	for _, line := range order {
		idx := strings.Index(text, line)
		require.GreaterOrEqual(t, idx, 0, "missing %q in:\n%s", line, text)
		assert.Greater(t, idx, last, "%q out of order in:\n%s", line, text)
		last = idx
	}

	assert.Equal(t, 1, strings.Count(text, "export PATH="), "PATH is only set by the activation")
	assert.NotContains(t, text, "ignored.bat")
	assert.True(t, strings.HasSuffix(text, "echo hello\n"))
}

func TestSynthesizeCmdExe(t *testing.T) {
	root := `C:\envs\test`
	ctx := Context{Path: []string{`C:\Windows`}, Platform: types.PlatformWin64, CPUCount: 1}

	text, err := Synthesize(ShellCmdExe, ctx, root, "@CALL run_test.bat")
	require.NoError(t, err)
	assert.Contains(t, text, "@SET \"PREFIX="+root+"\"")
	assert.Contains(t, text, "@SET \"Path="+root+`;C:\envs\test\Library\mingw-w64\bin`)
	assert.Contains(t, text, `;C:\Windows"`)
	assert.NotContains(t, text, "export ")
	assert.True(t, strings.HasSuffix(text, "@CALL run_test.bat\n"))
}

func TestSynthesizeUnsupportedShell(t *testing.T) {
	_, err := Synthesize(ShellKind("zsh"), Context{Platform: types.PlatformLinux64}, t.TempDir(), "true")
	assert.ErrorIs(t, err, ErrUnsupportedShell)
}

func TestActivationErrors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "etc", "conda", "env_vars.d", "broken.json"), `{not json`)

	_, err := Synthesize(ShellPosix, Context{Platform: types.PlatformLinux64}, root, "true")
	require.Error(t, err)
	var activationErr *ActivationError
	require.ErrorAs(t, err, &activationErr)
	assert.Equal(t, root, activationErr.Prefix)
}

func TestActivatorWithoutCondaPrefixKeepsPath(t *testing.T) {
	root := t.TempDir()
	a, err := NewActivator(root, ShellPosix, types.PlatformLinux64)
	require.NoError(t, err)

	res, err := a.Activation(Variables{Path: []string{"/usr/bin", filepath.Join(root, "bin")}})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "bin"), "/usr/bin"}, res.Path, "prefix paths are not duplicated")
}

func TestWriteScript(t *testing.T) {
	for _, shell := range []ShellKind{ShellPosix, ShellCmdExe} {
		path, err := WriteScript(shell, "echo hi\n")
		require.NoError(t, err)
		t.Cleanup(func() { _ = os.Remove(path) })

		assert.Equal(t, "."+shell.Extension(), filepath.Ext(path))
		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "echo hi\n", string(content))
	}
}
