package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRocofile = `
tasks:
  hello:
    desc: Say hello
    local: echo hello
namespaces:
  deploy:
    tasks:
      default:
        desc: Deploy the application
        local: echo deploying
`

func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HOSTS", "")
	t.Setenv("APP", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Roco.yaml"), []byte(testRocofile), 0o644))
	prevDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prevDir) })
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"tasks", "no-desc", "json", "hosts", "app", "config", "settings",
		"cwd", "debug", "quiet", "no-color", "no-summary", "log-format", "log-file", "timeout", "grace"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "T", cmd.Flags().Lookup("tasks").Shorthand)
	assert.Equal(t, Version, cmd.Version)
}

func TestLoadSettingsOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	logFile := filepath.Join(t.TempDir(), "roco.log")

	settings, err := loadSettings(&cliOptions{debug: true, logFormat: "json", logFile: logFile})
	require.NoError(t, err)
	assert.Equal(t, "debug", settings.Log.Level)
	assert.Equal(t, "json", settings.Log.Format)
	assert.Equal(t, "both", settings.Log.Output)
	assert.Equal(t, logFile, settings.Log.FilePath)
	assert.Equal(t, 5*time.Second, settings.Remote.GraceTimeout)
}

func TestLoadSettingsExplicitFileMissing(t *testing.T) {
	_, err := loadSettings(&cliOptions{settingsFile: filepath.Join(t.TempDir(), "none.yaml")})
	assert.Error(t, err)
}

func TestListTasks(t *testing.T) {
	setupProject(t)

	out, err := execute(t, "-T", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "Say hello")
	assert.Contains(t, out, "deploy")
}

func TestListTasksJSON(t *testing.T) {
	setupProject(t)

	out, err := execute(t, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"hello"`)
}

func TestPerformTask(t *testing.T) {
	setupProject(t)

	out, err := execute(t, "--no-color", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, `executing "echo hello"`)
}

func TestPerformNamespaceDefaultWithEnvironment(t *testing.T) {
	setupProject(t)

	out, err := execute(t, "--no-color", "staging", "deploy")
	require.NoError(t, err)
	assert.Contains(t, out, "running in staging mode")
	assert.Contains(t, out, "deploying")
}
