package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DB_HOST", "DB_NAME", "DB_USER", "DB_PWD", "DB_TOKEN", "DB_TIMEOUT", "DOCGRAPH_BACKEND"} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_NoFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, BackendArango, cfg.Backend)
	assert.Equal(t, DefaultURL, cfg.Arango.URL)
	assert.Equal(t, DefaultDatabase, cfg.Arango.Database)
	assert.Equal(t, DefaultUser, cfg.Arango.User)
	assert.Equal(t, DefaultPassword, cfg.Arango.Password)
	assert.Equal(t, DefaultTimeout, cfg.Arango.Timeout)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
}

func TestLoad_ReadsYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "docgraph.yaml", `
backend: kuzu
kuzu:
  path: /tmp/got.kuzu
batchSize: 25
logLevel: debug
arango:
  timeout: 5s
schema:
  - name: Character
    properties:
      - {name: name, type: STRING}
  - name: ChildOf
    edge: true
    from: Character
    to: Character
`)
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, BackendKuzu, cfg.Backend)
	assert.Equal(t, "/tmp/got.kuzu", cfg.Kuzu.Path)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Arango.Timeout)
	require.Len(t, cfg.Schema, 2)
	assert.Equal(t, "STRING", cfg.Schema[0].Properties[0].Type)
	assert.True(t, cfg.Schema[1].Edge)
	assert.Equal(t, "Character", cfg.Schema[1].From)
}

func TestLoad_PrefersYML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "docgraph.yml", "backend: memory\n")
	writeFile(t, dir, "docgraph.yaml", "backend: kuzu\n")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "docgraph.yml", `
arango:
  url: http://file:8529
  database: fromfile
`)
	t.Setenv("DB_HOST", "http://env:8529")
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PWD", "secret")
	t.Setenv("DB_TIMEOUT", "7")
	t.Setenv("DOCGRAPH_BACKEND", "memory")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://env:8529", cfg.Arango.URL)
	assert.Equal(t, "fromfile", cfg.Arango.Database)
	assert.Equal(t, "root", cfg.Arango.User)
	assert.Equal(t, "secret", cfg.Arango.Password)
	assert.Equal(t, 7*time.Second, cfg.Arango.Timeout)
	assert.Equal(t, BackendMemory, cfg.Backend)
}

func TestLoad_TokenSkipsDefaultCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_TOKEN", "jwt")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "jwt", cfg.Arango.Token)
	assert.Empty(t, cfg.Arango.User)
	assert.Empty(t, cfg.Arango.Password)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	writeFile(t, dir, "docgraph.yml", "backend: [unclosed\n")
	_, err := Load(dir)
	assert.Error(t, err)

	dir = t.TempDir()
	writeFile(t, dir, "docgraph.yml", "backend: postgres\n")
	_, err = Load(dir)
	assert.ErrorContains(t, err, `unknown backend "postgres"`)

	t.Setenv("DB_TIMEOUT", "soon")
	_, err = Load(t.TempDir())
	assert.ErrorContains(t, err, "DB_TIMEOUT")
}

func TestLoadFile_Missing(t *testing.T) {
	clearEnv(t)
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
