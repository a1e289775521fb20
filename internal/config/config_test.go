package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
bluesky:
  handle: alice.bsky.social
  app_password: hunter2
mastodon:
  server: https://mastodon.social
  access_token: tok
substack:
  email: pub@substack.com
  smtp_host: smtp.example.com
  smtp_user: alice@example.com
  smtp_password: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	targets := cfg.Targets()
	require.Len(t, targets, 3)

	assert.Equal(t, "bluesky", targets[0].Name)
	assert.Equal(t, DefaultBlueskyCharLimit, targets[0].Limits.CharLimit)
	assert.True(t, targets[0].Limits.Threading)
	assert.Equal(t, "alice.bsky.social", targets[0].Credential("handle"))

	assert.Equal(t, "mastodon", targets[1].Name)
	assert.Equal(t, DefaultMastodonLimit, targets[1].Limits.CharLimit)

	assert.Equal(t, "substack", targets[2].Name)
	assert.False(t, targets[2].Limits.Threading)
	assert.Zero(t, targets[2].Limits.CharLimit)
}

func TestLoadCharLimitOverride(t *testing.T) {
	path := writeConfig(t, `
bluesky:
  handle: alice.bsky.social
  app_password: hunter2
  char_limit: 250
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	targets := cfg.Targets()
	require.Len(t, targets, 1)
	assert.Equal(t, 250, targets[0].Limits.CharLimit)
}

func TestLoadDisabledTarget(t *testing.T) {
	path := writeConfig(t, `
twitter:
  enabled: false
  consumer_key: k
  consumer_secret: s
  access_token: t
  access_token_secret: ts
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	targets := cfg.Targets()
	require.Len(t, targets, 1)
	assert.False(t, targets[0].Enabled)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
bluesky:
  handle: from-file.bsky.social
  app_password: file-password
`)
	t.Setenv("POSTKIT_BLUESKY_HANDLE", "from-env.bsky.social")

	cfg, err := Load(path)
	require.NoError(t, err)

	targets := cfg.Targets()
	require.Len(t, targets, 1)
	assert.Equal(t, "from-env.bsky.social", targets[0].Credential("handle"))
	assert.Equal(t, "file-password", targets[0].Credential("app_password"))
}

func TestEnvOnlyConfiguration(t *testing.T) {
	t.Setenv("POSTKIT_BLUESKY_HANDLE", "alice.bsky.social")
	t.Setenv("POSTKIT_BLUESKY_APP_PASSWORD", "hunter2")
	t.Setenv("POSTKIT_SMTP_HOST", "smtp.example.com")
	t.Setenv("POSTKIT_SMTP_PORT", "465")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	targets := cfg.Targets()
	require.Len(t, targets, 2)
	assert.Equal(t, "bluesky", targets[0].Name)
	assert.Equal(t, "substack", targets[1].Name)
	assert.Equal(t, "465", targets[1].Credential("smtp_port"))
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "bluesky: [not a map")
	_, err := Load(path)
	require.Error(t, err)
}

func TestWriteExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.example.yaml")
	require.NoError(t, WriteExample(path))

	// Refuses to clobber an existing file.
	require.Error(t, WriteExample(path))

	cfg, err := Load(path)
	require.NoError(t, err)

	targets := cfg.Targets()
	require.Len(t, targets, 4)
	for _, target := range targets {
		if target.Name == "twitter" {
			assert.False(t, target.Enabled, "starter config ships twitter disabled")
		}
	}
}
