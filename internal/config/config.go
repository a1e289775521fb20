// Package config resolves platform targets and credentials from an
// optional config.yaml, with POSTKIT_* environment variables taking
// precedence over file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/blacktop/postkit/internal/publish"
	"gopkg.in/yaml.v3"
)

// Default structural limits per platform.
const (
	DefaultConfigFile       = "config.yaml"
	DefaultBlueskyCharLimit = 300
	DefaultMastodonLimit    = 500
	DefaultTwitterLimit     = 280
)

// Config mirrors config.yaml. A present section enables its target
// unless `enabled: false` is set explicitly.
type Config struct {
	Bluesky  *BlueskySection  `yaml:"bluesky"`
	Mastodon *MastodonSection `yaml:"mastodon"`
	Twitter  *TwitterSection  `yaml:"twitter"`
	Substack *SubstackSection `yaml:"substack"`
}

// BlueskySection configures the AT Protocol target.
type BlueskySection struct {
	Enabled     *bool  `yaml:"enabled"`
	CharLimit   int    `yaml:"char_limit"`
	Handle      string `yaml:"handle"`
	AppPassword string `yaml:"app_password"`
	PDSURL      string `yaml:"pds_url"`
}

// MastodonSection configures the Mastodon target.
type MastodonSection struct {
	Enabled      *bool  `yaml:"enabled"`
	CharLimit    int    `yaml:"char_limit"`
	Server       string `yaml:"server"`
	AccessToken  string `yaml:"access_token"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// TwitterSection configures the X target.
type TwitterSection struct {
	Enabled           *bool  `yaml:"enabled"`
	CharLimit         int    `yaml:"char_limit"`
	ConsumerKey       string `yaml:"consumer_key"`
	ConsumerSecret    string `yaml:"consumer_secret"`
	AccessToken       string `yaml:"access_token"`
	AccessTokenSecret string `yaml:"access_token_secret"`
}

// SubstackSection configures the publish-by-email target.
type SubstackSection struct {
	Enabled      *bool  `yaml:"enabled"`
	Email        string `yaml:"email"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
}

// Load reads the config file when it exists, then applies environment
// overrides. A missing file is not an error: targets may be configured
// from the environment alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only configuration
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if anyEnv("POSTKIT_BLUESKY_HANDLE", "POSTKIT_BLUESKY_APP_PASSWORD") && c.Bluesky == nil {
		c.Bluesky = &BlueskySection{}
	}
	if c.Bluesky != nil {
		override(&c.Bluesky.Handle, "POSTKIT_BLUESKY_HANDLE")
		override(&c.Bluesky.AppPassword, "POSTKIT_BLUESKY_APP_PASSWORD")
		override(&c.Bluesky.PDSURL, "POSTKIT_BLUESKY_PDS_URL")
	}

	if anyEnv("POSTKIT_MASTODON_SERVER", "POSTKIT_MASTODON_ACCESS_TOKEN") && c.Mastodon == nil {
		c.Mastodon = &MastodonSection{}
	}
	if c.Mastodon != nil {
		override(&c.Mastodon.Server, "POSTKIT_MASTODON_SERVER")
		override(&c.Mastodon.AccessToken, "POSTKIT_MASTODON_ACCESS_TOKEN")
		override(&c.Mastodon.ClientID, "POSTKIT_MASTODON_CLIENT_ID")
		override(&c.Mastodon.ClientSecret, "POSTKIT_MASTODON_CLIENT_SECRET")
	}

	if anyEnv("POSTKIT_TWITTER_CONSUMER_KEY", "POSTKIT_TWITTER_ACCESS_TOKEN") && c.Twitter == nil {
		c.Twitter = &TwitterSection{}
	}
	if c.Twitter != nil {
		override(&c.Twitter.ConsumerKey, "POSTKIT_TWITTER_CONSUMER_KEY")
		override(&c.Twitter.ConsumerSecret, "POSTKIT_TWITTER_CONSUMER_SECRET")
		override(&c.Twitter.AccessToken, "POSTKIT_TWITTER_ACCESS_TOKEN")
		override(&c.Twitter.AccessTokenSecret, "POSTKIT_TWITTER_ACCESS_TOKEN_SECRET")
	}

	if anyEnv("POSTKIT_SUBSTACK_EMAIL", "POSTKIT_SMTP_HOST") && c.Substack == nil {
		c.Substack = &SubstackSection{}
	}
	if c.Substack != nil {
		override(&c.Substack.Email, "POSTKIT_SUBSTACK_EMAIL")
		override(&c.Substack.SMTPHost, "POSTKIT_SMTP_HOST")
		override(&c.Substack.SMTPUser, "POSTKIT_SMTP_USER")
		override(&c.Substack.SMTPPassword, "POSTKIT_SMTP_PASSWORD")
		if port := strings.TrimSpace(os.Getenv("POSTKIT_SMTP_PORT")); port != "" {
			fmt.Sscanf(port, "%d", &c.Substack.SMTPPort)
		}
	}
}

// Targets resolves the configured targets in declaration order. The
// order is fixed so publish reports are deterministic.
func (c *Config) Targets() []publish.Target {
	var targets []publish.Target

	if c.Bluesky != nil {
		targets = append(targets, publish.Target{
			Name:    "bluesky",
			Enabled: enabled(c.Bluesky.Enabled),
			Limits: publish.Limits{
				CharLimit: limitOr(c.Bluesky.CharLimit, DefaultBlueskyCharLimit),
				Threading: true,
				Media:     true,
			},
			Credentials: map[string]string{
				"handle":       c.Bluesky.Handle,
				"app_password": c.Bluesky.AppPassword,
				"pds_url":      c.Bluesky.PDSURL,
			},
		})
	}

	if c.Mastodon != nil {
		targets = append(targets, publish.Target{
			Name:    "mastodon",
			Enabled: enabled(c.Mastodon.Enabled),
			Limits: publish.Limits{
				CharLimit: limitOr(c.Mastodon.CharLimit, DefaultMastodonLimit),
				Threading: true,
				Media:     true,
			},
			Credentials: map[string]string{
				"server":        c.Mastodon.Server,
				"access_token":  c.Mastodon.AccessToken,
				"client_id":     c.Mastodon.ClientID,
				"client_secret": c.Mastodon.ClientSecret,
			},
		})
	}

	if c.Twitter != nil {
		targets = append(targets, publish.Target{
			Name:    "twitter",
			Enabled: enabled(c.Twitter.Enabled),
			Limits: publish.Limits{
				CharLimit: limitOr(c.Twitter.CharLimit, DefaultTwitterLimit),
				Threading: true,
				Media:     true,
			},
			Credentials: map[string]string{
				"consumer_key":        c.Twitter.ConsumerKey,
				"consumer_secret":     c.Twitter.ConsumerSecret,
				"access_token":        c.Twitter.AccessToken,
				"access_token_secret": c.Twitter.AccessTokenSecret,
			},
		})
	}

	if c.Substack != nil {
		creds := map[string]string{
			"email":         c.Substack.Email,
			"smtp_host":     c.Substack.SMTPHost,
			"smtp_user":     c.Substack.SMTPUser,
			"smtp_password": c.Substack.SMTPPassword,
		}
		if c.Substack.SMTPPort != 0 {
			creds["smtp_port"] = fmt.Sprintf("%d", c.Substack.SMTPPort)
		}
		targets = append(targets, publish.Target{
			Name:    "substack",
			Enabled: enabled(c.Substack.Enabled),
			Limits: publish.Limits{
				Threading: false,
				Media:     true,
			},
			Credentials: creds,
		})
	}

	return targets
}

func enabled(flag *bool) bool {
	return flag == nil || *flag
}

func limitOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func override(field *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*field = value
	}
}

func anyEnv(keys ...string) bool {
	for _, key := range keys {
		if strings.TrimSpace(os.Getenv(key)) != "" {
			return true
		}
	}
	return false
}

const exampleConfig = `# postkit configuration. Environment variables (POSTKIT_*) override
# any value below; a section may be omitted entirely and configured
# from the environment instead.
bluesky:
  handle: your-handle.bsky.social
  app_password: your-app-password
  # pds_url: https://bsky.social
  # char_limit: 300

mastodon:
  server: https://mastodon.social
  access_token: your-access-token
  # char_limit: 500

twitter:
  enabled: false
  consumer_key: your-consumer-key
  consumer_secret: your-consumer-secret
  access_token: your-access-token
  access_token_secret: your-access-token-secret

substack:
  email: publication@substack.com
  smtp_host: smtp.gmail.com
  smtp_port: 587
  smtp_user: you@gmail.com
  smtp_password: your-app-password
`

// WriteExample writes a commented starter config next to the user.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	return os.WriteFile(path, []byte(exampleConfig), 0o600)
}
