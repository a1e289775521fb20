package substack

import (
	"context"
	"testing"

	"github.com/blacktop/postkit/internal/publish"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func substackTarget(creds map[string]string) publish.Target {
	return publish.Target{
		Name:        "substack",
		Enabled:     true,
		Limits:      publish.Limits{Threading: false, Media: true},
		Credentials: creds,
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), substackTarget(map[string]string{
		"email": "pub@substack.com",
	}))
	require.Error(t, err)

	var missing publish.MissingCredentialsError
	require.ErrorAs(t, err, &missing)
	assert.ElementsMatch(t, []string{"smtp_host", "smtp_user", "smtp_password"}, missing.Keys)
}

func TestNewRejectsBadPort(t *testing.T) {
	_, err := New(context.Background(), substackTarget(map[string]string{
		"email":         "pub@substack.com",
		"smtp_host":     "smtp.example.com",
		"smtp_user":     "me@example.com",
		"smtp_password": "secret",
		"smtp_port":     "not-a-port",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp_port")
}

func TestBuildEmail(t *testing.T) {
	html := buildEmail("My Post", "<p>body</p>", nil)
	assert.Contains(t, html, "<h1>My Post</h1>")
	assert.Contains(t, html, "<p>body</p>")
	assert.NotContains(t, html, "cid:")

	cover := &publish.MediaRef{Kind: publish.MediaImage, Path: "/tmp/cover.png", Alt: "the cover"}
	html = buildEmail("A <Post>", "<p>body</p>", cover)
	assert.Contains(t, html, `cid:cover.png`)
	assert.Contains(t, html, `alt="the cover"`)
	assert.Contains(t, html, "A &lt;Post&gt;", "title is escaped")
}

func TestCoverImage(t *testing.T) {
	doc := publish.Document{Media: []publish.MediaRef{
		{Kind: publish.MediaVideo, Path: "clip.mp4"},
		{Kind: publish.MediaImage, Path: "cover.png"},
	}}

	got := coverImage(doc, publish.Payload{HasMedia: true})
	require.NotNil(t, got)
	assert.Equal(t, "cover.png", got.Path)

	assert.Nil(t, coverImage(doc, publish.Payload{HasMedia: false}))
	assert.Nil(t, coverImage(publish.Document{}, publish.Payload{HasMedia: true}))
}
