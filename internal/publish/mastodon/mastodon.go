package mastodon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/blacktop/postkit/internal/logutil"
	"github.com/blacktop/postkit/internal/publish"
	mastodonapi "github.com/mattn/go-mastodon"
)

const (
	providerName   = "mastodon"
	requestTimeout = 30 * time.Second
)

// Client wraps the Mastodon API client with postkit thread semantics.
type Client struct {
	client *mastodonapi.Client
}

// New constructs a Mastodon publisher from target credentials.
func New(ctx context.Context, target publish.Target) (publish.Publisher, error) {
	server := target.Credential("server")
	accessToken := target.Credential("access_token")

	var missing []string
	if server == "" {
		missing = append(missing, "server")
	}
	if accessToken == "" {
		missing = append(missing, "access_token")
	}
	if len(missing) > 0 {
		return nil, publish.MissingCredentialsError{Provider: providerName, Keys: missing}
	}

	mastodonClient := mastodonapi.NewClient(&mastodonapi.Config{
		Server:       server,
		AccessToken:  accessToken,
		ClientID:     target.Credential("client_id"),
		ClientSecret: target.Credential("client_secret"),
	})
	mastodonClient.Timeout = requestTimeout

	return &Client{client: mastodonClient}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Publish posts the units as a reply chain of toots. Media attaches to
// the first status only.
func (c *Client) Publish(ctx context.Context, doc publish.Document, units []publish.Payload) error {
	var mediaIDs []mastodonapi.ID
	if len(units) > 0 && units[0].HasMedia {
		ids, err := c.uploadMedia(ctx, doc.Media)
		if err != nil {
			return err
		}
		mediaIDs = ids
	}

	var parentID mastodonapi.ID
	for i, unit := range units {
		toot := &mastodonapi.Toot{
			Status:      unit.Text,
			InReplyToID: parentID,
		}
		if i == 0 {
			toot.MediaIDs = mediaIDs
		}

		status, err := c.client.PostStatus(ctx, toot)
		if err != nil {
			if i > 0 {
				return publish.ThreadError{Provider: providerName, Delivered: i, Err: err}
			}
			return fmt.Errorf("post status: %w", err)
		}
		logutil.Debugf("mastodon unit %d posted: %s", i, status.ID)
		parentID = status.ID
	}

	return nil
}

func (c *Client) uploadMedia(ctx context.Context, media []publish.MediaRef) ([]mastodonapi.ID, error) {
	var ids []mastodonapi.ID
	for _, ref := range media {
		file, err := os.Open(ref.Path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, publish.ValidationError{Provider: providerName, Reason: fmt.Sprintf("media %q not found", ref.Path)}
			}
			return nil, fmt.Errorf("open media: %w", err)
		}

		attachment, err := c.client.UploadMediaFromMedia(ctx, &mastodonapi.Media{
			File:        file,
			Description: ref.Alt,
		})
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("upload media: %w", err)
		}
		ids = append(ids, attachment.ID)
	}
	return ids, nil
}
