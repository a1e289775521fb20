package bluesky

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/blacktop/postkit/internal/logutil"
	"github.com/blacktop/postkit/internal/publish"
	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
)

const (
	providerName   = "bluesky"
	defaultPDSURL  = "https://bsky.social"
	requestTimeout = 30 * time.Second

	// Pause between thread units so replies land in order server-side.
	replyPace = time.Second
)

// Client implements publish.Publisher for AT Protocol personal data servers.
type Client struct {
	client *xrpc.Client
}

// New authenticates against the configured PDS and returns a thread
// publisher. The same session serves every unit of a thread.
func New(ctx context.Context, target publish.Target) (publish.Publisher, error) {
	handle := target.Credential("handle")
	password := target.Credential("app_password")
	pdsURL := target.Credential("pds_url")
	if pdsURL == "" {
		pdsURL = defaultPDSURL
	}

	var missing []string
	if handle == "" {
		missing = append(missing, "handle")
	}
	if password == "" {
		missing = append(missing, "app_password")
	}
	if len(missing) > 0 {
		return nil, publish.MissingCredentialsError{Provider: providerName, Keys: missing}
	}

	userAgent := "postkit/1"
	xrpcClient := &xrpc.Client{
		Client:    &http.Client{Timeout: requestTimeout},
		Host:      pdsURL,
		UserAgent: &userAgent,
	}

	session, err := atproto.ServerCreateSession(ctx, xrpcClient, &atproto.ServerCreateSession_Input{
		Identifier: handle,
		Password:   password,
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	xrpcClient.Auth = &xrpc.AuthInfo{
		AccessJwt:  session.AccessJwt,
		RefreshJwt: session.RefreshJwt,
		Handle:     session.Handle,
		Did:        session.Did,
	}

	return &Client{client: xrpcClient}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Publish posts the units as a thread. The first unit becomes the root
// post (carrying the image embed when flagged); every later unit replies
// to its predecessor and references the root.
func (c *Client) Publish(ctx context.Context, doc publish.Document, units []publish.Payload) error {
	var embed *bsky.FeedPost_Embed
	if len(units) > 0 && units[0].HasMedia {
		images, err := c.uploadImages(ctx, doc.Media)
		if err != nil {
			return err
		}
		if len(images) > 0 {
			embed = &bsky.FeedPost_Embed{
				EmbedImages: &bsky.EmbedImages{Images: images},
			}
		}
	}

	var root, parent *atproto.RepoStrongRef
	for i, unit := range units {
		post := &bsky.FeedPost{
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
			Text:      unit.Text,
		}
		if i == 0 {
			post.Embed = embed
		} else {
			post.Reply = &bsky.FeedPost_ReplyRef{Root: root, Parent: parent}
		}

		resp, err := atproto.RepoCreateRecord(ctx, c.client, &atproto.RepoCreateRecord_Input{
			Collection: "app.bsky.feed.post",
			Repo:       c.client.Auth.Did,
			Record:     &util.LexiconTypeDecoder{Val: post},
		})
		if err != nil {
			if i > 0 {
				return publish.ThreadError{Provider: providerName, Delivered: i, Err: err}
			}
			return fmt.Errorf("create record: %w", err)
		}
		logutil.Debugf("bluesky unit %d posted: %s", i, resp.Uri)

		ref := &atproto.RepoStrongRef{Cid: resp.Cid, Uri: resp.Uri}
		if root == nil {
			root = ref
		}
		parent = ref

		if !unit.Final {
			if err := pace(ctx, replyPace); err != nil {
				return publish.ThreadError{Provider: providerName, Delivered: i + 1, Err: err}
			}
		}
	}

	return nil
}

func (c *Client) uploadImages(ctx context.Context, media []publish.MediaRef) ([]*bsky.EmbedImages_Image, error) {
	var images []*bsky.EmbedImages_Image
	for _, ref := range media {
		if ref.Kind != publish.MediaImage {
			logutil.Debugf("bluesky: skipping %s attachment %q", ref.Kind, ref.Path)
			continue
		}
		blob, err := c.uploadBlob(ctx, ref.Path)
		if err != nil {
			return nil, err
		}
		images = append(images, &bsky.EmbedImages_Image{Alt: ref.Alt, Image: blob})
	}
	return images, nil
}

func (c *Client) uploadBlob(ctx context.Context, path string) (*util.LexBlob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, publish.ValidationError{Provider: providerName, Reason: fmt.Sprintf("image %q not found", path)}
		}
		return nil, fmt.Errorf("read image: %w", err)
	}

	resp, err := atproto.RepoUploadBlob(ctx, c.client, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}
	if resp.Blob == nil {
		return nil, fmt.Errorf("upload blob: empty response")
	}

	return resp.Blob, nil
}

func pace(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
