// Package substack delivers long-form content to a Substack publication
// via its publish-by-email address.
package substack

import (
	"context"
	"fmt"
	"html"
	"path/filepath"
	"strconv"
	"time"

	"github.com/blacktop/postkit/internal/logutil"
	"github.com/blacktop/postkit/internal/publish"
	mail "github.com/wneessen/go-mail"
)

const (
	providerName = "substack"
	sendTimeout  = 60 * time.Second
)

// Client sends one HTML email per document.
type Client struct {
	publicationEmail string
	smtpHost         string
	smtpPort         int
	smtpUser         string
	smtpPassword     string
}

// New constructs a Substack publisher from target credentials.
func New(_ context.Context, target publish.Target) (publish.Publisher, error) {
	c := &Client{
		publicationEmail: target.Credential("email"),
		smtpHost:         target.Credential("smtp_host"),
		smtpUser:         target.Credential("smtp_user"),
		smtpPassword:     target.Credential("smtp_password"),
	}

	var missing []string
	if c.publicationEmail == "" {
		missing = append(missing, "email")
	}
	if c.smtpHost == "" {
		missing = append(missing, "smtp_host")
	}
	if c.smtpUser == "" {
		missing = append(missing, "smtp_user")
	}
	if c.smtpPassword == "" {
		missing = append(missing, "smtp_password")
	}
	if len(missing) > 0 {
		return nil, publish.MissingCredentialsError{Provider: providerName, Keys: missing}
	}

	c.smtpPort = 587
	if port := target.Credential("smtp_port"); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil {
			return nil, publish.ValidationError{Provider: providerName, Reason: fmt.Sprintf("invalid smtp_port %q", port)}
		}
		c.smtpPort = parsed
	}

	return c, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Publish sends the single long-form unit as an HTML email. Substack is
// a non-threading target, so the normalizer always produces exactly one
// unit regardless of body length.
func (c *Client) Publish(ctx context.Context, doc publish.Document, units []publish.Payload) error {
	if len(units) != 1 {
		return publish.ValidationError{Provider: providerName, Reason: fmt.Sprintf("expected one unit, got %d", len(units))}
	}
	unit := units[0]

	cover := coverImage(doc, unit)

	msg := mail.NewMsg()
	if err := msg.From(c.smtpUser); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(c.publicationEmail); err != nil {
		return fmt.Errorf("set to: %w", err)
	}

	subject := doc.ResolvedTitle()
	if subject == "" {
		subject = "Untitled Post"
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, buildEmail(subject, unit.Text, cover))

	if cover != nil {
		msg.EmbedFile(cover.Path)
	}

	client, err := mail.NewClient(c.smtpHost,
		mail.WithPort(c.smtpPort),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(c.smtpUser),
		mail.WithPassword(c.smtpPassword),
		mail.WithTimeout(sendTimeout),
	)
	if err != nil {
		return fmt.Errorf("create mail client: %w", err)
	}

	logutil.Debugf("sending email to %s via %s:%d", c.publicationEmail, c.smtpHost, c.smtpPort)
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}

// coverImage picks the first image ref when the unit carries media.
func coverImage(doc publish.Document, unit publish.Payload) *publish.MediaRef {
	if !unit.HasMedia {
		return nil
	}
	for i := range doc.Media {
		if doc.Media[i].Kind == publish.MediaImage {
			return &doc.Media[i]
		}
	}
	return nil
}

// buildEmail wraps rendered content in the HTML email shell. The cover
// image, when present, references the embedded attachment by content ID.
func buildEmail(title, content string, cover *publish.MediaRef) string {
	coverHTML := ""
	if cover != nil {
		coverHTML = fmt.Sprintf("<img src=%q alt=%q>\n", "cid:"+filepath.Base(cover.Path), cover.Alt)
	}
	return fmt.Sprintf(emailTemplate, html.EscapeString(title), coverHTML, content)
}

const emailTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
body {
  font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
  line-height: 1.6;
  color: #333;
  max-width: 680px;
  margin: 0 auto;
  padding: 20px;
}
h1 { font-size: 2em; margin-bottom: 0.5em; }
h2 { font-size: 1.5em; margin-top: 1.5em; }
img { max-width: 100%%; height: auto; }
</style>
</head>
<body>
<h1>%s</h1>
%s%s
</body>
</html>
`
