package publish

import (
	"context"
	"strings"
)

// MediaKind identifies the type of an attached media resource.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaRef points at a local media resource owned by a Document.
type MediaRef struct {
	Kind MediaKind
	Path string
	Alt  string
}

// Document is the canonical parsed representation of an authored post.
// It is treated as read-only once constructed.
type Document struct {
	Title string
	Short string
	Tags  []string
	Body  string
	HTML  string
	Media []MediaRef
}

// ResolvedTitle returns the document title, falling back to the first
// markdown heading in the body. An untitled document resolves to "".
func (d Document) ResolvedTitle() string {
	if strings.TrimSpace(d.Title) != "" {
		return strings.TrimSpace(d.Title)
	}
	for _, line := range strings.Split(d.Body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return ""
}

// Payload is one platform-ready unit of content.
type Payload struct {
	Index     int
	Text      string
	CharLimit int // 0 means no limit is enforced
	HasMedia  bool
	Final     bool
}

// Limits describes the structural constraints of a platform.
type Limits struct {
	CharLimit int
	Threading bool
	Media     bool
}

// Target is a configured publishing destination, resolved once at
// startup and read-only thereafter.
type Target struct {
	Name        string
	Enabled     bool
	Limits      Limits
	Credentials map[string]string
}

// Credential returns the named credential, or "" when absent.
func (t Target) Credential(key string) string {
	return strings.TrimSpace(t.Credentials[key])
}

// Status classifies the outcome of one target's publish attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusDryRun  Status = "dry-run"
)

// Result reports the outcome for a single target.
type Result struct {
	Target string
	Status Status
	Detail string
	Units  int
}

// Report is the aggregate of per-target results, in target declaration order.
type Report []Result

// OK reports whether every non-dry-run result succeeded.
func (r Report) OK() bool {
	for _, res := range r {
		if res.Status == StatusFailure {
			return false
		}
	}
	return true
}

// Publisher abstracts a platform that can deliver a normalized payload
// sequence. Implementations for threading platforms must preserve unit
// order and link each non-first unit as a reply to the previous one.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, doc Document, units []Payload) error
}
