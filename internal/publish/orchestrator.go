package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/blacktop/postkit/internal/logutil"
)

// Constructor builds a Publisher for one configured target. Constructors
// run lazily so missing credentials surface as per-target failures.
type Constructor func(ctx context.Context, target Target) (Publisher, error)

// Orchestrator fans a document out to every enabled target.
type Orchestrator struct {
	constructors map[string]Constructor
	opts         Options
}

// NewOrchestrator wires a constructor registry keyed by target name.
func NewOrchestrator(constructors map[string]Constructor, opts Options) *Orchestrator {
	return &Orchestrator{constructors: constructors, opts: opts}
}

// Publish normalizes and delivers doc to each enabled target
// concurrently. One target's failure never blocks another: every
// pipeline error is captured into its own Result. Disabled targets are
// omitted from the report entirely. The report preserves target
// declaration order.
func (o *Orchestrator) Publish(ctx context.Context, doc Document, targets []Target, dryRun bool) Report {
	enabled := make([]Target, 0, len(targets))
	for _, target := range targets {
		if target.Enabled {
			enabled = append(enabled, target)
		}
	}

	results := make(Report, len(enabled))
	var wg sync.WaitGroup
	for i, target := range enabled {
		wg.Add(1)
		go func(i int, target Target) {
			defer wg.Done()
			results[i] = o.publishOne(ctx, doc, target, dryRun)
		}(i, target)
	}
	wg.Wait()

	return results
}

func (o *Orchestrator) publishOne(ctx context.Context, doc Document, target Target, dryRun bool) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				Target: target.Name,
				Status: StatusFailure,
				Detail: fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	doc, err := checkMedia(doc, target)
	if err != nil {
		logutil.Errorf("%s: %v", target.Name, err)
		return Result{Target: target.Name, Status: StatusFailure, Detail: err.Error()}
	}

	units := NormalizeWith(doc, target, o.opts)

	if dryRun {
		return Result{
			Target: target.Name,
			Status: StatusDryRun,
			Detail: renderPreview(units),
			Units:  len(units),
		}
	}

	constructor, ok := o.constructors[target.Name]
	if !ok {
		return Result{
			Target: target.Name,
			Status: StatusFailure,
			Detail: fmt.Sprintf("no publisher registered for %q", target.Name),
		}
	}

	publisher, err := constructor(ctx, target)
	if err != nil {
		logutil.Errorf("%s: %v", target.Name, err)
		return Result{Target: target.Name, Status: StatusFailure, Detail: err.Error()}
	}

	logutil.Debugf("publishing %d unit(s) to %s", len(units), target.Name)
	if err := publisher.Publish(ctx, doc, units); err != nil {
		logutil.Errorf("%s: %v", target.Name, err)
		result := Result{Target: target.Name, Status: StatusFailure, Detail: err.Error()}
		var threadErr ThreadError
		if errors.As(err, &threadErr) {
			result.Units = threadErr.Delivered
		}
		return result
	}

	return Result{Target: target.Name, Status: StatusSuccess, Units: len(units)}
}

// checkMedia validates media paths before normalization. An unreadable
// path fails targets that would carry the media; targets that cannot
// carry media proceed text-only.
func checkMedia(doc Document, target Target) (Document, error) {
	if len(doc.Media) == 0 {
		return doc, nil
	}
	for _, ref := range doc.Media {
		if _, err := os.Stat(ref.Path); err != nil {
			if !target.Limits.Media {
				logutil.Warnf("%s: dropping unreadable media %q", target.Name, ref.Path)
				doc.Media = nil
				return doc, nil
			}
			return doc, ValidationError{
				Provider: target.Name,
				Reason:   fmt.Sprintf("media %q not readable", ref.Path),
			}
		}
	}
	return doc, nil
}

func renderPreview(units []Payload) string {
	var b strings.Builder
	for _, unit := range units {
		notes := make([]string, 0, 2)
		if unit.CharLimit > 0 {
			notes = append(notes, fmt.Sprintf("%d/%d chars", len([]rune(unit.Text)), unit.CharLimit))
		}
		if unit.HasMedia {
			notes = append(notes, "media")
		}
		header := fmt.Sprintf("[%d/%d]", unit.Index+1, len(units))
		if len(notes) > 0 {
			header += " (" + strings.Join(notes, ", ") + ")"
		}
		fmt.Fprintf(&b, "%s\n%s\n", header, unit.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
