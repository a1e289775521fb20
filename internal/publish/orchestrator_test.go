package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	name     string
	err      error
	panicMsg string
	calls    int32
	gotUnits []Payload
}

func (f *fakePublisher) Name() string { return f.name }

func (f *fakePublisher) Publish(_ context.Context, _ Document, units []Payload) error {
	atomic.AddInt32(&f.calls, 1)
	f.gotUnits = units
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.err
}

// constructorFor returns a Constructor serving the fake and a counter of
// constructor invocations (used to prove dry runs build nothing).
func constructorFor(fake *fakePublisher) (Constructor, *int32) {
	var built int32
	return func(context.Context, Target) (Publisher, error) {
		atomic.AddInt32(&built, 1)
		return fake, nil
	}, &built
}

func enabledTarget(name string, limit int) Target {
	return Target{
		Name:    name,
		Enabled: true,
		Limits:  Limits{CharLimit: limit, Threading: true, Media: true},
	}
}

func TestPublishIsolatedFailure(t *testing.T) {
	ok := &fakePublisher{name: "first"}
	bad := &fakePublisher{name: "second", err: errors.New("auth rejected")}
	okCtor, _ := constructorFor(ok)
	badCtor, _ := constructorFor(bad)

	orch := NewOrchestrator(map[string]Constructor{
		"first":  okCtor,
		"second": badCtor,
	}, Options{})

	report := orch.Publish(context.Background(), Document{Body: "hello world."},
		[]Target{enabledTarget("first", 300), enabledTarget("second", 300)}, false)

	require.Len(t, report, 2)
	assert.Equal(t, "first", report[0].Target)
	assert.Equal(t, StatusSuccess, report[0].Status)
	assert.Equal(t, 1, report[0].Units)
	assert.Equal(t, "second", report[1].Target)
	assert.Equal(t, StatusFailure, report[1].Status)
	assert.Contains(t, report[1].Detail, "auth rejected")
	assert.True(t, !report.OK())
}

func TestPublishDryRunInvokesNoAdapter(t *testing.T) {
	fake := &fakePublisher{name: "first"}
	ctor, built := constructorFor(fake)

	orch := NewOrchestrator(map[string]Constructor{"first": ctor, "second": ctor}, Options{})
	report := orch.Publish(context.Background(), Document{Body: "hello world."},
		[]Target{enabledTarget("first", 300), enabledTarget("second", 300)}, true)

	require.Len(t, report, 2)
	for _, res := range report {
		assert.Equal(t, StatusDryRun, res.Status)
		assert.NotEmpty(t, res.Detail, "dry run carries the rendered preview")
		assert.Equal(t, 1, res.Units)
	}
	assert.Zero(t, atomic.LoadInt32(built))
	assert.Zero(t, atomic.LoadInt32(&fake.calls))
	assert.True(t, report.OK())
}

func TestPublishOmitsDisabledTargets(t *testing.T) {
	fake := &fakePublisher{name: "on"}
	ctor, _ := constructorFor(fake)

	disabled := enabledTarget("off", 300)
	disabled.Enabled = false

	orch := NewOrchestrator(map[string]Constructor{"on": ctor}, Options{})
	report := orch.Publish(context.Background(), Document{Body: "hi."},
		[]Target{disabled, enabledTarget("on", 300)}, false)

	require.Len(t, report, 1)
	assert.Equal(t, "on", report[0].Target)
}

func TestPublishConstructorErrorBecomesFailure(t *testing.T) {
	orch := NewOrchestrator(map[string]Constructor{
		"broken": func(context.Context, Target) (Publisher, error) {
			return nil, MissingCredentialsError{Provider: "broken", Keys: []string{"token"}}
		},
	}, Options{})

	report := orch.Publish(context.Background(), Document{Body: "hi."},
		[]Target{enabledTarget("broken", 300)}, false)

	require.Len(t, report, 1)
	assert.Equal(t, StatusFailure, report[0].Status)
	assert.Contains(t, report[0].Detail, "credentials not configured")
}

func TestPublishUnregisteredTargetBecomesFailure(t *testing.T) {
	orch := NewOrchestrator(map[string]Constructor{}, Options{})
	report := orch.Publish(context.Background(), Document{Body: "hi."},
		[]Target{enabledTarget("mystery", 300)}, false)

	require.Len(t, report, 1)
	assert.Equal(t, StatusFailure, report[0].Status)
	assert.Contains(t, report[0].Detail, "no publisher registered")
}

func TestPublishRecoversPanics(t *testing.T) {
	ok := &fakePublisher{name: "calm"}
	angry := &fakePublisher{name: "angry", panicMsg: "boom"}
	okCtor, _ := constructorFor(ok)
	angryCtor, _ := constructorFor(angry)

	orch := NewOrchestrator(map[string]Constructor{"calm": okCtor, "angry": angryCtor}, Options{})
	report := orch.Publish(context.Background(), Document{Body: "hi."},
		[]Target{enabledTarget("angry", 300), enabledTarget("calm", 300)}, false)

	require.Len(t, report, 2)
	assert.Equal(t, StatusFailure, report[0].Status)
	assert.Contains(t, report[0].Detail, "boom")
	assert.Equal(t, StatusSuccess, report[1].Status)
}

func TestPublishPartialThreadFailure(t *testing.T) {
	partial := &fakePublisher{
		name: "flaky",
		err:  ThreadError{Provider: "flaky", Delivered: 2, Err: errors.New("rate limited")},
	}
	ctor, _ := constructorFor(partial)

	orch := NewOrchestrator(map[string]Constructor{"flaky": ctor}, Options{})
	report := orch.Publish(context.Background(), Document{Body: "hi."},
		[]Target{enabledTarget("flaky", 300)}, false)

	require.Len(t, report, 1)
	assert.Equal(t, StatusFailure, report[0].Status)
	assert.Equal(t, 2, report[0].Units)
	assert.Contains(t, report[0].Detail, "rate limited")
}

func TestPublishMediaValidation(t *testing.T) {
	fake := &fakePublisher{name: "textonly"}
	ctor, _ := constructorFor(fake)

	textOnly := enabledTarget("textonly", 300)
	textOnly.Limits.Media = false
	mediaTarget := enabledTarget("withmedia", 300)

	doc := Document{
		Body:  "hello.",
		Media: []MediaRef{{Kind: MediaImage, Path: filepath.Join(t.TempDir(), "missing.png")}},
	}

	orch := NewOrchestrator(map[string]Constructor{"textonly": ctor, "withmedia": ctor}, Options{})
	report := orch.Publish(context.Background(), doc, []Target{textOnly, mediaTarget}, false)

	require.Len(t, report, 2)
	assert.Equal(t, StatusSuccess, report[0].Status, "text-only delivery proceeds without the media")
	assert.Equal(t, StatusFailure, report[1].Status)
	assert.Contains(t, report[1].Detail, "not readable")
}

func TestPublishMediaReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))

	fake := &fakePublisher{name: "withmedia"}
	ctor, _ := constructorFor(fake)

	orch := NewOrchestrator(map[string]Constructor{"withmedia": ctor}, Options{})
	doc := Document{Body: "hello.", Media: []MediaRef{{Kind: MediaImage, Path: path}}}
	report := orch.Publish(context.Background(), doc, []Target{enabledTarget("withmedia", 300)}, false)

	require.Len(t, report, 1)
	assert.Equal(t, StatusSuccess, report[0].Status)
	require.NotEmpty(t, fake.gotUnits)
	assert.True(t, fake.gotUnits[0].HasMedia)
}

func TestReportOK(t *testing.T) {
	assert.True(t, Report{{Status: StatusSuccess}, {Status: StatusDryRun}}.OK())
	assert.False(t, Report{{Status: StatusSuccess}, {Status: StatusFailure}}.OK())
	assert.True(t, Report{}.OK())
}
