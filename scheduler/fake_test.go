package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/duyanghao/qhelper/lib/client"
)

type call struct {
	Op  string
	IDs []string
}

// fakeClient serves scripted snapshots and records every call.
// Pause and resume with an empty set are not recorded, as a real gateway
// never sends them.
type fakeClient struct {
	prefs     client.Preferences
	snapshots [][]client.Item
	listCalls int
	// failList fails the n-th ListItems call (1-based), 0 never
	failList int
	calls    []call
}

func (f *fakeClient) ListItems(ctx context.Context) ([]client.Item, error) {
	f.listCalls++
	f.calls = append(f.calls, call{Op: "list"})
	if f.failList == f.listCalls {
		return nil, &client.TransportError{Op: "GET", Endpoint: "/torrents/info", Err: errors.New("connection refused")}
	}
	i := f.listCalls - 1
	if i >= len(f.snapshots) {
		i = len(f.snapshots) - 1
	}
	if i < 0 {
		return nil, nil
	}
	return f.snapshots[i], nil
}

func (f *fakeClient) GetPreferences(ctx context.Context) (client.Preferences, error) {
	f.calls = append(f.calls, call{Op: "prefs"})
	return f.prefs, nil
}

func (f *fakeClient) Pause(ctx context.Context, ids []string) error {
	if len(ids) > 0 {
		f.calls = append(f.calls, call{Op: "pause", IDs: append([]string(nil), ids...)})
	}
	return nil
}

func (f *fakeClient) Resume(ctx context.Context, ids []string) error {
	if len(ids) > 0 {
		f.calls = append(f.calls, call{Op: "resume", IDs: append([]string(nil), ids...)})
	}
	return nil
}

func (f *fakeClient) commands() []call {
	var out []call
	for _, c := range f.calls {
		if c.Op == "pause" || c.Op == "resume" {
			out = append(out, c)
		}
	}
	return out
}

type sleep struct {
	Duration time.Duration
	Label    string
}

// fakeClock returns immediately from Sleep. After maxSleeps sleeps it
// reports cancellation so Run loops can be bounded.
type fakeClock struct {
	now       time.Time
	sleeps    []sleep
	maxSleeps int
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration, label string) error {
	c.sleeps = append(c.sleeps, sleep{Duration: d, Label: label})
	c.now = c.now.Add(d)
	if c.maxSleeps > 0 && len(c.sleeps) >= c.maxSleeps {
		return context.Canceled
	}
	return ctx.Err()
}
