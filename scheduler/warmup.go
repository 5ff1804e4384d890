package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/duyanghao/qhelper/lib/client"
	"github.com/duyanghao/qhelper/pkg/utils/process"
	log "github.com/sirupsen/logrus"
)

// WarmupScope selects which held items get warmed up before scoring.
type WarmupScope string

const (
	// WarmupPaused warms incomplete paused-like items only
	WarmupPaused WarmupScope = "paused"
	// WarmupIncomplete warms every incomplete item not already downloading
	WarmupIncomplete WarmupScope = "incomplete"
)

func ParseWarmupScope(s string) (WarmupScope, error) {
	switch WarmupScope(s) {
	case "", WarmupPaused:
		return WarmupPaused, nil
	case WarmupIncomplete:
		return WarmupIncomplete, nil
	}
	return "", fmt.Errorf("unknown warmup scope %q", s)
}

// Select returns the ids of items to warm up. Completed and active items
// are never selected.
func (s WarmupScope) Select(items []client.Item) []string {
	var selected []string
	for _, item := range items {
		if item.Complete() {
			continue
		}
		switch s {
		case WarmupIncomplete:
			if item.State.Class() == client.ClassDownloading {
				continue
			}
		default:
			if !item.State.PausedLike() {
				continue
			}
		}
		selected = append(selected, item.ID)
	}
	return selected
}

// Warmup briefly resumes stale held items so the client refreshes their
// availability and eta, then pauses the very same set again.
type Warmup struct {
	client   client.Client
	clock    process.Clock
	duration time.Duration
	scope    WarmupScope
}

func NewWarmup(c client.Client, clock process.Clock, duration time.Duration, scope WarmupScope) *Warmup {
	return &Warmup{
		client:   c,
		clock:    clock,
		duration: duration,
		scope:    scope,
	}
}

// Run toggles the selected items and returns their ids. Nothing is sent
// and nothing is awaited when the selection is empty.
func (w *Warmup) Run(ctx context.Context, items []client.Item) ([]string, error) {
	selected := w.scope.Select(items)
	if len(selected) == 0 {
		log.Debugf("No torrents need warmup")
		return nil, nil
	}
	if err := w.client.Resume(ctx, selected); err != nil {
		return nil, fmt.Errorf("Warmup resume failed: %w", err)
	}
	log.Infof("Warmup initiated for %d torrents, waiting %s ...", len(selected), w.duration)

	sleepErr := w.clock.Sleep(ctx, w.duration, "Warmup")

	// the pause must go out even if we were interrupted while waiting
	pauseCtx := ctx
	if sleepErr != nil {
		pauseCtx = context.WithoutCancel(ctx)
	}
	if err := w.client.Pause(pauseCtx, selected); err != nil {
		return selected, fmt.Errorf("Warmup pause failed: %w", err)
	}
	if sleepErr != nil {
		return selected, sleepErr
	}
	log.Infof("Warmup finished for %d torrents", len(selected))
	return selected, nil
}
