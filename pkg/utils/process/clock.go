package process

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/duyanghao/qhelper/pkg/utils/history"
)

const clearScreen = "\033[H\033[2J"

// Clock supplies timestamps and the suspension primitive used between
// and inside cycles.
type Clock interface {
	Now() time.Time
	// Sleep suspends the caller for d, rendering a countdown labelled
	// label. It returns ctx.Err() if ctx ends first.
	Sleep(ctx context.Context, d time.Duration, label string) error
}

// ConsoleClock is the wall clock. While suspended it draws a countdown
// bar on output; with a history attached it first redraws the recent
// log tail.
type ConsoleClock struct {
	output  io.Writer
	history *history.History
	lines   int
	tick    time.Duration
}

// NewConsoleClock creates a clock drawing on output. h may be nil.
func NewConsoleClock(output io.Writer, h *history.History, lines int) *ConsoleClock {
	return &ConsoleClock{
		output:  output,
		history: h,
		lines:   lines,
		tick:    time.Second,
	}
}

func (c *ConsoleClock) Now() time.Time {
	return time.Now()
}

func (c *ConsoleClock) Sleep(ctx context.Context, d time.Duration, label string) error {
	if d <= 0 {
		return ctx.Err()
	}
	if c.history != nil {
		c.redraw()
	}

	total := int(d / time.Second)
	if total < 1 {
		total = 1
	}
	bar := NewCountdownBar(total, c.output)
	bar.Prefix(label + " ")
	bar.Postfix(" " + FormatRemaining(d))
	bar.Start()
	defer bar.Finish()

	deadline := time.Now().Add(d)
	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			bar.Postfix(" " + FormatRemaining(0))
			bar.Set(total)
			return nil
		case <-ticker.C:
			remaining := time.Until(deadline)
			bar.Postfix(" " + FormatRemaining(remaining))
			bar.Set(total - int(remaining/time.Second))
		}
	}
}

func (c *ConsoleClock) redraw() {
	fmt.Fprint(c.output, clearScreen)
	for _, e := range c.history.Tail(c.lines) {
		fmt.Fprintf(c.output, "[%s] %s\n", e.Time.Format("2006-01-02 15:04:05"), e.Message)
	}
}
