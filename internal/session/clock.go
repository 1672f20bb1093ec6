package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jask/tileswipe/internal/kv"
)

// StartKey holds the session start as unix milliseconds.
const StartKey = "tileswipe_session_start"

// Clock measures wall-clock time since the session started. The start is
// read from storage when present and only created when absent, so resuming a
// session keeps its elapsed time.
type Clock struct {
	start   time.Time
	now     func() time.Time
	running bool
}

func startClock(ctx context.Context, s kv.Store, now func() time.Time) (*Clock, error) {
	raw, ok, err := s.Get(ctx, StartKey)
	if err != nil {
		return nil, fmt.Errorf("read session start: %w", err)
	}
	if ok {
		ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err == nil {
			return &Clock{start: time.UnixMilli(ms), now: now, running: true}, nil
		}
	}
	start := now()
	if err := s.Set(ctx, StartKey, strconv.FormatInt(start.UnixMilli(), 10)); err != nil {
		return nil, fmt.Errorf("write session start: %w", err)
	}
	return &Clock{start: start, now: now, running: true}, nil
}

func (c *Clock) StartedAt() time.Time { return c.start }

func (c *Clock) Running() bool { return c.running }

// Elapsed is now minus start at second granularity; 0 once stopped or if the
// system clock moved behind the start.
func (c *Clock) Elapsed() time.Duration {
	if !c.running {
		return 0
	}
	d := c.now().Sub(c.start)
	if d < 0 {
		return 0
	}
	return d.Truncate(time.Second)
}

func (c *Clock) ElapsedSeconds() int64 { return int64(c.Elapsed() / time.Second) }

func (c *Clock) stop() { c.running = false }

// FormatElapsed renders "1h 2m 3s", "2m 3s" or "3s".
func FormatElapsed(d time.Duration) string {
	total := int64(d / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	var b strings.Builder
	if h > 0 {
		fmt.Fprintf(&b, "%dh ", h)
	}
	if m > 0 || h > 0 {
		fmt.Fprintf(&b, "%dm ", m)
	}
	fmt.Fprintf(&b, "%ds", s)
	return b.String()
}
