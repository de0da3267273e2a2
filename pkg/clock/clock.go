package clock

import (
	"sync"
	"time"
)

// MinutesPerDay is the number of scaled minutes in one day at the
// default time scale
const MinutesPerDay = 24 * 60

// Clock provides the service's time base in scaled minutes.
//
// A scaled minute is unix-time divided by the configured scale. At the
// default scale of 60 one unit equals one wall-clock minute; tests shrink
// the scale to fast-forward schedules.
type Clock interface {
	// Now returns the current time in scaled minutes
	Now() int64

	// Until returns the wall-clock duration until the given scaled-minute
	// time, or zero if it has passed
	Until(t int64) time.Duration

	// Wall converts a scaled-minute time back to wall-clock time
	Wall(t int64) time.Time
}

// SystemClock reads the real time, divided by Scale seconds per unit
type SystemClock struct {
	Scale int64
}

// NewSystemClock creates a clock with the given scale; scale <= 0 selects
// the default of 60 (one unit per minute)
func NewSystemClock(scale int64) *SystemClock {
	if scale <= 0 {
		scale = 60
	}
	return &SystemClock{Scale: scale}
}

func (c *SystemClock) Now() int64 {
	return time.Now().Unix() / c.Scale
}

func (c *SystemClock) Until(t int64) time.Duration {
	d := time.Until(c.Wall(t))
	if d < 0 {
		return 0
	}
	return d
}

func (c *SystemClock) Wall(t int64) time.Time {
	return time.Unix(t*c.Scale, 0)
}

// ManualClock is a test clock whose time only moves when advanced
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

// NewManualClock creates a manual clock starting at the given time
func NewManualClock(now int64) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Until always returns a short poll interval so schedulers re-check the
// manual time instead of sleeping for real
func (c *ManualClock) Until(t int64) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t <= c.now {
		return 0
	}
	return time.Millisecond
}

// Wall maps one unit to one minute, the default scale
func (c *ManualClock) Wall(t int64) time.Time {
	return time.Unix(t*60, 0)
}

// Advance moves the clock forward by d scaled minutes
func (c *ManualClock) Advance(d int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// Set moves the clock to an absolute time
func (c *ManualClock) Set(now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Weekday returns the day of week of a scaled-minute time, 0 = Sunday.
// The epoch (unit 0) was a Thursday.
func Weekday(t int64) int {
	d := (t/MinutesPerDay + 4) % 7
	if d < 0 {
		d += 7
	}
	return int(d)
}

// StartOfDay returns the scaled-minute time of midnight of t's day
func StartOfDay(t int64) int64 {
	return t - (t % MinutesPerDay)
}

// Daytime returns the minutes within the day of t
func Daytime(t int64) int {
	return int(t % MinutesPerDay)
}
