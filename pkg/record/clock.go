package record

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// LastPlayedLayout matches the en-IN locale string, e.g. "16/10/2026, 8:47:12 pm".
const LastPlayedLayout = "2/1/2006, 3:04:05 pm"

const DefaultTimezone = "Asia/Kolkata"

// Clock renders LastPlayed timestamps in a fixed timezone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock creates a Clock for the named IANA timezone.
func NewClock(timezone string) (*Clock, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// WithNow returns a copy of the clock reading time from now.
func (c *Clock) WithNow(now func() time.Time) *Clock {
	return &Clock{loc: c.loc, now: now}
}

// Time returns the current instant.
func (c *Clock) Time() time.Time {
	return c.now()
}

// Stamp returns the current time formatted for the LastPlayed column.
func (c *Clock) Stamp() string {
	return c.Format(c.now())
}

func (c *Clock) Format(t time.Time) string {
	return t.In(c.loc).Format(LastPlayedLayout)
}
