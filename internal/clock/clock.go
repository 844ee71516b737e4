// Package clock supplies the current time to code that must be testable
// against a pinned instant.
package clock

import (
	"sync"
	"time"

	"github.com/dukerupert/chorely/internal/model"
)

// Clock provides time operations for testability.
type Clock interface {
	Now() time.Time
}

// System implements Clock using the system clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed is a settable Clock for tests.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Today returns the household calendar day at c's current instant.
func Today(c Clock, loc *time.Location) model.Date {
	return model.DateOf(c.Now().In(loc))
}
