package webauth

import (
	"sync"
	"time"

	"github.com/thejerf/abtime"
)

// The package clock, swappable for tests.  Key selection, rotation, and
// token expiration all read time through Now.
var (
	clockMu sync.RWMutex
	clock   abtime.AbstractTime = abtime.NewRealTime()
)

// SetClock replaces the time source used by the whole module.  Passing nil
// restores the real clock.
func SetClock(c abtime.AbstractTime) {
	if c == nil {
		c = abtime.NewRealTime()
	}
	clockMu.Lock()
	defer clockMu.Unlock()
	clock = c
}

// Now returns the current time from the package clock.
func Now() time.Time {
	clockMu.RLock()
	defer clockMu.RUnlock()
	return clock.Now()
}
