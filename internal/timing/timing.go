// Package timing measures job durations for the worker and CLI logs.
package timing

import (
	"fmt"
	"time"
)

// Stopwatch measures the time since it was started.
type Stopwatch struct {
	start time.Time
	now   func() time.Time
}

func Start() *Stopwatch {
	return &Stopwatch{start: time.Now(), now: time.Now}
}

func (s *Stopwatch) Elapsed() time.Duration {
	return s.now().Sub(s.start)
}

// String formats the elapsed time as HH:MM:SS.
func (s *Stopwatch) String() string {
	return Format(s.Elapsed())
}

// Format renders d as HH:MM:SS. Hours are not wrapped at 24.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
