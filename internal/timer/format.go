package timer

import (
	"fmt"
	"time"
)

const (
	msPerSecond = int64(time.Second / time.Millisecond)
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
)

// FormatCountdown renders "label (HH:MM:SS)" for the time remaining. Hours wrap
// at 24 and negative components clamp to zero.
func FormatCountdown(label string, remaining time.Duration, pad bool) string {
	ms := remaining.Milliseconds()
	hours := clamp((ms % msPerDay) / msPerHour)
	minutes := clamp((ms % msPerHour) / msPerMinute)
	seconds := clamp((ms % msPerMinute) / msPerSecond)
	return fmt.Sprintf("%s (%s:%s:%s)", label,
		digits(hours, 2, pad), digits(minutes, 2, pad), digits(seconds, 2, pad))
}

// FormatStopwatch renders "label (D:HH:MM:SS.mmm)", dropping the day component
// when it is zero. A negative elapsed time renders all zeros.
func FormatStopwatch(label string, elapsed time.Duration, pad bool) string {
	ms := elapsed.Milliseconds()
	if ms < 0 {
		return fmt.Sprintf("%s (00:00:00:00.000)", label)
	}
	days := ms / msPerDay
	hours := (ms % msPerDay) / msPerHour
	minutes := (ms % msPerHour) / msPerMinute
	seconds := (ms % msPerMinute) / msPerSecond
	millis := ms % msPerSecond

	clock := fmt.Sprintf("%s:%s:%s.%s",
		digits(hours, 2, pad), digits(minutes, 2, pad), digits(seconds, 2, pad), digits(millis, 3, pad))
	if days > 0 {
		clock = digits(days, 2, pad) + ":" + clock
	}
	return fmt.Sprintf("%s (%s)", label, clock)
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func digits(v int64, width int, pad bool) string {
	if !pad {
		return fmt.Sprintf("%d", v)
	}
	return fmt.Sprintf("%0*d", width, v)
}
