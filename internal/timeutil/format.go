package timeutil

import (
	"fmt"
	"time"
)

func DayTimeDurationFromSeconds(n int) DayTimeDuration {
	return DayTimeDuration(time.Duration(n) * time.Second)
}

func (d DayTimeDuration) Seconds() int {
	return int(time.Duration(d) / time.Second)
}

// HMS formats the duration as "HH:MM:SS", or "MM:SS" when it is under an
// hour.
func (d DayTimeDuration) HMS() string {
	total := d.Seconds()
	if total < 0 {
		total = 0 - total
	}

	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}

	return fmt.Sprintf("%02d:%02d", m, s)
}
