package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var hmsTests = []struct {
	name    string
	seconds int
	hms     string
}{
	{
		name:    "zero",
		seconds: 0,
		hms:     "00:00",
	},
	{
		name:    "under a minute",
		seconds: 42,
		hms:     "00:42",
	},
	{
		name:    "under an hour",
		seconds: 3*60 + 4,
		hms:     "03:04",
	},
	{
		name:    "over an hour",
		seconds: 3600 + 2*60 + 3,
		hms:     "01:02:03",
	},
	{
		name:    "over a day",
		seconds: 25*3600 + 1,
		hms:     "25:00:01",
	},
}

func TestHMS(t *testing.T) {
	for _, tc := range hmsTests {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)
			a.Equal(tc.hms, DayTimeDurationFromSeconds(tc.seconds).HMS())
		})
	}
}

func TestDayTimeDurationFromSeconds(t *testing.T) {
	a := assert.New(t)

	d := DayTimeDurationFromSeconds(90)
	a.Equal(DayTimeDuration(time.Second*90), d)
	a.Equal(90, d.Seconds())
}
