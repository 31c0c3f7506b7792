package grouping

import (
	"math"
	"time"
)

var nan = math.NaN()

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func jan(d int) time.Time { return day(time.January, d) }
