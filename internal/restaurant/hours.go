package restaurant

import (
	"strings"
	"time"

	"xquisito-tap/internal/domain"
)

// IsOpenAt evaluates a weekly schedule at t in loc.
//
// A window whose close time is not after its open time runs past midnight into the
// next day. A restaurant with no schedule at all is considered open.
func IsOpenAt(hours domain.OpeningHours, loc *time.Location, t time.Time) bool {
	if len(hours) == 0 {
		return true
	}
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	minutes := local.Hour()*60 + local.Minute()

	if openAt, closeAt, ok := window(hours, local.Weekday()); ok {
		if closeAt > openAt {
			if minutes >= openAt && minutes < closeAt {
				return true
			}
		} else if minutes >= openAt {
			return true
		}
	}

	prev := (local.Weekday() + 6) % 7
	if openAt, closeAt, ok := window(hours, prev); ok && closeAt <= openAt && minutes < closeAt {
		return true
	}
	return false
}

func window(hours domain.OpeningHours, day time.Weekday) (openAt, closeAt int, ok bool) {
	d, found := lookupDay(hours, day)
	if !found || d.IsClosed {
		return 0, 0, false
	}
	openAt, err := domain.ParseClock(d.OpenTime)
	if err != nil {
		return 0, 0, false
	}
	closeAt, err = domain.ParseClock(d.CloseTime)
	if err != nil {
		return 0, 0, false
	}
	return openAt, closeAt, true
}

func lookupDay(hours domain.OpeningHours, day time.Weekday) (domain.DayHours, bool) {
	name := strings.ToLower(day.String())
	if d, ok := hours[name]; ok {
		return d, true
	}
	for k, d := range hours {
		if strings.EqualFold(k, name) {
			return d, true
		}
	}
	return domain.DayHours{}, false
}
