package core

import "time"

// LocalToUTC interprets the wall clock of naive (whatever its location) as
// a time in loc and returns the matching UTC instant.
//
// At a DST fall-back the wall clock occurs twice; the earlier instant is
// returned. At a spring-forward the wall clock does not exist; it is moved
// later by the length of the gap, so 02:30 in a 02:00-03:00 gap becomes
// 03:30 in the new offset.
func LocalToUTC(naive time.Time, loc *time.Location) time.Time {
	wall := time.Date(naive.Year(), naive.Month(), naive.Day(),
		naive.Hour(), naive.Minute(), naive.Second(), naive.Nanosecond(), time.UTC)

	// Offsets in force well before and well after the wall clock.
	_, before := wall.Add(-24 * time.Hour).In(loc).Zone()
	_, after := wall.Add(24 * time.Hour).In(loc).Zone()

	earlier := wall.Add(-time.Duration(before) * time.Second)
	later := wall.Add(-time.Duration(after) * time.Second)

	okBefore := sameWall(earlier.In(loc), wall)
	okAfter := sameWall(later.In(loc), wall)

	switch {
	case okBefore && okAfter:
		if later.Before(earlier) {
			return later
		}
		return earlier
	case okBefore:
		return earlier
	case okAfter:
		return later
	default:
		// Gap: keep the pre-transition offset, which lands the wall clock
		// one gap-length later on the far side.
		return earlier
	}
}

func sameWall(t, wall time.Time) bool {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return y == wall.Year() && mo == wall.Month() && d == wall.Day() &&
		h == wall.Hour() && mi == wall.Minute() && s == wall.Second() &&
		t.Nanosecond() == wall.Nanosecond()
}
