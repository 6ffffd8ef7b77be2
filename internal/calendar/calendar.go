// Package calendar answers whether the US equity market is open on a given
// date. It is a pure date computation: weekends plus the NYSE full-day
// holiday schedule, including weekend observance shifts.
package calendar

import "time"

// IsTradingDay reports whether the NYSE is open for a full session on the
// given date. Only the year/month/day of t are considered.
func IsTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !isHoliday(t)
}

func isHoliday(t time.Time) bool {
	y, m, d := t.Date()

	for _, h := range fixedHolidays(y) {
		if h.Month() == m && h.Day() == d {
			return true
		}
	}

	switch {
	case m == time.January && t.Weekday() == time.Monday && weekOfMonth(d) == 3:
		return true // Martin Luther King Jr. Day
	case m == time.February && t.Weekday() == time.Monday && weekOfMonth(d) == 3:
		return true // Presidents' Day
	case m == time.May && t.Weekday() == time.Monday && d > 24:
		return true // Memorial Day
	case m == time.September && t.Weekday() == time.Monday && weekOfMonth(d) == 1:
		return true // Labor Day
	case m == time.November && t.Weekday() == time.Thursday && weekOfMonth(d) == 4:
		return true // Thanksgiving
	}

	gf := goodFriday(y)
	return gf.Month() == m && gf.Day() == d
}

// fixedHolidays returns the observed dates of the fixed-date NYSE holidays
// for a year. A holiday landing on Saturday is observed the Friday before;
// on Sunday, the Monday after.
func fixedHolidays(year int) []time.Time {
	days := []time.Time{
		time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),  // New Year's Day
		time.Date(year, time.June, 19, 0, 0, 0, 0, time.UTC),    // Juneteenth
		time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC),     // Independence Day
		time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC), // Christmas
	}
	observed := make([]time.Time, 0, len(days))
	for _, day := range days {
		switch day.Weekday() {
		case time.Saturday:
			day = day.AddDate(0, 0, -1)
		case time.Sunday:
			day = day.AddDate(0, 0, 1)
		}
		observed = append(observed, day)
	}
	return observed
}

// goodFriday computes Good Friday as Easter Sunday minus two days, using the
// anonymous Gregorian algorithm for Easter.
func goodFriday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1

	easter := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return easter.AddDate(0, 0, -2)
}

func weekOfMonth(day int) int {
	return (day-1)/7 + 1
}
