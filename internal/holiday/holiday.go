// Package holiday computes US retail holiday dates and holiday-relative
// date projection across years. All functions are pure; the only state is
// the caller-owned Calendar memo.
package holiday

import (
	"time"

	"github.com/rotisserie/eris"
)

// Holiday identifies a tracked US retail holiday or season marker.
type Holiday string

const (
	NewYearsDay     Holiday = "new_years_day"
	MLKDay          Holiday = "mlk_day"
	ValentinesDay   Holiday = "valentines_day"
	PresidentsDay   Holiday = "presidents_day"
	Easter          Holiday = "easter"
	MothersDay      Holiday = "mothers_day"
	MemorialDay     Holiday = "memorial_day"
	FathersDay      Holiday = "fathers_day"
	IndependenceDay Holiday = "independence_day"
	LaborDay        Holiday = "labor_day"
	ColumbusDay     Holiday = "columbus_day"
	Halloween       Holiday = "halloween"
	VeteransDay     Holiday = "veterans_day"
	Thanksgiving    Holiday = "thanksgiving"
	BlackFriday     Holiday = "black_friday"
	CyberMonday     Holiday = "cyber_monday"
	ChristmasEve    Holiday = "christmas_eve"
	Christmas       Holiday = "christmas"
	NewYearsEve     Holiday = "new_years_eve"

	// Season markers used for retail timing rather than true holidays.
	BackToSchool Holiday = "back_to_school"
	EndOfSummer  Holiday = "end_of_summer"
)

// All lists every tracked holiday in declaration order. NearestHoliday tie
// resolution follows this order.
var All = []Holiday{
	NewYearsDay, MLKDay, ValentinesDay, PresidentsDay, Easter, MothersDay,
	MemorialDay, FathersDay, IndependenceDay, LaborDay, ColumbusDay,
	Halloween, VeteransDay, Thanksgiving, BlackFriday, CyberMonday,
	ChristmasEve, Christmas, NewYearsEve, BackToSchool, EndOfSummer,
}

var names = map[Holiday]string{
	NewYearsDay:     "New Year's Day",
	MLKDay:          "Martin Luther King Jr. Day",
	ValentinesDay:   "Valentine's Day",
	PresidentsDay:   "Presidents' Day",
	Easter:          "Easter",
	MothersDay:      "Mother's Day",
	MemorialDay:     "Memorial Day",
	FathersDay:      "Father's Day",
	IndependenceDay: "Independence Day",
	LaborDay:        "Labor Day",
	ColumbusDay:     "Columbus Day",
	Halloween:       "Halloween",
	VeteransDay:     "Veterans Day",
	Thanksgiving:    "Thanksgiving",
	BlackFriday:     "Black Friday",
	CyberMonday:     "Cyber Monday",
	ChristmasEve:    "Christmas Eve",
	Christmas:       "Christmas",
	NewYearsEve:     "New Year's Eve",
	BackToSchool:    "Back to School",
	EndOfSummer:     "End of Summer",
}

var floating = map[Holiday]bool{
	MLKDay:        true,
	PresidentsDay: true,
	Easter:        true,
	MothersDay:    true,
	MemorialDay:   true,
	FathersDay:    true,
	LaborDay:      true,
	ColumbusDay:   true,
	Thanksgiving:  true,
	BlackFriday:   true,
	CyberMonday:   true,
	EndOfSummer:   true,
}

// Info describes one holiday occurrence.
type Info struct {
	Holiday  Holiday   `json:"holiday"`
	Date     time.Time `json:"date"`
	Name     string    `json:"name"`
	Floating bool      `json:"floating"`
}

// Valid reports whether h is a recognized holiday identifier.
func Valid(h Holiday) bool {
	_, ok := names[h]
	return ok
}

// Name returns the human-readable name of h.
func Name(h Holiday) string {
	return names[h]
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// nthWeekday returns the nth occurrence of weekday in month (n starting at 1).
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	first := date(year, month, 1)
	ahead := (int(weekday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, ahead+7*(n-1))
}

// lastWeekday returns the last occurrence of weekday in month.
func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	last := date(year, month, 1).AddDate(0, 1, -1)
	back := (int(last.Weekday()) - int(weekday) + 7) % 7
	return last.AddDate(0, 0, -back)
}

// easter computes Easter Sunday via the Anonymous Gregorian algorithm.
func easter(year int) time.Time {
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
	return date(year, time.Month(month), day)
}

// Date returns the date of h in year. An unrecognized holiday is a
// programming error and returns a non-nil error.
func Date(h Holiday, year int) (time.Time, error) {
	switch h {
	case NewYearsDay:
		return date(year, time.January, 1), nil
	case ValentinesDay:
		return date(year, time.February, 14), nil
	case IndependenceDay:
		return date(year, time.July, 4), nil
	case Halloween:
		return date(year, time.October, 31), nil
	case VeteransDay:
		return date(year, time.November, 11), nil
	case ChristmasEve:
		return date(year, time.December, 24), nil
	case Christmas:
		return date(year, time.December, 25), nil
	case NewYearsEve:
		return date(year, time.December, 31), nil

	case MLKDay:
		return nthWeekday(year, time.January, time.Monday, 3), nil
	case PresidentsDay:
		return nthWeekday(year, time.February, time.Monday, 3), nil
	case Easter:
		return easter(year), nil
	case MothersDay:
		return nthWeekday(year, time.May, time.Sunday, 2), nil
	case MemorialDay:
		return lastWeekday(year, time.May, time.Monday), nil
	case FathersDay:
		return nthWeekday(year, time.June, time.Sunday, 3), nil
	case LaborDay:
		return nthWeekday(year, time.September, time.Monday, 1), nil
	case ColumbusDay:
		return nthWeekday(year, time.October, time.Monday, 2), nil
	case Thanksgiving:
		return nthWeekday(year, time.November, time.Thursday, 4), nil
	case BlackFriday:
		return nthWeekday(year, time.November, time.Thursday, 4).AddDate(0, 0, 1), nil
	case CyberMonday:
		return nthWeekday(year, time.November, time.Thursday, 4).AddDate(0, 0, 4), nil

	case BackToSchool:
		return date(year, time.August, 15), nil
	case EndOfSummer:
		return nthWeekday(year, time.September, time.Monday, 1).AddDate(0, 0, -2), nil
	}
	return time.Time{}, eris.Errorf("holiday: unknown holiday %q", h)
}

// MustDate is Date for holidays known at compile time.
func MustDate(h Holiday, year int) time.Time {
	d, err := Date(h, year)
	if err != nil {
		panic(err)
	}
	return d
}

// Get returns full information about h in year.
func Get(h Holiday, year int) (Info, error) {
	d, err := Date(h, year)
	if err != nil {
		return Info{}, err
	}
	return Info{Holiday: h, Date: d, Name: names[h], Floating: floating[h]}, nil
}

// AdjustAcrossYears projects d from fromYear into toYear. With a holiday
// anchor the offset from the anchor's date is preserved; without one the
// year is replaced directly, clamping Feb 29 to Feb 28 in non-leap years.
func AdjustAcrossYears(d time.Time, fromYear, toYear int, anchor Holiday) (time.Time, error) {
	if anchor == "" {
		day := d.Day()
		if d.Month() == time.February && day == 29 && !isLeap(toYear) {
			day = 28
		}
		return date(toYear, d.Month(), day), nil
	}

	from, err := Date(anchor, fromYear)
	if err != nil {
		return time.Time{}, err
	}
	to, err := Date(anchor, toYear)
	if err != nil {
		return time.Time{}, err
	}
	offset := int(d.Sub(from).Hours() / 24)
	return to.AddDate(0, 0, offset), nil
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
