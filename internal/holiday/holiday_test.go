package holiday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestDate_FixedHolidays(t *testing.T) {
	tests := []struct {
		holiday Holiday
		year    int
		want    time.Time
	}{
		{NewYearsDay, 2024, d(2024, time.January, 1)},
		{ValentinesDay, 2025, d(2025, time.February, 14)},
		{IndependenceDay, 2024, d(2024, time.July, 4)},
		{Halloween, 2025, d(2025, time.October, 31)},
		{VeteransDay, 2024, d(2024, time.November, 11)},
		{ChristmasEve, 2024, d(2024, time.December, 24)},
		{Christmas, 2025, d(2025, time.December, 25)},
		{NewYearsEve, 2024, d(2024, time.December, 31)},
		{BackToSchool, 2025, d(2025, time.August, 15)},
	}
	for _, tt := range tests {
		got, err := Date(tt.holiday, tt.year)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %d", tt.holiday, tt.year)
	}
}

func TestDate_FloatingHolidays(t *testing.T) {
	tests := []struct {
		holiday Holiday
		year    int
		want    time.Time
	}{
		{Thanksgiving, 2024, d(2024, time.November, 28)},
		{Thanksgiving, 2025, d(2025, time.November, 27)},
		{BlackFriday, 2024, d(2024, time.November, 29)},
		{BlackFriday, 2025, d(2025, time.November, 28)},
		{CyberMonday, 2024, d(2024, time.December, 2)},
		{CyberMonday, 2025, d(2025, time.December, 1)},
		{MLKDay, 2025, d(2025, time.January, 20)},
		{PresidentsDay, 2025, d(2025, time.February, 17)},
		{MothersDay, 2025, d(2025, time.May, 11)},
		{MemorialDay, 2024, d(2024, time.May, 27)},
		{MemorialDay, 2025, d(2025, time.May, 26)},
		{FathersDay, 2025, d(2025, time.June, 15)},
		{LaborDay, 2024, d(2024, time.September, 2)},
		{LaborDay, 2025, d(2025, time.September, 1)},
		{ColumbusDay, 2025, d(2025, time.October, 13)},
		{EndOfSummer, 2025, d(2025, time.August, 30)},
	}
	for _, tt := range tests {
		got, err := Date(tt.holiday, tt.year)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %d", tt.holiday, tt.year)
	}
}

func TestDate_Easter(t *testing.T) {
	tests := []struct {
		year int
		want time.Time
	}{
		{2024, d(2024, time.March, 31)},
		{2025, d(2025, time.April, 20)},
		{2026, d(2026, time.April, 5)},
	}
	for _, tt := range tests {
		got, err := Date(Easter, tt.year)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "easter %d", tt.year)
	}
}

func TestDate_BlackFridayAndCyberMondayOffsets(t *testing.T) {
	for year := 2020; year <= 2030; year++ {
		tg := MustDate(Thanksgiving, year)
		assert.Equal(t, tg.AddDate(0, 0, 1), MustDate(BlackFriday, year))
		assert.Equal(t, tg.AddDate(0, 0, 4), MustDate(CyberMonday, year))
		assert.Equal(t, time.Thursday, tg.Weekday())
	}
}

func TestDate_Deterministic(t *testing.T) {
	for _, h := range All {
		first, err := Date(h, 2025)
		require.NoError(t, err)
		second, err := Date(h, 2025)
		require.NoError(t, err)
		assert.Equal(t, first, second, string(h))
	}
}

func TestDate_UnknownHoliday(t *testing.T) {
	_, err := Date(Holiday("festivus"), 2025)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown holiday")
}

func TestAdjustAcrossYears_HolidayAnchored(t *testing.T) {
	// A sale starting the day before Black Friday 2024 (Nov 28) should land
	// the day before Black Friday 2025 (Nov 27).
	got, err := AdjustAcrossYears(d(2024, time.November, 28), 2024, 2025, BlackFriday)
	require.NoError(t, err)
	assert.Equal(t, d(2025, time.November, 27), got)
}

func TestAdjustAcrossYears_NoAnchor(t *testing.T) {
	got, err := AdjustAcrossYears(d(2024, time.June, 10), 2024, 2025, "")
	require.NoError(t, err)
	assert.Equal(t, d(2025, time.June, 10), got)
}

func TestAdjustAcrossYears_LeapDayClamped(t *testing.T) {
	got, err := AdjustAcrossYears(d(2024, time.February, 29), 2024, 2025, "")
	require.NoError(t, err)
	assert.Equal(t, d(2025, time.February, 28), got)

	// Leap to leap keeps Feb 29.
	got, err = AdjustAcrossYears(d(2024, time.February, 29), 2024, 2028, "")
	require.NoError(t, err)
	assert.Equal(t, d(2028, time.February, 29), got)
}

func TestAdjustAcrossYears_RoundTrip(t *testing.T) {
	anchors := []Holiday{Thanksgiving, Easter, MemorialDay, LaborDay, ""}
	dates := []time.Time{
		d(2024, time.November, 25),
		d(2024, time.April, 2),
		d(2024, time.May, 30),
		d(2024, time.September, 1),
		d(2024, time.July, 4),
	}
	for _, anchor := range anchors {
		for _, orig := range dates {
			there, err := AdjustAcrossYears(orig, 2024, 2026, anchor)
			require.NoError(t, err)
			back, err := AdjustAcrossYears(there, 2026, 2024, anchor)
			require.NoError(t, err)
			assert.Equal(t, orig, back, "anchor=%q date=%s", anchor, orig)
		}
	}
}

func TestAdjustAcrossYears_UnknownAnchor(t *testing.T) {
	_, err := AdjustAcrossYears(d(2024, time.June, 1), 2024, 2025, Holiday("festivus"))
	require.Error(t, err)
}

func TestCalendar_Year_SortedAndComplete(t *testing.T) {
	cal := NewCalendar()
	infos := cal.Year(2025)
	require.Len(t, infos, len(All))
	for i := 1; i < len(infos); i++ {
		assert.False(t, infos[i].Date.Before(infos[i-1].Date))
	}
}

func TestCalendar_Nearest(t *testing.T) {
	cal := NewCalendar()

	info, ok := cal.Nearest(d(2024, time.November, 27), 14)
	require.True(t, ok)
	assert.Equal(t, Thanksgiving, info.Holiday)

	// Jan 2 should find New Year's Day, not miss year-boundary holidays.
	info, ok = cal.Nearest(d(2025, time.January, 2), 7)
	require.True(t, ok)
	assert.Equal(t, NewYearsDay, info.Holiday)

	// Late December reaches into the following year.
	info, ok = cal.Nearest(d(2024, time.December, 30), 7)
	require.True(t, ok)
	assert.Equal(t, NewYearsEve, info.Holiday)

	// Nothing within one day of a quiet mid-month date.
	_, ok = cal.Nearest(d(2025, time.March, 10), 1)
	assert.False(t, ok)
}

func TestCalendar_DetectAnchor(t *testing.T) {
	cal := NewCalendar()

	anchor, ok := cal.DetectAnchor(d(2024, time.November, 29))
	require.True(t, ok)
	assert.Equal(t, BlackFriday, anchor)

	_, ok = cal.DetectAnchor(d(2025, time.March, 10))
	assert.False(t, ok)
}

func TestCalendar_DetectAnchorWithin(t *testing.T) {
	cal := NewCalendar()

	// Nov 25 2024 is 3 days from Thanksgiving (Nov 28).
	start := d(2024, time.November, 25)

	_, ok := cal.DetectAnchorWithin(start, 2)
	assert.False(t, ok)

	anchor, ok := cal.DetectAnchorWithin(start, 3)
	require.True(t, ok)
	assert.Equal(t, Thanksgiving, anchor)

	// Non-positive bounds fall back to the default.
	anchor, ok = cal.DetectAnchorWithin(start, 0)
	require.True(t, ok)
	assert.Equal(t, Thanksgiving, anchor)
}

func TestGet_InfoFields(t *testing.T) {
	info, err := Get(Thanksgiving, 2024)
	require.NoError(t, err)
	assert.Equal(t, "Thanksgiving", info.Name)
	assert.True(t, info.Floating)

	info, err = Get(Christmas, 2024)
	require.NoError(t, err)
	assert.Equal(t, "Christmas", info.Name)
	assert.False(t, info.Floating)
}
