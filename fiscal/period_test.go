package fiscal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lustra/fiscal-engine/fiscal"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(year int, month time.Month, day int) fiscal.Date {
	return fiscal.NewDate(year, month, day)
}

// =============================================================================
// PERIOD RESOLUTION TESTS
// =============================================================================

func TestPeriodContaining_AnchorDay_StartsThatDay(t *testing.T) {
	// GIVEN: A Friday-anchored calendar
	// WHEN: Resolving a date that is itself a Friday
	// THEN: The period starts on that date and spans exactly 7 days

	cal := fiscal.DefaultCalendar()
	friday := date(2026, time.August, 28)
	require.Equal(t, time.Friday, friday.Weekday())

	p := cal.PeriodContaining(friday)
	assert.True(t, p.Start.Equal(friday))
	assert.True(t, p.End.Equal(friday.AddDays(7)))
}

func TestPeriodContaining_MidPeriod_RollsBackToAnchor(t *testing.T) {
	cal := fiscal.DefaultCalendar()
	friday := date(2026, time.August, 28)

	cases := []struct {
		name string
		day  fiscal.Date
	}{
		{"saturday after anchor", date(2026, time.August, 29)},
		{"sunday after anchor", date(2026, time.August, 30)},
		{"monday", date(2026, time.August, 31)},
		{"thursday before next anchor", date(2026, time.September, 3)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := cal.PeriodContaining(tc.day)
			assert.True(t, p.Start.Equal(friday), "got start %s", p.Start)
			assert.True(t, p.End.Equal(friday.AddDays(7)))
		})
	}
}

func TestPeriodContaining_Stability(t *testing.T) {
	// GIVEN: Any period
	// WHEN: Resolving every date from its start up to (not including) its end
	// THEN: All of them resolve to the same period

	cal := fiscal.NewCalendar(time.Monday)
	p := cal.PeriodContaining(date(2026, time.March, 11))

	for d := p.Start; d.Before(p.End); d = d.AddDays(1) {
		got := cal.PeriodContaining(d)
		assert.True(t, got.Start.Equal(p.Start), "date %s escaped its period", d)
	}
}

func TestPeriodContaining_EndDateBelongsToNextPeriod(t *testing.T) {
	// The end boundary is exclusive: the anchor weekday a week later opens
	// the following period.
	cal := fiscal.DefaultCalendar()
	p := cal.PeriodContaining(date(2026, time.August, 28))

	next := cal.PeriodContaining(p.End)
	assert.True(t, next.Start.Equal(p.End))
}

func TestNext_AbutsWithoutGap(t *testing.T) {
	cal := fiscal.DefaultCalendar()
	p := cal.PeriodContaining(date(2026, time.August, 28))

	next := cal.Next(p)
	assert.True(t, next.Start.Equal(p.End))
	assert.True(t, next.End.Equal(p.End.AddDays(7)))
}

func TestPeriodStartingAt_NormalizesOffAnchorDates(t *testing.T) {
	// A mid-week date handed to PeriodStartingAt snaps to the enclosing
	// period rather than producing a misaligned window.
	cal := fiscal.DefaultCalendar()

	p := cal.PeriodStartingAt(date(2026, time.August, 31)) // a Monday
	assert.Equal(t, time.Friday, p.Start.Weekday())
	assert.True(t, p.Start.Equal(date(2026, time.August, 28)))
}

func TestPeriodContaining_YearBoundary(t *testing.T) {
	// GIVEN: A date in the first days of January
	// WHEN: The enclosing period started in the previous year
	// THEN: Resolution crosses the year boundary correctly

	cal := fiscal.DefaultCalendar()
	jan1 := date(2027, time.January, 1) // a Friday

	p := cal.PeriodContaining(date(2027, time.January, 3))
	assert.True(t, p.Start.Equal(jan1))

	prev := cal.PeriodContaining(date(2026, time.December, 31))
	assert.True(t, prev.End.Equal(jan1))
}

func TestContains(t *testing.T) {
	cal := fiscal.DefaultCalendar()
	p := cal.PeriodContaining(date(2026, time.August, 28))

	assert.True(t, p.Contains(p.Start))
	assert.True(t, p.Contains(p.Start.AddDays(6)))
	assert.False(t, p.Contains(p.End))
	assert.False(t, p.Contains(p.Start.AddDays(-1)))
}

// =============================================================================
// DATE TESTS
// =============================================================================

func TestParseDate_RoundTrip(t *testing.T) {
	d, err := fiscal.ParseDate("2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-28", d.String())

	_, err = fiscal.ParseDate("28/08/2026")
	assert.Error(t, err)
}

func TestISOWeekday_SundayIsSeven(t *testing.T) {
	sunday := date(2026, time.August, 30)
	require.Equal(t, time.Sunday, sunday.Weekday())
	assert.Equal(t, 7, sunday.ISOWeekday())

	monday := date(2026, time.August, 31)
	assert.Equal(t, 1, monday.ISOWeekday())
}
