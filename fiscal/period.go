package fiscal

import "time"

// =============================================================================
// WEEKLY PERIOD - The unit of aggregation for tax and bonus calculations
// =============================================================================

// WeeklyPeriod is a fixed 7-day half-open span anchored to a specific
// weekday. Start is the first day of activity; End == Start + 7 days is
// exclusive and doubles as the next period's Start, so the shared anchor
// day is attributed to exactly one period. A period is uniquely identified
// by its Start.
type WeeklyPeriod struct {
	Start Date
	End   Date
}

// Contains returns true if the date falls within [Start, End).
func (p WeeklyPeriod) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.Before(p.End)
}

func (p WeeklyPeriod) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + ")"
}

// =============================================================================
// CALENDAR - Computes the canonical period containing any date
// =============================================================================

// Calendar derives weekly periods from an anchor weekday. The zero value is
// not usable; construct with NewCalendar.
type Calendar struct {
	anchor int // ISO day-of-week, 1=Mon..7=Sun
}

// DefaultAnchor is the weekday a fiscal week opens on.
const DefaultAnchor = time.Friday

// NewCalendar creates a calendar anchored on the given weekday.
func NewCalendar(anchor time.Weekday) Calendar {
	iso := int(anchor)
	if iso == 0 {
		iso = 7
	}
	return Calendar{anchor: iso}
}

// DefaultCalendar returns the establishment's standard Friday-anchored calendar.
func DefaultCalendar() Calendar {
	return NewCalendar(DefaultAnchor)
}

// PeriodContaining returns the period whose anchor-weekday start is on or
// before the given date. Dates on weekdays earlier in the cycle than the
// anchor belong to the previous cycle, so the start steps back to the most
// recent anchor weekday.
func (c Calendar) PeriodContaining(d Date) WeeklyPeriod {
	dow := d.ISOWeekday()

	var start Date
	switch {
	case dow == c.anchor:
		start = d
	case dow > c.anchor:
		start = d.AddDays(-(dow - c.anchor))
	default:
		start = d.AddDays(-(dow + 7 - c.anchor))
	}

	return WeeklyPeriod{Start: start, End: start.AddDays(7)}
}

// Next returns the period immediately following p.
func (c Calendar) Next(p WeeklyPeriod) WeeklyPeriod {
	return WeeklyPeriod{Start: p.End, End: p.End.AddDays(7)}
}

// PeriodStartingAt builds the period identified by the given start date.
// The date must fall on the anchor weekday; otherwise the containing period
// is returned, which normalizes stray inputs from the API surface.
func (c Calendar) PeriodStartingAt(start Date) WeeklyPeriod {
	return c.PeriodContaining(start)
}
