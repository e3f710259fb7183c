// Package timewindow computes the calendar dates and naive local timestamps
// the scheduler and health checker work with. "Tomorrow" is always evaluated
// in the target profile's zone, never the caller's: the current instant is
// converted into the zone first and the day is advanced by wall-clock
// calendar arithmetic there. A naive UTC +24h is wrong across DST
// boundaries and is deliberately not used.
package timewindow

import (
	"fmt"
	"time"
)

// Date is a calendar date with no time-of-day or zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// TomorrowInZone returns the calendar date that is "tomorrow" as of the
// given instant when evaluated in zone. The instant may be expressed in any
// location; only the zone's own clock matters.
//
// The noon anchor keeps the computation stable on days where midnight does
// not exist locally (spring-forward transitions that skip 00:00).
func TomorrowInZone(now time.Time, zone string) (Date, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Date{}, fmt.Errorf("loading zone %q: %w", zone, err)
	}
	y, m, d := now.In(loc).Date()
	ny, nm, nd := time.Date(y, m, d+1, 12, 0, 0, 0, loc).Date()
	return Date{Year: ny, Month: nm, Day: nd}, nil
}

// LocalDate returns the calendar date of the given instant evaluated in zone.
func LocalDate(t time.Time, zone string) (Date, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Date{}, fmt.Errorf("loading zone %q: %w", zone, err)
	}
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}, nil
}

// LocalWallClock renders a naive local timestamp for the given date and
// time of day. The result carries no offset information and must be paired
// with its zone wherever it is stored or transmitted.
func LocalWallClock(d Date, hour, minute int) string {
	return fmt.Sprintf("%sT%02d:%02d:00", d, hour, minute)
}

// ParseWallClock interprets a naive local timestamp in the given zone and
// returns the instant it denotes.
func ParseWallClock(s, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("loading zone %q: %w", zone, err)
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing wall clock %q: %w", s, err)
	}
	return t, nil
}
