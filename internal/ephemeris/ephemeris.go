// Package ephemeris provides the time arithmetic the scan synthesizer is
// built on: conversions between the engine's internal day-count epoch,
// Gregorian calendar strings, and Modified Julian Date, plus Greenwich
// sidereal time.
//
// The internal Date epoch is 1899 December 31 12:00 UT (the Dublin Julian
// Date zero point), carried over from the reference engine so that existing
// observation schedules keep their numeric values.
package ephemeris

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDate reports a calendar date that cannot be represented,
// either on parse (bad field values) or on conversion (out of range).
var ErrInvalidDate = errors.New("invalid date")

const (
	// DateEpochMJD is the MJD of Date zero (1899 December 31 12:00 UT).
	DateEpochMJD = 15019.5

	// SecondsPerDay is the length of the solar day in SI seconds.
	SecondsPerDay = 86400.0

	// SiderealDaySec is the length of the sidereal day in SI seconds.
	SiderealDaySec = 86164.0905

	// Second is one SI second expressed in days.
	Second = 1.0 / SecondsPerDay
)

// Date is a continuous day count since 1899 December 31 12:00 UT.
// Plain float64 arithmetic (Date + n*Second) advances the clock.
type Date float64

// MJD returns the Modified Julian Date of d.
func (d Date) MJD() float64 { return float64(d) + DateEpochMJD }

// DateFromMJD returns the Date corresponding to an MJD.
func DateFromMJD(mjd float64) Date { return Date(mjd - DateEpochMJD) }

// AddSeconds returns d advanced by sec SI seconds (negative moves back).
func (d Date) AddSeconds(sec float64) Date { return d + Date(sec*Second) }

// AddDays returns d advanced by whole or fractional days.
func (d Date) AddDays(days float64) Date { return d + Date(days) }

// DateToGregorian formats d as "YYYYMMDD_HHMMSS", truncating sub-second
// precision. Deterministic for any representable date.
func DateToGregorian(d Date) (string, error) {
	return MJDToGregorian(d.MJD())
}

// DateToMJD converts d to MJD via the Gregorian round trip, truncating to
// whole seconds exactly like the reference engine. This is the lossy path:
// use d.MJD() where sub-second precision matters.
func DateToMJD(d Date) (float64, error) {
	g, err := DateToGregorian(d)
	if err != nil {
		return 0, err
	}
	return GregorianToMJD(g)
}

// GregorianToMJD parses a "YYYYMMDD_HHMMSS" string into an MJD.
// Fields are fixed width: year 4, month 2, day 2, separator, hour 2,
// minute 2, second 2.
func GregorianToMJD(greg string) (float64, error) {
	if len(greg) != 15 || greg[8] != '_' {
		return 0, fmt.Errorf("%w: gregorian string %q not in YYYYMMDD_HHMMSS form", ErrInvalidDate, greg)
	}
	year, err := parseFixed(greg[0:4])
	if err != nil {
		return 0, fmt.Errorf("%w: bad year in %q", ErrInvalidDate, greg)
	}
	month, err := parseFixed(greg[4:6])
	if err != nil {
		return 0, fmt.Errorf("%w: bad month in %q", ErrInvalidDate, greg)
	}
	day, err := parseFixed(greg[6:8])
	if err != nil {
		return 0, fmt.Errorf("%w: bad day in %q", ErrInvalidDate, greg)
	}
	hour, err := parseFixed(greg[9:11])
	if err != nil {
		return 0, fmt.Errorf("%w: bad hour in %q", ErrInvalidDate, greg)
	}
	minute, err := parseFixed(greg[11:13])
	if err != nil {
		return 0, fmt.Errorf("%w: bad minute in %q", ErrInvalidDate, greg)
	}
	sec, err := parseFixed(greg[13:15])
	if err != nil {
		return 0, fmt.Errorf("%w: bad second in %q", ErrInvalidDate, greg)
	}

	mjd, err := CalendarToMJD(year, month, day)
	if err != nil {
		return 0, err
	}
	frac, err := dayFraction(hour, minute, sec)
	if err != nil {
		return 0, err
	}
	return mjd + frac, nil
}

// MJDToGregorian formats an MJD as "YYYYMMDD_HHMMSS", truncating sub-second
// precision.
func MJDToGregorian(mjd float64) (string, error) {
	year, month, day, frac, err := MJDToCalendar(mjd)
	if err != nil {
		return "", err
	}
	// Truncate the day fraction to whole seconds. The tiny guard absorbs
	// representation noise from repeated Second increments so that an
	// exact-second MJD does not land one second low.
	totalSec := int(frac*SecondsPerDay + 1e-6)
	if totalSec >= 86400 {
		totalSec = 86399
	}
	hour := totalSec / 3600
	minute := (totalSec / 60) % 60
	sec := totalSec % 60
	return fmt.Sprintf("%04d%02d%02d_%02d%02d%02d", year, month, day, hour, minute, sec), nil
}

// CalendarToMJD returns the MJD at 0h UT of a Gregorian calendar date.
// Same role as slalib CLDJ in the reference engine.
func CalendarToMJD(year, month, day int) (float64, error) {
	if year < -4699 {
		return 0, fmt.Errorf("%w: year %d before supported range", ErrInvalidDate, year)
	}
	if month < 1 || month > 12 {
		return 0, fmt.Errorf("%w: month %d out of range", ErrInvalidDate, month)
	}
	if day < 1 || day > daysInMonth(year, month) {
		return 0, fmt.Errorf("%w: day %d out of range for %d-%02d", ErrInvalidDate, day, year, month)
	}

	// Fliegel & Van Flandern Julian day number (valid for the Gregorian
	// calendar), shifted from noon JDN to 0h MJD.
	a := (month - 14) / 12
	jdn := (1461*(year+4800+a))/4 +
		(367*(month-2-12*a))/12 -
		(3*((year+4900+a)/100))/4 +
		day - 32075
	return float64(jdn) - 2400001.0, nil
}

// MJDToCalendar splits an MJD into a Gregorian calendar date and the
// fraction of the day. Same role as slalib DJCL.
func MJDToCalendar(mjd float64) (year, month, day int, frac float64, err error) {
	if math.IsNaN(mjd) || math.IsInf(mjd, 0) {
		return 0, 0, 0, 0, fmt.Errorf("%w: non-finite MJD", ErrInvalidDate)
	}
	// slalib's DJCL range: dates before year -4699 or absurdly far future
	// report a bad date rather than wrapping.
	if mjd <= -2395520.0 || mjd >= 1e9 {
		return 0, 0, 0, 0, fmt.Errorf("%w: MJD %g out of supported range", ErrInvalidDate, mjd)
	}

	dayCount := math.Floor(mjd)
	frac = mjd - dayCount

	// Inverse Fliegel & Van Flandern from the noon JDN.
	l := int(dayCount) + 2400001 + 68569
	n := (4 * l) / 146097
	l -= (146097*n + 3) / 4
	i := (4000 * (l + 1)) / 1461001
	l -= (1461*i)/4 - 31
	j := (80 * l) / 2447
	day = l - (2447*j)/80
	l = j / 11
	month = j + 2 - 12*l
	year = 100*(n-49) + i + l
	return year, month, day, frac, nil
}

// dayFraction converts a time of day to a fraction of a day, rejecting
// out-of-range fields. Same role as slalib DTF2D.
func dayFraction(hour, minute, sec int) (float64, error) {
	if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: hour %d out of range", ErrInvalidDate, hour)
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: minute %d out of range", ErrInvalidDate, minute)
	}
	if sec < 0 || sec > 59 {
		return 0, fmt.Errorf("%w: second %d out of range", ErrInvalidDate, sec)
	}
	return float64(hour*3600+minute*60+sec) / SecondsPerDay, nil
}

// parseFixed parses a fixed-width decimal field. Leading zeros only;
// no signs, spaces, or shorter runs.
func parseFixed(s string) (int, error) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-digit %q", c)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

func daysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	}
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		return 29
	}
	return 28
}

// ParseObservationDate parses the "YYYY/M/D HH:MM:SS" form used by the
// observation schedule (month, day, hour may be a single digit).
func ParseObservationDate(s string) (Date, error) {
	var year, month, day, hour, minute, sec int
	n, err := fmt.Sscanf(s, "%d/%d/%d %d:%d:%d", &year, &month, &day, &hour, &minute, &sec)
	if err != nil || n != 6 {
		return 0, fmt.Errorf("%w: observation date %q not in YYYY/M/D HH:MM:SS form", ErrInvalidDate, s)
	}
	mjd, err := CalendarToMJD(year, month, day)
	if err != nil {
		return 0, err
	}
	frac, err := dayFraction(hour, minute, sec)
	if err != nil {
		return 0, err
	}
	return DateFromMJD(mjd + frac), nil
}
