package ephemeris

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const j2000 = 2451545.0

const (
	degToRad    = math.Pi / 180.0
	arcsecToRad = math.Pi / 180.0 / 3600.0
)

// JulianDate converts a time.Time (UTC) to Julian Date.
// Uses the standard astronomical algorithm valid for dates after March 1, 4801 BC.
func JulianDate(t time.Time) float64 {
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	h := float64(t.Hour())
	min := float64(t.Minute())
	s := float64(t.Second()) + float64(t.Nanosecond())/1e9

	// Adjust year/month for Jan/Feb (treat as months 13/14 of previous year).
	if m <= 2 {
		y -= 1
		m += 12
	}

	A := math.Floor(y / 100)
	B := 2 - A + math.Floor(A/4)

	jd := math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + B - 1524.5
	jd += (h + min/60.0 + s/3600.0) / 24.0

	return jd
}

// GMST calculates Greenwich Mean Sidereal Time in radians for a given UTC time.
func GMST(t time.Time) float64 {
	return GMSTAtMJD(JulianDate(t.UTC()) - 2400000.5)
}

// GMSTAtMJD calculates Greenwich Mean Sidereal Time in radians at an MJD (UT).
// Uses the IAU-82 model as described in Vallado "Fundamentals of Astrodynamics".
//
// Formula (Vallado Eq 3-47):
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
//
// where T is Julian centuries of UT1 from J2000.0, result is in seconds of time.
func GMSTAtMJD(mjd float64) float64 {
	jd := mjd + 2400000.5
	tUT1 := (jd - j2000) / 36525.0

	// GMST in seconds of time.
	// 876600h = 876600 * 3600 = 3155760000 seconds.
	gmstSec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	// Normalize to [0, 86400) seconds, then convert to radians.
	gmstSec = math.Mod(gmstSec, 86400.0)
	if gmstSec < 0 {
		gmstSec += 86400.0
	}
	return gmstSec / 86400.0 * 2.0 * math.Pi
}

// Nutation returns the nutation in longitude Δψ and the true obliquity of
// the ecliptic ε at an MJD, both in radians.
//
// Truncated IAU-1980 series (Meeus, "Astronomical Algorithms", Ch. 22).
// Accuracy ~0.5 arcsec in Δψ, which keeps apparent sidereal time good to a
// few milliseconds — well inside the whole-second truncation the schedule
// arithmetic applies downstream.
func Nutation(mjd float64) (dpsi, eps float64) {
	t := (mjd + 2400000.5 - j2000) / 36525.0

	// Longitude of the lunar ascending node, mean longitudes of Sun and Moon.
	om := (125.04452 - 1934.136261*t) * degToRad
	ls := (280.4665 + 36000.7698*t) * degToRad
	lm := (218.3165 + 481267.8813*t) * degToRad

	dpsi = (-17.20*math.Sin(om) - 1.32*math.Sin(2*ls) -
		0.23*math.Sin(2*lm) + 0.21*math.Sin(2*om)) * arcsecToRad

	deps := (9.20*math.Cos(om) + 0.57*math.Cos(2*ls) +
		0.10*math.Cos(2*lm) - 0.09*math.Cos(2*om)) * arcsecToRad
	eps = (23.439291-0.0130042*t)*degToRad + deps
	return dpsi, eps
}

// EquationOfEquinoxes returns GAST - GMST in radians at an MJD.
func EquationOfEquinoxes(mjd float64) float64 {
	dpsi, eps := Nutation(mjd)
	return dpsi * math.Cos(eps)
}

// AppSiderealAtMJD calculates Greenwich Apparent Sidereal Time in radians
// at an MJD (UT): GMST plus the equation of equinoxes.
func AppSiderealAtMJD(mjd float64) float64 {
	gast := GMSTAtMJD(mjd) + EquationOfEquinoxes(mjd)
	gast = math.Mod(gast, 2*math.Pi)
	if gast < 0 {
		gast += 2 * math.Pi
	}
	return gast
}
