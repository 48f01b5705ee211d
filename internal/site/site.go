// Package site models the ground observation site: its geodetic location,
// its local sidereal clock, and the instantaneous topocentric transform from
// horizontal (azimuth/elevation) to equatorial (RA/Dec) coordinates.
package site

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cmbsim/scansim/internal/ephemeris"
	"github.com/cmbsim/scansim/internal/iers"
)

// ErrBadAngle reports a site coordinate string that cannot be parsed.
var ErrBadAngle = errors.New("bad angle string")

// Default location: the Atacama site of the reference experiment.
const (
	DefaultLongitude  = "-67:46.816"
	DefaultLatitude   = "-22:56.396"
	DefaultElevationM = 5200.0
)

// Site holds a ground observer's location. Longitude and latitude are stored
// in radians, elevation in meters above sea level. Immutable after New; safe
// for concurrent use.
type Site struct {
	LonRad float64
	LatRad float64
	ElevM  float64

	// Precomputed for the horizontal→equatorial transform.
	sinLat, cosLat float64

	ut1utc *iers.Table // optional UT1−UTC correction; nil means zero
}

// Option configures a Site.
type Option func(*Site)

// WithUT1UTC attaches a UT1−UTC correction table. Sidereal time lookups
// shift the UT argument by the tabulated offset.
func WithUT1UTC(t *iers.Table) Option {
	return func(s *Site) { s.ut1utc = t }
}

// New creates a Site from coordinate strings. Angles accept decimal degrees
// ("-67.78") or sexagesimal "D:M", "D:M.m", "D:M:S" forms.
func New(longitude, latitude string, elevationM float64, opts ...Option) (*Site, error) {
	lonDeg, err := ParseAngle(longitude)
	if err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}
	latDeg, err := ParseAngle(latitude)
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	if latDeg < -90 || latDeg > 90 {
		return nil, fmt.Errorf("%w: latitude %v out of [-90, 90]", ErrBadAngle, latDeg)
	}

	s := &Site{
		LonRad: lonDeg * math.Pi / 180.0,
		LatRad: latDeg * math.Pi / 180.0,
		ElevM:  elevationM,
	}
	s.sinLat = math.Sin(s.LatRad)
	s.cosLat = math.Cos(s.LatRad)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Default returns the default site.
func Default() *Site {
	s, err := New(DefaultLongitude, DefaultLatitude, DefaultElevationM)
	if err != nil {
		panic(err) // constants above are valid
	}
	return s
}

// ParseAngle parses an angle in decimal degrees or colon-separated
// sexagesimal form. The sign applies to the whole angle.
func ParseAngle(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrBadAngle)
	}

	sign := 1.0
	switch s[0] {
	case '-':
		sign = -1.0
		s = s[1:]
	case '+':
		s = s[1:]
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: too many fields in %q", ErrBadAngle, s)
	}

	var deg float64
	scale := 1.0
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: field %d of %q", ErrBadAngle, i, s)
		}
		if v < 0 {
			return 0, fmt.Errorf("%w: embedded sign in field %d of %q", ErrBadAngle, i, s)
		}
		deg += v * scale
		scale /= 60.0
	}
	return sign * deg, nil
}

// LocalApparentSiderealTime returns the local apparent sidereal time in
// radians [0, 2π) at an MJD (UTC).
func (s *Site) LocalApparentSiderealTime(mjd float64) float64 {
	if s.ut1utc != nil {
		mjd += s.ut1utc.OffsetAt(mjd) / ephemeris.SecondsPerDay
	}
	lst := ephemeris.AppSiderealAtMJD(mjd) + s.LonRad
	lst = math.Mod(lst, 2*math.Pi)
	if lst < 0 {
		lst += 2 * math.Pi
	}
	return lst
}

// RADecOf converts an instantaneous horizontal pointing to equatorial
// coordinates at the given time. Azimuth is measured from North, clockwise
// through East; all angles in radians. No atmospheric refraction is applied:
// consumers run the simulated trajectory back through the same model, so the
// transform stays self-consistent.
func (s *Site) RADecOf(az, el, mjd float64) (ra, dec float64) {
	lst := s.LocalApparentSiderealTime(mjd)
	return s.RADecOfLST(az, el, lst)
}

// RADecOfLST is RADecOf with a precomputed local sidereal time, for tight
// loops that step time externally.
func (s *Site) RADecOfLST(az, el, lst float64) (ra, dec float64) {
	sinEl := math.Sin(el)
	cosEl := math.Cos(el)
	sinAz := math.Sin(az)
	cosAz := math.Cos(az)

	sinDec := sinEl*s.sinLat + cosEl*s.cosLat*cosAz
	dec = math.Asin(sinDec)

	// Hour angle from the same spherical triangle; RA = LST - HA.
	ha := math.Atan2(-sinAz*cosEl, s.cosLat*sinEl-s.sinLat*cosEl*cosAz)
	ra = lst - ha
	ra = math.Mod(ra, 2*math.Pi)
	if ra < 0 {
		ra += 2 * math.Pi
	}
	return ra, dec
}

// AzElOf is the inverse transform: equatorial to horizontal at the given
// time. Azimuth from North, clockwise through East; radians.
func (s *Site) AzElOf(ra, dec, mjd float64) (az, el float64) {
	lst := s.LocalApparentSiderealTime(mjd)
	ha := lst - ra

	sinDec := math.Sin(dec)
	cosDec := math.Cos(dec)
	cosHA := math.Cos(ha)

	sinEl := sinDec*s.sinLat + cosDec*s.cosLat*cosHA
	el = math.Asin(sinEl)

	az = math.Atan2(-math.Sin(ha)*cosDec, s.cosLat*sinDec-s.sinLat*cosDec*cosHA)
	if az < 0 {
		az += 2 * math.Pi
	}
	return az, el
}
