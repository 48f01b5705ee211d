package scan

import (
	"fmt"

	"github.com/cmbsim/scansim/internal/backend"
	"github.com/cmbsim/scansim/internal/ephemeris"
	"github.com/cmbsim/scansim/internal/site"
)

// stepState carries the kinematic state of one CES sweep into a stepper.
// Azimuth is tracked in degrees (the catalogue's unit); records convert to
// radians when the arrays are sealed.
type stepState struct {
	site  *site.Site
	date  ephemeris.Date // sidereal-reset cursor, start of the sweep
	elRad float64

	runningAz float64 // deg
	upperAz   float64 // deg
	lowerAz   float64 // deg
	azSpeed   float64 // deg/s, sky speed scaled 1/cos(el)
	dir       float64 // +1 east, -1 west

	sampleFreq float64
	firstMJD   float64 // truncated MJD of sample 0
}

// trajectoryStepper fills the per-sample arrays of one CES. Implementations
// must produce bit-identical azimuth and timestamp sequences; only the
// reference stepper provides sky coordinates.
type trajectoryStepper interface {
	// Step fills azDeg, mjd and, when supported, ra/dec (nil otherwise).
	Step(st *stepState, azDeg, mjd, ra, dec []float64)
	SkyCoords() bool
	Mode() backend.Mode
}

// newStepper returns the trajectory stepper for a mode.
func newStepper(m backend.Mode) (trajectoryStepper, error) {
	switch m {
	case backend.Reference:
		return referenceStepper{}, nil
	case backend.AcceleratedCompiled:
		return compiledStepper{}, nil
	case backend.AcceleratedNative:
		return nativeStepper{}, nil
	}
	return nil, &ConfigError{Field: "backend", Msg: fmt.Sprintf("unknown mode %v", m)}
}

const degToRad = 3.141592653589793 / 180.0

// referenceStepper walks the sweep one sample at a time and converts each
// horizontal pointing to equatorial coordinates at the instantaneous cursor
// time. Complete but the slowest path.
type referenceStepper struct{}

func (referenceStepper) SkyCoords() bool    { return true }
func (referenceStepper) Mode() backend.Mode { return backend.Reference }

func (referenceStepper) Step(st *stepState, azDeg, mjd, ra, dec []float64) {
	secPerSample := ephemeris.Second / st.sampleFreq
	cursor := st.date

	for t := range azDeg {
		azDeg[t] = st.runningAz
		if t == 0 {
			mjd[0] = st.firstMJD
		} else {
			mjd[t] = mjd[t-1] + secPerSample
		}

		ra[t], dec[t] = st.site.RADecOf(azDeg[t]*degToRad, st.elRad, cursor.MJD())

		// Reversal is decided on the position before the increment, so the
		// sweep can overshoot its bound by up to one step.
		if st.runningAz > st.upperAz {
			st.dir = -1.0
		} else if st.runningAz < st.lowerAz {
			st.dir = 1.0
		}
		st.runningAz += st.azSpeed * st.dir / st.sampleFreq

		cursor += ephemeris.Date(secPerSample)
	}
}

// compiledStepper is the tight-loop path: azimuth and timestamps only, no
// per-sample coordinate transform. Mirrors referenceStepper's arithmetic
// exactly so the two agree bit for bit on the arrays they share.
type compiledStepper struct{}

func (compiledStepper) SkyCoords() bool    { return false }
func (compiledStepper) Mode() backend.Mode { return backend.AcceleratedCompiled }

func (compiledStepper) Step(st *stepState, azDeg, mjd, _, _ []float64) {
	secPerSample := ephemeris.Second / st.sampleFreq
	for t := range azDeg {
		azDeg[t] = st.runningAz
		if t == 0 {
			mjd[0] = st.firstMJD
		} else {
			mjd[t] = mjd[t-1] + secPerSample
		}

		if st.runningAz > st.upperAz {
			st.dir = -1.0
		} else if st.runningAz < st.lowerAz {
			st.dir = 1.0
		}
		st.runningAz += st.azSpeed * st.dir / st.sampleFreq
	}
}

// nativeStepper processes the preallocated arrays in fixed-size chunks, the
// shape of the precompiled kernel it stands in for. Same arithmetic, same
// outputs, no sky coordinates.
type nativeStepper struct{}

func (nativeStepper) SkyCoords() bool    { return false }
func (nativeStepper) Mode() backend.Mode { return backend.AcceleratedNative }

const nativeChunk = 4096

func (nativeStepper) Step(st *stepState, azDeg, mjd, _, _ []float64) {
	secPerSample := ephemeris.Second / st.sampleFreq

	for base := 0; base < len(azDeg); base += nativeChunk {
		end := base + nativeChunk
		if end > len(azDeg) {
			end = len(azDeg)
		}
		for t := base; t < end; t++ {
			azDeg[t] = st.runningAz
			if t == 0 {
				mjd[0] = st.firstMJD
			} else {
				mjd[t] = mjd[t-1] + secPerSample
			}

			if st.runningAz > st.upperAz {
				st.dir = -1.0
			} else if st.runningAz < st.lowerAz {
				st.dir = 1.0
			}
			st.runningAz += st.azSpeed * st.dir / st.sampleFreq
		}
	}
}
