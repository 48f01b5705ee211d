package scan

import "errors"

// ErrNoSkyCoords reports a ScanRecord produced by an accelerated backend
// that skipped sky-coordinate computation, handed to a consumer that
// requires RA/Dec.
var ErrNoSkyCoords = errors.New("scan record carries no sky coordinates (accelerated backend)")

// ScanRecord is the output of synthesizing one constant-elevation scan:
// fixed-cadence pointing samples plus scalar metadata. Immutable once
// returned by the synthesizer.
type ScanRecord struct {
	// CES is the observation slot index, NCES the total count in the run.
	CES  int
	NCES int

	SampleRateHz      float64
	SkySpeedDegPerSec float64

	// FirstMJD and LastMJD bracket the scan with a ±10 s guard pad.
	// The pad is metadata only; it adds no samples.
	FirstMJD float64
	LastMJD  float64

	// Per-sample arrays, all of equal length. Angles in radians, times in
	// MJD. RA and Dec are nil when HasSkyCoords is false.
	Azimuth   []float64
	Elevation []float64
	RA        []float64
	Dec       []float64
	ClockUTC  []float64

	// HasSkyCoords is false for accelerated backends, which produce only
	// azimuth and timestamps.
	HasSkyCoords bool
}

// NumSamples returns the number of samples in the scan.
func (r *ScanRecord) NumSamples() int { return len(r.ClockUTC) }

// RequireSkyCoords returns ErrNoSkyCoords if the record lacks RA/Dec.
// Consumers that project onto the sky must call this before use.
func (r *ScanRecord) RequireSkyCoords() error {
	if !r.HasSkyCoords {
		return ErrNoSkyCoords
	}
	return nil
}
