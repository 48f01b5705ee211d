// Package focalplane spreads a boresight hit map over a model focal plane.
// Diagnostic tool: the result shows survey coverage, not calibrated weights.
package focalplane

import (
	"errors"
	"fmt"
	"math"

	"github.com/cmbsim/scansim/internal/healpix"
	"github.com/cmbsim/scansim/internal/metrics"
)

var (
	// ErrEmptyFootprint means the focal-plane radius is below the map
	// resolution, leaving no pixel offsets to convolve with.
	ErrEmptyFootprint = errors.New("focal-plane footprint smaller than one pixel")

	// ErrBadBoloCount rejects a non-positive detector count.
	ErrBadBoloCount = errors.New("detector count must be positive")
)

// Convolve smears the boresight hit map boreNhits over a circular focal
// plane of nbolos detectors with the given radius, scaled by boost.
//
// The footprint is a disc in pixel units; every offset pixel receives the
// boresight hits times detectors-per-pixel times boost. Offsets that land on
// the same sky pixel are accumulated twice on purpose, matching the survey
// count a real focal plane would produce near the poles.
func Convolve(boreNhits []float64, nbolos int, fpRadiusAmin, boost float64) ([]float64, error) {
	if nbolos <= 0 {
		return nil, fmt.Errorf("focalplane: %w: %d", ErrBadBoloCount, nbolos)
	}
	nside, err := healpix.Npix2Nside(len(boreNhits))
	if err != nil {
		return nil, fmt.Errorf("focalplane: hit map: %w", err)
	}
	resolAmin, err := healpix.ResolutionArcmin(nside)
	if err != nil {
		return nil, fmt.Errorf("focalplane: %w", err)
	}
	fpRadBins := int(fpRadiusAmin * 2.0 / resolAmin)

	// Disc footprint in pixel units, strict interior.
	var dRA, dDec []float64
	for x := -fpRadBins; x <= fpRadBins; x++ {
		for y := -fpRadBins; y <= fpRadBins; y++ {
			if x*x+y*y >= fpRadBins*fpRadBins {
				continue
			}
			scale := fpRadiusAmin / (float64(fpRadBins) * 60.0 * (180.0 / math.Pi))
			dRA = append(dRA, float64(x)*scale)
			dDec = append(dDec, float64(y)*scale)
		}
	}
	if len(dRA) == 0 {
		return nil, fmt.Errorf("focalplane: radius %g arcmin at %g arcmin/pix: %w",
			fpRadiusAmin, resolAmin, ErrEmptyFootprint)
	}

	boloPerPix := float64(nbolos) / float64(len(dRA))
	out := make([]float64, len(boreNhits))

	for n, hits := range boreNhits {
		if hits == 0 {
			continue
		}
		thetaBore, phiBore, err := healpix.Pix2Ang(nside, n)
		if err != nil {
			return nil, fmt.Errorf("focalplane: pixel %d: %w", n, err)
		}
		// Meridian convergence: a fixed sky offset spans more longitude
		// away from the equator. Pixel centres never sit on a pole.
		sinTheta := math.Sin(thetaBore)

		for i := range dRA {
			phi := phiBore + dRA[i]/sinTheta
			theta := thetaBore + dDec[i]
			pix, err := healpix.Ang2Pix(nside, theta, phi)
			if err != nil {
				return nil, fmt.Errorf("focalplane: offset %d of pixel %d: %w", i, n, err)
			}
			out[pix] += hits * boloPerPix * boost
		}
		metrics.ConvolutionPixels.Inc()
	}

	return out, nil
}
