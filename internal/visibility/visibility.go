// Package visibility predicts when a fixed sky target rises above a minimum
// elevation at an observing site. Used to sanity-check a scan schedule
// against the patch it claims to observe.
package visibility

import (
	"context"
	"fmt"
	"math"

	"github.com/cmbsim/scansim/internal/ephemeris"
	"github.com/cmbsim/scansim/internal/site"
)

// Window is one interval during which the target stays above the elevation
// cut. Times are MJD, angles degrees.
type Window struct {
	StartMJD        float64
	MaxElevationMJD float64
	EndMJD          float64
	DurationSec     float64
	MaxElevationDeg float64
	AzimuthAtMaxDeg float64
}

// Request holds the parameters of a visibility prediction.
type Request struct {
	Site *site.Site

	// Target center, degrees.
	RADeg  float64
	DecDeg float64

	StartMJD        float64
	HorizonDays     float64
	MinElevationDeg float64

	// MaxWindows caps the number of returned windows; 0 means no cap.
	MaxWindows int
}

const (
	coarseStepDay = 30.0 / ephemeris.SecondsPerDay
	fineStepDay   = 1.0 / ephemeris.SecondsPerDay

	degToRad = math.Pi / 180.0
)

// Predict scans the horizon for visibility windows: a coarse 30 s sweep
// finds above-cut regions, a 1 s sweep pins the rise and set times.
func Predict(ctx context.Context, req Request) ([]Window, error) {
	if req.Site == nil {
		return nil, fmt.Errorf("visibility: nil site")
	}
	if req.HorizonDays <= 0 {
		return nil, fmt.Errorf("visibility: horizon %g days must be positive", req.HorizonDays)
	}
	if req.MinElevationDeg < 0 || req.MinElevationDeg >= 90 {
		return nil, fmt.Errorf("visibility: elevation cut %g deg out of [0, 90)", req.MinElevationDeg)
	}

	ra := req.RADeg * degToRad
	dec := req.DecDeg * degToRad
	minEl := req.MinElevationDeg * degToRad
	end := req.StartMJD + req.HorizonDays

	var windows []Window
	t := req.StartMJD
	for t < end {
		if err := ctx.Err(); err != nil {
			return windows, err
		}
		if req.MaxWindows > 0 && len(windows) >= req.MaxWindows {
			break
		}

		_, el := req.Site.AzElOf(ra, dec, t)
		if el <= minEl {
			t += coarseStepDay
			continue
		}

		w := refine(req.Site, ra, dec, minEl, t, req.StartMJD, end)
		windows = append(windows, w)
		t = w.EndMJD + coarseStepDay
	}
	return windows, nil
}

// refine walks backward to the rise crossing and forward to the set
// crossing at 1 s resolution, tracking the culmination.
func refine(st *site.Site, ra, dec, minEl, coarseHit, windowStart, windowEnd float64) Window {
	rise := coarseHit
	for rise-fineStepDay >= windowStart {
		_, el := st.AzElOf(ra, dec, rise-fineStepDay)
		if el <= minEl {
			break
		}
		rise -= fineStepDay
	}

	var (
		maxEl   = math.Inf(-1)
		maxT    = rise
		azAtMax float64
		setTime = rise
	)
	for t := rise; t < windowEnd; t += fineStepDay {
		az, el := st.AzElOf(ra, dec, t)
		if el <= minEl {
			break
		}
		if el > maxEl {
			maxEl = el
			maxT = t
			azAtMax = az
		}
		setTime = t
	}

	return Window{
		StartMJD:        rise,
		MaxElevationMJD: maxT,
		EndMJD:          setTime,
		DurationSec:     (setTime - rise) * ephemeris.SecondsPerDay,
		MaxElevationDeg: maxEl / degToRad,
		AzimuthAtMaxDeg: azAtMax / degToRad,
	}
}
