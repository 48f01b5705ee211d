package scan

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cmbsim/scansim/internal/backend"
	"github.com/cmbsim/scansim/internal/ephemeris"
	"github.com/cmbsim/scansim/internal/metrics"
	"github.com/cmbsim/scansim/internal/site"
)

// Config selects the strategy, run length, timing, and compute backend of a
// scanning campaign.
type Config struct {
	// StrategyName picks the scan catalogue. Only "deep_patch" is defined.
	StrategyName string

	// NCES is the number of constant-elevation scans to run. At most one
	// per catalogue slot.
	NCES int

	// StartDate is the UTC clock at the start of the campaign.
	StartDate ephemeris.Date

	// SamplingFreqHz is the detector sampling rate.
	SamplingFreqHz float64

	// SkySpeedDegPerSec is the on-sky scan speed; the mount moves faster
	// by 1/cos(elevation).
	SkySpeedDegPerSec float64

	// Mode selects the trajectory backend.
	Mode backend.Mode
}

// Synthesizer generates constant-elevation scan trajectories for one site
// and strategy. Safe for concurrent use: all per-scan state lives in
// SynthesizeCES locals.
type Synthesizer struct {
	site    *site.Site
	strat   *StrategyDefinition
	cfg     Config
	stepper trajectoryStepper
	logger  *slog.Logger
}

// New validates the configuration and builds a synthesizer. All
// configuration errors surface here, before any trajectory work.
func New(st *site.Site, cfg Config, logger *slog.Logger) (*Synthesizer, error) {
	strat, err := StrategyByName(cfg.StrategyName)
	if err != nil {
		return nil, err
	}
	if cfg.NCES < 1 || cfg.NCES > strat.Slots() {
		return nil, &ConfigError{
			Field: "nces",
			Msg:   fmt.Sprintf("must be in [1, %d], got %d", strat.Slots(), cfg.NCES),
		}
	}
	if cfg.SamplingFreqHz <= 0 {
		return nil, &ConfigError{
			Field: "sampling_freq",
			Msg:   fmt.Sprintf("must be positive, got %g", cfg.SamplingFreqHz),
		}
	}
	if cfg.SkySpeedDegPerSec <= 0 {
		return nil, &ConfigError{
			Field: "sky_speed",
			Msg:   fmt.Sprintf("must be positive, got %g", cfg.SkySpeedDegPerSec),
		}
	}
	stepper, err := newStepper(cfg.Mode)
	if err != nil {
		return nil, err
	}
	if st == nil {
		st = site.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		site:    st,
		strat:   strat,
		cfg:     cfg,
		stepper: stepper,
		logger:  logger,
	}, nil
}

// Strategy returns the catalogue the synthesizer was built with.
func (s *Synthesizer) Strategy() *StrategyDefinition { return s.strat }

// cesWindow holds the geometry and timing of one scheduled scan, fully
// determined by the slot and the incoming clock.
type cesWindow struct {
	elRad   float64
	azMean  float64 // deg
	azThrow float64 // deg, widened by 1/cos(el)
	reset   ephemeris.Date
	numPts  int
}

// window schedules slot against the clock: rewinds the clock along the
// sidereal day so the local apparent sidereal time matches the slot's begin
// bound, and sizes the scan to the slot's sidereal span.
func (s *Synthesizer) window(slot int, clock ephemeris.Date) cesWindow {
	el := s.strat.ElevationDeg[slot]
	azMean := (s.strat.AzMinDeg[slot] + s.strat.AzMaxDeg[slot]) * 0.5
	azThrow := (s.strat.AzMaxDeg[slot] - s.strat.AzMinDeg[slot]) / math.Cos(el*degToRad)

	begin := s.strat.BeginLST[slot]
	end := s.strat.EndLST[slot]
	if begin > end {
		begin -= 1.0
	}

	lstNow := s.site.LocalApparentSiderealTime(clock.MJD()) / (2 * math.Pi)
	reset := clock.AddSeconds(-(lstNow - begin) * ephemeris.SiderealDaySec)
	numPts := int((end - begin) * ephemeris.SiderealDaySec * s.cfg.SamplingFreqHz)

	return cesWindow{
		elRad:   el * degToRad,
		azMean:  azMean,
		azThrow: azThrow,
		reset:   reset,
		numPts:  numPts,
	}
}

// advance returns the clock after slot completes: the scan duration past the
// sidereal reset, then a one-day gap before the next scan.
func (s *Synthesizer) advance(slot int, clock ephemeris.Date) ephemeris.Date {
	w := s.window(slot, clock)
	return w.reset.AddSeconds(float64(w.numPts) / s.cfg.SamplingFreqHz).AddDays(1.0)
}

// SynthesizeCES generates one scan. Pure with respect to the clock: the same
// slot and clock always produce the same record and the same advanced clock.
func (s *Synthesizer) SynthesizeCES(slot int, clock ephemeris.Date) (*ScanRecord, ephemeris.Date, error) {
	if slot < 0 || slot >= s.cfg.NCES {
		return nil, clock, &ConfigError{
			Field: "slot",
			Msg:   fmt.Sprintf("must be in [0, %d), got %d", s.cfg.NCES, slot),
		}
	}
	start := time.Now()

	w := s.window(slot, clock)

	// The first timestamp goes through the truncating calendar round trip,
	// same as every clock the record exposes downstream.
	mjd0, err := ephemeris.DateToMJD(w.reset)
	if err != nil {
		return nil, clock, fmt.Errorf("scan %d: reset date: %w", slot, err)
	}

	st := stepState{
		site:       s.site,
		date:       w.reset,
		elRad:      w.elRad,
		runningAz:  w.azMean,
		upperAz:    w.azMean + w.azThrow/2.0,
		lowerAz:    w.azMean - w.azThrow/2.0,
		azSpeed:    s.cfg.SkySpeedDegPerSec / math.Cos(w.elRad),
		dir:        1.0,
		sampleFreq: s.cfg.SamplingFreqHz,
		firstMJD:   mjd0,
	}

	azDeg := make([]float64, w.numPts)
	mjd := make([]float64, w.numPts)
	var ra, dec []float64
	if s.stepper.SkyCoords() {
		ra = make([]float64, w.numPts)
		dec = make([]float64, w.numPts)
	}

	s.stepper.Step(&st, azDeg, mjd, ra, dec)

	el := make([]float64, w.numPts)
	for i := range azDeg {
		azDeg[i] *= degToRad
		el[i] = w.elRad
	}

	const pad = 10.0 / ephemeris.SecondsPerDay
	rec := &ScanRecord{
		CES:               slot,
		NCES:              s.cfg.NCES,
		SampleRateHz:      s.cfg.SamplingFreqHz,
		SkySpeedDegPerSec: s.cfg.SkySpeedDegPerSec,
		FirstMJD:          mjd0 - pad,
		LastMJD:           mjd[w.numPts-1] + pad,
		Azimuth:           azDeg,
		Elevation:         el,
		RA:                ra,
		Dec:               dec,
		ClockUTC:          mjd,
		HasSkyCoords:      s.stepper.SkyCoords(),
	}

	out := w.reset.AddSeconds(float64(w.numPts) / s.cfg.SamplingFreqHz).AddDays(1.0)

	mode := s.stepper.Mode().String()
	metrics.ScansSynthesized.WithLabelValues(mode).Inc()
	metrics.ScanDurationSeconds.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	metrics.ScanSamples.Observe(float64(w.numPts))

	return rec, out, nil
}

// Run synthesizes all configured scans in slot order, threading one clock
// through the sequence.
func (s *Synthesizer) Run(ctx context.Context) ([]*ScanRecord, error) {
	records := make([]*ScanRecord, 0, s.cfg.NCES)
	clock := s.cfg.StartDate

	for slot := 0; slot < s.cfg.NCES; slot++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, next, err := s.SynthesizeCES(slot, clock)
		if err != nil {
			return nil, err
		}
		s.logger.Info("scan synthesized",
			"slot", slot,
			"samples", rec.NumSamples(),
			"first_mjd", rec.FirstMJD,
			"last_mjd", rec.LastMJD,
			"backend", s.stepper.Mode().String(),
		)
		records = append(records, rec)
		clock = next
	}
	return records, nil
}
