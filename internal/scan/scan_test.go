package scan

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cmbsim/scansim/internal/backend"
	"github.com/cmbsim/scansim/internal/ephemeris"
	"github.com/cmbsim/scansim/internal/site"
)

// startMJD2013 is 2013 January 1, 00:00:00 UTC.
const startMJD2013 = 56293.0

func testConfig(mode backend.Mode) Config {
	return Config{
		StrategyName:      "deep_patch",
		NCES:              12,
		StartDate:         ephemeris.DateFromMJD(startMJD2013),
		SamplingFreqHz:    1.0,
		SkySpeedDegPerSec: 0.4,
		Mode:              mode,
	}
}

func newTestSynthesizer(t *testing.T, cfg Config) *Synthesizer {
	t.Helper()
	s, err := New(site.Default(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestStrategyByName(t *testing.T) {
	def, err := StrategyByName("deep_patch")
	if err != nil {
		t.Fatalf("StrategyByName(deep_patch): %v", err)
	}
	if def.Slots() != 12 {
		t.Errorf("Slots() = %d, want 12", def.Slots())
	}
	if len(def.AzMinDeg) != 12 || len(def.AzMaxDeg) != 12 ||
		len(def.BeginLST) != 12 || len(def.EndLST) != 12 {
		t.Errorf("catalogue arrays not index-aligned: az %d/%d lst %d/%d",
			len(def.AzMinDeg), len(def.AzMaxDeg), len(def.BeginLST), len(def.EndLST))
	}
	if def.PatchDecDeg != -57.5 {
		t.Errorf("PatchDecDeg = %v, want -57.5", def.PatchDecDeg)
	}

	for _, name := range []string{"shallow_patch", "Deep_Patch", "", "deep_patch "} {
		_, err := StrategyByName(name)
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("StrategyByName(%q) error = %v, want *ConfigError", name, err)
		}
	}
}

func TestParseLST(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"0:00:00", 0.0},
		{"12:00:00", 0.5},
		{"6:00:00", 0.25},
		{"17:07:54.84", (17.0 + 7.0/60.0 + 54.84/3600.0) / 24.0},
		{"02:01:01.19", (2.0 + 1.0/60.0 + 1.19/3600.0) / 24.0},
	}
	for _, tt := range tests {
		got, err := parseLST(tt.in)
		if err != nil {
			t.Errorf("parseLST(%q): %v", tt.in, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("parseLST(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "12:00", "x:00:00", "12:y:00", "12:00:z"} {
		if _, err := parseLST(bad); err == nil {
			t.Errorf("parseLST(%q): expected error", bad)
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown strategy", func(c *Config) { c.StrategyName = "spiral" }},
		{"zero nces", func(c *Config) { c.NCES = 0 }},
		{"nces beyond catalogue", func(c *Config) { c.NCES = 13 }},
		{"zero sampling freq", func(c *Config) { c.SamplingFreqHz = 0 }},
		{"negative sky speed", func(c *Config) { c.SkySpeedDegPerSec = -0.4 }},
		{"invalid mode", func(c *Config) { c.Mode = backend.Mode(99) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(backend.Reference)
			tt.mutate(&cfg)
			_, err := New(site.Default(), cfg, nil)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("New error = %v, want *ConfigError", err)
			}
		})
	}
}

// TestFirstScanTiming pins the timing of the first deep-patch scan at 1 Hz
// from 2013/1/1: 17499 samples, with the padded record spanning MJD
// 56293.6202546 to 56293.8230093.
func TestFirstScanTiming(t *testing.T) {
	s := newTestSynthesizer(t, testConfig(backend.Reference))

	rec, next, err := s.SynthesizeCES(0, s.cfg.StartDate)
	if err != nil {
		t.Fatalf("SynthesizeCES: %v", err)
	}

	if rec.NumSamples() != 17499 {
		t.Errorf("NumSamples = %d, want 17499", rec.NumSamples())
	}

	// FirstMJD/LastMJD carry the 10 s pad; ClockUTC[0] is the unpadded
	// first sample.
	const pad = 10.0 / 86400.0
	if got, want := rec.FirstMJD, 56293.6202546; math.Abs(got-want) > 1e-6 {
		t.Errorf("FirstMJD = %.10f, want %.10f", got, want)
	}
	if got, want := rec.LastMJD, 56293.8230093; math.Abs(got-want) > 1e-6 {
		t.Errorf("LastMJD = %.10f, want %.10f", got, want)
	}
	if got, want := rec.ClockUTC[0], 56293.6202546+pad; math.Abs(got-want) > 1e-6 {
		t.Errorf("ClockUTC[0] = %.10f, want %.10f", got, want)
	}

	// Timestamps accumulate one sample period per step. Accumulating here
	// with the same operation order makes the comparison exact; a closed
	// form ClockUTC[0]+i*stride drifts a few ms over the scan.
	stride := ephemeris.Second / s.cfg.SamplingFreqHz
	acc := rec.ClockUTC[0]
	for i := 1; i < rec.NumSamples(); i++ {
		acc += stride
		if rec.ClockUTC[i] != acc {
			t.Errorf("ClockUTC[%d] = %.12f, want %.12f", i, rec.ClockUTC[i], acc)
			break
		}
	}

	// Clock advance: scan duration past the reset plus the one-day gap.
	wantNext := ephemeris.DateFromMJD(rec.ClockUTC[0]).
		AddSeconds(17499.0 / s.cfg.SamplingFreqHz).AddDays(1.0)
	if math.Abs(float64(next-wantNext)) > 2e-5 {
		t.Errorf("clock out = %v, want %v", next, wantNext)
	}
}

// TestSweepBounded checks the triangular sweep: azimuth stays inside the
// throw bounds up to the one-step overshoot the pre-increment reversal
// allows, and actually reaches both bounds.
func TestSweepBounded(t *testing.T) {
	s := newTestSynthesizer(t, testConfig(backend.Reference))

	rec, _, err := s.SynthesizeCES(0, s.cfg.StartDate)
	if err != nil {
		t.Fatalf("SynthesizeCES: %v", err)
	}

	def := s.Strategy()
	el := def.ElevationDeg[0] * degToRad
	azMean := (def.AzMinDeg[0] + def.AzMaxDeg[0]) * 0.5
	azThrow := (def.AzMaxDeg[0] - def.AzMinDeg[0]) / math.Cos(el)
	upper := (azMean + azThrow/2.0) * degToRad
	lower := (azMean - azThrow/2.0) * degToRad
	step := s.cfg.SkySpeedDegPerSec / math.Cos(el) / s.cfg.SamplingFreqHz * degToRad

	var hitUpper, hitLower bool
	for i, az := range rec.Azimuth {
		if az > upper+step || az < lower-step {
			t.Fatalf("Azimuth[%d] = %v outside [%v, %v] with one-step slack",
				i, az, lower, upper)
		}
		if az > upper {
			hitUpper = true
		}
		if az < lower {
			hitLower = true
		}
	}
	if !hitUpper || !hitLower {
		t.Errorf("sweep never reversed: hitUpper=%v hitLower=%v", hitUpper, hitLower)
	}

	for i, e := range rec.Elevation {
		if e != el {
			t.Fatalf("Elevation[%d] = %v, want %v", i, e, el)
		}
	}
}

// TestBackendsAgree verifies the accelerated backends reproduce the
// reference azimuth and timestamp arrays bit for bit, and correctly flag
// the missing sky coordinates.
func TestBackendsAgree(t *testing.T) {
	ref, _, err := newTestSynthesizer(t, testConfig(backend.Reference)).
		SynthesizeCES(0, ephemeris.DateFromMJD(startMJD2013))
	if err != nil {
		t.Fatalf("reference: %v", err)
	}
	if err := ref.RequireSkyCoords(); err != nil {
		t.Fatalf("reference RequireSkyCoords: %v", err)
	}
	if len(ref.RA) != ref.NumSamples() || len(ref.Dec) != ref.NumSamples() {
		t.Fatalf("reference RA/Dec length %d/%d, want %d",
			len(ref.RA), len(ref.Dec), ref.NumSamples())
	}

	for _, mode := range []backend.Mode{backend.AcceleratedCompiled, backend.AcceleratedNative} {
		t.Run(mode.String(), func(t *testing.T) {
			rec, _, err := newTestSynthesizer(t, testConfig(mode)).
				SynthesizeCES(0, ephemeris.DateFromMJD(startMJD2013))
			if err != nil {
				t.Fatalf("SynthesizeCES: %v", err)
			}
			if rec.HasSkyCoords {
				t.Error("HasSkyCoords = true, want false")
			}
			if err := rec.RequireSkyCoords(); !errors.Is(err, ErrNoSkyCoords) {
				t.Errorf("RequireSkyCoords = %v, want ErrNoSkyCoords", err)
			}
			if rec.RA != nil || rec.Dec != nil {
				t.Error("accelerated record carries RA/Dec arrays")
			}
			if rec.NumSamples() != ref.NumSamples() {
				t.Fatalf("NumSamples = %d, want %d", rec.NumSamples(), ref.NumSamples())
			}
			for i := range ref.Azimuth {
				if rec.Azimuth[i] != ref.Azimuth[i] {
					t.Fatalf("Azimuth[%d] = %v, want %v", i, rec.Azimuth[i], ref.Azimuth[i])
				}
				if rec.ClockUTC[i] != ref.ClockUTC[i] {
					t.Fatalf("ClockUTC[%d] = %v, want %v", i, rec.ClockUTC[i], ref.ClockUTC[i])
				}
			}
		})
	}
}

// TestSkyCoordsTrackPatch checks the reference backend points at the
// deep-patch centre: mean declination near -57.5 degrees.
func TestSkyCoordsTrackPatch(t *testing.T) {
	rec, _, err := newTestSynthesizer(t, testConfig(backend.Reference)).
		SynthesizeCES(0, ephemeris.DateFromMJD(startMJD2013))
	if err != nil {
		t.Fatalf("SynthesizeCES: %v", err)
	}

	var sum float64
	for _, d := range rec.Dec {
		sum += d
	}
	meanDec := sum / float64(len(rec.Dec)) / degToRad
	if math.Abs(meanDec-(-57.5)) > 3.0 {
		t.Errorf("mean Dec = %.2f deg, want near -57.5", meanDec)
	}
}

func TestSynthesizeCESDeterministic(t *testing.T) {
	s := newTestSynthesizer(t, testConfig(backend.AcceleratedCompiled))
	clock := s.cfg.StartDate

	a, nextA, err := s.SynthesizeCES(0, clock)
	if err != nil {
		t.Fatalf("first SynthesizeCES: %v", err)
	}
	b, nextB, err := s.SynthesizeCES(0, clock)
	if err != nil {
		t.Fatalf("second SynthesizeCES: %v", err)
	}
	if nextA != nextB {
		t.Errorf("clock out differs: %v vs %v", nextA, nextB)
	}
	if a.FirstMJD != b.FirstMJD || a.LastMJD != b.LastMJD {
		t.Errorf("pads differ: [%v %v] vs [%v %v]", a.FirstMJD, a.LastMJD, b.FirstMJD, b.LastMJD)
	}
	for i := range a.Azimuth {
		if a.Azimuth[i] != b.Azimuth[i] || a.ClockUTC[i] != b.ClockUTC[i] {
			t.Fatalf("sample %d differs", i)
		}
	}
}

func TestSynthesizeCESBadSlot(t *testing.T) {
	cfg := testConfig(backend.AcceleratedCompiled)
	cfg.NCES = 2
	s := newTestSynthesizer(t, cfg)

	for _, slot := range []int{-1, 2, 12} {
		_, _, err := s.SynthesizeCES(slot, s.cfg.StartDate)
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("SynthesizeCES(%d) error = %v, want *ConfigError", slot, err)
		}
	}
}

// TestRunOrdering runs a short campaign and checks the records come back in
// slot order with strictly increasing start times. Adjacent scans that share
// an LST boundary run back to back, so the 10 s guard pads may overlap; the
// sample ranges themselves stay ordered.
func TestRunOrdering(t *testing.T) {
	cfg := testConfig(backend.AcceleratedCompiled)
	cfg.NCES = 4
	s := newTestSynthesizer(t, cfg)

	records, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("len(records) = %d, want 4", len(records))
	}
	for i, rec := range records {
		if rec.CES != i {
			t.Errorf("records[%d].CES = %d", i, rec.CES)
		}
		if rec.NCES != 4 {
			t.Errorf("records[%d].NCES = %d, want 4", i, rec.NCES)
		}
		if i > 0 && rec.FirstMJD <= records[i-1].FirstMJD {
			t.Errorf("scan %d starts at %v, not after scan %d at %v",
				i, rec.FirstMJD, i-1, records[i-1].FirstMJD)
		}
	}
}

// TestRunParallelMatchesRun checks the pool produces the same campaign as
// the sequential loop.
func TestRunParallelMatchesRun(t *testing.T) {
	cfg := testConfig(backend.AcceleratedCompiled)
	cfg.NCES = 6
	s := newTestSynthesizer(t, cfg)

	seq, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	par, err := s.RunParallel(context.Background(), 3)
	if err != nil {
		t.Fatalf("RunParallel: %v", err)
	}
	if len(par) != len(seq) {
		t.Fatalf("len = %d, want %d", len(par), len(seq))
	}
	for i := range seq {
		if par[i].CES != seq[i].CES {
			t.Fatalf("slot %d: CES %d vs %d", i, par[i].CES, seq[i].CES)
		}
		if par[i].FirstMJD != seq[i].FirstMJD || par[i].LastMJD != seq[i].LastMJD {
			t.Errorf("slot %d: pads differ", i)
		}
		if par[i].NumSamples() != seq[i].NumSamples() {
			t.Fatalf("slot %d: %d vs %d samples", i, par[i].NumSamples(), seq[i].NumSamples())
		}
		for j := range seq[i].Azimuth {
			if par[i].Azimuth[j] != seq[i].Azimuth[j] {
				t.Fatalf("slot %d sample %d: azimuth differs", i, j)
			}
		}
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestSynthesizer(t, testConfig(backend.AcceleratedCompiled))
	if _, err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
	if _, err := s.RunParallel(ctx, 2); !errors.Is(err, context.Canceled) {
		t.Errorf("RunParallel error = %v, want context.Canceled", err)
	}
}
