package systematics

import (
	"errors"
	"math"
	"testing"
)

// Two SQUIDs of two channels each, short synthetic timestreams.
var (
	testSquids = []string{"Sq0", "Sq0", "Sq1", "Sq1"}
	testChans  = []string{"0", "1", "0", "1"}
)

func testBatch() [][]float64 {
	return [][]float64{
		{40.95, 1.0, -2.5},
		{12.25, 0.5, 3.75},
		{-7.5, 2.0, 0.25},
		{33.0, -1.0, 5.5},
	}
}

func buildTestGraph(t *testing.T) *CrosstalkGraph {
	t.Helper()
	g, err := BuildCrosstalkGraph(testSquids, testChans)
	if err != nil {
		t.Fatalf("BuildCrosstalkGraph: %v", err)
	}
	return g
}

func assertBatch(t *testing.T, got, want [][]float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("batch has %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		for j := range want[i] {
			if math.Abs(got[i][j]-want[i][j]) > tol {
				t.Errorf("row %d sample %d = %.15g, want %.15g", i, j, got[i][j], want[i][j])
			}
		}
	}
}

func TestBuildCrosstalkGraph(t *testing.T) {
	g := buildTestGraph(t)
	if g.Size() != 4 {
		t.Errorf("Size = %d, want 4", g.Size())
	}
	if g.Squids() != 2 {
		t.Errorf("Squids = %d, want 2", g.Squids())
	}

	var cfgErr *ConfigError
	if _, err := BuildCrosstalkGraph(testSquids, testChans[:3]); !errors.As(err, &cfgErr) {
		t.Errorf("length mismatch: err = %v, want *ConfigError", err)
	}
	if _, err := BuildCrosstalkGraph(testSquids, []string{"0", "1", "a", "1"}); !errors.As(err, &cfgErr) {
		t.Errorf("bad channel: err = %v, want *ConfigError", err)
	}
	if _, err := BuildCrosstalkGraph(nil, nil); !errors.As(err, &cfgErr) {
		t.Errorf("empty: err = %v, want *ConfigError", err)
	}
}

// Expected batches below were produced by the seeded leakage model with the
// default parameters: amplitudes drawn from N(-0.03, 0.01) with seed 5438765
// are [-0.04116152516788222, -0.033597443444288964, -0.031149675175986644,
// -0.02544506801774783].

func TestInjectCrosstalkInsideSquid(t *testing.T) {
	data := testBatch()
	if err := InjectCrosstalkInsideSquid(data, buildTestGraph(t), DefaultCrosstalkOptions()); err != nil {
		t.Fatalf("InjectCrosstalkInsideSquid: %v", err)
	}

	want := [][]float64{
		{40.538431317807465, 0.9832012782778555, -2.625990412916084},
		{10.564435544375224, 0.45883847483211776, 3.8529038129197057},
		{-8.339687244585678, 2.025445068017748, 0.11005212590238694},
		{33.2336225638199, -1.0622993503519733, 5.492212581206004},
	}
	assertBatch(t, data, want, 1e-12)
}

// TestInjectCrosstalkInsideSquidPair pins the one-pair case against the
// nominal 40.95 -> 39.561 contamination figure: with the default model the
// pair's second channel carries amp[1] = -0.033597443444288964 of leakage,
// so a companion signal of 41.342431375864436 lands the first channel on
// 39.561 exactly.
func TestInjectCrosstalkInsideSquidPair(t *testing.T) {
	g, err := BuildCrosstalkGraph([]string{"Sq0", "Sq0"}, []string{"0", "1"})
	if err != nil {
		t.Fatalf("BuildCrosstalkGraph: %v", err)
	}

	data := [][]float64{{40.95}, {41.342431375864436}}
	if err := InjectCrosstalkInsideSquid(data, g, DefaultCrosstalkOptions()); err != nil {
		t.Fatalf("InjectCrosstalkInsideSquid: %v", err)
	}

	if got, want := data[0][0], 39.561; math.Abs(got-want) > 1e-9 {
		t.Errorf("channel 0 = %.15g, want %.15g", got, want)
	}
	if got, want := data[1][0], 39.656866920239658; math.Abs(got-want) > 1e-12 {
		t.Errorf("channel 1 = %.15g, want %.15g", got, want)
	}
}

func TestInjectCrosstalkInsideSquidOutBuffer(t *testing.T) {
	data := testBatch()
	out := make([][]float64, len(data))
	for i := range out {
		out[i] = make([]float64, len(data[i]))
	}

	opts := DefaultCrosstalkOptions()
	opts.Out = out
	if err := InjectCrosstalkInsideSquid(data, buildTestGraph(t), opts); err != nil {
		t.Fatalf("InjectCrosstalkInsideSquid: %v", err)
	}

	// Input untouched, output contaminated.
	assertBatch(t, data, testBatch(), 0)
	if out[0][0] == data[0][0] {
		t.Error("out buffer equals input, expected contamination")
	}

	inPlace := testBatch()
	if err := InjectCrosstalkInsideSquid(inPlace, buildTestGraph(t), DefaultCrosstalkOptions()); err != nil {
		t.Fatalf("in-place variant: %v", err)
	}
	assertBatch(t, out, inPlace, 0)
}

func TestInjectCrosstalkSquidToSquid(t *testing.T) {
	data := testBatch()
	if err := InjectCrosstalkSquidToSquid(data, buildTestGraph(t), DefaultCrosstalkOptions()); err != nil {
		t.Fatalf("InjectCrosstalkSquidToSquid: %v", err)
	}

	want := [][]float64{
		{40.94393935319234, 0.9996314571766578, -2.5014773529289163},
		{12.243939353192342, 0.49963145717665775, 3.7485226470710837},
		{-7.520971331378173, 1.9994203975310996, 0.24976913400003625},
		{32.97902866862183, -1.0005796024689004, 5.499769134000036},
	}
	assertBatch(t, data, want, 1e-12)
}

// TestCrosstalkOrderIndependent relabels the SQUIDs so the lexical group
// order flips; snapshot reads make the result identical either way.
func TestCrosstalkOrderIndependent(t *testing.T) {
	flipped, err := BuildCrosstalkGraph([]string{"SqZ", "SqZ", "SqA", "SqA"}, testChans)
	if err != nil {
		t.Fatalf("BuildCrosstalkGraph: %v", err)
	}

	a := testBatch()
	b := testBatch()
	if err := InjectCrosstalkInsideSquid(a, buildTestGraph(t), DefaultCrosstalkOptions()); err != nil {
		t.Fatal(err)
	}
	if err := InjectCrosstalkInsideSquid(b, flipped, DefaultCrosstalkOptions()); err != nil {
		t.Fatal(err)
	}
	assertBatch(t, b, a, 0)

	a, b = testBatch(), testBatch()
	if err := InjectCrosstalkSquidToSquid(a, buildTestGraph(t), DefaultCrosstalkOptions()); err != nil {
		t.Fatal(err)
	}
	if err := InjectCrosstalkSquidToSquid(b, flipped, DefaultCrosstalkOptions()); err != nil {
		t.Fatal(err)
	}
	assertBatch(t, b, a, 0)
}

func TestCrosstalkRadiusBound(t *testing.T) {
	// Channels 0 and 2 in one SQUID: separation 2 exceeds the default
	// radius of 1, so nothing couples.
	g, err := BuildCrosstalkGraph([]string{"Sq0", "Sq0"}, []string{"0", "2"})
	if err != nil {
		t.Fatalf("BuildCrosstalkGraph: %v", err)
	}
	data := [][]float64{{1.0, 2.0}, {3.0, 4.0}}
	if err := InjectCrosstalkInsideSquid(data, g, DefaultCrosstalkOptions()); err != nil {
		t.Fatalf("InjectCrosstalkInsideSquid: %v", err)
	}
	assertBatch(t, data, [][]float64{{1.0, 2.0}, {3.0, 4.0}}, 0)
}

func TestCrosstalkValidation(t *testing.T) {
	g := buildTestGraph(t)
	var cfgErr *ConfigError

	if err := InjectCrosstalkInsideSquid(testBatch()[:2], g, DefaultCrosstalkOptions()); !errors.As(err, &cfgErr) {
		t.Errorf("short batch: err = %v, want *ConfigError", err)
	}

	ragged := testBatch()
	ragged[2] = ragged[2][:1]
	if err := InjectCrosstalkInsideSquid(ragged, g, DefaultCrosstalkOptions()); !errors.As(err, &cfgErr) {
		t.Errorf("ragged batch: err = %v, want *ConfigError", err)
	}

	opts := DefaultCrosstalkOptions()
	opts.Out = make([][]float64, 2)
	if err := InjectCrosstalkInsideSquid(testBatch(), g, opts); !errors.As(err, &cfgErr) {
		t.Errorf("bad out shape: err = %v, want *ConfigError", err)
	}

	opts = DefaultCrosstalkOptions()
	opts.Radius = 0
	if err := InjectCrosstalkInsideSquid(testBatch(), g, opts); !errors.As(err, &cfgErr) {
		t.Errorf("zero radius: err = %v, want *ConfigError", err)
	}

	opts = DefaultCrosstalkOptions()
	opts.SquidAttenuation = 0
	if err := InjectCrosstalkSquidToSquid(testBatch(), g, opts); !errors.As(err, &cfgErr) {
		t.Errorf("zero attenuation: err = %v, want *ConfigError", err)
	}

	if err := InjectCrosstalkInsideSquid(testBatch(), nil, DefaultCrosstalkOptions()); !errors.As(err, &cfgErr) {
		t.Errorf("nil graph: err = %v, want *ConfigError", err)
	}
}

func TestModifyBeamOffsets(t *testing.T) {
	deg := math.Pi / 180.0
	xpos := []float64{1.0 * deg, 1.0 * deg, -1.0 * deg, -1.0 * deg}
	ypos := []float64{1.0 * deg, -1.0 * deg, -1.0 * deg, 1.0 * deg}

	opts := PointingOptions{MuArcsec: 600.0, SigmaArcsec: 300.0, Seed: 5847}
	if err := ModifyBeamOffsets(xpos, ypos, opts); err != nil {
		t.Fatalf("ModifyBeamOffsets: %v", err)
	}

	wantXDeg := []float64{1.03802729, 0.96197271, -1.02689298, -0.97310702}
	wantYDeg := []float64{0.92369044, -0.92369044, -1.10310547, 1.10310547}
	for i := range wantXDeg {
		if got := xpos[i] / deg; math.Abs(got-wantXDeg[i]) > 1e-8 {
			t.Errorf("xpos[%d] = %.8f deg, want %.8f", i, got, wantXDeg[i])
		}
		if got := ypos[i] / deg; math.Abs(got-wantYDeg[i]) > 1e-8 {
			t.Errorf("ypos[%d] = %.8f deg, want %.8f", i, got, wantYDeg[i])
		}
	}
}

func TestModifyBeamOffsetsSymmetry(t *testing.T) {
	xpos := make([]float64, 6)
	ypos := make([]float64, 6)
	if err := ModifyBeamOffsets(xpos, ypos, DefaultPointingOptions()); err != nil {
		t.Fatalf("ModifyBeamOffsets: %v", err)
	}
	for p := 0; p < 3; p++ {
		if xpos[2*p] != -xpos[2*p+1] || ypos[2*p] != -ypos[2*p+1] {
			t.Errorf("pair %d not symmetric: (%v,%v) vs (%v,%v)",
				p, xpos[2*p], ypos[2*p], xpos[2*p+1], ypos[2*p+1])
		}
		if xpos[2*p] == 0 && ypos[2*p] == 0 {
			t.Errorf("pair %d not displaced", p)
		}
	}
}

func TestModifyBeamOffsetsValidation(t *testing.T) {
	var cfgErr *ConfigError
	if err := ModifyBeamOffsets(make([]float64, 4), make([]float64, 3), DefaultPointingOptions()); !errors.As(err, &cfgErr) {
		t.Errorf("length mismatch: err = %v, want *ConfigError", err)
	}
	if err := ModifyBeamOffsets(make([]float64, 3), make([]float64, 3), DefaultPointingOptions()); !errors.As(err, &cfgErr) {
		t.Errorf("odd length: err = %v, want *ConfigError", err)
	}
}
