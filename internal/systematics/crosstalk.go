package systematics

import (
	"fmt"
	"math"

	"github.com/cmbsim/scansim/internal/metrics"
	"github.com/cmbsim/scansim/internal/rng"
)

// CrosstalkOptions tunes the leakage model. Amplitudes are drawn once per
// detector from N(MuPercent/100, SigmaPercent/100) with a fixed seed, so the
// injection is reproducible.
type CrosstalkOptions struct {
	// MuPercent and SigmaPercent set the leakage distribution, in percent
	// of the neighbor signal.
	MuPercent    float64
	SigmaPercent float64

	// Radius bounds the channel separation of talking detectors inside a
	// SQUID; Beta is the falloff exponent of the separation.
	Radius int
	Beta   float64

	// SquidAttenuation divides the leakage between distinct SQUIDs.
	SquidAttenuation float64

	Seed uint32

	// Out receives the contaminated batch when non-nil; the input stays
	// untouched. Nil means in-place.
	Out [][]float64
}

// DefaultCrosstalkOptions returns the nominal hardware model: -3% +- 1%
// leakage, nearest-neighbor coupling with inverse-square falloff, 100x
// attenuation between SQUIDs.
func DefaultCrosstalkOptions() CrosstalkOptions {
	return CrosstalkOptions{
		MuPercent:        -3.0,
		SigmaPercent:     1.0,
		Radius:           1,
		Beta:             2.0,
		SquidAttenuation: 100.0,
		Seed:             5438765,
	}
}

// InjectCrosstalkInsideSquid adds leakage between detectors sharing a SQUID:
// detector i gains amp[j]/d^beta times detector j's signal for every
// neighbor j at channel separation 0 < d <= radius. All reads come from a
// snapshot of the input taken before any write, so the result does not
// depend on SQUID or channel iteration order.
func InjectCrosstalkInsideSquid(data [][]float64, g *CrosstalkGraph, opts CrosstalkOptions) error {
	snap, out, err := prepare(data, g, &opts)
	if err != nil {
		return err
	}
	if opts.Radius < 1 {
		return &ConfigError{Field: "radius", Msg: fmt.Sprintf("must be >= 1, got %d", opts.Radius)}
	}

	amp := rng.New(opts.Seed).Normal(opts.MuPercent/100.0, opts.SigmaPercent/100.0, g.Size())

	for _, sq := range g.groups {
		for _, det := range sq.detectors {
			row := out[det.index]
			for _, nb := range sq.detectors {
				d := det.channel - nb.channel
				if d < 0 {
					d = -d
				}
				if d == 0 || d > opts.Radius {
					continue
				}
				k := amp[nb.index] / math.Pow(float64(d), opts.Beta)
				src := snap[nb.index]
				for t := range row {
					row[t] += k * src[t]
				}
			}
		}
	}

	metrics.InjectionsApplied.WithLabelValues("crosstalk_inside_squid").Inc()
	return nil
}

// InjectCrosstalkSquidToSquid adds leakage between every pair of detectors
// in distinct SQUIDs, uniformly attenuated: detector i gains
// amp[j]/attenuation times detector j's signal for every j outside i's
// SQUID. Same snapshot semantics as InjectCrosstalkInsideSquid.
func InjectCrosstalkSquidToSquid(data [][]float64, g *CrosstalkGraph, opts CrosstalkOptions) error {
	snap, out, err := prepare(data, g, &opts)
	if err != nil {
		return err
	}
	if opts.SquidAttenuation <= 0 {
		return &ConfigError{
			Field: "squid_attenuation",
			Msg:   fmt.Sprintf("must be positive, got %g", opts.SquidAttenuation),
		}
	}

	amp := rng.New(opts.Seed).Normal(opts.MuPercent/100.0, opts.SigmaPercent/100.0, g.Size())

	for gi, sq := range g.groups {
		for _, det := range sq.detectors {
			row := out[det.index]
			for gj, other := range g.groups {
				if gj == gi {
					continue
				}
				for _, nb := range other.detectors {
					k := amp[nb.index] / opts.SquidAttenuation
					src := snap[nb.index]
					for t := range row {
						row[t] += k * src[t]
					}
				}
			}
		}
	}

	metrics.InjectionsApplied.WithLabelValues("crosstalk_squid_to_squid").Inc()
	return nil
}

// prepare validates the batch against the graph and sets up the frozen
// snapshot and the output buffer. When opts.Out is nil the input rows are
// the output; either way the snapshot keeps the pre-injection values.
func prepare(data [][]float64, g *CrosstalkGraph, opts *CrosstalkOptions) (snap, out [][]float64, err error) {
	if g == nil {
		return nil, nil, &ConfigError{Field: "graph", Msg: "nil"}
	}
	if len(data) != g.Size() {
		return nil, nil, &ConfigError{
			Field: "data",
			Msg:   fmt.Sprintf("%d detectors, graph has %d", len(data), g.Size()),
		}
	}
	for i := 1; i < len(data); i++ {
		if len(data[i]) != len(data[0]) {
			return nil, nil, &ConfigError{
				Field: "data",
				Msg:   fmt.Sprintf("detector %d has %d samples, detector 0 has %d", i, len(data[i]), len(data[0])),
			}
		}
	}

	snap = make([][]float64, len(data))
	for i, row := range data {
		snap[i] = append([]float64(nil), row...)
	}

	if opts.Out == nil {
		return snap, data, nil
	}
	if len(opts.Out) != len(data) {
		return nil, nil, &ConfigError{
			Field: "out",
			Msg:   fmt.Sprintf("%d rows, want %d", len(opts.Out), len(data)),
		}
	}
	for i, row := range opts.Out {
		if len(row) != len(data[i]) {
			return nil, nil, &ConfigError{
				Field: "out",
				Msg:   fmt.Sprintf("row %d has %d samples, want %d", i, len(row), len(data[i])),
			}
		}
		copy(row, data[i])
	}
	return snap, opts.Out, nil
}
