// Package systematics injects instrumental effects into detector batches:
// readout crosstalk within and between SQUID multiplexers, and differential
// pointing between paired beams.
package systematics

import (
	"fmt"
	"sort"
	"strconv"
)

// ConfigError reports an invalid injection setup, detected before any
// timestream is touched.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("systematics config: %s: %s", e.Field, e.Msg)
}

// detector is one readout channel: its channel number inside the SQUID and
// its row index in the detector batch.
type detector struct {
	channel int
	index   int
}

// squidGroup is the set of detectors multiplexed on one SQUID.
type squidGroup struct {
	id        string
	detectors []detector
}

// CrosstalkGraph is the readout adjacency both crosstalk variants walk:
// detectors grouped by SQUID, groups in lexical SQUID order so the float
// accumulation order is reproducible. Built once per focal-plane layout and
// reused across injections.
type CrosstalkGraph struct {
	groups []squidGroup
	size   int
}

// BuildCrosstalkGraph groups detectors by SQUID id. squidIDs and chanIDs are
// index-aligned with the detector batch; chanIDs carry the decimal channel
// number of each detector inside its SQUID.
func BuildCrosstalkGraph(squidIDs, chanIDs []string) (*CrosstalkGraph, error) {
	if len(squidIDs) != len(chanIDs) {
		return nil, &ConfigError{
			Field: "chan_ids",
			Msg:   fmt.Sprintf("length %d does not match %d squid ids", len(chanIDs), len(squidIDs)),
		}
	}
	if len(squidIDs) == 0 {
		return nil, &ConfigError{Field: "squid_ids", Msg: "empty"}
	}

	byID := make(map[string][]detector)
	for i, sq := range squidIDs {
		ch, err := strconv.Atoi(chanIDs[i])
		if err != nil {
			return nil, &ConfigError{
				Field: "chan_ids",
				Msg:   fmt.Sprintf("detector %d: channel %q is not an integer", i, chanIDs[i]),
			}
		}
		byID[sq] = append(byID[sq], detector{channel: ch, index: i})
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	g := &CrosstalkGraph{size: len(squidIDs)}
	for _, id := range ids {
		g.groups = append(g.groups, squidGroup{id: id, detectors: byID[id]})
	}
	return g, nil
}

// Size returns the number of detectors in the graph.
func (g *CrosstalkGraph) Size() int { return g.size }

// Squids returns the number of SQUID groups.
func (g *CrosstalkGraph) Squids() int { return len(g.groups) }
