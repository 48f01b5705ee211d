package scan

import (
	"fmt"
	"strconv"
	"strings"
)

// ConfigError reports an invalid synthesizer configuration. Raised at
// construction time, before any trajectory work starts.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("scan config: %s: %s", e.Field, e.Msg)
}

// StrategyDefinition is a named, fixed catalogue of scan geometry: one
// elevation, azimuth window, and sidereal-time window per observation slot.
// Immutable; selected by name at configuration time.
type StrategyDefinition struct {
	Name string

	// Per-slot geometry, index-aligned. Elevations and azimuth bounds in
	// degrees; LST bounds as fractions of a day parsed from "HH:MM:SS".
	ElevationDeg []float64
	AzMinDeg     []float64
	AzMaxDeg     []float64
	BeginLST     []float64
	EndLST       []float64

	// Center of the observed patch, degrees.
	PatchRADeg  float64
	PatchDecDeg float64
}

// Slots returns the number of observation slots in the catalogue.
func (s *StrategyDefinition) Slots() int { return len(s.ElevationDeg) }

// AllowedStrategies lists the defined strategy names.
var AllowedStrategies = []string{"deep_patch"}

// StrategyByName returns the catalogue for a strategy name. The name is
// case-sensitive; anything but a defined name is a configuration error.
func StrategyByName(name string) (*StrategyDefinition, error) {
	if name != "deep_patch" {
		return nil, &ConfigError{
			Field: "strategy",
			Msg: fmt.Sprintf("unknown strategy %q, only %s defined",
				name, strings.Join(AllowedStrategies, ", ")),
		}
	}

	// Deep-patch catalogue: ~5% of the sky in the southern hemisphere,
	// twelve constant-elevation slots.
	def := &StrategyDefinition{
		Name: "deep_patch",
		ElevationDeg: []float64{
			30.0, 45.5226, 47.7448, 49.967,
			52.1892, 54.4114, 56.6336, 58.8558,
			61.078, 63.3002, 65.5226, 35.2126,
		},
		AzMinDeg: []float64{
			134.2263, 162.3532, 162.3532, 162.3532,
			162.3532, 162.3532, 162.3532, 162.3532,
			162.3532, 162.3532, 162.3532, 204.7929,
		},
		AzMaxDeg: []float64{
			154.2263, 197.3532, 197.3532, 197.3532,
			197.3532, 197.3532, 197.3532, 197.3532,
			197.3532, 197.3532, 197.3532, 224.7929,
		},
		PatchRADeg:  0.0,
		PatchDecDeg: -57.5,
	}

	beginLST := []string{
		"17:07:54.84", "22:00:21.76", "22:00:21.76",
		"22:00:21.76", "22:00:21.76", "22:00:21.76",
		"22:00:21.76", "22:00:21.76", "22:00:21.76",
		"22:00:21.76", "22:00:21.76", "2:01:01.19",
	}
	endLST := []string{
		"22:00:21.76", "02:01:01.19", "02:01:01.19",
		"02:01:01.19", "02:01:01.19", "02:01:01.19",
		"02:01:01.19", "02:01:01.19", "02:01:01.19",
		"02:01:01.19", "02:01:01.19", "6:53:29.11",
	}
	def.BeginLST = make([]float64, len(beginLST))
	def.EndLST = make([]float64, len(endLST))
	for i := range beginLST {
		f, err := parseLST(beginLST[i])
		if err != nil {
			return nil, err
		}
		def.BeginLST[i] = f
		f, err = parseLST(endLST[i])
		if err != nil {
			return nil, err
		}
		def.EndLST[i] = f
	}
	return def, nil
}

// parseLST converts an "H:MM:SS.ss" sidereal time string to a fraction of a
// day in [0, 1).
func parseLST(s string) (float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, &ConfigError{Field: "lst", Msg: fmt.Sprintf("bad sidereal time %q", s)}
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, &ConfigError{Field: "lst", Msg: fmt.Sprintf("bad hour in %q", s)}
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, &ConfigError{Field: "lst", Msg: fmt.Sprintf("bad minute in %q", s)}
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, &ConfigError{Field: "lst", Msg: fmt.Sprintf("bad second in %q", s)}
	}
	return (float64(h) + float64(m)/60.0 + sec/3600.0) / 24.0, nil
}
