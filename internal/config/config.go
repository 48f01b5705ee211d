// Package config loads the simulator configuration: YAML file, then
// SCANSIM_* environment overrides, then validation. Invalid values in the
// environment fall back with a warning; invalid values in the file fail.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/cmbsim/scansim/internal/backend"
	"github.com/cmbsim/scansim/internal/scan"
)

// Config is the root simulator configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	// MetricsAddr exposes /metrics and /healthz while a run is in
	// progress; empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr"`

	Site        SiteConfig        `yaml:"site"`
	Scan        ScanConfig        `yaml:"scan"`
	Systematics SystematicsConfig `yaml:"systematics"`
	FocalPlane  FocalPlaneConfig  `yaml:"focal_plane"`
}

// SiteConfig locates the telescope.
type SiteConfig struct {
	// Longitude and Latitude accept decimal degrees or D:M.m sexagesimal.
	Longitude  string  `yaml:"longitude"`
	Latitude   string  `yaml:"latitude"`
	ElevationM float64 `yaml:"elevation_m"`

	// UT1UTCPath points at a UT1-UTC correction table; empty skips the
	// correction.
	UT1UTCPath string `yaml:"ut1utc_path"`
}

// ScanConfig drives the trajectory synthesizer.
type ScanConfig struct {
	Strategy          string  `yaml:"strategy"`
	NCES              int     `yaml:"nces"`
	StartDate         string  `yaml:"start_date"` // "YYYY/M/D HH:MM:SS" UTC
	SamplingFreqHz    float64 `yaml:"sampling_freq_hz"`
	SkySpeedDegPerSec float64 `yaml:"sky_speed_deg_per_sec"`
	Backend           string  `yaml:"backend"`
	Workers           int     `yaml:"workers"` // 0 or 1 means sequential
}

// SystematicsConfig toggles the injection passes the binary demonstrates on
// a synthetic detector batch.
type SystematicsConfig struct {
	CrosstalkInsideSquid  bool `yaml:"crosstalk_inside_squid"`
	CrosstalkSquidToSquid bool `yaml:"crosstalk_squid_to_squid"`
	DifferentialPointing  bool `yaml:"differential_pointing"`

	MuPercent        float64 `yaml:"mu_percent"`
	SigmaPercent     float64 `yaml:"sigma_percent"`
	Radius           int     `yaml:"radius"`
	Beta             float64 `yaml:"beta"`
	SquidAttenuation float64 `yaml:"squid_attenuation"`
	Seed             uint32  `yaml:"seed"`
}

// FocalPlaneConfig drives the diagnostic hit-map convolution.
type FocalPlaneConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Nside      int     `yaml:"nside"`
	NBolos     int     `yaml:"nbolos"`
	RadiusAmin float64 `yaml:"radius_amin"`
	Boost      float64 `yaml:"boost"`
}

// Default returns the configuration matching the reference campaign: the
// full deep-patch schedule at 1 Hz from 2013/1/1.
func Default() Config {
	return Config{
		LogLevel: "info",
		Scan: ScanConfig{
			Strategy:          "deep_patch",
			NCES:              12,
			StartDate:         "2013/1/1 00:00:00",
			SamplingFreqHz:    1.0,
			SkySpeedDegPerSec: 0.4,
			Backend:           backend.Reference.String(),
		},
		Systematics: SystematicsConfig{
			MuPercent:        -3.0,
			SigmaPercent:     1.0,
			Radius:           1,
			Beta:             2.0,
			SquidAttenuation: 100.0,
			Seed:             5438765,
		},
		FocalPlane: FocalPlaneConfig{
			Nside:      512,
			NBolos:     6000,
			RadiusAmin: 90.0,
			Boost:      1.0,
		},
	}
}

// Load builds the configuration: defaults, the YAML file at path when path
// is non-empty, then environment overrides, then validation.
func Load(path string, logger *slog.Logger) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	cfg.applyEnv(logger)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays SCANSIM_* variables. Malformed values keep the current
// setting with a warning.
func (c *Config) applyEnv(logger *slog.Logger) {
	if v := os.Getenv("SCANSIM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SCANSIM_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("SCANSIM_STRATEGY"); v != "" {
		c.Scan.Strategy = v
	}
	if v := os.Getenv("SCANSIM_START_DATE"); v != "" {
		c.Scan.StartDate = v
	}
	if v := os.Getenv("SCANSIM_BACKEND"); v != "" {
		c.Scan.Backend = v
	}
	if v := os.Getenv("SCANSIM_NCES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SCANSIM_NCES value, keeping current", "value", v, "current", c.Scan.NCES)
		} else {
			c.Scan.NCES = n
		}
	}
	if v := os.Getenv("SCANSIM_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid SCANSIM_WORKERS value, keeping current", "value", v, "current", c.Scan.Workers)
		} else {
			c.Scan.Workers = n
		}
	}
	if v := os.Getenv("SCANSIM_SAMPLING_FREQ_HZ"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			logger.Warn("invalid SCANSIM_SAMPLING_FREQ_HZ value, keeping current", "value", v, "current", c.Scan.SamplingFreqHz)
		} else {
			c.Scan.SamplingFreqHz = f
		}
	}
	if v := os.Getenv("SCANSIM_SKY_SPEED"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			logger.Warn("invalid SCANSIM_SKY_SPEED value, keeping current", "value", v, "current", c.Scan.SkySpeedDegPerSec)
		} else {
			c.Scan.SkySpeedDegPerSec = f
		}
	}
	if v := os.Getenv("SCANSIM_UT1UTC_PATH"); v != "" {
		c.Site.UT1UTCPath = v
	}
}

// Validate rejects configurations the components would refuse anyway, so
// failures surface before any work starts.
func (c *Config) Validate() error {
	if _, err := scan.StrategyByName(c.Scan.Strategy); err != nil {
		return err
	}
	if _, err := backend.Parse(c.Scan.Backend); err != nil {
		return err
	}
	if c.Scan.NCES < 1 {
		return fmt.Errorf("nces must be positive, got %d", c.Scan.NCES)
	}
	if c.Scan.SamplingFreqHz <= 0 {
		return fmt.Errorf("sampling_freq_hz must be positive, got %g", c.Scan.SamplingFreqHz)
	}
	if c.Scan.SkySpeedDegPerSec <= 0 {
		return fmt.Errorf("sky_speed_deg_per_sec must be positive, got %g", c.Scan.SkySpeedDegPerSec)
	}
	if c.Scan.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", c.Scan.Workers)
	}
	if c.FocalPlane.Enabled {
		if c.FocalPlane.Nside < 1 {
			return fmt.Errorf("focal_plane.nside must be positive, got %d", c.FocalPlane.Nside)
		}
		if c.FocalPlane.NBolos < 1 {
			return fmt.Errorf("focal_plane.nbolos must be positive, got %d", c.FocalPlane.NBolos)
		}
		if c.FocalPlane.RadiusAmin <= 0 {
			return fmt.Errorf("focal_plane.radius_amin must be positive, got %g", c.FocalPlane.RadiusAmin)
		}
	}
	return nil
}
