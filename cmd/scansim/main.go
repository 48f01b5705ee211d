package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmbsim/scansim/internal/backend"
	"github.com/cmbsim/scansim/internal/config"
	"github.com/cmbsim/scansim/internal/ephemeris"
	"github.com/cmbsim/scansim/internal/focalplane"
	"github.com/cmbsim/scansim/internal/healpix"
	"github.com/cmbsim/scansim/internal/iers"
	"github.com/cmbsim/scansim/internal/metrics"
	"github.com/cmbsim/scansim/internal/scan"
	"github.com/cmbsim/scansim/internal/site"
	"github.com/cmbsim/scansim/internal/systematics"
)

func main() {
	bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(os.Getenv("SCANSIM_CONFIG"), bootstrap)
	if err != nil {
		bootstrap.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))

	tele, err := buildSite(cfg.Site, logger)
	if err != nil {
		logger.Error("invalid site", "error", err)
		os.Exit(1)
	}

	startDate, err := ephemeris.ParseObservationDate(cfg.Scan.StartDate)
	if err != nil {
		logger.Error("invalid start date", "value", cfg.Scan.StartDate, "error", err)
		os.Exit(1)
	}
	mode, err := backend.Parse(cfg.Scan.Backend)
	if err != nil {
		logger.Error("invalid backend", "error", err)
		os.Exit(1)
	}

	synth, err := scan.New(tele, scan.Config{
		StrategyName:      cfg.Scan.Strategy,
		NCES:              cfg.Scan.NCES,
		StartDate:         startDate,
		SamplingFreqHz:    cfg.Scan.SamplingFreqHz,
		SkySpeedDegPerSec: cfg.Scan.SkySpeedDegPerSec,
		Mode:              mode,
	}, logger)
	if err != nil {
		logger.Error("invalid scan configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		srv = startMetricsServer(cfg.MetricsAddr, logger)
	}

	start := time.Now()
	var records []*scan.ScanRecord
	if cfg.Scan.Workers > 1 {
		records, err = synth.RunParallel(ctx, cfg.Scan.Workers)
	} else {
		records, err = synth.Run(ctx)
	}
	if err != nil {
		logger.Error("scan synthesis failed", "error", err)
		shutdown(srv, logger)
		os.Exit(1)
	}

	var samples int
	for _, rec := range records {
		samples += rec.NumSamples()
	}
	logger.Info("campaign synthesized",
		"scans", len(records),
		"samples", samples,
		"first_mjd", records[0].FirstMJD,
		"last_mjd", records[len(records)-1].LastMJD,
		"elapsed", time.Since(start).String(),
	)

	if err := runSystematics(cfg.Systematics, records[0], logger); err != nil {
		logger.Error("systematics injection failed", "error", err)
		shutdown(srv, logger)
		os.Exit(1)
	}

	if cfg.FocalPlane.Enabled {
		if err := runFocalPlane(cfg.FocalPlane, records, logger); err != nil {
			logger.Error("focal-plane convolution failed", "error", err)
			shutdown(srv, logger)
			os.Exit(1)
		}
	}

	shutdown(srv, logger)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildSite(cfg config.SiteConfig, logger *slog.Logger) (*site.Site, error) {
	if cfg.Longitude == "" && cfg.Latitude == "" && cfg.UT1UTCPath == "" {
		return site.Default(), nil
	}

	lon := cfg.Longitude
	if lon == "" {
		lon = site.DefaultLongitude
	}
	lat := cfg.Latitude
	if lat == "" {
		lat = site.DefaultLatitude
	}
	elev := cfg.ElevationM
	if elev == 0 {
		elev = site.DefaultElevationM
	}

	var opts []site.Option
	if cfg.UT1UTCPath != "" {
		table, err := iers.Load(cfg.UT1UTCPath, logger)
		if err != nil {
			return nil, fmt.Errorf("ut1-utc table: %w", err)
		}
		logger.Info("loaded UT1-UTC table", "path", cfg.UT1UTCPath, "rows", table.Len())
		opts = append(opts, site.WithUT1UTC(table))
	}

	return site.New(lon, lat, elev, opts...)
}

func startMetricsServer(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("metrics listener started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener error", "error", err)
		}
	}()
	return srv
}

func shutdown(srv *http.Server, logger *slog.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("metrics listener shutdown error", "error", err)
	}
}

// runSystematics demonstrates the injection passes on a synthetic
// four-detector batch derived from the first scan, two detectors per SQUID.
func runSystematics(cfg config.SystematicsConfig, rec *scan.ScanRecord, logger *slog.Logger) error {
	if !cfg.CrosstalkInsideSquid && !cfg.CrosstalkSquidToSquid && !cfg.DifferentialPointing {
		return nil
	}

	if cfg.CrosstalkInsideSquid || cfg.CrosstalkSquidToSquid {
		graph, err := systematics.BuildCrosstalkGraph(
			[]string{"Sq0", "Sq0", "Sq1", "Sq1"},
			[]string{"0", "1", "0", "1"},
		)
		if err != nil {
			return err
		}

		n := rec.NumSamples()
		if n > 4096 {
			n = 4096
		}
		batch := make([][]float64, 4)
		for i := range batch {
			batch[i] = make([]float64, n)
			for t := 0; t < n; t++ {
				batch[i][t] = math.Sin(rec.Azimuth[t]*float64(i+1)) * 100.0
			}
		}

		opts := systematics.CrosstalkOptions{
			MuPercent:        cfg.MuPercent,
			SigmaPercent:     cfg.SigmaPercent,
			Radius:           cfg.Radius,
			Beta:             cfg.Beta,
			SquidAttenuation: cfg.SquidAttenuation,
			Seed:             cfg.Seed,
		}
		if cfg.CrosstalkInsideSquid {
			if err := systematics.InjectCrosstalkInsideSquid(batch, graph, opts); err != nil {
				return err
			}
			logger.Info("injected within-SQUID crosstalk", "detectors", len(batch), "samples", n)
		}
		if cfg.CrosstalkSquidToSquid {
			if err := systematics.InjectCrosstalkSquidToSquid(batch, graph, opts); err != nil {
				return err
			}
			logger.Info("injected SQUID-to-SQUID crosstalk", "detectors", len(batch), "samples", n)
		}
	}

	if cfg.DifferentialPointing {
		deg := math.Pi / 180.0
		xpos := []float64{1.0 * deg, 1.0 * deg, -1.0 * deg, -1.0 * deg}
		ypos := []float64{1.0 * deg, -1.0 * deg, -1.0 * deg, 1.0 * deg}
		if err := systematics.ModifyBeamOffsets(xpos, ypos, systematics.DefaultPointingOptions()); err != nil {
			return err
		}
		logger.Info("injected differential pointing", "pairs", len(xpos)/2)
	}

	return nil
}

// runFocalPlane bins the campaign's boresight pointing into a hit map and
// convolves it with the model focal plane, logging coverage.
func runFocalPlane(cfg config.FocalPlaneConfig, records []*scan.ScanRecord, logger *slog.Logger) error {
	npix, err := healpix.Nside2Npix(cfg.Nside)
	if err != nil {
		return err
	}

	hits := make([]float64, npix)
	for _, rec := range records {
		if err := rec.RequireSkyCoords(); err != nil {
			return fmt.Errorf("scan %d: %w", rec.CES, err)
		}
		for i := range rec.RA {
			pix, err := healpix.Ang2Pix(cfg.Nside, math.Pi/2.0-rec.Dec[i], rec.RA[i])
			if err != nil {
				return err
			}
			hits[pix]++
		}
	}

	out, err := focalplane.Convolve(hits, cfg.NBolos, cfg.RadiusAmin, cfg.Boost)
	if err != nil {
		return err
	}

	var covered int
	var mass float64
	for _, h := range out {
		if h > 0 {
			covered++
		}
		mass += h
	}
	logger.Info("focal-plane convolution done",
		"nside", cfg.Nside,
		"covered_pixels", covered,
		"sky_fraction", float64(covered)/float64(npix),
		"total_hits", mass,
	)
	return nil
}
