package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/cmbsim/scansim/internal/backend"
	"github.com/cmbsim/scansim/internal/ephemeris"
	"github.com/cmbsim/scansim/internal/scan"
	"github.com/cmbsim/scansim/internal/site"
	"github.com/cmbsim/scansim/internal/visibility"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	startDate, err := ephemeris.ParseObservationDate("2013/1/1 00:00:00")
	if err != nil {
		fmt.Println("ERROR parsing start date:", err)
		os.Exit(1)
	}

	tele := site.Default()
	synth, err := scan.New(tele, scan.Config{
		StrategyName:      "deep_patch",
		NCES:              1,
		StartDate:         startDate,
		SamplingFreqHz:    1.0,
		SkySpeedDegPerSec: 0.4,
		Mode:              backend.Reference,
	}, logger)
	if err != nil {
		fmt.Println("ERROR building synthesizer:", err)
		os.Exit(1)
	}

	rec, next, err := synth.SynthesizeCES(0, startDate)
	if err != nil {
		fmt.Println("ERROR synthesizing scan:", err)
		os.Exit(1)
	}

	firstGreg, _ := ephemeris.MJDToGregorian(rec.FirstMJD)
	lastGreg, _ := ephemeris.MJDToGregorian(rec.LastMJD)
	fmt.Printf("CES 0: %d samples at %.1f Hz\n", rec.NumSamples(), rec.SampleRateHz)
	fmt.Printf("  firstmjd=%.7f (%s)\n", rec.FirstMJD, firstGreg)
	fmt.Printf("  lastmjd=%.7f (%s)\n", rec.LastMJD, lastGreg)
	fmt.Printf("  duration=%.3f hours\n", (rec.LastMJD-rec.FirstMJD)*24)
	fmt.Printf("  next scan clock: MJD %.7f\n", next.MJD())

	minAz, maxAz := rec.Azimuth[0], rec.Azimuth[0]
	for _, az := range rec.Azimuth {
		if az < minAz {
			minAz = az
		}
		if az > maxAz {
			maxAz = az
		}
	}
	deg := 180.0 / math.Pi
	fmt.Printf("  azimuth sweep: [%.4f, %.4f] deg at el %.4f deg\n",
		minAz*deg, maxAz*deg, rec.Elevation[0]*deg)

	def := synth.Strategy()
	fmt.Printf("\nDeep-patch visibility (Dec %.1f deg, cut 30 deg):\n", def.PatchDecDeg)
	windows, err := visibility.Predict(context.Background(), visibility.Request{
		Site:            tele,
		RADeg:           def.PatchRADeg,
		DecDeg:          def.PatchDecDeg,
		StartMJD:        startDate.MJD(),
		HorizonDays:     1.0,
		MinElevationDeg: 30.0,
	})
	if err != nil {
		fmt.Println("ERROR predicting visibility:", err)
		os.Exit(1)
	}
	for i, w := range windows {
		fmt.Printf("  window %d: MJD %.5f - %.5f (%.1f min), max el %.1f deg at az %.1f deg\n",
			i, w.StartMJD, w.EndMJD, w.DurationSec/60, w.MaxElevationDeg, w.AzimuthAtMaxDeg)
	}
	if len(windows) == 0 {
		fmt.Println("  none in the next day")
	}
}
