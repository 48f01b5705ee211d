package scan

import (
	"context"
	"sync"

	"github.com/cmbsim/scansim/internal/ephemeris"
)

// scanJob is a unit of work for the worker pool: one slot and the clock it
// starts from.
type scanJob struct {
	slot  int
	clock ephemeris.Date
}

// scanResult is the output of synthesizing a single slot.
type scanResult struct {
	slot   int
	record *ScanRecord
	err    error
}

// RunParallel synthesizes all configured scans using a fixed pool of
// goroutines. The per-slot start clocks are derived first by a cheap
// sequential pass over the schedule arithmetic, so every worker owns an
// independent clock and the output is identical to Run's. Results come back
// in slot order.
func (s *Synthesizer) RunParallel(ctx context.Context, workers int) ([]*ScanRecord, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > s.cfg.NCES {
		workers = s.cfg.NCES
	}

	// Schedule pass: the clock after each slot depends only on the window
	// arithmetic, not on the trajectory itself.
	clocks := make([]ephemeris.Date, s.cfg.NCES)
	clock := s.cfg.StartDate
	for slot := 0; slot < s.cfg.NCES; slot++ {
		clocks[slot] = clock
		clock = s.advance(slot, clock)
	}

	jobs := make(chan scanJob, workers*2)
	results := make(chan scanResult, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				rec, _, err := s.SynthesizeCES(job.slot, job.clock)
				select {
				case results <- scanResult{slot: job.slot, record: rec, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for slot := 0; slot < s.cfg.NCES; slot++ {
			select {
			case jobs <- scanJob{slot: slot, clock: clocks[slot]}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	records := make([]*ScanRecord, s.cfg.NCES)
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		records[res.slot] = res.record
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return records, nil
}
