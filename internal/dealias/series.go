package dealias

import (
	"fmt"
	"runtime"
	"sync"
)

// SeriesOptions controls how a time series of profiles is processed.
type SeriesOptions struct {
	// Workers is the number of profiles processed concurrently. Values
	// below 1 use runtime.NumCPU().
	Workers int
	// ChainPrevious processes profiles in order and feeds each result's
	// velocity to the next profile as PreviousVm when the profile carries
	// none. Chained series run on a single worker.
	ChainPrevious bool
}

// ProcessSeries dealiases every profile and returns the results in input
// order. The first structural error, by profile index, is returned with the
// offending index.
func (pr *Processor) ProcessSeries(profiles []Profile, opts SeriesOptions) ([]*Result, error) {
	results := make([]*Result, len(profiles))
	if opts.ChainPrevious {
		for i, p := range profiles {
			if i > 0 && p.PreviousVm == nil && p.Spectra != nil {
				if prev := results[i-1]; !prev.NoData {
					if rows, _ := p.Spectra.Dims(); prev.Gates() == rows {
						p.PreviousVm = prev.Moments.Vm
					}
				}
			}
			res, err := pr.Dealias(p)
			if err != nil {
				return nil, fmt.Errorf("profile %d: %w", i, err)
			}
			results[i] = res
		}
		return results, nil
	}

	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > len(profiles) {
		workers = len(profiles)
	}

	errs := make([]error, len(profiles))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i], errs[i] = pr.Dealias(profiles[i])
			}
		}()
	}
	for i := range profiles {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("profile %d: %w", i, err)
		}
	}
	return results, nil
}
