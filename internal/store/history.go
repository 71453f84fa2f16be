// Package store keeps aligned sample history in memory for inference-time
// window resolution. Reads are concurrent; writes happen at load time and
// after retraining-driven refreshes.
package store

import (
	"sort"
	"sync"
	"time"

	"powerpulse/internal/model"
)

// History holds aligned samples indexed by region, sorted by timestamp.
type History struct {
	mu      sync.RWMutex
	samples map[model.Region][]model.AlignedSample
}

func New() *History {
	return &History{
		samples: make(map[model.Region][]model.AlignedSample),
	}
}

// Add inserts samples, keeping each region's slice sorted by timestamp.
func (h *History) Add(samples []model.AlignedSample) {
	if len(samples) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[model.Region]bool)
	for _, s := range samples {
		h.samples[s.Region] = append(h.samples[s.Region], s)
		seen[s.Region] = true
	}
	for region := range seen {
		rs := h.samples[region]
		sort.Slice(rs, func(i, j int) bool {
			return rs[i].Timestamp.Before(rs[j].Timestamp)
		})
	}
}

// Len returns the number of samples held for a region.
func (h *History) Len(region model.Region) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.samples[region])
}

// TimeRange returns the span covered by a region's samples.
func (h *History) TimeRange(region model.Region) (model.TimeRange, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rs := h.samples[region]
	if len(rs) == 0 {
		return model.TimeRange{}, false
	}
	return model.TimeRange{
		Start: rs[0].Timestamp,
		End:   rs[len(rs)-1].Timestamp,
	}, true
}

// Range returns samples between start (inclusive) and end (exclusive).
func (h *History) Range(region model.Region, start, end time.Time) []model.AlignedSample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	all := h.samples[region]
	if len(all) == 0 {
		return nil
	}

	startIdx := sort.Search(len(all), func(i int) bool {
		return !all[i].Timestamp.Before(start)
	})
	endIdx := sort.Search(len(all), func(i int) bool {
		return !all[i].Timestamp.Before(end)
	})
	if startIdx >= endIdx {
		return nil
	}

	result := make([]model.AlignedSample, endIdx-startIdx)
	copy(result, all[startIdx:endIdx])
	return result
}

// At returns the sample exactly at t.
func (h *History) At(region model.Region, t time.Time) (model.AlignedSample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	all := h.samples[region]
	idx := sort.Search(len(all), func(i int) bool {
		return !all[i].Timestamp.Before(t)
	})
	if idx < len(all) && all[idx].Timestamp.Equal(t) {
		return all[idx], true
	}
	return model.AlignedSample{}, false
}

// Window extracts the load window of n samples ending immediately before end,
// spaced by interval. It fails with UnavailableWindowError when the history
// is too short, interrupted by an unavailable sample, or not contiguous on
// the grid.
func (h *History) Window(region model.Region, end time.Time, n int, interval time.Duration) (*model.LoadWindow, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	all := h.samples[region]
	endIdx := sort.Search(len(all), func(i int) bool {
		return !all[i].Timestamp.Before(end)
	})

	unavailable := func(have int) error {
		return &model.UnavailableWindowError{
			Region:    region,
			Timestamp: end,
			Need:      n,
			Have:      have,
		}
	}

	if endIdx < n {
		return nil, unavailable(endIdx)
	}

	values := make([]float64, n)
	for j := 0; j < n; j++ {
		s := all[endIdx-n+j]
		if s.Unavailable {
			return nil, unavailable(j)
		}
		want := end.Add(-time.Duration(n-j) * interval)
		if !s.Timestamp.Equal(want) {
			return nil, unavailable(j)
		}
		values[j] = s.LoadMW
	}

	return &model.LoadWindow{
		Region: region,
		End:    end,
		Values: values,
	}, nil
}
