package align

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powerpulse/internal/model"
)

func ts(h int) time.Time {
	return time.Date(2025, 6, 1, h, 0, 0, 0, time.UTC)
}

func makeLoads(hours []int, value float64) []model.LoadRecord {
	out := make([]model.LoadRecord, 0, len(hours))
	for _, h := range hours {
		out = append(out, model.LoadRecord{
			Timestamp: ts(h),
			Region:    model.RegionDelhi,
			LoadMW:    value + float64(h),
		})
	}
	return out
}

func makeWeather(hours []int) []model.WeatherRecord {
	out := make([]model.WeatherRecord, 0, len(hours))
	for _, h := range hours {
		out = append(out, model.WeatherRecord{
			Timestamp:        ts(h),
			TemperatureC:     30 + float64(h)*0.1,
			RelativeHumidity: 50,
			WindSpeedKmh:     10,
		})
	}
	return out
}

func TestAlign_RegularGrid(t *testing.T) {
	hours := []int{0, 1, 2, 3, 4, 5}
	samples, err := Align(makeLoads(hours, 3000), makeWeather(hours), DefaultConfig())
	require.NoError(t, err)

	require.Len(t, samples, 6)
	for i, s := range samples {
		assert.Equal(t, ts(i), s.Timestamp, "one sample per grid slot in order")
		assert.Equal(t, model.RegionDelhi, s.Region)
		assert.False(t, s.Imputed)
		assert.False(t, s.Unavailable)
		assert.InDelta(t, 3000+float64(i), s.LoadMW, 1e-10)
		assert.InDelta(t, 30+float64(i)*0.1, s.Weather.TemperatureC, 1e-10)
	}
}

func TestAlign_DuplicateSlotRecordsAreAveraged(t *testing.T) {
	loads := makeLoads([]int{0, 1, 2}, 1000)
	// Second record inside hour 1's slot.
	loads = append(loads, model.LoadRecord{
		Timestamp: ts(1).Add(30 * time.Minute),
		Region:    model.RegionDelhi,
		LoadMW:    2001,
	})
	samples, err := Align(loads, makeWeather([]int{0, 1, 2}), DefaultConfig())
	require.NoError(t, err)

	require.Len(t, samples, 3)
	assert.InDelta(t, (1001.0+2001.0)/2, samples[1].LoadMW, 1e-10)
}

func TestAlign_ShortGapInterpolated(t *testing.T) {
	// Hours 2 and 3 missing from loads; gap of 2 <= MaxGap 3.
	samples, err := Align(
		makeLoads([]int{0, 1, 4, 5}, 1000),
		makeWeather([]int{0, 1, 2, 3, 4, 5}),
		DefaultConfig(),
	)
	require.NoError(t, err)
	require.Len(t, samples, 6)

	assert.True(t, samples[2].Imputed)
	assert.True(t, samples[3].Imputed)
	assert.False(t, samples[2].Unavailable)

	// Linear between observed neighbors 1001 (h=1) and 1004 (h=4).
	assert.InDelta(t, 1002.0, samples[2].LoadMW, 1e-10)
	assert.InDelta(t, 1003.0, samples[3].LoadMW, 1e-10)

	// Interpolated values stay within the neighbor bounds.
	for _, s := range samples[2:4] {
		assert.GreaterOrEqual(t, s.LoadMW, 1001.0)
		assert.LessOrEqual(t, s.LoadMW, 1004.0)
	}
}

func TestAlign_LongGapUnavailable(t *testing.T) {
	// Hours 2..5 missing: gap of 4 > MaxGap 3.
	samples, err := Align(
		makeLoads([]int{0, 1, 6, 7}, 1000),
		makeWeather([]int{0, 1, 2, 3, 4, 5, 6, 7}),
		DefaultConfig(),
	)
	require.NoError(t, err)
	require.Len(t, samples, 8)

	for h := 2; h <= 5; h++ {
		assert.True(t, samples[h].Unavailable, "hour %d", h)
		assert.False(t, samples[h].Imputed, "hour %d", h)
		assert.Zero(t, samples[h].LoadMW, "unavailable slots carry no values")
	}
	assert.False(t, samples[1].Unavailable)
	assert.False(t, samples[6].Unavailable)
}

func TestAlign_EdgeGapUnavailable(t *testing.T) {
	// Weather starts at hour 0 but loads only from hour 2: range defaults to
	// the overlap, so there is no leading gap. Force the range instead.
	cfg := DefaultConfig()
	cfg.Start = ts(0)
	cfg.End = ts(5)

	samples, err := Align(
		makeLoads([]int{2, 3, 4, 5}, 1000),
		makeWeather([]int{0, 1, 2, 3, 4, 5}),
		cfg,
	)
	require.NoError(t, err)
	require.Len(t, samples, 6)

	// No left neighbor to interpolate from.
	assert.True(t, samples[0].Unavailable)
	assert.True(t, samples[1].Unavailable)
	assert.False(t, samples[2].Unavailable)
}

func TestAlign_Errors(t *testing.T) {
	hours := []int{0, 1, 2}

	t.Run("empty load stream", func(t *testing.T) {
		_, err := Align(nil, makeWeather(hours), DefaultConfig())
		var alignErr *model.AlignmentError
		require.ErrorAs(t, err, &alignErr)
	})

	t.Run("empty weather stream", func(t *testing.T) {
		_, err := Align(makeLoads(hours, 1000), nil, DefaultConfig())
		var alignErr *model.AlignmentError
		require.ErrorAs(t, err, &alignErr)
	})

	t.Run("mixed regions", func(t *testing.T) {
		loads := makeLoads(hours, 1000)
		loads[1].Region = model.RegionBRPL
		_, err := Align(loads, makeWeather(hours), DefaultConfig())
		var alignErr *model.AlignmentError
		require.ErrorAs(t, err, &alignErr)
	})

	t.Run("disjoint ranges", func(t *testing.T) {
		_, err := Align(makeLoads([]int{0, 1}, 1000), makeWeather([]int{10, 11}), DefaultConfig())
		var alignErr *model.AlignmentError
		require.ErrorAs(t, err, &alignErr)
	})

	t.Run("mixed timezone offsets", func(t *testing.T) {
		loads := makeLoads(hours, 1000)
		ist := time.FixedZone("IST", 5*3600+1800)
		loads[2].Timestamp = loads[2].Timestamp.In(ist)
		// In() preserves the instant but changes the offset.
		_, err := Align(loads, makeWeather(hours), DefaultConfig())
		var alignErr *model.AlignmentError
		require.ErrorAs(t, err, &alignErr)
	})

	t.Run("non-positive interval", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Interval = 0
		_, err := Align(makeLoads(hours, 1000), makeWeather(hours), cfg)
		var alignErr *model.AlignmentError
		require.ErrorAs(t, err, &alignErr)
	})
}

func TestAlign_Deterministic(t *testing.T) {
	loads := makeLoads([]int{0, 1, 4, 5, 6}, 2500)
	weather := makeWeather([]int{0, 1, 2, 3, 4, 5, 6})

	first, err := Align(loads, weather, DefaultConfig())
	require.NoError(t, err)
	second, err := Align(loads, weather, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
