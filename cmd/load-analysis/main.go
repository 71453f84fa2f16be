// load-analysis summarizes a load CSV offline: per-region totals, hourly
// demand profile, weekday/weekend shape, and temperature sensitivity against
// the weather CSV. Useful for sanity-checking data before training.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"powerpulse/internal/align"
	"powerpulse/internal/ingest"
	"powerpulse/internal/model"
)

type hourlyBucket struct {
	SumMW float64
	Count int
}

func main() {
	loadPath := flag.String("loads", "data/load.csv", "path to load CSV")
	weatherPath := flag.String("weather", "data/weather.csv", "path to weather CSV")
	regionFilter := flag.String("regions", "", "comma-separated regions (default: all present)")
	tempBucket := flag.Float64("temp-bucket", 5, "temperature bucket width in °C")
	flag.Parse()

	lf, err := os.Open(*loadPath)
	if err != nil {
		log.Fatalf("Opening load CSV: %v", err)
	}
	loads, err := (&ingest.LoadParser{}).Parse(lf)
	lf.Close()
	if err != nil {
		log.Fatalf("Parsing load CSV: %v", err)
	}

	wf, err := os.Open(*weatherPath)
	if err != nil {
		log.Fatalf("Opening weather CSV: %v", err)
	}
	weather, err := (&ingest.WeatherParser{}).Parse(wf)
	wf.Close()
	if err != nil {
		log.Fatalf("Parsing weather CSV: %v", err)
	}

	byRegion := make(map[model.Region][]model.LoadRecord)
	for _, l := range loads {
		byRegion[l.Region] = append(byRegion[l.Region], l)
	}

	regions := selectRegions(*regionFilter, byRegion)
	if len(regions) == 0 {
		log.Fatal("No load data for requested regions")
	}

	first, last := timeSpan(loads)
	days := last.Sub(first).Hours() / 24

	fmt.Println()
	fmt.Println("Demand Analysis")
	fmt.Printf("  Data: %s to %s (%.0f days), %d records, %d weather samples\n",
		first.Format("2006-01-02"), last.Format("2006-01-02"), days, len(loads), len(weather))
	fmt.Println()

	for _, region := range regions {
		records := byRegion[region]
		info := model.RegionCatalog[region]
		fmt.Printf("=== %s (%s) ===\n", region, info.Name)

		samples, err := align.Align(records, weather, align.DefaultConfig())
		if err != nil {
			log.Printf("  Alignment failed: %v", err)
			continue
		}

		printOverall(samples)
		fmt.Println()
		printHourlyProfile(samples)
		fmt.Println()
		printWeekShape(samples)
		fmt.Println()
		printTempCurve(samples, *tempBucket)
		fmt.Println()
	}
}

func selectRegions(filter string, byRegion map[model.Region][]model.LoadRecord) []model.Region {
	if filter == "" {
		var out []model.Region
		for _, r := range model.Regions {
			if len(byRegion[r]) > 0 {
				out = append(out, r)
			}
		}
		return out
	}
	var out []model.Region
	for _, name := range strings.Split(filter, ",") {
		r, ok := model.ParseRegion(strings.TrimSpace(name))
		if !ok {
			log.Fatalf("Unknown region %q", name)
		}
		if len(byRegion[r]) > 0 {
			out = append(out, r)
		}
	}
	return out
}

func timeSpan(loads []model.LoadRecord) (first, last time.Time) {
	for _, l := range loads {
		if first.IsZero() || l.Timestamp.Before(first) {
			first = l.Timestamp
		}
		if l.Timestamp.After(last) {
			last = l.Timestamp
		}
	}
	return first, last
}

func printOverall(samples []model.AlignedSample) {
	var sum, peak float64
	least := math.Inf(1)
	var peakAt, leastAt string
	var available, imputed int
	for _, s := range samples {
		if s.Unavailable {
			continue
		}
		available++
		if s.Imputed {
			imputed++
		}
		sum += s.LoadMW
		if s.LoadMW > peak {
			peak = s.LoadMW
			peakAt = s.Timestamp.Format("2006-01-02 15:04")
		}
		if s.LoadMW < least {
			least = s.LoadMW
			leastAt = s.Timestamp.Format("2006-01-02 15:04")
		}
	}
	if available == 0 {
		fmt.Println("  No available samples")
		return
	}
	fmt.Printf("  Samples: %d available (%d imputed, %d unavailable)\n",
		available, imputed, len(samples)-available)
	fmt.Printf("  Mean: %.0f MW   Peak: %.0f MW at %s   Least: %.0f MW at %s\n",
		sum/float64(available), peak, peakAt, least, leastAt)
}

func printHourlyProfile(samples []model.AlignedSample) {
	var buckets [24]hourlyBucket
	for _, s := range samples {
		if s.Unavailable {
			continue
		}
		h := s.Timestamp.Hour()
		buckets[h].SumMW += s.LoadMW
		buckets[h].Count++
	}

	var maxMean float64
	for _, b := range buckets {
		if b.Count > 0 && b.SumMW/float64(b.Count) > maxMean {
			maxMean = b.SumMW / float64(b.Count)
		}
	}

	fmt.Println("  Hourly profile (mean MW):")
	for h := 0; h < 24; h++ {
		b := buckets[h]
		if b.Count == 0 {
			continue
		}
		mean := b.SumMW / float64(b.Count)
		bar := strings.Repeat("#", int(mean/maxMean*40))
		fmt.Printf("  %02d:00  %7.0f  %s\n", h, mean, bar)
	}
}

func printWeekShape(samples []model.AlignedSample) {
	var weekSum, weekN, endSum, endN float64
	for _, s := range samples {
		if s.Unavailable {
			continue
		}
		switch s.Timestamp.Weekday() {
		case time.Saturday, time.Sunday:
			endSum += s.LoadMW
			endN++
		default:
			weekSum += s.LoadMW
			weekN++
		}
	}
	if weekN == 0 || endN == 0 {
		return
	}
	weekMean := weekSum / weekN
	endMean := endSum / endN
	fmt.Printf("  Weekday mean: %.0f MW   Weekend mean: %.0f MW (%.1f%% of weekday)\n",
		weekMean, endMean, endMean/weekMean*100)
}

func printTempCurve(samples []model.AlignedSample, bucketWidth float64) {
	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[int]*bucket)
	for _, s := range samples {
		if s.Unavailable {
			continue
		}
		key := int(math.Floor(s.Weather.TemperatureC / bucketWidth))
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}
		b.sum += s.LoadMW
		b.count++
	}
	if len(buckets) < 2 {
		return
	}

	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	fmt.Println("  Demand by temperature:")
	fmt.Printf("  %-14s  %8s  %7s\n", "Temp range", "Mean MW", "Hours")
	for _, k := range keys {
		b := buckets[k]
		lo := float64(k) * bucketWidth
		fmt.Printf("  %5.0f to %-5.0f  %8.0f  %7d\n", lo, lo+bucketWidth, b.sum/float64(b.count), b.count)
	}
}
