package model

import "time"

// Region identifies a load area in the Delhi distribution grid.
type Region string

const (
	RegionDelhi Region = "DELHI" // system-wide total
	RegionBRPL  Region = "BRPL"
	RegionBYPL  Region = "BYPL"
	RegionNDPL  Region = "NDPL"
	RegionNDMC  Region = "NDMC"
	RegionMES   Region = "MES"
)

// Regions lists every known region in load CSV column order.
var Regions = []Region{RegionDelhi, RegionBRPL, RegionBYPL, RegionNDPL, RegionNDMC, RegionMES}

// RegionInfo holds display name and whether the region is the system total.
type RegionInfo struct {
	Name  string
	Total bool
}

// RegionCatalog maps every known Region to its display info.
var RegionCatalog = map[Region]RegionInfo{
	RegionDelhi: {Name: "Delhi (total)", Total: true},
	RegionBRPL:  {Name: "BSES Rajdhani", Total: false},
	RegionBYPL:  {Name: "BSES Yamuna", Total: false},
	RegionNDPL:  {Name: "Tata Power Delhi", Total: false},
	RegionNDMC:  {Name: "New Delhi Municipal Council", Total: false},
	RegionMES:   {Name: "Military Engineer Services", Total: false},
}

// ParseRegion returns the region for s, or false if unknown.
func ParseRegion(s string) (Region, bool) {
	r := Region(s)
	_, ok := RegionCatalog[r]
	return r, ok
}

// LoadRecord is one observed load value. Immutable once ingested.
type LoadRecord struct {
	Timestamp time.Time
	Region    Region
	LoadMW    float64
}

// WeatherRecord is one observed weather sample. Immutable once ingested.
type WeatherRecord struct {
	Timestamp        time.Time
	TemperatureC     float64
	RelativeHumidity float64
	WindSpeedKmh     float64
}

// WeatherFields is the weather portion of an aligned sample or inference request.
type WeatherFields struct {
	TemperatureC     float64 `json:"temperature_2m"`
	RelativeHumidity float64 `json:"relative_humidity_2m"`
	WindSpeedKmh     float64 `json:"wind_speed_10m"`
}

// AlignedSample is the join of load and weather on one grid timestamp.
// Imputed marks samples where any source field was interpolated rather than
// observed. Unavailable marks grid slots that could not be reconstructed;
// their values must not be consumed downstream.
type AlignedSample struct {
	Timestamp   time.Time
	Region      Region
	LoadMW      float64
	Weather     WeatherFields
	Imputed     bool
	Unavailable bool
}

// FeatureVector is the per-timestamp input to the weather regressor.
// Cyclical encodings keep period boundaries continuous. It never carries
// the prediction target.
type FeatureVector struct {
	Timestamp        time.Time
	HourSin          float64
	HourCos          float64
	DaySin           float64
	DayCos           float64
	Weekday          float64
	Holiday          float64
	TemperatureC     float64
	RelativeHumidity float64
	WindSpeedKmh     float64
}

// featureNames is the canonical column order for Values.
var featureNames = []string{
	"hour_sin", "hour_cos", "day_sin", "day_cos",
	"weekday", "holiday",
	"temperature_2m", "relative_humidity_2m", "wind_speed_10m",
}

// FeatureNames returns the canonical feature column names, matching Values order.
func FeatureNames() []string {
	out := make([]string, len(featureNames))
	copy(out, featureNames)
	return out
}

// Values flattens the vector in FeatureNames order.
func (f FeatureVector) Values() []float64 {
	return []float64{
		f.HourSin, f.HourCos, f.DaySin, f.DayCos,
		f.Weekday, f.Holiday,
		f.TemperatureC, f.RelativeHumidity, f.WindSpeedKmh,
	}
}

// LoadWindow is the ordered recent load history ending immediately before End.
// A window always holds exactly its configured length; insufficient history
// means no window at all.
type LoadWindow struct {
	Region Region
	End    time.Time
	Values []float64
}

// Prediction is one fused forecast with its component breakdown.
type Prediction struct {
	Timestamp       time.Time `json:"timestamp"`
	Region          Region    `json:"region"`
	PredictedLoadMW float64   `json:"predicted_demand_MW"`
	SequencePred    float64   `json:"sequence_pred"`
	WeatherPred     float64   `json:"weather_pred"`
}

// TimeRange is a half-open [Start, End) span.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// EvaluationReport holds held-out accuracy metrics for one model.
type EvaluationReport struct {
	Model        string
	MAE          float64
	RMSE         float64
	MAPE         float64
	R2           float64
	MAPEExcluded int // samples skipped by MAPE because true load was zero
	Samples      int
	Window       TimeRange
	Seeded       bool
}
