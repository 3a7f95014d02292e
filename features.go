/*
Copyright © 2026 the NetImpact authors.
This file is part of NetImpact.

NetImpact is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

NetImpact is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with NetImpact.  If not, see <http://www.gnu.org/licenses/>.
*/

package netimpact

import (
	"fmt"
	"strings"
	"time"
)

// Features is the engineered input of a PredictiveSurface, keyed by the
// names in FeatureNames.
type Features map[string]float64

// FeatureNames lists, in a fixed order, every feature built by NewFeatures.
var FeatureNames = []string{
	"traffic_index",
	"avg_speed_kph",
	"distance_km",
	"road_grade_pct",
	"vkt_km",
	"fleet_total",
	"temp_c",
	"humidity_pct",
	"wind_mps",
	"season_monsoon",
	"season_winter",
	"season_summer",
	"ndvi",
	"lai",
	"forest_area_km2",
	"area_km2",
	"population_density",
	"pm25_ug_m3",
	"nox_ug_m3",
	"duration_hours",
	"ef_co2_g_km",
	"ef_pm25_g_km",
	"ef_nox_g_km",
	"day_of_week",
	"day_of_year",
	"month",
	"quarter",
	"is_weekend",
	"traffic_index_rolling_mean_7",
	"traffic_index_rolling_std_7",
	"ndvi_rolling_mean_7",
	"temp_c_rolling_mean_7",
}

// Values returns the feature values in FeatureNames order.
func (f Features) Values() []float64 {
	o := make([]float64, len(FeatureNames))
	for i, n := range FeatureNames {
		o[i] = f[n]
	}
	return o
}

// NewFeatures builds the feature vector of s. The fleet-weighted emission
// factors are taken from t so that changes to the factors, such as fleet
// modernization or resampled uncertainty, reach the surface.
//
// Rolling-window features are approximated from the single observation in
// s, and calendar features are zero when s.Date is unset.
func NewFeatures(s *BaseState, t *FactorTable) (Features, error) {
	f := Features{
		"traffic_index":      s.TrafficIndex,
		"avg_speed_kph":      s.AvgSpeedKph,
		"distance_km":        s.DistanceKm,
		"road_grade_pct":     s.RoadGradePct,
		"fleet_total":        s.Fleet.Total(),
		"temp_c":             s.Meteorology.TemperatureC,
		"humidity_pct":       s.Meteorology.RelativeHumidityPct,
		"wind_mps":           s.Meteorology.WindSpeedMS,
		"ndvi":               s.Vegetation.NDVI,
		"lai":                s.Vegetation.LAI,
		"forest_area_km2":    s.Vegetation.ForestAreaKm2,
		"area_km2":           s.Unit.AreaKm2,
		"population_density": s.Unit.PopulationDensity,
		"pm25_ug_m3":         s.Ambient.PM25UgM3,
		"nox_ug_m3":          s.Ambient.NOxUgM3,
		"duration_hours":     s.DurationHours,

		"traffic_index_rolling_mean_7": s.TrafficIndex * 0.95,
		"traffic_index_rolling_std_7":  s.TrafficIndex * 0.1,
		"ndvi_rolling_mean_7":          s.Vegetation.NDVI * 1.02,
		"temp_c_rolling_mean_7":        s.Meteorology.TemperatureC * 0.98,
	}
	f["vkt_km"] = f["fleet_total"] * s.DistanceKm

	for _, season := range []Season{Monsoon, Winter, Summer} {
		if s.Meteorology.Season == season {
			f["season_"+string(season)] = 1
		} else {
			f["season_"+string(season)] = 0
		}
	}

	total := f["fleet_total"]
	for _, p := range Pollutants {
		var ef float64
		for _, c := range s.Fleet.Categories() {
			v, err := t.EmissionFactor(p, c)
			if err != nil {
				return nil, err
			}
			if total > 0 {
				ef += v * s.Fleet[c] / total
			}
		}
		f["ef_"+strings.ToLower(string(p))+"_g_km"] = ef
	}

	for _, n := range []string{"day_of_week", "day_of_year", "month", "quarter", "is_weekend"} {
		f[n] = 0
	}
	if !s.Date.IsZero() {
		d := s.Date
		f["day_of_week"] = float64((int(d.Weekday()) + 6) % 7) // Monday = 0
		f["day_of_year"] = float64(d.YearDay())
		f["month"] = float64(d.Month())
		f["quarter"] = float64((int(d.Month())-1)/3 + 1)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			f["is_weekend"] = 1
		}
	}
	for _, n := range FeatureNames {
		if _, ok := f[n]; !ok {
			panic(fmt.Errorf("netimpact: feature %s was not computed", n))
		}
	}
	return f, nil
}

// NetPrediction is the output of a PredictiveSurface: the net balance of
// each pollutant [kg/day].
type NetPrediction struct {
	CO2, PM25, NOx float64
}

// PredictiveSurface is a trained function from features to net pollutant
// balances. Predict must be synchronous and free of side effects.
type PredictiveSurface interface {
	Predict(f Features) (NetPrediction, error)
}

// SurfaceEvaluator evaluates states with a PredictiveSurface instead of the
// physical models. The surface only predicts net balances, so the results
// report the prediction as emitted with zero removal.
type SurfaceEvaluator struct {
	Surface PredictiveSurface
	Units   Units
}

// Evaluate implements Evaluator.
func (e *SurfaceEvaluator) Evaluate(s *BaseState, t *FactorTable) (*NetImpactResult, error) {
	f, err := NewFeatures(s, t)
	if err != nil {
		return nil, err
	}
	p, err := e.Surface.Predict(f)
	if err != nil {
		return nil, fmt.Errorf("netimpact: predictive surface: %w", err)
	}
	r := &NetImpactResult{Units: KgPerDay, Method: MethodSurface}
	for i, v := range []float64{p.CO2, p.PM25, p.NOx} {
		if err := finite("predicted net "+string(Pollutants[i]), v); err != nil {
			return nil, err
		}
		r.SetBalance(Pollutants[i], Balance{Emitted: v, Net: v})
	}
	if e.Units == "" || e.Units == KgPerDay {
		return r, nil
	}
	return ScaleResult(r, e.Units)
}
