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
	"time"
)

// DateLayout is the layout of Input.Date.
const DateLayout = "2006-01-02"

// Input is the request-boundary form of a BaseState, as decoded from JSON
// or TOML. Pointer fields are required; a nil pointer is reported as a
// missing field rather than replaced by a default.
type Input struct {
	City               string   `json:"city" toml:"city"`
	Ward               string   `json:"ward,omitempty" toml:"ward"`
	AreaKm2            *float64 `json:"area_km2" toml:"area_km2"`
	UndevelopedAreaKm2 *float64 `json:"undeveloped_area_km2" toml:"undeveloped_area_km2"`
	PopulationDensity  *float64 `json:"population_density" toml:"population_density"`

	Fleet         map[string]float64 `json:"fleet" toml:"fleet"`
	DistanceKm    *float64           `json:"distance_km" toml:"distance_km"`
	TrafficIndex  *float64           `json:"traffic_index" toml:"traffic_index"`
	AvgSpeedKph   *float64           `json:"avg_speed_kph" toml:"avg_speed_kph"`
	RoadGradePct  *float64           `json:"road_grade_pct" toml:"road_grade_pct"`
	DurationHours *float64           `json:"duration_hours" toml:"duration_hours"`

	TempC       *float64 `json:"temp_c" toml:"temp_c"`
	HumidityPct *float64 `json:"humidity_pct" toml:"humidity_pct"`
	WindMS      *float64 `json:"wind_mps" toml:"wind_mps"`
	Season      *string  `json:"season" toml:"season"`

	ForestAreaKm2 *float64 `json:"forest_area_km2" toml:"forest_area_km2"`
	NDVI          *float64 `json:"ndvi" toml:"ndvi"`
	LAI           *float64 `json:"lai" toml:"lai"`

	PM25UgM3 *float64 `json:"pm25_ug_m3" toml:"pm25_ug_m3"`
	NOxUgM3  *float64 `json:"nox_ug_m3" toml:"nox_ug_m3"`

	// Date is optional and in DateLayout format.
	Date string `json:"date,omitempty" toml:"date"`
}

// BaseState converts i to a BaseState. All missing and invalid fields are
// reported together in a single *ValidationError.
func (i *Input) BaseState() (*BaseState, error) {
	var v Violations
	num := func(field string, p *float64) float64 {
		if p == nil {
			v.Addf(field, "is required")
			return 0
		}
		return *p
	}
	s := &BaseState{
		Unit: SpatialUnit{
			City:               i.City,
			Ward:               i.Ward,
			AreaKm2:            num("area_km2", i.AreaKm2),
			UndevelopedAreaKm2: num("undeveloped_area_km2", i.UndevelopedAreaKm2),
			PopulationDensity:  num("population_density", i.PopulationDensity),
		},
		DistanceKm:    num("distance_km", i.DistanceKm),
		TrafficIndex:  num("traffic_index", i.TrafficIndex),
		AvgSpeedKph:   num("avg_speed_kph", i.AvgSpeedKph),
		RoadGradePct:  num("road_grade_pct", i.RoadGradePct),
		DurationHours: num("duration_hours", i.DurationHours),
		Meteorology: MeteorologicalState{
			TemperatureC:        num("meteorology.temp_c", i.TempC),
			RelativeHumidityPct: num("meteorology.humidity_pct", i.HumidityPct),
			WindSpeedMS:         num("meteorology.wind_mps", i.WindMS),
		},
		Vegetation: VegetationState{
			ForestAreaKm2: num("forest_area_km2", i.ForestAreaKm2),
			NDVI:          num("ndvi", i.NDVI),
			LAI:           num("lai", i.LAI),
		},
		Ambient: AmbientState{
			PM25UgM3: num("ambient.pm25_ug_m3", i.PM25UgM3),
			NOxUgM3:  num("ambient.nox_ug_m3", i.NOxUgM3),
		},
	}
	missing := len(v)

	if i.Season == nil {
		v.Addf("meteorology.season", "is required")
	} else {
		s.Meteorology.Season = Season(*i.Season)
	}
	if i.Fleet != nil {
		s.Fleet = make(FleetComposition, len(i.Fleet))
		for c, n := range i.Fleet {
			s.Fleet[VehicleCategory(c)] = n
		}
	}
	if i.Date != "" {
		d, err := time.Parse(DateLayout, i.Date)
		if err != nil {
			v.Addf("date", "must be formatted as %s: %v", DateLayout, err)
		}
		s.Date = d
	}

	// Fields that were missing have already been reported and would
	// otherwise be reported again as out of range.
	reported := make(map[string]bool, missing)
	for _, x := range v[:missing] {
		reported[x.Field] = true
	}
	for _, x := range s.Check() {
		if !reported[x.Field] && !(x.Field == "meteorology.season" && i.Season == nil) {
			v.Append(x)
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// Float64 returns a pointer to x. It is a convenience for building Inputs.
func Float64(x float64) *float64 { return &x }

// String returns a pointer to s.
func String(s string) *string { return &s }
