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
	"math"
)

// MaxTrafficIndex is the upper bound of the traffic index scale.
const MaxTrafficIndex = 100.

// Check returns every violation of the data model invariants in s.
func (s *BaseState) Check() Violations {
	var v Violations
	if s.Unit.City == "" {
		v.Addf("city", "is required")
	}
	v.NonNegative("area_km2", s.Unit.AreaKm2)
	v.NonNegative("undeveloped_area_km2", s.Unit.UndevelopedAreaKm2)
	v.NonNegative("population_density", s.Unit.PopulationDensity)

	if len(s.Fleet) == 0 {
		v.Addf("fleet", "must contain at least one vehicle category")
	}
	for _, c := range s.Fleet.Categories() {
		if c == "" {
			v.Addf("fleet", "contains an empty vehicle category")
			continue
		}
		v.NonNegative(fmt.Sprintf("fleet[%s]", c), s.Fleet[c])
	}
	v.NonNegative("distance_km", s.DistanceKm)
	v.Range("traffic_index", s.TrafficIndex, 0, MaxTrafficIndex)
	v.NonNegative("avg_speed_kph", s.AvgSpeedKph)
	v.Range("road_grade_pct", s.RoadGradePct, -100, 100)

	m := s.Meteorology
	v.Range("meteorology.temp_c", m.TemperatureC, -90, 60)
	v.Range("meteorology.humidity_pct", m.RelativeHumidityPct, 0, 100)
	v.NonNegative("meteorology.wind_mps", m.WindSpeedMS)
	if !m.Season.Valid() {
		v.Addf("meteorology.season", "must be one of monsoon, winter, summer, other but is %q", m.Season)
	}

	g := s.Vegetation
	v.NonNegative("forest_area_km2", g.ForestAreaKm2)
	v.Range("ndvi", g.NDVI, 0, 1)
	v.NonNegative("lai", g.LAI)

	v.NonNegative("ambient.pm25_ug_m3", s.Ambient.PM25UgM3)
	v.NonNegative("ambient.nox_ug_m3", s.Ambient.NOxUgM3)

	if !(s.DurationHours > 0) || math.IsInf(s.DurationHours, 0) {
		v.Addf("duration_hours", "must be a finite value > 0 but is %g", s.DurationHours)
	}
	return v
}

// Validate returns a *ValidationError listing every invalid field of s,
// or nil if s is valid.
func (s *BaseState) Validate() error {
	return s.Check().Err()
}

// CheckCategories returns a *LookupError for the first fleet category
// (in sorted order) that has no emission factor for some pollutant in f.
func (s *BaseState) CheckCategories(f *FactorTable) error {
	for _, c := range s.Fleet.Categories() {
		for _, p := range Pollutants {
			if _, err := f.EmissionFactor(p, c); err != nil {
				return err
			}
		}
	}
	return nil
}
