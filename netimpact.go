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

// Package netimpact estimates the net urban balance of CO2, PM2.5 and NOx
// for a spatial unit by combining vehicular emissions with removal by
// forest sequestration and canopy dry deposition.
//
// The package holds the data model, the immutable FactorTable, the
// aggregation of model outputs into a NetImpactResult, and the Pipeline
// that wires the physical models together. The physical models themselves
// live in the science subpackages and the policy simulation in package
// scenario.
package netimpact

import (
	"sort"
	"time"
)

// Pollutant identifies one of the species tracked by the model.
type Pollutant string

// These are the pollutants the model tracks.
const (
	CO2  Pollutant = "CO2"
	PM25 Pollutant = "PM25"
	NOx  Pollutant = "NOX"
)

// Pollutants lists every tracked pollutant in reporting order.
var Pollutants = []Pollutant{CO2, PM25, NOx}

// VehicleCategory is a class of vehicle with its own emission factors,
// e.g. "car", "truck" or "twowheeler".
type VehicleCategory string

// Season is the seasonal regime used by the sequestration model.
type Season string

// These are the recognized seasons.
const (
	Monsoon     Season = "monsoon"
	Winter      Season = "winter"
	Summer      Season = "summer"
	OtherSeason Season = "other"
)

// Valid returns whether s is one of the recognized seasons.
func (s Season) Valid() bool {
	switch s {
	case Monsoon, Winter, Summer, OtherSeason:
		return true
	}
	return false
}

// SpatialUnit is the city or ward being evaluated.
type SpatialUnit struct {
	City string `json:"city" toml:"city"`
	Ward string `json:"ward,omitempty" toml:"ward"`

	// AreaKm2 is the land area of the unit [km²].
	AreaKm2 float64 `json:"area_km2" toml:"area_km2"`

	// UndevelopedAreaKm2 is the land available for afforestation [km²].
	UndevelopedAreaKm2 float64 `json:"undeveloped_area_km2" toml:"undeveloped_area_km2"`

	// PopulationDensity is in people per km².
	PopulationDensity float64 `json:"population_density" toml:"population_density"`
}

// FleetComposition maps vehicle categories to the number of active vehicles.
// Counts may be fractional when derived from registration shares.
type FleetComposition map[VehicleCategory]float64

// Categories returns the fleet categories in sorted order so that sums over
// the fleet are reproducible.
func (f FleetComposition) Categories() []VehicleCategory {
	o := make([]VehicleCategory, 0, len(f))
	for c := range f {
		o = append(o, c)
	}
	sort.Slice(o, func(i, j int) bool { return o[i] < o[j] })
	return o
}

// Total returns the total number of vehicles in the fleet.
func (f FleetComposition) Total() float64 {
	var t float64
	for _, c := range f.Categories() {
		t += f[c]
	}
	return t
}

// Clone returns a copy of f.
func (f FleetComposition) Clone() FleetComposition {
	if f == nil {
		return nil
	}
	o := make(FleetComposition, len(f))
	for c, n := range f {
		o[c] = n
	}
	return o
}

// MeteorologicalState holds the surface weather for the evaluation period.
type MeteorologicalState struct {
	TemperatureC        float64 `json:"temp_c" toml:"temp_c"`
	RelativeHumidityPct float64 `json:"humidity_pct" toml:"humidity_pct"`
	WindSpeedMS         float64 `json:"wind_mps" toml:"wind_mps"`
	Season              Season  `json:"season" toml:"season"`
}

// VegetationState describes the forest cover of the spatial unit.
type VegetationState struct {
	ForestAreaKm2 float64 `json:"forest_area_km2" toml:"forest_area_km2"`
	NDVI          float64 `json:"ndvi" toml:"ndvi"`
	LAI           float64 `json:"lai" toml:"lai"`
}

// AmbientState holds ambient concentrations available for deposition [μg/m³].
type AmbientState struct {
	PM25UgM3 float64 `json:"pm25_ug_m3" toml:"pm25_ug_m3"`
	NOxUgM3  float64 `json:"nox_ug_m3" toml:"nox_ug_m3"`
}

// Concentration returns the ambient concentration of p [μg/m³].
func (a AmbientState) Concentration(p Pollutant) float64 {
	switch p {
	case PM25:
		return a.PM25UgM3
	case NOx:
		return a.NOxUgM3
	}
	return 0
}

// BaseState is everything the physical models need to evaluate one spatial
// unit over one evaluation period. Interventions derive new BaseStates with
// Clone and never modify the original.
type BaseState struct {
	Unit  SpatialUnit      `json:"unit"`
	Fleet FleetComposition `json:"fleet"`

	// DistanceKm is the distance traveled by each vehicle over the
	// evaluation period [km].
	DistanceKm float64 `json:"distance_km"`

	// TrafficIndex is the congestion index in [0, 100].
	TrafficIndex float64 `json:"traffic_index"`

	// AvgSpeedKph is the mean traffic speed [km/h].
	AvgSpeedKph float64 `json:"avg_speed_kph"`

	// RoadGradePct is the mean road grade [%]; positive is uphill.
	RoadGradePct float64 `json:"road_grade_pct"`

	Meteorology MeteorologicalState `json:"meteorology"`
	Vegetation  VegetationState     `json:"vegetation"`
	Ambient     AmbientState        `json:"ambient"`

	// DurationHours is the length of the evaluation period [h].
	DurationHours float64 `json:"duration_hours"`

	// Date is the observation date. It is optional and only used to
	// derive calendar features for a PredictiveSurface.
	Date time.Time `json:"date,omitempty"`
}

// Clone returns a deep copy of s.
func (s *BaseState) Clone() *BaseState {
	o := *s
	o.Fleet = s.Fleet.Clone()
	return &o
}

// CanopyAreaM2 returns the canopy area available for deposition [m²]
// given the canopy density of the forest [m² canopy per km² forest].
func (s *BaseState) CanopyAreaM2(densityM2PerKm2 float64) float64 {
	return s.Vegetation.ForestAreaKm2 * densityM2PerKm2
}
