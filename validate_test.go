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
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/kr/pretty"
)

func testInput() *Input {
	return &Input{
		City:               "Pune",
		Ward:               "Pune_W3",
		AreaKm2:            Float64(50),
		UndevelopedAreaKm2: Float64(6),
		PopulationDensity:  Float64(6000),
		Fleet:              map[string]float64{"car": 400, "truck": 60, "twowheeler": 900},
		DistanceKm:         Float64(18),
		TrafficIndex:       Float64(55),
		AvgSpeedKph:        Float64(28),
		RoadGradePct:       Float64(1),
		DurationHours:      Float64(24),
		TempC:              Float64(24),
		HumidityPct:        Float64(70),
		WindMS:             Float64(3),
		Season:             String("monsoon"),
		ForestAreaKm2:      Float64(9),
		NDVI:               Float64(0.6),
		LAI:                Float64(3.5),
		PM25UgM3:           Float64(55),
		NOxUgM3:            Float64(30),
		Date:               "2023-07-15",
	}
}

func violationFields(t *testing.T, err error) []string {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want *ValidationError, have %v", err)
	}
	o := make([]string, len(ve.Violations))
	for i, v := range ve.Violations {
		o[i] = v.Field
	}
	return o
}

func TestInput_BaseState(t *testing.T) {
	s, err := testInput().BaseState()
	if err != nil {
		t.Fatal(err)
	}
	if s.Unit.City != "Pune" || s.Fleet["truck"] != 60 || s.Meteorology.Season != Monsoon || s.Vegetation.LAI != 3.5 {
		t.Errorf("state: %# v", pretty.Formatter(s))
	}
	if !s.Date.Equal(time.Date(2023, 7, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date %v", s.Date)
	}
}

func TestInput_missing(t *testing.T) {
	_, err := new(Input).BaseState()
	have := violationFields(t, err)
	want := []string{
		"area_km2", "undeveloped_area_km2", "population_density",
		"distance_km", "traffic_index", "avg_speed_kph", "road_grade_pct", "duration_hours",
		"meteorology.temp_c", "meteorology.humidity_pct", "meteorology.wind_mps",
		"forest_area_km2", "ndvi", "lai",
		"ambient.pm25_ug_m3", "ambient.nox_ug_m3",
		"meteorology.season",
		"city", "fleet",
	}
	if diff := pretty.Diff(have, want); len(diff) > 0 {
		t.Errorf("missing fields: %v", diff)
	}
}

func TestInput_JSON(t *testing.T) {
	const req = `{
		"city": "Pune", "area_km2": 50, "undeveloped_area_km2": 6, "population_density": 6000,
		"fleet": {"car": 400, "truck": -60},
		"distance_km": 18, "traffic_index": 155, "avg_speed_kph": 28, "road_grade_pct": 1,
		"duration_hours": 0, "temp_c": 24, "humidity_pct": 70, "wind_mps": 3, "season": "spring",
		"forest_area_km2": 9, "ndvi": 0.6, "lai": 3.5, "pm25_ug_m3": 55,
		"date": "15/07/2023"
	}`
	var in Input
	if err := json.NewDecoder(strings.NewReader(req)).Decode(&in); err != nil {
		t.Fatal(err)
	}
	_, err := in.BaseState()
	have := violationFields(t, err)
	want := []string{
		"ambient.nox_ug_m3",
		"date",
		"fleet[truck]",
		"traffic_index",
		"meteorology.season",
		"duration_hours",
	}
	if diff := pretty.Diff(have, want); len(diff) > 0 {
		t.Errorf("%v: %v", err, diff)
	}
}

func TestBaseState_Check(t *testing.T) {
	in := testInput()
	s, err := in.BaseState()
	if err != nil {
		t.Fatal(err)
	}
	s.Vegetation.NDVI = math.NaN()
	s.Meteorology.WindSpeedMS = math.Inf(1)
	s.DurationHours = math.Inf(1)
	s.Fleet[""] = 1
	have := violationFields(t, s.Validate())
	want := []string{"fleet", "meteorology.wind_mps", "ndvi", "duration_hours"}
	if diff := pretty.Diff(have, want); len(diff) > 0 {
		t.Error(diff)
	}

	f := testFactors(t)
	s, _ = in.BaseState()
	if err := s.CheckCategories(f); err != nil {
		t.Error(err)
	}
	s.Fleet["auto"] = 10
	var le *LookupError
	if err := s.CheckCategories(f); !errors.As(err, &le) || le.Key != "CO2.auto" {
		t.Errorf("want lookup error, have %v", err)
	}
}

func TestBaseState_Clone(t *testing.T) {
	s, err := testInput().BaseState()
	if err != nil {
		t.Fatal(err)
	}
	c := s.Clone()
	c.Fleet["car"] = 1
	c.Vegetation.NDVI = 0.1
	if s.Fleet["car"] != 400 || s.Vegetation.NDVI != 0.6 {
		t.Error("clone shares state with the original")
	}
}
