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

package canopydep_test

import (
	"errors"
	"testing"

	"github.com/spatialmodel/netimpact"
	"github.com/spatialmodel/netimpact/science/drydep/canopydep"
)

func meteorology(wind float64) netimpact.MeteorologicalState {
	return netimpact.MeteorologicalState{
		TemperatureC:        28,
		RelativeHumidityPct: 60,
		WindSpeedMS:         wind,
		Season:              netimpact.Summer,
	}
}

func TestDetailedVelocity(t *testing.T) {
	f := factors(t)
	for _, p := range []netimpact.Pollutant{netimpact.PM25, netimpact.NOx} {
		d, err := f.Deposition(p)
		if err != nil {
			t.Fatal(err)
		}
		var last float64
		for _, u := range []float64{1, 3, 6} {
			vd, err := canopydep.DefaultDetailed.Velocity(p, meteorology(u), 3, f.Canopy(), d)
			if err != nil {
				t.Fatal(err)
			}
			if vd < 1.e-4 || vd > 0.05 {
				t.Errorf("%s at %g m/s: velocity %g m/s is out of the plausible range", p, u, vd)
			}
			if vd <= last {
				t.Errorf("%s: velocity should increase with wind speed: %g <= %g", p, vd, last)
			}
			last = vd
		}
	}
}

func TestDetailedVelocity_errors(t *testing.T) {
	f := factors(t)
	d, err := f.Deposition(netimpact.PM25)
	if err != nil {
		t.Fatal(err)
	}
	_, err = canopydep.DefaultDetailed.Velocity(netimpact.CO2, meteorology(3), 3, f.Canopy(), d)
	var le *netimpact.LookupError
	if !errors.As(err, &le) {
		t.Errorf("want *LookupError, have %v", err)
	}

	d0 := d
	d0.GroundConductanceMS = 0
	_, err = canopydep.DefaultDetailed.Velocity(netimpact.PM25, meteorology(3), 0, f.Canopy(), d0)
	var ne *netimpact.NumericalError
	if !errors.As(err, &ne) {
		t.Errorf("bare ground without conductance: want *NumericalError, have %v", err)
	}

	d.RoughnessLengthM = d.ReferenceHeightM
	_, err = canopydep.DefaultDetailed.Velocity(netimpact.PM25, meteorology(3), 3, f.Canopy(), d)
	if !errors.As(err, &ne) {
		t.Errorf("want *NumericalError, have %v", err)
	}
}

func TestDetailedDeposition_laiAndWind(t *testing.T) {
	f := factors(t)
	dep := canopydep.DefaultDetailed.Deposition()
	run := func(lai, wind float64) netimpact.DepositionMass {
		s := &netimpact.BaseState{
			Meteorology:   meteorology(wind),
			Vegetation:    netimpact.VegetationState{ForestAreaKm2: 10, NDVI: 0.5, LAI: lai},
			Ambient:       netimpact.AmbientState{PM25UgM3: 100, NOxUgM3: 50},
			DurationHours: 24,
		}
		m, err := dep(s, f)
		if err != nil {
			t.Fatal(err)
		}
		return m
	}
	var last netimpact.DepositionMass
	for _, lai := range []float64{0, 1, 2.5, 5} {
		m := run(lai, 3)
		if lai > 0 && (m.PM25 <= last.PM25 || m.NOx <= last.NOx) {
			t.Errorf("LAI %g: removal %+v should exceed %+v", lai, m, last)
		}
		last = m
	}

	calm, windy := run(2.5, 0.5), run(2.5, 8)
	if !(windy.PM25 > calm.PM25) || !(windy.NOx > calm.NOx) {
		t.Errorf("windy removal %+v should exceed calm removal %+v", windy, calm)
	}

	// The wind multiplier alone, with the wind speed held above the
	// friction velocity floor.
	c := f.Canopy()
	d, err := f.Deposition(netimpact.NOx)
	if err != nil {
		t.Fatal(err)
	}
	c1 := c
	c1.CalmScale, c1.WindyScale = 1, 1
	m := meteorology(0.5)
	scaled, err := canopydep.DefaultDetailed.Velocity(netimpact.NOx, m, 2.5, c, d)
	if err != nil {
		t.Fatal(err)
	}
	unscaled, err := canopydep.DefaultDetailed.Velocity(netimpact.NOx, m, 2.5, c1, d)
	if err != nil {
		t.Fatal(err)
	}
	if different(scaled, c.CalmScale*unscaled, 1e-12) {
		t.Errorf("calm velocity %g should be %g × %g", scaled, c.CalmScale, unscaled)
	}
}

func TestDetailedDeposition(t *testing.T) {
	f := factors(t)
	s := &netimpact.BaseState{
		Meteorology:   meteorology(2.5),
		Vegetation:    netimpact.VegetationState{ForestAreaKm2: 10, NDVI: 0.5, LAI: 3},
		Ambient:       netimpact.AmbientState{PM25UgM3: 100, NOxUgM3: 50},
		DurationHours: 24,
	}
	dep := canopydep.DefaultDetailed.Deposition()
	m, err := dep(s, f)
	if err != nil {
		t.Fatal(err)
	}
	if !(m.PM25 > 0) || !(m.NOx > 0) {
		t.Fatalf("removal %+v", m)
	}
	if m.PeriodHours != 24 {
		t.Errorf("period %g", m.PeriodHours)
	}

	s.Ambient.PM25UgM3 *= 2
	m2, err := dep(s, f)
	if err != nil {
		t.Fatal(err)
	}
	if different(m2.PM25, 2*m.PM25, 1e-12) {
		t.Errorf("removal should be proportional to concentration: %g != 2 × %g", m2.PM25, m.PM25)
	}
	if different(m2.NOx, m.NOx, 1e-12) {
		t.Errorf("NOx removal changed with PM2.5 concentration: %g != %g", m2.NOx, m.NOx)
	}

	s.Vegetation.ForestAreaKm2 = 0
	m, err = dep(s, f)
	if err != nil {
		t.Fatal(err)
	}
	if m.PM25 != 0 || m.NOx != 0 {
		t.Errorf("no forest should remove nothing: %+v", m)
	}
}

func TestDetailedDeposition_monsoon(t *testing.T) {
	f := factors(t)
	d, err := f.Deposition(netimpact.NOx)
	if err != nil {
		t.Fatal(err)
	}
	dry, err := canopydep.DefaultDetailed.Velocity(netimpact.NOx, meteorology(3), 3, f.Canopy(), d)
	if err != nil {
		t.Fatal(err)
	}
	m := meteorology(3)
	m.Season = netimpact.Monsoon
	wet, err := canopydep.DefaultDetailed.Velocity(netimpact.NOx, m, 3, f.Canopy(), d)
	if err != nil {
		t.Fatal(err)
	}
	if wet == dry {
		t.Errorf("a wet canopy should change the NOx surface resistance: %g", wet)
	}
}
