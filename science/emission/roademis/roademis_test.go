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

package roademis_test

import (
	"errors"
	"math"
	"testing"

	"github.com/spatialmodel/netimpact"
	"github.com/spatialmodel/netimpact/science/emission/roademis"
)

const testTolerance = 1.e-9

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func factors(t *testing.T) *netimpact.FactorTable {
	f, err := netimpact.DefaultFactorTable()
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestCompute(t *testing.T) {
	f := factors(t)
	fleet := netimpact.FleetComposition{"car": 100, "truck": 10, "twowheeler": 200}

	// Traffic index 40 is a congestion knot with multiplier 1.1; grade 0
	// has no gradient adjustment.
	e, err := roademis.Compute(fleet, 20, 40, 0, f)
	if err != nil {
		t.Fatal(err)
	}
	adj := 1.1 * 1.2
	want := map[string][2]float64{
		"CO2":  {e.CO2, (100*150 + 10*450 + 200*80) * 20 * adj / 1000},
		"PM25": {e.PM25, (100*0.005 + 10*0.05 + 200*0.002) * 20 * adj / 1000},
		"NOX":  {e.NOx, (100*0.18 + 10*1.5 + 200*0.08) * 20 * adj / 1000},
	}
	for p, v := range want {
		if different(v[0], v[1], testTolerance) {
			t.Errorf("%s: have %g, want %g", p, v[0], v[1])
		}
	}
}

func TestCompute_monotoneInTrafficIndex(t *testing.T) {
	f := factors(t)
	fleet := netimpact.FleetComposition{"car": 1000, "truck": 50}
	var prev float64
	for idx := 0.; idx <= 100; idx += 2.5 {
		e, err := roademis.Compute(fleet, 10, idx, 2, f)
		if err != nil {
			t.Fatal(err)
		}
		if e.CO2 < prev {
			t.Errorf("emissions decreased from %g to %g at traffic index %g", prev, e.CO2, idx)
		}
		prev = e.CO2
	}
}

func TestCompute_congestionBounds(t *testing.T) {
	f := factors(t)
	fleet := netimpact.FleetComposition{"car": 1}
	lo, err := roademis.Compute(fleet, 1, 0, 0, f)
	if err != nil {
		t.Fatal(err)
	}
	hi, err := roademis.Compute(fleet, 1, 100, 0, f)
	if err != nil {
		t.Fatal(err)
	}
	if lo.CO2 <= 0 {
		t.Errorf("emissions at the congestion floor should be positive but are %g", lo.CO2)
	}
	if different(hi.CO2/lo.CO2, 2, testTolerance) {
		t.Errorf("congestion range: have %g, want 2", hi.CO2/lo.CO2)
	}
}

func TestGradientAdjustment(t *testing.T) {
	tc := factors(t).Traffic()
	for _, test := range []struct {
		grade, want float64
	}{
		{0, 1},
		{2, 1.06},
		{-2, 0.94},
		{10, 1.15},
		{-30, 0.85},
	} {
		if have := roademis.GradientAdjustment(test.grade, tc); different(have, test.want, testTolerance) {
			t.Errorf("grade %g: have %g, want %g", test.grade, have, test.want)
		}
	}
}

func TestCompute_unknownCategory(t *testing.T) {
	f := factors(t)
	_, err := roademis.Compute(netimpact.FleetComposition{"bus": 10}, 10, 50, 0, f)
	var le *netimpact.LookupError
	if !errors.As(err, &le) {
		t.Fatalf("want *LookupError, have %v", err)
	}
	if le.Key != "CO2.bus" {
		t.Errorf("key: have %q, want %q", le.Key, "CO2.bus")
	}
}

func TestEmissions(t *testing.T) {
	f := factors(t)
	s := &netimpact.BaseState{
		Fleet:         netimpact.FleetComposition{"car": 10},
		DistanceKm:    5,
		TrafficIndex:  0,
		DurationHours: 12,
	}
	e, err := roademis.Emissions()(s, f)
	if err != nil {
		t.Fatal(err)
	}
	if e.PeriodHours != 12 {
		t.Errorf("period: have %g, want 12", e.PeriodHours)
	}
	if want := 10 * 5 * 150 * 1.2 / 1000.; different(e.CO2, want, testTolerance) {
		t.Errorf("CO2: have %g, want %g", e.CO2, want)
	}
}
