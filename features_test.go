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
	"errors"
	"math"
	"testing"
)

func TestNewFeatures(t *testing.T) {
	f := testFactors(t)
	s, err := testInput().BaseState()
	if err != nil {
		t.Fatal(err)
	}
	x, err := NewFeatures(s, f)
	if err != nil {
		t.Fatal(err)
	}
	if len(x) != len(FeatureNames) {
		t.Errorf("have %d features, want %d", len(x), len(FeatureNames))
	}
	wantCO2 := (400*150. + 60*450. + 900*80.) / 1360
	for name, want := range map[string]float64{
		"fleet_total":    1360,
		"vkt_km":         1360 * 18,
		"season_monsoon": 1,
		"season_winter":  0,
		"ef_co2_g_km":    wantCO2,
		"ef_nox_g_km":    (400*0.18 + 60*1.5 + 900*0.08) / 1360,
		"day_of_week":    5, // Saturday
		"day_of_year":    196,
		"month":          7,
		"quarter":        3,
		"is_weekend":     1,
		"ndvi":           0.6,
	} {
		if different(x[name], want, testTolerance) && x[name] != want {
			t.Errorf("%s: have %g, want %g", name, x[name], want)
		}
	}
	v := x.Values()
	for i, n := range FeatureNames {
		if v[i] != x[n] {
			t.Errorf("value %d is not %s", i, n)
		}
	}

	t.Run("factors reach features", func(t *testing.T) {
		g, err := f.Scaled(map[string]float64{"emission.CO2": 0.5})
		if err != nil {
			t.Fatal(err)
		}
		y, err := NewFeatures(s, g)
		if err != nil {
			t.Fatal(err)
		}
		if different(y["ef_co2_g_km"], wantCO2/2, testTolerance) {
			t.Errorf("have %g", y["ef_co2_g_km"])
		}
	})
	t.Run("no date", func(t *testing.T) {
		in := testInput()
		in.Date = ""
		s, err := in.BaseState()
		if err != nil {
			t.Fatal(err)
		}
		y, _ := NewFeatures(s, f)
		if y["month"] != 0 || y["is_weekend"] != 0 {
			t.Errorf("calendar features should be zero: %g, %g", y["month"], y["is_weekend"])
		}
	})
}

type constSurface NetPrediction

func (c constSurface) Predict(f Features) (NetPrediction, error) {
	if len(f) != len(FeatureNames) {
		return NetPrediction{}, errors.New("wrong feature count")
	}
	return NetPrediction(c), nil
}

func TestSurfaceEvaluator(t *testing.T) {
	f := testFactors(t)
	s, err := testInput().BaseState()
	if err != nil {
		t.Fatal(err)
	}
	e := &SurfaceEvaluator{Surface: constSurface{CO2: -2000, PM25: 3, NOx: 8}}
	r, err := e.Evaluate(s, f)
	if err != nil {
		t.Fatal(err)
	}
	if r.Method != MethodSurface || r.Units != KgPerDay || r.CO2.Net != -2000 || r.CO2.Removed != 0 || r.NOx.Emitted != 8 {
		t.Errorf("have %+v", r)
	}

	e.Units = TonnesPerDay
	r, err = e.Evaluate(s, f)
	if err != nil {
		t.Fatal(err)
	}
	if different(r.CO2.Net, -2, testTolerance) || r.Units != TonnesPerDay {
		t.Errorf("have %+v", r)
	}

	e.Surface = constSurface{CO2: math.NaN()}
	var ne *NumericalError
	if _, err := e.Evaluate(s, f); !errors.As(err, &ne) {
		t.Errorf("want *NumericalError, have %v", err)
	}
}
