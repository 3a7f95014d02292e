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
	"math"
	"sort"
	"strings"
)

// Names of the scalable coefficients of each deposition pollutant.
const (
	depBoundary  = "boundary"
	depLeaf      = "leaf_conductance"
	depGround    = "ground_conductance"
	depRoughness = "roughness_length"
)

// Scalable factor keys that are not per-pollutant.
const (
	KeySequestrationBaseRate = "sequestration.base_rate"
	KeyCanopyDensity         = "canopy.density"
	KeyColdStart             = "traffic.cold_start"
)

// EmissionKey returns the factor key addressing the emission factors of p.
// If c is empty the key addresses every vehicle category.
func EmissionKey(p Pollutant, c VehicleCategory) string {
	if c == "" {
		return "emission." + string(p)
	}
	return "emission." + string(p) + "." + string(c)
}

// FactorKeys returns, in sorted order, every key accepted by Scaled.
func (t *FactorTable) FactorKeys() []string {
	keys := []string{KeySequestrationBaseRate, KeyCanopyDensity, KeyColdStart}
	for p := range t.emission {
		keys = append(keys, EmissionKey(p, ""))
		for c := range t.emission[p] {
			keys = append(keys, EmissionKey(p, c))
		}
	}
	for p := range t.dep {
		for _, n := range []string{depBoundary, depLeaf, depGround, depRoughness} {
			keys = append(keys, "deposition."+string(p)+"."+n)
		}
	}
	sort.Strings(keys)
	return keys
}

// HasFactor returns whether key is accepted by Scaled.
func (t *FactorTable) HasFactor(key string) bool {
	_, err := t.Scaled(map[string]float64{key: 1})
	return err == nil
}

// Scaled returns a new FactorTable with the coefficients addressed by the
// keys of scales multiplied by the corresponding values. Keys are applied
// in sorted order. An unknown key is a *LookupError; a scaled coefficient
// that is negative or not finite is a *NumericalError. t is not modified.
func (t *FactorTable) Scaled(scales map[string]float64) (*FactorTable, error) {
	if len(scales) == 0 {
		return t, nil
	}
	o := t.clone()
	keys := make([]string, 0, len(scales))
	for k := range scales {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := o.scale(k, scales[k]); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (t *FactorTable) scale(key string, s float64) error {
	mul := func(v *float64) error {
		*v *= s
		if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
			return &NumericalError{Op: "scaling factor " + key, Value: *v,
				Msg: "coefficients must be finite and non-negative"}
		}
		return nil
	}
	switch key {
	case KeySequestrationBaseRate:
		return mul(&t.seq.BaseRateKgPerKm2Day)
	case KeyCanopyDensity:
		return mul(&t.canopy.DensityM2PerKm2)
	case KeyColdStart:
		return mul(&t.traffic.ColdStartFraction)
	}
	parts := strings.Split(key, ".")
	switch {
	case parts[0] == "emission" && (len(parts) == 2 || len(parts) == 3):
		m, ok := t.emission[Pollutant(parts[1])]
		if !ok {
			return &LookupError{Table: "scalable factor", Key: key}
		}
		if len(parts) == 2 {
			for _, c := range t.categories {
				v := m[c]
				if err := mul(&v); err != nil {
					return err
				}
				m[c] = v
			}
			return nil
		}
		v, ok := m[VehicleCategory(parts[2])]
		if !ok {
			return &LookupError{Table: "scalable factor", Key: key}
		}
		if err := mul(&v); err != nil {
			return err
		}
		m[VehicleCategory(parts[2])] = v
		return nil
	case parts[0] == "deposition" && len(parts) == 3:
		d, ok := t.dep[Pollutant(parts[1])]
		if !ok {
			return &LookupError{Table: "scalable factor", Key: key}
		}
		var err error
		switch parts[2] {
		case depBoundary:
			err = mul(&d.BoundaryCoefficient)
		case depLeaf:
			err = mul(&d.LeafConductanceMS)
		case depGround:
			err = mul(&d.GroundConductanceMS)
		case depRoughness:
			err = mul(&d.RoughnessLengthM)
		default:
			return &LookupError{Table: "scalable factor", Key: key}
		}
		if err != nil {
			return err
		}
		t.dep[Pollutant(parts[1])] = d
		return nil
	}
	return &LookupError{Table: "scalable factor", Key: key}
}

// clone returns a deep copy of t.
func (t *FactorTable) clone() *FactorTable {
	o := *t
	o.emission = make(map[Pollutant]map[VehicleCategory]float64, len(t.emission))
	for p, m := range t.emission {
		o.emission[p] = make(map[VehicleCategory]float64, len(m))
		for c, v := range m {
			o.emission[p][c] = v
		}
	}
	o.dep = make(map[Pollutant]DepositionCoefficients, len(t.dep))
	for p, d := range t.dep {
		o.dep[p] = d
	}
	// The remaining reference fields are never written after
	// construction, so they can be shared.
	return &o
}
