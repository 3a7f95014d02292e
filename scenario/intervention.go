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

package scenario

import (
	"fmt"
	"math"

	"github.com/spatialmodel/netimpact"
)

// An Intervention is a hypothetical policy applied to a BaseState.
// Interventions are pure: Apply never modifies its arguments.
type Intervention interface {
	// Kind returns the name of the intervention type.
	Kind() string

	// Check returns every violation of the intervention bounds for state
	// s. Field names are reported under the path prefix.
	Check(prefix string, s *netimpact.BaseState, f *netimpact.FactorTable) netimpact.Violations

	// Apply returns the perturbed state and factor scaling that represent
	// the intervention. s must have passed Check.
	Apply(s *netimpact.BaseState, f *netimpact.FactorTable) (*Perturbation, error)
}

// Perturbation is the result of applying an Intervention.
type Perturbation struct {
	// State is the perturbed state.
	State *netimpact.BaseState

	// Scales are multipliers for the factor table, keyed as in
	// netimpact.FactorTable.Scaled.
	Scales map[string]float64

	Projections []Projection
}

// Projection reports the time horizon an intervention was evaluated at
// and the projected quantity that depends on it.
type Projection struct {
	Intervention string  `json:"intervention"`
	Year         float64 `json:"year"`
	Quantity     string  `json:"quantity"`
	Value        float64 `json:"value"`
}

// scale multiplies the scale of key by x.
func (p *Perturbation) scale(key string, x float64) {
	if x == 1 {
		return
	}
	if v, ok := p.Scales[key]; ok {
		p.Scales[key] = v * x
	} else {
		p.Scales[key] = x
	}
}

// field returns the path of field name under prefix.
func field(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func percent(v *netimpact.Violations, field string, x float64) {
	v.Range(field, x, 0, 100)
}

func projectionYear(v *netimpact.Violations, field string, y float64) {
	if math.IsNaN(y) || math.IsInf(y, 0) || y < 0 {
		v.Addf(field, "must be a finite value >= 0 but is %g", y)
	}
}

// TrafficReduction lowers congestion by Percent percent.
type TrafficReduction struct {
	Percent float64 `json:"percent" toml:"percent"`
}

// Kind implements Intervention.
func (TrafficReduction) Kind() string { return "traffic_reduction" }

// Check implements Intervention.
func (t TrafficReduction) Check(prefix string, _ *netimpact.BaseState, _ *netimpact.FactorTable) netimpact.Violations {
	var v netimpact.Violations
	percent(&v, field(prefix, "percent"), t.Percent)
	return v
}

// Apply scales the traffic index by (1 - Percent/100). Average speed
// rises in inverse proportion to the remaining traffic, capped at the
// maximum speed; it is never decreased.
func (t TrafficReduction) Apply(s *netimpact.BaseState, f *netimpact.FactorTable) (*Perturbation, error) {
	o := s.Clone()
	frac := t.Percent / 100
	o.TrafficIndex = s.TrafficIndex * (1 - frac)

	maxSpeed := f.Traffic().MaxSpeedKph
	var speed float64
	if frac >= 1 {
		speed = maxSpeed
	} else {
		speed = math.Min(maxSpeed, s.AvgSpeedKph/(1-frac))
	}
	o.AvgSpeedKph = math.Max(s.AvgSpeedKph, speed)
	return &Perturbation{State: o, Scales: map[string]float64{}}, nil
}

// Afforestation plants AreaKm2 of new forest on undeveloped land.
type Afforestation struct {
	AreaKm2 float64 `json:"area_km2" toml:"area_km2"`

	// ProjectionYear is the number of years after planting at which the
	// new canopy is evaluated. Zero means the canopy maturity horizon.
	ProjectionYear float64 `json:"projection_year" toml:"projection_year"`
}

// Kind implements Intervention.
func (Afforestation) Kind() string { return "afforestation" }

// Check implements Intervention.
func (a Afforestation) Check(prefix string, s *netimpact.BaseState, _ *netimpact.FactorTable) netimpact.Violations {
	var v netimpact.Violations
	v.NonNegative(field(prefix, "area_km2"), a.AreaKm2)
	if a.AreaKm2 > s.Unit.UndevelopedAreaKm2 {
		v.Addf(field(prefix, "area_km2"), "%g km² exceeds the %g km² of undeveloped land", a.AreaKm2, s.Unit.UndevelopedAreaKm2)
	}
	projectionYear(&v, field(prefix, "projection_year"), a.ProjectionYear)
	return v
}

// year returns the projection year, resolving the default.
func (a Afforestation) year(p netimpact.PolicyCoefficients) float64 {
	if a.ProjectionYear == 0 {
		return float64(p.MaturityYears)
	}
	return a.ProjectionYear
}

// CanopyNDVI returns the NDVI of new canopy planted among vegetation of
// NDVI ndvi, after growing for the projection year.
func (a Afforestation) CanopyNDVI(ndvi float64, p netimpact.PolicyCoefficients) float64 {
	g := math.Min(1, a.year(p)/float64(p.MaturityYears))
	return ndvi + (p.MatureNDVI-ndvi)*g
}

// Apply adds the new forest area, blends the NDVI of the new canopy into
// the existing NDVI by area, and removes the planted area from the
// undeveloped land.
func (a Afforestation) Apply(s *netimpact.BaseState, f *netimpact.FactorTable) (*Perturbation, error) {
	pc := f.Policy()
	o := s.Clone()
	n := a.CanopyNDVI(s.Vegetation.NDVI, pc)
	if a.AreaKm2 > 0 {
		area := s.Vegetation.ForestAreaKm2
		o.Vegetation.ForestAreaKm2 = area + a.AreaKm2
		o.Vegetation.NDVI = (area*s.Vegetation.NDVI + a.AreaKm2*n) / (area + a.AreaKm2)
		o.Unit.UndevelopedAreaKm2 = math.Max(0, s.Unit.UndevelopedAreaKm2-a.AreaKm2)
	}
	return &Perturbation{
		State:  o,
		Scales: map[string]float64{},
		Projections: []Projection{{
			Intervention: a.Kind(),
			Year:         a.year(pc),
			Quantity:     "new_canopy_ndvi",
			Value:        n,
		}},
	}, nil
}

// FleetModernization replaces Percent percent of the fleet with vehicles
// meeting a newer emission standard as the existing vehicles reach the end
// of their lives.
type FleetModernization struct {
	Percent float64 `json:"percent" toml:"percent"`

	// Reductions are the fractional emission factor reductions of an
	// upgraded vehicle by pollutant. Nil uses the factor table defaults.
	Reductions map[netimpact.Pollutant]float64 `json:"reductions,omitempty" toml:"reductions"`

	// Categories restricts the upgrade to some vehicle categories. Empty
	// means every category.
	Categories []netimpact.VehicleCategory `json:"categories,omitempty" toml:"categories"`

	// ProjectionYear is the number of years after the policy starts at
	// which the fleet is evaluated. Zero means the maximum vehicle
	// lifespan, by which the whole fleet has turned over.
	ProjectionYear float64 `json:"projection_year" toml:"projection_year"`
}

// Kind implements Intervention.
func (FleetModernization) Kind() string { return "fleet_modernization" }

// Check implements Intervention.
func (m FleetModernization) Check(prefix string, _ *netimpact.BaseState, f *netimpact.FactorTable) netimpact.Violations {
	var v netimpact.Violations
	percent(&v, field(prefix, "percent"), m.Percent)
	for p, r := range m.Reductions {
		name := field(prefix, fmt.Sprintf("reductions[%s]", p))
		switch p {
		case netimpact.CO2, netimpact.PM25, netimpact.NOx:
			v.Range(name, r, 0, 1)
		default:
			v.Addf(name, "is not a recognized pollutant")
		}
	}
	for i, c := range m.Categories {
		if _, err := f.EmissionFactor(netimpact.CO2, c); err != nil {
			v.Addf(field(prefix, fmt.Sprintf("categories[%d]", i)), "vehicle category %q has no emission factors", c)
		}
	}
	projectionYear(&v, field(prefix, "projection_year"), m.ProjectionYear)
	return v
}

func (m FleetModernization) year(p netimpact.PolicyCoefficients) float64 {
	if m.ProjectionYear == 0 {
		return p.MaxLifespanYears
	}
	return m.ProjectionYear
}

// Turnover returns the expected fraction of vehicles replaced after years
// when vehicle lifespans are uniformly distributed on [min, max] and a
// vehicle of lifespan L has been replaced by a fraction min(1, years/L) at
// a constant replacement rate.
func Turnover(years, min, max float64) float64 {
	switch {
	case years <= 0:
		return 0
	case years >= max:
		return 1
	case max == min:
		return years / min
	case years <= min:
		return years * math.Log(max/min) / (max - min)
	}
	return ((years - min) + years*math.Log(max/years)) / (max - min)
}

// reduction returns the emission factor reduction for p.
func (m FleetModernization) reduction(p netimpact.Pollutant, f *netimpact.FactorTable) float64 {
	if m.Reductions != nil {
		return m.Reductions[p]
	}
	return f.ModernizationReduction(p)
}

// Apply scales the emission factors of the upgraded categories by
// 1 - Percent/100 × turnover × reduction. The state is unchanged.
func (m FleetModernization) Apply(s *netimpact.BaseState, f *netimpact.FactorTable) (*Perturbation, error) {
	pc := f.Policy()
	y := m.year(pc)
	turnover := Turnover(y, pc.MinLifespanYears, pc.MaxLifespanYears)
	p := &Perturbation{
		State:  s.Clone(),
		Scales: map[string]float64{},
		Projections: []Projection{{
			Intervention: m.Kind(),
			Year:         y,
			Quantity:     "fleet_turnover",
			Value:        turnover,
		}},
	}
	for _, pol := range netimpact.Pollutants {
		x := 1 - m.Percent/100*turnover*m.reduction(pol, f)
		if len(m.Categories) == 0 {
			p.scale(netimpact.EmissionKey(pol, ""), x)
			continue
		}
		for _, c := range m.Categories {
			p.scale(netimpact.EmissionKey(pol, c), x)
		}
	}
	return p, nil
}

// Combined applies several interventions in order. Each intervention sees
// the state produced by the previous ones and factor scalings compose
// multiplicatively.
type Combined []Intervention

// Kind implements Intervention.
func (Combined) Kind() string { return "combined" }

// Check implements Intervention. Afforestation areas are also checked in
// total against the undeveloped land.
func (c Combined) Check(prefix string, s *netimpact.BaseState, f *netimpact.FactorTable) netimpact.Violations {
	var v netimpact.Violations
	for i, iv := range c {
		if iv == nil {
			v.Addf(fmt.Sprintf("%s[%d]", prefix, i), "is empty")
			continue
		}
		v.Append(iv.Check(fmt.Sprintf("%s[%d]", prefix, i), s, f)...)
	}
	// A single afforestation has already been checked on its own.
	if a, n := afforestedArea(c); n > 1 && a > s.Unit.UndevelopedAreaKm2 {
		v.Addf(field(prefix, "area_km2"), "total afforestation of %g km² exceeds the %g km² of undeveloped land", a, s.Unit.UndevelopedAreaKm2)
	}
	return v
}

// afforestedArea returns the total area and number of the afforestations
// in iv.
func afforestedArea(iv Intervention) (float64, int) {
	switch t := iv.(type) {
	case Afforestation:
		return t.AreaKm2, 1
	case *Afforestation:
		return t.AreaKm2, 1
	case Combined:
		var a float64
		var n int
		for _, x := range t {
			ax, nx := afforestedArea(x)
			a += ax
			n += nx
		}
		return a, n
	}
	return 0, 0
}

// Apply implements Intervention.
func (c Combined) Apply(s *netimpact.BaseState, f *netimpact.FactorTable) (*Perturbation, error) {
	o := &Perturbation{State: s.Clone(), Scales: map[string]float64{}}
	for i, iv := range c {
		p, err := iv.Apply(o.State, f)
		if err != nil {
			return nil, fmt.Errorf("scenario: applying intervention %d (%s): %w", i, iv.Kind(), err)
		}
		o.State = p.State
		for k, x := range p.Scales {
			o.scale(k, x)
		}
		o.Projections = append(o.Projections, p.Projections...)
	}
	return o, nil
}

// Policy is the combined policy request: a traffic reduction, an
// afforestation and an upgrade of the fleet to a newer emission standard,
// each of which may be zero.
type Policy struct {
	TrafficReductionPct float64 `json:"traffic_reduction_pct" toml:"traffic_reduction_pct"`
	AfforestationKm2    float64 `json:"afforestation_increase_km2" toml:"afforestation_increase_km2"`
	FleetUpgradePct     float64 `json:"bs_upgrade_pct" toml:"bs_upgrade_pct"`

	// ProjectionYear applies to the afforestation and fleet upgrade.
	ProjectionYear float64 `json:"projection_year" toml:"projection_year"`
}

// Intervention returns the interventions making up p.
func (p Policy) Intervention() Combined {
	return Combined{
		TrafficReduction{Percent: p.TrafficReductionPct},
		Afforestation{AreaKm2: p.AfforestationKm2, ProjectionYear: p.ProjectionYear},
		FleetModernization{Percent: p.FleetUpgradePct, ProjectionYear: p.ProjectionYear},
	}
}
