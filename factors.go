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
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed data/factors.toml
var defaultFactors []byte

// SeasonFactors holds the seasonal sequestration multipliers.
type SeasonFactors struct {
	Monsoon float64
	Winter  float64
	Summer  float64
	Other   float64
}

// For returns the multiplier for season s.
func (f SeasonFactors) For(s Season) (float64, error) {
	switch s {
	case Monsoon:
		return f.Monsoon, nil
	case Winter:
		return f.Winter, nil
	case Summer:
		return f.Summer, nil
	case OtherSeason:
		return f.Other, nil
	}
	return 0, &LookupError{Table: "season factor", Key: string(s)}
}

// SequestrationCoefficients parameterize the forest sequestration model.
type SequestrationCoefficients struct {
	// BaseRateKgPerKm2Day is the CO2 uptake of healthy forest
	// under optimal conditions [kg km-2 day-1].
	BaseRateKgPerKm2Day float64

	// NDVIHealthy is the NDVI at which the vegetation factor is 1.
	NDVIHealthy float64
	// NDVICap is the maximum vegetation factor.
	NDVICap float64

	TempOptimalMinC float64
	TempOptimalMaxC float64
	// TempPenaltyPerC is the loss of the temperature factor per degree
	// outside the optimal range.
	TempPenaltyPerC float64

	HumidityOptimalMinPct float64
	HumidityOptimalMaxPct float64
	// HumidityPenaltyPerPct is the loss of the humidity factor per
	// percentage point outside the optimal range.
	HumidityPenaltyPerPct float64

	SeasonFactors SeasonFactors
}

// CanopyCoefficients are the deposition parameters shared by all pollutants.
type CanopyCoefficients struct {
	// DensityM2PerKm2 is the canopy surface per unit forest area
	// [m² km-2].
	DensityM2PerKm2 float64

	// MinWindSpeedMS is the lowest wind speed used in the aerodynamic
	// resistance [m/s].
	MinWindSpeedMS float64

	// Wind scaling of the deposition velocity interpolates linearly from
	// CalmScale at CalmWindMS to WindyScale at WindyWindMS.
	CalmWindMS  float64
	WindyWindMS float64
	CalmScale   float64
	WindyScale  float64
}

// DepositionCoefficients parameterize the resistance network of one
// pollutant.
type DepositionCoefficients struct {
	// ReferenceHeightM is the height of the surface layer [m].
	ReferenceHeightM float64
	// RoughnessLengthM is the canopy roughness length [m].
	RoughnessLengthM float64
	// BoundaryCoefficient is the dimensionless numerator of the
	// quasi-laminar resistance Rb = B / u*.
	BoundaryCoefficient float64
	// LeafConductanceMS is the canopy conductance per unit LAI at
	// optimal temperature [m/s].
	LeafConductanceMS float64
	// GroundConductanceMS is the conductance of the ground and
	// cuticular pathways [m/s].
	GroundConductanceMS float64
}

// TrafficCoefficients parameterize the vehicular emission model.
type TrafficCoefficients struct {
	// ColdStartFraction is the fractional excess emission from cold
	// starts.
	ColdStartFraction float64
	// GradientPerPct is the fractional change in emissions per percent
	// of road grade.
	GradientPerPct float64
	// GradientBound limits the gradient adjustment to 1 ± GradientBound.
	GradientBound float64
	// MaxSpeedKph caps traffic speed after a traffic reduction [km/h].
	MaxSpeedKph float64
	// CongestionIndex and CongestionMultiplier are the knots of the
	// piecewise-linear congestion curve.
	CongestionIndex      []float64
	CongestionMultiplier []float64
}

// PolicyCoefficients parameterize the intervention transforms.
type PolicyCoefficients struct {
	// MatureNDVI is the NDVI of a mature canopy planted by afforestation.
	MatureNDVI float64
	// MaturityYears is the time for new canopy to reach MatureNDVI.
	MaturityYears int
	// ModernizationReduction is the fractional emission factor reduction
	// of an upgraded vehicle, by pollutant.
	ModernizationReduction map[string]float64
	// Vehicle lifespans are uniformly distributed in
	// [MinLifespanYears, MaxLifespanYears].
	MinLifespanYears float64
	MaxLifespanYears float64
}

// FactorSource is the on-disk layout of a FactorTable.
type FactorSource struct {
	Version string

	// EmissionFactors are in g/km, keyed by pollutant then vehicle
	// category.
	EmissionFactors map[string]map[string]float64

	Sequestration SequestrationCoefficients
	Canopy        CanopyCoefficients
	Deposition    map[string]DepositionCoefficients
	Traffic       TrafficCoefficients
	Policy        PolicyCoefficients
}

// FactorTable is the immutable set of physical constants used by all
// models. It is safe for concurrent use.
type FactorTable struct {
	version    string
	emission   map[Pollutant]map[VehicleCategory]float64
	categories []VehicleCategory
	seq        SequestrationCoefficients
	canopy     CanopyCoefficients
	dep        map[Pollutant]DepositionCoefficients
	traffic    TrafficCoefficients
	policy     PolicyCoefficients
	reduction  map[Pollutant]float64
}

// DefaultFactorTable returns the factor table compiled into the binary.
func DefaultFactorTable() (*FactorTable, error) {
	return LoadFactorTable(bytes.NewReader(defaultFactors))
}

// LoadFactorTableFile reads a FactorTable from a TOML file.
func LoadFactorTableFile(path string) (*FactorTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigurationError{Source: path, Err: err}
	}
	defer f.Close()
	t, err := LoadFactorTable(f)
	if err != nil {
		if ce, ok := err.(*ConfigurationError); ok {
			ce.Source = path
		}
		return nil, err
	}
	return t, nil
}

// LoadFactorTable decodes and validates a FactorTable in TOML format.
// Any error is a *ConfigurationError.
func LoadFactorTable(r io.Reader) (*FactorTable, error) {
	var src FactorSource
	md, err := toml.DecodeReader(r, &src)
	if err != nil {
		return nil, &ConfigurationError{Source: "factor table", Err: err}
	}
	if u := md.Undecoded(); len(u) > 0 {
		keys := make([]string, len(u))
		for i, k := range u {
			keys[i] = k.String()
		}
		return nil, &ConfigurationError{Source: "factor table",
			Err: fmt.Errorf("unrecognized keys: %s", strings.Join(keys, ", "))}
	}
	return NewFactorTable(src)
}

// NewFactorTable validates src and returns the corresponding FactorTable.
// src is copied, so later changes to it do not affect the table.
func NewFactorTable(src FactorSource) (*FactorTable, error) {
	if err := src.check(); err != nil {
		return nil, &ConfigurationError{Source: "factor table " + src.Version, Err: err}
	}
	t := &FactorTable{
		version:  src.Version,
		emission: make(map[Pollutant]map[VehicleCategory]float64),
		seq:      src.Sequestration,
		canopy:   src.Canopy,
		dep:      make(map[Pollutant]DepositionCoefficients),
		traffic:  src.Traffic,
		policy:   src.Policy,
	}
	t.traffic.CongestionIndex = append([]float64(nil), src.Traffic.CongestionIndex...)
	t.traffic.CongestionMultiplier = append([]float64(nil), src.Traffic.CongestionMultiplier...)
	for p, m := range src.EmissionFactors {
		t.emission[Pollutant(p)] = make(map[VehicleCategory]float64)
		for c, v := range m {
			t.emission[Pollutant(p)][VehicleCategory(c)] = v
		}
	}
	for c := range t.emission[CO2] {
		t.categories = append(t.categories, c)
	}
	sort.Slice(t.categories, func(i, j int) bool { return t.categories[i] < t.categories[j] })
	for p, d := range src.Deposition {
		t.dep[Pollutant(p)] = d
	}
	t.reduction = make(map[Pollutant]float64)
	t.policy.ModernizationReduction = make(map[string]float64)
	for p, r := range src.Policy.ModernizationReduction {
		t.reduction[Pollutant(p)] = r
		t.policy.ModernizationReduction[p] = r
	}
	return t, nil
}

// check returns the first inconsistency in src.
func (src *FactorSource) check() error {
	if src.Version == "" {
		return fmt.Errorf("missing Version")
	}
	badValue := func(name string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s=%g but should be a finite value >= 0", name, v)
		}
		return nil
	}

	var cats map[string]float64
	for _, p := range Pollutants {
		m, ok := src.EmissionFactors[string(p)]
		if !ok || len(m) == 0 {
			return fmt.Errorf("missing EmissionFactors.%s", p)
		}
		if cats == nil {
			cats = m
		}
		for c, v := range m {
			if err := badValue(fmt.Sprintf("EmissionFactors.%s.%s", p, c), v); err != nil {
				return err
			}
			if _, ok := cats[c]; !ok {
				return fmt.Errorf("EmissionFactors.%s.%s has no counterpart in EmissionFactors.%s", p, c, Pollutants[0])
			}
		}
		if len(m) != len(cats) {
			return fmt.Errorf("EmissionFactors.%s has %d vehicle categories but EmissionFactors.%s has %d", p, len(m), Pollutants[0], len(cats))
		}
	}
	for p := range src.EmissionFactors {
		switch Pollutant(p) {
		case CO2, PM25, NOx:
		default:
			return fmt.Errorf("EmissionFactors.%s is not a recognized pollutant", p)
		}
	}

	s := src.Sequestration
	for name, v := range map[string]float64{
		"Sequestration.BaseRateKgPerKm2Day":   s.BaseRateKgPerKm2Day,
		"Sequestration.NDVICap":               s.NDVICap,
		"Sequestration.TempPenaltyPerC":       s.TempPenaltyPerC,
		"Sequestration.HumidityPenaltyPerPct": s.HumidityPenaltyPerPct,
		"Sequestration.SeasonFactors.Monsoon": s.SeasonFactors.Monsoon,
		"Sequestration.SeasonFactors.Winter":  s.SeasonFactors.Winter,
		"Sequestration.SeasonFactors.Summer":  s.SeasonFactors.Summer,
		"Sequestration.SeasonFactors.Other":   s.SeasonFactors.Other,
	} {
		if err := badValue(name, v); err != nil {
			return err
		}
	}
	if !(s.NDVIHealthy > 0) {
		return fmt.Errorf("Sequestration.NDVIHealthy=%g but should be > 0", s.NDVIHealthy)
	}
	if s.TempOptimalMinC > s.TempOptimalMaxC {
		return fmt.Errorf("Sequestration.TempOptimalMinC > TempOptimalMaxC")
	}
	if s.HumidityOptimalMinPct > s.HumidityOptimalMaxPct {
		return fmt.Errorf("Sequestration.HumidityOptimalMinPct > HumidityOptimalMaxPct")
	}

	c := src.Canopy
	for name, v := range map[string]float64{
		"Canopy.DensityM2PerKm2": c.DensityM2PerKm2,
		"Canopy.CalmScale":       c.CalmScale,
		"Canopy.WindyScale":      c.WindyScale,
		"Canopy.CalmWindMS":      c.CalmWindMS,
	} {
		if err := badValue(name, v); err != nil {
			return err
		}
	}
	if !(c.MinWindSpeedMS > 0) {
		return fmt.Errorf("Canopy.MinWindSpeedMS=%g but should be > 0", c.MinWindSpeedMS)
	}
	if !(c.WindyWindMS > c.CalmWindMS) {
		return fmt.Errorf("Canopy.WindyWindMS=%g should be greater than Canopy.CalmWindMS=%g", c.WindyWindMS, c.CalmWindMS)
	}

	for _, p := range []Pollutant{PM25, NOx} {
		d, ok := src.Deposition[string(p)]
		if !ok {
			return fmt.Errorf("missing Deposition.%s", p)
		}
		if !(d.RoughnessLengthM > 0) || !(d.ReferenceHeightM > d.RoughnessLengthM) {
			return fmt.Errorf("Deposition.%s: need 0 < RoughnessLengthM < ReferenceHeightM", p)
		}
		if !(d.BoundaryCoefficient > 0) {
			return fmt.Errorf("Deposition.%s.BoundaryCoefficient=%g but should be > 0", p, d.BoundaryCoefficient)
		}
		if err := badValue(fmt.Sprintf("Deposition.%s.LeafConductanceMS", p), d.LeafConductanceMS); err != nil {
			return err
		}
		if err := badValue(fmt.Sprintf("Deposition.%s.GroundConductanceMS", p), d.GroundConductanceMS); err != nil {
			return err
		}
		if !(d.GroundConductanceMS > 0) {
			return fmt.Errorf("Deposition.%s.GroundConductanceMS must be > 0 so that bare ground has a finite canopy resistance", p)
		}
	}

	tr := src.Traffic
	for name, v := range map[string]float64{
		"Traffic.ColdStartFraction": tr.ColdStartFraction,
		"Traffic.GradientPerPct":    tr.GradientPerPct,
		"Traffic.GradientBound":     tr.GradientBound,
		"Traffic.MaxSpeedKph":       tr.MaxSpeedKph,
	} {
		if err := badValue(name, v); err != nil {
			return err
		}
	}
	if tr.GradientBound >= 1 {
		return fmt.Errorf("Traffic.GradientBound=%g but should be < 1", tr.GradientBound)
	}
	if err := checkCongestion(tr.CongestionIndex, tr.CongestionMultiplier); err != nil {
		return err
	}

	pc := src.Policy
	if pc.MatureNDVI < 0 || pc.MatureNDVI > 1 {
		return fmt.Errorf("Policy.MatureNDVI=%g but should be in [0, 1]", pc.MatureNDVI)
	}
	if pc.MaturityYears <= 0 {
		return fmt.Errorf("Policy.MaturityYears=%d but should be > 0", pc.MaturityYears)
	}
	if !(pc.MinLifespanYears > 0) || pc.MaxLifespanYears < pc.MinLifespanYears {
		return fmt.Errorf("Policy lifespans [%g, %g] are not a valid range", pc.MinLifespanYears, pc.MaxLifespanYears)
	}
	for p, r := range pc.ModernizationReduction {
		if _, ok := src.EmissionFactors[p]; !ok {
			return fmt.Errorf("Policy.ModernizationReduction.%s is not a recognized pollutant", p)
		}
		if !(r >= 0 && r <= 1) {
			return fmt.Errorf("Policy.ModernizationReduction.%s=%g but should be in [0, 1]", p, r)
		}
	}
	return nil
}

// checkCongestion makes sure the congestion curve spans the traffic index
// scale and never decreases.
func checkCongestion(idx, mult []float64) error {
	if len(idx) < 2 || len(idx) != len(mult) {
		return fmt.Errorf("Traffic.CongestionIndex and Traffic.CongestionMultiplier must have the same length >= 2")
	}
	if idx[0] != 0 || idx[len(idx)-1] != MaxTrafficIndex {
		return fmt.Errorf("Traffic.CongestionIndex must start at 0 and end at %g", MaxTrafficIndex)
	}
	if mult[0] != 1 || mult[len(mult)-1] != 2 {
		return fmt.Errorf("Traffic.CongestionMultiplier must start at 1 and end at 2")
	}
	for i := 1; i < len(idx); i++ {
		if !(idx[i] > idx[i-1]) {
			return fmt.Errorf("Traffic.CongestionIndex must be strictly increasing")
		}
		if !(mult[i] >= mult[i-1]) {
			return fmt.Errorf("Traffic.CongestionMultiplier must be non-decreasing")
		}
	}
	return nil
}

// Version returns the version label of the table source.
func (t *FactorTable) Version() string { return t.version }

// Categories returns the vehicle categories with emission factors.
func (t *FactorTable) Categories() []VehicleCategory {
	return append([]VehicleCategory(nil), t.categories...)
}

// EmissionFactor returns the emission factor of pollutant p for vehicle
// category c [g/km].
func (t *FactorTable) EmissionFactor(p Pollutant, c VehicleCategory) (float64, error) {
	m, ok := t.emission[p]
	if !ok {
		return 0, &LookupError{Table: "emission factor", Key: string(p)}
	}
	v, ok := m[c]
	if !ok {
		return 0, &LookupError{Table: "emission factor", Key: string(p) + "." + string(c)}
	}
	return v, nil
}

// Sequestration returns the sequestration coefficients.
func (t *FactorTable) Sequestration() SequestrationCoefficients { return t.seq }

// Canopy returns the shared deposition coefficients.
func (t *FactorTable) Canopy() CanopyCoefficients { return t.canopy }

// Deposition returns the resistance coefficients for pollutant p.
func (t *FactorTable) Deposition(p Pollutant) (DepositionCoefficients, error) {
	d, ok := t.dep[p]
	if !ok {
		return DepositionCoefficients{}, &LookupError{Table: "deposition", Key: string(p)}
	}
	return d, nil
}

// Traffic returns the traffic coefficients.
func (t *FactorTable) Traffic() TrafficCoefficients {
	o := t.traffic
	o.CongestionIndex = append([]float64(nil), t.traffic.CongestionIndex...)
	o.CongestionMultiplier = append([]float64(nil), t.traffic.CongestionMultiplier...)
	return o
}

// Congestion returns the congestion multiplier for traffic index x by
// linear interpolation between the curve knots. x is clamped to the index
// scale.
func (t *FactorTable) Congestion(x float64) float64 {
	idx, mult := t.traffic.CongestionIndex, t.traffic.CongestionMultiplier
	if !(x > idx[0]) {
		return mult[0]
	}
	if x >= idx[len(idx)-1] {
		return mult[len(mult)-1]
	}
	i := sort.SearchFloat64s(idx, x) // idx[i-1] < x <= idx[i]
	f := (x - idx[i-1]) / (idx[i] - idx[i-1])
	return mult[i-1] + f*(mult[i]-mult[i-1])
}

// Policy returns the intervention coefficients.
func (t *FactorTable) Policy() PolicyCoefficients {
	o := t.policy
	o.ModernizationReduction = make(map[string]float64, len(t.reduction))
	for p, r := range t.reduction {
		o.ModernizationReduction[string(p)] = r
	}
	return o
}

// ModernizationReduction returns the emission factor reduction of an
// upgraded vehicle for pollutant p. Pollutants absent from the table are
// not reduced.
func (t *FactorTable) ModernizationReduction(p Pollutant) float64 {
	return t.reduction[p]
}

// Source returns a deep copy of the data t was built from.
func (t *FactorTable) Source() FactorSource {
	src := FactorSource{
		Version:         t.version,
		EmissionFactors: make(map[string]map[string]float64),
		Sequestration:   t.seq,
		Canopy:          t.canopy,
		Deposition:      make(map[string]DepositionCoefficients),
		Traffic:         t.Traffic(),
		Policy:          t.Policy(),
	}
	for p, m := range t.emission {
		src.EmissionFactors[string(p)] = make(map[string]float64)
		for c, v := range m {
			src.EmissionFactors[string(p)][string(c)] = v
		}
	}
	for p, d := range t.dep {
		src.Deposition[string(p)] = d
	}
	return src
}
