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

// Package canopydep calculates removal of PM2.5 and NOx by dry deposition
// to urban forest canopy using a series resistance network:
// Vd = 1 / (Ra + Rb + Rc).
//
// The aerodynamic resistance follows the neutral surface-layer profile of
// Seinfeld and Pandis (2006) equation 19.13, and the canopy resistance
// uses the stomatal temperature response of Wesely (1989).
package canopydep

import (
	"math"

	"github.com/spatialmodel/netimpact"
)

const (
	kappa = 0.4 // von Kármán constant

	// micrograms to kilograms
	ugToKg = 1.e-9

	secondsPerHour = 3600.
)

// Resistances are the components of the deposition resistance network
// [s/m].
type Resistances struct {
	Ra, Rb, Rc float64
}

// Total returns Ra + Rb + Rc.
func (r Resistances) Total() float64 { return r.Ra + r.Rb + r.Rc }

// StomatalFactor returns the temperature response of stomatal conductance
// for leaf temperature tempC [°C]. It is zero at and outside 0 and 40 °C
// and 1 at 20 °C.
func StomatalFactor(tempC float64) float64 {
	if tempC <= 0 || tempC >= 40 {
		return 0
	}
	return tempC * (40 - tempC) / 400
}

// WindScale returns the multiplier applied to the deposition velocity at
// wind speed u [m/s].
func WindScale(u float64, c netimpact.CanopyCoefficients) float64 {
	switch {
	case u <= c.CalmWindMS:
		return c.CalmScale
	case u >= c.WindyWindMS:
		return c.WindyScale
	}
	f := (u - c.CalmWindMS) / (c.WindyWindMS - c.CalmWindMS)
	return c.CalmScale + f*(c.WindyScale-c.CalmScale)
}

// resistance returns a *netimpact.NumericalError if r is not a positive
// finite value.
func resistance(name string, r float64) error {
	if !(r > 0) || math.IsInf(r, 0) {
		return &netimpact.NumericalError{Op: "deposition resistance " + name, Value: r,
			Msg: "resistance must be positive and finite"}
	}
	return nil
}

// CalcResistances returns the deposition resistances for wind speed u
// [m/s], leaf area index lai and temperature tempC [°C].
// Resistances that are not positive and finite are a
// *netimpact.NumericalError; they are never clamped.
func CalcResistances(u, lai, tempC float64, c netimpact.CanopyCoefficients, d netimpact.DepositionCoefficients) (Resistances, error) {
	ueff := math.Max(u, c.MinWindSpeedMS)
	lnz := math.Log(d.ReferenceHeightM / d.RoughnessLengthM)
	var r Resistances
	r.Ra = lnz * lnz / (kappa * kappa * ueff)
	if err := resistance("Ra", r.Ra); err != nil {
		return r, err
	}
	ustar := kappa * ueff / lnz
	r.Rb = d.BoundaryCoefficient / ustar
	if err := resistance("Rb", r.Rb); err != nil {
		return r, err
	}
	rc, err := canopyResistance(lai, tempC, d)
	r.Rc = rc
	return r, err
}

// canopyResistance returns the surface resistance of leaves with the
// calibrated leaf conductance in parallel with the ground.
func canopyResistance(lai, tempC float64, d netimpact.DepositionCoefficients) (float64, error) {
	rc := 1 / (lai*d.LeafConductanceMS*StomatalFactor(tempC) + d.GroundConductanceMS)
	if err := resistance("Rc", rc); err != nil {
		return 0, err
	}
	return rc, nil
}

// Velocity returns the deposition velocity [m/s] for wind speed u [m/s],
// leaf area index lai and temperature tempC [°C].
func Velocity(u, lai, tempC float64, c netimpact.CanopyCoefficients, d netimpact.DepositionCoefficients) (float64, error) {
	r, err := CalcResistances(u, lai, tempC, c, d)
	if err != nil {
		return 0, err
	}
	vd := WindScale(u, c) / r.Total()
	if !(vd >= 0) || math.IsInf(vd, 0) {
		return 0, &netimpact.NumericalError{Op: "deposition velocity", Value: vd}
	}
	return vd, nil
}

// Compute returns the mass of PM2.5 and NOx [kg] removed over
// durationHours by a canopy of area canopyAreaM2 [m²] exposed to the
// ambient concentrations a.
func Compute(canopyAreaM2, windMS, lai, tempC float64, a netimpact.AmbientState, durationHours float64, f *netimpact.FactorTable) (netimpact.DepositionMass, error) {
	dm := netimpact.DepositionMass{PeriodHours: durationHours}
	c := f.Canopy()
	for _, p := range []netimpact.Pollutant{netimpact.PM25, netimpact.NOx} {
		d, err := f.Deposition(p)
		if err != nil {
			return netimpact.DepositionMass{}, err
		}
		vd, err := Velocity(windMS, lai, tempC, c, d)
		if err != nil {
			return netimpact.DepositionMass{}, err
		}
		m, err := removed(p, canopyAreaM2, vd, a.Concentration(p), durationHours)
		if err != nil {
			return netimpact.DepositionMass{}, err
		}
		switch p {
		case netimpact.PM25:
			dm.PM25 = m
		case netimpact.NOx:
			dm.NOx = m
		}
	}
	return dm, nil
}

// removed returns the mass [kg] of pollutant p at concentration conc
// [μg/m³] deposited at velocity vd [m/s] to canopyAreaM2 [m²] over
// durationHours.
func removed(p netimpact.Pollutant, canopyAreaM2, vd, conc, durationHours float64) (float64, error) {
	m := canopyAreaM2 * vd * conc * ugToKg * durationHours * secondsPerHour
	if !(m >= 0) || math.IsInf(m, 0) {
		return 0, &netimpact.NumericalError{Op: "deposition of " + string(p), Value: m,
			Msg: "removed mass must be finite and non-negative"}
	}
	return m, nil
}

// Deposition returns a function that calculates removal of pollutants by
// dry deposition to the canopy of a BaseState.
func Deposition() netimpact.DepositionFunc {
	return func(s *netimpact.BaseState, f *netimpact.FactorTable) (netimpact.DepositionMass, error) {
		return Compute(s.CanopyAreaM2(f.Canopy().DensityM2PerKm2), s.Meteorology.WindSpeedMS,
			s.Vegetation.LAI, s.Meteorology.TemperatureC, s.Ambient, s.DurationHours, f)
	}
}
