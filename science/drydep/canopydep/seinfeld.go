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

package canopydep

import (
	"math"

	"github.com/ctessum/atmos/seinfeld"
	"github.com/ctessum/atmos/wesely1989"
	"github.com/spatialmodel/netimpact"
)

const (
	dParticle = 0.3e-6 // [m], Seinfeld & Pandis fig 8.11
	ρParticle = 1830.  // [kg/m3] Jacobson (2005) Ex. 13.5
	θSurface  = 0.     // surface slope [rad]; urban forest is assumed flat.

	rDryAir = 287.058 // specific gas constant of dry air [J kg-1 K-1]
	kelvin  = 273.15
)

// Detailed calculates deposition velocities with the particle and gas
// dry deposition schemes of Seinfeld and Pandis (2006) in a neutral surface
// layer, instead of the logarithmic profile and boundary coefficients of
// the factor table. Only the reference height and roughness length of the
// factor table enter the transport to the canopy.
//
// The NOx surface resistance is the Wesely (1989) resistance of deciduous
// forest, with its leaf conductance scaled linearly by the leaf area index
// relative to ReferenceLAI and the ground conductance of the factor table
// in parallel. The particle scheme has no surface resistance, so PM2.5
// uses the calibrated leaf and ground conductances of the factor table.
// Both velocities are scaled by WindScale as in the resistance scheme.
type Detailed struct {
	// IrradianceWm2 is the mean solar irradiation over the period
	// [W m-2].
	IrradianceWm2 float64

	// PressurePa is the surface air pressure [Pa].
	PressurePa float64

	// WetHumidityPct is the relative humidity at and above which the
	// canopy is treated as wet by dew [%].
	WetHumidityPct float64

	// ReferenceLAI is the leaf area index of the forest the Wesely
	// resistances describe.
	ReferenceLAI float64
}

// DefaultDetailed holds typical daily mean conditions for Indian cities.
var DefaultDetailed = Detailed{
	IrradianceWm2:  220,
	PressurePa:     101325,
	WetHumidityPct: 95,
	ReferenceLAI:   5,
}

// seasons returns the particle and gas seasonal categories for
// temperature tempC [°C].
func seasons(tempC float64) (seinfeld.SeasonalCategory, wesely1989.SeasonCategory) {
	switch {
	case tempC > 20:
		return seinfeld.Midsummer, wesely1989.Midsummer
	case tempC > 10:
		return seinfeld.Autumn, wesely1989.Autumn
	case tempC > 0:
		return seinfeld.LateAutumn, wesely1989.LateAutumn
	default:
		return seinfeld.Winter, wesely1989.Winter
	}
}

// Velocity returns the deposition velocity [m/s] of pollutant p to a
// canopy with leaf area index lai in meteorology m.
func (det Detailed) Velocity(p netimpact.Pollutant, m netimpact.MeteorologicalState, lai float64, c netimpact.CanopyCoefficients, d netimpact.DepositionCoefficients) (float64, error) {
	u := math.Max(m.WindSpeedMS, c.MinWindSpeedMS)
	z, zo := d.ReferenceHeightM, d.RoughnessLengthM
	ustar := kappa * u / math.Log(z/zo) // friction velocity
	if !(ustar > 0) || math.IsInf(ustar, 0) {
		return 0, &netimpact.NumericalError{Op: "friction velocity", Value: ustar}
	}
	const L = 0. // Monin-Obukhov length; neutral
	T := m.TemperatureC + kelvin
	ρ := det.PressurePa / (rDryAir * T) // air density [kg/m3]
	iSeasonP, iSeasonG := seasons(m.TemperatureC)
	rain := m.Season == netimpact.Monsoon
	dew := m.RelativeHumidityPct >= det.WetHumidityPct

	// rt is the transport resistance Ra + Rb and rc the surface
	// resistance.
	var rt, rc float64
	switch p {
	case netimpact.PM25:
		rt = 1 / seinfeld.DryDepParticle(z, zo, ustar, L, dParticle, T, det.PressurePa,
			ρParticle, ρ, iSeasonP, seinfeld.Deciduous)
		var err error
		if rc, err = canopyResistance(lai, m.TemperatureC, d); err != nil {
			return 0, err
		}
	case netimpact.NOx:
		// DryDepGas passes the temperature to SurfaceResistance in
		// kelvin, so its Ra + Rb is recovered with the same argument.
		rk := wesely1989.SurfaceResistance(wesely1989.No2Data, det.IrradianceWm2, T, θSurface,
			iSeasonG, wesely1989.Deciduous, rain, dew, false, false)
		rt = 1/seinfeld.DryDepGas(z, zo, ustar, L, T, ρ, det.IrradianceWm2, θSurface,
			wesely1989.No2Data, iSeasonG, wesely1989.Deciduous, rain, dew, false, false) - rk
		rw := wesely1989.SurfaceResistance(wesely1989.No2Data, det.IrradianceWm2, m.TemperatureC, θSurface,
			iSeasonG, wesely1989.Deciduous, rain, dew, false, false)
		if err := resistance("Rc (Wesely)", rw); err != nil {
			return 0, err
		}
		rc = 1 / (lai/det.ReferenceLAI/rw + d.GroundConductanceMS)
		if err := resistance("Rc", rc); err != nil {
			return 0, err
		}
	default:
		return 0, &netimpact.LookupError{Table: "deposition", Key: string(p)}
	}
	if err := resistance("Ra+Rb", rt); err != nil {
		return 0, err
	}
	vd := WindScale(m.WindSpeedMS, c) / (rt + rc)
	if !(vd > 0) || math.IsInf(vd, 0) {
		return 0, &netimpact.NumericalError{Op: "deposition velocity of " + string(p), Value: vd,
			Msg: "velocity must be positive and finite"}
	}
	return vd, nil
}

// Deposition returns a function that calculates removal of pollutants by
// dry deposition to the canopy of a BaseState using the detailed scheme.
func (det Detailed) Deposition() netimpact.DepositionFunc {
	return func(s *netimpact.BaseState, f *netimpact.FactorTable) (netimpact.DepositionMass, error) {
		dm := netimpact.DepositionMass{PeriodHours: s.DurationHours}
		c := f.Canopy()
		area := s.CanopyAreaM2(c.DensityM2PerKm2)
		for _, p := range []netimpact.Pollutant{netimpact.PM25, netimpact.NOx} {
			d, err := f.Deposition(p)
			if err != nil {
				return netimpact.DepositionMass{}, err
			}
			vd, err := det.Velocity(p, s.Meteorology, s.Vegetation.LAI, c, d)
			if err != nil {
				return netimpact.DepositionMass{}, err
			}
			m, err := removed(p, area, vd, s.Ambient.Concentration(p), s.DurationHours)
			if err != nil {
				return netimpact.DepositionMass{}, err
			}
			if p == netimpact.PM25 {
				dm.PM25 = m
			} else {
				dm.NOx = m
			}
		}
		return dm, nil
	}
}
