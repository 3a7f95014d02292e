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

// Package forestseq calculates CO2 uptake by urban forest from its area,
// vegetation health and the prevailing weather.
package forestseq

import (
	"math"

	"github.com/spatialmodel/netimpact"
)

const hoursPerDay = 24.

// NDVIFactor returns the vegetation health multiplier for ndvi.
func NDVIFactor(ndvi float64, c netimpact.SequestrationCoefficients) float64 {
	return math.Min(c.NDVICap, ndvi/c.NDVIHealthy)
}

// window returns 1 inside [min, max], decreasing by penalty per unit
// outside it, floored at 0.
func window(x, min, max, penalty float64) float64 {
	var d float64
	switch {
	case x < min:
		d = min - x
	case x > max:
		d = x - max
	}
	return math.Max(0, 1-penalty*d)
}

// TemperatureFactor returns the temperature multiplier for tempC [°C].
func TemperatureFactor(tempC float64, c netimpact.SequestrationCoefficients) float64 {
	return window(tempC, c.TempOptimalMinC, c.TempOptimalMaxC, c.TempPenaltyPerC)
}

// HumidityFactor returns the humidity multiplier for rh [%].
func HumidityFactor(rh float64, c netimpact.SequestrationCoefficients) float64 {
	return window(rh, c.HumidityOptimalMinPct, c.HumidityOptimalMaxPct, c.HumidityPenaltyPerPct)
}

// Compute returns the daily CO2 uptake [kg/day] of the forest described by
// v under the weather m. The result is never negative.
func Compute(v netimpact.VegetationState, m netimpact.MeteorologicalState, c netimpact.SequestrationCoefficients) (netimpact.SequestrationMass, error) {
	fs, err := c.SeasonFactors.For(m.Season)
	if err != nil {
		return netimpact.SequestrationMass{}, err
	}
	co2 := v.ForestAreaKm2 * c.BaseRateKgPerKm2Day *
		NDVIFactor(v.NDVI, c) *
		TemperatureFactor(m.TemperatureC, c) *
		HumidityFactor(m.RelativeHumidityPct, c) *
		fs
	if math.IsNaN(co2) || math.IsInf(co2, 0) || co2 < 0 {
		return netimpact.SequestrationMass{}, &netimpact.NumericalError{Op: "sequestration", Value: co2,
			Msg: "uptake must be finite and non-negative"}
	}
	return netimpact.SequestrationMass{CO2: co2, PeriodHours: hoursPerDay}, nil
}

// Sequestration returns a function that calculates the CO2 sequestered by
// the vegetation of a BaseState.
func Sequestration() netimpact.SequestrationFunc {
	return func(s *netimpact.BaseState, f *netimpact.FactorTable) (netimpact.SequestrationMass, error) {
		return Compute(s.Vegetation, s.Meteorology, f.Sequestration())
	}
}
