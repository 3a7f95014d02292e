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

// Package roademis calculates vehicular exhaust emissions from fleet
// activity and per-kilometer emission factors.
package roademis

import (
	"math"

	"github.com/spatialmodel/netimpact"
)

const gramsPerKilogram = 1000.

// GradientAdjustment returns the emission multiplier for a road grade of
// gradePct percent, bounded to [1-bound, 1+bound].
func GradientAdjustment(gradePct float64, tc netimpact.TrafficCoefficients) float64 {
	g := 1 + tc.GradientPerPct*gradePct
	return math.Max(1-tc.GradientBound, math.Min(1+tc.GradientBound, g))
}

// Compute returns the mass emitted [kg] by the vehicles in fleet, each
// traveling distanceKm over the evaluation period under congestion
// trafficIndex on roads of grade gradePct.
//
// The congestion, cold start and gradient adjustments are multiplicative.
// A fleet category with no emission factor is a *netimpact.LookupError.
func Compute(fleet netimpact.FleetComposition, distanceKm, trafficIndex, gradePct float64, f *netimpact.FactorTable) (netimpact.EmissionMass, error) {
	tc := f.Traffic()
	adj := f.Congestion(trafficIndex) * (1 + tc.ColdStartFraction) * GradientAdjustment(gradePct, tc)

	var e netimpact.EmissionMass
	for _, c := range fleet.Categories() {
		n := fleet[c]
		for _, p := range netimpact.Pollutants {
			ef, err := f.EmissionFactor(p, c)
			if err != nil {
				return netimpact.EmissionMass{}, err
			}
			if n <= 0 {
				continue
			}
			m := n * distanceKm * ef * adj / gramsPerKilogram
			switch p {
			case netimpact.CO2:
				e.CO2 += m
			case netimpact.PM25:
				e.PM25 += m
			case netimpact.NOx:
				e.NOx += m
			}
		}
	}
	return e, nil
}

// Emissions returns a function that calculates the traffic emissions of a
// BaseState over its evaluation period.
func Emissions() netimpact.EmissionFunc {
	return func(s *netimpact.BaseState, f *netimpact.FactorTable) (netimpact.EmissionMass, error) {
		e, err := Compute(s.Fleet, s.DistanceKm, s.TrafficIndex, s.RoadGradePct, f)
		if err != nil {
			return e, err
		}
		e.PeriodHours = s.DurationHours
		return e, nil
	}
}
