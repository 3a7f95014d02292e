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

import "fmt"

// EmissionFunc computes the traffic emissions of a state.
type EmissionFunc func(s *BaseState, f *FactorTable) (EmissionMass, error)

// SequestrationFunc computes the CO2 sequestered by the vegetation of a
// state.
type SequestrationFunc func(s *BaseState, f *FactorTable) (SequestrationMass, error)

// DepositionFunc computes the pollutant mass removed by canopy deposition
// in a state.
type DepositionFunc func(s *BaseState, f *FactorTable) (DepositionMass, error)

// Evaluator computes the net pollutant balance of a state using the
// coefficients in f. Implementations must not retain or modify s or f.
type Evaluator interface {
	Evaluate(s *BaseState, f *FactorTable) (*NetImpactResult, error)
}

// Pipeline evaluates a state with the physical models.
type Pipeline struct {
	Emission      EmissionFunc
	Sequestration SequestrationFunc
	Deposition    DepositionFunc

	// Units are the reporting units of the results. The default is
	// kg/day.
	Units Units

	// Scheme names the model combination, so scenarios evaluated with
	// different models get different fingerprints.
	Scheme string
}

// Evaluate runs the three physical models on s and combines their output.
// s must already be valid.
func (p *Pipeline) Evaluate(s *BaseState, f *FactorTable) (*NetImpactResult, error) {
	if p.Emission == nil || p.Sequestration == nil || p.Deposition == nil {
		return nil, fmt.Errorf("netimpact: pipeline is missing a model")
	}
	e, err := p.Emission(s, f)
	if err != nil {
		return nil, fmt.Errorf("netimpact: emission model: %w", err)
	}
	q, err := p.Sequestration(s, f)
	if err != nil {
		return nil, fmt.Errorf("netimpact: sequestration model: %w", err)
	}
	d, err := p.Deposition(s, f)
	if err != nil {
		return nil, fmt.Errorf("netimpact: deposition model: %w", err)
	}
	return Combine(e, q, d, p.Units)
}
