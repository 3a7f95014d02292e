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

import "fmt"

// Values holds one number per pollutant.
type Values struct {
	CO2  float64 `json:"co2"`
	PM25 float64 `json:"pm25"`
	NOx  float64 `json:"nox"`
}

// Report is the flat external form of a Result. All masses are in kg/day.
// Net balances and their confidence intervals refer to the scenario
// branch.
type Report struct {
	ID          string `json:"id,omitempty"`
	Fingerprint string `json:"fingerprint"`

	NetCO2Kg  float64 `json:"net_co2_kg"`
	NetPM25Kg float64 `json:"net_pm25_kg"`
	NetNOxKg  float64 `json:"net_nox_kg"`

	CI5  Values `json:"ci_5"`
	CI95 Values `json:"ci_95"`

	DeltaCO2  float64 `json:"delta_co2"`
	DeltaPM25 float64 `json:"delta_pm25"`
	DeltaNOx  float64 `json:"delta_nox"`

	DeltaCI5  Values `json:"delta_ci_5"`
	DeltaCI95 Values `json:"delta_ci_95"`

	BaselineNetCO2Kg  float64 `json:"baseline_net_co2_kg"`
	BaselineNetPM25Kg float64 `json:"baseline_net_pm25_kg"`
	BaselineNetNOxKg  float64 `json:"baseline_net_nox_kg"`

	Method            string       `json:"method"`
	FactorVersion     string       `json:"factor_version"`
	RequestedSamples  int          `json:"requested_samples"`
	CompletedSamples  int          `json:"completed_samples"`
	ReducedConfidence bool         `json:"reduced_confidence"`
	Projections       []Projection `json:"projections"`
}

// NewReport converts r to a Report with masses in kg/day.
func NewReport(id string, r *Result) (*Report, error) {
	f, err := r.Scenario.Units.Kilograms()
	if err != nil {
		return nil, fmt.Errorf("scenario: creating report: %w", err)
	}

	u := r.Uncertainty
	return &Report{
		ID:          id,
		Fingerprint: r.Fingerprint,

		NetCO2Kg:  r.Scenario.CO2.Net * f,
		NetPM25Kg: r.Scenario.PM25.Net * f,
		NetNOxKg:  r.Scenario.NOx.Net * f,

		CI5:  Values{u.Scenario.CO2.P5 * f, u.Scenario.PM25.P5 * f, u.Scenario.NOx.P5 * f},
		CI95: Values{u.Scenario.CO2.P95 * f, u.Scenario.PM25.P95 * f, u.Scenario.NOx.P95 * f},

		DeltaCO2:  r.Delta.CO2 * f,
		DeltaPM25: r.Delta.PM25 * f,
		DeltaNOx:  r.Delta.NOx * f,

		DeltaCI5:  Values{u.Delta.CO2.P5 * f, u.Delta.PM25.P5 * f, u.Delta.NOx.P5 * f},
		DeltaCI95: Values{u.Delta.CO2.P95 * f, u.Delta.PM25.P95 * f, u.Delta.NOx.P95 * f},

		BaselineNetCO2Kg:  r.Baseline.CO2.Net * f,
		BaselineNetPM25Kg: r.Baseline.PM25.Net * f,
		BaselineNetNOxKg:  r.Baseline.NOx.Net * f,

		Method:            r.Scenario.Method,
		FactorVersion:     r.FactorVersion,
		RequestedSamples:  u.RequestedSamples,
		CompletedSamples:  u.CompletedSamples,
		ReducedConfidence: u.ReducedConfidence,
		Projections:       r.Projections,
	}, nil
}
