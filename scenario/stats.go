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
	"sort"

	"github.com/spatialmodel/netimpact"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of a Monte Carlo output.
type Summary struct {
	Mean float64 `json:"mean"`
	P5   float64 `json:"p5"`
	P95  float64 `json:"p95"`
}

// Summarize returns the mean and the empirical 5th and 95th percentiles
// of x. x is not modified.
func Summarize(x []float64) Summary {
	if len(x) == 0 {
		return Summary{}
	}
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	return Summary{
		Mean: floats.Sum(x) / float64(len(x)),
		P5:   stat.Quantile(0.05, stat.Empirical, s, nil),
		P95:  stat.Quantile(0.95, stat.Empirical, s, nil),
	}
}

// Summaries holds a Summary of the net balance of each pollutant.
type Summaries struct {
	CO2  Summary `json:"co2"`
	PM25 Summary `json:"pm25"`
	NOx  Summary `json:"nox"`
}

// Summary returns the summary for pollutant p.
func (s Summaries) Summary(p netimpact.Pollutant) Summary {
	switch p {
	case netimpact.CO2:
		return s.CO2
	case netimpact.PM25:
		return s.PM25
	case netimpact.NOx:
		return s.NOx
	}
	panic(fmt.Errorf("scenario: invalid pollutant %q", p))
}

// nets returns the net balances of pollutant p in rs.
func nets(rs []*netimpact.NetImpactResult, p netimpact.Pollutant) []float64 {
	o := make([]float64, len(rs))
	for i, r := range rs {
		o[i] = r.Balance(p).Net
	}
	return o
}

// summarizeNets summarizes the net balances in rs.
func summarizeNets(rs []*netimpact.NetImpactResult) Summaries {
	return Summaries{
		CO2:  Summarize(nets(rs, netimpact.CO2)),
		PM25: Summarize(nets(rs, netimpact.PM25)),
		NOx:  Summarize(nets(rs, netimpact.NOx)),
	}
}

// summarizeDeltas summarizes the paired differences scenario - baseline.
func summarizeDeltas(baseline, scenario []*netimpact.NetImpactResult) Summaries {
	d := func(p netimpact.Pollutant) []float64 {
		b, s := nets(baseline, p), nets(scenario, p)
		floats.Sub(s, b)
		return s
	}
	return Summaries{
		CO2:  Summarize(d(netimpact.CO2)),
		PM25: Summarize(d(netimpact.PM25)),
		NOx:  Summarize(d(netimpact.NOx)),
	}
}
