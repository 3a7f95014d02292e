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
	"math/rand/v2"
	"sort"

	"github.com/spatialmodel/netimpact"
	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution is the probability distribution of a factor scale.
type Distribution string

// These are the supported distributions. Each has a mean of 1.
const (
	// Uniform draws scales from [1-r, 1+r].
	Uniform Distribution = "uniform"
	// Normal draws scales from a normal distribution with standard
	// deviation r, truncated to positive values.
	Normal Distribution = "normal"
	// LogNormal draws scales whose logarithm has standard deviation r.
	LogNormal Distribution = "lognormal"
)

// Variation is the relative uncertainty of one factor.
type Variation struct {
	Distribution Distribution `json:"distribution" toml:"distribution"`
	Relative     float64      `json:"relative" toml:"relative"`
}

// quantile returns the scale at cumulative probability u, 0 < u < 1.
func (v Variation) quantile(u float64) float64 {
	if v.Relative == 0 {
		return 1
	}
	switch v.Distribution {
	case Uniform:
		return distuv.Uniform{Min: 1 - v.Relative, Max: 1 + v.Relative}.Quantile(u)
	case Normal:
		return distuv.Normal{Mu: 1, Sigma: v.Relative}.Quantile(u)
	case LogNormal:
		return distuv.LogNormal{Mu: -v.Relative * v.Relative / 2, Sigma: v.Relative}.Quantile(u)
	}
	panic(fmt.Errorf("scenario: invalid distribution %q", v.Distribution))
}

// UncertaintyConfig configures the Monte Carlo propagation of factor
// uncertainty.
type UncertaintyConfig struct {
	// Samples is the number of draws.
	Samples int `json:"samples" toml:"samples"`

	// Seed makes the draws reproducible.
	Seed uint64 `json:"seed" toml:"seed"`

	// MinSamples is the fewest completed draws accepted when sampling is
	// stopped early by a deadline. Zero means 1.
	MinSamples int `json:"min_samples" toml:"min_samples"`

	// Variation holds the uncertainty of factors keyed as in
	// netimpact.FactorTable.Scaled.
	Variation map[string]Variation `json:"variation" toml:"variation"`
}

// Check returns every violation in c.
func (c *UncertaintyConfig) Check(prefix string, f *netimpact.FactorTable) netimpact.Violations {
	var v netimpact.Violations
	if c.Samples < 1 {
		v.Addf(field(prefix, "samples"), "must be >= 1 but is %d", c.Samples)
	}
	if c.MinSamples < 0 || c.MinSamples > c.Samples {
		v.Addf(field(prefix, "min_samples"), "must be in [0, samples=%d] but is %d", c.Samples, c.MinSamples)
	}
	for _, k := range c.keys() {
		x := c.Variation[k]
		name := field(prefix, fmt.Sprintf("variation[%s]", k))
		if !f.HasFactor(k) {
			v.Addf(name, "is not a scalable factor")
		}
		switch x.Distribution {
		case Uniform:
			v.Range(name+".relative", x.Relative, 0, 1)
		case Normal, LogNormal:
			v.NonNegative(name+".relative", x.Relative)
		default:
			v.Addf(name+".distribution", "must be one of %s, %s, %s but is %q", Uniform, Normal, LogNormal, x.Distribution)
		}
	}
	return v
}

func (c *UncertaintyConfig) keys() []string {
	keys := make([]string, 0, len(c.Variation))
	for k := range c.Variation {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *UncertaintyConfig) minSamples() int {
	if c.MinSamples == 0 {
		return 1
	}
	return c.MinSamples
}

// Draw returns the factor scales of draw i. The scales depend only on the
// seed, i and the variations, so draws can be computed in any order.
// A scale that is not finite and positive, e.g. from a log-normal
// variation too wide for float64, is returned as a *netimpact.NumericalError.
func (c *UncertaintyConfig) Draw(i int) (map[string]float64, error) {
	rng := rand.New(rand.NewPCG(c.Seed, uint64(i)))
	o := make(map[string]float64, len(c.Variation))
	for _, k := range c.keys() {
		v := c.Variation[k]
		x := v.quantile(openUnit(rng))
		for v.Distribution == Normal && !(x > 0) {
			x = v.quantile(openUnit(rng))
		}
		if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
			return nil, &netimpact.NumericalError{
				Op:    fmt.Sprintf("sampling factor %s", k),
				Value: x,
				Msg:   fmt.Sprintf("%s distribution with relative %g", v.Distribution, v.Relative),
			}
		}
		o[k] = x
	}
	return o, nil
}

// openUnit returns a uniform random number in (0, 1).
func openUnit(rng *rand.Rand) float64 {
	for {
		if u := rng.Float64(); u > 0 {
			return u
		}
	}
}
