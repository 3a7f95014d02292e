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

// Package exprsurface implements a netimpact.PredictiveSurface whose
// predictions are arithmetic expressions of the features. Expressions are
// parsed with govaluate and may use intermediate variables and the
// functions exp, log, sqrt, pow, min, max and clamp.
package exprsurface

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
	"github.com/Knetic/govaluate"
	"github.com/spatialmodel/netimpact"
)

//go:embed data/surface.toml
var defaultSurface []byte

// Source is the on-disk layout of a Surface.
type Source struct {
	Name string

	// Variables maps names of intermediate quantities to the expressions
	// that define them. They may refer to features and to each other.
	Variables map[string]string

	// Net maps each pollutant to the expression for its net balance
	// [kg/day].
	Net map[string]string
}

// variable is a compiled intermediate quantity.
type variable struct {
	name string
	expr *govaluate.EvaluableExpression
}

// Surface is a compiled expression surface. It is safe for concurrent use.
type Surface struct {
	name      string
	variables []variable // in evaluation order
	net       map[netimpact.Pollutant]*govaluate.EvaluableExpression
}

// Default returns the surface compiled into the binary, a linearized
// approximation of the physical models.
func Default() (*Surface, error) {
	return Load(bytes.NewReader(defaultSurface))
}

// LoadFile reads a Surface from a TOML file.
func LoadFile(path string) (*Surface, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &netimpact.ConfigurationError{Source: path, Err: err}
	}
	defer f.Close()
	s, err := Load(f)
	if err != nil {
		if ce, ok := err.(*netimpact.ConfigurationError); ok {
			ce.Source = path
		}
		return nil, err
	}
	return s, nil
}

// Load decodes and compiles a Surface in TOML format. Any error is a
// *netimpact.ConfigurationError.
func Load(r io.Reader) (*Surface, error) {
	var src Source
	md, err := toml.DecodeReader(r, &src)
	if err != nil {
		return nil, &netimpact.ConfigurationError{Source: "predictive surface", Err: err}
	}
	if u := md.Undecoded(); len(u) > 0 {
		keys := make([]string, len(u))
		for i, k := range u {
			keys[i] = k.String()
		}
		return nil, &netimpact.ConfigurationError{Source: "predictive surface",
			Err: fmt.Errorf("unrecognized keys: %s", strings.Join(keys, ", "))}
	}
	return New(src)
}

// New compiles src. Every name used in an expression must be a feature
// or a variable, and variables may not depend on themselves.
func New(src Source) (*Surface, error) {
	s, err := compile(src)
	if err != nil {
		return nil, &netimpact.ConfigurationError{Source: "predictive surface " + src.Name, Err: err}
	}
	return s, nil
}

func compile(src Source) (*Surface, error) {
	features := make(map[string]bool, len(netimpact.FeatureNames))
	for _, n := range netimpact.FeatureNames {
		features[n] = true
	}

	exprs := make(map[string]*govaluate.EvaluableExpression, len(src.Variables))
	names := make([]string, 0, len(src.Variables))
	for name := range src.Variables {
		if features[name] {
			return nil, fmt.Errorf("variable %s shadows a feature", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e, err := govaluate.NewEvaluableExpressionWithFunctions(src.Variables[name], functions)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %v", name, err)
		}
		exprs[name] = e
	}
	checkVars := func(what string, e *govaluate.EvaluableExpression) error {
		for _, v := range e.Vars() {
			if !features[v] && exprs[v] == nil {
				return fmt.Errorf("%s: undefined name '%s'", what, v)
			}
		}
		return nil
	}

	s := &Surface{
		name: src.Name,
		net:  make(map[netimpact.Pollutant]*govaluate.EvaluableExpression),
	}

	// Order variables so that each follows the variables it uses.
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(names))
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("variable %s depends on itself", name)
		case visited:
			return nil
		}
		state[name] = visiting
		e := exprs[name]
		if err := checkVars("variable "+name, e); err != nil {
			return err
		}
		deps := append([]string(nil), e.Vars()...)
		sort.Strings(deps)
		for _, d := range deps {
			if exprs[d] != nil {
				if err := visit(d); err != nil {
					return err
				}
			}
		}
		state[name] = visited
		s.variables = append(s.variables, variable{name: name, expr: e})
		return nil
	}
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	for p := range src.Net {
		switch netimpact.Pollutant(p) {
		case netimpact.CO2, netimpact.PM25, netimpact.NOx:
		default:
			return nil, fmt.Errorf("Net.%s is not a recognized pollutant", p)
		}
	}
	for _, p := range netimpact.Pollutants {
		x, ok := src.Net[string(p)]
		if !ok {
			return nil, fmt.Errorf("missing Net.%s", p)
		}
		e, err := govaluate.NewEvaluableExpressionWithFunctions(x, functions)
		if err != nil {
			return nil, fmt.Errorf("Net.%s: %v", p, err)
		}
		if err := checkVars("Net."+string(p), e); err != nil {
			return nil, err
		}
		s.net[p] = e
	}
	return s, nil
}

// Name returns the name of the surface.
func (s *Surface) Name() string { return s.name }

// Predict implements netimpact.PredictiveSurface.
func (s *Surface) Predict(f netimpact.Features) (netimpact.NetPrediction, error) {
	params := make(map[string]interface{}, len(f)+len(s.variables))
	for _, n := range netimpact.FeatureNames {
		v, ok := f[n]
		if !ok {
			return netimpact.NetPrediction{}, fmt.Errorf("exprsurface: missing feature %s", n)
		}
		params[n] = v
	}
	for _, v := range s.variables {
		x, err := evaluate(v.expr, params)
		if err != nil {
			return netimpact.NetPrediction{}, fmt.Errorf("exprsurface: variable %s: %w", v.name, err)
		}
		params[v.name] = x
	}
	var o [3]float64
	for i, p := range netimpact.Pollutants {
		x, err := evaluate(s.net[p], params)
		if err != nil {
			return netimpact.NetPrediction{}, fmt.Errorf("exprsurface: net %s: %w", p, err)
		}
		o[i] = x
	}
	return netimpact.NetPrediction{CO2: o[0], PM25: o[1], NOx: o[2]}, nil
}

func evaluate(e *govaluate.EvaluableExpression, params map[string]interface{}) (float64, error) {
	r, err := e.Evaluate(params)
	if err != nil {
		return 0, err
	}
	x, ok := r.(float64)
	if !ok {
		return 0, fmt.Errorf("expression '%s' returned %T instead of a number", e.String(), r)
	}
	return x, nil
}

func args(name string, n int, arg []interface{}) ([]float64, error) {
	if len(arg) != n {
		return nil, fmt.Errorf("exprsurface: got %d arguments for function '%s', but needs %d", len(arg), name, n)
	}
	o := make([]float64, n)
	for i, a := range arg {
		x, ok := a.(float64)
		if !ok {
			return nil, fmt.Errorf("exprsurface: argument %d of function '%s' is %T, not a number", i, name, a)
		}
		o[i] = x
	}
	return o, nil
}

func unary(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(arg ...interface{}) (interface{}, error) {
		a, err := args(name, 1, arg)
		if err != nil {
			return nil, err
		}
		return f(a[0]), nil
	}
}

func binary(name string, f func(float64, float64) float64) govaluate.ExpressionFunction {
	return func(arg ...interface{}) (interface{}, error) {
		a, err := args(name, 2, arg)
		if err != nil {
			return nil, err
		}
		return f(a[0], a[1]), nil
	}
}

var functions = map[string]govaluate.ExpressionFunction{
	"exp":  unary("exp", math.Exp),
	"log":  unary("log", math.Log),
	"sqrt": unary("sqrt", math.Sqrt),
	"pow":  binary("pow", math.Pow),
	"min":  binary("min", math.Min),
	"max":  binary("max", math.Max),
	"clamp": func(arg ...interface{}) (interface{}, error) {
		a, err := args("clamp", 3, arg)
		if err != nil {
			return nil, err
		}
		return math.Max(a[1], math.Min(a[2], a[0])), nil
	},
}
