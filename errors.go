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
	"fmt"
	"math"
	"strings"
)

// Violation is a single invalid input field.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (v Violation) String() string { return v.Field + ": " + v.Reason }

// ValidationError reports every invalid field of a request. It is returned
// before any model runs.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	s := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		s[i] = v.String()
	}
	return "netimpact: invalid input: " + strings.Join(s, "; ")
}

// Violations accumulates input violations. The zero value is ready to use.
type Violations []Violation

// Addf records a violation of field.
func (v *Violations) Addf(field, format string, args ...interface{}) {
	*v = append(*v, Violation{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// Append adds the violations in o to v.
func (v *Violations) Append(o ...Violation) {
	*v = append(*v, o...)
}

// Err returns a *ValidationError holding v, or nil if v is empty.
func (v Violations) Err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Violations: append([]Violation(nil), v...)}
}

// Range records a violation if x is not finite or is outside [min, max].
func (v *Violations) Range(field string, x, min, max float64) {
	switch {
	case math.IsNaN(x) || math.IsInf(x, 0):
		v.Addf(field, "must be finite but is %g", x)
	case x < min || x > max:
		v.Addf(field, "must be in [%g, %g] but is %g", min, max, x)
	}
}

// NonNegative records a violation if x is not a finite value >= 0.
func (v *Violations) NonNegative(field string, x float64) {
	v.Range(field, x, 0, math.MaxFloat64)
}

// LookupError reports a key absent from the FactorTable. It indicates a
// mismatch between the data and the loaded configuration.
type LookupError struct {
	Table string
	Key   string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("netimpact: factor table has no %s entry for %q", e.Table, e.Key)
}

// NumericalError reports a computation that produced an undefined or
// non-physical value, e.g. a non-positive resistance.
type NumericalError struct {
	Op    string
	Value float64
	Msg   string
}

func (e *NumericalError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("netimpact: %s produced invalid value %g", e.Op, e.Value)
	}
	return fmt.Sprintf("netimpact: %s produced invalid value %g: %s", e.Op, e.Value, e.Msg)
}

// ConfigurationError reports a FactorTable or other static resource that
// could not be loaded or is incomplete.
type ConfigurationError struct {
	Source string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("netimpact: configuration %s: %v", e.Source, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// finite returns a *NumericalError if x is NaN or infinite.
func finite(op string, x float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return &NumericalError{Op: op, Value: x}
	}
	return nil
}
