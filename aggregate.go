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

	"github.com/ctessum/unit"
)

// Units is the reporting unit of a NetImpactResult.
type Units string

// These are the supported reporting units.
const (
	KgPerDay     Units = "kg/day"
	TonnesPerDay Units = "t/day"
)

// kilograms returns the number of kilograms in one reporting unit.
func (u Units) kilograms() (float64, error) {
	switch u {
	case KgPerDay, "":
		return 1, nil
	case TonnesPerDay:
		return 1000, nil
	}
	return 0, fmt.Errorf("netimpact: unsupported units %q", u)
}

// Kilograms returns the number of kilograms in the mass of one unit.
func (u Units) Kilograms() (float64, error) { return u.kilograms() }

// ParseUnits converts s to Units.
func ParseUnits(s string) (Units, error) {
	u := Units(s)
	if _, err := u.kilograms(); err != nil || s == "" {
		return "", fmt.Errorf("netimpact: units must be %q or %q but are %q", KgPerDay, TonnesPerDay, s)
	}
	return u, nil
}

const (
	secondsPerHour = 3600.
	secondsPerDay  = 86400.
)

var kilogramPerSecond = unit.Dimensions{unit.MassDim: 1, unit.TimeDim: -1}

// EmissionMass is the mass emitted by traffic over PeriodHours [kg].
type EmissionMass struct {
	CO2, PM25, NOx float64
	PeriodHours    float64
}

// SequestrationMass is the CO2 taken up by vegetation over PeriodHours [kg].
type SequestrationMass struct {
	CO2         float64
	PeriodHours float64
}

// DepositionMass is the mass removed by canopy deposition over
// PeriodHours [kg].
type DepositionMass struct {
	PM25, NOx   float64
	PeriodHours float64
}

// Balance is the budget of one pollutant. Net may be negative when removal
// exceeds emission; Removed is never negative.
type Balance struct {
	Emitted float64 `json:"emitted"`
	Removed float64 `json:"removed"`
	Net     float64 `json:"net"`
}

// Evaluation methods recorded in a NetImpactResult.
const (
	MethodPhysical = "physical"
	MethodSurface  = "surface"
)

// NetImpactResult is the net pollutant balance of a BaseState.
type NetImpactResult struct {
	Units  Units   `json:"units"`
	Method string  `json:"method"`
	CO2    Balance `json:"co2"`
	PM25   Balance `json:"pm25"`
	NOx    Balance `json:"nox"`
}

// Balance returns the budget of pollutant p.
func (r *NetImpactResult) Balance(p Pollutant) Balance {
	switch p {
	case CO2:
		return r.CO2
	case PM25:
		return r.PM25
	case NOx:
		return r.NOx
	}
	panic(fmt.Errorf("netimpact: invalid pollutant %q", p))
}

// SetBalance sets the budget of pollutant p.
func (r *NetImpactResult) SetBalance(p Pollutant, b Balance) {
	switch p {
	case CO2:
		r.CO2 = b
	case PM25:
		r.PM25 = b
	case NOx:
		r.NOx = b
	default:
		panic(fmt.Errorf("netimpact: invalid pollutant %q", p))
	}
}

// Combine normalizes the model outputs to a daily rate in units u and
// returns the net balance of each pollutant. CO2 is removed by
// sequestration and PM2.5 and NOx by deposition.
func Combine(e EmissionMass, s SequestrationMass, d DepositionMass, u Units) (*NetImpactResult, error) {
	if _, err := u.kilograms(); err != nil {
		return nil, err
	}
	if u == "" {
		u = KgPerDay
	}
	r := &NetImpactResult{Units: u, Method: MethodPhysical}
	terms := []struct {
		p                Pollutant
		emitted, removed float64
		eHours, rHours   float64
	}{
		{CO2, e.CO2, s.CO2, e.PeriodHours, s.PeriodHours},
		{PM25, e.PM25, d.PM25, e.PeriodHours, d.PeriodHours},
		{NOx, e.NOx, d.NOx, e.PeriodHours, d.PeriodHours},
	}
	for _, t := range terms {
		if !(t.removed >= 0) {
			return nil, &NumericalError{Op: "removal of " + string(t.p), Value: t.removed,
				Msg: "removal must be non-negative"}
		}
		em, err := normalize(t.emitted, t.eHours, u)
		if err != nil {
			return nil, fmt.Errorf("netimpact: normalizing %s emissions: %w", t.p, err)
		}
		rm, err := normalize(t.removed, t.rHours, u)
		if err != nil {
			return nil, fmt.Errorf("netimpact: normalizing %s removal: %w", t.p, err)
		}
		net := unit.Sub(em, rm)
		b := Balance{Emitted: em.Value(), Removed: rm.Value(), Net: net.Value()}
		if err := finite("net "+string(t.p), b.Net); err != nil {
			return nil, err
		}
		r.SetBalance(t.p, b)
	}
	return r, nil
}

// normalize converts a mass accumulated over hours to the daily mass in
// units u. The result carries mass dimensions.
func normalize(kg, hours float64, u Units) (*unit.Unit, error) {
	if !(hours > 0) {
		return nil, &NumericalError{Op: "averaging period", Value: hours, Msg: "must be > 0"}
	}
	if err := finite("mass", kg); err != nil {
		return nil, err
	}
	rate := unit.Div(unit.New(kg, unit.Kilogram), unit.New(hours*secondsPerHour, unit.Second))
	if err := rate.Check(kilogramPerSecond); err != nil {
		return nil, err
	}
	perUnit, err := u.kilograms()
	if err != nil {
		return nil, err
	}
	daily := unit.Mul(rate, unit.New(secondsPerDay/perUnit, unit.Second))
	if err := daily.Check(unit.Kilogram); err != nil {
		return nil, err
	}
	return daily, nil
}

// ScaleResult returns r converted to units u.
func ScaleResult(r *NetImpactResult, u Units) (*NetImpactResult, error) {
	from, err := r.Units.kilograms()
	if err != nil {
		return nil, err
	}
	to, err := u.kilograms()
	if err != nil {
		return nil, err
	}
	o := *r
	o.Units = u
	for _, p := range Pollutants {
		b := r.Balance(p)
		f := from / to
		o.SetBalance(p, Balance{Emitted: b.Emitted * f, Removed: b.Removed * f, Net: b.Emitted*f - b.Removed*f})
	}
	return &o, nil
}
