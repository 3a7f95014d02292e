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
	"strings"
)

// City is reference data for a city in the catalogue.
type City struct {
	Name string

	// ForestAreaKm2 is the recorded forest cover [km²] (ISFR 2023).
	ForestAreaKm2 float64
	// TreeCoverPct is the share of the city under tree cover [%].
	TreeCoverPct float64

	// Vehicles is the number of registered vehicles (2020).
	Vehicles float64
	// Shares are the fractions of Vehicles in each category. They do not
	// need to sum to 1; the remainder is vehicles with no emission factor.
	Shares map[VehicleCategory]float64
}

func shares(car, truck, twowheeler float64) map[VehicleCategory]float64 {
	return map[VehicleCategory]float64{"car": car, "truck": truck, "twowheeler": twowheeler}
}

var cities = []City{
	{"Delhi", 176.0, 11.87, 11893.0e3, shares(0.35, 0.05, 0.55)},
	{"Mumbai", 130.0, 18.0, 3876.17e3, shares(0.30, 0.10, 0.55)},
	{"Bengaluru", 110.0, 15.0, 9638.36e3, shares(0.40, 0.08, 0.48)},
	{"Chennai", 85.0, 12.0, 6351.73e3, shares(0.38, 0.07, 0.50)},
	{"Kolkata", 95.0, 14.0, 1024.08e3, shares(0.32, 0.06, 0.57)},
	{"Hyderabad", 120.0, 16.0, 3242.81e3, shares(0.36, 0.08, 0.52)},
	{"Pune", 140.0, 17.0, 3198.83e3, shares(0.42, 0.09, 0.45)},
	{"Ahmedabad", 90.0, 10.0, 4571.19e3, shares(0.34, 0.08, 0.54)},
	{"Surat", 80.0, 9.0, 2800.0e3, shares(0.33, 0.10, 0.53)},
	{"Jaipur", 100.0, 11.0, 3168.34e3, shares(0.37, 0.07, 0.52)},
}

// Cities returns the city catalogue.
func Cities() []City {
	o := make([]City, len(cities))
	for i, c := range cities {
		o[i] = c
		o[i].Shares = make(map[VehicleCategory]float64, len(c.Shares))
		for k, v := range c.Shares {
			o[i].Shares[k] = v
		}
	}
	return o
}

// LookupCity returns the catalogue entry for name, ignoring case.
func LookupCity(name string) (City, error) {
	for _, c := range Cities() {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return City{}, &LookupError{Table: "city", Key: name}
}

// WardFleet returns the fleet of one of wards equal wards of the city.
func (c City) WardFleet(wards int) (FleetComposition, error) {
	if wards < 1 {
		return nil, fmt.Errorf("netimpact: number of wards must be >= 1 but is %d", wards)
	}
	f := make(FleetComposition, len(c.Shares))
	for k, s := range c.Shares {
		f[k] = c.Vehicles * s / float64(wards)
	}
	return f, nil
}

// WardUnit returns the spatial unit of ward number ward (counting from 1)
// out of wards equal wards, and its share of the city forest [km²].
func (c City) WardUnit(ward, wards int) (SpatialUnit, float64, error) {
	if wards < 1 || ward < 1 || ward > wards {
		return SpatialUnit{}, 0, fmt.Errorf("netimpact: ward %d of %d is out of range", ward, wards)
	}
	return SpatialUnit{
		City: c.Name,
		Ward: fmt.Sprintf("%s_W%d", c.Name, ward),
	}, c.ForestAreaKm2 / float64(wards), nil
}

// Efficiency is the removal per unit forest area [kg km-2 day-1] of each
// pollutant.
type Efficiency struct {
	CO2  float64 `json:"co2"`
	PM25 float64 `json:"pm25"`
	NOx  float64 `json:"nox"`
}

// RemovalEfficiency returns the removal per km² of forest in r, in the
// mass units of r. It returns zeros when there is no forest.
func RemovalEfficiency(r *NetImpactResult, forestAreaKm2 float64) Efficiency {
	if !(forestAreaKm2 > 0) {
		return Efficiency{}
	}
	return Efficiency{
		CO2:  r.CO2.Removed / forestAreaKm2,
		PM25: r.PM25.Removed / forestAreaKm2,
		NOx:  r.NOx.Removed / forestAreaKm2,
	}
}
