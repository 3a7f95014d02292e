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

package netimpactutil

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/netimpact"
	"github.com/spatialmodel/netimpact/scenario"
)

// Request is a scenario request as read from a JSON or TOML file.
type Request struct {
	ID    string          `json:"id" toml:"id"`
	State netimpact.Input `json:"state" toml:"state"`

	// Policy is the combined policy of the original request format.
	Policy *scenario.Policy `json:"policy,omitempty" toml:"policy"`

	// Interventions are applied in order after Policy.
	Interventions []InterventionSpec `json:"interventions,omitempty" toml:"interventions"`

	// Uncertainty overrides the configured uncertainty settings.
	Uncertainty *scenario.UncertaintyConfig `json:"uncertainty,omitempty" toml:"uncertainty"`
}

// BatchRequest holds several scenario requests.
type BatchRequest struct {
	Scenarios []Request `json:"scenarios" toml:"scenarios"`
}

// InterventionSpec is the file form of a single intervention.
type InterventionSpec struct {
	// Kind is traffic_reduction, afforestation or fleet_modernization.
	Kind           string             `json:"kind" toml:"kind"`
	Percent        float64            `json:"percent" toml:"percent"`
	AreaKm2        float64            `json:"area_km2" toml:"area_km2"`
	ProjectionYear float64            `json:"projection_year" toml:"projection_year"`
	Reductions     map[string]float64 `json:"reductions,omitempty" toml:"reductions"`
	Categories     []string           `json:"categories,omitempty" toml:"categories"`
}

// Intervention converts s to a scenario.Intervention.
func (s InterventionSpec) Intervention() (scenario.Intervention, error) {
	switch s.Kind {
	case scenario.TrafficReduction{}.Kind():
		return scenario.TrafficReduction{Percent: s.Percent}, nil
	case scenario.Afforestation{}.Kind():
		return scenario.Afforestation{AreaKm2: s.AreaKm2, ProjectionYear: s.ProjectionYear}, nil
	case scenario.FleetModernization{}.Kind():
		m := scenario.FleetModernization{Percent: s.Percent, ProjectionYear: s.ProjectionYear}
		if s.Reductions != nil {
			m.Reductions = make(map[netimpact.Pollutant]float64, len(s.Reductions))
			for p, r := range s.Reductions {
				m.Reductions[netimpact.Pollutant(p)] = r
			}
		}
		for _, c := range s.Categories {
			m.Categories = append(m.Categories, netimpact.VehicleCategory(c))
		}
		return m, nil
	}
	return nil, fmt.Errorf("netimpactutil: invalid intervention kind %q", s.Kind)
}

// Intervention returns the interventions of r combined in order. A request
// without interventions gets an empty policy, so its scenario equals its
// baseline.
func (r *Request) Intervention() (scenario.Intervention, error) {
	var c scenario.Combined
	if r.Policy != nil {
		c = append(c, r.Policy.Intervention()...)
	}
	for i, s := range r.Interventions {
		iv, err := s.Intervention()
		if err != nil {
			return nil, fmt.Errorf("netimpactutil: intervention %d: %w", i, err)
		}
		c = append(c, iv)
	}
	if len(c) == 0 {
		return scenario.Policy{}.Intervention(), nil
	}
	return c, nil
}

// Job converts r to a scenario job, using def when r does not specify
// the uncertainty settings.
func (r *Request) Job(def scenario.UncertaintyConfig) (scenario.Job, error) {
	s, err := r.State.BaseState()
	if err != nil {
		return scenario.Job{}, err
	}
	iv, err := r.Intervention()
	if err != nil {
		return scenario.Job{}, err
	}
	u := def
	if r.Uncertainty != nil {
		u = *r.Uncertainty
	}
	return scenario.Job{ID: r.ID, State: s, Intervention: iv, Uncertainty: u}, nil
}

// decode reads v from r in the format implied by the extension of name:
// TOML for .toml files and JSON otherwise.
func decode(r io.Reader, name string, v interface{}) error {
	if strings.EqualFold(filepath.Ext(name), ".toml") {
		md, err := toml.DecodeReader(r, v)
		if err != nil {
			return err
		}
		if u := md.Undecoded(); len(u) > 0 {
			return fmt.Errorf("unrecognized keys: %v", u)
		}
		return nil
	}
	d := json.NewDecoder(r)
	d.DisallowUnknownFields()
	return d.Decode(v)
}

// readFile decodes the file at path into v. A path of "-" reads JSON from
// stdin.
func readFile(path string, stdin io.Reader, v interface{}) error {
	if path == "-" {
		if err := decode(stdin, "stdin.json", v); err != nil {
			return fmt.Errorf("netimpactutil: reading request from stdin: %w", err)
		}
		return nil
	}
	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return fmt.Errorf("netimpactutil: opening request: %w", err)
	}
	defer f.Close()
	if err := decode(f, path, v); err != nil {
		return fmt.Errorf("netimpactutil: reading request %s: %w", path, err)
	}
	return nil
}

// ReadRequest reads a single scenario request.
func ReadRequest(path string, stdin io.Reader) (*Request, error) {
	r := new(Request)
	if err := readFile(path, stdin, r); err != nil {
		return nil, err
	}
	if r.ID == "" {
		r.ID = r.State.Ward
		if r.ID == "" {
			r.ID = r.State.City
		}
	}
	return r, nil
}

// ReadBatch reads a batch of scenario requests. Requests without an ID
// are numbered in file order.
func ReadBatch(path string, stdin io.Reader) (*BatchRequest, error) {
	b := new(BatchRequest)
	if err := readFile(path, stdin, b); err != nil {
		return nil, err
	}
	if len(b.Scenarios) == 0 {
		return nil, fmt.Errorf("netimpactutil: batch %s contains no scenarios", path)
	}
	for i := range b.Scenarios {
		if b.Scenarios[i].ID == "" {
			b.Scenarios[i].ID = fmt.Sprintf("scenario_%d", i)
		}
	}
	return b, nil
}
