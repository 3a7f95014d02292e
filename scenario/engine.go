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

// Package scenario evaluates policy interventions against a baseline
// state and propagates factor uncertainty through Monte Carlo sampling.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/netimpact"
	"github.com/spatialmodel/netimpact/internal/hash"
	"github.com/spatialmodel/netimpact/science/drydep/canopydep"
	"github.com/spatialmodel/netimpact/science/emission/roademis"
	"github.com/spatialmodel/netimpact/science/sequestration/forestseq"
	"golang.org/x/sync/errgroup"
)

// Deposition schemes of the physical pipeline.
const (
	// ResistanceScheme uses the calibrated canopy resistance network.
	ResistanceScheme = "resistance"
	// DetailedScheme uses the Seinfeld and Pandis particle and gas
	// deposition parameterizations.
	DetailedScheme = "detailed"
)

// PhysicalPipeline returns an Evaluator that uses the physical emission,
// sequestration and deposition models and reports results in units u.
func PhysicalPipeline(u netimpact.Units) *netimpact.Pipeline {
	return &netimpact.Pipeline{
		Emission:      roademis.Emissions(),
		Sequestration: forestseq.Sequestration(),
		Deposition:    canopydep.Deposition(),
		Units:         u,
		Scheme:        ResistanceScheme,
	}
}

// DetailedPipeline is PhysicalPipeline with deposition calculated by
// canopydep.DefaultDetailed.
func DetailedPipeline(u netimpact.Units) *netimpact.Pipeline {
	p := PhysicalPipeline(u)
	p.Deposition = canopydep.DefaultDetailed.Deposition()
	p.Scheme = DetailedScheme
	return p
}

// evaluatorID identifies the models and units used by ev.
func evaluatorID(ev netimpact.Evaluator) string {
	switch v := ev.(type) {
	case *netimpact.Pipeline:
		return fmt.Sprintf("%s:%s:%s", netimpact.MethodPhysical, v.Scheme, v.Units)
	case *netimpact.SurfaceEvaluator:
		if n, ok := v.Surface.(interface{ Name() string }); ok {
			return fmt.Sprintf("%s:%s:%s", netimpact.MethodSurface, n.Name(), v.Units)
		}
	}
	return fmt.Sprintf("%T", ev)
}

// Engine runs scenarios. An Engine is safe for concurrent use as long as
// its fields are not changed.
type Engine struct {
	// Factors are the nominal physical constants.
	Factors *netimpact.FactorTable

	// Evaluator computes net impacts. It is either the physical pipeline
	// or a predictive surface.
	Evaluator netimpact.Evaluator

	// Workers is the maximum number of concurrent draws or batch jobs.
	// Zero means the number of CPUs.
	Workers int

	Log logrus.FieldLogger
}

// New returns an Engine that evaluates states with the physical models
// using the factors in f.
func New(f *netimpact.FactorTable, u netimpact.Units) *Engine {
	return &Engine{
		Factors:   f,
		Evaluator: PhysicalPipeline(u),
		Log:       logrus.StandardLogger(),
	}
}

func (e *Engine) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (e *Engine) log() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// check returns the violations of s and its lookup errors against the
// nominal factors.
func (e *Engine) check(s *netimpact.BaseState) (netimpact.Violations, error) {
	if s == nil {
		var v netimpact.Violations
		v.Addf("state", "is required")
		return v, nil
	}
	v := s.Check()
	if len(s.Fleet) > 0 {
		if err := s.CheckCategories(e.Factors); err != nil {
			return v, err
		}
	}
	return v, nil
}

// Evaluate validates s and returns its net impact under the nominal
// factors.
func (e *Engine) Evaluate(s *netimpact.BaseState) (*netimpact.NetImpactResult, error) {
	v, err := e.check(s)
	if err := v.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	r, err := e.Evaluator.Evaluate(s, e.Factors)
	if err != nil {
		return nil, fmt.Errorf("scenario: evaluating %s: %w", s.Unit.City, err)
	}
	return r, nil
}

// Delta is the change in net balance of each pollutant caused by an
// intervention, scenario minus baseline.
type Delta struct {
	CO2  float64 `json:"co2"`
	PM25 float64 `json:"pm25"`
	NOx  float64 `json:"nox"`
}

// NewDelta returns scenario - baseline.
func NewDelta(baseline, scenario *netimpact.NetImpactResult) Delta {
	return Delta{
		CO2:  scenario.CO2.Net - baseline.CO2.Net,
		PM25: scenario.PM25.Net - baseline.PM25.Net,
		NOx:  scenario.NOx.Net - baseline.NOx.Net,
	}
}

// Uncertainty summarizes the Monte Carlo draws of a scenario.
type Uncertainty struct {
	Baseline Summaries `json:"baseline"`
	Scenario Summaries `json:"scenario"`
	// Delta summarizes the paired scenario - baseline differences.
	Delta Summaries `json:"delta"`

	RequestedSamples int `json:"requested_samples"`
	CompletedSamples int `json:"completed_samples"`

	// ReducedConfidence is true when sampling was stopped by a deadline
	// before all requested draws completed.
	ReducedConfidence bool `json:"reduced_confidence"`
}

// Result is the outcome of a scenario.
type Result struct {
	// Fingerprint identifies the inputs of the scenario.
	Fingerprint   string `json:"fingerprint"`
	FactorVersion string `json:"factor_version"`

	// Baseline and Scenario are evaluated with the nominal factors.
	Baseline *netimpact.NetImpactResult `json:"baseline"`
	Scenario *netimpact.NetImpactResult `json:"scenario"`
	Delta    Delta                      `json:"delta"`

	Uncertainty Uncertainty  `json:"uncertainty"`
	Projections []Projection `json:"projections"`
}

// fingerprintKey holds everything that determines a Result.
type fingerprintKey struct {
	State        *netimpact.BaseState
	Date         string
	Intervention Intervention
	Uncertainty  UncertaintyConfig
	Factors      netimpact.FactorSource
	Evaluator    string
}

// Fingerprint returns the fingerprint of a scenario.
func (e *Engine) Fingerprint(s *netimpact.BaseState, iv Intervention, cfg UncertaintyConfig) string {
	k := fingerprintKey{
		State:        s.Clone(),
		Intervention: iv,
		Uncertainty:  cfg,
		Factors:      e.Factors.Source(),
		Evaluator:    evaluatorID(e.Evaluator),
	}
	if !s.Date.IsZero() {
		k.Date = s.Date.Format(netimpact.DateLayout)
	}
	k.State.Date = time.Time{}
	return hash.Hash(k)
}

// Validate returns a *netimpact.ValidationError listing every violation
// in the state, intervention and uncertainty configuration, or a
// *netimpact.LookupError if the fleet has a category without emission
// factors.
func (e *Engine) Validate(s *netimpact.BaseState, iv Intervention, cfg UncertaintyConfig) error {
	v, lookupErr := e.check(s)
	if iv == nil {
		v.Addf("intervention", "is required")
	} else if s != nil {
		v.Append(iv.Check("intervention", s, e.Factors)...)
	}
	v.Append(cfg.Check("uncertainty", e.Factors)...)
	if err := v.Err(); err != nil {
		return err
	}
	return lookupErr
}

// draw holds the branch results of one Monte Carlo draw.
type draw struct {
	baseline, scenario *netimpact.NetImpactResult
}

// Simulate evaluates intervention iv applied to s, with uncertainty
// propagated according to cfg.
//
// All inputs are validated before sampling starts. If ctx reaches its
// deadline before all draws complete, the result summarizes the
// completed leading draws and is marked ReducedConfidence; fewer than
// cfg.MinSamples completed draws is an error. If ctx is canceled, ctx.Err()
// is returned. A numerical failure in any draw aborts the scenario.
func (e *Engine) Simulate(ctx context.Context, s *netimpact.BaseState, iv Intervention, cfg UncertaintyConfig) (*Result, error) {
	if err := e.Validate(s, iv, cfg); err != nil {
		return nil, err
	}
	start := time.Now()
	fp := e.Fingerprint(s, iv, cfg)
	log := e.log().WithFields(logrus.Fields{
		"fingerprint": fp,
		"city":        s.Unit.City,
		"ward":        s.Unit.Ward,
		"samples":     cfg.Samples,
	})
	log.Info("scenario validated")

	p, err := iv.Apply(s, e.Factors)
	if err != nil {
		return nil, fmt.Errorf("scenario: applying %s: %w", iv.Kind(), err)
	}
	nominal, err := e.Factors.Scaled(p.Scales)
	if err != nil {
		return nil, fmt.Errorf("scenario: applying %s: %w", iv.Kind(), err)
	}
	r := &Result{
		Fingerprint:   fp,
		FactorVersion: e.Factors.Version(),
		Projections:   p.Projections,
	}
	if r.Baseline, err = e.Evaluator.Evaluate(s, e.Factors); err != nil {
		return nil, fmt.Errorf("scenario: evaluating baseline: %w", err)
	}
	if r.Scenario, err = e.Evaluator.Evaluate(p.State, nominal); err != nil {
		return nil, fmt.Errorf("scenario: evaluating %s: %w", iv.Kind(), err)
	}
	r.Delta = NewDelta(r.Baseline, r.Scenario)
	log.WithField("duration", time.Since(start)).Debug("scenario nominal branches evaluated")

	draws, err := e.sample(ctx, s, p, cfg)
	if err != nil {
		return nil, err
	}
	baselines := make([]*netimpact.NetImpactResult, len(draws))
	scenarios := make([]*netimpact.NetImpactResult, len(draws))
	for i, d := range draws {
		baselines[i], scenarios[i] = d.baseline, d.scenario
	}
	r.Uncertainty = Uncertainty{
		Baseline:          summarizeNets(baselines),
		Scenario:          summarizeNets(scenarios),
		Delta:             summarizeDeltas(baselines, scenarios),
		RequestedSamples:  cfg.Samples,
		CompletedSamples:  len(draws),
		ReducedConfidence: len(draws) < cfg.Samples,
	}
	entry := log.WithFields(logrus.Fields{
		"completed": len(draws),
		"duration":  time.Since(start),
	})
	if r.Uncertainty.ReducedConfidence {
		entry.Warn("scenario sampling stopped at deadline; confidence is reduced")
	} else {
		entry.Info("scenario complete")
	}
	return r, nil
}

// sample evaluates the Monte Carlo draws of both branches. It returns the
// completed leading draws.
func (e *Engine) sample(ctx context.Context, s *netimpact.BaseState, p *Perturbation, cfg UncertaintyConfig) ([]draw, error) {
	draws := make([]draw, cfg.Samples)
	done := make([]bool, cfg.Samples)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for i := 0; i < cfg.Samples; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			scales, err := cfg.Draw(i)
			if err != nil {
				return fmt.Errorf("scenario: draw %d: %w", i, err)
			}
			bt, err := e.Factors.Scaled(scales)
			if err != nil {
				return fmt.Errorf("scenario: draw %d: %w", i, err)
			}
			st, err := bt.Scaled(p.Scales)
			if err != nil {
				return fmt.Errorf("scenario: draw %d: %w", i, err)
			}
			b, err := e.Evaluator.Evaluate(s, bt)
			if err != nil {
				return fmt.Errorf("scenario: draw %d baseline: %w", i, err)
			}
			sc, err := e.Evaluator.Evaluate(p.State, st)
			if err != nil {
				return fmt.Errorf("scenario: draw %d scenario: %w", i, err)
			}
			draws[i] = draw{baseline: b, scenario: sc}
			done[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := 0
	for n < len(done) && done[n] {
		n++
	}
	if n == cfg.Samples {
		return draws, nil
	}
	err := ctx.Err()
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		if err == nil {
			err = context.Canceled
		}
		return nil, err
	}
	if n < cfg.minSamples() {
		return nil, fmt.Errorf("scenario: %d of %d draws completed before the deadline, fewer than the minimum of %d: %w",
			n, cfg.Samples, cfg.minSamples(), err)
	}
	return draws[:n], nil
}
