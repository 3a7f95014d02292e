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

package scenario_test

import (
	"context"
	"errors"
	"io/ioutil"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kr/pretty"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/netimpact"
	"github.com/spatialmodel/netimpact/scenario"
)

func testEngine(t *testing.T, workers int) *scenario.Engine {
	e := scenario.New(factors(t), netimpact.KgPerDay)
	e.Workers = workers
	l := logrus.New()
	l.Out = ioutil.Discard
	e.Log = l
	return e
}

func testUncertainty() scenario.UncertaintyConfig {
	return scenario.UncertaintyConfig{
		Samples: 200,
		Seed:    42,
		Variation: map[string]scenario.Variation{
			"emission.CO2":                                {Distribution: scenario.Normal, Relative: 0.1},
			"emission.PM25":                               {Distribution: scenario.LogNormal, Relative: 0.3},
			netimpact.KeySequestrationBaseRate:            {Distribution: scenario.Uniform, Relative: 0.2},
			"deposition.NOX.leaf_conductance":             {Distribution: scenario.Uniform, Relative: 0.5},
			netimpact.EmissionKey(netimpact.NOx, "truck"): {Distribution: scenario.Normal, Relative: 0.2},
		},
	}
}

func TestSimulate_policyExample(t *testing.T) {
	e := testEngine(t, 4)
	iv := scenario.Combined{
		scenario.TrafficReduction{Percent: 15},
		scenario.Afforestation{AreaKm2: 5},
	}
	r, err := e.Simulate(context.Background(), testState(), iv, testUncertainty())
	if err != nil {
		t.Fatal(err)
	}
	if !(r.Delta.CO2 < 0) {
		t.Errorf("policy impact on CO2 should be negative but is %g", r.Delta.CO2)
	}
	if !(r.Scenario.CO2.Net < r.Baseline.CO2.Net) {
		t.Errorf("scenario net CO2 %g should be below baseline %g", r.Scenario.CO2.Net, r.Baseline.CO2.Net)
	}
	if r.Delta.PM25 >= 0 || r.Delta.NOx >= 0 {
		t.Errorf("PM2.5 and NOx deltas should be negative: %+v", r.Delta)
	}
	for _, res := range []*netimpact.NetImpactResult{r.Baseline, r.Scenario} {
		for _, p := range netimpact.Pollutants {
			b := res.Balance(p)
			if math.Abs(b.Net-(b.Emitted-b.Removed)) > 1.e-9*math.Abs(b.Emitted) {
				t.Errorf("%s: net %g != emitted %g - removed %g", p, b.Net, b.Emitted, b.Removed)
			}
			if b.Removed < 0 {
				t.Errorf("%s: negative removal %g", p, b.Removed)
			}
		}
	}
	u := r.Uncertainty
	if u.CompletedSamples != 200 || u.RequestedSamples != 200 || u.ReducedConfidence {
		t.Errorf("samples: %+v", u)
	}
	for _, s := range []scenario.Summaries{u.Baseline, u.Scenario, u.Delta} {
		for _, p := range netimpact.Pollutants {
			x := s.Summary(p)
			if !(x.P5 <= x.P95) || x.P5 == x.P95 {
				t.Errorf("%s: summary %+v should have a positive spread", p, x)
			}
		}
	}
	if !(u.Delta.CO2.P95 < 0) {
		t.Errorf("the CO2 reduction should be robust to the factor uncertainty: %+v", u.Delta.CO2)
	}
	if len(r.Projections) != 1 || r.Projections[0].Year != 10 {
		t.Errorf("projections: %+v", r.Projections)
	}
	if r.FactorVersion != "arai-cpcb-isfr-2023.1" || len(r.Fingerprint) != 32 {
		t.Errorf("version %q, fingerprint %q", r.FactorVersion, r.Fingerprint)
	}
}

func TestSimulate_deterministic(t *testing.T) {
	iv := scenario.Policy{TrafficReductionPct: 20, AfforestationKm2: 3, FleetUpgradePct: 25, ProjectionYear: 6}.Intervention()
	r1, err := testEngine(t, 1).Simulate(context.Background(), testState(), iv, testUncertainty())
	if err != nil {
		t.Fatal(err)
	}
	r2, err := testEngine(t, 8).Simulate(context.Background(), testState(), iv, testUncertainty())
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(r1, r2); len(diff) > 0 {
		t.Errorf("results differ between runs: %v", diff)
	}

	cfg := testUncertainty()
	cfg.Seed = 43
	r3, err := testEngine(t, 8).Simulate(context.Background(), testState(), iv, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if r3.Uncertainty.Scenario.CO2 == r1.Uncertainty.Scenario.CO2 {
		t.Error("a different seed should give different draws")
	}
	if r3.Fingerprint == r1.Fingerprint {
		t.Error("a different seed should give a different fingerprint")
	}
	if r3.Scenario.CO2.Net != r1.Scenario.CO2.Net {
		t.Error("nominal results should not depend on the seed")
	}
}

func TestSimulate_zeroIntervention(t *testing.T) {
	iv := scenario.Policy{}.Intervention()
	r, err := testEngine(t, 4).Simulate(context.Background(), testState(), iv, testUncertainty())
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(r.Baseline, r.Scenario); len(diff) > 0 {
		t.Errorf("scenario differs from baseline: %v", diff)
	}
	if r.Delta != (scenario.Delta{}) {
		t.Errorf("delta: %+v", r.Delta)
	}
	if diff := pretty.Diff(r.Uncertainty.Baseline, r.Uncertainty.Scenario); len(diff) > 0 {
		t.Errorf("scenario draws differ from baseline draws: %v", diff)
	}
	if r.Uncertainty.Delta != (scenario.Summaries{}) {
		t.Errorf("paired delta: %+v", r.Uncertainty.Delta)
	}
}

func TestSimulate_fullTrafficReduction(t *testing.T) {
	e := testEngine(t, 2)
	cfg := scenario.UncertaintyConfig{Samples: 1}
	r, err := e.Simulate(context.Background(), testState(), scenario.TrafficReduction{Percent: 100}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !(r.Scenario.CO2.Emitted > 0) {
		t.Errorf("emissions at the congestion floor should be positive but are %g", r.Scenario.CO2.Emitted)
	}
	s := testState()
	s.TrafficIndex = 0
	floor, err := e.Evaluate(s)
	if err != nil {
		t.Fatal(err)
	}
	if different(r.Scenario.CO2.Emitted, floor.CO2.Emitted, testTolerance) {
		t.Errorf("emitted %g, want %g at traffic index 0", r.Scenario.CO2.Emitted, floor.CO2.Emitted)
	}
}

func TestSimulate_afforestationMonotone(t *testing.T) {
	e := testEngine(t, 2)
	cfg := scenario.UncertaintyConfig{Samples: 1}
	prev := math.Inf(1)
	for a := 0.; a <= 20; a += 2.5 {
		r, err := e.Simulate(context.Background(), testState(), scenario.Afforestation{AreaKm2: a, ProjectionYear: 3}, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if r.Scenario.CO2.Net > prev {
			t.Errorf("net CO2 increased to %g at %g km² of afforestation", r.Scenario.CO2.Net, a)
		}
		prev = r.Scenario.CO2.Net
	}
}

func TestSimulate_validation(t *testing.T) {
	e := testEngine(t, 2)
	s := testState()
	s.Meteorology.RelativeHumidityPct = 140
	cfg := scenario.UncertaintyConfig{
		Samples:   0,
		Variation: map[string]scenario.Variation{"emission.SO2": {Distribution: "triangular", Relative: 0.1}},
	}
	_, err := e.Simulate(context.Background(), s, scenario.Afforestation{AreaKm2: 25}, cfg)
	var ve *netimpact.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want *ValidationError, have %v", err)
	}
	fields := make(map[string]bool)
	for _, v := range ve.Violations {
		fields[v.Field] = true
	}
	for _, f := range []string{
		"meteorology.humidity_pct",
		"intervention.area_km2",
		"uncertainty.samples",
		"uncertainty.variation[emission.SO2]",
		"uncertainty.variation[emission.SO2].distribution",
	} {
		if !fields[f] {
			t.Errorf("missing violation of %s in %v", f, ve)
		}
	}

	t.Run("lookup", func(t *testing.T) {
		s := testState()
		s.Fleet["bus"] = 10
		_, err := e.Simulate(context.Background(), s, scenario.TrafficReduction{Percent: 10}, scenario.UncertaintyConfig{Samples: 1})
		var le *netimpact.LookupError
		if !errors.As(err, &le) {
			t.Errorf("want *LookupError, have %v", err)
		}
	})
}

// failingEvaluator fails on any factor table other than the nominal one.
type failingEvaluator struct {
	nominal *netimpact.FactorTable
	netimpact.Evaluator
}

func (f failingEvaluator) Evaluate(s *netimpact.BaseState, t *netimpact.FactorTable) (*netimpact.NetImpactResult, error) {
	if t != f.nominal {
		return nil, &netimpact.NumericalError{Op: "test", Value: math.NaN()}
	}
	return f.Evaluator.Evaluate(s, t)
}

func TestSimulate_numericalError(t *testing.T) {
	e := testEngine(t, 3)
	e.Evaluator = failingEvaluator{nominal: e.Factors, Evaluator: e.Evaluator}
	_, err := e.Simulate(context.Background(), testState(), scenario.TrafficReduction{}, testUncertainty())
	var ne *netimpact.NumericalError
	if !errors.As(err, &ne) {
		t.Errorf("want *NumericalError, have %v", err)
	}
}

func TestSimulate_overflowingVariation(t *testing.T) {
	e := testEngine(t, 3)
	cfg := testUncertainty()
	cfg.Variation["emission.CO2"] = scenario.Variation{Distribution: scenario.LogNormal, Relative: 1.7e308}
	if err := e.Validate(testState(), scenario.TrafficReduction{Percent: 10}, cfg); err != nil {
		t.Fatal(err)
	}
	_, err := e.Simulate(context.Background(), testState(), scenario.TrafficReduction{Percent: 10}, cfg)
	var ne *netimpact.NumericalError
	if !errors.As(err, &ne) {
		t.Fatalf("want *NumericalError, have %v", err)
	}

	results := e.SimulateBatch(context.Background(), []scenario.Job{
		{ID: "a", State: testState(), Intervention: scenario.TrafficReduction{Percent: 10}, Uncertainty: testUncertainty()},
		{ID: "b", State: testState(), Intervention: scenario.TrafficReduction{Percent: 10}, Uncertainty: cfg},
	})
	if results[0].Err != nil || results[0].Result == nil {
		t.Errorf("job a: %v", results[0].Err)
	}
	if !errors.As(results[1].Err, &ne) || results[1].Result != nil {
		t.Errorf("job b: %v", results[1].Err)
	}
}

// slowEvaluator blocks until ctx is done once it has been called after
// times.
type slowEvaluator struct {
	netimpact.Evaluator
	ctx   context.Context
	calls *int32
	after int32
}

func (s slowEvaluator) Evaluate(st *netimpact.BaseState, t *netimpact.FactorTable) (*netimpact.NetImpactResult, error) {
	if atomic.AddInt32(s.calls, 1) > s.after {
		<-s.ctx.Done()
	}
	return s.Evaluator.Evaluate(st, t)
}

func TestSimulate_deadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	e := testEngine(t, 1)
	var calls int32
	// Two nominal evaluations and five draws of two branches each
	// complete before sampling slows down.
	e.Evaluator = slowEvaluator{Evaluator: e.Evaluator, ctx: ctx, calls: &calls, after: 12}
	cfg := testUncertainty()
	cfg.MinSamples = 3
	r, err := e.Simulate(ctx, testState(), scenario.TrafficReduction{Percent: 10}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	u := r.Uncertainty
	if !u.ReducedConfidence {
		t.Error("result should have reduced confidence")
	}
	if u.CompletedSamples < 5 || u.CompletedSamples >= cfg.Samples {
		t.Errorf("completed %d of %d samples", u.CompletedSamples, u.RequestedSamples)
	}

	t.Run("too few", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()
		_, err := testEngine(t, 2).Simulate(ctx, testState(), scenario.TrafficReduction{Percent: 10}, testUncertainty())
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("want deadline error, have %v", err)
		}
	})
	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := testEngine(t, 2).Simulate(ctx, testState(), scenario.TrafficReduction{Percent: 10}, testUncertainty())
		if !errors.Is(err, context.Canceled) {
			t.Errorf("want canceled error, have %v", err)
		}
	})
}

func TestSimulateBatch(t *testing.T) {
	e := testEngine(t, 3)
	bad := testState()
	bad.Vegetation.NDVI = 2
	jobs := []scenario.Job{
		{ID: "a", State: testState(), Intervention: scenario.TrafficReduction{Percent: 10}, Uncertainty: testUncertainty()},
		{ID: "b", State: bad, Intervention: scenario.TrafficReduction{Percent: 10}, Uncertainty: testUncertainty()},
		{ID: "c", State: testState(), Intervention: scenario.Afforestation{AreaKm2: 4}, Uncertainty: testUncertainty()},
	}
	results := e.SimulateBatch(context.Background(), jobs)
	if len(results) != 3 {
		t.Fatalf("have %d results", len(results))
	}
	for i, r := range results {
		if r.ID != jobs[i].ID {
			t.Errorf("result %d has ID %s", i, r.ID)
		}
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("unexpected errors: %v, %v", results[0].Err, results[2].Err)
	}
	var ve *netimpact.ValidationError
	if !errors.As(results[1].Err, &ve) || results[1].Result != nil {
		t.Errorf("job b: %v", results[1].Err)
	}

	// Batch results equal individual results.
	single, err := e.Simulate(context.Background(), jobs[2].State, jobs[2].Intervention, jobs[2].Uncertainty)
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(single, results[2].Result); len(diff) > 0 {
		t.Error(diff)
	}

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		for _, r := range e.SimulateBatch(ctx, jobs) {
			if !errors.Is(r.Err, context.Canceled) {
				t.Errorf("job %s: %v", r.ID, r.Err)
			}
		}
	})
}

func TestNewReport(t *testing.T) {
	iv := scenario.Policy{TrafficReductionPct: 15, AfforestationKm2: 5}.Intervention()
	kg, err := testEngine(t, 2).Simulate(context.Background(), testState(), iv, testUncertainty())
	if err != nil {
		t.Fatal(err)
	}
	e := testEngine(t, 2)
	e.Evaluator = scenario.PhysicalPipeline(netimpact.TonnesPerDay)
	tonnes, err := e.Simulate(context.Background(), testState(), iv, testUncertainty())
	if err != nil {
		t.Fatal(err)
	}
	if different(tonnes.Scenario.CO2.Net*1000, kg.Scenario.CO2.Net, testTolerance) {
		t.Errorf("units: %g t/day vs %g kg/day", tonnes.Scenario.CO2.Net, kg.Scenario.CO2.Net)
	}
	r1, err := scenario.NewReport("x", kg)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := scenario.NewReport("x", tonnes)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range [][2]float64{
		{r1.NetCO2Kg, r2.NetCO2Kg},
		{r1.DeltaNOx, r2.DeltaNOx},
		{r1.CI5.PM25, r2.CI5.PM25},
		{r1.DeltaCI95.CO2, r2.DeltaCI95.CO2},
	} {
		if different(v[0], v[1], 1.e-6) {
			t.Errorf("reports in different units differ: %g != %g", v[0], v[1])
		}
	}
	if r1.NetCO2Kg != kg.Scenario.CO2.Net || r1.DeltaCO2 != kg.Delta.CO2 {
		t.Errorf("report: %+v", r1)
	}
	if !(r1.CI5.CO2 <= r1.CI95.CO2) {
		t.Errorf("confidence interval: %g, %g", r1.CI5.CO2, r1.CI95.CO2)
	}
}

func TestSimulate_detailedDeposition(t *testing.T) {
	e := testEngine(t, 4)
	e.Evaluator = scenario.DetailedPipeline(netimpact.KgPerDay)
	iv := scenario.Afforestation{AreaKm2: 5}
	r, err := e.Simulate(context.Background(), testState(), iv, testUncertainty())
	if err != nil {
		t.Fatal(err)
	}
	if !(r.Delta.PM25 < 0) || !(r.Delta.NOx < 0) {
		t.Errorf("afforestation should increase deposition: %+v", r.Delta)
	}

	resistance := testEngine(t, 4)
	r2, err := resistance.Simulate(context.Background(), testState(), iv, testUncertainty())
	if err != nil {
		t.Fatal(err)
	}
	if r.Fingerprint == r2.Fingerprint {
		t.Error("deposition schemes should have different fingerprints")
	}
	if r.Baseline.CO2 != r2.Baseline.CO2 {
		t.Errorf("deposition scheme changed CO2: %+v != %+v", r.Baseline.CO2, r2.Baseline.CO2)
	}
}
