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

// Package netimpactutil contains the command-line interface of NetImpact.
package netimpactutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/netimpact"
	"github.com/spatialmodel/netimpact/scenario"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version is the version of NetImpact.
const Version = "1.0.0"

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	scenarioFlags := []*pflag.FlagSet{simulateCmd.Flags(), batchCmd.Flags()}
	engineFlags := []*pflag.FlagSet{evaluateCmd.Flags(), simulateCmd.Flags(), batchCmd.Flags()}

	// Options are the configuration options available to NetImpact.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum severity of log messages: debug,
              info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogFormat",
			usage: `
              LogFormat is the format of log messages: text or json.`,
			defaultVal: "text",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "FactorFile",
			usage: `
              FactorFile is the path to a TOML file holding the emission,
              sequestration and deposition factors. If it is empty, the
              factor table compiled into the program is used.`,
			defaultVal: "",
			flagsets:   append([]*pflag.FlagSet{factorsCmd.Flags()}, engineFlags...),
		},
		{
			name: "Evaluator",
			usage: `
              Evaluator selects how net impacts are calculated: 'physical'
              runs the emission, sequestration and deposition models and
              'surface' uses a predictive surface.`,
			defaultVal: netimpact.MethodPhysical,
			flagsets:   engineFlags,
		},
		{
			name: "DepositionScheme",
			usage: `
              DepositionScheme selects the canopy deposition model of the
              physical evaluator: 'resistance' uses the calibrated resistance
              network of the factor table and 'detailed' uses the particle
              and gas parameterizations of Seinfeld and Pandis (2006) with
              Wesely (1989) surface resistances.`,
			defaultVal: "resistance",
			flagsets:   engineFlags,
		},
		{
			name: "SurfaceFile",
			usage: `
              SurfaceFile is the path to a TOML file holding the predictive
              surface used when Evaluator is 'surface'. If it is empty, a
              linearized approximation of the physical models is used.`,
			defaultVal: "",
			flagsets:   engineFlags,
		},
		{
			name: "Units",
			usage: `
              Units are the units of the net impact results: kg/day or t/day.
              Scenario reports are always in kg/day.`,
			defaultVal: string(netimpact.KgPerDay),
			flagsets:   engineFlags,
		},
		{
			name: "Workers",
			usage: `
              Workers is the maximum number of Monte Carlo draws or batch
              scenarios evaluated concurrently. Zero means the number of
              processors.`,
			shorthand:  "w",
			defaultVal: 0,
			flagsets:   scenarioFlags,
		},
		{
			name: "Timeout",
			usage: `
              Timeout is the time allowed for a request, e.g. 30s. When
              it expires during sampling, the draws completed so far are
              reported with reduced confidence. Empty means no limit.`,
			defaultVal: "",
			flagsets:   scenarioFlags,
		},
		{
			name: "Samples",
			usage: `
              Samples is the number of Monte Carlo draws of requests that
              do not specify their own uncertainty settings.`,
			shorthand:  "n",
			defaultVal: 1000,
			flagsets:   scenarioFlags,
		},
		{
			name: "MinSamples",
			usage: `
              MinSamples is the fewest completed draws accepted when a
              request times out. Zero means 1.`,
			defaultVal: 100,
			flagsets:   scenarioFlags,
		},
		{
			name: "Seed",
			usage: `
              Seed is the random seed of the Monte Carlo draws.`,
			defaultVal: 42,
			flagsets:   scenarioFlags,
		},
		{
			name: "Variation",
			usage: `
              Variation maps factor names to their relative uncertainty in
              the form distribution:relative, where distribution is
              uniform, normal or lognormal.`,
			defaultVal: map[string]string{
				"emission.CO2":                     "normal:0.1",
				"emission.PM25":                    "lognormal:0.3",
				"emission.NOX":                     "lognormal:0.2",
				"sequestration.base_rate":          "uniform:0.2",
				"deposition.PM25.leaf_conductance": "uniform:0.3",
				"deposition.NOX.leaf_conductance":  "uniform:0.3",
			},
			flagsets: scenarioFlags,
		},
		{
			name: "Output",
			usage: `
              Output is the path of the output file. If it is empty, output
              is written to standard output.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   append([]*pflag.FlagSet{factorsCmd.Flags(), citiesCmd.Flags()}, engineFlags...),
		},
		{
			name: "OutputFormat",
			usage: `
              OutputFormat is json or xlsx. If it is empty, it is inferred
              from the extension of Output.`,
			defaultVal: "",
			flagsets:   scenarioFlags,
		},
		{
			name: "wards",
			usage: `
              wards is the number of equal wards a city is divided into
              when creating an example request.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{citiesCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("NETIMPACT")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				json.NewEncoder(b).Encode(v)
				set.StringP(option.name, option.shorthand, b.String(), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(evaluateCmd)
	Root.AddCommand(simulateCmd)
	Root.AddCommand(batchCmd)
	Root.AddCommand(factorsCmd)
	Root.AddCommand(citiesCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and configures logging.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("netimpact: problem reading configuration file: %v", err)
		}
	}
	return setLogging(Cfg)
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "netimpact",
	Short: "Net urban air pollutant balance under policy scenarios.",
	Long: `NetImpact estimates the net daily balance of CO2, PM2.5 and NOx in
a city or ward: vehicular emissions minus removal by forest sequestration and
canopy deposition. It simulates traffic reduction, afforestation and fleet
modernization policies with Monte Carlo uncertainty bands.

Requests are JSON or TOML files; use the 'cities' subcommand to create an
example. Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using command-line
arguments, or by setting environment variables in the format 'NETIMPACT_var'
where 'var' is the name of the variable to be set.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of NetImpact.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "NetImpact v%s\n", Version)
	},
	DisableAutoGenTag: true,
}

// evaluation is the output of the evaluate command.
type evaluation struct {
	ID            string                     `json:"id"`
	FactorVersion string                     `json:"factor_version"`
	Result        *netimpact.NetImpactResult `json:"result"`
	// Efficiency is the removal per km² of forest.
	Efficiency netimpact.Efficiency `json:"efficiency"`
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate REQUEST",
	Short: "Calculate the current net impact of a spatial unit.",
	Long: `evaluate calculates the net balance of each pollutant for the state
in the REQUEST file (or standard input if REQUEST is '-') without applying
any policy.`,
	Args:              cobra.ExactArgs(1),
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := ReadRequest(args[0], os.Stdin)
		if err != nil {
			return err
		}
		e, err := NewEngine(Cfg)
		if err != nil {
			return err
		}
		s, err := req.State.BaseState()
		if err != nil {
			return err
		}
		r, err := e.Evaluate(s)
		if err != nil {
			return err
		}
		out := evaluation{
			ID:            req.ID,
			FactorVersion: e.Factors.Version(),
			Result:        r,
			Efficiency:    netimpact.RemovalEfficiency(r, s.Vegetation.ForestAreaKm2),
		}
		return writeOutput(cmd.OutOrStdout(), Cfg.GetString("Output"), formatJSON, out, nil)
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate REQUEST",
	Short: "Simulate a policy scenario.",
	Long: `simulate evaluates the policy in the REQUEST file (or standard input
if REQUEST is '-') against its baseline state and reports the change in net
balance of each pollutant with Monte Carlo confidence intervals.`,
	Args:              cobra.ExactArgs(1),
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := ReadRequest(args[0], os.Stdin)
		if err != nil {
			return err
		}
		b, err := runBatch([]Request{*req})
		if err != nil {
			return err
		}
		if len(b.Errors) > 0 {
			return fmt.Errorf("netimpact: scenario %s: %s", b.Errors[0].ID, b.Errors[0].Error)
		}
		return writeOutput(cmd.OutOrStdout(), Cfg.GetString("Output"), Cfg.GetString("OutputFormat"), b.Reports[0], b)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch BATCHFILE",
	Short: "Simulate several policy scenarios.",
	Long: `batch simulates every scenario in BATCHFILE concurrently. A scenario
that fails does not affect the others; failures are listed in the output.`,
	Args:              cobra.ExactArgs(1),
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := ReadBatch(args[0], os.Stdin)
		if err != nil {
			return err
		}
		b, err := runBatch(req.Scenarios)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), Cfg.GetString("Output"), Cfg.GetString("OutputFormat"), b, b)
	},
}

// runBatch simulates the scenarios in reqs. Requests that cannot be
// converted to jobs are reported as failed scenarios.
func runBatch(reqs []Request) (*BatchReport, error) {
	e, err := NewEngine(Cfg)
	if err != nil {
		return nil, err
	}
	def, err := UncertaintyConfig(Cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel, err := requestContext(Cfg)
	if err != nil {
		return nil, err
	}
	defer cancel()

	b := new(BatchReport)
	jobs := make([]scenario.Job, 0, len(reqs))
	for i := range reqs {
		j, err := reqs[i].Job(def)
		if err != nil {
			b.Errors = append(b.Errors, JobError{ID: reqs[i].ID, Error: err.Error()})
			continue
		}
		jobs = append(jobs, j)
	}
	for _, r := range e.SimulateBatch(ctx, jobs) {
		if r.Err != nil {
			b.Errors = append(b.Errors, JobError{ID: r.ID, Error: r.Err.Error()})
			continue
		}
		rep, err := scenario.NewReport(r.ID, r.Result)
		if err != nil {
			return nil, err
		}
		b.Reports = append(b.Reports, rep)
	}
	logrus.WithFields(logrus.Fields{
		"succeeded": len(b.Reports),
		"failed":    len(b.Errors),
	}).Info("netimpact: scenarios complete")
	return b, nil
}

var factorsCmd = &cobra.Command{
	Use:   "factors",
	Short: "Print the factor table.",
	Long: `factors prints the factor table in use in TOML format. The output can
be edited and passed back with the FactorFile option.`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := FactorTable(Cfg)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if path := os.ExpandEnv(Cfg.GetString("Output")); path != "" {
			o, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("netimpact: creating output file: %v", err)
			}
			defer o.Close()
			w = o
		}
		return toml.NewEncoder(w).Encode(f.Source())
	},
}

var citiesCmd = &cobra.Command{
	Use:   "cities [CITY]",
	Short: "List the city catalogue or create an example request.",
	Long: `cities lists the cities in the catalogue. If CITY is given, it instead
prints an example request for the first of --wards equal wards of the city,
with the city's fleet and forest cover and typical values for the remaining
fields.`,
	Args:              cobra.MaximumNArgs(1),
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var out interface{}
		if len(args) == 0 {
			out = netimpact.Cities()
		} else {
			req, err := ExampleRequest(args[0], Cfg.GetInt("wards"))
			if err != nil {
				return err
			}
			out = req
		}
		return writeOutput(cmd.OutOrStdout(), Cfg.GetString("Output"), formatJSON, out, nil)
	},
}

// ExampleRequest returns a request for ward 1 of wards equal wards of
// city, using the catalogue fleet and forest cover.
func ExampleRequest(city string, wards int) (*Request, error) {
	c, err := netimpact.LookupCity(city)
	if err != nil {
		return nil, err
	}
	fleet, err := c.WardFleet(wards)
	if err != nil {
		return nil, err
	}
	u, forest, err := c.WardUnit(1, wards)
	if err != nil {
		return nil, err
	}
	in := netimpact.Input{
		City:               u.City,
		Ward:               u.Ward,
		AreaKm2:            netimpact.Float64(forest * 100 / c.TreeCoverPct),
		UndevelopedAreaKm2: netimpact.Float64(forest * 0.5),
		PopulationDensity:  netimpact.Float64(10000),
		Fleet:              make(map[string]float64, len(fleet)),
		DistanceKm:         netimpact.Float64(25),
		TrafficIndex:       netimpact.Float64(60),
		AvgSpeedKph:        netimpact.Float64(25),
		RoadGradePct:       netimpact.Float64(0),
		DurationHours:      netimpact.Float64(24),
		TempC:              netimpact.Float64(28),
		HumidityPct:        netimpact.Float64(65),
		WindMS:             netimpact.Float64(2.5),
		Season:             netimpact.String(string(netimpact.OtherSeason)),
		ForestAreaKm2:      netimpact.Float64(forest),
		NDVI:               netimpact.Float64(0.45),
		LAI:                netimpact.Float64(2.5),
		PM25UgM3:           netimpact.Float64(80),
		NOxUgM3:            netimpact.Float64(40),
	}
	for k, n := range fleet {
		in.Fleet[string(k)] = n
	}
	return &Request{
		ID:     u.Ward,
		State:  in,
		Policy: &scenario.Policy{TrafficReductionPct: 15, AfforestationKm2: forest * 0.1},
	}, nil
}
