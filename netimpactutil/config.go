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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/netimpact"
	"github.com/spatialmodel/netimpact/scenario"
	"github.com/spatialmodel/netimpact/surface/exprsurface"
	"github.com/spf13/cast"
)

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	switch i := cfg.Get(varName).(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return i, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(i)
	case string:
		if strings.TrimSpace(i) == "" {
			return nil, nil
		}
		o := make(map[string]string)
		if err := json.NewDecoder(bytes.NewBufferString(i)).Decode(&o); err != nil {
			return nil, fmt.Errorf("netimpactutil: parsing %s: %w", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("netimpactutil: invalid type for %s: %#v", varName, i)
	}
}

// FactorTable returns the factor table at FactorFile, or the default
// table if FactorFile is empty.
func FactorTable(cfg *viper.Viper) (*netimpact.FactorTable, error) {
	if path := os.ExpandEnv(cfg.GetString("FactorFile")); path != "" {
		return netimpact.LoadFactorTableFile(path)
	}
	return netimpact.DefaultFactorTable()
}

// evaluator returns the Evaluator selected by the Evaluator option.
func evaluator(cfg *viper.Viper) (netimpact.Evaluator, error) {
	u, err := netimpact.ParseUnits(cfg.GetString("Units"))
	if err != nil {
		return nil, err
	}
	switch e := strings.ToLower(cfg.GetString("Evaluator")); e {
	case netimpact.MethodPhysical:
		switch d := strings.ToLower(cfg.GetString("DepositionScheme")); d {
		case scenario.ResistanceScheme, "":
			return scenario.PhysicalPipeline(u), nil
		case scenario.DetailedScheme:
			return scenario.DetailedPipeline(u), nil
		default:
			return nil, fmt.Errorf("netimpactutil: DepositionScheme must be %s or %s but is %q",
				scenario.ResistanceScheme, scenario.DetailedScheme, d)
		}
	case netimpact.MethodSurface:
		var s *exprsurface.Surface
		if path := os.ExpandEnv(cfg.GetString("SurfaceFile")); path != "" {
			s, err = exprsurface.LoadFile(path)
		} else {
			s, err = exprsurface.Default()
		}
		if err != nil {
			return nil, err
		}
		return &netimpact.SurfaceEvaluator{Surface: s, Units: u}, nil
	default:
		return nil, fmt.Errorf("netimpactutil: Evaluator must be %s or %s but is %q",
			netimpact.MethodPhysical, netimpact.MethodSurface, e)
	}
}

// NewEngine creates a scenario engine from the configuration.
func NewEngine(cfg *viper.Viper) (*scenario.Engine, error) {
	f, err := FactorTable(cfg)
	if err != nil {
		return nil, err
	}
	e, err := evaluator(cfg)
	if err != nil {
		return nil, err
	}
	workers := cfg.GetInt("Workers")
	if workers < 0 {
		return nil, fmt.Errorf("netimpactutil: Workers must be >= 0 but is %d", workers)
	}
	return &scenario.Engine{
		Factors:   f,
		Evaluator: e,
		Workers:   workers,
		Log:       logrus.StandardLogger(),
	}, nil
}

// parseVariation parses a variation in the form "distribution:relative",
// e.g. "normal:0.1".
func parseVariation(s string) (scenario.Variation, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return scenario.Variation{}, fmt.Errorf("variation %q is not in the form distribution:relative", s)
	}
	r, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return scenario.Variation{}, fmt.Errorf("variation %q: %v", s, err)
	}
	return scenario.Variation{
		Distribution: scenario.Distribution(strings.ToLower(strings.TrimSpace(parts[0]))),
		Relative:     r,
	}, nil
}

// UncertaintyConfig returns the default uncertainty settings of requests.
func UncertaintyConfig(cfg *viper.Viper) (scenario.UncertaintyConfig, error) {
	seed, err := cast.ToInt64E(cfg.Get("Seed"))
	if err != nil {
		return scenario.UncertaintyConfig{}, fmt.Errorf("netimpactutil: Seed: %w", err)
	}
	if seed < 0 {
		return scenario.UncertaintyConfig{}, fmt.Errorf("netimpactutil: Seed must be >= 0 but is %d", seed)
	}
	vars, err := GetStringMapString("Variation", cfg)
	if err != nil {
		return scenario.UncertaintyConfig{}, err
	}
	c := scenario.UncertaintyConfig{
		Samples:    cfg.GetInt("Samples"),
		Seed:       uint64(seed),
		MinSamples: cfg.GetInt("MinSamples"),
		Variation:  make(map[string]scenario.Variation, len(vars)),
	}
	for k, s := range vars {
		v, err := parseVariation(s)
		if err != nil {
			return scenario.UncertaintyConfig{}, fmt.Errorf("netimpactutil: Variation.%s: %w", k, err)
		}
		c.Variation[k] = v
	}
	return c, nil
}

// requestContext returns a context that expires after the Timeout option,
// if it is set.
func requestContext(cfg *viper.Viper) (context.Context, context.CancelFunc, error) {
	t := cfg.Get("Timeout")
	if s, ok := t.(string); t == nil || ok && s == "" {
		ctx, cancel := context.WithCancel(context.Background())
		return ctx, cancel, nil
	}
	d, err := cast.ToDurationE(t)
	if err != nil {
		return nil, nil, fmt.Errorf("netimpactutil: Timeout: %w", err)
	}
	if d <= 0 {
		ctx, cancel := context.WithCancel(context.Background())
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	return ctx, cancel, nil
}

// setLogging configures the standard logger from the LogLevel and
// LogFormat options.
func setLogging(cfg *viper.Viper) error {
	level, err := logrus.ParseLevel(cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("netimpactutil: %w", err)
	}
	logrus.SetLevel(level)
	switch f := strings.ToLower(cfg.GetString("LogFormat")); f {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("netimpactutil: LogFormat must be text or json but is %q", f)
	}
	logrus.SetOutput(os.Stderr)
	return nil
}
