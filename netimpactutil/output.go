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

	"github.com/spatialmodel/netimpact/scenario"
	"github.com/tealeg/xlsx"
)

// Output formats.
const (
	formatJSON = "json"
	formatXLSX = "xlsx"
)

// outputFormat returns the format to write to path, inferred from its
// extension when format is empty.
func outputFormat(path, format string) (string, error) {
	if format == "" {
		if strings.EqualFold(filepath.Ext(path), ".xlsx") {
			return formatXLSX, nil
		}
		return formatJSON, nil
	}
	switch f := strings.ToLower(format); f {
	case formatJSON, formatXLSX:
		if f == formatXLSX && path == "" {
			return "", fmt.Errorf("netimpactutil: xlsx output requires an output file")
		}
		return f, nil
	}
	return "", fmt.Errorf("netimpactutil: invalid output format %q; must be json or xlsx", format)
}

// BatchReport is the JSON form of the results of a batch. Failed
// scenarios are listed with their errors.
type BatchReport struct {
	Reports []*scenario.Report `json:"reports"`
	Errors  []JobError         `json:"errors,omitempty"`
}

// JobError is a failed scenario of a batch.
type JobError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// writeOutput writes v as indented JSON, or the reports in b as a
// spreadsheet, to path. An empty path writes to w.
func writeOutput(w io.Writer, path, format string, v interface{}, b *BatchReport) error {
	format, err := outputFormat(path, format)
	if err != nil {
		return err
	}
	path = os.ExpandEnv(path)
	if format == formatXLSX {
		if b == nil {
			return fmt.Errorf("netimpactutil: only scenario reports can be written as xlsx")
		}
		f, err := reportsToXLSX(b)
		if err != nil {
			return err
		}
		if err := f.Save(path); err != nil {
			return fmt.Errorf("netimpactutil: writing %s: %w", path, err)
		}
		return nil
	}
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("netimpactutil: creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	if err := e.Encode(v); err != nil {
		return fmt.Errorf("netimpactutil: writing output: %w", err)
	}
	return nil
}

// reportColumns are the spreadsheet columns of a scenario report.
var reportColumns = []struct {
	name  string
	value func(r *scenario.Report) interface{}
}{
	{"id", func(r *scenario.Report) interface{} { return r.ID }},
	{"net_co2_kg", func(r *scenario.Report) interface{} { return r.NetCO2Kg }},
	{"net_pm25_kg", func(r *scenario.Report) interface{} { return r.NetPM25Kg }},
	{"net_nox_kg", func(r *scenario.Report) interface{} { return r.NetNOxKg }},
	{"ci_5_co2", func(r *scenario.Report) interface{} { return r.CI5.CO2 }},
	{"ci_95_co2", func(r *scenario.Report) interface{} { return r.CI95.CO2 }},
	{"ci_5_pm25", func(r *scenario.Report) interface{} { return r.CI5.PM25 }},
	{"ci_95_pm25", func(r *scenario.Report) interface{} { return r.CI95.PM25 }},
	{"ci_5_nox", func(r *scenario.Report) interface{} { return r.CI5.NOx }},
	{"ci_95_nox", func(r *scenario.Report) interface{} { return r.CI95.NOx }},
	{"delta_co2", func(r *scenario.Report) interface{} { return r.DeltaCO2 }},
	{"delta_pm25", func(r *scenario.Report) interface{} { return r.DeltaPM25 }},
	{"delta_nox", func(r *scenario.Report) interface{} { return r.DeltaNOx }},
	{"baseline_net_co2_kg", func(r *scenario.Report) interface{} { return r.BaselineNetCO2Kg }},
	{"baseline_net_pm25_kg", func(r *scenario.Report) interface{} { return r.BaselineNetPM25Kg }},
	{"baseline_net_nox_kg", func(r *scenario.Report) interface{} { return r.BaselineNetNOxKg }},
	{"method", func(r *scenario.Report) interface{} { return r.Method }},
	{"factor_version", func(r *scenario.Report) interface{} { return r.FactorVersion }},
	{"requested_samples", func(r *scenario.Report) interface{} { return r.RequestedSamples }},
	{"completed_samples", func(r *scenario.Report) interface{} { return r.CompletedSamples }},
	{"reduced_confidence", func(r *scenario.Report) interface{} { return r.ReducedConfidence }},
	{"fingerprint", func(r *scenario.Report) interface{} { return r.Fingerprint }},
}

// reportsToXLSX creates a workbook with one row per report and, if any
// scenarios failed, a second sheet listing the errors.
func reportsToXLSX(b *BatchReport) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("reports")
	if err != nil {
		return nil, fmt.Errorf("netimpactutil: creating spreadsheet: %w", err)
	}
	header := sheet.AddRow()
	for _, c := range reportColumns {
		header.AddCell().SetString(c.name)
	}
	for _, r := range b.Reports {
		row := sheet.AddRow()
		for _, c := range reportColumns {
			cell := row.AddCell()
			switch v := c.value(r).(type) {
			case string:
				cell.SetString(v)
			case float64:
				cell.SetFloat(v)
			case int:
				cell.SetInt(v)
			case bool:
				cell.SetBool(v)
			default:
				panic(fmt.Errorf("netimpactutil: invalid column type %T", v))
			}
		}
	}
	if len(b.Errors) == 0 {
		return f, nil
	}
	errSheet, err := f.AddSheet("errors")
	if err != nil {
		return nil, fmt.Errorf("netimpactutil: creating spreadsheet: %w", err)
	}
	header = errSheet.AddRow()
	header.AddCell().SetString("id")
	header.AddCell().SetString("error")
	for _, e := range b.Errors {
		row := errSheet.AddRow()
		row.AddCell().SetString(e.ID)
		row.AddCell().SetString(e.Error)
	}
	return f, nil
}
