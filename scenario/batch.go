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

package scenario

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/netimpact"
	"golang.org/x/sync/errgroup"
)

// Job is one scenario in a batch.
type Job struct {
	ID           string
	State        *netimpact.BaseState
	Intervention Intervention
	Uncertainty  UncertaintyConfig
}

// JobResult is the outcome of a Job. Exactly one of Result and Err is set.
type JobResult struct {
	ID     string
	Result *Result
	Err    error
}

// SimulateBatch runs jobs concurrently on at most e.Workers goroutines and
// returns their results in the order of jobs. A failed job does not affect
// the others. When ctx is done, jobs that have not started are not run
// and report ctx.Err().
func (e *Engine) SimulateBatch(ctx context.Context, jobs []Job) []JobResult {
	results := make([]JobResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(e.workers())
	for i, j := range jobs {
		results[i].ID = j.ID
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			r, err := e.Simulate(ctx, j.State, j.Intervention, j.Uncertainty)
			if err != nil {
				e.log().WithFields(logrus.Fields{
					"job":   j.ID,
					"error": err,
				}).Error("scenario batch job failed")
			}
			results[i].Result, results[i].Err = r, err
			return nil
		})
	}
	g.Wait()
	return results
}
