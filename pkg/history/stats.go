package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/cuttingtool/toolinspect/pkg/types"
)

// RetentionStatus describes how history is kept: the prune schedule, the
// maximum age in days (0 keeps reports until the limit pushes them out) and
// the entry limit.
type RetentionStatus struct {
	Cron    string    `json:"cron"`
	Days    int       `json:"days"`
	Limit   int       `json:"limit"`
	NextRun time.Time `json:"nextRun,omitempty"`
}

// AngleStats aggregates every stored measurement of one angle name.
type AngleStats struct {
	AngleName      string  `json:"angleName"`
	Count          int     `json:"count"`
	Mean           float64 `json:"mean"`
	StdDev         float64 `json:"stdDev"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	ComplianceRate float64 `json:"complianceRate"`
}

// Stats summarizes the stored history.
type Stats struct {
	Reports int          `json:"reports"`
	Failed  int          `json:"failed"`
	Angles  []AngleStats `json:"angles"`
}

// Stats computes per-angle statistics across all stored reports, optionally
// restricted to one tool material.
func (s *Store) Stats(ctx context.Context, material string) (Stats, error) {
	query := `SELECT results, error FROM reports`
	var args []any
	if material != "" {
		query += ` WHERE material = ?`
		args = append(args, material)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Stats{}, errors.Wrap(err, "failed to query history")
	}
	defer rows.Close()

	var (
		st        = Stats{Angles: []AngleStats{}}
		values    = map[string][]float64{}
		compliant = map[string]int{}
	)
	for rows.Next() {
		var (
			results sql.NullString
			errMsg  string
		)
		if err := rows.Scan(&results, &errMsg); err != nil {
			return Stats{}, errors.Wrap(err, "failed to scan report")
		}
		st.Reports++
		if errMsg != "" {
			st.Failed++
			continue
		}
		if !results.Valid {
			continue
		}

		var ms []types.AngleMeasurement
		if err := json.Unmarshal([]byte(results.String), &ms); err != nil {
			return Stats{}, errors.Wrap(err, "failed to decode results")
		}
		for _, m := range ms {
			values[m.AngleName] = append(values[m.AngleName], m.MeasuredValue)
			if m.IsCompliant {
				compliant[m.AngleName]++
			}
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, errors.Wrap(err, "failed to iterate history")
	}

	for name, vs := range values {
		st.Angles = append(st.Angles, summarize(name, vs, compliant[name]))
	}
	sort.Slice(st.Angles, func(i, j int) bool {
		return st.Angles[i].AngleName < st.Angles[j].AngleName
	})
	return st, nil
}

func summarize(name string, vs []float64, compliant int) AngleStats {
	a := AngleStats{
		AngleName:      name,
		Count:          len(vs),
		Mean:           stat.Mean(vs, nil),
		Min:            floats.Min(vs),
		Max:            floats.Max(vs),
		ComplianceRate: float64(compliant) / float64(len(vs)),
	}
	// The sample deviation is undefined for a single value.
	if len(vs) > 1 {
		a.StdDev = stat.StdDev(vs, nil)
	}
	return a
}
