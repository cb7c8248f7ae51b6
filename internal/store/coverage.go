package store

import (
	"context"
	"fmt"
	"time"

	"arhida/internal/dates"
)

// coveredDatesStmt selects the calendar dates that already hold at least one
// record whose set memberships contain the topic. JSONB array containment of
// a scalar matches any element.
const coveredDatesStmt = `SELECT DISTINCT date(header_datestamp) AS harvest_date
FROM %s.%s
WHERE header_setspecs @> to_jsonb($1::text)
  AND date(header_datestamp) BETWEEN $2::date AND $3::date
ORDER BY harvest_date`

// Coverage answers which dates of a range still lack stored records for a
// topic. Results are a pure function of the store state and the input range.
type Coverage struct {
	db   DBTX
	stmt string
}

func NewCoverage(db DBTX, schema, table string) *Coverage {
	return &Coverage{db: db, stmt: fmt.Sprintf(coveredDatesStmt, schema, table)}
}

// MissingDates returns the days in [from, until], ascending, with no stored
// record for topic. An inverted range yields an empty result, not an error.
func (c *Coverage) MissingDates(ctx context.Context, topic string, from, until time.Time) ([]time.Time, error) {
	if from.After(until) {
		return nil, nil
	}
	rows, err := c.db.Query(ctx, c.stmt, topic, from, until)
	if err != nil {
		return nil, fmt.Errorf("covered dates for %s: %w", topic, err)
	}
	defer rows.Close()

	covered := make(map[string]bool)
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		covered[d.Format(dates.Layout)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return missingDays(dates.Window{From: from, Until: until}, covered), nil
}

// missingDays diffs the window's day enumeration against the covered set.
func missingDays(w dates.Window, covered map[string]bool) []time.Time {
	var missing []time.Time
	for _, day := range w.Days() {
		if !covered[day.Format(dates.Layout)] {
			missing = append(missing, day)
		}
	}
	return missing
}
