package analyzer

import (
	"context"
	"fmt"
	"strings"
)

type sqliteExplainer struct{}

// explain uses EXPLAIN QUERY PLAN, whose rows are (id, parent, notused, detail).
func (sqliteExplainer) explain(ctx context.Context, f Fetcher, sql string, args []interface{}, analyze bool) (*Plan, error) {
	if analyze {
		return nil, fmt.Errorf("%w: sqlite", ErrAnalyzeUnsupported)
	}
	rows, err := f.Fetch(ctx, "explain query plan "+sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var id, parent, notused int64
		var detail string
		if err := rows.Scan(&id, &parent, &notused, &detail); err != nil {
			return nil, fmt.Errorf("analyzer: scan explain output: %w", err)
		}
		lines = append(lines, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return parseSQLite(lines), nil
}

// parseSQLite reads lines such as
//
//	SCAN users
//	SEARCH users USING INDEX users_email_idx (email=?)
//	SEARCH users USING INTEGER PRIMARY KEY (rowid=?)
func parseSQLite(lines []string) *Plan {
	p := &Plan{Raw: strings.Join(lines, "\n"), Backend: "sqlite"}
	for _, line := range lines {
		upper := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.Contains(upper, "USING COVERING INDEX "):
			setIndex(p, indexAfter(line, "USING COVERING INDEX "))
		case strings.Contains(upper, "USING INDEX "):
			setIndex(p, indexAfter(line, "USING INDEX "))
		case strings.Contains(upper, "USING INTEGER PRIMARY KEY"), strings.Contains(upper, "USING PRIMARY KEY"):
			setIndex(p, "PRIMARY KEY")
		case strings.Contains(upper, "USING AUTOMATIC"):
			setIndex(p, "AUTOMATIC INDEX")
		case strings.HasPrefix(upper, "SCAN "):
			p.FullScan = true
		}
	}
	return p
}

// indexAfter returns the word following marker in line, up to a space or parenthesis.
func indexAfter(line, marker string) string {
	i := strings.Index(strings.ToUpper(line), marker)
	rest := strings.TrimSpace(line[i+len(marker):])
	if j := strings.IndexAny(rest, " ("); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
