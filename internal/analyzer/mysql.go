package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

type mysqlExplainer struct{}

// explain uses FORMAT=JSON. MySQL's EXPLAIN ANALYZE only prints a text tree, so analyze
// is refused.
func (mysqlExplainer) explain(ctx context.Context, f Fetcher, sql string, args []interface{}, analyze bool) (*Plan, error) {
	if analyze {
		return nil, fmt.Errorf("%w: mysql", ErrAnalyzeUnsupported)
	}
	raw, err := fetchString(ctx, f, "explain format=json "+sql, args)
	if err != nil {
		return nil, err
	}
	return parseMySQL(raw)
}

type mysqlRoot struct {
	QueryBlock mysqlBlock `json:"query_block"`
}

type mysqlBlock struct {
	CostInfo   mysqlCost   `json:"cost_info"`
	Table      *mysqlTable `json:"table"`
	NestedLoop []mysqlLoop `json:"nested_loop"`
	Grouping   *mysqlBlock `json:"grouping_operation"`
	Ordering   *mysqlBlock `json:"ordering_operation"`
}

type mysqlLoop struct {
	Table *mysqlTable `json:"table"`
}

type mysqlTable struct {
	AccessType          string `json:"access_type"`
	Key                 string `json:"key"`
	RowsExaminedPerScan int64  `json:"rows_examined_per_scan"`
	RowsProducedPerJoin int64  `json:"rows_produced_per_join"`
}

type mysqlCost struct {
	QueryCost string `json:"query_cost"`
}

func parseMySQL(raw string) (*Plan, error) {
	var root mysqlRoot
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return nil, fmt.Errorf("analyzer: parse mysql plan: %w", err)
	}
	p := &Plan{Raw: raw, Backend: "mysql"}
	if root.QueryBlock.CostInfo.QueryCost != "" {
		cost, err := strconv.ParseFloat(root.QueryBlock.CostInfo.QueryCost, 64)
		if err != nil {
			return nil, fmt.Errorf("analyzer: parse mysql cost: %w", err)
		}
		p.Cost = cost
	}
	walkMySQL(&root.QueryBlock, p)
	return p, nil
}

func walkMySQL(b *mysqlBlock, p *Plan) {
	if b == nil {
		return
	}
	mysqlTableMetrics(b.Table, p)
	for _, l := range b.NestedLoop {
		mysqlTableMetrics(l.Table, p)
	}
	walkMySQL(b.Grouping, p)
	walkMySQL(b.Ordering, p)
}

func mysqlTableMetrics(t *mysqlTable, p *Plan) {
	if t == nil {
		return
	}
	if t.Key != "" {
		setIndex(p, t.Key)
	}
	if t.AccessType == "ALL" {
		p.FullScan = true
	}
	p.EstimatedRows += t.RowsExaminedPerScan
	p.RowsExamined += t.RowsExaminedPerScan
	p.RowsProduced += t.RowsProducedPerJoin
}
