package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type postgresExplainer struct{}

func (postgresExplainer) explain(ctx context.Context, f Fetcher, sql string, args []interface{}, analyze bool) (*Plan, error) {
	prefix := "explain (format json) "
	if analyze {
		prefix = "explain (analyze, buffers, format json) "
	}
	raw, err := fetchString(ctx, f, prefix+sql, args)
	if err != nil {
		return nil, err
	}
	return parsePostgres(raw, analyze)
}

type postgresRoot struct {
	Plan          postgresNode `json:"Plan"`
	ExecutionTime float64      `json:"Execution Time"` // ms, analyze only
}

type postgresNode struct {
	NodeType         string         `json:"Node Type"`
	IndexName        string         `json:"Index Name"`
	TotalCost        float64        `json:"Total Cost"`
	PlanRows         int64          `json:"Plan Rows"`
	ActualRows       int64          `json:"Actual Rows"`
	ActualLoops      int64          `json:"Actual Loops"`
	SharedHitBlocks  int64          `json:"Shared Hit Blocks"`
	SharedReadBlocks int64          `json:"Shared Read Blocks"`
	Plans            []postgresNode `json:"Plans"`
}

func parsePostgres(raw string, analyze bool) (*Plan, error) {
	var roots []postgresRoot
	if err := json.Unmarshal([]byte(raw), &roots); err != nil {
		return nil, fmt.Errorf("analyzer: parse postgres plan: %w", err)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("analyzer: parse postgres plan: empty")
	}
	root := roots[0]
	p := &Plan{
		Cost:          root.Plan.TotalCost,
		EstimatedRows: root.Plan.PlanRows,
		Raw:           raw,
		Backend:       "postgres",
	}
	walkPostgres(&root.Plan, p, analyze)
	if analyze {
		p.ActualTime = time.Duration(root.ExecutionTime * float64(time.Millisecond))
	}
	return p, nil
}

func walkPostgres(n *postgresNode, p *Plan, analyze bool) {
	switch {
	case strings.Contains(n.NodeType, "Index"):
		setIndex(p, n.IndexName)
	case n.NodeType == "Seq Scan":
		p.FullScan = true
	}
	if analyze {
		p.ActualRows += n.ActualRows * max(n.ActualLoops, 1)
		p.BuffersHit += n.SharedHitBlocks
		p.BuffersMiss += n.SharedReadBlocks
	}
	for i := range n.Plans {
		walkPostgres(&n.Plans[i], p, analyze)
	}
}
