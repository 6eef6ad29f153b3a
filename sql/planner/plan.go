// Package planner turns a parsed SELECT into a cost-estimated plan tree,
// choosing between a table scan and an index scan the way
// toydb's QueryPlanner does: compare an index probe's estimated cost
// against a full scan's and keep whichever is cheaper.
package planner

import (
	"fmt"

	"github.com/nainya/miniql/sql/ast"
)

// NodeKind names the plan node variants.
type NodeKind int

const (
	TableScan NodeKind = iota
	IndexScan
	Filter
	Sort
	Limit
	Project
)

func (k NodeKind) String() string {
	switch k {
	case TableScan:
		return "TableScan"
	case IndexScan:
		return "IndexScan"
	case Filter:
		return "Filter"
	case Sort:
		return "Sort"
	case Limit:
		return "Limit"
	case Project:
		return "Project"
	default:
		return "Unknown"
	}
}

// Node is one plan tree node. Only the fields relevant to Kind are
// populated; the rest are zero.
type Node struct {
	Kind NodeKind
	Child *Node

	EstCost float64
	EstRows int

	// TableScan / IndexScan
	Table string

	// IndexScan
	Index     string
	Column    string
	Condition ast.Expr

	// Filter
	FilterCond  ast.Expr
	Selectivity float64

	// Sort
	OrderBy string

	// Limit
	LimitN int

	// Project
	Items []ast.SelectItem
}

const (
	costTableScanPerRow = 1.0
	costIndexSeek       = 10.0
	costIndexScanPerRow = 0.5
	costFilterPerRow    = 0.1
	costSortPerRow      = 2.0
)

// StatsSource gives the planner row counts and index metadata. *catalog.Catalog
// satisfies it via small adapter methods in the façade package.
type StatsSource interface {
	GetStats(table string) (rowCount int, ok bool)
	UpdateStats(table string, rowCount int) error
	CountRows(table string) (int, error)
	IndexForColumn(table, column string) (indexName string, ok bool)
}

// Plan builds a cost-estimated plan tree for sel.
func Plan(sel *ast.Select, stats StatsSource) (*Node, error) {
	totalRows, ok := stats.GetStats(sel.From)
	if !ok {
		counted, err := stats.CountRows(sel.From)
		if err != nil {
			return nil, err
		}
		totalRows = counted
		if err := stats.UpdateStats(sel.From, totalRows); err != nil {
			return nil, err
		}
	}

	scan := chooseAccessMethod(sel, stats, totalRows)

	plan := scan
	if sel.Where != nil && scan.Kind != IndexScan {
		selectivity := estimateSelectivity(sel.Where)
		plan = &Node{
			Kind:        Filter,
			Child:       scan,
			FilterCond:  sel.Where,
			Selectivity: selectivity,
			EstCost:     scan.EstCost + float64(scan.EstRows)*costFilterPerRow,
			EstRows:     int(float64(scan.EstRows) * selectivity),
		}
	}

	if sel.OrderBy != "" {
		plan = &Node{
			Kind:    Sort,
			Child:   plan,
			OrderBy: sel.OrderBy,
			EstCost: plan.EstCost + float64(plan.EstRows)*costSortPerRow,
			EstRows: plan.EstRows,
		}
	}

	if sel.Limit != nil {
		limitedRows := *sel.Limit
		if plan.EstRows < limitedRows {
			limitedRows = plan.EstRows
		}
		denom := plan.EstRows
		if denom < 1 {
			denom = 1
		}
		plan = &Node{
			Kind:    Limit,
			Child:   plan,
			LimitN:  *sel.Limit,
			EstCost: plan.EstCost * (float64(limitedRows) / float64(denom)),
			EstRows: limitedRows,
		}
	}

	plan = &Node{
		Kind:    Project,
		Child:   plan,
		Items:   sel.Items,
		EstCost: plan.EstCost,
		EstRows: plan.EstRows,
	}

	return plan, nil
}

func chooseAccessMethod(sel *ast.Select, stats StatsSource, totalRows int) *Node {
	tableScan := &Node{
		Kind:    TableScan,
		Table:   sel.From,
		EstCost: float64(totalRows) * costTableScanPerRow,
		EstRows: totalRows,
	}

	if sel.Where == nil {
		return tableScan
	}

	indexName, column, estRows, ok := findIndexForCondition(sel.From, sel.Where, stats, totalRows)
	if !ok {
		return tableScan
	}

	indexCost := costIndexSeek + float64(estRows)*costIndexScanPerRow
	indexScan := &Node{
		Kind:      IndexScan,
		Table:     sel.From,
		Index:     indexName,
		Column:    column,
		Condition: sel.Where,
		EstCost:   indexCost,
		EstRows:   estRows,
	}

	if indexCost < tableScan.EstCost {
		return indexScan
	}
	return tableScan
}

func findIndexForCondition(table string, cond ast.Expr, stats StatsSource, totalRows int) (indexName, column string, estRows int, ok bool) {
	bin, isBinary := cond.(*ast.BinaryExpr)
	if !isBinary {
		return "", "", 0, false
	}
	colRef, isCol := bin.Left.(*ast.QualifiedName)
	if !isCol {
		return "", "", 0, false
	}

	switch bin.Op {
	case "=":
		name, found := stats.IndexForColumn(table, colRef.Name)
		if !found {
			return "", "", 0, false
		}
		est := int(float64(totalRows) * 0.01)
		if est < 1 {
			est = 1
		}
		return name, colRef.Name, est, true
	case ">", "<", ">=", "<=":
		name, found := stats.IndexForColumn(table, colRef.Name)
		if !found {
			return "", "", 0, false
		}
		est := int(float64(totalRows) * 0.3)
		if est < 1 {
			est = 1
		}
		return name, colRef.Name, est, true
	default:
		return "", "", 0, false
	}
}

func estimateSelectivity(cond ast.Expr) float64 {
	bin, ok := cond.(*ast.BinaryExpr)
	if !ok {
		return 0.10
	}
	switch bin.Op {
	case "=":
		return 0.01
	case "!=":
		return 0.99
	case "<", ">", "<=", ">=":
		return 0.33
	case "AND":
		return estimateSelectivity(bin.Left) * estimateSelectivity(bin.Right)
	case "OR":
		sum := estimateSelectivity(bin.Left) + estimateSelectivity(bin.Right)
		if sum > 1.0 {
			return 1.0
		}
		return sum
	default:
		return 0.10
	}
}

// String renders plan for debugging; EXPLAIN uses explain.go's dedicated
// indentation format instead.
func (n *Node) String() string {
	return fmt.Sprintf("%s [cost=%.1f, rows=%d]", n.Kind, n.EstCost, n.EstRows)
}
