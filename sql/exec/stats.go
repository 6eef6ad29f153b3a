package exec

import "github.com/nainya/miniql/catalog"

// catalogStats adapts *catalog.Catalog (plus direct table-count access) to
// planner.StatsSource.
type catalogStats struct {
	catalog *catalog.Catalog
	engine  Engine
}

func (c *catalogStats) GetStats(table string) (int, bool) {
	return c.catalog.GetStats(table)
}

func (c *catalogStats) UpdateStats(table string, rowCount int) error {
	return c.catalog.UpdateStats(table, rowCount)
}

func (c *catalogStats) CountRows(table string) (int, error) {
	lo, hi := catalog.RowPrefixBounds(table)
	rows, err := c.engine.RangeScan([]byte(lo), []byte(hi))
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (c *catalogStats) IndexForColumn(table, column string) (string, bool) {
	indexes, err := c.catalog.ListIndexes(table)
	if err != nil {
		return "", false
	}
	for _, idx := range indexes {
		if idx.Column == column {
			return idx.Name, true
		}
	}
	return "", false
}
