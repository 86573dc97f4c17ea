package analysis

import (
	"fmt"
	"sort"

	"recommendation-dashboard/internal/models"
)

// Aggregate computes the scalar metrics and grouped tables of classified rows.
// Grouped tables are sorted by count descending; equal counts keep the order
// in which their group first appeared.
func Aggregate(rows []models.ClassifiedRow) models.Summary {
	summary := models.Summary{TotalRecords: len(rows)}

	orders := make(map[string]struct{})
	sellers := newCounter[string]()
	products := newCounter[statusKey]()
	customers := newCounter[statusKey]()

	for _, row := range rows {
		switch row.Status {
		case models.StatusNewProduct:
			summary.NewProducts++
		case models.StatusStaleRepurchase:
			summary.StaleRepurchases++
		case models.StatusRecurring:
			summary.Recurring++
		}

		orders[row.OrderID] = struct{}{}
		sellers.add(row.Seller)
		products.add(statusKey{key: row.Product, status: row.Status})
		customers.add(statusKey{key: row.Customer, status: row.Status})
	}

	summary.DistinctOrders = len(orders)

	summary.StatusDistribution = make([]models.StatusCount, 0, len(models.Statuses))
	for _, status := range models.Statuses {
		summary.StatusDistribution = append(summary.StatusDistribution, models.StatusCount{
			Status: status,
			Label:  status.Label(),
			Count:  summary.CountFor(status),
		})
	}

	summary.SellerCounts = make([]models.GroupCount, 0, len(sellers.keys))
	for _, g := range sellers.sorted() {
		summary.SellerCounts = append(summary.SellerCounts, models.GroupCount{Key: g.key, Count: g.count})
	}
	summary.ProductStatusCounts = toStatusGroups(products.sorted())
	summary.CustomerStatusCounts = toStatusGroups(customers.sorted())

	return summary
}

// Run validates the threshold and the dataset columns, then classifies and aggregates
func Run(ds *models.Dataset, thresholdDays int) (*models.Summary, error) {
	return RunWithProgress(ds, thresholdDays, nil)
}

// progressChunk is how many rows are classified between progress callbacks
const progressChunk = 1000

// RunWithProgress is Run with progress reporting. progress, when not nil, is
// called with the number of rows classified since the previous call.
func RunWithProgress(ds *models.Dataset, thresholdDays int, progress func(rows int)) (*models.Summary, error) {
	if ds == nil {
		return nil, fmt.Errorf("dataset is nil")
	}
	if err := ValidateThreshold(thresholdDays); err != nil {
		return nil, err
	}
	if err := RequireColumns(ds.Columns); err != nil {
		return nil, err
	}

	classified := make([]models.ClassifiedRow, 0, len(ds.Rows))
	for start := 0; start < len(ds.Rows); start += progressChunk {
		end := min(start+progressChunk, len(ds.Rows))
		classified = append(classified, ClassifyAll(ds.Rows[start:end], thresholdDays)...)
		if progress != nil {
			progress(end - start)
		}
	}

	summary := Aggregate(classified)
	summary.ThresholdDays = thresholdDays
	summary.SkippedRows = ds.SkippedRows
	return &summary, nil
}

type statusKey struct {
	key    string
	status models.Status
}

type group[K comparable] struct {
	key   K
	count int
}

// counter counts occurrences while remembering first-seen key order
type counter[K comparable] struct {
	index map[K]int
	keys  []group[K]
}

func newCounter[K comparable]() *counter[K] {
	return &counter[K]{index: make(map[K]int)}
}

func (c *counter[K]) add(key K) {
	if i, ok := c.index[key]; ok {
		c.keys[i].count++
		return
	}
	c.index[key] = len(c.keys)
	c.keys = append(c.keys, group[K]{key: key, count: 1})
}

func (c *counter[K]) sorted() []group[K] {
	out := make([]group[K], len(c.keys))
	copy(out, c.keys)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].count > out[j].count
	})
	return out
}

func toStatusGroups(groups []group[statusKey]) []models.StatusGroupCount {
	out := make([]models.StatusGroupCount, 0, len(groups))
	for _, g := range groups {
		out = append(out, models.StatusGroupCount{
			Key:    g.key.key,
			Status: g.key.status,
			Count:  g.count,
		})
	}
	return out
}
