package types

// Group is a contiguous run of rows sharing a derived group key.
// Groups are recomputed from the view rows on every render and never stored.
type Group struct {
	Key   string
	Label string
	// Start is the index of the group's first row within the grouped sequence
	Start int
	Rows  []Record
}

// Metric names reported in GroupTotals
const (
	MetricCount = "count"
	MetricTotal = "total"
)

// GroupTotals holds aggregate metrics for one group key, fetched
// independently of the row data
type GroupTotals struct {
	GroupKey string             `json:"group_key" yaml:"group_key"`
	Metrics  map[string]float64 `json:"metrics" yaml:"metrics"`
}
