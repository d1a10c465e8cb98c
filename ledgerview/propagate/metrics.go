package propagate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	propagationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerview_propagations_total",
		Help: "Mutations applied to the view registry, by operation",
	}, []string{"op"})

	rowsTouchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerview_view_rows_touched_total",
		Help: "View rows inserted, replaced, moved or removed by propagation, by operation",
	}, []string{"op"})

	staleMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerview_stale_mutations_total",
		Help: "Mutations dropped because a newer version was already applied, by operation",
	}, []string{"op"})
)

const (
	opInsert = "insert"
	opUpdate = "update"
	opRemove = "remove"
)
