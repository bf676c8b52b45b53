// Package metrics defines Prometheus metrics for the query layer.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trellis_query_duration_seconds",
			Help:    "Query terminal execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trellis_queries_total",
			Help: "Total query terminals executed",
		},
		[]string{"kind"},
	)

	MaterializedNodes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trellis_materialized_nodes_total",
			Help: "Total node views materialized",
		},
	)

	MaterializeDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trellis_materialize_drops_total",
			Help: "Node ids dropped because their type could not be resolved",
		},
		[]string{"context"},
	)
)

func init() {
	prometheus.MustRegister(
		QueryDuration, QueriesTotal,
		MaterializedNodes, MaterializeDrops,
	)
}
