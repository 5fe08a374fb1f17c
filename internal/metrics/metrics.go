// Package metrics содержит prometheus-метрики движка материализации.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal — количество прогонов движка материализации.
	RunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recurrents_runs_total",
		Help: "Total number of materializer runs.",
	})

	// InstancesUpserted — количество upsert-ов экземпляров по статусу.
	InstancesUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recurrents_instances_upserted_total",
		Help: "Total number of instance upserts by status.",
	}, []string{"status"})

	// RuleFailures — количество правил, завершившихся ошибкой за все прогоны.
	RuleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recurrents_rule_failures_total",
		Help: "Total number of per-rule materialization failures.",
	})
)
