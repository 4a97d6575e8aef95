package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var resolutionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trust_report_resolutions",
	Help: "Number of reports resolved, by action",
}, []string{"action"})

var resolveConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "trust_report_resolve_conflicts",
	Help: "Number of resolutions rejected because the report was no longer pending",
})
