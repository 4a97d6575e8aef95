package karma

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var karmaEventCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trust_karma_events",
	Help: "Number of karma events applied",
}, []string{"type"})

var karmaSubscriberErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "trust_karma_subscriber_errors",
	Help: "Number of published karma events that could not be applied",
})
