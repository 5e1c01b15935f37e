package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	liquidations *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking notable market events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendcore",
				Subsystem: "events",
				Name:      "liquidations_total",
				Help:      "Count of executed liquidations segmented by borrowed and collateral asset.",
			}, []string{"borrowed", "collateral"}),
		}
		prometheus.MustRegister(eventRegistry.liquidations)
	})
	return eventRegistry
}

// RecordLiquidation increments the liquidation counter for an asset pair.
func (m *eventMetrics) RecordLiquidation(borrowed, collateral string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(normalizeAsset(borrowed), normalizeAsset(collateral)).Inc()
}

func normalizeAsset(asset string) string {
	normalized := strings.TrimSpace(strings.ToLower(asset))
	if normalized == "" {
		normalized = "unknown"
	}
	return normalized
}
