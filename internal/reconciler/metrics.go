/*
Copyright 2020 The node-detacher authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package reconciler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Metrics are the public Prometheus contract for the reconciler. Names and labels
// are part of the external interface (spec §6) and must not change casually.
var (
	attachTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ip_attach_total",
		Help: "Total attach operations issued by the reconciler, by outcome.",
	}, []string{"pool", "status"})

	detachTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ip_detach_total",
		Help: "Total detach operations issued by the reconciler, by outcome.",
	}, []string{"pool", "status"})

	evictionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ip_eviction_total",
		Help: "Total pod evictions issued by the reconciler, by outcome.",
	}, []string{"pool", "status"})

	tickDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "ip_reconcile_tick_duration_seconds",
		Help: "Duration of one pool reconcile tick.",
	}, []string{"pool"})

	poolReserved = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ip_pool_reserved",
		Help: "Number of reserved IPs configured for the pool.",
	}, []string{"pool"})

	poolAttached = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ip_pool_attached",
		Help: "Number of reserved IPs currently attached somewhere for the pool.",
	}, []string{"pool"})

	poolHealthy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ip_pool_healthy",
		Help: "1 iff reserved == attached at the end of the most recent tick, else 0.",
	}, []string{"pool"})
)

func init() {
	metrics.Registry.MustRegister(attachTotal, detachTotal, evictionTotal, tickDuration, poolReserved, poolAttached, poolHealthy)
}

// report implements Phase 5: update per-pool counters and gauges from the tick's
// discovery/plan outcome, including the tick's own duration.
func report(pool string, reserved int, attached int, duration time.Duration) {
	poolReserved.WithLabelValues(pool).Set(float64(reserved))
	poolAttached.WithLabelValues(pool).Set(float64(attached))
	tickDuration.WithLabelValues(pool).Observe(duration.Seconds())

	healthy := 0.0
	if reserved == attached {
		healthy = 1.0
	}
	poolHealthy.WithLabelValues(pool).Set(healthy)
}
