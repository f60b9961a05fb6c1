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

// Package procinfo registers process-level metrics (leadership state, build
// version) that don't belong to any single pool.
package procinfo

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	isLeader = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ip_is_leader",
		Help: "1 if this replica currently holds the leader lease, else 0.",
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ip_build_info",
		Help: "Always 1; labels report the running version and cluster name.",
	}, []string{"version", "cluster"})
)

func init() {
	metrics.Registry.MustRegister(isLeader, buildInfo)
}

// SetLeader updates the is_leader gauge.
func SetLeader(leader bool) {
	if leader {
		isLeader.Set(1)
	} else {
		isLeader.Set(0)
	}
}

// SetBuildInfo records the running version/cluster labels once at startup.
func SetBuildInfo(version, cluster string) {
	buildInfo.WithLabelValues(version, cluster).Set(1)
}
