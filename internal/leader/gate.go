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

// Package leader wraps client-go's leaderelection as a boolean, edge-triggered
// signal: the core never inspects the underlying lease object, only the
// OnAcquired/OnLost callbacks (spec §9 "leader election is a library concern").
package leader

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"
)

const (
	DefaultLeaseName     = "ip-address-controller-leader"
	DefaultLeaseDuration = 60 * time.Second
)

// Config configures the lease used for the single-writer election.
type Config struct {
	// LeaseName is the Lease object's name in Namespace.
	LeaseName string

	// Namespace is where the Lease lives.
	Namespace string

	// Identity uniquely names this replica in the lease record (typically pod name).
	Identity string

	// LeaseDuration is how long a held lease is valid without renewal.
	LeaseDuration time.Duration

	OnAcquired func()
	OnLost     func()
}

// Gate runs a single-writer election backed by the Kubernetes lease primitive and
// exposes only the two edge-triggered callbacks named in Config.
type Gate struct {
	cfg      Config
	log      logr.Logger
	isLeader atomic.Bool
}

// New builds a Gate, filling in documented defaults for any zero-valued Config field.
func New(cfg Config, log logr.Logger) *Gate {
	if cfg.LeaseName == "" {
		cfg.LeaseName = DefaultLeaseName
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = DefaultLeaseDuration
	}

	return &Gate{cfg: cfg, log: log}
}

// Run blocks, driving the election loop against clientset until ctx is cancelled.
func (g *Gate) Run(ctx context.Context, clientset kubernetes.Interface) error {
	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      g.cfg.LeaseName,
			Namespace: g.cfg.Namespace,
		},
		Client: clientset.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: g.cfg.Identity,
		},
	}

	elector, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock:            lock,
		ReleaseOnCancel: true,
		LeaseDuration:   g.cfg.LeaseDuration,
		RenewDeadline:   g.cfg.LeaseDuration * 2 / 3,
		RetryPeriod:     g.cfg.LeaseDuration / 4,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(_ context.Context) {
				g.isLeader.Store(true)
				g.log.Info("acquired leadership", "identity", g.cfg.Identity)
				if g.cfg.OnAcquired != nil {
					g.cfg.OnAcquired()
				}
			},
			OnStoppedLeading: func() {
				g.isLeader.Store(false)
				g.log.Info("lost leadership", "identity", g.cfg.Identity)
				if g.cfg.OnLost != nil {
					g.cfg.OnLost()
				}
			},
			OnNewLeader: func(identity string) {
				if identity != g.cfg.Identity {
					g.log.Info("observed new leader", "identity", identity)
				}
			},
		},
	})
	if err != nil {
		return err
	}

	// LeaderElector.Run returns as soon as leadership is lost, not only when ctx is
	// cancelled. Re-enter it so a stepped-down replica keeps contesting the lease
	// instead of going permanently idle until restarted.
	for {
		if ctx.Err() != nil {
			return nil
		}
		elector.Run(ctx)
	}
}

// IsLeader reports whether this process currently believes it holds the lease. It
// is safe to call concurrently with Run, for the /readyz and /metrics is_leader
// surface.
func (g *Gate) IsLeader() bool {
	return g.isLeader.Load()
}
