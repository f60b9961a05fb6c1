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

// Package supervisor owns the top-level lifecycle: it enumerates pools, spawns one
// independent reconcile task per pool on its own interval timer, and starts/stops
// every task as leadership is acquired and lost.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/darkbrains/ip-address-controller/api/v1alpha1"
	"github.com/darkbrains/ip-address-controller/internal/reconciler"
)

// poolListPollInterval bounds how quickly a newly created or deleted pool is
// picked up while already leading.
const poolListPollInterval = 10 * time.Second

// Supervisor watches NetIPAllocation pools and runs one pooltask per pool while
// leader, cancelling every task cooperatively when leadership is lost.
type Supervisor struct {
	Client     client.Client
	Reconciler *reconciler.Reconciler
	Log        logr.Logger

	firstTickDone chan struct{}
	firstTickOnce sync.Once

	mu    sync.Mutex
	tasks map[string]*poolTask
}

// New builds a Supervisor. c is used only to list/watch NetIPAllocation objects;
// all node/pod/workload reads go through the reconciler's cluster view.
func New(c client.Client, r *reconciler.Reconciler, log logr.Logger) *Supervisor {
	return &Supervisor{
		Client:        c,
		Reconciler:    r,
		Log:           log,
		firstTickDone: make(chan struct{}),
		tasks:         map[string]*poolTask{},
	}
}

// OnAcquired is registered as the leader gate's acquire callback: it lists every
// currently-defined pool and starts a task for each, then begins a watch loop that
// spawns/cancels tasks as pools are created/deleted.
func (s *Supervisor) OnAcquired(ctx context.Context) {
	var list v1alpha1.NetIPAllocationList
	if err := s.Client.List(ctx, &list); err != nil {
		s.Log.Error(err, "listing pools on leadership acquired")
		return
	}

	s.mu.Lock()
	for i := range list.Items {
		pool := &list.Items[i]
		s.startLocked(ctx, pool)
	}
	s.mu.Unlock()

	go s.watchPools(ctx)
}

// OnLost cancels every running pool task cooperatively. Tasks complete their
// in-flight tick (bounded by the reconciler's cloud-call timeout) before exiting.
func (s *Supervisor) OnLost() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, t := range s.tasks {
		t.cancel()
		delete(s.tasks, name)
	}
}

// FirstTickDone is closed once any pool task has completed its first tick,
// backing the /readyz "synced and first tick done" contract.
func (s *Supervisor) FirstTickDone() <-chan struct{} {
	return s.firstTickDone
}

func (s *Supervisor) startLocked(ctx context.Context, pool *v1alpha1.NetIPAllocation) {
	if _, exists := s.tasks[pool.Name]; exists {
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &poolTask{
		name:       pool.Name,
		get:        func() (*v1alpha1.NetIPAllocation, error) { return s.currentPool(taskCtx, pool.Name) },
		reconciler: s.Reconciler,
		log:        s.Log.WithValues("pool", pool.Name),
		cancel:     cancel,
		onFirstTick: func() {
			s.firstTickOnce.Do(func() { close(s.firstTickDone) })
		},
	}

	s.tasks[pool.Name] = t
	go t.run(taskCtx, pool.Spec.EffectiveInterval())
}

func (s *Supervisor) stopLocked(name string) {
	if t, ok := s.tasks[name]; ok {
		t.cancel()
		delete(s.tasks, name)
	}
}

func (s *Supervisor) currentPool(ctx context.Context, name string) (*v1alpha1.NetIPAllocation, error) {
	var pool v1alpha1.NetIPAllocation
	if err := s.Client.Get(ctx, client.ObjectKey{Name: name}, &pool); err != nil {
		return nil, err
	}
	return &pool, nil
}

// watchPools polls the pool list periodically for creations/deletions. A full
// watch-based implementation would consume the manager's informer directly; this
// poll loop keeps the supervisor's dependency surface to the plain client.Client
// the reconciler already uses, trading a small latency for simplicity, in the same
// spirit as teacher's sync-period fallback (main.go's --sync-period flag).
func (s *Supervisor) watchPools(ctx context.Context) {
	ticker := time.NewTicker(poolListPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reconcilePoolSet(ctx)
		}
	}
}

func (s *Supervisor) reconcilePoolSet(ctx context.Context) {
	var list v1alpha1.NetIPAllocationList
	if err := s.Client.List(ctx, &list); err != nil {
		s.Log.Error(err, "listing pools")
		return
	}

	seen := map[string]bool{}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range list.Items {
		pool := &list.Items[i]
		seen[pool.Name] = true
		s.startLocked(ctx, pool)
	}

	for name := range s.tasks {
		if !seen[name] {
			s.stopLocked(name)
		}
	}
}
