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

package supervisor

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/darkbrains/ip-address-controller/api/v1alpha1"
	"github.com/darkbrains/ip-address-controller/internal/reconciler"
)

// poolTask drives one pool's reconcile ticks on its own interval, never running two
// ticks for the same pool concurrently: a tick that overruns its interval simply
// delays the next one rather than overlapping it.
type poolTask struct {
	name        string
	get         func() (*v1alpha1.NetIPAllocation, error)
	reconciler  *reconciler.Reconciler
	log         logr.Logger
	cancel      context.CancelFunc
	onFirstTick func()

	tickedOnce bool
}

// run blocks until ctx is cancelled, invoking tick every intervalSeconds.
func (t *poolTask) run(ctx context.Context, intervalSeconds int32) {
	interval := time.Duration(intervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	t.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *poolTask) tick(ctx context.Context) {
	pool, err := t.get()
	if err != nil {
		t.log.Error(err, "fetching pool before tick")
		return
	}

	result, err := t.reconciler.Reconcile(ctx, pool)
	if err != nil {
		t.log.Error(err, "reconcile tick failed")
	} else {
		t.log.Info("reconcile tick complete",
			"reserved", result.Reserved,
			"attached", result.Attached,
			"actions", result.ActionsTaken,
			"softFailures", result.SoftFailures,
			"duration", result.Duration,
		)
	}

	if !t.tickedOnce {
		t.tickedOnce = true
		if t.onFirstTick != nil {
			t.onFirstTick()
		}
	}
}
