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

// Package reconciler implements the per-pool five-phase reconcile algorithm:
// discover, classify, plan, actuate, report.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/darkbrains/ip-address-controller/api/v1alpha1"
	"github.com/darkbrains/ip-address-controller/internal/clusterview"
	"github.com/darkbrains/ip-address-controller/internal/cloud"
)

// DefaultAttachTimeout bounds a whole tick: every cloud and cluster call of one
// tick shares a single deadline of this length. Individual calls have no timeout
// of their own.
const DefaultAttachTimeout = 60 * time.Second

// DriverFactory resolves the cloud.Driver for a pool's cloud descriptor. Production
// code passes internal/cloud/factory.New; tests inject a factory returning a
// fake driver.
type DriverFactory func(v1alpha1.CloudDescriptor) (cloud.Driver, error)

// Reconciler runs one tick of the five-phase algorithm for a single pool. It holds
// no per-pool state between ticks -- every tick recomputes everything from the
// current cluster/cloud snapshot, per the "no hidden retry state" failure semantics.
type Reconciler struct {
	View          *clusterview.View
	NewDriver     DriverFactory
	AttachTimeout time.Duration
	Log           logr.Logger
}

// Result reports a tick's outcome for logging and supervisor bookkeeping.
type Result struct {
	Reserved     int
	Attached     int
	ActionsTaken int
	SoftFailures int
	Duration     time.Duration
}

// Reconcile runs discover -> classify -> plan -> actuate -> report for pool.
func (r *Reconciler) Reconcile(ctx context.Context, pool *v1alpha1.NetIPAllocation) (Result, error) {
	start := time.Now()
	poolName := pool.Name

	if err := validateSpec(&pool.Spec); err != nil {
		return Result{}, &ReconcileError{Pool: poolName, Op: "validate", Kind: ErrorKindInvalidSpec, Err: err}
	}

	if len(pool.Spec.ReservedIPs) == 0 {
		duration := time.Since(start)
		report(poolName, 0, 0, duration)
		return Result{Reserved: 0, Attached: 0, Duration: duration}, nil
	}

	driver, err := r.NewDriver(pool.Spec.Cloud)
	if err != nil {
		return Result{}, &ReconcileError{Pool: poolName, Op: "driver", Kind: ErrorKindInvalidSpec, Err: err}
	}

	attachCtx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	nodes, err := r.View.EligibleNodes(attachCtx, pool.Spec.NodeSelector)
	if err != nil {
		return Result{}, &ReconcileError{Pool: poolName, Op: "discover", Kind: ErrorKindTransient, Err: err}
	}

	workloadRef := pool.Spec.EffectiveWorkloadRef()

	d, instanceRefs, err := discover(attachCtx, driver, nodes, pool.Spec.ReservedIPs, pool.Spec.Cloud.Provider)
	if err != nil {
		// Leave the previous tick's gauges in place: this tick contributed no new
		// information about pool health.
		return Result{}, &ReconcileError{Pool: poolName, Op: "discover", Kind: ErrorKindTransient, Err: err}
	}

	c, err := classify(attachCtx, r.View, nodes, d, workloadRef)
	if err != nil {
		return Result{}, &ReconcileError{Pool: poolName, Op: "classify", Kind: ErrorKindTransient, Err: err}
	}

	labeled := map[string]bool{}
	for _, n := range nodes {
		labeled[n.Name] = n.HasLabel(LabelIPReady, labelIPReadyValue)
	}

	nodeZone := map[string]string{}
	for _, n := range nodes {
		nodeZone[n.Name] = n.Zone
	}

	plan := buildPlan(d, c, pool.Spec.Cloud.Zones, nodeZone, labeled)

	attachedDelta, softFailures, err := actuate(attachCtx, r.View.Client, driver, poolName, instanceRefs, plan)
	if err != nil {
		return Result{ActionsTaken: attachedDelta}, err
	}

	detachCount := 0
	for _, action := range plan {
		if action.Kind == ActionDetach {
			detachCount++
		}
	}

	finalAttached := len(d.boundIPToNode) - detachCount + attachedDelta
	duration := time.Since(start)

	report(poolName, len(pool.Spec.ReservedIPs), finalAttached, duration)

	return Result{
		Reserved:     len(pool.Spec.ReservedIPs),
		Attached:     finalAttached,
		ActionsTaken: len(plan),
		SoftFailures: softFailures,
		Duration:     duration,
	}, nil
}

func (r *Reconciler) timeout() time.Duration {
	if r.AttachTimeout > 0 {
		return r.AttachTimeout
	}
	return DefaultAttachTimeout
}

// validateSpec rejects pool specs the reconciler cannot act on: unknown provider,
// duplicate reserved IPs, or an invalid workload kind.
func validateSpec(spec *v1alpha1.NetIPAllocationSpec) error {
	switch spec.Cloud.Provider {
	case v1alpha1.CloudProviderGCP, v1alpha1.CloudProviderAWS, v1alpha1.CloudProviderAzure:
	default:
		return fmt.Errorf("unknown cloud provider %q", spec.Cloud.Provider)
	}

	seen := make(map[string]bool, len(spec.ReservedIPs))
	for _, ip := range spec.ReservedIPs {
		if seen[ip] {
			return fmt.Errorf("duplicate reserved ip %q", ip)
		}
		seen[ip] = true
	}

	if ref := spec.EffectiveWorkloadRef(); ref != nil {
		switch ref.Kind {
		case v1alpha1.WorkloadKindDeployment, v1alpha1.WorkloadKindStatefulSet, v1alpha1.WorkloadKindDaemonSet:
		default:
			return fmt.Errorf("unknown workload kind %q", ref.Kind)
		}
	}

	return nil
}
