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

// Package clusterview serves the read-only, watch-backed snapshot of nodes, pods,
// and workloads that the reconciler consults once per tick. It never writes.
package clusterview

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/darkbrains/ip-address-controller/api/v1alpha1"
)

// Node is the reconciler-facing view of a cluster node: identity, schedulability,
// and labels, decoupled from the corev1.Node wire shape.
type Node struct {
	Name          string
	ProviderID    string
	Zone          string
	Unschedulable bool
	Labels        map[string]string
}

// zoneLabel is the well-known topology label used to resolve a node's zone for
// attach-target zone preference (spec §3 Node view, §4.1 Phase 3 zone preference).
const zoneLabel = "topology.kubernetes.io/zone"

// HasLabel reports whether the node carries key=value.
func (n Node) HasLabel(key, value string) bool {
	return n.Labels[key] == value
}

// View is a thin, cache-backed read path over the manager's client.Client. Because
// controller-runtime's client is itself informer-backed, a single List call already
// reads a consistent point-in-time snapshot; View exists to shape that data into the
// small vocabulary (Node, pod ownership) the reconciler actually needs, in the same
// spirit as teacher's NodeController embedding client.Client directly.
type View struct {
	client.Client
}

// New wraps a controller-runtime client as a View.
func New(c client.Client) *View {
	return &View{Client: c}
}

// EligibleNodes lists every node matching selector, translated into the reconciler's
// Node vocabulary. Snapshotting happens implicitly: the underlying client.Client is
// cache-backed, so every call within a tick observes the same informer store state
// unless a watch event lands mid-tick, which Kubernetes' own consistency model
// already tolerates (the next tick corrects it).
func (v *View) EligibleNodes(ctx context.Context, selector map[string]string) ([]Node, error) {
	var nodeList corev1.NodeList

	opts := []client.ListOption{}
	if len(selector) > 0 {
		opts = append(opts, client.MatchingLabels(selector))
	}

	if err := v.List(ctx, &nodeList, opts...); err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}

	nodes := make([]Node, 0, len(nodeList.Items))
	for _, n := range nodeList.Items {
		nodes = append(nodes, toNode(n))
	}

	return nodes, nil
}

// Node looks up a single node by name.
func (v *View) Node(ctx context.Context, name string) (Node, error) {
	var n corev1.Node
	if err := v.Get(ctx, client.ObjectKey{Name: name}, &n); err != nil {
		return Node{}, fmt.Errorf("getting node %s: %w", name, err)
	}
	return toNode(n), nil
}

func toNode(n corev1.Node) Node {
	return Node{
		Name:          n.Name,
		ProviderID:    n.Spec.ProviderID,
		Zone:          n.Labels[zoneLabel],
		Unschedulable: n.Spec.Unschedulable,
		Labels:        n.Labels,
	}
}

// WorkloadPod is the subset of pod state the reconciler's pod-retention check needs.
type WorkloadPod struct {
	Name      string
	Namespace string
	NodeName  string
	Running   bool
}

// WorkloadPods lists the pods transitively owned by ref (directly, or via a
// ReplicaSet for Deployments), restricted to ref.Namespace. Nil ref means no
// workload is configured for the pool, which callers must treat as "pod-awareness
// disabled" per spec.
func (v *View) WorkloadPods(ctx context.Context, ref *v1alpha1.WorkloadReference) ([]WorkloadPod, error) {
	if ref == nil {
		return nil, nil
	}

	var podList corev1.PodList
	if err := v.List(ctx, &podList, client.InNamespace(ref.Namespace)); err != nil {
		return nil, fmt.Errorf("listing pods in %s: %w", ref.Namespace, err)
	}

	var replicaSets []replicaSetRef
	if ref.Kind == v1alpha1.WorkloadKindDeployment {
		var err error
		replicaSets, err = v.replicaSetsOwnedBy(ctx, ref)
		if err != nil {
			return nil, err
		}
	}

	var pods []WorkloadPod
	for _, pod := range podList.Items {
		if !ownedByWorkload(pod, ref, replicaSets) {
			continue
		}

		pods = append(pods, WorkloadPod{
			Name:      pod.Name,
			Namespace: pod.Namespace,
			NodeName:  pod.Spec.NodeName,
			Running:   isRunning(pod),
		})
	}

	return pods, nil
}

func isRunning(pod corev1.Pod) bool {
	return pod.DeletionTimestamp == nil && pod.Status.Phase == corev1.PodRunning
}
