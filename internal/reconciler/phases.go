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
	"context"
	"fmt"

	"github.com/darkbrains/ip-address-controller/api/v1alpha1"
	"github.com/darkbrains/ip-address-controller/internal/clusterview"
	"github.com/darkbrains/ip-address-controller/internal/cloud"
)

const (
	// LabelIPReady is the node label the core exclusively owns; set on nodes
	// currently bound to a pool IP, removed when unbound.
	LabelIPReady      = "ip.ready"
	labelIPReadyValue = "true"
)

// discover implements Phase 1: query the cloud driver for every eligible node's
// currently-attached external IPs, and classify reserved IPs as bound/unattached,
// ignoring any IP not in the pool's reserved list.
func discover(ctx context.Context, driver cloud.Driver, nodes []clusterview.Node, reserved []string, provider v1alpha1.CloudProvider) (discovery, map[string]cloud.InstanceRef, error) {
	reservedSet := make(map[string]bool, len(reserved))
	for _, ip := range reserved {
		reservedSet[ip] = true
	}

	d := discovery{
		boundIPToNode: map[string]string{},
		nodeToBoundIP: map[string]string{},
		misconfigured: map[string]string{},
	}

	instanceRefs := make(map[string]cloud.InstanceRef, len(nodes))

	for _, node := range nodes {
		ref, err := instanceRefFromProviderID(node.ProviderID, node.Zone, provider)
		if err != nil {
			return discovery{}, nil, fmt.Errorf("resolving instance ref for node %s: %w", node.Name, err)
		}
		instanceRefs[node.Name] = ref

		ips, err := driver.GetExternalIPs(ctx, ref)
		if err != nil {
			return discovery{}, nil, fmt.Errorf("getting external ips for node %s: %w", node.Name, err)
		}

		for _, ip := range ips {
			if !reservedSet[ip] {
				d.misconfigured[node.Name] = ip
				continue
			}
			d.boundIPToNode[ip] = node.Name
			d.nodeToBoundIP[node.Name] = ip
		}
	}

	for _, ip := range reserved {
		if _, bound := d.boundIPToNode[ip]; !bound {
			d.unattached = append(d.unattached, ip)
		}
	}

	return d, instanceRefs, nil
}

// classify implements Phase 2: partition eligible nodes into the four disjoint
// classes and resolve drainability for cordoned-bound nodes via the cluster view's
// workload-pod snapshot.
func classify(ctx context.Context, view *clusterview.View, nodes []clusterview.Node, d discovery, workloadRef *v1alpha1.WorkloadReference) (classification, error) {
	c := classification{drainable: map[string]bool{}}

	var pods []clusterview.WorkloadPod
	if workloadRef != nil {
		var err error
		pods, err = view.WorkloadPods(ctx, workloadRef)
		if err != nil {
			return classification{}, fmt.Errorf("listing workload pods: %w", err)
		}
	}

	runningByNode := map[string]bool{}
	for _, p := range pods {
		if p.Running {
			runningByNode[p.NodeName] = true
		}
	}

	for _, node := range nodes {
		_, bound := d.nodeToBoundIP[node.Name]

		switch {
		case !node.Unschedulable && bound:
			c.healthyBound = append(c.healthyBound, node.Name)
		case !node.Unschedulable && !bound:
			c.healthyFree = append(c.healthyFree, node.Name)
		case node.Unschedulable && bound:
			c.cordonedBound = append(c.cordonedBound, node.Name)
			// Missing workloadRef means the pod-awareness check is skipped: every
			// cordoned-bound node is immediately drainable (spec §4.1 Failure
			// semantics).
			c.drainable[node.Name] = workloadRef == nil || !runningByNode[node.Name]
		case node.Unschedulable && !bound:
			c.cordonedFree = append(c.cordonedFree, node.Name)
		}
	}

	return c, nil
}
