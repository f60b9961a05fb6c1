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

package clusterview

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/darkbrains/ip-address-controller/api/v1alpha1"
)

// replicaSetRef names a ReplicaSet that is itself owned by the Deployment a pool's
// workloadRef points at, resolved once per WorkloadPods call.
type replicaSetRef struct {
	name      string
	namespace string
}

// replicaSetsOwnedBy lists the ReplicaSets in ref.Namespace whose owning controller
// is the Deployment named ref.Name, mirroring the owner-walk teacher's
// daemonset_controller.go/pod_controller.go perform via metav1.GetControllerOf, one
// level deeper (Deployment -> ReplicaSet -> Pod instead of DaemonSet -> Pod).
func (v *View) replicaSetsOwnedBy(ctx context.Context, ref *v1alpha1.WorkloadReference) ([]replicaSetRef, error) {
	var rsList appsv1.ReplicaSetList
	if err := v.List(ctx, &rsList, client.InNamespace(ref.Namespace)); err != nil {
		return nil, fmt.Errorf("listing replicasets in %s: %w", ref.Namespace, err)
	}

	var owned []replicaSetRef
	for _, rs := range rsList.Items {
		owner := metav1.GetControllerOf(&rs)
		if owner == nil {
			continue
		}
		if owner.Kind == string(v1alpha1.WorkloadKindDeployment) && owner.Name == ref.Name {
			owned = append(owned, replicaSetRef{name: rs.Name, namespace: rs.Namespace})
		}
	}

	return owned, nil
}

// ownedByWorkload reports whether pod's owning controller matches ref, either
// directly (StatefulSet, DaemonSet) or transitively through one of replicaSets
// (Deployment).
func ownedByWorkload(pod corev1.Pod, ref *v1alpha1.WorkloadReference, replicaSets []replicaSetRef) bool {
	owner := metav1.GetControllerOf(&pod)
	if owner == nil {
		return false
	}

	switch ref.Kind {
	case v1alpha1.WorkloadKindDeployment:
		if owner.Kind != "ReplicaSet" {
			return false
		}
		for _, rs := range replicaSets {
			if rs.name == owner.Name && rs.namespace == pod.Namespace {
				return true
			}
		}
		return false
	case v1alpha1.WorkloadKindStatefulSet:
		return owner.Kind == "StatefulSet" && owner.Name == ref.Name
	case v1alpha1.WorkloadKindDaemonSet:
		return owner.Kind == "DaemonSet" && owner.Name == ref.Name
	default:
		return false
	}
}
