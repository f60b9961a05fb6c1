/*
Copyright 2020 The node-detacher-controller authors.

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

package v1alpha1

// EffectiveWorkloadRef returns the pool's WorkloadRef, normalizing the legacy
// DeploymentRef alias into a Deployment WorkloadReference when WorkloadRef itself
// isn't set. Returns nil when the pool names no workload at all.
func (s *NetIPAllocationSpec) EffectiveWorkloadRef() *WorkloadReference {
	if s.WorkloadRef != nil {
		ref := *s.WorkloadRef
		if ref.Namespace == "" {
			ref.Namespace = "default"
		}
		return &ref
	}

	if s.DeploymentRef != nil {
		ns := s.DeploymentRef.Namespace
		if ns == "" {
			ns = "default"
		}
		return &WorkloadReference{
			Kind:      WorkloadKindDeployment,
			Name:      s.DeploymentRef.Name,
			Namespace: ns,
		}
	}

	return nil
}

// EffectiveInterval returns the pool's reconcile interval in seconds, applying the
// documented default and minimum.
func (s *NetIPAllocationSpec) EffectiveInterval() int32 {
	if s.ReconcileIntervalSeconds <= 0 {
		return 30
	}
	return s.ReconcileIntervalSeconds
}
