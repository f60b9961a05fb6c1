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

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// CloudProvider is the cloud platform that owns the reserved IPs and the nodes.
type CloudProvider string

const (
	CloudProviderGCP   CloudProvider = "gcp"
	CloudProviderAWS   CloudProvider = "aws"
	CloudProviderAzure CloudProvider = "azure"
)

// WorkloadKind is the kind of controller a pool's workload reference points at.
type WorkloadKind string

const (
	WorkloadKindDeployment  WorkloadKind = "Deployment"
	WorkloadKindStatefulSet WorkloadKind = "StatefulSet"
	WorkloadKindDaemonSet   WorkloadKind = "DaemonSet"
)

// WorkloadReference names the workload whose pods should keep the bound nodes occupied
// before the IP reserved for them is detached.
type WorkloadReference struct {
	// +kubebuilder:validation:Enum=Deployment;StatefulSet;DaemonSet
	Kind WorkloadKind `json:"kind"`

	Name string `json:"name"`

	// +optional
	// +kubebuilder:default=default
	Namespace string `json:"namespace,omitempty"`
}

// DeploymentReference is the legacy, pre-v1alpha1 alias of WorkloadReference that always
// pointed at a Deployment. Accepted for backward compatibility and resolved into a
// Deployment WorkloadReference by EffectiveWorkloadRef.
type DeploymentReference struct {
	Name string `json:"name"`

	// +optional
	Namespace string `json:"namespace,omitempty"`
}

// CloudDescriptor names the provider and, optionally, the region/zones the pool's nodes
// live in. Zones are used only to order candidate nodes when choosing an attach
// target: nodes in a listed zone come first, then nodes are ordered by name.
type CloudDescriptor struct {
	// +kubebuilder:validation:Enum=gcp;aws;azure
	Provider CloudProvider `json:"provider"`

	// Project is the GCP project ID that owns the nodes and reserved IPs. Required
	// when Provider is gcp; every GCE API call is scoped to a project explicitly,
	// unlike AWS/Azure where the region plus ambient credentials are enough.
	// +optional
	Project string `json:"project,omitempty"`

	// +optional
	Region string `json:"region,omitempty"`

	// +optional
	Zones []string `json:"zones,omitempty"`
}

// NetIPAllocationSpec defines the desired state of a pool of pre-reserved static public IPs.
type NetIPAllocationSpec struct {
	// ReservedIPs is the non-empty, ordered list of pre-allocated public IPs this pool owns.
	// Entries must be unique within the pool.
	// +kubebuilder:validation:MinItems=1
	ReservedIPs []string `json:"reservedIPs"`

	// +optional
	WorkloadRef *WorkloadReference `json:"workloadRef,omitempty"`

	// DeploymentRef is a deprecated alias of WorkloadRef{Kind: Deployment}. When both are
	// set, WorkloadRef wins.
	// +optional
	DeploymentRef *DeploymentReference `json:"deploymentRef,omitempty"`

	// NodeSelector lists label key/value pairs every eligible node must carry.
	// +optional
	NodeSelector map[string]string `json:"nodeSelector,omitempty"`

	Cloud CloudDescriptor `json:"cloud"`

	// ReconcileIntervalSeconds is how often this pool's reconcile tick runs.
	// +optional
	// +kubebuilder:default=30
	// +kubebuilder:validation:Minimum=1
	ReconcileIntervalSeconds int32 `json:"reconcileIntervalSeconds,omitempty"`
}

// NetIPAllocationStatus is intentionally empty in this version: no status subresource is
// written by the core.
type NetIPAllocationStatus struct{}

// +kubebuilder:object:root=true
// +kubebuilder:resource:scope=Cluster
// +kubebuilder:printcolumn:JSONPath=".spec.cloud.provider",name=Provider,type=string
// +kubebuilder:printcolumn:JSONPath=".spec.reconcileIntervalSeconds",name=IntervalSeconds,type=integer

// NetIPAllocation is the Schema for the netipallocations API.
type NetIPAllocation struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   NetIPAllocationSpec   `json:"spec,omitempty"`
	Status NetIPAllocationStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// NetIPAllocationList contains a list of NetIPAllocation.
type NetIPAllocationList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []NetIPAllocation `json:"items"`
}

func init() {
	SchemeBuilder.Register(&NetIPAllocation{}, &NetIPAllocationList{})
}
