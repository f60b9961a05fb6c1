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
	runtime "k8s.io/apimachinery/pkg/runtime"
)

// DeepCopyInto copies the receiver into out.
func (in *WorkloadReference) DeepCopyInto(out *WorkloadReference) {
	*out = *in
}

// DeepCopy creates a new WorkloadReference by copying the receiver.
func (in *WorkloadReference) DeepCopy() *WorkloadReference {
	if in == nil {
		return nil
	}
	out := new(WorkloadReference)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into out.
func (in *DeploymentReference) DeepCopyInto(out *DeploymentReference) {
	*out = *in
}

// DeepCopy creates a new DeploymentReference by copying the receiver.
func (in *DeploymentReference) DeepCopy() *DeploymentReference {
	if in == nil {
		return nil
	}
	out := new(DeploymentReference)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into out.
func (in *CloudDescriptor) DeepCopyInto(out *CloudDescriptor) {
	*out = *in
	if in.Zones != nil {
		out.Zones = make([]string, len(in.Zones))
		copy(out.Zones, in.Zones)
	}
}

// DeepCopy creates a new CloudDescriptor by copying the receiver.
func (in *CloudDescriptor) DeepCopy() *CloudDescriptor {
	if in == nil {
		return nil
	}
	out := new(CloudDescriptor)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into out.
func (in *NetIPAllocationSpec) DeepCopyInto(out *NetIPAllocationSpec) {
	*out = *in

	if in.ReservedIPs != nil {
		out.ReservedIPs = make([]string, len(in.ReservedIPs))
		copy(out.ReservedIPs, in.ReservedIPs)
	}

	if in.WorkloadRef != nil {
		out.WorkloadRef = in.WorkloadRef.DeepCopy()
	}

	if in.DeploymentRef != nil {
		out.DeploymentRef = in.DeploymentRef.DeepCopy()
	}

	if in.NodeSelector != nil {
		out.NodeSelector = make(map[string]string, len(in.NodeSelector))
		for k, v := range in.NodeSelector {
			out.NodeSelector[k] = v
		}
	}

	in.Cloud.DeepCopyInto(&out.Cloud)
}

// DeepCopy creates a new NetIPAllocationSpec by copying the receiver.
func (in *NetIPAllocationSpec) DeepCopy() *NetIPAllocationSpec {
	if in == nil {
		return nil
	}
	out := new(NetIPAllocationSpec)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into out.
func (in *NetIPAllocationStatus) DeepCopyInto(out *NetIPAllocationStatus) {
	*out = *in
}

// DeepCopy creates a new NetIPAllocationStatus by copying the receiver.
func (in *NetIPAllocationStatus) DeepCopy() *NetIPAllocationStatus {
	if in == nil {
		return nil
	}
	out := new(NetIPAllocationStatus)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into out.
func (in *NetIPAllocation) DeepCopyInto(out *NetIPAllocation) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
	out.Status = in.Status
}

// DeepCopy creates a new NetIPAllocation by copying the receiver.
func (in *NetIPAllocation) DeepCopy() *NetIPAllocation {
	if in == nil {
		return nil
	}
	out := new(NetIPAllocation)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject implements runtime.Object.
func (in *NetIPAllocation) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver into out.
func (in *NetIPAllocationList) DeepCopyInto(out *NetIPAllocationList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]NetIPAllocation, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

// DeepCopy creates a new NetIPAllocationList by copying the receiver.
func (in *NetIPAllocationList) DeepCopy() *NetIPAllocationList {
	if in == nil {
		return nil
	}
	out := new(NetIPAllocationList)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject implements runtime.Object.
func (in *NetIPAllocationList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}
