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
	"fmt"
	"strings"

	"github.com/darkbrains/ip-address-controller/api/v1alpha1"
	"github.com/darkbrains/ip-address-controller/internal/cloud"
)

// instanceRefFromProviderID parses a node's kubelet-reported spec.providerID into
// the instance identity each driver expects, mirroring teacher's getInstanceID
// label parsing (kubernetes.go) one layer down at the provider-ID well-known format
// instead of a custom label.
func instanceRefFromProviderID(providerID string, zone string, provider v1alpha1.CloudProvider) (cloud.InstanceRef, error) {
	switch provider {
	case v1alpha1.CloudProviderGCP:
		// gce://<project>/<zone>/<instance-name>
		parts := strings.Split(strings.TrimPrefix(providerID, "gce://"), "/")
		if len(parts) != 3 {
			return cloud.InstanceRef{}, fmt.Errorf("malformed gce provider id %q", providerID)
		}
		return cloud.InstanceRef{ID: parts[2], Zone: parts[1]}, nil

	case v1alpha1.CloudProviderAWS:
		// aws:///<zone>/<instance-id>
		parts := strings.Split(strings.TrimPrefix(providerID, "aws:///"), "/")
		if len(parts) != 2 {
			return cloud.InstanceRef{}, fmt.Errorf("malformed aws provider id %q", providerID)
		}
		return cloud.InstanceRef{ID: parts[1], Zone: parts[0]}, nil

	case v1alpha1.CloudProviderAzure:
		// azure:///subscriptions/<sub>/resourceGroups/<rg>/providers/Microsoft.Compute/virtualMachines/<vmName>
		segments := strings.Split(strings.TrimPrefix(providerID, "azure:///"), "/")
		var resourceGroup, vmName string
		for i, seg := range segments {
			if strings.EqualFold(seg, "resourceGroups") && i+1 < len(segments) {
				resourceGroup = segments[i+1]
			}
		}
		if len(segments) > 0 {
			vmName = segments[len(segments)-1]
		}
		if resourceGroup == "" || vmName == "" {
			return cloud.InstanceRef{}, fmt.Errorf("malformed azure provider id %q", providerID)
		}
		// The NIC API only needs resourceGroup/nicName; we assume the common
		// convention that a VM's primary NIC shares its name, which is what most
		// IaC tooling (Terraform azurerm, ARM quickstarts) produces by default.
		return cloud.InstanceRef{ID: resourceGroup + "/" + vmName, Zone: zone}, nil

	default:
		return cloud.InstanceRef{}, fmt.Errorf("unknown cloud provider %q", provider)
	}
}
