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

// Package factory builds the concrete cloud.Driver for a pool's cloud descriptor.
// It lives apart from package cloud itself so that the provider packages (which
// import cloud for the Driver/Error/InstanceRef contract) are never imported back
// by cloud -- only by this package, which sits above all four.
package factory

import (
	"fmt"

	"github.com/darkbrains/ip-address-controller/api/v1alpha1"
	"github.com/darkbrains/ip-address-controller/internal/cloud"
	"github.com/darkbrains/ip-address-controller/internal/cloud/aws"
	"github.com/darkbrains/ip-address-controller/internal/cloud/azure"
	"github.com/darkbrains/ip-address-controller/internal/cloud/gcp"
)

// New builds the Driver for the given pool cloud descriptor. Credentials are obtained
// from each provider's ambient mechanism (workload identity, instance metadata,
// environment) -- the core never parses them directly (spec §6).
func New(desc v1alpha1.CloudDescriptor) (cloud.Driver, error) {
	switch desc.Provider {
	case v1alpha1.CloudProviderGCP:
		return gcp.NewDriver(desc.Project)
	case v1alpha1.CloudProviderAWS:
		return aws.NewDriver(desc.Region)
	case v1alpha1.CloudProviderAzure:
		return azure.NewDriver(desc.Region)
	default:
		return nil, fmt.Errorf("unknown cloud provider %q: must be one of gcp, aws, azure", desc.Provider)
	}
}
