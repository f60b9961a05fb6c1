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

// Package azure implements the cloud.Driver contract against Azure public IP
// association on a VM's primary NIC IP configuration. Per spec §9, Azure semantics
// are not specified bit-exactly -- this is a best-effort implementation of the
// abstract contract, not a claim of parity with any particular upstream behavior.
package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/services/network/mgmt/2021-05-01/network"
	"github.com/Azure/go-autorest/autorest"
	"github.com/Azure/go-autorest/autorest/azure/auth"

	"github.com/darkbrains/ip-address-controller/internal/cloud"
)

// nicAPI is the subset of the generated NIC client the driver needs.
type nicAPI interface {
	Get(ctx context.Context, resourceGroup, nicName string) (network.Interface, error)
	CreateOrUpdate(ctx context.Context, resourceGroup, nicName string, iface network.Interface) error
}

// publicIPAPI is the subset of the generated public IP client the driver needs.
type publicIPAPI interface {
	GetByIP(ctx context.Context, resourceGroup, ip string) (network.PublicIPAddress, error)
}

// Driver binds reserved public IPs to a VM's primary NIC IP configuration.
// instanceRef.ID is interpreted as "<resourceGroup>/<nicName>".
type Driver struct {
	nics       nicAPI
	publicIPs  publicIPAPI
	region     string
}

// NewDriver builds a Driver using the ambient Azure credentials (managed identity
// or environment-based service principal), per the ambient-credentials contract of
// spec §6.
func NewDriver(region string) (*Driver, error) {
	authorizer, err := auth.NewAuthorizerFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("creating azure authorizer: %w", err)
	}

	subscriptionID := ""
	nicClient := network.NewInterfacesClient(subscriptionID)
	nicClient.Authorizer = authorizer

	ipClient := network.NewPublicIPAddressesClient(subscriptionID)
	ipClient.Authorizer = authorizer

	return &Driver{
		nics:      &realNICAPI{client: nicClient},
		publicIPs: &realPublicIPAPI{client: ipClient},
		region:    region,
	}, nil
}

// NewDriverWithAPI injects fakes, used by tests.
func NewDriverWithAPI(nics nicAPI, publicIPs publicIPAPI) *Driver {
	return &Driver{nics: nics, publicIPs: publicIPs}
}

var _ cloud.Driver = (*Driver)(nil)

func (d *Driver) GetExternalIPs(ctx context.Context, instanceRef cloud.InstanceRef) ([]string, error) {
	rg, nicName, err := splitRef(instanceRef.ID)
	if err != nil {
		return nil, err
	}

	iface, err := d.nics.Get(ctx, rg, nicName)
	if err != nil {
		return nil, classify("GetExternalIPs", err)
	}

	var ips []string
	if iface.InterfacePropertiesFormat != nil {
		for _, cfg := range *iface.IPConfigurations {
			if cfg.InterfaceIPConfigurationPropertiesFormat != nil && cfg.PublicIPAddress != nil && cfg.PublicIPAddress.PublicIPAddressPropertiesFormat != nil {
				if ip := cfg.PublicIPAddress.IPAddress; ip != nil {
					ips = append(ips, *ip)
				}
			}
		}
	}

	return ips, nil
}

func (d *Driver) AttachIP(ctx context.Context, instanceRef cloud.InstanceRef, ip string) error {
	rg, nicName, err := splitRef(instanceRef.ID)
	if err != nil {
		return err
	}

	pip, err := d.publicIPs.GetByIP(ctx, rg, ip)
	if err != nil {
		return classify("AttachIP", err)
	}

	iface, err := d.nics.Get(ctx, rg, nicName)
	if err != nil {
		return classify("AttachIP", err)
	}

	if iface.InterfacePropertiesFormat == nil || iface.IPConfigurations == nil || len(*iface.IPConfigurations) == 0 {
		return &cloud.Error{Kind: cloud.ErrKindNotFound, Op: "AttachIP", Err: fmt.Errorf("nic %s has no ip configurations", nicName)}
	}

	primary := &(*iface.IPConfigurations)[0]
	props := primary.InterfaceIPConfigurationPropertiesFormat

	if props.PublicIPAddress != nil && props.PublicIPAddress.ID != nil {
		if props.PublicIPAddress.PublicIPAddressPropertiesFormat != nil && props.PublicIPAddress.IPAddress != nil && *props.PublicIPAddress.IPAddress == ip {
			return &cloud.Error{Kind: cloud.ErrKindAlreadyAttached, Op: "AttachIP"}
		}
		return &cloud.Error{Kind: cloud.ErrKindInUseElsewhere, Op: "AttachIP", Err: fmt.Errorf("nic %s primary ip config already bound to another public ip", nicName)}
	}

	props.PublicIPAddress = &pip

	if err := d.nics.CreateOrUpdate(ctx, rg, nicName, iface); err != nil {
		return classify("AttachIP", err)
	}

	return nil
}

func (d *Driver) DetachIP(ctx context.Context, instanceRef cloud.InstanceRef, ip string) error {
	rg, nicName, err := splitRef(instanceRef.ID)
	if err != nil {
		return err
	}

	iface, err := d.nics.Get(ctx, rg, nicName)
	if err != nil {
		if isNotFound(err) {
			return &cloud.Error{Kind: cloud.ErrKindNotAttached, Op: "DetachIP"}
		}
		return classify("DetachIP", err)
	}

	if iface.InterfacePropertiesFormat == nil || iface.IPConfigurations == nil || len(*iface.IPConfigurations) == 0 {
		return &cloud.Error{Kind: cloud.ErrKindNotAttached, Op: "DetachIP"}
	}

	primary := &(*iface.IPConfigurations)[0]
	props := primary.InterfaceIPConfigurationPropertiesFormat

	if props.PublicIPAddress == nil || props.PublicIPAddress.IPAddress == nil || *props.PublicIPAddress.IPAddress != ip {
		return &cloud.Error{Kind: cloud.ErrKindNotAttached, Op: "DetachIP"}
	}

	props.PublicIPAddress = nil

	if err := d.nics.CreateOrUpdate(ctx, rg, nicName, iface); err != nil {
		return classify("DetachIP", err)
	}

	return nil
}

func splitRef(id string) (resourceGroup, nicName string, err error) {
	for i := 0; i < len(id); i++ {
		if id[i] == '/' {
			return id[:i], id[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("instance ref %q must be in \"<resourceGroup>/<nicName>\" form", id)
}

func classify(op string, err error) error {
	if derr, ok := err.(autorest.DetailedError); ok {
		switch derr.StatusCode {
		case 401, 403:
			return &cloud.Error{Kind: cloud.ErrKindAuth, Op: op, Err: derr}
		case 404:
			return &cloud.Error{Kind: cloud.ErrKindNotFound, Op: op, Err: derr}
		case 429, 500, 502, 503:
			return &cloud.Error{Kind: cloud.ErrKindTransient, Op: op, Err: derr}
		}
	}

	return &cloud.Error{Kind: cloud.ErrKindTransient, Op: op, Err: err}
}

func isNotFound(err error) bool {
	derr, ok := err.(autorest.DetailedError)
	if code, ok2 := derr.StatusCode.(int); ok && ok2 {
		return code == 404
	}
	return false
}

type realNICAPI struct {
	client network.InterfacesClient
}

func (r *realNICAPI) Get(ctx context.Context, resourceGroup, nicName string) (network.Interface, error) {
	return r.client.Get(ctx, resourceGroup, nicName, "")
}

func (r *realNICAPI) CreateOrUpdate(ctx context.Context, resourceGroup, nicName string, iface network.Interface) error {
	future, err := r.client.CreateOrUpdate(ctx, resourceGroup, nicName, iface)
	if err != nil {
		return err
	}
	return future.WaitForCompletionRef(ctx, r.client.Client)
}

type realPublicIPAPI struct {
	client network.PublicIPAddressesClient
}

func (r *realPublicIPAPI) GetByIP(ctx context.Context, resourceGroup, ip string) (network.PublicIPAddress, error) {
	list, err := r.client.ListComplete(ctx, resourceGroup)
	if err != nil {
		return network.PublicIPAddress{}, err
	}

	for list.NotDone() {
		pip := list.Value()
		if pip.PublicIPAddressPropertiesFormat != nil && pip.IPAddress != nil && *pip.IPAddress == ip {
			return pip, nil
		}
		if err := list.NextWithContext(ctx); err != nil {
			return network.PublicIPAddress{}, err
		}
	}

	return network.PublicIPAddress{}, fmt.Errorf("no public ip resource found for address %s", ip)
}
