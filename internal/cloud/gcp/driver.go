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

// Package gcp implements the cloud.Driver contract against Compute Engine access
// configurations. This is the spec's reference provider: "attached ... as a primary
// external access configuration" is GCE's own vocabulary for what this package does.
package gcp

import (
	"context"
	"fmt"

	"google.golang.org/api/compute/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/darkbrains/ip-address-controller/internal/cloud"
)

const accessConfigName = "External NAT"

// instancesAPI is the subset of the generated compute client the driver needs,
// narrowed so tests can substitute a fake.
type instancesAPI interface {
	Get(ctx context.Context, project, zone, instance string) (*compute.Instance, error)
	AddAccessConfig(ctx context.Context, project, zone, instance, networkInterface string, cfg *compute.AccessConfig) error
	DeleteAccessConfig(ctx context.Context, project, zone, instance, networkInterface, accessConfig string) error
}

// Driver binds reserved external IPs to GCE instances via access configurations on
// the instance's primary network interface ("nic0").
type Driver struct {
	project string
	api     instancesAPI
}

// NewDriver builds a Driver using application default credentials (workload
// identity or a mounted service account key), the ambient mechanism named in
// spec §6.
func NewDriver(project string) (*Driver, error) {
	svc, err := compute.NewService(context.Background(), option.WithScopes(compute.ComputeScope))
	if err != nil {
		return nil, fmt.Errorf("creating gce compute client: %w", err)
	}

	return &Driver{project: project, api: &realInstancesAPI{svc: svc}}, nil
}

// NewDriverWithAPI injects a fake instancesAPI, used by tests.
func NewDriverWithAPI(project string, api instancesAPI) *Driver {
	return &Driver{project: project, api: api}
}

var _ cloud.Driver = (*Driver)(nil)

func (d *Driver) GetExternalIPs(ctx context.Context, instanceRef cloud.InstanceRef) ([]string, error) {
	inst, err := d.api.Get(ctx, d.project, instanceRef.Zone, instanceRef.ID)
	if err != nil {
		return nil, classify("GetExternalIPs", err)
	}

	var ips []string
	for _, iface := range inst.NetworkInterfaces {
		for _, ac := range iface.AccessConfigs {
			if ac.NatIP != "" {
				ips = append(ips, ac.NatIP)
			}
		}
	}

	return ips, nil
}

func (d *Driver) AttachIP(ctx context.Context, instanceRef cloud.InstanceRef, ip string) error {
	inst, err := d.api.Get(ctx, d.project, instanceRef.Zone, instanceRef.ID)
	if err != nil {
		return classify("AttachIP", err)
	}

	if len(inst.NetworkInterfaces) == 0 {
		return &cloud.Error{Kind: cloud.ErrKindNotFound, Op: "AttachIP", Err: fmt.Errorf("instance %s has no network interfaces", instanceRef.ID)}
	}

	primary := inst.NetworkInterfaces[0]

	for _, ac := range primary.AccessConfigs {
		if ac.NatIP == ip {
			return &cloud.Error{Kind: cloud.ErrKindAlreadyAttached, Op: "AttachIP"}
		}
		if ac.NatIP != "" {
			return &cloud.Error{Kind: cloud.ErrKindInUseElsewhere, Op: "AttachIP", Err: fmt.Errorf("nic0 already carries access config for %s, cannot also bind %s", ac.NatIP, ip)}
		}
	}

	err = d.api.AddAccessConfig(ctx, d.project, instanceRef.Zone, instanceRef.ID, primary.Name, &compute.AccessConfig{
		Name:  accessConfigName,
		Type:  "ONE_TO_ONE_NAT",
		NatIP: ip,
	})
	if err != nil {
		return classify("AttachIP", err)
	}

	return nil
}

func (d *Driver) DetachIP(ctx context.Context, instanceRef cloud.InstanceRef, ip string) error {
	inst, err := d.api.Get(ctx, d.project, instanceRef.Zone, instanceRef.ID)
	if err != nil {
		if isNotFound(err) {
			return &cloud.Error{Kind: cloud.ErrKindNotAttached, Op: "DetachIP"}
		}
		return classify("DetachIP", err)
	}

	if len(inst.NetworkInterfaces) == 0 {
		return &cloud.Error{Kind: cloud.ErrKindNotAttached, Op: "DetachIP"}
	}

	primary := inst.NetworkInterfaces[0]

	var found bool
	for _, ac := range primary.AccessConfigs {
		if ac.NatIP == ip {
			found = true
			break
		}
	}

	if !found {
		return &cloud.Error{Kind: cloud.ErrKindNotAttached, Op: "DetachIP"}
	}

	err = d.api.DeleteAccessConfig(ctx, d.project, instanceRef.Zone, instanceRef.ID, primary.Name, accessConfigName)
	if err != nil {
		if isNotFound(err) {
			return &cloud.Error{Kind: cloud.ErrKindNotAttached, Op: "DetachIP"}
		}
		return classify("DetachIP", err)
	}

	return nil
}

func classify(op string, err error) error {
	if gerr, ok := err.(*googleapi.Error); ok {
		switch gerr.Code {
		case 401, 403:
			return &cloud.Error{Kind: cloud.ErrKindAuth, Op: op, Err: gerr}
		case 404:
			return &cloud.Error{Kind: cloud.ErrKindNotFound, Op: op, Err: gerr}
		case 429, 500, 502, 503:
			return &cloud.Error{Kind: cloud.ErrKindTransient, Op: op, Err: gerr}
		}
	}

	return &cloud.Error{Kind: cloud.ErrKindTransient, Op: op, Err: err}
}

func isNotFound(err error) bool {
	gerr, ok := err.(*googleapi.Error)
	return ok && gerr.Code == 404
}

// realInstancesAPI adapts the generated compute.Service to instancesAPI.
type realInstancesAPI struct {
	svc *compute.Service
}

func (r *realInstancesAPI) Get(ctx context.Context, project, zone, instance string) (*compute.Instance, error) {
	return r.svc.Instances.Get(project, zone, instance).Context(ctx).Do()
}

func (r *realInstancesAPI) AddAccessConfig(ctx context.Context, project, zone, instance, networkInterface string, cfg *compute.AccessConfig) error {
	_, err := r.svc.Instances.AddAccessConfig(project, zone, instance, networkInterface, cfg).Context(ctx).Do()
	return err
}

func (r *realInstancesAPI) DeleteAccessConfig(ctx context.Context, project, zone, instance, networkInterface, accessConfig string) error {
	_, err := r.svc.Instances.DeleteAccessConfig(project, zone, instance, networkInterface, accessConfig).Context(ctx).Do()
	return err
}
