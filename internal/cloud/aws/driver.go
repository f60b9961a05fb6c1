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

// Package aws implements the cloud.Driver contract against EC2 Elastic IP
// association, the AWS analogue of attaching a public IP to a VM as its primary
// external access configuration.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"

	"github.com/darkbrains/ip-address-controller/internal/cloud"
)

// Driver binds reserved Elastic IPs to EC2 instances.
type Driver struct {
	svc ec2iface.EC2API
}

// NewDriver builds a Driver using the ambient AWS session (environment, shared
// config, or EC2 instance metadata), the same way teacher's awsGetServices
// constructs its ELB/ASG clients.
func NewDriver(region string) (*Driver, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}

	return &Driver{svc: ec2.New(sess)}, nil
}

// NewDriverWithClient injects a pre-built EC2 client, used by tests.
func NewDriverWithClient(svc ec2iface.EC2API) *Driver {
	return &Driver{svc: svc}
}

var _ cloud.Driver = (*Driver)(nil)

func (d *Driver) GetExternalIPs(ctx context.Context, instanceRef cloud.InstanceRef) ([]string, error) {
	out, err := d.svc.DescribeAddressesWithContext(ctx, &ec2.DescribeAddressesInput{
		Filters: []*ec2.Filter{
			{
				Name:   aws.String("instance-id"),
				Values: []*string{aws.String(instanceRef.ID)},
			},
		},
	})
	if err != nil {
		return nil, classify("GetExternalIPs", err)
	}

	ips := make([]string, 0, len(out.Addresses))
	for _, addr := range out.Addresses {
		if addr.PublicIp != nil {
			ips = append(ips, *addr.PublicIp)
		}
	}

	return ips, nil
}

func (d *Driver) AttachIP(ctx context.Context, instanceRef cloud.InstanceRef, ip string) error {
	allocationID, boundInstance, err := d.describeAddress(ctx, ip)
	if err != nil {
		return err
	}

	if boundInstance != "" {
		if boundInstance == instanceRef.ID {
			return &cloud.Error{Kind: cloud.ErrKindAlreadyAttached, Op: "AttachIP"}
		}

		return &cloud.Error{Kind: cloud.ErrKindInUseElsewhere, Op: "AttachIP", Err: fmt.Errorf("ip %s already associated with instance %s", ip, boundInstance)}
	}

	_, err = d.svc.AssociateAddressWithContext(ctx, &ec2.AssociateAddressInput{
		AllocationId: aws.String(allocationID),
		InstanceId:   aws.String(instanceRef.ID),
	})
	if err != nil {
		return classify("AttachIP", err)
	}

	return nil
}

func (d *Driver) DetachIP(ctx context.Context, instanceRef cloud.InstanceRef, ip string) error {
	boundInstance, associationID, err := d.describeAssociation(ctx, ip)
	if err != nil {
		if kindOf(err) == cloud.ErrKindNotFound {
			return &cloud.Error{Kind: cloud.ErrKindNotAttached, Op: "DetachIP"}
		}
		return err
	}

	if associationID == "" || boundInstance != instanceRef.ID {
		return &cloud.Error{Kind: cloud.ErrKindNotAttached, Op: "DetachIP"}
	}

	_, err = d.svc.DisassociateAddressWithContext(ctx, &ec2.DisassociateAddressInput{
		AssociationId: aws.String(associationID),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == "InvalidAssociationID.NotFound" {
			return &cloud.Error{Kind: cloud.ErrKindNotAttached, Op: "DetachIP"}
		}
		return classify("DetachIP", err)
	}

	return nil
}

// describeAddress returns the allocation ID for ip and, if bound, the instance it's
// currently associated with.
func (d *Driver) describeAddress(ctx context.Context, ip string) (allocationID string, instanceID string, err error) {
	out, err := d.svc.DescribeAddressesWithContext(ctx, &ec2.DescribeAddressesInput{
		PublicIps: []*string{aws.String(ip)},
	})
	if err != nil {
		return "", "", classify("DescribeAddresses", err)
	}

	if len(out.Addresses) == 0 {
		return "", "", &cloud.Error{Kind: cloud.ErrKindNotFound, Op: "DescribeAddresses", Err: fmt.Errorf("no elastic ip allocation for %s", ip)}
	}

	addr := out.Addresses[0]

	if addr.AllocationId == nil {
		return "", "", &cloud.Error{Kind: cloud.ErrKindNotFound, Op: "DescribeAddresses", Err: fmt.Errorf("ip %s has no allocation id (not a VPC elastic ip)", ip)}
	}

	if addr.InstanceId != nil {
		instanceID = *addr.InstanceId
	}

	return *addr.AllocationId, instanceID, nil
}

// describeAssociation returns, for ip, the instance it's currently associated with
// and the association ID, both empty when it isn't associated.
func (d *Driver) describeAssociation(ctx context.Context, ip string) (instanceID string, associationID string, err error) {
	out, err := d.svc.DescribeAddressesWithContext(ctx, &ec2.DescribeAddressesInput{
		PublicIps: []*string{aws.String(ip)},
	})
	if err != nil {
		return "", "", classify("DescribeAddresses", err)
	}

	if len(out.Addresses) == 0 {
		return "", "", &cloud.Error{Kind: cloud.ErrKindNotFound, Op: "DescribeAddresses", Err: fmt.Errorf("no elastic ip allocation for %s", ip)}
	}

	addr := out.Addresses[0]

	if addr.InstanceId != nil {
		instanceID = *addr.InstanceId
	}
	if addr.AssociationId != nil {
		associationID = *addr.AssociationId
	}

	return instanceID, associationID, nil
}

// classify turns an AWS SDK error into our cloud.Error taxonomy, in the same
// awserr.Error type-switch style teacher uses throughout aws.go.
func classify(op string, err error) error {
	aerr, ok := err.(awserr.Error)
	if !ok {
		return &cloud.Error{Kind: cloud.ErrKindTransient, Op: op, Err: err}
	}

	switch aerr.Code() {
	case "AuthFailure", "UnauthorizedOperation", "OptInRequired":
		return &cloud.Error{Kind: cloud.ErrKindAuth, Op: op, Err: aerr}
	case "InvalidAddress.NotFound", "InvalidAllocationID.NotFound", "InvalidInstanceID.NotFound":
		return &cloud.Error{Kind: cloud.ErrKindNotFound, Op: op, Err: aerr}
	case "RequestLimitExceeded", "Throttling", "InternalError":
		return &cloud.Error{Kind: cloud.ErrKindTransient, Op: op, Err: aerr}
	default:
		return &cloud.Error{Kind: cloud.ErrKindTransient, Op: op, Err: aerr}
	}
}

func kindOf(err error) cloud.ErrorKind {
	if ce, ok := err.(*cloud.Error); ok {
		return ce.Kind
	}
	return ""
}
