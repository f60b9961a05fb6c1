package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	awsrequest "github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"

	"github.com/darkbrains/ip-address-controller/internal/cloud"
)

// mockEC2 embeds the real interface so we only need to implement the handful of
// methods the driver actually calls, in the same style as teacher's mockElbSvc.
type mockEC2 struct {
	ec2iface.EC2API

	addresses []*ec2.Address
	calls     []string

	associateErr    error
	disassociateErr error
}

func (m *mockEC2) DescribeAddressesWithContext(_ awsrequest.Context, in *ec2.DescribeAddressesInput, _ ...awsrequest.Option) (*ec2.DescribeAddressesOutput, error) {
	m.calls = append(m.calls, "DescribeAddresses")

	if len(in.PublicIps) == 0 {
		// GetExternalIPs-style query by instance-id filter: return everything bound
		// to the requested instance.
		instanceID := ""
		for _, f := range in.Filters {
			if aws.StringValue(f.Name) == "instance-id" && len(f.Values) > 0 {
				instanceID = aws.StringValue(f.Values[0])
			}
		}

		var matched []*ec2.Address
		for _, a := range m.addresses {
			if aws.StringValue(a.InstanceId) == instanceID {
				matched = append(matched, a)
			}
		}
		return &ec2.DescribeAddressesOutput{Addresses: matched}, nil
	}

	want := aws.StringValue(in.PublicIps[0])
	for _, a := range m.addresses {
		if aws.StringValue(a.PublicIp) == want {
			return &ec2.DescribeAddressesOutput{Addresses: []*ec2.Address{a}}, nil
		}
	}

	return &ec2.DescribeAddressesOutput{}, nil
}

func (m *mockEC2) AssociateAddressWithContext(_ awsrequest.Context, in *ec2.AssociateAddressInput, _ ...awsrequest.Option) (*ec2.AssociateAddressOutput, error) {
	m.calls = append(m.calls, "AssociateAddress")

	if m.associateErr != nil {
		return nil, m.associateErr
	}

	for _, a := range m.addresses {
		if aws.StringValue(a.AllocationId) == aws.StringValue(in.AllocationId) {
			a.InstanceId = in.InstanceId
			a.AssociationId = aws.String("assoc-" + aws.StringValue(in.InstanceId))
		}
	}

	return &ec2.AssociateAddressOutput{}, nil
}

func (m *mockEC2) DisassociateAddressWithContext(_ awsrequest.Context, in *ec2.DisassociateAddressInput, _ ...awsrequest.Option) (*ec2.DisassociateAddressOutput, error) {
	m.calls = append(m.calls, "DisassociateAddress")

	if m.disassociateErr != nil {
		return nil, m.disassociateErr
	}

	for _, a := range m.addresses {
		if aws.StringValue(a.AssociationId) == aws.StringValue(in.AssociationId) {
			a.InstanceId = nil
			a.AssociationId = nil
		}
	}

	return &ec2.DisassociateAddressOutput{}, nil
}

func addr(allocID, ip, instanceID, assocID string) *ec2.Address {
	a := &ec2.Address{
		AllocationId: aws.String(allocID),
		PublicIp:     aws.String(ip),
	}
	if instanceID != "" {
		a.InstanceId = aws.String(instanceID)
	}
	if assocID != "" {
		a.AssociationId = aws.String(assocID)
	}
	return a
}

func TestAttachIP_NewBinding(t *testing.T) {
	m := &mockEC2{addresses: []*ec2.Address{addr("eipalloc-1", "34.1.1.1", "", "")}}
	d := NewDriverWithClient(m)

	if err := d.AttachIP(context.Background(), cloud.InstanceRef{ID: "i-1"}, "34.1.1.1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAttachIP_AlreadyAttachedIsSuccess(t *testing.T) {
	m := &mockEC2{addresses: []*ec2.Address{addr("eipalloc-1", "34.1.1.1", "i-1", "assoc-1")}}
	d := NewDriverWithClient(m)

	err := d.AttachIP(context.Background(), cloud.InstanceRef{ID: "i-1"}, "34.1.1.1")

	var ce *cloud.Error
	if !errors.As(err, &ce) || ce.Kind != cloud.ErrKindAlreadyAttached {
		t.Fatalf("expected AlreadyAttached, got %v", err)
	}
}

func TestAttachIP_InUseElsewhereIsHardError(t *testing.T) {
	m := &mockEC2{addresses: []*ec2.Address{addr("eipalloc-1", "34.1.1.1", "i-2", "assoc-2")}}
	d := NewDriverWithClient(m)

	err := d.AttachIP(context.Background(), cloud.InstanceRef{ID: "i-1"}, "34.1.1.1")

	var ce *cloud.Error
	if !errors.As(err, &ce) || ce.Kind != cloud.ErrKindInUseElsewhere {
		t.Fatalf("expected InUseElsewhere, got %v", err)
	}
}

func TestDetachIP_IdempotentWhenNotAttached(t *testing.T) {
	m := &mockEC2{addresses: []*ec2.Address{addr("eipalloc-1", "34.1.1.1", "", "")}}
	d := NewDriverWithClient(m)

	err := d.DetachIP(context.Background(), cloud.InstanceRef{ID: "i-1"}, "34.1.1.1")

	var ce *cloud.Error
	if !errors.As(err, &ce) || ce.Kind != cloud.ErrKindNotAttached {
		t.Fatalf("expected NotAttached treated as idempotent success, got %v", err)
	}
}

func TestDetachIP_Success(t *testing.T) {
	m := &mockEC2{addresses: []*ec2.Address{addr("eipalloc-1", "34.1.1.1", "i-1", "assoc-1")}}
	d := NewDriverWithClient(m)

	if err := d.DetachIP(context.Background(), cloud.InstanceRef{ID: "i-1"}, "34.1.1.1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.addresses[0].InstanceId != nil {
		t.Fatalf("expected instance id cleared after detach")
	}
}

func TestAttachIP_AuthErrorClassified(t *testing.T) {
	m := &mockEC2{
		addresses:    []*ec2.Address{addr("eipalloc-1", "34.1.1.1", "", "")},
		associateErr: awserr.New("UnauthorizedOperation", "not allowed", nil),
	}
	d := NewDriverWithClient(m)

	err := d.AttachIP(context.Background(), cloud.InstanceRef{ID: "i-1"}, "34.1.1.1")

	var ce *cloud.Error
	if !errors.As(err, &ce) || ce.Kind != cloud.ErrKindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestGetExternalIPs(t *testing.T) {
	m := &mockEC2{addresses: []*ec2.Address{
		addr("eipalloc-1", "34.1.1.1", "i-1", "assoc-1"),
		addr("eipalloc-2", "34.1.1.2", "i-2", "assoc-2"),
	}}
	d := NewDriverWithClient(m)

	ips, err := d.GetExternalIPs(context.Background(), cloud.InstanceRef{ID: "i-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ips) != 1 || ips[0] != "34.1.1.1" {
		t.Fatalf("expected [34.1.1.1], got %v", ips)
	}
}
