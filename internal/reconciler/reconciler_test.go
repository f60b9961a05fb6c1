package reconciler

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/darkbrains/ip-address-controller/api/v1alpha1"
	"github.com/darkbrains/ip-address-controller/internal/clusterview"
	"github.com/darkbrains/ip-address-controller/internal/cloud"
)

// fakeDriver is an in-memory cloud.Driver, in teacher's call-counting mock style
// (aws_test.go's mockElbSvc), tracking which instance currently holds which IP.
type fakeDriver struct {
	bound map[string]string // instance id -> ip
	calls []string

	attachErr error
	inUseOn   string // instance id an attach of a given ip should report InUseElsewhere for
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{bound: map[string]string{}}
}

func (f *fakeDriver) GetExternalIPs(_ context.Context, ref cloud.InstanceRef) ([]string, error) {
	f.calls = append(f.calls, "GetExternalIPs:"+ref.ID)
	if ip, ok := f.bound[ref.ID]; ok {
		return []string{ip}, nil
	}
	return nil, nil
}

func (f *fakeDriver) AttachIP(_ context.Context, ref cloud.InstanceRef, ip string) error {
	f.calls = append(f.calls, "AttachIP:"+ref.ID+":"+ip)

	if f.attachErr != nil {
		return f.attachErr
	}

	if f.inUseOn != "" && f.inUseOn == ref.ID {
		return &cloud.Error{Kind: cloud.ErrKindInUseElsewhere, Op: "AttachIP"}
	}

	for instanceID, boundIP := range f.bound {
		if boundIP == ip && instanceID != ref.ID {
			return &cloud.Error{Kind: cloud.ErrKindInUseElsewhere, Op: "AttachIP"}
		}
	}

	if f.bound[ref.ID] == ip {
		return &cloud.Error{Kind: cloud.ErrKindAlreadyAttached, Op: "AttachIP"}
	}

	f.bound[ref.ID] = ip
	return nil
}

func (f *fakeDriver) DetachIP(_ context.Context, ref cloud.InstanceRef, ip string) error {
	f.calls = append(f.calls, "DetachIP:"+ref.ID+":"+ip)

	if f.bound[ref.ID] != ip {
		return &cloud.Error{Kind: cloud.ErrKindNotAttached, Op: "DetachIP"}
	}

	delete(f.bound, ref.ID)
	return nil
}

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := corev1.AddToScheme(scheme); err != nil {
		t.Fatalf("adding corev1: %v", err)
	}
	if err := v1alpha1.AddToScheme(scheme); err != nil {
		t.Fatalf("adding v1alpha1: %v", err)
	}
	return scheme
}

func gceNode(name, instance, zone string, unschedulable bool, labels map[string]string) *corev1.Node {
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name, Labels: labels},
		Spec: corev1.NodeSpec{
			ProviderID:    "gce://proj/" + zone + "/" + instance,
			Unschedulable: unschedulable,
		},
	}
}

func newReconciler(t *testing.T, driver *fakeDriver, objs ...client.Object) *Reconciler {
	t.Helper()
	c := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(objs...).Build()
	return &Reconciler{
		View:      clusterview.New(c),
		NewDriver: func(v1alpha1.CloudDescriptor) (cloud.Driver, error) { return driver, nil },
	}
}

func TestReconcile_InitialAttach(t *testing.T) {
	n1 := gceNode("n1", "i-1", "us-central1-a", false, map[string]string{"role": "pub"})
	n2 := gceNode("n2", "i-2", "us-central1-a", false, map[string]string{"role": "pub"})

	driver := newFakeDriver()
	r := newReconciler(t, driver, n1, n2)

	pool := &v1alpha1.NetIPAllocation{
		ObjectMeta: metav1.ObjectMeta{Name: "pool-a"},
		Spec: v1alpha1.NetIPAllocationSpec{
			ReservedIPs:  []string{"34.1.1.1", "34.1.1.2"},
			NodeSelector: map[string]string{"role": "pub"},
			Cloud:        v1alpha1.CloudDescriptor{Provider: v1alpha1.CloudProviderGCP},
		},
	}

	result, err := r.Reconcile(context.Background(), pool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Attached != 2 {
		t.Fatalf("expected 2 attached, got %d", result.Attached)
	}
	if driver.bound["i-1"] == "" || driver.bound["i-2"] == "" {
		t.Fatalf("expected both instances bound, got %v", driver.bound)
	}
}

func TestReconcile_FewerNodesThanIPs(t *testing.T) {
	n1 := gceNode("n1", "i-1", "us-central1-a", false, map[string]string{"role": "pub"})
	n2 := gceNode("n2", "i-2", "us-central1-a", false, map[string]string{"role": "pub"})

	driver := newFakeDriver()
	r := newReconciler(t, driver, n1, n2)

	pool := &v1alpha1.NetIPAllocation{
		ObjectMeta: metav1.ObjectMeta{Name: "pool-b"},
		Spec: v1alpha1.NetIPAllocationSpec{
			ReservedIPs:  []string{"34.1.1.1", "34.1.1.2", "34.1.1.3"},
			NodeSelector: map[string]string{"role": "pub"},
			Cloud:        v1alpha1.CloudDescriptor{Provider: v1alpha1.CloudProviderGCP},
		},
	}

	result, err := r.Reconcile(context.Background(), pool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Attached != 2 {
		t.Fatalf("expected 2 attached (surplus IP unattached), got %d", result.Attached)
	}
}

func TestReconcile_IdempotentSecondTick(t *testing.T) {
	n1 := gceNode("n1", "i-1", "us-central1-a", false, map[string]string{"role": "pub"})

	driver := newFakeDriver()
	r := newReconciler(t, driver, n1)

	pool := &v1alpha1.NetIPAllocation{
		ObjectMeta: metav1.ObjectMeta{Name: "pool-c"},
		Spec: v1alpha1.NetIPAllocationSpec{
			ReservedIPs:  []string{"34.1.1.1"},
			NodeSelector: map[string]string{"role": "pub"},
			Cloud:        v1alpha1.CloudDescriptor{Provider: v1alpha1.CloudProviderGCP},
		},
	}

	if _, err := r.Reconcile(context.Background(), pool); err != nil {
		t.Fatalf("first tick: unexpected error: %v", err)
	}

	driver.calls = nil

	result, err := r.Reconcile(context.Background(), pool)
	if err != nil {
		t.Fatalf("second tick: unexpected error: %v", err)
	}

	for _, call := range driver.calls {
		if len(call) >= 9 && call[:9] == "AttachIP:" {
			t.Fatalf("expected zero attach calls on unchanged snapshot, got %v", driver.calls)
		}
	}
	if result.Attached != 1 {
		t.Fatalf("expected steady state attached=1, got %d", result.Attached)
	}
}

func TestReconcile_EmptyReservedIPsIsNoop(t *testing.T) {
	driver := newFakeDriver()
	r := newReconciler(t, driver)

	pool := &v1alpha1.NetIPAllocation{
		ObjectMeta: metav1.ObjectMeta{Name: "pool-d"},
		Spec: v1alpha1.NetIPAllocationSpec{
			Cloud: v1alpha1.CloudDescriptor{Provider: v1alpha1.CloudProviderGCP},
		},
	}

	result, err := r.Reconcile(context.Background(), pool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Reserved != 0 || result.Attached != 0 {
		t.Fatalf("expected no-op result, got %+v", result)
	}
}

func TestReconcile_InvalidSpecRejectsDuplicateIPs(t *testing.T) {
	driver := newFakeDriver()
	r := newReconciler(t, driver)

	pool := &v1alpha1.NetIPAllocation{
		ObjectMeta: metav1.ObjectMeta{Name: "pool-e"},
		Spec: v1alpha1.NetIPAllocationSpec{
			ReservedIPs: []string{"34.1.1.1", "34.1.1.1"},
			Cloud:       v1alpha1.CloudDescriptor{Provider: v1alpha1.CloudProviderGCP},
		},
	}

	_, err := r.Reconcile(context.Background(), pool)
	if err == nil {
		t.Fatalf("expected invalid_spec error for duplicate reserved ips")
	}

	var rerr *ReconcileError
	if !asReconcileError(err, &rerr) || rerr.Kind != ErrorKindInvalidSpec {
		t.Fatalf("expected ErrorKindInvalidSpec, got %v", err)
	}
}

func asReconcileError(err error, target **ReconcileError) bool {
	rerr, ok := err.(*ReconcileError)
	if !ok {
		return false
	}
	*target = rerr
	return true
}
