package clusterview

import (
	"context"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/darkbrains/ip-address-controller/api/v1alpha1"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := corev1.AddToScheme(scheme); err != nil {
		t.Fatalf("adding corev1 to scheme: %v", err)
	}
	if err := appsv1.AddToScheme(scheme); err != nil {
		t.Fatalf("adding appsv1 to scheme: %v", err)
	}
	return scheme
}

func TestEligibleNodes_FiltersBySelector(t *testing.T) {
	n1 := &corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "n1", Labels: map[string]string{"role": "pub"}}}
	n2 := &corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "n2", Labels: map[string]string{"role": "priv"}}}

	c := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(n1, n2).Build()
	view := New(c)

	nodes, err := view.EligibleNodes(context.Background(), map[string]string{"role": "pub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(nodes) != 1 || nodes[0].Name != "n1" {
		t.Fatalf("expected only n1, got %v", nodes)
	}
}

func TestEligibleNodes_NoSelectorReturnsAll(t *testing.T) {
	n1 := &corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "n1"}}
	n2 := &corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "n2"}}

	c := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(n1, n2).Build()
	view := New(c)

	nodes, err := view.EligibleNodes(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
}

func TestWorkloadPods_NilRefReturnsNothing(t *testing.T) {
	c := fake.NewClientBuilder().WithScheme(newScheme(t)).Build()
	view := New(c)

	pods, err := view.WorkloadPods(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pods != nil {
		t.Fatalf("expected nil, got %v", pods)
	}
}

func TestWorkloadPods_DeploymentTransitiveOwnership(t *testing.T) {
	rs := &appsv1.ReplicaSet{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "app-abc123",
			Namespace: "ns",
			OwnerReferences: []metav1.OwnerReference{
				{Kind: "Deployment", Name: "app", Controller: boolPtr(true)},
			},
		},
	}

	matchingPod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "app-abc123-xyz",
			Namespace: "ns",
			OwnerReferences: []metav1.OwnerReference{
				{Kind: "ReplicaSet", Name: "app-abc123", Controller: boolPtr(true)},
			},
		},
		Spec:   corev1.PodSpec{NodeName: "n1"},
		Status: corev1.PodStatus{Phase: corev1.PodRunning},
	}

	unrelatedPod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "other",
			Namespace: "ns",
			OwnerReferences: []metav1.OwnerReference{
				{Kind: "ReplicaSet", Name: "other-rs", Controller: boolPtr(true)},
			},
		},
	}

	c := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(rs, matchingPod, unrelatedPod).Build()
	view := New(c)

	ref := &v1alpha1.WorkloadReference{Kind: v1alpha1.WorkloadKindDeployment, Name: "app", Namespace: "ns"}

	pods, err := view.WorkloadPods(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pods) != 1 || pods[0].Name != "app-abc123-xyz" {
		t.Fatalf("expected only the replicaset-owned pod, got %v", pods)
	}
	if !pods[0].Running {
		t.Fatalf("expected pod to be reported running")
	}
}

func TestWorkloadPods_DaemonSetDirectOwnership(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "ds-pod",
			Namespace: "ns",
			OwnerReferences: []metav1.OwnerReference{
				{Kind: "DaemonSet", Name: "agent", Controller: boolPtr(true)},
			},
		},
		Spec: corev1.PodSpec{NodeName: "n1"},
	}

	c := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(pod).Build()
	view := New(c)

	ref := &v1alpha1.WorkloadReference{Kind: v1alpha1.WorkloadKindDaemonSet, Name: "agent", Namespace: "ns"}

	pods, err := view.WorkloadPods(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pods) != 1 || pods[0].Name != "ds-pod" {
		t.Fatalf("expected ds-pod, got %v", pods)
	}
}

func boolPtr(b bool) *bool { return &b }
