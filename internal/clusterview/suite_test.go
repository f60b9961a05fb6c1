package clusterview

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/envtest"

	"github.com/darkbrains/ip-address-controller/api/v1alpha1"
)

// Bootstraps a real apiserver via envtest, grounded on the teacher's
// SetupTest/BeforeEach/AfterEach pattern in node_controller_test.go, exercising
// selector filtering and ownership resolution against real apiserver semantics
// rather than the in-memory fake client used by view_test.go.

var (
	testEnv   *envtest.Environment
	cfg       *rest.Config
	k8sClient client.Client
)

func TestClusterView(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "clusterview suite")
}

var _ = BeforeSuite(func() {
	testEnv = &envtest.Environment{
		ErrorIfCRDPathMissing: false,
		CRDDirectoryPaths:     []string{filepath.Join("..", "..", "config", "crd", "bases")},
	}

	var err error
	cfg, err = testEnv.Start()
	Expect(err).NotTo(HaveOccurred())
	Expect(cfg).NotTo(BeNil())

	sch := runtime.NewScheme()
	Expect(scheme.AddToScheme(sch)).To(Succeed())
	Expect(appsv1.AddToScheme(sch)).To(Succeed())
	Expect(v1alpha1.AddToScheme(sch)).To(Succeed())

	k8sClient, err = client.New(cfg, client.Options{Scheme: sch})
	Expect(err).NotTo(HaveOccurred())
	Expect(k8sClient).NotTo(BeNil())
})

var _ = AfterSuite(func() {
	Expect(testEnv.Stop()).To(Succeed())
})

var letterRunes = []rune("abcdefghijklmnopqrstuvwxyz0123456789")

func randSuffix(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letterRunes[rand.Intn(len(letterRunes))]
	}
	return string(b)
}

var _ = Describe("View against a real apiserver", func() {
	ctx := context.Background()
	var ns *corev1.Namespace

	BeforeEach(func() {
		ns = &corev1.Namespace{
			ObjectMeta: metav1.ObjectMeta{Name: "cv-" + randSuffix(5)},
		}
		Expect(k8sClient.Create(ctx, ns)).To(Succeed())
	})

	AfterEach(func() {
		Expect(k8sClient.Delete(ctx, ns)).To(Succeed())

		var nodes corev1.NodeList
		Expect(k8sClient.List(ctx, &nodes)).To(Succeed())
		for i := range nodes.Items {
			Expect(k8sClient.Delete(ctx, &nodes.Items[i])).To(Succeed())
		}
	})

	It("filters eligible nodes by selector", func() {
		name := "node-" + randSuffix(5)
		node := &corev1.Node{
			ObjectMeta: metav1.ObjectMeta{
				Name:   name,
				Labels: map[string]string{"role": "public"},
			},
		}
		Expect(k8sClient.Create(ctx, node)).To(Succeed())

		view := New(k8sClient)

		Eventually(func() ([]Node, error) {
			return view.EligibleNodes(ctx, map[string]string{"role": "public"})
		}, 5*time.Second, 250*time.Millisecond).ShouldNot(BeEmpty())

		nodes, err := view.EligibleNodes(ctx, map[string]string{"role": "other"})
		Expect(err).NotTo(HaveOccurred())
		Expect(nodes).To(BeEmpty())
	})

	It("resolves workload pods transitively through a Deployment's ReplicaSet", func() {
		dep := &appsv1.Deployment{
			ObjectMeta: metav1.ObjectMeta{Name: "app", Namespace: ns.Name},
		}
		Expect(k8sClient.Create(ctx, dep)).To(Succeed())

		rs := &appsv1.ReplicaSet{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "app-rs",
				Namespace: ns.Name,
				OwnerReferences: []metav1.OwnerReference{
					{
						APIVersion: "apps/v1",
						Kind:       "Deployment",
						Name:       dep.Name,
						UID:        dep.UID,
						Controller: boolPtr(true),
					},
				},
			},
		}
		Expect(k8sClient.Create(ctx, rs)).To(Succeed())

		pod := &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "app-rs-abcde",
				Namespace: ns.Name,
				OwnerReferences: []metav1.OwnerReference{
					{
						APIVersion: "apps/v1",
						Kind:       "ReplicaSet",
						Name:       rs.Name,
						UID:        rs.UID,
						Controller: boolPtr(true),
					},
				},
			},
			Spec: corev1.PodSpec{
				NodeName: "node-x",
				Containers: []corev1.Container{
					{Name: "primary", Image: "nginx:latest"},
				},
			},
		}
		Expect(k8sClient.Create(ctx, pod)).To(Succeed())

		view := New(k8sClient)
		ref := &v1alpha1.WorkloadReference{
			Kind:      v1alpha1.WorkloadKindDeployment,
			Name:      dep.Name,
			Namespace: ns.Name,
		}

		Eventually(func() ([]WorkloadPod, error) {
			return view.WorkloadPods(ctx, ref)
		}, 5*time.Second, 250*time.Millisecond).Should(HaveLen(1))

		var found corev1.Pod
		Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: ns.Name, Name: pod.Name}, &found)).To(Succeed())
	})
})
