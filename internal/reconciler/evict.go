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
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	policyv1 "k8s.io/api/policy/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	// PodAnnotationEvictionPriority mirrors teacher's deletion-priority annotation:
	// pods with a higher value are evicted first, within one node's eviction batch.
	PodAnnotationEvictionPriority = "ip-address-controller.darkbrains.com/eviction-priority"

	evictionGracePeriod = 30 * time.Second
)

// evictNode evicts every non-system pod scheduled on node, batched by descending
// priority annotation exactly as teacher's deletePods does, fanning each batch out
// concurrently and waiting for the batch to clear before moving to the next.
func evictNode(ctx context.Context, c client.Client, node string) error {
	var pods corev1.PodList
	if err := c.List(ctx, &pods, &client.ListOptions{
		FieldSelector: fields.OneTermEqualSelector("spec.nodeName", node),
	}); err != nil {
		return err
	}

	byPriority := map[int][]corev1.Pod{}
	for _, pod := range pods.Items {
		if pod.Namespace == "kube-system" {
			continue
		}

		pri := 0
		if v, ok := pod.Annotations[PodAnnotationEvictionPriority]; ok {
			if parsed, err := strconv.Atoi(v); err == nil {
				pri = parsed
			}
		}
		byPriority[pri] = append(byPriority[pri], pod)
	}

	priorities := make([]int, 0, len(byPriority))
	for pri := range byPriority {
		priorities = append(priorities, pri)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(priorities)))

	for _, pri := range priorities {
		batch := byPriority[pri]

		var wg sync.WaitGroup
		errs := make([]error, len(batch))

		for i := range batch {
			pod := batch[i]
			idx := i

			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[idx] = evictPod(ctx, c, pod)
			}()
		}

		wg.Wait()

		for _, err := range errs {
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func evictPod(ctx context.Context, c client.Client, pod corev1.Pod) error {
	if pod.DeletionTimestamp != nil {
		return nil
	}

	gracePeriodSeconds := int64(evictionGracePeriod.Seconds())

	eviction := &policyv1.Eviction{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: pod.Namespace,
			Name:      pod.Name,
		},
		DeleteOptions: &metav1.DeleteOptions{
			GracePeriodSeconds: &gracePeriodSeconds,
		},
	}

	if err := c.SubResource("eviction").Create(ctx, &pod, eviction); err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return err
	}

	return nil
}
