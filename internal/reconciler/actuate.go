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
	"errors"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/darkbrains/ip-address-controller/internal/cloud"
)

// actuate implements Phase 4: execute the plan sequentially. Attach/Detach failures
// (other than the idempotent "already done" outcomes) abort the remainder of the
// plan; Label/Unlabel/Evict failures are counted in softFailures (the supervisor
// logs that count with the tick result) but never abort the tick.
func actuate(ctx context.Context, c client.Client, driver cloud.Driver, pool string, instanceRefs map[string]cloud.InstanceRef, plan []Action) (attached, softFailures int, err error) {
	for _, action := range plan {
		switch action.Kind {
		case ActionAttach:
			ref := instanceRefs[action.Node]
			attachErr := driver.AttachIP(ctx, ref, action.IP)

			var cerr *cloud.Error
			if attachErr != nil && errors.As(attachErr, &cerr) && cerr.Kind == cloud.ErrKindAlreadyAttached {
				attachErr = nil
			}

			if attachErr != nil {
				attachTotal.WithLabelValues(pool, "error").Inc()
				return attached, softFailures, &ReconcileError{Pool: pool, Op: "attach", Kind: classifyCloudErr(attachErr), Err: attachErr}
			}

			attachTotal.WithLabelValues(pool, "ok").Inc()
			attached++

		case ActionDetach:
			ref := instanceRefs[action.Node]
			detachErr := driver.DetachIP(ctx, ref, action.IP)

			var cerr *cloud.Error
			if detachErr != nil && errors.As(detachErr, &cerr) && cerr.Kind == cloud.ErrKindNotAttached {
				detachErr = nil
			}

			if detachErr != nil {
				detachTotal.WithLabelValues(pool, "error").Inc()
				return attached, softFailures, &ReconcileError{Pool: pool, Op: "detach", Kind: classifyCloudErr(detachErr), Err: detachErr}
			}

			detachTotal.WithLabelValues(pool, "ok").Inc()

		case ActionLabel:
			if err := setNodeLabel(ctx, c, action.Node, true); err != nil {
				softFailures++
			}

		case ActionUnlabel:
			if err := setNodeLabel(ctx, c, action.Node, false); err != nil {
				softFailures++
			}

		case ActionEvict:
			if err := evictNode(ctx, c, action.Node); err != nil {
				evictionTotal.WithLabelValues(pool, "error").Inc()
				softFailures++
			} else {
				evictionTotal.WithLabelValues(pool, "ok").Inc()
			}
		}
	}

	return attached, softFailures, nil
}

func setNodeLabel(ctx context.Context, c client.Client, nodeName string, present bool) error {
	var node corev1.Node
	if err := c.Get(ctx, client.ObjectKey{Name: nodeName}, &node); err != nil {
		return err
	}

	updated := node.DeepCopy()
	if updated.Labels == nil {
		updated.Labels = map[string]string{}
	}

	if present {
		updated.Labels[LabelIPReady] = labelIPReadyValue
	} else {
		delete(updated.Labels, LabelIPReady)
	}

	return c.Patch(ctx, updated, client.MergeFrom(&node))
}

func classifyCloudErr(err error) ErrorKind {
	var cerr *cloud.Error
	if errors.As(err, &cerr) {
		switch cerr.Kind {
		case cloud.ErrKindAuth:
			return ErrorKindAuth
		case cloud.ErrKindInUseElsewhere:
			return ErrorKindConflict
		case cloud.ErrKindTransient:
			return ErrorKindTransient
		}
	}
	return ErrorKindTransient
}
