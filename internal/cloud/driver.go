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

// Package cloud defines the abstract contract every cloud-provider driver must satisfy:
// discovering a VM's currently-bound public IPs, and attaching/detaching a specific
// reserved IP to/from it as its primary external access configuration.
package cloud

import (
	"context"
	"fmt"
)

// InstanceRef identifies a single VM at the cloud provider.
type InstanceRef struct {
	// ID is the provider-assigned instance identifier.
	ID string

	// Zone is the provider zone the instance runs in, when the provider is zone-scoped.
	Zone string

	// Region is the provider region, when the provider addresses resources by region
	// rather than (or in addition to) zone.
	Region string
}

// ErrorKind classifies a driver error so the reconciler can decide whether to retry,
// abort the tick, or treat the call as having already succeeded.
type ErrorKind string

const (
	// ErrKindNotFound means the instance or binding referenced doesn't exist.
	ErrKindNotFound ErrorKind = "not_found"

	// ErrKindTransient means the call failed for a reason expected to clear on retry
	// (rate limiting, timeouts, 5xx responses).
	ErrKindTransient ErrorKind = "transient"

	// ErrKindAuth means the call failed for a credentials/authorization reason.
	ErrKindAuth ErrorKind = "auth"

	// ErrKindAlreadyAttached means an AttachIP call found the IP already bound to the
	// requested instance; callers must treat this as success.
	ErrKindAlreadyAttached ErrorKind = "already_attached"

	// ErrKindInUseElsewhere means an AttachIP call found the IP bound to a different
	// instance than requested, or (gcp, azure) found the instance's primary interface
	// already bound to a different IP; callers must treat this as a hard conflict.
	ErrKindInUseElsewhere ErrorKind = "in_use_elsewhere"

	// ErrKindNotAttached means a DetachIP call found no such binding; callers must
	// treat this as success (idempotent detach).
	ErrKindNotAttached ErrorKind = "not_attached"
)

// Error is the typed error every Driver implementation returns so the reconciler can
// classify outcomes without depending on any single provider's SDK error types.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, cloud.Kind(cloud.ErrKindTransient)) work by comparing
// against a bare *Error carrying only a Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Kind is a convenience constructor for sentinel comparisons, e.g.
// errors.Is(err, cloud.Kind(cloud.ErrKindTransient)).
func Kind(k ErrorKind) *Error { return &Error{Kind: k} }

// Driver is the abstract, provider-specific capability set the reconciler consumes.
// Every operation must be idempotent: the reconciler relies on repeated calls being
// safe for crash recovery (see spec §4.2).
type Driver interface {
	// GetExternalIPs returns the set of public IPs currently attached to instanceRef
	// as primary external access configurations.
	GetExternalIPs(ctx context.Context, instanceRef InstanceRef) ([]string, error)

	// AttachIP attaches ip to instanceRef as its primary external access configuration.
	// Returns a *Error with ErrKindAlreadyAttached (treated as success by the caller)
	// or ErrKindInUseElsewhere (a hard error) as appropriate.
	AttachIP(ctx context.Context, instanceRef InstanceRef, ip string) error

	// DetachIP removes ip from instanceRef. Returns a *Error with ErrKindNotAttached
	// (treated as success by the caller) when no such binding exists.
	DetachIP(ctx context.Context, instanceRef InstanceRef, ip string) error
}
