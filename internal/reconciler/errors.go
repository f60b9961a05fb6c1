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

import "fmt"

// ErrorKind is the error taxonomy surfaced to metrics and logs.
type ErrorKind string

const (
	ErrorKindTransient   ErrorKind = "transient"
	ErrorKindAuth        ErrorKind = "auth"
	ErrorKindConflict    ErrorKind = "conflict"
	ErrorKindInvalidSpec ErrorKind = "invalid_spec"
	ErrorKindInternal    ErrorKind = "internal"
)

// ReconcileError wraps the outcome of a failed tick with enough context for the
// supervisor to log and for metrics to bucket it, without the reconciler ever
// panicking on cloud or cluster errors.
type ReconcileError struct {
	Pool string
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("pool %s: %s: %s: %v", e.Pool, e.Op, e.Kind, e.Err)
}

func (e *ReconcileError) Unwrap() error { return e.Err }
