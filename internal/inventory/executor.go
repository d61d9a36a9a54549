/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package inventory

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Executor deletes CAPI cluster objects. Deletion of the underlying
// infrastructure is the cluster lifecycle controller's job; removing the
// object is where this tool's responsibility ends.
type Executor struct {
	client client.Client
	dryRun bool
}

// NewExecutor creates an executor. With dryRun set, Delete only logs what
// it would have done.
func NewExecutor(c client.Client, dryRun bool) *Executor {
	return &Executor{client: c, dryRun: dryRun}
}

// Verify reports whether the referenced CAPI cluster exists. A reference
// that points nowhere is reported, not deleted.
func (e *Executor) Verify(ctx context.Context, ref ObjectRef) (bool, error) {
	if !ref.Complete() {
		return false, nil
	}

	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(capiClusterGVK)
	err := e.client.Get(ctx, types.NamespacedName{Namespace: ref.Namespace, Name: ref.Name}, obj)
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("verifying CAPI cluster %s: %w", ref, err)
	}
	return true, nil
}

// Delete removes the referenced CAPI cluster object. Deleting an object
// that is already gone counts as success; the goal state is "absent".
func (e *Executor) Delete(ctx context.Context, ref ObjectRef) error {
	logger := log.FromContext(ctx)

	if !ref.Complete() {
		return fmt.Errorf("incomplete CAPI cluster reference %q", ref)
	}
	if e.dryRun {
		logger.Info("[dry run] Would delete cluster", "namespace", ref.Namespace, "cluster", ref.Name)
		return nil
	}

	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(capiClusterGVK)
	obj.SetNamespace(ref.Namespace)
	obj.SetName(ref.Name)

	if err := e.client.Delete(ctx, obj); err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("deleting CAPI cluster %s: %w", ref, err)
	}

	logger.Info("Deleted cluster", "namespace", ref.Namespace, "cluster", ref.Name)
	return nil
}

// DryRun reports whether the executor only simulates deletions.
func (e *Executor) DryRun() bool {
	return e.dryRun
}
