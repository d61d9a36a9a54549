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
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/clusterjanitor/internal/policy"
)

// ErrUnavailable reports that the management cluster's API could not serve
// the inventory. Without inventory a run cannot proceed.
var ErrUnavailable = errors.New("inventory unavailable")

var (
	kommanderClusterListGVK = schema.GroupVersionKind{
		Group:   "kommander.mesosphere.io",
		Version: "v1beta1",
		Kind:    "KommanderClusterList",
	}
	capiClusterGVK = schema.GroupVersionKind{
		Group:   "cluster.x-k8s.io",
		Version: "v1beta1",
		Kind:    "Cluster",
	}
)

// ObjectRef names a namespaced Kubernetes object.
type ObjectRef struct {
	Name      string
	Namespace string
}

func (r ObjectRef) String() string {
	return r.Namespace + "/" + r.Name
}

// Complete reports whether the reference names an actual object.
func (r ObjectRef) Complete() bool {
	return r.Name != "" && r.Namespace != ""
}

// Cluster is one managed workload cluster: the record policy evaluation
// runs on plus the CAPI object deletion acts on.
type Cluster struct {
	policy.ClusterRecord
	CAPIRef ObjectRef
}

// Provider lists managed clusters from the management cluster's API.
type Provider struct {
	client client.Client
}

// NewProvider creates a provider over an existing API client.
func NewProvider(c client.Client) *Provider {
	return &Provider{client: c}
}

// List returns the managed clusters, optionally restricted to one
// namespace. Attached clusters, those without a spec.clusterRef.capiCluster
// reference, are skipped; this tool does not own their lifecycle.
func (p *Provider) List(ctx context.Context, namespace string) ([]Cluster, error) {
	logger := log.FromContext(ctx)

	list := &unstructured.UnstructuredList{}
	list.SetGroupVersionKind(kommanderClusterListGVK)

	var opts []client.ListOption
	if namespace != "" {
		opts = append(opts, client.InNamespace(namespace))
	}
	if err := p.client.List(ctx, list, opts...); err != nil {
		return nil, fmt.Errorf("%w: listing KommanderClusters (is Kommander installed?): %v", ErrUnavailable, err)
	}

	clusters := make([]Cluster, 0, len(list.Items))
	for _, item := range list.Items {
		ref, ok := capiReference(&item)
		if !ok {
			logger.V(1).Info("Skipping attached cluster without CAPI reference",
				"namespace", item.GetNamespace(), "cluster", item.GetName())
			continue
		}

		clusters = append(clusters, Cluster{
			ClusterRecord: policy.ClusterRecord{
				Name:      item.GetName(),
				Namespace: item.GetNamespace(),
				CreatedAt: item.GetCreationTimestamp().Time,
				Labels:    item.GetLabels(),
			},
			CAPIRef: ref,
		})
	}
	return clusters, nil
}

// capiReference extracts spec.clusterRef.capiCluster. The second return is
// false when the field is absent entirely, which marks an attached cluster.
// A present but incomplete reference is returned as-is; callers decide how
// to report it.
func capiReference(obj *unstructured.Unstructured) (ObjectRef, bool) {
	capi, found, err := unstructured.NestedMap(obj.Object, "spec", "clusterRef", "capiCluster")
	if err != nil || !found {
		return ObjectRef{}, false
	}

	ref := ObjectRef{}
	if name, ok := capi["name"].(string); ok {
		ref.Name = name
	}
	if ns, ok := capi["namespace"].(string); ok {
		ref.Namespace = ns
	}
	return ref, true
}

// Records projects the policy-relevant part of a cluster list, in order.
func Records(clusters []Cluster) []policy.ClusterRecord {
	records := make([]policy.ClusterRecord, len(clusters))
	for i, c := range clusters {
		records[i] = c.ClusterRecord
	}
	return records
}
