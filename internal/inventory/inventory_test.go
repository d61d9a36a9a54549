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
	"testing"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	scheme.AddKnownTypeWithName(schema.GroupVersionKind{
		Group: "kommander.mesosphere.io", Version: "v1beta1", Kind: "KommanderCluster",
	}, &unstructured.Unstructured{})
	scheme.AddKnownTypeWithName(kommanderClusterListGVK, &unstructured.UnstructuredList{})
	scheme.AddKnownTypeWithName(capiClusterGVK, &unstructured.Unstructured{})
	scheme.AddKnownTypeWithName(schema.GroupVersionKind{
		Group: "cluster.x-k8s.io", Version: "v1beta1", Kind: "ClusterList",
	}, &unstructured.UnstructuredList{})
	return scheme
}

func kommanderCluster(namespace, name string, labels map[string]string, capiRef map[string]interface{}) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(schema.GroupVersionKind{
		Group: "kommander.mesosphere.io", Version: "v1beta1", Kind: "KommanderCluster",
	})
	obj.SetNamespace(namespace)
	obj.SetName(name)
	obj.SetLabels(labels)
	obj.SetCreationTimestamp(metav1.NewTime(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)))
	if capiRef != nil {
		_ = unstructured.SetNestedMap(obj.Object, capiRef, "spec", "clusterRef", "capiCluster")
	}
	return obj
}

func capiCluster(namespace, name string) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(capiClusterGVK)
	obj.SetNamespace(namespace)
	obj.SetName(name)
	return obj
}

func newFakeClient(t *testing.T, objs ...client.Object) client.Client {
	t.Helper()
	return fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(objs...).Build()
}

func TestProviderList(t *testing.T) {
	c := newFakeClient(t,
		kommanderCluster("dev", "alpha",
			map[string]string{"expires": "7d", "owner": "alice"},
			map[string]interface{}{"name": "alpha-capi", "namespace": "dev"}),
		kommanderCluster("kommander", "attached-prod", nil, nil),
		kommanderCluster("staging", "beta",
			map[string]string{"expires": "30d"},
			map[string]interface{}{"name": "beta-capi", "namespace": "staging"}),
	)

	clusters, err := NewProvider(c).List(context.Background(), "")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want 2 (attached cluster skipped)", len(clusters))
	}

	byName := map[string]Cluster{}
	for _, cl := range clusters {
		byName[cl.Name] = cl
	}

	alpha, ok := byName["alpha"]
	if !ok {
		t.Fatal("cluster alpha missing from inventory")
	}
	if alpha.Namespace != "dev" || alpha.Labels["expires"] != "7d" {
		t.Errorf("alpha record = %+v", alpha.ClusterRecord)
	}
	if alpha.CreatedAt.IsZero() {
		t.Error("alpha creation timestamp not populated")
	}
	if alpha.CAPIRef != (ObjectRef{Name: "alpha-capi", Namespace: "dev"}) {
		t.Errorf("alpha CAPI ref = %+v", alpha.CAPIRef)
	}
}

func TestProviderListNamespaceFilter(t *testing.T) {
	c := newFakeClient(t,
		kommanderCluster("dev", "alpha", nil, map[string]interface{}{"name": "alpha-capi", "namespace": "dev"}),
		kommanderCluster("staging", "beta", nil, map[string]interface{}{"name": "beta-capi", "namespace": "staging"}),
	)

	clusters, err := NewProvider(c).List(context.Background(), "dev")
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 1 || clusters[0].Name != "alpha" {
		t.Errorf("namespace-filtered list = %+v, want only alpha", clusters)
	}
}

func TestProviderListIncompleteRef(t *testing.T) {
	// A capiCluster block that exists but lacks a namespace is still listed;
	// the executor refuses to act on it later.
	c := newFakeClient(t,
		kommanderCluster("dev", "partial", nil, map[string]interface{}{"name": "partial-capi"}),
	)

	clusters, err := NewProvider(c).List(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1", len(clusters))
	}
	if clusters[0].CAPIRef.Complete() {
		t.Errorf("ref %+v should be incomplete", clusters[0].CAPIRef)
	}
}

func TestRecords(t *testing.T) {
	c := newFakeClient(t,
		kommanderCluster("dev", "alpha", map[string]string{"expires": "7d"},
			map[string]interface{}{"name": "alpha-capi", "namespace": "dev"}),
		kommanderCluster("staging", "beta", nil,
			map[string]interface{}{"name": "beta-capi", "namespace": "staging"}),
	)

	clusters, err := NewProvider(c).List(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}

	records := Records(clusters)
	if len(records) != len(clusters) {
		t.Fatalf("Records = %d entries, want %d", len(records), len(clusters))
	}
	for i := range records {
		if records[i].Key() != clusters[i].Key() {
			t.Errorf("record %d = %s, want %s", i, records[i].Key(), clusters[i].Key())
		}
	}
}

func TestExecutorVerify(t *testing.T) {
	c := newFakeClient(t, capiCluster("dev", "alpha-capi"))
	e := NewExecutor(c, false)
	ctx := context.Background()

	exists, err := e.Verify(ctx, ObjectRef{Name: "alpha-capi", Namespace: "dev"})
	if err != nil || !exists {
		t.Errorf("Verify existing = %v, %v, want true, nil", exists, err)
	}

	exists, err = e.Verify(ctx, ObjectRef{Name: "ghost", Namespace: "dev"})
	if err != nil || exists {
		t.Errorf("Verify missing = %v, %v, want false, nil", exists, err)
	}

	exists, err = e.Verify(ctx, ObjectRef{Name: "no-namespace"})
	if err != nil || exists {
		t.Errorf("Verify incomplete ref = %v, %v, want false, nil", exists, err)
	}
}

func TestExecutorDelete(t *testing.T) {
	c := newFakeClient(t, capiCluster("dev", "alpha-capi"))
	e := NewExecutor(c, false)
	ctx := context.Background()
	ref := ObjectRef{Name: "alpha-capi", Namespace: "dev"}

	if err := e.Delete(ctx, ref); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	exists, err := e.Verify(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("cluster still exists after Delete")
	}

	// Deleting again is success; the object is absent either way.
	if err := e.Delete(ctx, ref); err != nil {
		t.Errorf("repeat Delete returned error: %v", err)
	}
}

func TestExecutorDeleteIncompleteRef(t *testing.T) {
	e := NewExecutor(newFakeClient(t), false)

	if err := e.Delete(context.Background(), ObjectRef{Name: "only-name"}); err == nil {
		t.Error("expected an error for an incomplete reference")
	}
}

func TestExecutorDryRun(t *testing.T) {
	c := newFakeClient(t, capiCluster("dev", "alpha-capi"))
	e := NewExecutor(c, true)
	ctx := context.Background()
	ref := ObjectRef{Name: "alpha-capi", Namespace: "dev"}

	if !e.DryRun() {
		t.Fatal("DryRun() = false for a dry-run executor")
	}
	if err := e.Delete(ctx, ref); err != nil {
		t.Fatalf("dry-run Delete returned error: %v", err)
	}

	exists, err := e.Verify(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("dry-run Delete actually removed the cluster")
	}
}
