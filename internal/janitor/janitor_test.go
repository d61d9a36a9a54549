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

package janitor

import (
	"context"
	"sync"
	"testing"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/mikelane/clusterjanitor/internal/analytics"
	"github.com/mikelane/clusterjanitor/internal/config"
	"github.com/mikelane/clusterjanitor/internal/inventory"
	"github.com/mikelane/clusterjanitor/internal/metrics"
	"github.com/mikelane/clusterjanitor/internal/notify"
	"github.com/mikelane/clusterjanitor/internal/store"
)

var runNow = time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	scheme.AddKnownTypeWithName(schema.GroupVersionKind{
		Group: "kommander.mesosphere.io", Version: "v1beta1", Kind: "KommanderCluster",
	}, &unstructured.Unstructured{})
	scheme.AddKnownTypeWithName(schema.GroupVersionKind{
		Group: "kommander.mesosphere.io", Version: "v1beta1", Kind: "KommanderClusterList",
	}, &unstructured.UnstructuredList{})
	scheme.AddKnownTypeWithName(schema.GroupVersionKind{
		Group: "cluster.x-k8s.io", Version: "v1beta1", Kind: "Cluster",
	}, &unstructured.Unstructured{})
	scheme.AddKnownTypeWithName(schema.GroupVersionKind{
		Group: "cluster.x-k8s.io", Version: "v1beta1", Kind: "ClusterList",
	}, &unstructured.UnstructuredList{})
	return scheme
}

// managedCluster builds a KommanderCluster plus the CAPI object it
// references, created age before the fixed test clock.
func managedCluster(namespace, name string, age time.Duration, labels map[string]string) []client.Object {
	kc := &unstructured.Unstructured{}
	kc.SetGroupVersionKind(schema.GroupVersionKind{
		Group: "kommander.mesosphere.io", Version: "v1beta1", Kind: "KommanderCluster",
	})
	kc.SetNamespace(namespace)
	kc.SetName(name)
	kc.SetLabels(labels)
	kc.SetCreationTimestamp(metav1.NewTime(runNow.Add(-age)))
	_ = unstructured.SetNestedMap(kc.Object, map[string]interface{}{
		"name": name + "-capi", "namespace": namespace,
	}, "spec", "clusterRef", "capiCluster")

	capi := &unstructured.Unstructured{}
	capi.SetGroupVersionKind(schema.GroupVersionKind{
		Group: "cluster.x-k8s.io", Version: "v1beta1", Kind: "Cluster",
	})
	capi.SetNamespace(namespace)
	capi.SetName(name + "-capi")

	return []client.Object{kc, capi}
}

type recordingNotifier struct {
	mu      sync.Mutex
	expiry  map[notify.Severity]int
	deleted int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{expiry: map[notify.Severity]int{}}
}

func (n *recordingNotifier) SendExpiry(_ context.Context, severity notify.Severity, _ float64, batch []notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expiry[severity] += len(batch)
	return nil
}

func (n *recordingNotifier) SendDeleted(_ context.Context, batch []notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted += len(batch)
	return nil
}

type fixture struct {
	janitor  *Janitor
	client   client.Client
	store    *store.Memory
	notifier *recordingNotifier
	metrics  *metrics.Service
}

// newFixture wires a fully-loaded janitor over a fake API server and an
// in-memory store.
func newFixture(t *testing.T, dryRun bool, objs ...client.Object) *fixture {
	t.Helper()

	c := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(objs...).Build()
	mem := store.NewMemory()
	notifier := newRecordingNotifier()
	cfg := config.Default()

	tracker, err := notify.NewTracker(mem, notifier, notify.TrackerOptions{
		WarningThreshold:  cfg.WarningThreshold,
		CriticalThreshold: cfg.CriticalThreshold,
		TTL:               cfg.NotificationTTL,
	})
	if err != nil {
		t.Fatal(err)
	}
	aggregator, err := analytics.NewAggregator(mem, cfg.Retention)
	if err != nil {
		t.Fatal(err)
	}
	svc := metrics.NewService()

	j, err := New(Options{
		Provider:       inventory.NewProvider(c),
		Executor:       inventory.NewExecutor(c, dryRun),
		Policy:         cfg.Policy,
		Tracker:        tracker,
		Notifier:       notifier,
		Aggregator:     aggregator,
		Metrics:        svc,
		DeleteClusters: true,
		Now:            func() time.Time { return runNow },
	})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{janitor: j, client: c, store: mem, notifier: notifier, metrics: svc}
}

func TestNewValidation(t *testing.T) {
	cfg := config.Default()
	c := fake.NewClientBuilder().WithScheme(newScheme(t)).Build()

	if _, err := New(Options{Policy: cfg.Policy}); err == nil {
		t.Error("expected an error without a provider")
	}
	if _, err := New(Options{Provider: inventory.NewProvider(c)}); err == nil {
		t.Error("expected an error without a policy")
	}
	if _, err := New(Options{
		Provider:       inventory.NewProvider(c),
		Policy:         cfg.Policy,
		DeleteClusters: true,
	}); err == nil {
		t.Error("expected an error when deletion is enabled without an executor")
	}
}

func TestRunEvaluationOnly(t *testing.T) {
	var objs []client.Object
	objs = append(objs, managedCluster("dev", "healthy", 24*time.Hour, map[string]string{"expires": "30d"})...)
	objs = append(objs, managedCluster("dev", "unlabelled", 24*time.Hour, nil)...)

	c := fake.NewClientBuilder().WithScheme(newScheme(t)).WithObjects(objs...).Build()
	j, err := New(Options{
		Provider: inventory.NewProvider(c),
		Policy:   config.Default().Policy,
		Now:      func() time.Time { return runNow },
	})
	if err != nil {
		t.Fatal(err)
	}

	report, err := j.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Total != 2 || report.ForDeletion != 1 || report.Protected != 1 {
		t.Errorf("report = %+v, want total 2, forDeletion 1, protected 1", report)
	}
	if report.Deleted != 0 {
		t.Errorf("evaluation-only run deleted %d clusters", report.Deleted)
	}
}

func TestRunDeletesExpired(t *testing.T) {
	var objs []client.Object
	objs = append(objs, managedCluster("dev", "stale", 10*24*time.Hour, map[string]string{"expires": "7d"})...)
	objs = append(objs, managedCluster("dev", "fresh", 24*time.Hour, map[string]string{"expires": "30d"})...)
	f := newFixture(t, false, objs...)
	ctx := context.Background()

	// Pre-existing dedup state for the expiring cluster must be cleared
	// once the deletion is confirmed.
	if _, err := f.store.ClaimMember(ctx, "notifications:cluster:dev:stale", "critical", time.Hour); err != nil {
		t.Fatal(err)
	}

	report, err := f.janitor.Run(ctx)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Deleted != 1 || report.DeleteFailures != 0 {
		t.Fatalf("report = %+v, want exactly one deletion", report)
	}
	if f.notifier.deleted != 1 {
		t.Errorf("deletion announcements = %d, want 1", f.notifier.deleted)
	}

	exists, err := inventory.NewExecutor(f.client, false).Verify(ctx, inventory.ObjectRef{Name: "stale-capi", Namespace: "dev"})
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("CAPI object still present after the pass")
	}

	member, err := f.store.IsMember(ctx, "notifications:cluster:dev:stale", "critical")
	if err != nil {
		t.Fatal(err)
	}
	if member {
		t.Error("notification state survived a confirmed deletion")
	}
}

func TestRunDryRun(t *testing.T) {
	objs := managedCluster("dev", "stale", 10*24*time.Hour, map[string]string{"expires": "7d"})
	f := newFixture(t, true, objs...)

	report, err := f.janitor.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Deleted != 0 {
		t.Errorf("dry run reported %d deletions", report.Deleted)
	}
	if f.notifier.deleted != 0 {
		t.Error("dry run announced deletions")
	}

	exists, err := inventory.NewExecutor(f.client, false).Verify(context.Background(), inventory.ObjectRef{Name: "stale-capi", Namespace: "dev"})
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("dry run actually deleted the CAPI object")
	}
}

func TestRunNotifiesOnce(t *testing.T) {
	// 85 of 100 days elapsed: past warning, below critical.
	objs := managedCluster("dev", "aging", 85*24*time.Hour, map[string]string{"expires": "100d"})
	f := newFixture(t, false, objs...)
	ctx := context.Background()

	report, err := f.janitor.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.SentWarning != 1 || report.SentCritical != 0 {
		t.Fatalf("report = %+v, want one warning", report)
	}

	// The second pass is a no-op; the state store already holds the claim.
	report, err = f.janitor.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.SentWarning != 0 || report.SentCritical != 0 {
		t.Errorf("second pass re-sent notifications: %+v", report)
	}
	if f.notifier.expiry[notify.SeverityWarning] != 1 {
		t.Errorf("warning notifications = %d, want 1", f.notifier.expiry[notify.SeverityWarning])
	}
}

func TestRunDegradedStoreStillDeletes(t *testing.T) {
	objs := managedCluster("dev", "stale", 10*24*time.Hour, map[string]string{"expires": "7d"})
	f := newFixture(t, false, objs...)
	f.store.Fail = true

	report, err := f.janitor.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Deleted != 1 {
		t.Errorf("degraded run deleted %d clusters, want 1", report.Deleted)
	}
	if len(report.Degraded) == 0 {
		t.Error("store outage not surfaced in the report")
	}
	if report.SnapshotStored {
		t.Error("snapshot reported as stored while the store is down")
	}
}

func TestRunCollectsAnalytics(t *testing.T) {
	var objs []client.Object
	objs = append(objs, managedCluster("dev", "healthy", 24*time.Hour, map[string]string{"expires": "30d"})...)
	objs = append(objs, managedCluster("dev", "unlabelled", 24*time.Hour, nil)...)
	f := newFixture(t, false, objs...)
	ctx := context.Background()

	report, err := f.janitor.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.SnapshotStored {
		t.Fatal("snapshot was not stored")
	}

	aggregator, err := analytics.NewAggregator(f.store, config.DefaultRetention)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := aggregator.Latest(ctx, runNow)
	if err != nil {
		t.Fatal(err)
	}
	if snap == nil {
		t.Fatal("no snapshot retrievable after the pass")
	}
	if snap.ClusterCounts.Total != 2 {
		t.Errorf("stored snapshot total = %d, want 2", snap.ClusterCounts.Total)
	}
}

func TestStartRunsUntilCancelled(t *testing.T) {
	objs := managedCluster("dev", "healthy", 24*time.Hour, map[string]string{"expires": "30d"})
	f := newFixture(t, false, objs...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.janitor.Start(ctx, 10*time.Millisecond)
	}()

	// Give the loop time for at least one tick, then stop it.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start did not stop after cancellation")
	}

	count, err := f.store.IndexCard(context.Background(), "analytics:snapshots:index")
	if err != nil {
		t.Fatal(err)
	}
	if count < 1 {
		t.Error("no analytics snapshot collected by the loop")
	}
}
