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
	"errors"
	"fmt"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/clusterjanitor/internal/analytics"
	"github.com/mikelane/clusterjanitor/internal/inventory"
	"github.com/mikelane/clusterjanitor/internal/metrics"
	"github.com/mikelane/clusterjanitor/internal/notify"
	"github.com/mikelane/clusterjanitor/internal/policy"
)

// DefaultTrendWindow is how far back trend direction looks when a run
// publishes trend gauges.
const DefaultTrendWindow = 7 * 24 * time.Hour

// Options wires a Janitor to its collaborators. Provider and Policy are
// required. Everything else is optional: a nil Tracker skips notifications,
// a nil Aggregator skips analytics, a nil Executor (or DeleteClusters
// false) makes the pass evaluation-only.
type Options struct {
	Provider   *inventory.Provider
	Executor   *inventory.Executor
	Policy     *policy.Policy
	Tracker    *notify.Tracker
	Notifier   notify.Notifier
	Aggregator *analytics.Aggregator
	Metrics    *metrics.Service

	// Namespace restricts the pass to one namespace; empty means the
	// whole fleet.
	Namespace string
	// DeleteClusters enables the deletion stage. Requires Executor.
	DeleteClusters bool
	// TrendWindow bounds the trend query when metrics are published.
	// Zero means DefaultTrendWindow.
	TrendWindow time.Duration

	// Now is the clock; tests override it. Nil means time.Now.
	Now func() time.Time
}

// Janitor runs lifecycle passes over the fleet.
type Janitor struct {
	provider   *inventory.Provider
	executor   *inventory.Executor
	evaluator  *policy.Evaluator
	pol        *policy.Policy
	tracker    *notify.Tracker
	notifier   notify.Notifier
	aggregator *analytics.Aggregator
	metrics    *metrics.Service

	namespace      string
	deleteClusters bool
	trendWindow    time.Duration
	now            func() time.Time
}

// Report summarises one pass. Stage errors that did not abort the run are
// collected in Degraded.
type Report struct {
	Total       int
	ForDeletion int
	Protected   int

	Deleted        int
	DeleteFailures int

	SentCritical int
	SentWarning  int
	StateCleaned int

	SnapshotStored bool
	Pruned         int64

	// Degraded holds stage errors the pass survived, notification and
	// analytics failures mostly.
	Degraded []error
}

// New validates the wiring and builds a Janitor.
func New(opts Options) (*Janitor, error) {
	if opts.Provider == nil {
		return nil, errors.New("janitor requires an inventory provider")
	}
	if opts.Policy == nil {
		return nil, errors.New("janitor requires a policy")
	}
	if opts.DeleteClusters && opts.Executor == nil {
		return nil, errors.New("deletion is enabled but no executor is wired")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	trendWindow := opts.TrendWindow
	if trendWindow <= 0 {
		trendWindow = DefaultTrendWindow
	}

	return &Janitor{
		provider:       opts.Provider,
		executor:       opts.Executor,
		evaluator:      policy.NewEvaluator(opts.Policy),
		pol:            opts.Policy,
		tracker:        opts.Tracker,
		notifier:       opts.Notifier,
		aggregator:     opts.Aggregator,
		metrics:        opts.Metrics,
		namespace:      opts.Namespace,
		deleteClusters: opts.DeleteClusters,
		trendWindow:    trendWindow,
		now:            now,
	}, nil
}

// Run executes one full pass. Only an inventory failure is fatal; later
// stages record their errors in the report and the pass continues.
func (j *Janitor) Run(ctx context.Context) (*Report, error) {
	logger := log.FromContext(ctx)
	now := j.now()

	clusters, err := j.provider.List(ctx, j.namespace)
	if err != nil {
		return nil, err
	}

	results := j.evaluator.ClassifyAll(inventory.Records(clusters), now)

	report := &Report{Total: len(results)}
	for _, r := range results {
		if r.Classification.Outcome == policy.OutcomeDelete {
			report.ForDeletion++
		} else {
			report.Protected++
		}
	}
	logger.Info("Evaluated fleet",
		"total", report.Total, "forDeletion", report.ForDeletion, "protected", report.Protected)

	var gone map[string]bool
	if j.deleteClusters && report.ForDeletion > 0 {
		gone = j.deleteMarked(ctx, clusters, results, report)
	}

	if j.tracker != nil {
		// Clusters removed this pass need no expiry alert; alerting on a
		// cluster that no longer exists would only re-create the dedup
		// state ClearState just dropped.
		j.notifyExpiring(ctx, surviving(results, gone), report)
	}

	if j.aggregator != nil {
		j.collectAnalytics(ctx, results, now, report)
	}

	return report, nil
}

// surviving filters out results for clusters confirmed deleted this pass.
func surviving(results []policy.Result, gone map[string]bool) []policy.Result {
	if len(gone) == 0 {
		return results
	}
	kept := make([]policy.Result, 0, len(results))
	for _, r := range results {
		if !gone[r.Record.Key()] {
			kept = append(kept, r)
		}
	}
	return kept
}

// deleteMarked removes every cluster the evaluator marked for deletion,
// confirms each removal, and announces the batch. One failed deletion does
// not stop the rest of the batch. Returns the keys of clusters confirmed
// gone.
func (j *Janitor) deleteMarked(ctx context.Context, clusters []inventory.Cluster, results []policy.Result, report *Report) map[string]bool {
	logger := log.FromContext(ctx)

	refs := make(map[string]inventory.ObjectRef, len(clusters))
	for _, c := range clusters {
		refs[c.Key()] = c.CAPIRef
	}

	gone := make(map[string]bool)
	var deleted []policy.Result
	for _, r := range results {
		if r.Classification.Outcome != policy.OutcomeDelete {
			continue
		}
		ref := refs[r.Record.Key()]

		if err := j.executor.Delete(ctx, ref); err != nil {
			report.DeleteFailures++
			report.Degraded = append(report.Degraded, fmt.Errorf("deleting %s: %w", r.Record.Key(), err))
			logger.Error(err, "Failed to delete cluster",
				"namespace", r.Record.Namespace, "cluster", r.Record.Name)
			continue
		}
		if j.executor.DryRun() {
			continue
		}

		exists, err := j.executor.Verify(ctx, ref)
		if err != nil {
			report.Degraded = append(report.Degraded, fmt.Errorf("verifying %s: %w", r.Record.Key(), err))
			continue
		}
		if exists {
			// Deletion is still draining; keep dedup state until the
			// object is actually gone.
			logger.Info("Cluster deletion still in progress",
				"namespace", r.Record.Namespace, "cluster", r.Record.Name)
			continue
		}

		report.Deleted++
		gone[r.Record.Key()] = true
		deleted = append(deleted, r)

		if j.tracker != nil {
			if _, err := j.tracker.ClearState(ctx, r.Record.Namespace, r.Record.Name); err != nil {
				report.Degraded = append(report.Degraded, err)
				logger.Error(err, "Failed to clear notification state",
					"namespace", r.Record.Namespace, "cluster", r.Record.Name)
			}
		}
	}

	if len(deleted) > 0 && j.notifier != nil {
		if err := j.notifier.SendDeleted(ctx, notify.Deleted(deleted)); err != nil {
			report.Degraded = append(report.Degraded, err)
			logger.Error(err, "Failed to announce deleted clusters")
		}
	}
	return gone
}

// notifyExpiring runs the notification stage: drop stale dedup state, plan
// the due severities, then claim and send. Store failures degrade the run
// instead of aborting it.
func (j *Janitor) notifyExpiring(ctx context.Context, results []policy.Result, report *Report) {
	logger := log.FromContext(ctx)

	if err := j.tracker.Healthy(ctx); err != nil {
		if j.metrics != nil {
			j.metrics.SetStoreHealthy(false)
		}
		report.Degraded = append(report.Degraded, err)
		logger.Error(err, "Notification store unreachable, skipping notification stage")
		return
	}
	if j.metrics != nil {
		j.metrics.SetStoreHealthy(true)
	}

	cleaned, err := j.tracker.CleanupStale(ctx, results)
	if err != nil {
		report.Degraded = append(report.Degraded, err)
		logger.Error(err, "Failed to clean up stale notification state")
	}
	report.StateCleaned = cleaned

	critical, warning := j.tracker.Plan(results)
	sentCritical, sentWarning, err := j.tracker.Dispatch(ctx, critical, warning)
	if err != nil {
		report.Degraded = append(report.Degraded, err)
		logger.Error(err, "Notification dispatch failed")
	}
	report.SentCritical = sentCritical
	report.SentWarning = sentWarning
}

// collectAnalytics stores a snapshot of this pass, prunes expired ones, and
// publishes the derived gauges.
func (j *Janitor) collectAnalytics(ctx context.Context, results []policy.Result, now time.Time, report *Report) {
	logger := log.FromContext(ctx)

	snap := analytics.BuildSnapshot(results, j.pol, now)
	if err := j.aggregator.Collect(ctx, snap); err != nil {
		report.Degraded = append(report.Degraded, err)
		logger.Error(err, "Failed to store analytics snapshot")
		return
	}
	report.SnapshotStored = true

	pruned, err := j.aggregator.Prune(ctx, now)
	if err != nil {
		report.Degraded = append(report.Degraded, err)
		logger.Error(err, "Failed to prune analytics snapshots")
	}
	report.Pruned = pruned

	if j.metrics == nil {
		return
	}
	j.metrics.ObserveSnapshot(snap)
	if count, err := j.aggregator.Count(ctx); err == nil {
		j.metrics.SetSnapshotCount(count)
	}
	if trends, err := j.aggregator.Trends(ctx, j.trendWindow, now); err == nil {
		j.metrics.ObserveTrends(trends)
	}
}

// Start runs passes on a fixed interval until the context is cancelled.
// A failed pass is logged and the loop keeps going.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) error {
	logger := log.FromContext(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Starting janitor", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping janitor")
			return nil
		case <-ticker.C:
			report, err := j.Run(ctx)
			if err != nil {
				logger.Error(err, "Janitor pass failed")
				continue
			}
			logger.Info("Janitor pass complete",
				"total", report.Total,
				"forDeletion", report.ForDeletion,
				"deleted", report.Deleted,
				"sentCritical", report.SentCritical,
				"sentWarning", report.SentWarning,
				"degraded", len(report.Degraded))
		}
	}
}
