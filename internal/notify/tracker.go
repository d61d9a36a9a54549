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

package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/clusterjanitor/internal/policy"
	"github.com/mikelane/clusterjanitor/internal/store"
)

const (
	keyPrefix  = "notifications:cluster:"
	keyPattern = keyPrefix + "*"
)

// stateKey builds the dedup key for one cluster identity.
func stateKey(namespace, name string) string {
	return keyPrefix + namespace + ":" + name
}

// TrackerOptions configures a Tracker. Thresholds are elapsed-lifetime
// percentages; TTL is the rolling lifetime of dedup state.
type TrackerOptions struct {
	WarningThreshold  float64
	CriticalThreshold float64
	TTL               time.Duration
}

// Tracker decides which expiry notifications are due and enforces the
// at-most-once-per-severity invariant through the store.
type Tracker struct {
	store    store.Store
	notifier Notifier
	opts     TrackerOptions
}

// NewTracker wires a tracker to its store and transport. The threshold
// ordering is validated again here because the tracker is also constructed
// from raw CLI flags, not only from a loaded configuration.
func NewTracker(s store.Store, n Notifier, opts TrackerOptions) (*Tracker, error) {
	if opts.WarningThreshold < 0 || opts.WarningThreshold > 100 {
		return nil, fmt.Errorf("warning threshold %.1f must be between 0 and 100", opts.WarningThreshold)
	}
	if opts.CriticalThreshold < 0 || opts.CriticalThreshold > 100 {
		return nil, fmt.Errorf("critical threshold %.1f must be between 0 and 100", opts.CriticalThreshold)
	}
	if opts.WarningThreshold >= opts.CriticalThreshold {
		return nil, fmt.Errorf("warning threshold %.1f must be less than critical threshold %.1f",
			opts.WarningThreshold, opts.CriticalThreshold)
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("notification state TTL must be positive, got %s", opts.TTL)
	}
	return &Tracker{store: s, notifier: n, opts: opts}, nil
}

// Plan groups classification results into the severities they are due for.
// It is pure: no store reads, no dedup. Expired clusters are always
// critical. Clusters still inside their lifetime escalate by elapsed
// percentage. Everything else, protected clusters and label violators
// included, is not a notification candidate.
func (t *Tracker) Plan(results []policy.Result) (critical, warning []Notification) {
	for _, r := range results {
		switch r.Classification.Code {
		case policy.ReasonExpired:
			critical = append(critical, newNotification(r, SeverityCritical))
		case policy.ReasonNotYetExpired:
			switch {
			case r.Classification.ElapsedPercent >= t.opts.CriticalThreshold:
				critical = append(critical, newNotification(r, SeverityCritical))
			case r.Classification.ElapsedPercent >= t.opts.WarningThreshold:
				warning = append(warning, newNotification(r, SeverityWarning))
			}
		}
	}
	return critical, warning
}

// Dispatch claims and sends the planned notifications. Each (cluster,
// severity) pair is claimed in the store before anything is sent, so a
// concurrent run that loses the claim sends nothing. A critical claim also
// claims warning: once the critical alert is out, a later warning for the
// same cluster would only be noise.
//
// Returns how many clusters were actually notified per severity.
func (t *Tracker) Dispatch(ctx context.Context, critical, warning []Notification) (sentCritical, sentWarning int, err error) {
	logger := log.FromContext(ctx)

	newCritical, err := t.claim(ctx, critical, SeverityCritical)
	if err != nil {
		return 0, 0, err
	}
	for _, n := range newCritical {
		// Warning is implicitly satisfied once critical fires.
		if _, err := t.store.ClaimMember(ctx, stateKey(n.Namespace, n.ClusterName), string(SeverityWarning), t.opts.TTL); err != nil {
			return 0, 0, fmt.Errorf("recording implied warning for %s: %w", n.Key(), err)
		}
	}
	if len(newCritical) > 0 {
		if err := t.notifier.SendExpiry(ctx, SeverityCritical, t.opts.CriticalThreshold, newCritical); err != nil {
			return 0, 0, err
		}
		logger.Info("Sent critical notifications", "clusters", len(newCritical))
	}

	newWarning, err := t.claim(ctx, warning, SeverityWarning)
	if err != nil {
		return len(newCritical), 0, err
	}
	if len(newWarning) > 0 {
		if err := t.notifier.SendExpiry(ctx, SeverityWarning, t.opts.WarningThreshold, newWarning); err != nil {
			return len(newCritical), 0, err
		}
		logger.Info("Sent warning notifications", "clusters", len(newWarning))
	}

	return len(newCritical), len(newWarning), nil
}

// claim filters a batch down to the notifications this run won the claim
// for. Exactly one of two concurrent claimers keeps each notification.
func (t *Tracker) claim(ctx context.Context, batch []Notification, severity Severity) ([]Notification, error) {
	var won []Notification
	for _, n := range batch {
		added, err := t.store.ClaimMember(ctx, stateKey(n.Namespace, n.ClusterName), string(severity), t.opts.TTL)
		if err != nil {
			return nil, fmt.Errorf("claiming %s notification for %s: %w", severity, n.Key(), err)
		}
		if added {
			won = append(won, n)
		}
	}
	return won, nil
}

// ClearState drops the dedup state for a cluster immediately. Call it only
// after deletion is confirmed; clearing state for a cluster that failed to
// delete re-arms notifications it already received.
func (t *Tracker) ClearState(ctx context.Context, namespace, name string) (bool, error) {
	deleted, err := t.store.Delete(ctx, stateKey(namespace, name))
	if err != nil {
		return false, fmt.Errorf("clearing notification state for %s/%s: %w", namespace, name, err)
	}
	if deleted > 0 {
		log.FromContext(ctx).Info("Cleared notification state", "namespace", namespace, "cluster", name)
	}
	return deleted > 0, nil
}

// CleanupStale removes dedup state for clusters that no longer need any
// notification. A cluster drops out of the needed set when its labels were
// fixed, its expiry was extended, or it disappeared from inventory; keeping
// its old state would suppress alerts it should get on the next violation.
//
// Returns how many cluster states were cleaned up.
func (t *Tracker) CleanupStale(ctx context.Context, results []policy.Result) (int, error) {
	critical, warning := t.Plan(results)

	needed := make(map[string]bool, len(critical)+len(warning))
	for _, n := range critical {
		needed[stateKey(n.Namespace, n.ClusterName)] = true
	}
	for _, n := range warning {
		needed[stateKey(n.Namespace, n.ClusterName)] = true
	}

	keys, err := t.store.Keys(ctx, keyPattern)
	if err != nil {
		return 0, fmt.Errorf("listing notification state: %w", err)
	}

	var stale []string
	for _, key := range keys {
		if !needed[key] {
			stale = append(stale, key)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if _, err := t.store.Delete(ctx, stale...); err != nil {
		return 0, fmt.Errorf("clearing stale notification state: %w", err)
	}

	logger := log.FromContext(ctx)
	for _, key := range stale {
		if identity := strings.TrimPrefix(key, keyPrefix); identity != key {
			logger.V(1).Info("Cleared stale notification state", "cluster", identity)
		}
	}
	return len(stale), nil
}

// Healthy reports whether the tracker's store is reachable. Callers use it
// for the degraded-mode indicator before attempting a notification run.
func (t *Tracker) Healthy(ctx context.Context) error {
	return t.store.Healthy(ctx)
}
