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

package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/clusterjanitor/internal/store"
)

const (
	snapshotKeyPrefix = "analytics:snapshot:"
	snapshotIndexKey  = "analytics:snapshots:index"

	// trendThreshold is the relative change in half-window means below
	// which a count series still counts as stable.
	trendThreshold = 0.1
	// complianceThreshold is the absolute move, in percentage points,
	// below which the compliance rate counts as stable. Compliance is
	// already a percentage; a relative test would overreact near zero.
	complianceThreshold = 5.0
)

// Trend is the direction a metric moved over a window.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// Encode maps a trend onto {-1, 0, 1} for gauges.
func (t Trend) Encode() int {
	switch t {
	case TrendIncreasing:
		return 1
	case TrendDecreasing:
		return -1
	default:
		return 0
	}
}

// TrendPoint is one snapshot reduced to the counts trend queries care about.
type TrendPoint struct {
	Timestamp      time.Time
	ForDeletion    int
	Protected      int
	Total          int
	ComplianceRate float64
}

// TrendReport summarizes fleet movement over one query window.
type TrendReport struct {
	Window time.Duration
	Points []TrendPoint

	CurrentForDeletion int
	CurrentProtected   int
	CurrentCompliance  float64

	AverageDeletionCandidates float64
	Direction                 Trend
	ComplianceDirection       Trend
}

// Aggregator persists snapshots and serves windowed queries over them.
type Aggregator struct {
	store     store.Store
	retention time.Duration
}

// NewAggregator wires an aggregator to its store. Retention bounds both the
// snapshot TTL and what Prune removes.
func NewAggregator(s store.Store, retention time.Duration) (*Aggregator, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("snapshot retention must be positive, got %s", retention)
	}
	return &Aggregator{store: s, retention: retention}, nil
}

// Collect persists one snapshot and registers it in the time index. The
// write is a single atomic pipeline; a concurrent collector cannot leave an
// indexed key without a value.
func (a *Aggregator) Collect(ctx context.Context, snapshot *Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	ts := snapshot.Timestamp.Unix()
	key := snapshotKeyPrefix + strconv.FormatInt(ts, 10)
	if err := a.store.PutIndexed(ctx, snapshotIndexKey, key, float64(ts), data, a.retention); err != nil {
		return fmt.Errorf("storing snapshot: %w", err)
	}

	log.FromContext(ctx).Info("Collected analytics snapshot",
		"clusters", snapshot.ClusterCounts.Total,
		"forDeletion", snapshot.ClusterCounts.ForDeletion,
		"protected", snapshot.ClusterCounts.Protected)
	return nil
}

// Snapshots returns the snapshots with timestamps in [from, to], ordered by
// time. Entries whose value expired out from under the index, or that fail
// to decode, are skipped rather than failing the query.
func (a *Aggregator) Snapshots(ctx context.Context, from, to time.Time) ([]*Snapshot, error) {
	keys, err := a.store.IndexRange(ctx, snapshotIndexKey, float64(from.Unix()), float64(to.Unix()))
	if err != nil {
		return nil, fmt.Errorf("querying snapshot index: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := a.store.GetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshots: %w", err)
	}

	snapshots := make([]*Snapshot, 0, len(values))
	for _, value := range values {
		if value == nil {
			continue
		}
		var s Snapshot
		if err := json.Unmarshal(value, &s); err != nil {
			continue
		}
		snapshots = append(snapshots, &s)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Timestamp.Before(snapshots[j].Timestamp)
	})
	return snapshots, nil
}

// Latest returns the most recent snapshot within retention, or nil when
// none exist.
func (a *Aggregator) Latest(ctx context.Context, now time.Time) (*Snapshot, error) {
	snapshots, err := a.Snapshots(ctx, now.Add(-a.retention), now)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return snapshots[len(snapshots)-1], nil
}

// Trends reports how deletion-candidate counts and compliance moved over
// the window ending at now.
func (a *Aggregator) Trends(ctx context.Context, window time.Duration, now time.Time) (*TrendReport, error) {
	snapshots, err := a.Snapshots(ctx, now.Add(-window), now)
	if err != nil {
		return nil, err
	}

	report := &TrendReport{
		Window:              window,
		Direction:           TrendStable,
		ComplianceDirection: TrendStable,
	}
	if len(snapshots) == 0 {
		return report, nil
	}

	deletions := make([]float64, len(snapshots))
	compliance := make([]float64, len(snapshots))
	report.Points = make([]TrendPoint, len(snapshots))
	var deletionSum float64

	for i, s := range snapshots {
		report.Points[i] = TrendPoint{
			Timestamp:      s.Timestamp,
			ForDeletion:    s.ClusterCounts.ForDeletion,
			Protected:      s.ClusterCounts.Protected,
			Total:          s.ClusterCounts.Total,
			ComplianceRate: s.LabelCompliance.OverallComplianceRate,
		}
		deletions[i] = float64(s.ClusterCounts.ForDeletion)
		compliance[i] = s.LabelCompliance.OverallComplianceRate
		deletionSum += deletions[i]
	}

	latest := snapshots[len(snapshots)-1]
	report.CurrentForDeletion = latest.ClusterCounts.ForDeletion
	report.CurrentProtected = latest.ClusterCounts.Protected
	report.CurrentCompliance = latest.LabelCompliance.OverallComplianceRate
	report.AverageDeletionCandidates = deletionSum / float64(len(deletions))
	report.Direction = trendDirection(deletions)
	report.ComplianceDirection = complianceDirection(compliance)

	return report, nil
}

// trendDirection compares the mean of the older half of a series to the
// mean of the recent half. Fewer than two points is stable by definition.
func trendDirection(values []float64) Trend {
	mid := len(values) / 2
	if mid == 0 {
		return TrendStable
	}

	older := mean(values[:mid])
	recent := mean(values[mid:])

	switch {
	case recent > older*(1+trendThreshold):
		return TrendIncreasing
	case recent < older*(1-trendThreshold):
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// complianceDirection is trendDirection for percentage series: the halves
// are compared by absolute percentage-point movement.
func complianceDirection(values []float64) Trend {
	mid := len(values) / 2
	if mid == 0 {
		return TrendStable
	}

	older := mean(values[:mid])
	recent := mean(values[mid:])

	switch {
	case recent > older+complianceThreshold:
		return TrendIncreasing
	case recent < older-complianceThreshold:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Prune removes snapshots older than retention. It is idempotent; a second
// call right after the first removes nothing.
func (a *Aggregator) Prune(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-a.retention)
	pruned, err := a.store.PruneIndex(ctx, snapshotIndexKey, 0, float64(cutoff.Unix()))
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	if pruned > 0 {
		log.FromContext(ctx).Info("Pruned analytics snapshots", "removed", pruned, "cutoff", cutoff)
	}
	return pruned, nil
}

// Count returns how many snapshots are currently indexed.
func (a *Aggregator) Count(ctx context.Context) (int64, error) {
	n, err := a.store.IndexCard(ctx, snapshotIndexKey)
	if err != nil {
		return 0, fmt.Errorf("counting snapshots: %w", err)
	}
	return n, nil
}

// Healthy reports whether the aggregator's store is reachable.
func (a *Aggregator) Healthy(ctx context.Context) error {
	return a.store.Healthy(ctx)
}
