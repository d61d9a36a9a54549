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

// Package metrics exposes fleet state as Prometheus gauges. Every value is
// derived from the latest classification snapshot and trend report; nothing
// here accumulates its own state.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mikelane/clusterjanitor/internal/analytics"
)

const namespace = "clusterjanitor"

// Service owns a private registry and the gauges published on it.
type Service struct {
	registry *prometheus.Registry

	clustersForDeletion prometheus.Gauge
	clustersProtected   prometheus.Gauge
	clustersTotal       prometheus.Gauge
	complianceRate      prometheus.Gauge

	deletionTrend          prometheus.Gauge
	complianceTrend        prometheus.Gauge
	avgDeletionCandidates  prometheus.Gauge
	snapshotCount          prometheus.Gauge
	storeUp                prometheus.Gauge
	deletionReasonClusters *prometheus.GaugeVec
	namespaceClusters      *prometheus.GaugeVec
	ownerClusters          *prometheus.GaugeVec
}

// NewService creates a service with all collectors registered.
func NewService() *Service {
	s := &Service{
		registry: prometheus.NewRegistry(),
		clustersForDeletion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clusters_for_deletion",
			Help:      "Current number of clusters marked for deletion.",
		}),
		clustersProtected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clusters_protected",
			Help:      "Current number of protected clusters.",
		}),
		clustersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clusters_total",
			Help:      "Current number of managed clusters.",
		}),
		complianceRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compliance_rate",
			Help:      "Current label compliance rate (0-100).",
		}),
		deletionTrend: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deletion_trend_direction",
			Help:      "Deletion-candidate trend direction (-1=decreasing, 0=stable, 1=increasing).",
		}),
		complianceTrend: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compliance_trend_direction",
			Help:      "Compliance trend direction (-1=declining, 0=stable, 1=improving).",
		}),
		avgDeletionCandidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "average_deletion_candidates",
			Help:      "Average deletion candidates per snapshot over the query window.",
		}),
		snapshotCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analytics_snapshots",
			Help:      "Number of analytics snapshots currently stored.",
		}),
		storeUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_up",
			Help:      "Whether the notification/analytics store is reachable (1=up).",
		}),
		deletionReasonClusters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deletion_reason_clusters",
			Help:      "Clusters marked for deletion by reason category.",
		}, []string{"reason"}),
		namespaceClusters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "namespace_clusters",
			Help:      "Clusters by namespace and status.",
		}, []string{"namespace", "status"}),
		ownerClusters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "owner_clusters",
			Help:      "Clusters by owner and status.",
		}, []string{"owner", "status"}),
	}

	s.registry.MustRegister(
		s.clustersForDeletion, s.clustersProtected, s.clustersTotal,
		s.complianceRate, s.deletionTrend, s.complianceTrend,
		s.avgDeletionCandidates, s.snapshotCount, s.storeUp,
		s.deletionReasonClusters, s.namespaceClusters, s.ownerClusters,
	)
	return s
}

// Handler serves the registry in Prometheus text format.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// ObserveSnapshot replaces every snapshot-derived gauge with values from
// the given snapshot. Vec gauges are reset first so clusters that left the
// fleet do not linger as stale series.
func (s *Service) ObserveSnapshot(snap *analytics.Snapshot) {
	if snap == nil {
		return
	}

	s.clustersForDeletion.Set(float64(snap.ClusterCounts.ForDeletion))
	s.clustersProtected.Set(float64(snap.ClusterCounts.Protected))
	s.clustersTotal.Set(float64(snap.ClusterCounts.Total))
	s.complianceRate.Set(snap.LabelCompliance.OverallComplianceRate)

	s.deletionReasonClusters.Reset()
	for reason, count := range snap.DeletionReasons {
		s.deletionReasonClusters.WithLabelValues(reason).Set(float64(count))
	}

	s.namespaceClusters.Reset()
	for ns, counts := range snap.ClustersByNamespace {
		s.namespaceClusters.WithLabelValues(ns, "deletion").Set(float64(counts.Deletion))
		s.namespaceClusters.WithLabelValues(ns, "protected").Set(float64(counts.Excluded))
	}

	s.ownerClusters.Reset()
	for owner, counts := range snap.ClustersByOwner {
		s.ownerClusters.WithLabelValues(owner, "deletion").Set(float64(counts.Deletion))
		s.ownerClusters.WithLabelValues(owner, "protected").Set(float64(counts.Excluded))
	}
}

// ObserveTrends publishes trend directions and window averages.
func (s *Service) ObserveTrends(report *analytics.TrendReport) {
	if report == nil {
		return
	}
	s.deletionTrend.Set(float64(report.Direction.Encode()))
	s.complianceTrend.Set(float64(report.ComplianceDirection.Encode()))
	s.avgDeletionCandidates.Set(report.AverageDeletionCandidates)
}

// SetSnapshotCount publishes how many snapshots the store holds.
func (s *Service) SetSnapshotCount(n int64) {
	s.snapshotCount.Set(float64(n))
}

// SetStoreHealthy publishes the degraded-mode indicator.
func (s *Service) SetStoreHealthy(healthy bool) {
	if healthy {
		s.storeUp.Set(1)
	} else {
		s.storeUp.Set(0)
	}
}
