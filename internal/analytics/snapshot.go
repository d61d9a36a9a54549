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
	"time"

	"github.com/mikelane/clusterjanitor/internal/policy"
)

// StatusCounts splits a cluster group by evaluation outcome.
type StatusCounts struct {
	Deletion int `json:"deletion"`
	Excluded int `json:"excluded"`
	Total    int `json:"total"`
}

// ClusterCounts is the top-level tally of one classification batch.
type ClusterCounts struct {
	ForDeletion int `json:"for_deletion"`
	Protected   int `json:"protected"`
	Total       int `json:"total"`
}

// ExpirationAnalysis buckets clusters by how close they are to expiry.
type ExpirationAnalysis struct {
	Buckets             map[string]int `json:"buckets"`
	CommonExpiresValues map[string]int `json:"common_expires_values"`
	TotalWithExpires    int            `json:"total_with_expires"`
	TotalWithoutExpires int            `json:"total_without_expires"`
}

// LabelStat is per-label compliance within one snapshot.
type LabelStat struct {
	Present        int     `json:"present"`
	Missing        int     `json:"missing"`
	ComplianceRate float64 `json:"compliance_rate"`
}

// LabelCompliance summarizes required-label coverage across the fleet.
type LabelCompliance struct {
	TotalClusters         int                  `json:"total_clusters"`
	FullyCompliant        int                  `json:"fully_compliant"`
	OverallComplianceRate float64              `json:"overall_compliance_rate"`
	LabelStats            map[string]LabelStat `json:"label_stats"`
	RequiredLabels        []string             `json:"required_labels"`
}

// Snapshot is one point-in-time aggregation of fleet state. It is what gets
// persisted, so every field carries a stable JSON name.
type Snapshot struct {
	Timestamp           time.Time               `json:"timestamp"`
	ClusterCounts       ClusterCounts           `json:"cluster_counts"`
	ClustersByNamespace map[string]StatusCounts `json:"clusters_by_namespace"`
	ClustersByOwner     map[string]StatusCounts `json:"clusters_by_owner"`
	ExpirationAnalysis  ExpirationAnalysis      `json:"expiration_analysis"`
	LabelCompliance     LabelCompliance         `json:"label_compliance"`
	ProtectionReasons   map[string]int          `json:"protection_reasons"`
	AgeDistribution     map[string]int          `json:"cluster_age_distribution"`
	DeletionReasons     map[string]int          `json:"deletion_reasons"`
}

// Expiration bucket names, stable because they are persisted.
const (
	bucketExpired   = "expired"
	bucketSoon      = "expires_soon"
	bucketThisWeek  = "expires_this_week"
	bucketThisMonth = "expires_this_month"
	bucketLater     = "expires_later"
	bucketNoExpires = "no_expiration"
)

// BuildSnapshot aggregates one classification batch. It is pure; the caller
// decides when and whether the result is persisted. The policy supplies the
// required-label list for compliance stats and may be nil, in which case
// only the expires label is considered required.
func BuildSnapshot(results []policy.Result, pol *policy.Policy, now time.Time) *Snapshot {
	s := &Snapshot{
		Timestamp:           now,
		ClustersByNamespace: make(map[string]StatusCounts),
		ClustersByOwner:     make(map[string]StatusCounts),
		ExpirationAnalysis: ExpirationAnalysis{
			Buckets: map[string]int{
				bucketExpired:   0,
				bucketSoon:      0,
				bucketThisWeek:  0,
				bucketThisMonth: 0,
				bucketLater:     0,
				bucketNoExpires: 0,
			},
			CommonExpiresValues: make(map[string]int),
		},
		ProtectionReasons: make(map[string]int),
		AgeDistribution: map[string]int{
			"0-1_days":    0,
			"1-7_days":    0,
			"1-4_weeks":   0,
			"1-12_months": 0,
			"over_1_year": 0,
			"unknown_age": 0,
		},
		DeletionReasons: make(map[string]int),
	}

	for _, r := range results {
		s.ClusterCounts.Total++
		deletion := r.Classification.Outcome == policy.OutcomeDelete
		if deletion {
			s.ClusterCounts.ForDeletion++
			s.DeletionReasons[deletionCategory(r)]++
		} else {
			s.ClusterCounts.Protected++
			s.ProtectionReasons[protectionCategory(r.Classification.Code)]++
		}

		addStatus(s.ClustersByNamespace, r.Record.Namespace, deletion)
		addStatus(s.ClustersByOwner, r.Record.Owner(), deletion)
		s.ExpirationAnalysis.Buckets[expirationBucket(r)]++
		s.AgeDistribution[ageBucket(r.Record.CreatedAt, now)]++

		if v := r.Classification.ExpiresValue; v != "" {
			s.ExpirationAnalysis.CommonExpiresValues[v]++
			s.ExpirationAnalysis.TotalWithExpires++
		}
	}
	s.ExpirationAnalysis.TotalWithoutExpires = s.ExpirationAnalysis.Buckets[bucketNoExpires]
	s.LabelCompliance = buildCompliance(results, pol)

	return s
}

func addStatus(m map[string]StatusCounts, key string, deletion bool) {
	counts := m[key]
	counts.Total++
	if deletion {
		counts.Deletion++
	} else {
		counts.Excluded++
	}
	m[key] = counts
}

// deletionCategory maps a delete classification to a report bucket.
func deletionCategory(r policy.Result) string {
	switch r.Classification.Code {
	case policy.ReasonMissingExpires:
		return "Missing Expires Label"
	case policy.ReasonInvalidExpires:
		return "Invalid Expires Format"
	case policy.ReasonExpired:
		return "Cluster Expired"
	case policy.ReasonLabelViolation:
		if r.Record.Labels[r.Classification.LabelName] == "" {
			return "Missing Required Label"
		}
		return "Label Pattern Mismatch"
	default:
		return "Other"
	}
}

func protectionCategory(code policy.ReasonCode) string {
	switch code {
	case policy.ReasonManagementCluster:
		return "Management Cluster"
	case policy.ReasonProtectedByConfig:
		return "Protected Pattern"
	case policy.ReasonWithinGracePeriod:
		return "Grace Period"
	case policy.ReasonNotYetExpired:
		return "Not Expired"
	default:
		return "Other"
	}
}

func expirationBucket(r policy.Result) string {
	if r.Classification.ExpiresValue == "" {
		return bucketNoExpires
	}
	if r.Classification.Code == policy.ReasonExpired {
		return bucketExpired
	}
	// Clusters whose expiry was never computed (protected before the expiry
	// rule ran, or an unparseable label) have no meaningful remaining time.
	if r.Classification.ExpiryTime.IsZero() {
		return bucketLater
	}
	switch remaining := r.Classification.Remaining; {
	case remaining < 24*time.Hour:
		return bucketSoon
	case remaining < 7*24*time.Hour:
		return bucketThisWeek
	case remaining < 30*24*time.Hour:
		return bucketThisMonth
	default:
		return bucketLater
	}
}

func ageBucket(createdAt, now time.Time) string {
	if createdAt.IsZero() {
		return "unknown_age"
	}
	switch age := now.Sub(createdAt); {
	case age <= 24*time.Hour:
		return "0-1_days"
	case age <= 7*24*time.Hour:
		return "1-7_days"
	case age <= 28*24*time.Hour:
		return "1-4_weeks"
	case age <= 365*24*time.Hour:
		return "1-12_months"
	default:
		return "over_1_year"
	}
}

func buildCompliance(results []policy.Result, pol *policy.Policy) LabelCompliance {
	required := []string{"expires"}
	if pol != nil {
		for _, l := range pol.ExtraLabels {
			required = append(required, l.Name)
		}
	}

	c := LabelCompliance{
		TotalClusters:  len(results),
		LabelStats:     make(map[string]LabelStat, len(required)),
		RequiredLabels: required,
	}
	if len(results) == 0 {
		return c
	}

	for _, name := range required {
		present := 0
		for _, r := range results {
			if r.Record.Labels[name] != "" {
				present++
			}
		}
		c.LabelStats[name] = LabelStat{
			Present:        present,
			Missing:        len(results) - present,
			ComplianceRate: float64(present) / float64(len(results)) * 100,
		}
	}

	for _, r := range results {
		compliant := true
		for _, name := range required {
			if r.Record.Labels[name] == "" {
				compliant = false
				break
			}
		}
		if compliant {
			c.FullyCompliant++
		}
	}
	c.OverallComplianceRate = float64(c.FullyCompliant) / float64(len(results)) * 100

	return c
}
