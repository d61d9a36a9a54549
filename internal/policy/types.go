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

package policy

import (
	"regexp"
	"time"
)

// ClusterRecord is one observation of a workload cluster. Records are built
// fresh on every inventory read and never mutated.
type ClusterRecord struct {
	Name      string
	Namespace string
	CreatedAt time.Time
	Labels    map[string]string
}

// Key returns the unique identity of the record within a snapshot.
func (r ClusterRecord) Key() string {
	return r.Namespace + "/" + r.Name
}

// Owner returns the value of the "owner" label, or "no-owner" when unset.
func (r ClusterRecord) Owner() string {
	if owner, ok := r.Labels["owner"]; ok && owner != "" {
		return owner
	}
	return "no-owner"
}

// Outcome is the evaluator's verdict for one cluster.
type Outcome string

const (
	// OutcomeDelete marks a cluster as violating lifecycle policy.
	OutcomeDelete Outcome = "delete"
	// OutcomeProtect marks a cluster as exempt from deletion.
	OutcomeProtect Outcome = "protect"
)

// ReasonCode identifies which rule produced a classification.
type ReasonCode string

const (
	ReasonManagementCluster ReasonCode = "management-cluster"
	ReasonProtectedByConfig ReasonCode = "protected-by-configuration"
	ReasonWithinGracePeriod ReasonCode = "within-grace-period"
	ReasonMissingExpires    ReasonCode = "missing-expires-label"
	ReasonLabelViolation    ReasonCode = "label-violation"
	ReasonInvalidExpires    ReasonCode = "invalid-expires-format"
	ReasonExpired           ReasonCode = "expired"
	ReasonNotYetExpired     ReasonCode = "not-yet-expired"
)

// Classification is the evaluator's verdict for one ClusterRecord at one
// evaluation time. It is derived, never persisted, and carries enough data
// to render a message or a notification without re-evaluating.
type Classification struct {
	Outcome Outcome
	Code    ReasonCode
	// Message is the human-readable reason shown in listings and alerts.
	Message string

	// LabelName is set for label-violation classifications.
	LabelName string
	// ExpiresValue is the raw "expires" label value, when present.
	ExpiresValue string
	// ExpiryTime is creation time plus the parsed lifetime. Zero unless the
	// expires label parsed successfully.
	ExpiryTime time.Time
	// Remaining is ExpiryTime minus the batch timestamp; negative or zero
	// once expired. Advisory only, it never drives the outcome.
	Remaining time.Duration
	// ElapsedPercent is lifetime consumed at the batch timestamp, clamped to
	// [0, 100]. Only meaningful when ExpiryTime is set.
	ElapsedPercent float64
}

// Result pairs a record with its classification for batch consumers.
type Result struct {
	Record         ClusterRecord
	Classification Classification
}

// LabelRequirement is one named, optionally pattern-constrained label that
// every cluster must carry. Pattern is compiled as a full-value match; nil
// means presence alone satisfies the requirement.
type LabelRequirement struct {
	Name        string
	Description string
	Pattern     *regexp.Regexp
}

// Policy is the immutable per-run configuration the rule engine evaluates
// against. All regular expressions are compiled at configuration load; a
// Policy that exists is a Policy that compiled.
type Policy struct {
	// ManagementClusterName is a single identity that is always protected.
	ManagementClusterName string
	// ProtectedClusterPatterns match anywhere in the cluster name.
	ProtectedClusterPatterns []*regexp.Regexp
	// ExcludedNamespacePatterns match anywhere in the namespace.
	ExcludedNamespacePatterns []*regexp.Regexp
	// ExtraLabels are checked in order after the expires label.
	ExtraLabels []LabelRequirement
	// GracePeriod exempts clusters younger than this; zero disables it.
	GracePeriod time.Duration
}
