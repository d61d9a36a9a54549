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
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"
)

var evalNow = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func evalPolicy() *Policy {
	return &Policy{
		ManagementClusterName: "host-cluster",
		ProtectedClusterPatterns: []*regexp.Regexp{
			regexp.MustCompile("^production-"),
		},
		ExcludedNamespacePatterns: []*regexp.Regexp{
			regexp.MustCompile("^kommander$"),
		},
		ExtraLabels: []LabelRequirement{
			{Name: "owner"},
			{Name: "cost_centre", Pattern: regexp.MustCompile("^(?:[0-9]+)$")},
		},
		GracePeriod: 2 * time.Hour,
	}
}

func record(name, namespace string, age time.Duration, labels map[string]string) ClusterRecord {
	return ClusterRecord{
		Name:      name,
		Namespace: namespace,
		CreatedAt: evalNow.Add(-age),
		Labels:    labels,
	}
}

func TestClassifyRuleOrder(t *testing.T) {
	evaluator := NewEvaluator(evalPolicy())

	tests := []struct {
		name        string
		record      ClusterRecord
		wantOutcome Outcome
		wantCode    ReasonCode
		wantMessage string
	}{
		{
			name: "management cluster wins over everything",
			// Expired, unlabelled, inside grace period: identity still wins.
			record:      record("host-cluster", "kommander", time.Minute, nil),
			wantOutcome: OutcomeProtect,
			wantCode:    ReasonManagementCluster,
			wantMessage: "Cluster is a management cluster",
		},
		{
			name:        "protected pattern beats grace period",
			record:      record("production-eu1", "workloads", time.Minute, nil),
			wantOutcome: OutcomeProtect,
			wantCode:    ReasonProtectedByConfig,
			wantMessage: "Cluster production-eu1 is protected by configuration",
		},
		{
			name:        "excluded namespace protects",
			record:      record("demo", "kommander", 72*time.Hour, nil),
			wantOutcome: OutcomeProtect,
			wantCode:    ReasonProtectedByConfig,
		},
		{
			name:        "grace period beats missing labels",
			record:      record("fresh", "workloads", time.Hour, nil),
			wantOutcome: OutcomeProtect,
			wantCode:    ReasonWithinGracePeriod,
		},
		{
			name:        "missing expires checked before extra labels",
			record:      record("bare", "workloads", 72*time.Hour, map[string]string{}),
			wantOutcome: OutcomeDelete,
			wantCode:    ReasonMissingExpires,
			wantMessage: "Missing 'expires' label",
		},
		{
			name: "extra label failure names the first failing label",
			record: record("unowned", "workloads", 72*time.Hour, map[string]string{
				"expires": "7d",
			}),
			wantOutcome: OutcomeDelete,
			wantCode:    ReasonLabelViolation,
			wantMessage: `Missing required label "owner"`,
		},
		{
			name: "extra label pattern mismatch",
			record: record("miscosted", "workloads", 72*time.Hour, map[string]string{
				"expires":     "7d",
				"owner":       "alice",
				"cost_centre": "abc",
			}),
			wantOutcome: OutcomeDelete,
			wantCode:    ReasonLabelViolation,
		},
		{
			name: "invalid expires format",
			record: record("garbled", "workloads", 72*time.Hour, map[string]string{
				"expires":     "forever",
				"owner":       "alice",
				"cost_centre": "123",
			}),
			wantOutcome: OutcomeDelete,
			wantCode:    ReasonInvalidExpires,
			wantMessage: "Invalid 'expires' label format: forever",
		},
		{
			name: "expired cluster",
			record: record("stale", "workloads", 8*24*time.Hour, map[string]string{
				"expires":     "7d",
				"owner":       "alice",
				"cost_centre": "123",
			}),
			wantOutcome: OutcomeDelete,
			wantCode:    ReasonExpired,
		},
		{
			name: "not yet expired",
			record: record("young", "workloads", 24*time.Hour, map[string]string{
				"expires":     "7d",
				"owner":       "alice",
				"cost_centre": "123",
			}),
			wantOutcome: OutcomeProtect,
			wantCode:    ReasonNotYetExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluator.Classify(tt.record, evalNow)
			if got.Outcome != tt.wantOutcome {
				t.Errorf("outcome = %q, want %q (message: %s)", got.Outcome, tt.wantOutcome, got.Message)
			}
			if got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.wantMessage != "" && got.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestClassifyExpiredCarriesDetail(t *testing.T) {
	evaluator := NewEvaluator(&Policy{})

	created := evalNow.Add(-8 * 24 * time.Hour)
	rec := ClusterRecord{
		Name:      "stale",
		Namespace: "workloads",
		CreatedAt: created,
		Labels:    map[string]string{"expires": "7d"},
	}

	got := evaluator.Classify(rec, evalNow)
	if got.Outcome != OutcomeDelete || got.Code != ReasonExpired {
		t.Fatalf("classification = %q/%q, want delete/expired", got.Outcome, got.Code)
	}
	if got.ExpiresValue != "7d" {
		t.Errorf("ExpiresValue = %q, want %q", got.ExpiresValue, "7d")
	}
	if want := created.Add(7 * 24 * time.Hour); !got.ExpiryTime.Equal(want) {
		t.Errorf("ExpiryTime = %v, want %v", got.ExpiryTime, want)
	}
	if got.ElapsedPercent != 100 {
		t.Errorf("ElapsedPercent = %v, want 100", got.ElapsedPercent)
	}
	if !strings.Contains(got.Message, created.Format("2006-01-02")) || !strings.Contains(got.Message, "7d") {
		t.Errorf("message %q should include creation date and configured duration", got.Message)
	}
}

func TestClassifyNotYetExpiredRemaining(t *testing.T) {
	evaluator := NewEvaluator(&Policy{})

	rec := ClusterRecord{
		Name:      "young",
		Namespace: "workloads",
		CreatedAt: evalNow.Add(-24 * time.Hour),
		Labels:    map[string]string{"expires": "4d"},
	}

	got := evaluator.Classify(rec, evalNow)
	if got.Code != ReasonNotYetExpired {
		t.Fatalf("code = %q, want not-yet-expired", got.Code)
	}
	if want := 3 * 24 * time.Hour; got.Remaining != want {
		t.Errorf("Remaining = %v, want %v", got.Remaining, want)
	}
	if want := 25.0; got.ElapsedPercent != want {
		t.Errorf("ElapsedPercent = %v, want %v", got.ElapsedPercent, want)
	}
	if want := "Cluster has not expired yet (expires in ~3d)"; got.Message != want {
		t.Errorf("message = %q, want %q", got.Message, want)
	}
}

func TestClassifyExpiryBoundary(t *testing.T) {
	evaluator := NewEvaluator(&Policy{})

	rec := ClusterRecord{
		Name:      "edge",
		Namespace: "workloads",
		CreatedAt: evalNow.Add(-24 * time.Hour),
		Labels:    map[string]string{"expires": "1d"},
	}

	// now == expiry_time deletes: the contract is now >= expiry_time.
	got := evaluator.Classify(rec, evalNow)
	if got.Code != ReasonExpired {
		t.Errorf("classification at exact expiry = %q, want expired", got.Code)
	}

	justBefore := evaluator.Classify(rec, evalNow.Add(-time.Second))
	if justBefore.Code != ReasonNotYetExpired {
		t.Errorf("classification one second before expiry = %q, want not-yet-expired", justBefore.Code)
	}
}

func TestClassifyAllDeterministic(t *testing.T) {
	evaluator := NewEvaluator(evalPolicy())

	var records []ClusterRecord
	for i := 0; i < 200; i++ {
		records = append(records, record(
			fmt.Sprintf("cluster-%03d", i),
			fmt.Sprintf("team-%d", i%7),
			time.Duration(i)*time.Hour,
			map[string]string{"expires": "3d", "owner": "alice", "cost_centre": "1"},
		))
	}

	first := evaluator.ClassifyAll(records, evalNow)
	second := evaluator.ClassifyAll(records, evalNow)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("ClassifyAll is not deterministic across runs")
	}

	for i := 1; i < len(first); i++ {
		prev, cur := first[i-1].Record, first[i].Record
		if prev.Namespace > cur.Namespace || (prev.Namespace == cur.Namespace && prev.Name > cur.Name) {
			t.Fatalf("results not sorted at index %d: %s/%s before %s/%s",
				i, prev.Namespace, prev.Name, cur.Namespace, cur.Name)
		}
	}
}

func TestClassifyAllEmpty(t *testing.T) {
	evaluator := NewEvaluator(evalPolicy())
	if got := evaluator.ClassifyAll(nil, evalNow); len(got) != 0 {
		t.Errorf("ClassifyAll(nil) = %d results, want 0", len(got))
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		want      string
	}{
		{remaining: 3 * 24 * time.Hour, want: "3d"},
		{remaining: 26 * time.Hour, want: "1d"},
		{remaining: 5 * time.Hour, want: "5h"},
		{remaining: 30 * time.Minute, want: "0h"},
		{remaining: 0, want: "EXPIRED"},
		{remaining: -time.Hour, want: "EXPIRED"},
	}

	for _, tt := range tests {
		if got := FormatRemaining(tt.remaining); got != tt.want {
			t.Errorf("FormatRemaining(%v) = %q, want %q", tt.remaining, got, tt.want)
		}
	}
}
