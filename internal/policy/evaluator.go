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
	"runtime"
	"sort"
	"sync"
	"time"
)

// Evaluator classifies cluster records against a compiled policy. It holds
// no mutable state; the same inputs and the same "now" always produce the
// same Classification, regardless of call order or parallelism.
type Evaluator struct {
	policy  *Policy
	matcher *Matcher
}

// NewEvaluator creates an evaluator for a compiled policy.
func NewEvaluator(p *Policy) *Evaluator {
	return &Evaluator{
		policy:  p,
		matcher: NewMatcher(p),
	}
}

// Classify applies the rule chain to one record. Rules are checked in a
// fixed order and only the first matching rule's reason is reported, even
// when several would apply.
func (e *Evaluator) Classify(rec ClusterRecord, now time.Time) Classification {
	// Identity protection comes before everything else. The management
	// cluster's object name is stable across releases even when its display
	// name changes.
	if e.matcher.IsManagementCluster(rec.Name) {
		return Classification{
			Outcome: OutcomeProtect,
			Code:    ReasonManagementCluster,
			Message: "Cluster is a management cluster",
		}
	}
	if e.matcher.IsProtected(rec.Name, rec.Namespace) {
		return Classification{
			Outcome: OutcomeProtect,
			Code:    ReasonProtectedByConfig,
			Message: fmt.Sprintf("Cluster %s is protected by configuration", rec.Name),
		}
	}

	if e.matcher.WithinGracePeriod(rec.CreatedAt, now) {
		return Classification{
			Outcome: OutcomeProtect,
			Code:    ReasonWithinGracePeriod,
			Message: fmt.Sprintf("Cluster is within grace period (%s after creation)", e.policy.GracePeriod),
		}
	}

	expiresValue, hasExpires := rec.Labels["expires"]
	if !hasExpires {
		return Classification{
			Outcome: OutcomeDelete,
			Code:    ReasonMissingExpires,
			Message: "Missing 'expires' label",
		}
	}

	if violation := FirstViolation(rec.Labels, e.policy.ExtraLabels); violation != nil {
		return Classification{
			Outcome:      OutcomeDelete,
			Code:         ReasonLabelViolation,
			Message:      violation.Message(),
			LabelName:    violation.Requirement.Name,
			ExpiresValue: expiresValue,
		}
	}

	lifetime, err := ParseLifetime(expiresValue)
	if err != nil {
		return Classification{
			Outcome:      OutcomeDelete,
			Code:         ReasonInvalidExpires,
			Message:      fmt.Sprintf("Invalid 'expires' label format: %s", expiresValue),
			ExpiresValue: expiresValue,
		}
	}

	expiryTime := rec.CreatedAt.Add(lifetime)
	remaining := expiryTime.Sub(now)
	elapsed := elapsedPercent(rec.CreatedAt, expiryTime, now)

	if !now.Before(expiryTime) {
		return Classification{
			Outcome:        OutcomeDelete,
			Code:           ReasonExpired,
			Message:        fmt.Sprintf("Cluster has expired (created: %s, expires after: %s)", rec.CreatedAt.Format("2006-01-02"), expiresValue),
			ExpiresValue:   expiresValue,
			ExpiryTime:     expiryTime,
			Remaining:      remaining,
			ElapsedPercent: elapsed,
		}
	}

	return Classification{
		Outcome:        OutcomeProtect,
		Code:           ReasonNotYetExpired,
		Message:        fmt.Sprintf("Cluster has not expired yet (expires in ~%s)", FormatRemaining(remaining)),
		ExpiresValue:   expiresValue,
		ExpiryTime:     expiryTime,
		Remaining:      remaining,
		ElapsedPercent: elapsed,
	}
}

// ClassifyAll evaluates a fleet in parallel against a single shared "now"
// so every cluster in the batch is judged at an identical timestamp. The
// result is sorted deterministically by namespace then name.
func (e *Evaluator) ClassifyAll(records []ClusterRecord, now time.Time) []Result {
	results := make([]Result, len(records))

	workers := runtime.NumCPU()
	if workers > len(records) {
		workers = len(records)
	}
	if workers < 1 {
		workers = 1
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = Result{
					Record:         records[i],
					Classification: e.Classify(records[i], now),
				}
			}
		}()
	}
	for i := range records {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Record.Namespace != results[j].Record.Namespace {
			return results[i].Record.Namespace < results[j].Record.Namespace
		}
		return results[i].Record.Name < results[j].Record.Name
	})

	return results
}

// FormatRemaining renders a remaining lifetime the way operators read it:
// whole days when at least a day is left, whole hours below that, and
// "EXPIRED" once nothing remains. Display only; never used for decisions.
func FormatRemaining(remaining time.Duration) string {
	if remaining <= 0 {
		return "EXPIRED"
	}
	if days := int(remaining / day); days > 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dh", int(remaining/time.Hour))
}

// elapsedPercent computes lifetime consumed, clamped to [0, 100].
func elapsedPercent(createdAt, expiryTime, now time.Time) float64 {
	total := expiryTime.Sub(createdAt)
	if total <= 0 {
		return 100
	}
	pct := float64(now.Sub(createdAt)) / float64(total) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
