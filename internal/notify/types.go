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
	"time"

	"github.com/mikelane/clusterjanitor/internal/policy"
)

// Severity is the escalation level of an expiry notification. Each severity
// fires at most once per cluster lifetime.
type Severity string

const (
	// SeverityWarning fires when a cluster crosses the warning threshold.
	SeverityWarning Severity = "warning"
	// SeverityCritical fires when a cluster crosses the critical threshold
	// or has already expired.
	SeverityCritical Severity = "critical"
)

// Notification is the structured payload handed to the alert transport.
type Notification struct {
	ClusterName    string
	Namespace      string
	Owner          string
	Expires        string
	ElapsedPercent float64
	TimeRemaining  string
	ExpiryTime     time.Time
	Severity       Severity
}

// Key returns the cluster identity the notification is about.
func (n Notification) Key() string {
	return n.Namespace + "/" + n.ClusterName
}

// newNotification builds a payload from a classification result. An already
// expired cluster reports 100 percent elapsed regardless of how far past its
// expiry it is.
func newNotification(r policy.Result, severity Severity) Notification {
	expires := r.Classification.ExpiresValue
	if expires == "" {
		expires = "N/A"
	}

	elapsed := r.Classification.ElapsedPercent
	if r.Classification.Code == policy.ReasonExpired {
		elapsed = 100
	}

	return Notification{
		ClusterName:    r.Record.Name,
		Namespace:      r.Record.Namespace,
		Owner:          r.Record.Owner(),
		Expires:        expires,
		ElapsedPercent: elapsed,
		TimeRemaining:  policy.FormatRemaining(r.Classification.Remaining),
		ExpiryTime:     r.Classification.ExpiryTime,
		Severity:       severity,
	}
}

// Deleted builds the payloads for a deletion announcement. Deleted clusters
// are past the end of their lifetime, so the batch carries critical severity.
func Deleted(results []policy.Result) []Notification {
	notifications := make([]Notification, len(results))
	for i, r := range results {
		notifications[i] = newNotification(r, SeverityCritical)
	}
	return notifications
}

// Notifier is the alert transport. Implementations deliver one message per
// severity batch, not one per cluster.
type Notifier interface {
	// SendExpiry delivers a batch of same-severity expiry notifications.
	// The threshold is the configured percentage that severity fires at,
	// included so the message can explain why it exists.
	SendExpiry(ctx context.Context, severity Severity, threshold float64, notifications []Notification) error

	// SendDeleted announces clusters that were just deleted by policy.
	SendDeleted(ctx context.Context, notifications []Notification) error
}
