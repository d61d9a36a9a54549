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

import "time"

// Matcher answers protection and grace-period questions for one Policy.
// Identity protection is configuration-driven and therefore stronger than
// the time-based grace window; the evaluator checks it first.
type Matcher struct {
	policy *Policy
}

// NewMatcher creates a matcher over an already-compiled policy.
func NewMatcher(p *Policy) *Matcher {
	return &Matcher{policy: p}
}

// IsManagementCluster reports whether the name is the configured management
// cluster, which is always excluded from deletion.
func (m *Matcher) IsManagementCluster(name string) bool {
	return m.policy.ManagementClusterName != "" && name == m.policy.ManagementClusterName
}

// MatchProtectedName returns the first protected-cluster pattern that
// matches anywhere in the cluster name. The match is an unanchored search,
// not a full match.
func (m *Matcher) MatchProtectedName(name string) (string, bool) {
	for _, pattern := range m.policy.ProtectedClusterPatterns {
		if pattern.MatchString(name) {
			return pattern.String(), true
		}
	}
	return "", false
}

// MatchExcludedNamespace returns the first excluded-namespace pattern that
// matches anywhere in the namespace.
func (m *Matcher) MatchExcludedNamespace(namespace string) (string, bool) {
	for _, pattern := range m.policy.ExcludedNamespacePatterns {
		if pattern.MatchString(namespace) {
			return pattern.String(), true
		}
	}
	return "", false
}

// IsProtected reports whether a cluster identity is protected by name or
// namespace configuration.
func (m *Matcher) IsProtected(name, namespace string) bool {
	if m.IsManagementCluster(name) {
		return true
	}
	if _, ok := m.MatchProtectedName(name); ok {
		return true
	}
	_, ok := m.MatchExcludedNamespace(namespace)
	return ok
}

// WithinGracePeriod reports whether a cluster is still inside the
// configured post-creation grace window at the given evaluation time. A
// zero grace period disables the check.
func (m *Matcher) WithinGracePeriod(createdAt, now time.Time) bool {
	if m.policy.GracePeriod <= 0 {
		return false
	}
	return now.Sub(createdAt) < m.policy.GracePeriod
}
