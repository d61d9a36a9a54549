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
	"testing"
)

// fullMatch anchors a pattern the way config compilation does.
func fullMatch(t *testing.T, expr string) *regexp.Regexp {
	t.Helper()
	return regexp.MustCompile("^(?:" + expr + ")$")
}

func TestValidateLabels(t *testing.T) {
	requirements := []LabelRequirement{
		{Name: "owner"},
		{Name: "cost_centre", Pattern: nil},
	}

	tests := []struct {
		name           string
		labels         map[string]string
		wantViolations int
	}{
		{
			name:           "all present",
			labels:         map[string]string{"owner": "alice", "cost_centre": "123"},
			wantViolations: 0,
		},
		{
			name:           "one missing",
			labels:         map[string]string{"owner": "alice"},
			wantViolations: 1,
		},
		{
			name:           "all missing",
			labels:         map[string]string{},
			wantViolations: 2,
		},
		{
			name:           "nil label map",
			labels:         nil,
			wantViolations: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := ValidateLabels(tt.labels, requirements)
			if len(violations) != tt.wantViolations {
				t.Errorf("ValidateLabels() returned %d violations, want %d", len(violations), tt.wantViolations)
			}
		})
	}
}

func TestValidateLabelsPattern(t *testing.T) {
	requirements := []LabelRequirement{
		{Name: "cost_centre", Pattern: fullMatch(t, "[0-9]+")},
	}

	tests := []struct {
		name    string
		value   string
		wantOK  bool
		missing bool
	}{
		{name: "digits match", value: "12345", wantOK: true},
		{name: "letters rejected", value: "abc", wantOK: false},
		{name: "substring match is not enough", value: "cc-123", wantOK: false},
		{name: "empty value rejected", value: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels := map[string]string{"cost_centre": tt.value}
			violations := ValidateLabels(labels, requirements)
			if tt.wantOK && len(violations) != 0 {
				t.Errorf("ValidateLabels(%q) = %d violations, want 0", tt.value, len(violations))
			}
			if !tt.wantOK {
				if len(violations) != 1 {
					t.Fatalf("ValidateLabels(%q) = %d violations, want 1", tt.value, len(violations))
				}
				if violations[0].Missing {
					t.Errorf("violation marked missing for present label")
				}
				if violations[0].Value != tt.value {
					t.Errorf("violation value = %q, want %q", violations[0].Value, tt.value)
				}
			}
		})
	}
}

func TestFirstViolationOrder(t *testing.T) {
	requirements := []LabelRequirement{
		{Name: "owner"},
		{Name: "team"},
		{Name: "cost_centre", Pattern: fullMatch(t, "[0-9]+")},
	}

	// Everything fails; the reported violation must follow configuration
	// order, not map iteration order.
	labels := map[string]string{"cost_centre": "abc"}

	violation := FirstViolation(labels, requirements)
	if violation == nil {
		t.Fatal("FirstViolation returned nil, want violation")
	}
	if violation.Requirement.Name != "owner" {
		t.Errorf("first violation names %q, want %q", violation.Requirement.Name, "owner")
	}
	if !violation.Missing {
		t.Error("first violation should be a missing label")
	}

	if got := FirstViolation(map[string]string{"owner": "a", "team": "b", "cost_centre": "1"}, requirements); got != nil {
		t.Errorf("FirstViolation on compliant labels = %+v, want nil", got)
	}
}

func TestLabelViolationMessage(t *testing.T) {
	missing := LabelViolation{Requirement: LabelRequirement{Name: "owner"}, Missing: true}
	if got, want := missing.Message(), `Missing required label "owner"`; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}

	mismatch := LabelViolation{
		Requirement: LabelRequirement{Name: "cost_centre", Pattern: fullMatch(t, "[0-9]+")},
		Value:       "abc",
	}
	if got, want := mismatch.Message(), `Label "cost_centre" value "abc" does not match pattern "^(?:[0-9]+)$"`; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
}
