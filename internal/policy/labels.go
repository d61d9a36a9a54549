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

import "fmt"

// LabelViolation describes one unsatisfied label requirement.
type LabelViolation struct {
	Requirement LabelRequirement
	// Value is the label value found; empty when Missing.
	Value string
	// Missing is true when the label key is absent entirely.
	Missing bool
}

// Message renders the violation the way listings and deletion reasons
// expect it.
func (v LabelViolation) Message() string {
	if v.Missing {
		return fmt.Sprintf("Missing required label %q", v.Requirement.Name)
	}
	return fmt.Sprintf("Label %q value %q does not match pattern %q",
		v.Requirement.Name, v.Value, v.Requirement.Pattern.String())
}

// ValidateLabels checks a cluster's label set against the ordered
// requirements and returns every violation in requirement order. A
// requirement is violated when the key is absent, or when a pattern is
// configured and the value does not match it in full.
//
// The rules dashboard wants every failure; the deletion reason wants only
// the first. Use FirstViolation for the latter.
func ValidateLabels(labels map[string]string, requirements []LabelRequirement) []LabelViolation {
	var violations []LabelViolation

	for _, req := range requirements {
		value, ok := labels[req.Name]
		if !ok {
			violations = append(violations, LabelViolation{Requirement: req, Missing: true})
			continue
		}
		if req.Pattern != nil && !req.Pattern.MatchString(value) {
			violations = append(violations, LabelViolation{Requirement: req, Value: value})
		}
	}

	return violations
}

// FirstViolation returns the first unsatisfied requirement in configuration
// order, or nil when the label set is compliant.
func FirstViolation(labels map[string]string, requirements []LabelRequirement) *LabelViolation {
	violations := ValidateLabels(labels, requirements)
	if len(violations) == 0 {
		return nil
	}
	return &violations[0]
}
