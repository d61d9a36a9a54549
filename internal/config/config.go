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

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/mikelane/clusterjanitor/internal/policy"
)

// ErrInvalidConfig reports a configuration that must not be evaluated:
// a non-compiling regex, a malformed duration, or inverted thresholds.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultManagementClusterName is the object name of the management
// cluster. The display name may change between releases but the object
// name stays consistent.
const DefaultManagementClusterName = "host-cluster"

const (
	// DefaultWarningThreshold is the elapsed-lifetime percentage at which
	// a warning notification fires.
	DefaultWarningThreshold = 80
	// DefaultCriticalThreshold is the elapsed-lifetime percentage at which
	// a critical notification fires.
	DefaultCriticalThreshold = 95
	// DefaultNotificationTTL is how long dedup state survives without a
	// refresh before it is treated as never-sent again.
	DefaultNotificationTTL = 30 * 24 * time.Hour
	// DefaultRetention is how long analytics snapshots are kept.
	DefaultRetention = 90 * 24 * time.Hour
)

// file mirrors the YAML document. sigs.k8s.io/yaml routes through JSON
// tags, matching how the rest of the k8s ecosystem declares config.
type file struct {
	ManagementClusterName     string       `json:"management_cluster_name,omitempty"`
	ProtectedClusterPatterns  []string     `json:"protected_cluster_patterns,omitempty"`
	ExcludedNamespacePatterns []string     `json:"excluded_namespace_patterns,omitempty"`
	ExtraLabels               []extraLabel `json:"extra_labels,omitempty"`
	GracePeriod               string       `json:"grace_period,omitempty"`
	Notifications             thresholds   `json:"notifications,omitempty"`
	RetentionDays             int          `json:"retention_days,omitempty"`
}

type extraLabel struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Regex       string `json:"regex,omitempty"`
}

type thresholds struct {
	WarningThreshold  float64 `json:"warning_threshold,omitempty"`
	CriticalThreshold float64 `json:"critical_threshold,omitempty"`
}

// Config is the validated, compiled configuration for one run.
type Config struct {
	Policy *policy.Policy

	// WarningThreshold and CriticalThreshold are elapsed-lifetime
	// percentages; warning is strictly below critical.
	WarningThreshold  float64
	CriticalThreshold float64

	// NotificationTTL is the rolling lifetime of dedup state.
	NotificationTTL time.Duration
	// Retention bounds how long analytics snapshots are kept.
	Retention time.Duration
}

// Default returns the configuration used when no file is given: only the
// management cluster is protected and the standard thresholds apply.
func Default() *Config {
	return &Config{
		Policy: &policy.Policy{
			ManagementClusterName: DefaultManagementClusterName,
		},
		WarningThreshold:  DefaultWarningThreshold,
		CriticalThreshold: DefaultCriticalThreshold,
		NotificationTTL:   DefaultNotificationTTL,
		Retention:         DefaultRetention,
	}
}

// Load reads and validates a policy configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates raw YAML configuration. Every error names the offending
// field and value so the operator knows what to fix.
func Parse(data []byte) (*Config, error) {
	var f file
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg := Default()

	if f.ManagementClusterName != "" {
		cfg.Policy.ManagementClusterName = f.ManagementClusterName
	}

	for _, expr := range f.ProtectedClusterPatterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: protected_cluster_patterns entry %q: %v", ErrInvalidConfig, expr, err)
		}
		cfg.Policy.ProtectedClusterPatterns = append(cfg.Policy.ProtectedClusterPatterns, re)
	}

	for _, expr := range f.ExcludedNamespacePatterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: excluded_namespace_patterns entry %q: %v", ErrInvalidConfig, expr, err)
		}
		cfg.Policy.ExcludedNamespacePatterns = append(cfg.Policy.ExcludedNamespacePatterns, re)
	}

	for _, label := range f.ExtraLabels {
		if label.Name == "" {
			return nil, fmt.Errorf("%w: extra_labels entry without a name", ErrInvalidConfig)
		}
		req := policy.LabelRequirement{
			Name:        label.Name,
			Description: label.Description,
		}
		if label.Regex != "" {
			re, err := regexp.Compile("^(?:" + label.Regex + ")$")
			if err != nil {
				return nil, fmt.Errorf("%w: extra_labels %q regex %q: %v", ErrInvalidConfig, label.Name, label.Regex, err)
			}
			req.Pattern = re
		}
		cfg.Policy.ExtraLabels = append(cfg.Policy.ExtraLabels, req)
	}

	if f.GracePeriod != "" {
		grace, err := policy.ParseLifetime(f.GracePeriod)
		if err != nil {
			return nil, fmt.Errorf("%w: grace_period %q: %v", ErrInvalidConfig, f.GracePeriod, err)
		}
		cfg.Policy.GracePeriod = grace
	}

	if f.Notifications.WarningThreshold != 0 {
		cfg.WarningThreshold = f.Notifications.WarningThreshold
	}
	if f.Notifications.CriticalThreshold != 0 {
		cfg.CriticalThreshold = f.Notifications.CriticalThreshold
	}
	if err := ValidateThresholds(cfg.WarningThreshold, cfg.CriticalThreshold); err != nil {
		return nil, err
	}

	if f.RetentionDays < 0 {
		return nil, fmt.Errorf("%w: retention_days %d must not be negative", ErrInvalidConfig, f.RetentionDays)
	}
	if f.RetentionDays > 0 {
		cfg.Retention = time.Duration(f.RetentionDays) * 24 * time.Hour
	}

	return cfg, nil
}

// ValidateThresholds enforces the threshold ordering invariant.
func ValidateThresholds(warning, critical float64) error {
	if warning < 0 || warning > 100 {
		return fmt.Errorf("%w: warning_threshold %v must be between 0 and 100", ErrInvalidConfig, warning)
	}
	if critical < 0 || critical > 100 {
		return fmt.Errorf("%w: critical_threshold %v must be between 0 and 100", ErrInvalidConfig, critical)
	}
	if warning >= critical {
		return fmt.Errorf("%w: warning_threshold %v must be less than critical_threshold %v", ErrInvalidConfig, warning, critical)
	}
	return nil
}

// exampleConfig documents every knob; init-config writes it verbatim.
const exampleConfig = `# clusterjanitor policy configuration.

# Object name of the management cluster; always protected.
management_cluster_name: host-cluster

# Cluster names matching any of these patterns are never deleted.
# Patterns are searched anywhere in the name.
protected_cluster_patterns:
  - "^production-"
  - "-prod$"
  - "critical-"

# Clusters in namespaces matching any of these patterns are never deleted.
excluded_namespace_patterns:
  - "^default$"
  - "-prod$"

# Labels every cluster must carry in addition to "expires".
# An optional regex must match the whole label value.
extra_labels:
  - name: owner
    description: Who to contact before deletion
  - name: cost_centre
    description: Billing code
    regex: "[0-9]+"

# Clusters younger than this are exempt from deletion and notification.
# Uses the lifetime grammar: <number><unit> with unit h/d/w/y.
grace_period: 4h

notifications:
  warning_threshold: 80
  critical_threshold: 95

# How many days of analytics snapshots to keep.
retention_days: 90
`

// WriteExample writes a commented example configuration file.
func WriteExample(path string) error {
	if err := os.WriteFile(path, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write example config to %s: %w", path, err)
	}
	return nil
}
