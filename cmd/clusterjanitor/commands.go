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

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/clusterjanitor/internal/analytics"
	"github.com/mikelane/clusterjanitor/internal/config"
	"github.com/mikelane/clusterjanitor/internal/inventory"
	"github.com/mikelane/clusterjanitor/internal/janitor"
	"github.com/mikelane/clusterjanitor/internal/policy"
)

func newListCommand(flags *globalFlags) *cobra.Command {
	var showProtected bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clusters marked for deletion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			provider, err := flags.provider()
			if err != nil {
				return err
			}

			clusters, err := provider.List(cmd.Context(), flags.namespace)
			if err != nil {
				return err
			}
			results := policy.NewEvaluator(cfg.Policy).ClassifyAll(inventory.Records(clusters), time.Now())

			wantOutcome := policy.OutcomeDelete
			if showProtected {
				wantOutcome = policy.OutcomeProtect
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "NAMESPACE\tNAME\tOWNER\tEXPIRES\tREMAINING\tREASON")
			matched := 0
			for _, r := range results {
				if r.Classification.Outcome != wantOutcome {
					continue
				}
				matched++
				expires := r.Classification.ExpiresValue
				if expires == "" {
					expires = "-"
				}
				remaining := "-"
				if !r.Classification.ExpiryTime.IsZero() {
					remaining = policy.FormatRemaining(r.Classification.Remaining)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Record.Namespace, r.Record.Name, r.Record.Owner(),
					expires, remaining, r.Classification.Message)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d clusters\n", matched, len(results))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showProtected, "excluded", false, "list protected clusters instead of deletion candidates")
	return cmd
}

func newDeleteCommand(flags *globalFlags) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete clusters that violate lifecycle policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := log.FromContext(ctx)

			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			c, err := flags.kubeClient()
			if err != nil {
				return err
			}

			opts := janitor.Options{
				Provider:       inventory.NewProvider(c),
				Executor:       inventory.NewExecutor(c, dryRun),
				Policy:         cfg.Policy,
				Namespace:      flags.namespace,
				DeleteClusters: true,
			}

			// Notification state and the deletion announcement are best
			// effort; a missing Slack token or an unreachable Redis must
			// not keep expired clusters alive.
			if flags.slackToken != "" {
				if s, err := flags.connectStore(ctx); err != nil {
					logger.Error(err, "Continuing without notification state")
				} else if tracker, err := flags.tracker(s, cfg, 0, 0); err != nil {
					logger.Error(err, "Continuing without notification state")
				} else {
					opts.Tracker = tracker
					opts.Notifier, _ = flags.notifier()
				}
			}

			j, err := janitor.New(opts)
			if err != nil {
				return err
			}
			report, err := j.Run(ctx)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "[dry run] %d of %d clusters would be deleted\n",
					report.ForDeletion, report.Total)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d of %d clusters marked for deletion (%d failures)\n",
					report.Deleted, report.ForDeletion, report.DeleteFailures)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log what would be deleted without deleting")
	return cmd
}

func newNotifyCommand(flags *globalFlags) *cobra.Command {
	var warning, critical float64

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send expiry notifications for clusters approaching their lifetime",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			s, err := flags.connectStore(ctx)
			if err != nil {
				return err
			}
			tracker, err := flags.tracker(s, cfg, warning, critical)
			if err != nil {
				return err
			}
			provider, err := flags.provider()
			if err != nil {
				return err
			}

			clusters, err := provider.List(ctx, flags.namespace)
			if err != nil {
				return err
			}
			results := policy.NewEvaluator(cfg.Policy).ClassifyAll(inventory.Records(clusters), time.Now())

			cleaned, err := tracker.CleanupStale(ctx, results)
			if err != nil {
				return err
			}
			criticalDue, warningDue := tracker.Plan(results)
			sentCritical, sentWarning, err := tracker.Dispatch(ctx, criticalDue, warningDue)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Sent %d critical and %d warning notifications, cleaned %d stale states\n",
				sentCritical, sentWarning, cleaned)
			return nil
		},
	}

	cmd.Flags().Float64Var(&warning, "warning-threshold", 0, "warning threshold as percent of lifetime (default: from config)")
	cmd.Flags().Float64Var(&critical, "critical-threshold", 0, "critical threshold as percent of lifetime (default: from config)")
	return cmd
}

func newCollectCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Collect and store one analytics snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			s, err := flags.connectStore(ctx)
			if err != nil {
				return err
			}
			aggregator, err := analytics.NewAggregator(s, cfg.Retention)
			if err != nil {
				return err
			}
			provider, err := flags.provider()
			if err != nil {
				return err
			}

			now := time.Now()
			clusters, err := provider.List(ctx, flags.namespace)
			if err != nil {
				return err
			}
			results := policy.NewEvaluator(cfg.Policy).ClassifyAll(inventory.Records(clusters), now)

			snap := analytics.BuildSnapshot(results, cfg.Policy, now)
			if err := aggregator.Collect(ctx, snap); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Collected snapshot: %d clusters, %d for deletion, compliance %.1f%%\n",
				snap.ClusterCounts.Total, snap.ClusterCounts.ForDeletion,
				snap.LabelCompliance.OverallComplianceRate)
			return nil
		},
	}
}

func newPruneCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove analytics snapshots older than the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			s, err := flags.connectStore(ctx)
			if err != nil {
				return err
			}
			aggregator, err := analytics.NewAggregator(s, cfg.Retention)
			if err != nil {
				return err
			}

			pruned, err := aggregator.Prune(ctx, time.Now())
			if err != nil {
				return err
			}
			remaining, err := aggregator.Count(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d snapshots, %d remaining\n", pruned, remaining)
			return nil
		},
	}
}

func newInitConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a commented example configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "clusterjanitor.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteExample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote example configuration to %s\n", path)
			return nil
		},
	}
}
