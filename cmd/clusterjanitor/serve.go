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
	"time"

	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/clusterjanitor/internal/analytics"
	"github.com/mikelane/clusterjanitor/internal/inventory"
	"github.com/mikelane/clusterjanitor/internal/janitor"
	"github.com/mikelane/clusterjanitor/internal/metrics"
	"github.com/mikelane/clusterjanitor/internal/server"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	var (
		bindAddress    string
		port           int
		interval       time.Duration
		deleteClusters bool
		dryRun         bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run periodic janitor passes and serve metrics",
		Long: `Run janitor passes on a fixed interval and expose Prometheus
metrics on /metrics plus a store health probe on /healthz. Deletion is off
unless --delete is given; notifications require a Slack token.`,
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
			svc := metrics.NewService()

			opts := janitor.Options{
				Provider:       inventory.NewProvider(c),
				Executor:       inventory.NewExecutor(c, dryRun),
				Policy:         cfg.Policy,
				Metrics:        svc,
				Namespace:      flags.namespace,
				DeleteClusters: deleteClusters,
			}

			// Redis and Slack are optional in serve mode; without them the
			// loop still evaluates and, if enabled, deletes.
			s, err := flags.connectStore(ctx)
			if err != nil {
				logger.Error(err, "Continuing without a state store; notifications and analytics disabled")
			} else {
				if aggregator, err := analytics.NewAggregator(s, cfg.Retention); err == nil {
					opts.Aggregator = aggregator
				}
				if flags.slackToken != "" {
					tracker, err := flags.tracker(s, cfg, 0, 0)
					if err != nil {
						logger.Error(err, "Continuing without notifications")
					} else {
						opts.Tracker = tracker
						opts.Notifier, _ = flags.notifier()
					}
				}
			}

			j, err := janitor.New(opts)
			if err != nil {
				return err
			}

			var health server.HealthFunc
			if s != nil {
				health = s.Healthy
			}
			srv := server.New(bindAddress, port, svc.Handler(), health)

			errChan := make(chan error, 1)
			go func() {
				errChan <- srv.Start(ctx)
			}()
			go func() {
				errChan <- j.Start(ctx, interval)
			}()

			// First error wins; context cancellation surfaces as nil from
			// both goroutines.
			if err := <-errChan; err != nil {
				return err
			}
			return <-errChan
		},
	}

	cmd.Flags().StringVar(&bindAddress, "bind-address", "", "address the metrics server binds to")
	cmd.Flags().IntVar(&port, "port", 8080, "port the metrics server listens on")
	cmd.Flags().DurationVar(&interval, "interval", time.Hour, "time between janitor passes")
	cmd.Flags().BoolVar(&deleteClusters, "delete", false, "delete clusters that violate policy")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log deletions without performing them")
	return cmd
}
