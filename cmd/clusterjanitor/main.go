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

// clusterjanitor evaluates lifecycle policy over a Kommander-managed fleet:
// it lists clusters due for deletion, deletes them, sends expiry warnings,
// and collects fleet analytics.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/client-go/tools/clientcmd"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/mikelane/clusterjanitor/internal/config"
	"github.com/mikelane/clusterjanitor/internal/inventory"
	"github.com/mikelane/clusterjanitor/internal/notify"
	"github.com/mikelane/clusterjanitor/internal/store"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	kubeconfig string
	namespace  string

	redisAddr     string
	redisUsername string
	redisPassword string
	redisDB       int

	slackToken   string
	slackChannel string
}

func main() {
	ctrl.SetLogger(zap.New())

	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "clusterjanitor",
		Short:         "Lifecycle policy enforcement for ephemeral Kubernetes clusters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to the policy configuration file")
	pf.StringVar(&flags.kubeconfig, "kubeconfig", "", "path to the kubeconfig (default: in-cluster or $KUBECONFIG)")
	pf.StringVarP(&flags.namespace, "namespace", "n", "", "restrict to one namespace (default: all namespaces)")
	pf.StringVar(&flags.redisAddr, "redis-addr", "localhost:6379", "Redis address for notification and analytics state")
	pf.StringVar(&flags.redisUsername, "redis-username", "", "Redis username")
	pf.StringVar(&flags.redisPassword, "redis-password", os.Getenv("REDIS_PASSWORD"), "Redis password (default: $REDIS_PASSWORD)")
	pf.IntVar(&flags.redisDB, "redis-db", 0, "Redis database number")
	pf.StringVar(&flags.slackToken, "slack-token", os.Getenv("SLACK_TOKEN"), "Slack bot token (default: $SLACK_TOKEN)")
	pf.StringVar(&flags.slackChannel, "slack-channel", "", "Slack channel for notifications")

	root.AddCommand(
		newListCommand(flags),
		newDeleteCommand(flags),
		newNotifyCommand(flags),
		newCollectCommand(flags),
		newPruneCommand(flags),
		newServeCommand(flags),
		newInitConfigCommand(),
	)

	if err := root.ExecuteContext(ctrl.SetupSignalHandler()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig loads the policy configuration, falling back to defaults when
// no file was given.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	if f.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(f.configPath)
}

// kubeClient builds an API client from the kubeconfig flag, $KUBECONFIG, or
// the in-cluster environment.
func (f *globalFlags) kubeClient() (client.Client, error) {
	if f.kubeconfig != "" {
		cfg, err := clientcmd.BuildConfigFromFlags("", f.kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("loading kubeconfig %s: %w", f.kubeconfig, err)
		}
		return client.New(cfg, client.Options{})
	}
	cfg, err := ctrl.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("loading kubeconfig: %w", err)
	}
	return client.New(cfg, client.Options{})
}

// provider builds the cluster inventory over a fresh API client.
func (f *globalFlags) provider() (*inventory.Provider, error) {
	c, err := f.kubeClient()
	if err != nil {
		return nil, err
	}
	return inventory.NewProvider(c), nil
}

// connectStore dials Redis. Commands that need state fail fast here rather
// than partway through a run.
func (f *globalFlags) connectStore(ctx context.Context) (store.Store, error) {
	return store.NewRedis(ctx, store.RedisOptions{
		Addr:     f.redisAddr,
		Username: f.redisUsername,
		Password: f.redisPassword,
		DB:       f.redisDB,
	})
}

// notifier builds the Slack transport.
func (f *globalFlags) notifier() (notify.Notifier, error) {
	return notify.NewSlackNotifier(notify.SlackOptions{
		Token:   f.slackToken,
		Channel: f.slackChannel,
	})
}

// tracker wires a notification tracker from configuration, with optional
// flag overrides for the thresholds.
func (f *globalFlags) tracker(s store.Store, cfg *config.Config, warning, critical float64) (*notify.Tracker, error) {
	n, err := f.notifier()
	if err != nil {
		return nil, err
	}

	if warning == 0 {
		warning = cfg.WarningThreshold
	}
	if critical == 0 {
		critical = cfg.CriticalThreshold
	}
	return notify.NewTracker(s, n, notify.TrackerOptions{
		WarningThreshold:  warning,
		CriticalThreshold: critical,
		TTL:               cfg.NotificationTTL,
	})
}
