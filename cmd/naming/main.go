package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"

	"stockex/internal/naming"
	"stockex/internal/obs"
	"stockex/internal/ops"
	"stockex/internal/protocol"
	"stockex/pkg/tcp"
)

type options struct {
	config      string
	region      string
	backup      bool
	dataDir     string
	startDelay  time.Duration
	metricsAddr string
	pyroscope   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "naming",
		Short:        "Runs the naming node of one region",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.config, "config", "", "static tables as JSON, built-in defaults when empty")
	cmd.Flags().StringVar(&opts.region, "region", "", "region to serve, e.g. Asia")
	cmd.Flags().BoolVar(&opts.backup, "backup", false, "run as the backup instance of the region")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "data", "directory of the start time file")
	cmd.Flags().DurationVar(&opts.startDelay, "start-delay", 20*time.Second, "delay before the first tick on a fresh start")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	cmd.Flags().StringVar(&opts.pyroscope, "pyroscope", "", "pyroscope server url")
	_ = cmd.MarkFlagRequired("region")
	return cmd
}

func run(parent context.Context, opts *options) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := ops.ShutdownContext(parent)
	defer cancel()

	static, err := ops.LoadOrDefault(opts.config)
	if err != nil {
		logs.Errorf("load static tables, err: %+v", err)
		return err
	}

	cfg := naming.Config{
		Region:     opts.region,
		Backup:     opts.backup,
		DataDir:    opts.dataDir,
		StartDelay: opts.startDelay,
	}
	stopProfiler, err := ops.StartProfiler("naming", cfg.InstanceName(), opts.pyroscope)
	if err != nil {
		logs.Errorf("start profiler, err: %+v", err)
		return err
	}
	defer stopProfiler()

	metrics := obs.NewMetrics("naming", cfg.InstanceName())
	node, err := naming.New(cfg, static, protocol.NewTCPDialer(static.Host()), metrics)
	if err != nil {
		logs.Errorf("create naming node, err: %+v", err)
		return err
	}

	server, err := tcp.NewServer(static.Host(), int(node.Address()))
	if err != nil {
		return err
	}
	if err := server.Listen(); err != nil {
		logs.Errorf("listen on %d, err: %+v", node.Address(), err)
		return err
	}
	logs.Infof("naming %s listening on %s:%d, start time %s",
		node.Name(), static.Host(), node.Address(), time.UnixMilli(node.StartTime()).Format(time.RFC3339))

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return naming.NewServer(node).Serve(ctx, server)
	})
	eg.Go(func() error {
		return ops.ServeMetrics(ctx, opts.metricsAddr, metrics.Handler())
	})
	if err := eg.Wait(); err != nil {
		logs.Errorf("naming %s stopped, err: %+v", node.Name(), err)
		return err
	}
	logs.Infof("naming %s stopped", node.Name())
	return nil
}
