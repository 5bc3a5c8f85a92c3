package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"

	"stockex/internal/exchange"
	"stockex/internal/feed"
	"stockex/internal/journal"
	"stockex/internal/obs"
	"stockex/internal/ops"
	"stockex/internal/protocol"
	"stockex/pkg/conn"
	"stockex/pkg/tcp"
)

type options struct {
	config      string
	exchange    string
	region      string
	dataDir     string
	priceCSV    string
	qtyCSV      string
	postgresDSN string
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
		Use:          "exchange",
		Short:        "Runs one stock exchange",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.config, "config", "", "static tables as JSON, built-in defaults when empty")
	cmd.Flags().StringVar(&opts.exchange, "exchange", "", "exchange to run, e.g. Tokyo")
	cmd.Flags().StringVar(&opts.region, "region", "", "override the naming region of the exchange")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "data", "directory of the recovery log")
	cmd.Flags().StringVar(&opts.priceCSV, "prices", "price_stocks.csv", "price table")
	cmd.Flags().StringVar(&opts.qtyCSV, "quantities", "qty_stocks.csv", "incoming quantity table")
	cmd.Flags().StringVar(&opts.postgresDSN, "postgres", "", "journal fills to this postgres database")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	cmd.Flags().StringVar(&opts.pyroscope, "pyroscope", "", "pyroscope server url")
	_ = cmd.MarkFlagRequired("exchange")
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
	stopProfiler, err := ops.StartProfiler("exchange", opts.exchange, opts.pyroscope)
	if err != nil {
		logs.Errorf("start profiler, err: %+v", err)
		return err
	}
	defer stopProfiler()

	market, err := feed.OpenCSV(opts.priceCSV, opts.qtyCSV)
	if err != nil {
		logs.Errorf("open market data, err: %+v", err)
		return err
	}

	metrics := obs.NewMetrics("exchange", opts.exchange)
	deps := exchange.Deps{
		Static:  static,
		Feed:    market,
		Dialer:  protocol.NewTCPDialer(static.Host()),
		Metrics: metrics,
	}

	eg, ctx := errgroup.WithContext(ctx)

	if opts.postgresDSN != "" {
		writer, closeJournal, err := openJournal(ctx, opts.postgresDSN)
		if err != nil {
			logs.Errorf("open fill journal, err: %+v", err)
			return err
		}
		defer closeJournal()
		if err := writer.Start(ctx); err != nil {
			return err
		}
		deps.Journal = writer
	}

	// The port must accept before Open publishes it to naming.
	server, err := listen(static, opts.exchange)
	if err != nil {
		logs.Errorf("listen for exchange %s, err: %+v", opts.exchange, err)
		return err
	}
	defer server.Close()

	endpoint, err := exchange.Open(exchange.Config{
		Exchange: opts.exchange,
		Region:   opts.region,
		DataDir:  opts.dataDir,
	}, deps)
	if err != nil {
		logs.Errorf("open exchange %s, err: %+v", opts.exchange, err)
		return err
	}
	defer endpoint.Close()

	logs.Infof("exchange %s listening on %s:%d", endpoint.Name(), static.Host(), endpoint.Address())

	eg.Go(func() error {
		return endpoint.Run(ctx)
	})
	eg.Go(func() error {
		return exchange.NewServer(endpoint).Serve(ctx, server)
	})
	eg.Go(func() error {
		return ops.ServeMetrics(ctx, opts.metricsAddr, metrics.Handler())
	})
	if err := eg.Wait(); err != nil {
		logs.Errorf("exchange %s stopped, err: %+v", endpoint.Name(), err)
		return err
	}
	logs.Infof("exchange %s stopped at tick %d", endpoint.Name(), endpoint.Tick())
	return nil
}

// listen binds the configured port of exchange.
func listen(static ops.Static, exchange string) (*tcp.Server, error) {
	port, err := static.PortOf(exchange)
	if err != nil {
		return nil, err
	}
	server, err := tcp.NewServer(static.Host(), int(port))
	if err != nil {
		return nil, err
	}
	if err := server.Listen(); err != nil {
		return nil, err
	}
	return server, nil
}

func openJournal(ctx context.Context, dsn string) (*journal.Writer, func(), error) {
	client, err := conn.New(conn.Option{ConnString: dsn})
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	store, err := journal.NewPostgresStore(ctx, client)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	writer, err := journal.NewWriter(journal.Config{}, store)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return writer, func() {
		_ = writer.Close()
		_ = client.Close()
	}, nil
}
