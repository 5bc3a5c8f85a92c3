package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"

	"stockex/internal/feed"
	"stockex/internal/ops"
	"stockex/internal/protocol"
	"stockex/internal/simulator"
)

type options struct {
	config   string
	priceCSV string
	qtyCSV   string
	clients  int
	rounds   int
	seed     int64
	exchange string
	order    string
	period   time.Duration
	maxQty   int64
	fundRate float64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "client",
		Short:        "Sends simulated client orders to the exchanges",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.config, "config", "", "static tables as JSON, built-in defaults when empty")
	cmd.Flags().StringVar(&opts.priceCSV, "prices", "price_stocks.csv", "price table listing the tradable securities")
	cmd.Flags().StringVar(&opts.qtyCSV, "quantities", "qty_stocks.csv", "incoming quantity table")
	cmd.Flags().IntVar(&opts.clients, "clients", 1, "number of clients")
	cmd.Flags().IntVar(&opts.rounds, "rounds", 0, "orders per client, 0 runs until interrupted")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "random seed, derived from the clock when 0")
	cmd.Flags().StringVar(&opts.exchange, "exchange", "", "exchange to connect to, random per client when empty")
	cmd.Flags().StringVar(&opts.order, "order", "", `repeat one order, e.g. "B Sony 100"; action R picks B or S each round`)
	cmd.Flags().DurationVar(&opts.period, "period", 0, "time between orders, random in [2s, 5s) when 0")
	cmd.Flags().Int64Var(&opts.maxQty, "max-qty", 400, "largest random quantity")
	cmd.Flags().Float64Var(&opts.fundRate, "fund-rate", 0.1, "share of random orders that trade a fund")
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

	var universe simulator.Universe
	fixed, err := parseOrder(opts.order)
	if err != nil {
		return err
	}
	if fixed == nil {
		market, err := feed.OpenCSV(opts.priceCSV, opts.qtyCSV)
		if err != nil {
			logs.Errorf("open market data, err: %+v", err)
			return err
		}
		if universe, err = simulator.UniverseOf(static, market); err != nil {
			return err
		}
	} else {
		for _, ex := range static.Exchanges() {
			universe.Exchanges = append(universe.Exchanges, ex.Name)
		}
	}

	seed := opts.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logs.Infof("starting %d clients, seed %d", opts.clients, seed)

	dialer := protocol.NewTCPDialer(static.Host())
	clients := make([]*simulator.Client, 0, opts.clients)
	for id := 1; id <= opts.clients; id++ {
		c, err := simulator.New(simulator.Config{
			ClientID: id,
			Exchange: opts.exchange,
			Rounds:   opts.rounds,
			Period:   opts.period,
			Generator: simulator.GeneratorConfig{
				Seed:     seed + int64(id),
				MaxQty:   opts.maxQty,
				FundRate: opts.fundRate,
				Fixed:    fixed,
			},
		}, static, dialer, universe)
		if err != nil {
			logs.Errorf("create client %d, err: %+v", id, err)
			return err
		}
		logs.Infof("client %d trades on %s every %s", id, c.Exchange(), c.Period())
		clients = append(clients, c)
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, c := range clients {
		eg.Go(func() error { return c.Run(ctx) })
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	var total simulator.Stats
	for _, c := range clients {
		s := c.Stats()
		total.Sent += s.Sent
		total.Succeeded += s.Succeeded
		total.Rejected += s.Rejected
		total.Failed += s.Failed
	}
	logs.Infof("sent %d orders: %d succeeded, %d rejected, %d failed", total.Sent, total.Succeeded, total.Rejected, total.Failed)
	return nil
}

// parseOrder reads "ACTION SECURITY QTY".
func parseOrder(s string) (*simulator.Fixed, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return nil, fmt.Errorf("order %q: want ACTION SECURITY QTY", s)
	}
	qty, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("order %q: bad qty: %w", s, err)
	}
	return &simulator.Fixed{Action: protocol.Action(strings.ToUpper(fields[0])), Security: fields[1], Qty: qty}, nil
}
