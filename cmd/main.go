package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"cyberlombard/internal/application"
	"cyberlombard/internal/config"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/value"
	"cyberlombard/pkg/contextx"
	"cyberlombard/pkg/logx"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cyberlombard",
		Short:         "Cash advances against game items with buy-back",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newWorkerCmd(),
		newSweepCmd(),
		newQuoteCmd(),
	)

	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API, expiry sweeper and operator bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd.Context(), func(ctx context.Context, app *application.Application) error {
				return app.Serve(ctx)
			})
		},
	}
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process payout and return retries from the queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd.Context(), func(ctx context.Context, app *application.Application) error {
				return app.Work(ctx)
			})
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Close overdue deals once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd.Context(), func(ctx context.Context, app *application.Application) error {
				pass, err := app.SweepOnce(ctx)

				logger := contextx.LoggerFromContextOrDefault(ctx)
				logger.Info("sweep finished",
					slog.Int("defaulted", pass.Defaulted),
					slog.Int("bought-back", pass.BoughtBack),
					slog.Int("skipped", pass.Skipped),
					slog.Int("failed", pass.Failed),
					slog.Int("cancelled", pass.Cancelled),
					slog.Int("notified", pass.Notified),
				)

				return err
			})
		},
	}
}

func newQuoteCmd() *cobra.Command {
	var (
		price string
		term  int
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Calculate loan and buy-back amounts for an item price",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config.Load: %w", err)
			}

			p, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("--price: %w", err)
			}

			engine, err := application.NewEngine(cfg.Pricing)
			if err != nil {
				return err
			}

			q, err := engine.Quote([]entity.ValuedItem{{
				Item: value.Item{AssetID: "cli", MarketHashName: "cli"},
				Valuation: entity.Valuation{
					MarketHashName:  "cli",
					AcceptancePrice: p,
					Acceptable:      p.GreaterThanOrEqual(cfg.Pricing.MinAcceptable),
				},
			}}, term)
			if err != nil {
				return err
			}

			printQuote(cmd, q)

			return nil
		},
	}

	cmd.Flags().StringVar(&price, "price", "", "acceptance price of the item")
	cmd.Flags().IntVar(&term, "term", 7, "option term in days") //nolint:mnd
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

func printQuote(cmd *cobra.Command, q entity.Quote) {
	money := func(d decimal.Decimal) string { return value.RoundMoney(d).StringFixed(value.MoneyPlaces) }
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "term:           %d days\n", q.TermDays)
	fmt.Fprintf(out, "market total:   %s\n", money(q.MarketTotal))
	fmt.Fprintf(out, "loan:           %s\n", money(q.LoanAmount))
	fmt.Fprintf(out, "buy-back:       %s\n", money(q.BuybackAmount))
	fmt.Fprintf(out, "interest:       %s (%s)\n", q.Rate.Interest, money(q.Breakdown.InterestAmount))
	fmt.Fprintf(out, "premium:        %s (%s)\n", q.Rate.Premium, money(q.Breakdown.PremiumAmount))
	fmt.Fprintf(out, "profit:         %s\n", money(q.Breakdown.Profit))
	fmt.Fprintf(out, "margin:         %s%%\n", money(q.Breakdown.MarginPercent))
	fmt.Fprintf(out, "annual rate:    %s%%\n", money(q.Breakdown.AnnualRatePercent))
}

func withApplication(ctx context.Context, run func(context.Context, *application.Application) error) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", logx.Error(err))
		return fmt.Errorf("config.Load: %w", err)
	}

	logger := newLogger(cfg.App)
	slog.SetDefault(logger)
	ctx = contextx.WithLogger(ctx, logger)

	app, err := application.New(ctx, cfg)
	if err != nil {
		logger.Error("application init failed", logx.Error(err))
		return err
	}
	defer app.Close(ctx)

	if err := run(ctx, app); err != nil {
		logger.Error("application failed", logx.Error(err))
		return err
	}

	logger.Info("application stopped")

	return nil
}

func newLogger(cfg config.App) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
	})).With(
		slog.String(logx.FieldAppName, cfg.Name),
		slog.String(logx.FieldAppVersion, cfg.Version),
	)
}
