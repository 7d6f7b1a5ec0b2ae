package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/finance-insights/internal/app"
	"github.com/dvloznov/finance-insights/internal/config"
	"github.com/dvloznov/finance-insights/internal/insights"
	"github.com/dvloznov/finance-insights/internal/logger"
	"github.com/dvloznov/finance-insights/internal/provider"
)

type options struct {
	envFile  string
	input    string
	userID   string
	days     int
	provider string
	freeOnly bool
	timeout  time.Duration
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "insights",
		Short: "Finance insights over a transaction history",
		Long: `Runs the recurring-charge scan, budget coach or spending forecast for one
user and prints the result as JSON.

Transactions come from the configured store, or from --input: a JSON array
of {userId, date, amount, category, description} records in a local file
or a gs://bucket/object URI.`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(out)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", ".env", "optional .env file")
	flags.StringVar(&opts.input, "input", "", "JSON file or gs:// URI to analyze instead of the configured store")
	flags.StringVarP(&opts.userID, "user", "u", app.DefaultSeedUser, "user ID")
	flags.IntVarP(&opts.days, "days", "d", 0, "lookback window in days (default depends on the command)")
	flags.StringVarP(&opts.provider, "provider", "p", string(provider.Heuristic), "heuristic, gemini, openai or auto")
	flags.BoolVar(&opts.freeOnly, "free-only", false, "never call an external provider")
	flags.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall timeout")

	rootCmd.AddCommand(recurringCmd(opts))
	rootCmd.AddCommand(coachCmd(opts))
	rootCmd.AddCommand(forecastCmd(opts))
	return rootCmd
}

func recurringCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "recurring",
		Short: "Detect recurring charges and predict their next due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, svc *insights.Service) (interface{}, error) {
				return svc.ScanRecurring(ctx, opts.request(cmd))
			})
		},
	}
}

func coachCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "coach",
		Short: "Suggest monthly budgets and savings tips",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, svc *insights.Service) (interface{}, error) {
				return svc.Coach(ctx, opts.request(cmd))
			})
		},
	}
}

func forecastCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "forecast",
		Short: "Forecast spending over the next 30 days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := opts.request(cmd)
			return run(cmd, opts, func(ctx context.Context, svc *insights.Service) (interface{}, error) {
				return svc.Forecast(ctx, insights.ForecastRequest{
					UserID:    req.UserID,
					Days:      req.Days,
					UseGemini: req.Provider == provider.Gemini || req.Provider == provider.Auto,
					UseOpenAI: req.Provider == provider.OpenAI || req.Provider == provider.Auto,
					FreeOnly:  req.FreeOnly,
				})
			})
		},
	}
}

func (o *options) request(cmd *cobra.Command) insights.Request {
	req := insights.Request{
		UserID:   o.userID,
		FreeOnly: o.freeOnly,
		Provider: provider.ParseName(o.provider),
	}
	if cmd.Flags().Changed("days") {
		days := o.days
		req.Days = &days
	}
	return req
}

func run(cmd *cobra.Command, opts *options, analyze func(context.Context, *insights.Service) (interface{}, error)) error {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return err
	}
	if opts.input != "" {
		cfg.StoreBackend = config.BackendMemory
		cfg.SeedTransactions = opts.input
	}

	log := logger.NewWithWriter(cmd.ErrOrStderr()).Level(logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	txStore, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := app.NewService(ctx, cfg, txStore, log)
	if err != nil {
		return err
	}

	result, err := analyze(ctx, svc)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
